package cache

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/isobar-contour-service/internal/domain"
	"github.com/couchcryptid/isobar-contour-service/internal/grid"
)

// Cache is a Store with its Loader, for use from a single goroutine.
type Cache struct {
	store  *Store
	loader *Loader
}

// New creates an empty cache that loads through f.
func New(f domain.Fetcher) *Cache {
	return &Cache{store: NewStore(), loader: NewLoader(f)}
}

// Len is the number of cached grids.
func (c *Cache) Len() int { return c.store.Len() }

// GetOrLoad returns the cached grid for timesteps[index], loading and caching
// it on a miss. A failed load leaves the cache unchanged.
func (c *Cache) GetOrLoad(ctx context.Context, index int, timesteps []domain.TimestepDescriptor, base string) (grid.Grid, error) {
	key, err := KeyFor(index, timesteps, base)
	if err != nil {
		return nil, err
	}
	if g, ok := c.store.Get(key); ok {
		return g, nil
	}
	g, err := c.loader.Load(ctx, index, timesteps, base)
	if err != nil {
		return nil, err
	}
	c.store.Put(key, g)
	return g, nil
}

// GetOrLoadPair returns the grids at lower and lower+1, fetching any missing
// ones concurrently. Either both grids are returned or an error; a grid that
// loaded successfully is cached even when its partner failed, so a failure
// does not cancel the other load.
func (c *Cache) GetOrLoadPair(ctx context.Context, lower int, timesteps []domain.TimestepDescriptor, base string) (grid.Grid, grid.Grid, error) {
	var keys [2]Key
	for i, idx := range [2]int{lower, lower + 1} {
		k, err := KeyFor(idx, timesteps, base)
		if err != nil {
			return nil, nil, err
		}
		keys[i] = k
	}

	var out [2]grid.Grid
	var loaded [2]bool
	var g errgroup.Group
	for i, k := range keys {
		if cached, ok := c.store.Get(k); ok {
			out[i] = cached
			continue
		}
		idx := lower + i
		g.Go(func() error {
			grd, err := c.loader.Load(ctx, idx, timesteps, base)
			if err != nil {
				return err
			}
			out[i] = grd
			loaded[i] = true
			return nil
		})
	}
	err := g.Wait()

	for i, k := range keys {
		if loaded[i] {
			c.store.Put(k, out[i])
		}
	}
	if err != nil {
		return nil, nil, err
	}
	return out[0], out[1], nil
}
