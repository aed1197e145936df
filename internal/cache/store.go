// Package cache holds decoded timestep grids and loads missing ones.
//
// Store is a plain map with a single owner; it is not safe for concurrent
// use. Loader is stateless and may run in any number of goroutines. The
// contour worker keeps the Store inside its loop goroutine and hands only
// Loader calls to fetch goroutines; Cache combines both for callers that
// run on one goroutine, such as the offline CLI.
//
// Grids are keyed by the resource they were loaded from, not by timestep
// index: requests from different clients may number different timestep
// lists from zero.
package cache

import (
	"fmt"
	"net/url"

	"github.com/couchcryptid/isobar-contour-service/internal/domain"
	"github.com/couchcryptid/isobar-contour-service/internal/grid"
)

// Key identifies the resource a grid was loaded from. Base is empty for
// absolute resources.
type Key struct {
	Base     string
	Resource string
}

func (k Key) String() string { return k.Base + k.Resource }

// KeyFor returns the key of timesteps[index] under the request base URL.
func KeyFor(index int, timesteps []domain.TimestepDescriptor, base string) (Key, error) {
	if index < 0 || index >= len(timesteps) {
		return Key{}, fmt.Errorf("%w: index %d of %d", domain.ErrUnknownTimestep, index, len(timesteps))
	}
	res := timesteps[index].Resource
	if u, err := url.Parse(res); err == nil && u.IsAbs() {
		return Key{Resource: res}, nil
	}
	return Key{Base: base, Resource: res}, nil
}

// Store maps a resource key to its decoded grid. Entries are never evicted
// and only successful loads are stored.
type Store struct {
	grids map[Key]grid.Grid
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{grids: make(map[Key]grid.Grid)}
}

// Get returns the grid for a resource, if loaded.
func (s *Store) Get(k Key) (grid.Grid, bool) {
	g, ok := s.grids[k]
	return g, ok
}

// Put stores a decoded grid. Grids are treated as immutable once stored.
func (s *Store) Put(k Key, g grid.Grid) {
	s.grids[k] = g
}

// Len is the number of cached grids.
func (s *Store) Len() int { return len(s.grids) }
