package cache

import (
	"context"
	"fmt"

	"github.com/couchcryptid/isobar-contour-service/internal/domain"
	"github.com/couchcryptid/isobar-contour-service/internal/grid"
)

// Loader resolves, fetches, validates, and decodes one timestep grid.
type Loader struct {
	fetcher domain.Fetcher
}

// NewLoader creates a loader over the given fetcher.
func NewLoader(f domain.Fetcher) *Loader {
	return &Loader{fetcher: f}
}

// Load returns the decoded grid of timesteps[index]. base is the request's
// data base URL and may be empty.
func (l *Loader) Load(ctx context.Context, index int, timesteps []domain.TimestepDescriptor, base string) (grid.Grid, error) {
	if _, err := KeyFor(index, timesteps, base); err != nil {
		return nil, err
	}
	desc := timesteps[index]

	payload, err := l.fetcher.Fetch(ctx, base, desc.Resource)
	if err != nil {
		return nil, fmt.Errorf("fetch timestep %d (%s): %w", index, desc.Resource, err)
	}

	g, err := grid.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: timestep %d (%s): %w", domain.ErrMalformedPayload, index, desc.Resource, err)
	}
	return g, nil
}
