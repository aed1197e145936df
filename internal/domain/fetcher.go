package domain

import "context"

// Fetcher retrieves the raw bytes of a timestep resource. base is the
// request's data base URL, passed through untouched; implementations decide
// how to resolve locator against it. Failures wrap ErrNetworkFailure.
type Fetcher interface {
	Fetch(ctx context.Context, base, locator string) ([]byte, error)
}
