package fetch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/isobar-contour-service/internal/domain"
)

// Dir reads timestep resources from a local directory. The base argument of
// Fetch is ignored.
type Dir struct {
	root string
}

// NewDir creates a directory fetcher rooted at root.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Fetch reads locator relative to the root. Paths escaping the root are rejected.
func (d *Dir) Fetch(ctx context.Context, _, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrNetworkFailure, err)
	}
	clean := filepath.Clean(filepath.FromSlash(locator))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%w: resource %q outside %s", domain.ErrNetworkFailure, locator, d.root)
	}

	f, err := os.Open(filepath.Join(d.root, clean))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrNetworkFailure, err)
	}
	defer f.Close()

	body, err := io.ReadAll(io.LimitReader(f, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrNetworkFailure, locator, err)
	}
	return body, nil
}
