// Package fetch implements domain.Fetcher over HTTP and over a local
// directory of timestep files.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/isobar-contour-service/internal/domain"
	"github.com/couchcryptid/isobar-contour-service/internal/grid"
	"github.com/couchcryptid/isobar-contour-service/internal/observability"
)

// maxBodyBytes bounds how much of a response is read. One byte past a full
// grid is enough to report an oversized payload without reading all of it.
const maxBodyBytes = grid.PayloadBytes + 1

// Client fetches timestep resources over HTTP. Only hosts of the default
// base URL and the configured allowlist are ever contacted, whatever base or
// absolute resource a request names.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	allowed    map[string]bool
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an HTTP fetcher. defaultBase resolves relative resources
// when a request carries no data base URL of its own; its host is always
// allowed. allowedHosts adds further hosts, as "host" or "host:port".
func NewClient(defaultBase string, allowedHosts []string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(defaultBase)
	if err != nil {
		return nil, fmt.Errorf("parse data base url: %w", err)
	}
	c := &Client{
		baseURL: base,
		allowed: map[string]bool{strings.ToLower(base.Host): true},
		metrics: metrics,
		logger:  logger,
	}
	for _, h := range allowedHosts {
		c.allowed[strings.ToLower(h)] = true
	}
	c.httpClient = &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("too many redirects")
			}
			return c.checkTarget(req.URL)
		},
	}
	return c, nil
}

// Fetch downloads one resource. locator may be absolute or relative to base;
// an empty base falls back to the client's default. Targets off the allowed
// hosts fail with ErrInvalidRequest and are never contacted.
func (c *Client) Fetch(ctx context.Context, base, locator string) ([]byte, error) {
	target, err := c.resolve(base, locator)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { c.metrics.FetchDuration.Observe(time.Since(start).Seconds()) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", domain.ErrNetworkFailure, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d for %s", domain.ErrNetworkFailure, resp.StatusCode, target)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrNetworkFailure, target, err)
	}
	c.logger.Debug("timestep fetched", "url", target, "bytes", len(body))
	return body, nil
}

func (c *Client) resolve(base, locator string) (string, error) {
	ref, err := url.Parse(locator)
	if err != nil {
		return "", fmt.Errorf("%w: parse resource %q: %w", domain.ErrInvalidRequest, locator, err)
	}

	root := c.baseURL
	if base != "" && !ref.IsAbs() {
		root, err = url.Parse(base)
		if err != nil {
			return "", fmt.Errorf("%w: parse data base url %q: %w", domain.ErrInvalidRequest, base, err)
		}
	}
	target := root.ResolveReference(ref)
	if err := c.checkTarget(target); err != nil {
		return "", err
	}
	return target.String(), nil
}

func (c *Client) checkTarget(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q is not fetchable", domain.ErrInvalidRequest, u.Scheme)
	}
	host := strings.ToLower(u.Host)
	if !c.allowed[host] && !c.allowed[strings.ToLower(u.Hostname())] {
		return fmt.Errorf("%w: host %q is not an allowed data host", domain.ErrInvalidRequest, u.Host)
	}
	return nil
}
