// Package worker answers contour requests on a single loop goroutine that
// owns the grid cache.
//
// A request moves through fetching (both timesteps, concurrently),
// interpolating, extracting, and responding. Any failure short-circuits to
// an empty response carrying the original correlation token. Fetches run in
// their own goroutines and report back to the loop, which alone writes the
// cache; a request for a resource that is already being fetched joins that
// fetch. Grids are shared across requests by resource, so clients whose
// timestep lists number different resources from zero never see each
// other's grids. Interpolation and extraction run in a goroutine per request on
// cached grids, which are never mutated, so requests complete out of order.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/isobar-contour-service/internal/cache"
	"github.com/couchcryptid/isobar-contour-service/internal/domain"
	"github.com/couchcryptid/isobar-contour-service/internal/grid"
	"github.com/couchcryptid/isobar-contour-service/internal/observability"
)

// ErrStopped is returned by Submit once the worker loop has exited.
var ErrStopped = errors.New("contour worker stopped")

// GridLoader loads one timestep grid. cache.Loader is the production implementation.
type GridLoader interface {
	Load(ctx context.Context, index int, timesteps []domain.TimestepDescriptor, base string) (grid.Grid, error)
}

// Options tunes the worker.
type Options struct {
	QueueSize    int
	FetchTimeout time.Duration
}

// Worker is the request orchestrator. Create with New, start with Run.
type Worker struct {
	loader  GridLoader
	opts    Options
	metrics *observability.Metrics
	logger  *slog.Logger

	requests chan submission
	results  chan loadResult
	stopped  chan struct{}
	running  atomic.Bool

	// Owned by the Run goroutine.
	store    *cache.Store
	inflight map[cache.Key][]*pending
}

type submission struct {
	req   domain.Request
	reply chan<- domain.Response
}

type loadResult struct {
	key  cache.Key
	grid grid.Grid
	err  error
}

// pending tracks one request waiting on its two grids.
type pending struct {
	submission
	keys    [2]cache.Key
	grids   [2]grid.Grid
	missing int
	done    bool
}

// New creates a worker. It does nothing until Run is called.
func New(loader GridLoader, opts Options, metrics *observability.Metrics, logger *slog.Logger) *Worker {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 15 * time.Second
	}
	return &Worker{
		loader:   loader,
		opts:     opts,
		metrics:  metrics,
		logger:   logger,
		requests: make(chan submission, opts.QueueSize),
		results:  make(chan loadResult),
		stopped:  make(chan struct{}),
		store:    cache.NewStore(),
		inflight: make(map[cache.Key][]*pending),
	}
}

// Submit queues a request. The response, successful or empty, is sent to
// reply exactly once. Submit blocks while the queue is full.
func (w *Worker) Submit(ctx context.Context, req domain.Request, reply chan<- domain.Response) error {
	select {
	case <-w.stopped:
		return ErrStopped
	default:
	}
	select {
	case w.requests <- submission{req: req, reply: reply}:
		return nil
	case <-w.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do submits a request and waits for its response.
func (w *Worker) Do(ctx context.Context, req domain.Request) (domain.Response, error) {
	reply := make(chan domain.Response, 1)
	if err := w.Submit(ctx, req, reply); err != nil {
		return domain.Response{}, err
	}
	select {
	case resp := <-reply:
		return resp, nil
	case <-w.stopped:
		return domain.Response{}, ErrStopped
	case <-ctx.Done():
		return domain.Response{}, ctx.Err()
	}
}

// Done is closed once the worker loop has exited. Requests still unanswered
// at that point are never answered.
func (w *Worker) Done() <-chan struct{} { return w.stopped }

// CheckReadiness returns nil while the worker loop is running.
func (w *Worker) CheckReadiness(_ context.Context) error {
	if !w.running.Load() {
		return errors.New("contour worker is not running")
	}
	return nil
}

// Run processes requests until ctx is cancelled, then waits for outstanding
// fetches and computations to finish.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("contour worker started", "queue_size", w.opts.QueueSize, "fetch_timeout", w.opts.FetchTimeout)
	w.running.Store(true)
	w.metrics.WorkerRunning.Set(1)

	var wg sync.WaitGroup
	defer func() {
		w.running.Store(false)
		w.metrics.WorkerRunning.Set(0)
		close(w.stopped)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("contour worker stopping", "reason", ctx.Err(), "cached_grids", w.store.Len())
			return nil
		case sub := <-w.requests:
			w.accept(ctx, &wg, sub)
		case res := <-w.results:
			w.complete(ctx, &wg, res)
		}
	}
}

func (w *Worker) accept(ctx context.Context, wg *sync.WaitGroup, sub submission) {
	if err := sub.req.Validate(); err != nil {
		w.fail(ctx, wg, sub, err)
		return
	}

	p := &pending{submission: sub}
	for slot, idx := range [2]int{sub.req.LowerIndex, sub.req.UpperIndex()} {
		key, err := cache.KeyFor(idx, sub.req.Timesteps, sub.req.DataBaseURL)
		if err != nil {
			w.fail(ctx, wg, sub, err)
			return
		}
		p.keys[slot] = key
	}

	for slot, key := range p.keys {
		if g, ok := w.store.Get(key); ok {
			w.metrics.GridCache.WithLabelValues("hit").Inc()
			p.grids[slot] = g
			continue
		}
		p.missing++
		if waiters, ok := w.inflight[key]; ok {
			w.metrics.GridCache.WithLabelValues("joined").Inc()
			w.inflight[key] = append(waiters, p)
			continue
		}
		w.metrics.GridCache.WithLabelValues("miss").Inc()
		w.inflight[key] = []*pending{p}
		w.startLoad(ctx, wg, key, sub.req.LowerIndex+slot, sub.req)
	}

	if p.missing == 0 {
		w.startCompute(ctx, wg, p)
	}
}

func (w *Worker) startLoad(ctx context.Context, wg *sync.WaitGroup, key cache.Key, idx int, req domain.Request) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		fetchCtx, cancel := context.WithTimeout(ctx, w.opts.FetchTimeout)
		defer cancel()

		g, err := w.loader.Load(fetchCtx, idx, req.Timesteps, req.DataBaseURL)
		select {
		case w.results <- loadResult{key: key, grid: g, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (w *Worker) complete(ctx context.Context, wg *sync.WaitGroup, res loadResult) {
	waiters := w.inflight[res.key]
	delete(w.inflight, res.key)

	if res.err == nil {
		w.store.Put(res.key, res.grid)
		w.metrics.CachedGrids.Set(float64(w.store.Len()))
		w.logger.Debug("timestep grid cached", "resource", res.key.String())
	} else {
		w.logger.Warn("timestep load failed", "resource", res.key.String(), "error", res.err)
	}

	for _, p := range waiters {
		if p.done {
			continue
		}
		if res.err != nil {
			p.done = true
			w.fail(ctx, wg, p.submission, res.err)
			continue
		}
		// Both slots may name the same resource, in which case p waits
		// here twice and the first pass fills both.
		for slot, key := range p.keys {
			if key == res.key && p.grids[slot] == nil {
				p.grids[slot] = res.grid
				p.missing--
			}
		}
		if p.missing == 0 {
			p.done = true
			w.startCompute(ctx, wg, p)
		}
	}
}

func (w *Worker) startCompute(ctx context.Context, wg *sync.WaitGroup, p *pending) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		start := time.Now()
		resp, err := Compute(p.grids[0], p.grids[1], p.req)
		if err != nil {
			w.logger.Error("contour extraction failed", "correlation_token", p.req.Token, "error", err)
			w.reply(ctx, p.submission, w.fallback(p.req, err))
			return
		}
		w.metrics.ExtractDuration.Observe(time.Since(start).Seconds())
		w.metrics.Segments.Observe(float64(resp.Segments))
		w.reply(ctx, p.submission, resp)
	}()
}

// fail answers a request with the empty result without blocking the loop.
func (w *Worker) fail(ctx context.Context, wg *sync.WaitGroup, sub submission, err error) {
	resp := w.fallback(sub.req, err)
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.reply(ctx, sub, resp)
	}()
}

func (w *Worker) fallback(req domain.Request, err error) domain.Response {
	reason := domain.ReasonFor(err)
	w.metrics.Fallbacks.WithLabelValues(string(reason)).Inc()
	w.logger.Info("responding with empty result",
		"correlation_token", req.Token,
		"reason", reason,
		"error", err,
	)
	return Fallback(req, reason)
}

func (w *Worker) reply(ctx context.Context, sub submission, resp domain.Response) {
	select {
	case sub.reply <- resp:
	case <-ctx.Done():
	}
}

// Fallback is the empty result sent for any failed request.
func Fallback(req domain.Request, reason domain.FallbackReason) domain.Response {
	return domain.EmptyResponse(req, reason)
}
