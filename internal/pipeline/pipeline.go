// Package pipeline serves contour requests arriving on Kafka: it extracts a
// batch of request messages, hands them to the contour worker, and publishes
// the responses.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/isobar-contour-service/internal/domain"
	"github.com/couchcryptid/isobar-contour-service/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// BatchExtractor reads up to batchSize raw request messages from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawMessage, error)
}

// Submitter queues a contour request; the response is sent to reply.
type Submitter interface {
	Submit(ctx context.Context, req domain.Request, reply chan<- domain.Response) error
}

// BatchLoader writes multiple responses to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, responses []domain.Response) error
}

// Pipeline orchestrates the extract-compute-load loop.
type Pipeline struct {
	extractor BatchExtractor
	worker    Submitter
	loader    BatchLoader
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	batchSize int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, w Submitter, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor: e,
		worker:    w,
		loader:    l,
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
	}
}

// Ready reports whether at least one batch has been published.
func (p *Pipeline) Ready() bool { return p.ready.Load() }

// CheckReadiness returns nil if the pipeline has published at least one batch,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any messages yet")
	}
	return nil
}

// Run executes the batch loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff) {
			return nil
		}
	}
}

// processBatch runs one extract-compute-load cycle. Returns false if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration) bool {
	start := time.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.MessagesConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = initialBackoff

	loaded, ok := p.computeAndLoad(ctx, rawBatch, backoff)
	if !ok {
		return false
	}

	if loaded > 0 {
		p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
		p.ready.Store(true)
	}
	return true
}

// computeAndLoad decodes each message, submits the requests to the worker,
// waits for every response, publishes them, and commits offsets. Messages
// that cannot be decoded are skipped but committed only with the rest of the
// batch, once the responses are published; a failed publish is retried with
// backoff until it succeeds or ctx ends. Returns the number of published
// responses and false if the pipeline should stop.
func (p *Pipeline) computeAndLoad(ctx context.Context, rawBatch []domain.RawMessage, backoff *time.Duration) (int, bool) {
	replies := make(chan domain.Response, len(rawBatch))
	submitted := 0

	for _, raw := range rawBatch {
		req, err := domain.ParseRequest(raw.Value)
		if err != nil {
			p.logger.Warn("decode failed, skipping message",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.DecodeErrors.Inc()
			continue
		}
		if err := p.worker.Submit(ctx, req, replies); err != nil {
			p.logger.Error("submit to worker failed", "error", err, "correlation_token", req.Token)
			return 0, false
		}
		submitted++
	}

	if submitted == 0 {
		p.commitAll(ctx, rawBatch)
		return 0, true
	}

	outBatch := make([]domain.Response, 0, submitted)
	for range submitted {
		select {
		case resp := <-replies:
			outBatch = append(outBatch, resp)
		case <-ctx.Done():
			return 0, false
		}
	}

	for {
		err := p.loader.LoadBatch(ctx, outBatch)
		if err == nil {
			break
		}
		p.logger.Error("load batch failed", "error", err, "batch_size", len(outBatch))
		if !p.backoffOrStop(ctx, backoff) {
			return 0, false
		}
	}
	*backoff = initialBackoff

	p.metrics.MessagesProduced.Add(float64(len(outBatch)))
	for _, resp := range outBatch {
		p.metrics.Requests.WithLabelValues("kafka", string(resp.Outcome)).Inc()
	}

	p.commitAll(ctx, rawBatch)
	return len(outBatch), true
}

// commitAll commits the batch in extraction order.
func (p *Pipeline) commitAll(ctx context.Context, rawBatch []domain.RawMessage) {
	for _, raw := range rawBatch {
		p.commitOffset(ctx, raw)
	}
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !retry.SleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = retry.NextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawMessage) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}
