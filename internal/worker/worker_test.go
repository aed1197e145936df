package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	geojson "github.com/paulmach/go.geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/isobar-contour-service/internal/cache"
	"github.com/couchcryptid/isobar-contour-service/internal/contour"
	"github.com/couchcryptid/isobar-contour-service/internal/domain"
	"github.com/couchcryptid/isobar-contour-service/internal/grid"
	"github.com/couchcryptid/isobar-contour-service/internal/observability"
)

const waitTimeout = 5 * time.Second

// --- mock fetcher ---

// gatedFetcher serves payloads by locator. A locator with a gate blocks
// until the gate is closed or the context ends.
type gatedFetcher struct {
	mu       sync.Mutex
	payloads map[string][]byte
	gates    map[string]chan struct{}
	calls    map[string]int
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{
		payloads: make(map[string][]byte),
		gates:    make(map[string]chan struct{}),
		calls:    make(map[string]int),
	}
}

func (f *gatedFetcher) Fetch(ctx context.Context, _, locator string) ([]byte, error) {
	f.mu.Lock()
	f.calls[locator]++
	gate := f.gates[locator]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", domain.ErrNetworkFailure, ctx.Err())
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payloads[locator]
	if !ok {
		return nil, fmt.Errorf("%w: %s: status 404", domain.ErrNetworkFailure, locator)
	}
	return p, nil
}

func (f *gatedFetcher) set(locator string, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads[locator] = payload
}

func (f *gatedFetcher) gate(locator string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[locator] = ch
	return ch
}

func (f *gatedFetcher) callCount(locator string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[locator]
}

// --- helpers ---

func locator(i int) string { return fmt.Sprintf("ts%d.bin", i) }

func synthetic(phase float64) grid.Grid {
	return grid.Synthetic(grid.DefaultSystems, phase)
}

func payload(t *testing.T, phase float64) []byte {
	t.Helper()
	p, err := grid.Encode(synthetic(phase))
	require.NoError(t, err)
	return p
}

// fixture serves n synthetic timesteps.
func fixture(t *testing.T, n int) *gatedFetcher {
	t.Helper()
	f := newGatedFetcher()
	for i := range n {
		f.set(locator(i), payload(t, float64(i)))
	}
	return f
}

func request(token int64, lower, n int) domain.Request {
	ts := make([]domain.TimestepDescriptor, n)
	for i := range ts {
		ts[i] = domain.TimestepDescriptor{Date: "20251028", Cycle: fmt.Sprintf("%02dz", (i%4)*6), Resource: locator(i)}
	}
	return domain.Request{
		LowerIndex: lower,
		Blend:      0.5,
		IsoValues:  []float64{1000, 1008},
		Token:      token,
		Timesteps:  ts,
	}
}

func startWorker(t *testing.T, f domain.Fetcher, opts Options) *Worker {
	t.Helper()
	w := New(cache.NewLoader(f), opts, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.Eventually(t, func() bool { return w.CheckReadiness(context.Background()) == nil }, waitTimeout, time.Millisecond)
	return w
}

func receive(t *testing.T, ch <-chan domain.Response) domain.Response {
	t.Helper()
	select {
	case resp := <-ch:
		return resp
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for response")
		return domain.Response{}
	}
}

func do(t *testing.T, w *Worker, req domain.Request) domain.Response {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	resp, err := w.Do(ctx, req)
	require.NoError(t, err)
	return resp
}

// --- tests ---

func TestWorker_ComputesIsobars(t *testing.T) {
	w := startWorker(t, fixture(t, 3), Options{})

	req := request(1730102400123, 1, 3)
	resp := do(t, w, req)

	assert.Equal(t, req.Token, resp.Token)
	assert.Equal(t, domain.OutcomeOK, resp.Outcome)
	assert.Equal(t, domain.ReasonNone, resp.Reason)
	require.NotEmpty(t, resp.Vertices)
	assert.Zero(t, len(resp.Vertices)%contour.FloatsPerSegment)
	assert.Equal(t, len(resp.Vertices)/contour.FloatsPerSegment, resp.Segments)

	// Same result as running the pipeline by hand on the decoded grids.
	lower, err := grid.Decode(payload(t, 1))
	require.NoError(t, err)
	upper, err := grid.Decode(payload(t, 2))
	require.NoError(t, err)
	want, err := Compute(lower, upper, req)
	require.NoError(t, err)
	assert.Equal(t, want.Vertices, resp.Vertices)
}

func TestWorker_NoSuccessorRespondsEmptyWithoutFetching(t *testing.T) {
	f := fixture(t, 3)
	w := startWorker(t, f, Options{})

	resp := do(t, w, request(7, 2, 3))

	assert.Equal(t, int64(7), resp.Token)
	assert.Equal(t, domain.OutcomeEmpty, resp.Outcome)
	assert.Equal(t, domain.ReasonUnknownTimestep, resp.Reason)
	assert.Empty(t, resp.Vertices)
	for i := range 3 {
		assert.Zero(t, f.callCount(locator(i)))
	}
}

func TestWorker_InvalidBlendRespondsEmpty(t *testing.T) {
	w := startWorker(t, fixture(t, 2), Options{})

	req := request(8, 0, 2)
	req.Blend = 1.5
	resp := do(t, w, req)

	assert.Equal(t, domain.OutcomeEmpty, resp.Outcome)
	assert.Equal(t, domain.ReasonInvalid, resp.Reason)
}

func TestWorker_MalformedPayloadIsRetriedOnNextRequest(t *testing.T) {
	f := fixture(t, 2)
	f.set(locator(1), make([]byte, 100))
	w := startWorker(t, f, Options{})

	resp := do(t, w, request(1, 0, 2))
	assert.Equal(t, domain.OutcomeEmpty, resp.Outcome)
	assert.Equal(t, domain.ReasonMalformed, resp.Reason)

	f.set(locator(1), payload(t, 1))
	resp = do(t, w, request(2, 0, 2))
	assert.Equal(t, domain.OutcomeOK, resp.Outcome)
	assert.Equal(t, 2, f.callCount(locator(1)), "failed load must not be cached")
	assert.Equal(t, 1, f.callCount(locator(0)), "successful load is cached")
}

func TestWorker_NetworkFailureRespondsEmpty(t *testing.T) {
	f := fixture(t, 1) // ts1 is missing: 404
	w := startWorker(t, f, Options{})

	resp := do(t, w, request(3, 0, 2))
	assert.Equal(t, int64(3), resp.Token)
	assert.Equal(t, domain.OutcomeEmpty, resp.Outcome)
	assert.Equal(t, domain.ReasonNetwork, resp.Reason)
}

func TestWorker_FetchTimeoutRespondsEmpty(t *testing.T) {
	f := fixture(t, 2)
	f.gate(locator(1))
	w := startWorker(t, f, Options{FetchTimeout: 20 * time.Millisecond})

	resp := do(t, w, request(4, 0, 2))
	assert.Equal(t, domain.OutcomeEmpty, resp.Outcome)
	assert.Equal(t, domain.ReasonTimeout, resp.Reason)
}

func TestWorker_SequentialRequestsFetchEachTimestepOnce(t *testing.T) {
	f := fixture(t, 4)
	w := startWorker(t, f, Options{})

	for i, blend := range []float64{0, 0.25, 0.5, 0.75, 1} {
		req := request(int64(i), 1, 4)
		req.Blend = blend
		resp := do(t, w, req)
		require.Equal(t, domain.OutcomeOK, resp.Outcome)
	}
	resp := do(t, w, request(10, 2, 4))
	require.Equal(t, domain.OutcomeOK, resp.Outcome)

	assert.Zero(t, f.callCount(locator(0)))
	assert.Equal(t, 1, f.callCount(locator(1)))
	assert.Equal(t, 1, f.callCount(locator(2)))
	assert.Equal(t, 1, f.callCount(locator(3)))
}

func TestWorker_ConcurrentRequestsJoinInFlightFetch(t *testing.T) {
	f := fixture(t, 2)
	gate0 := f.gate(locator(0))
	gate1 := f.gate(locator(1))
	w := startWorker(t, f, Options{})

	replies := make(chan domain.Response, 3)
	for tok := range int64(3) {
		require.NoError(t, w.Submit(context.Background(), request(tok, 0, 2), replies))
	}
	require.Eventually(t, func() bool {
		return f.callCount(locator(0)) == 1 && f.callCount(locator(1)) == 1
	}, waitTimeout, time.Millisecond)
	close(gate0)
	close(gate1)

	tokens := map[int64]bool{}
	for range 3 {
		resp := receive(t, replies)
		assert.Equal(t, domain.OutcomeOK, resp.Outcome)
		tokens[resp.Token] = true
	}
	assert.Len(t, tokens, 3)
	assert.Equal(t, 1, f.callCount(locator(0)))
	assert.Equal(t, 1, f.callCount(locator(1)))
}

func TestWorker_DescriptorListsSharingIndexesLoadTheirOwnGrids(t *testing.T) {
	f := fixture(t, 2)
	f.set("other0.bin", payload(t, 5))
	f.set("other1.bin", payload(t, 6))
	w := startWorker(t, f, Options{})

	first := request(1, 0, 2)
	second := request(2, 0, 2)
	second.Timesteps[0].Resource = "other0.bin"
	second.Timesteps[1].Resource = "other1.bin"

	respA := do(t, w, first)
	respB := do(t, w, second)
	require.Equal(t, domain.OutcomeOK, respA.Outcome)
	require.Equal(t, domain.OutcomeOK, respB.Outcome)

	assert.Equal(t, 1, f.callCount("other0.bin"))
	assert.Equal(t, 1, f.callCount("other1.bin"))
	assert.NotEqual(t, respA.Vertices, respB.Vertices)

	lower, err := grid.Decode(payload(t, 5))
	require.NoError(t, err)
	upper, err := grid.Decode(payload(t, 6))
	require.NoError(t, err)
	want, err := Compute(lower, upper, second)
	require.NoError(t, err)
	assert.Equal(t, want.Vertices, respB.Vertices)
}

func TestWorker_InFlightFetchIsNotJoinedAcrossResources(t *testing.T) {
	f := fixture(t, 2)
	f.set("other0.bin", payload(t, 5))
	f.set("other1.bin", payload(t, 6))
	gate := f.gate(locator(0))
	w := startWorker(t, f, Options{})

	replies := make(chan domain.Response, 2)
	require.NoError(t, w.Submit(context.Background(), request(1, 0, 2), replies))
	require.Eventually(t, func() bool { return f.callCount(locator(0)) == 1 }, waitTimeout, time.Millisecond)

	second := request(2, 0, 2)
	second.Timesteps[0].Resource = "other0.bin"
	second.Timesteps[1].Resource = "other1.bin"
	require.NoError(t, w.Submit(context.Background(), second, replies))

	// The second request completes while the first is still blocked.
	resp := receive(t, replies)
	assert.Equal(t, int64(2), resp.Token)
	assert.Equal(t, domain.OutcomeOK, resp.Outcome)
	assert.Equal(t, 1, f.callCount("other0.bin"))

	close(gate)
	resp = receive(t, replies)
	assert.Equal(t, int64(1), resp.Token)
	assert.Equal(t, domain.OutcomeOK, resp.Outcome)
}

func TestWorker_ResponsesMayCompleteOutOfOrder(t *testing.T) {
	f := fixture(t, 3)
	w := startWorker(t, f, Options{})
	require.Equal(t, domain.OutcomeOK, do(t, w, request(1, 0, 3)).Outcome) // warm 0 and 1

	gate2 := f.gate(locator(2))
	replies := make(chan domain.Response, 2)
	require.NoError(t, w.Submit(context.Background(), request(100, 1, 3), replies)) // waits on ts2
	require.NoError(t, w.Submit(context.Background(), request(200, 0, 3), replies)) // cached

	first := receive(t, replies)
	assert.Equal(t, int64(200), first.Token)

	close(gate2)
	second := receive(t, replies)
	assert.Equal(t, int64(100), second.Token)
	assert.Equal(t, domain.OutcomeOK, second.Outcome)
}

func TestWorker_GeoJSONFormat(t *testing.T) {
	w := startWorker(t, fixture(t, 2), Options{})

	req := request(5, 0, 2)
	req.Format = domain.FormatGeoJSON
	resp := do(t, w, req)

	require.Equal(t, domain.OutcomeOK, resp.Outcome)
	assert.Equal(t, domain.FormatGeoJSON, resp.Format)
	assert.Positive(t, resp.Segments)
	fc, err := geojson.UnmarshalFeatureCollection(resp.GeoJSON)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 2)
}

func TestWorker_SubmitAfterStop(t *testing.T) {
	w := New(cache.NewLoader(newGatedFetcher()), Options{}, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, w.CheckReadiness(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Run(ctx))

	err := w.Submit(context.Background(), request(1, 0, 2), make(chan domain.Response, 1))
	require.ErrorIs(t, err, ErrStopped)
	require.Error(t, w.CheckReadiness(context.Background()))
}

func TestFallback_EchoesToken(t *testing.T) {
	resp := Fallback(request(99, 0, 2), domain.ReasonNetwork)
	assert.Equal(t, int64(99), resp.Token)
	assert.Equal(t, domain.OutcomeEmpty, resp.Outcome)
	assert.NotNil(t, resp.Vertices)
	assert.Empty(t, resp.Vertices)
}
