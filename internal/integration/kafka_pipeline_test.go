//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/isobar-contour-service/internal/adapter/fetch"
	"github.com/couchcryptid/isobar-contour-service/internal/adapter/kafka"
	"github.com/couchcryptid/isobar-contour-service/internal/cache"
	"github.com/couchcryptid/isobar-contour-service/internal/config"
	"github.com/couchcryptid/isobar-contour-service/internal/domain"
	"github.com/couchcryptid/isobar-contour-service/internal/observability"
	"github.com/couchcryptid/isobar-contour-service/internal/pipeline"
	"github.com/couchcryptid/isobar-contour-service/internal/worker"
)

const (
	testRequestTopic  = "test-contour-requests"
	testResponseTopic = "test-contour-responses"
)

var testIsoValues = []float64{996, 1000, 1004, 1008, 1012, 1016, 1020}

// responseMessage holds a decoded message read from the response topic.
type responseMessage struct {
	Token    int64
	Vertices []float32
	Key      string
	Headers  map[string]string
}

// readResponse reads a single message from the response consumer and decodes its frame.
func readResponse(ctx context.Context, t *testing.T, consumer *kafkago.Reader) responseMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from response topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	token, verts, err := domain.DecodeFrame(msg.Value)
	require.NoError(t, err, "decode response frame")

	return responseMessage{
		Token:    token,
		Vertices: verts,
		Key:      string(msg.Key),
		Headers:  headers,
	}
}

func testConfig(broker, group string) *config.Config {
	return &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaRequestTopic:  testRequestTopic,
		KafkaResponseTopic: testResponseTopic,
		KafkaGroupID:       fmt.Sprintf("%s-%d", group, time.Now().UnixNano()),
		BatchFlushInterval: 5 * time.Second,
	}
}

func responseConsumer(t *testing.T, broker string) *kafkago.Reader {
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testResponseTopic,
		GroupID:     fmt.Sprintf("test-responses-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// startWorker runs a contour worker reading timesteps from dir.
func startWorker(ctx context.Context, t *testing.T, dir string, metrics *observability.Metrics) *worker.Worker {
	t.Helper()
	w := worker.New(cache.NewLoader(fetch.NewDir(dir)), worker.Options{}, metrics, discardLogger())
	workerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(workerCtx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w
}

// TestKafkaReaderWriter verifies the adapter layer: kafka.Reader extracts a
// request message and kafka.Writer publishes a response frame with headers.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testRequestTopic)
	createTopic(t, broker, testResponseTopic)
	cfg := testConfig(broker, "test-reader")

	_, descs := writeFixture(t, 2)
	req := domain.Request{LowerIndex: 0, Blend: 0.5, IsoValues: testIsoValues, Token: 42, Timesteps: descs}
	payload, err := json.Marshal(req)
	require.NoError(t, err)

	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testRequestTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })
	require.NoError(t, producer.WriteMessages(ctx, kafkago.Message{Key: []byte("42"), Value: payload}))

	// Retry because the consumer group may need time to rebalance before
	// partitions are assigned and messages become available.
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	var batch []domain.RawMessage
	for {
		batch, err = reader.ExtractBatch(ctx, 1)
		require.NoError(t, err)
		if len(batch) > 0 {
			break
		}
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for message from request topic")
		}
	}
	require.Len(t, batch, 1)
	raw := batch[0]
	assert.Equal(t, []byte("42"), raw.Key)
	assert.Equal(t, testRequestTopic, raw.Topic)
	require.NotNil(t, raw.Commit, "commit callback should be set")
	require.NoError(t, raw.Commit(ctx))

	parsed, err := domain.ParseRequest(raw.Value)
	require.NoError(t, err)
	assert.Equal(t, req, parsed)

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	verts := []float32{1, 0, 0, 0, 1, 0}
	require.NoError(t, writer.LoadBatch(ctx, []domain.Response{{
		Token:      parsed.Token,
		Format:     domain.FormatVertices,
		Vertices:   verts,
		Segments:   1,
		Outcome:    domain.OutcomeOK,
		ComputedAt: time.Now(),
	}}))

	rm := readResponse(ctx, t, responseConsumer(t, broker))
	assert.Equal(t, int64(42), rm.Token)
	assert.Equal(t, verts, rm.Vertices)
	assert.Equal(t, "42", rm.Key)
	assert.Equal(t, "ok", rm.Headers["outcome"])
	assert.Equal(t, "1", rm.Headers["segments"])
	_, err = time.Parse(time.RFC3339, rm.Headers["computed_at"])
	assert.NoError(t, err, "computed_at should be valid RFC3339")
}

// TestPipelineEndToEnd wires Reader, worker and Writer against real Kafka and
// checks every response matches a direct computation of the same request.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testRequestTopic)
	createTopic(t, broker, testResponseTopic)
	cfg := testConfig(broker, "test-pipeline")

	dir, descs := writeFixture(t, 3)
	blends := []float64{0, 0.25, 0.5, 0.75, 1}

	var reqs []domain.Request
	for lower := 0; lower < 2; lower++ {
		for _, b := range blends {
			reqs = append(reqs, domain.Request{
				LowerIndex: lower,
				Blend:      b,
				IsoValues:  testIsoValues,
				Token:      int64(len(reqs) + 1),
				Timesteps:  descs,
			})
		}
	}
	// Out-of-range lower index: answered with an empty frame.
	reqs = append(reqs, domain.Request{LowerIndex: 2, Blend: 0.5, IsoValues: testIsoValues, Token: 99, Timesteps: descs})

	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testRequestTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })

	msgs := make([]kafkago.Message, 0, len(reqs))
	for _, r := range reqs {
		payload, err := json.Marshal(r)
		require.NoError(t, err)
		msgs = append(msgs, kafkago.Message{Key: []byte(strconv.FormatInt(r.Token, 10)), Value: payload})
	}
	require.NoError(t, producer.WriteMessages(ctx, msgs...))

	metrics := observability.NewMetricsForTesting()
	w := startWorker(ctx, t, dir, metrics)

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(reader, w, writer, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := responseConsumer(t, broker)
	received := make(map[int64]responseMessage, len(reqs))
	for len(received) < len(reqs) {
		rm := readResponse(ctx, t, consumer)
		received[rm.Token] = rm
	}

	pipelineCancel()
	require.NoError(t, <-errCh)
	assert.True(t, p.Ready())

	direct := cache.New(fetch.NewDir(dir))
	for _, r := range reqs[:len(reqs)-1] {
		rm, ok := received[r.Token]
		require.True(t, ok, "missing response for token %d", r.Token)

		g0, g1, err := direct.GetOrLoadPair(ctx, r.LowerIndex, r.Timesteps, "")
		require.NoError(t, err)
		want, err := worker.Compute(g0, g1, r)
		require.NoError(t, err)

		assert.Equal(t, "ok", rm.Headers["outcome"], "token %d", r.Token)
		assert.Equal(t, want.Vertices, rm.Vertices, "token %d", r.Token)
		assert.Equal(t, strconv.Itoa(want.Segments), rm.Headers["segments"])
		assert.NotEmpty(t, rm.Vertices, "token %d", r.Token)
	}

	missing := received[99]
	assert.Empty(t, missing.Vertices)
	assert.Equal(t, "empty", missing.Headers["outcome"])
	assert.Equal(t, string(domain.ReasonUnknownTimestep), missing.Headers["reason"])
}

// TestPipelinePoisonMessage verifies that an undecodable message is skipped
// and the pipeline continues processing valid requests.
func TestPipelinePoisonMessage(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testRequestTopic)
	createTopic(t, broker, testResponseTopic)
	cfg := testConfig(broker, "test-poison")

	dir, descs := writeFixture(t, 2)
	valid, err := json.Marshal(domain.Request{LowerIndex: 0, Blend: 0.3, IsoValues: testIsoValues, Token: 7, Timesteps: descs})
	require.NoError(t, err)

	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testRequestTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })

	require.NoError(t, producer.WriteMessages(ctx,
		kafkago.Message{Key: []byte("bad"), Value: []byte("not-json{{{")},
		kafkago.Message{Key: []byte("7"), Value: valid},
	))

	metrics := observability.NewMetricsForTesting()
	w := startWorker(ctx, t, dir, metrics)

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(reader, w, writer, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := responseConsumer(t, broker)
	rm := readResponse(ctx, t, consumer)
	assert.Equal(t, int64(7), rm.Token)
	assert.Equal(t, "ok", rm.Headers["outcome"])

	// The poison pill produced nothing.
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err = consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no second message on response topic")

	pipelineCancel()
	require.NoError(t, <-errCh)
}
