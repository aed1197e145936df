package kafka

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/isobar-contour-service/internal/config"
	"github.com/couchcryptid/isobar-contour-service/internal/domain"
)

// Writer produces contour responses to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured response topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaResponseTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch publishes responses in a single WriteMessages call.
func (w *Writer) LoadBatch(ctx context.Context, responses []domain.Response) error {
	if len(responses) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(responses))
	for i := range responses {
		msgs[i] = serializeToMessage(responses[i])
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage keys a response by its correlation token. Vertex
// responses carry the binary frame, GeoJSON responses the document.
func serializeToMessage(resp domain.Response) kafkago.Message {
	token := strconv.FormatInt(resp.Token, 10)
	value := domain.EncodeFrame(resp.Token, resp.Vertices)
	if resp.Format == domain.FormatGeoJSON && resp.GeoJSON != nil {
		value = resp.GeoJSON
	}

	headers := []kafkago.Header{
		{Key: "correlation_token", Value: []byte(token)},
		{Key: "outcome", Value: []byte(resp.Outcome)},
		{Key: "segments", Value: []byte(strconv.Itoa(resp.Segments))},
		{Key: "computed_at", Value: []byte(resp.ComputedAt.Format(time.RFC3339))},
		{Key: "format", Value: []byte(resp.Format)},
	}
	if resp.Reason != domain.ReasonNone {
		headers = append(headers, kafkago.Header{Key: "reason", Value: []byte(resp.Reason)})
	}
	return kafkago.Message{
		Key:     []byte(token),
		Value:   value,
		Headers: headers,
	}
}
