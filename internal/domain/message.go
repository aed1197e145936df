package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RawMessage is a request as it arrived on a transport, before decoding.
type RawMessage struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// ParseRequest decodes a JSON contour request. Semantic checks are left to
// Request.Validate so that a well-formed but unanswerable request still gets
// an empty response carrying its token.
func ParseRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("decode contour request: %w", err)
	}
	return req, nil
}
