package domain

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// Outcome is the coarse result of a request.
type Outcome string

const (
	OutcomeOK    Outcome = "ok"
	OutcomeEmpty Outcome = "empty"
)

// Response answers one Request. Vertices belongs to the receiver: the
// producer keeps no reference after sending it.
type Response struct {
	Token      int64
	Format     Format
	Vertices   []float32
	GeoJSON    []byte
	Segments   int
	Outcome    Outcome
	Reason     FallbackReason
	ComputedAt time.Time
}

// EmptyResponse is the fallback answer: no geometry, original token.
func EmptyResponse(req Request, reason FallbackReason) Response {
	return Response{
		Token:      req.Token,
		Format:     req.OutputFormat(),
		Vertices:   []float32{},
		Outcome:    OutcomeEmpty,
		Reason:     reason,
		ComputedAt: Now(),
	}
}

// FrameHeaderBytes is the size of the token prefix in a binary frame.
const FrameHeaderBytes = 8

// ErrBadFrame is returned for frames that are too short or not float-aligned.
var ErrBadFrame = errors.New("bad vertex frame")

// EncodeFrame lays out a vertex response as an int64 token followed by the
// float32 vertices, all little-endian.
func EncodeFrame(token int64, vertices []float32) []byte {
	out := make([]byte, FrameHeaderBytes+4*len(vertices))
	binary.LittleEndian.PutUint64(out, uint64(token))
	for i, v := range vertices {
		binary.LittleEndian.PutUint32(out[FrameHeaderBytes+4*i:], math.Float32bits(v))
	}
	return out
}

// DecodeFrame is the inverse of EncodeFrame.
func DecodeFrame(frame []byte) (int64, []float32, error) {
	if len(frame) < FrameHeaderBytes || (len(frame)-FrameHeaderBytes)%4 != 0 {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrBadFrame, len(frame))
	}
	token := int64(binary.LittleEndian.Uint64(frame))
	body := frame[FrameHeaderBytes:]
	vertices := make([]float32, len(body)/4)
	for i := range vertices {
		vertices[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[4*i:]))
	}
	return token, vertices, nil
}
