package grid

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrPayloadSize is returned when an encoded timestep is not exactly PayloadBytes long.
var ErrPayloadSize = errors.New("payload size mismatch")

// Decode converts a little-endian half-precision payload into a Grid.
func Decode(payload []byte) (Grid, error) {
	if len(payload) != PayloadBytes {
		return nil, fmt.Errorf("%w: got %d bytes, expected %d (%dx%dx2)",
			ErrPayloadSize, len(payload), PayloadBytes, Width, Height)
	}
	g := make(Grid, Size)
	for i := range g {
		g[i] = DecodeHalf(binary.LittleEndian.Uint16(payload[2*i:]))
	}
	return g, nil
}

// Encode is the inverse of Decode. Values are rounded to half precision.
func Encode(g Grid) ([]byte, error) {
	if len(g) != Size {
		return nil, fmt.Errorf("%w: %d samples, expected %d", ErrShapeMismatch, len(g), Size)
	}
	out := make([]byte, PayloadBytes)
	for i, v := range g {
		binary.LittleEndian.PutUint16(out[2*i:], EncodeHalf(v))
	}
	return out, nil
}
