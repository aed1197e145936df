// Package grid holds the global mean-sea-level pressure grid: its binary
// half-precision encoding, edge-aware sampling and temporal blending.
//
// The grid is 181 columns by 91 rows at 2° spacing, stored row-major with
// row 0 at the north pole. Column 180 repeats column 0 so contours close
// across the dateline without modular indexing.
package grid

import (
	"errors"
	"fmt"
	"math"
)

const (
	// Width is the number of columns including the wrap column.
	Width = 181
	// Height is the number of rows, pole to pole.
	Height = 91
	// Size is the number of samples in a grid.
	Size = Width * Height
	// PayloadBytes is the exact byte length of one encoded timestep.
	PayloadBytes = Size * 2
)

// ErrShapeMismatch is returned when two grids of different lengths are blended.
var ErrShapeMismatch = errors.New("grid shape mismatch")

// Grid is a row-major pressure field in hPa. Missing samples are NaN.
type Grid []float64

// New returns a zero-filled grid.
func New() Grid { return make(Grid, Size) }

// Sample returns the value at (col, row). Columns clamp to the grid because
// the wrap column already provides dateline continuity; rows outside the
// grid are treated as a pole sentinel and return 0.
func Sample(g Grid, col, row int) float64 {
	if row < 0 || row >= Height {
		return 0
	}
	if col < 0 {
		col = 0
	} else if col >= Width {
		col = Width - 1
	}
	i := row*Width + col
	if i >= len(g) {
		return 0
	}
	return g[i]
}

// Interpolate blends a toward b: out[i] = a[i]*(1-blend) + b[i]*blend.
// Slots where either input is missing stay 0 instead of mixing a present
// reading with an absent one.
func Interpolate(a, b Grid, blend float64) (Grid, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("%w: %d vs %d samples", ErrShapeMismatch, len(a), len(b))
	}
	out := make(Grid, len(a))
	for i := range a {
		va, vb := a[i], b[i]
		if math.IsNaN(va) || math.IsNaN(vb) {
			continue
		}
		out[i] = va*(1-blend) + vb*blend
	}
	return out, nil
}

// Range returns the smallest and largest present samples of the interior
// rows. ok is false when no sample is present.
func Range(g Grid) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for row := 1; row < Height-1; row++ {
		for col := 0; col < Width; col++ {
			v := Sample(g, col, row)
			if math.IsNaN(v) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
			ok = true
		}
	}
	return lo, hi, ok
}
