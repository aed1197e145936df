// Package contour extracts isobars from a pressure grid with marching
// squares and projects them onto the unit sphere.
package contour

import (
	"math"

	"github.com/couchcryptid/isobar-contour-service/internal/geo"
	"github.com/couchcryptid/isobar-contour-service/internal/grid"
)

// flatEdgeEpsilon is the corner difference, in pressure units, below which a
// crossing is placed at the edge midpoint.
const flatEdgeEpsilon = 0.001

// FloatsPerSegment is the vertex buffer stride of one segment: two 3D points.
const FloatsPerSegment = 6

// Point is a fractional grid position: X is the column, Y the row.
type Point struct {
	X, Y float64
}

// Segment is one contour piece inside a single cell, in grid space.
type Segment struct {
	Iso  float64
	Case Case
	A, B Point
}

// Walk calls fn for every segment of the iso-value, scanning cells row by
// row. Cells touching a pole row or holding a missing corner are skipped.
func Walk(g grid.Grid, iso float64, fn func(Segment)) {
	for y := 1; y < grid.Height-2; y++ {
		for x := 0; x < grid.Width-1; x++ {
			v := [2][2]float64{
				{grid.Sample(g, x, y), grid.Sample(g, x+1, y)},
				{grid.Sample(g, x, y+1), grid.Sample(g, x+1, y+1)},
			}
			if anyNaN(v) {
				continue
			}
			c := Classify(v[0][0], v[0][1], v[1][1], v[1][0], iso)
			for _, pair := range c.Segments() {
				fn(Segment{
					Iso:  iso,
					Case: c,
					A:    crossing(x, y, pair[0], v, iso),
					B:    crossing(x, y, pair[1], v, iso),
				})
			}
		}
	}
}

// Segments collects the grid-space segments of one iso-value.
func Segments(g grid.Grid, iso float64) []Segment {
	var out []Segment
	Walk(g, iso, func(s Segment) { out = append(out, s) })
	return out
}

// Extract runs every iso-value in order and returns the projected segments
// as a flat buffer of xyz pairs, FloatsPerSegment floats per segment.
func Extract(g grid.Grid, isoValues []float64) []float32 {
	var out []float32
	for _, iso := range isoValues {
		Walk(g, iso, func(s Segment) {
			out = appendPoint(out, s.A)
			out = appendPoint(out, s.B)
		})
	}
	if out == nil {
		return []float32{}
	}
	return out
}

// crossing interpolates where iso crosses edge e of the cell at (x, y).
func crossing(x, y int, e Edge, v [2][2]float64, iso float64) Point {
	x0, y0, x1, y1 := e.corners()
	v0, v1 := v[y0][x0], v[y1][x1]

	t := 0.5
	if math.Abs(v1-v0) >= flatEdgeEpsilon {
		t = (iso - v0) / (v1 - v0)
	}
	return Point{
		X: float64(x+x0) + t*float64(x1-x0),
		Y: float64(y+y0) + t*float64(y1-y0),
	}
}

func appendPoint(buf []float32, p Point) []float32 {
	c := geo.GridToCartesian(p.X, p.Y)
	return append(buf, float32(c.X), float32(c.Y), float32(c.Z))
}

func anyNaN(v [2][2]float64) bool {
	return math.IsNaN(v[0][0]) || math.IsNaN(v[0][1]) || math.IsNaN(v[1][0]) || math.IsNaN(v[1][1])
}
