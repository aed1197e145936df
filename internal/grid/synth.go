package grid

import "math"

// System is a single pressure anomaly on the sphere, in hPa.
type System struct {
	Lat, Lon float64 // centre, degrees
	Delta    float64 // anomaly at the centre; negative for a low
	Radius   float64 // e-folding radius, degrees of arc
	Drift    float64 // eastward drift, degrees of longitude per unit phase
}

// StandardPressure is the mean sea-level pressure in hPa that synthetic
// fields are built around.
const StandardPressure = 1013.25

// DefaultSystems is a small mid-latitude pattern used by fixtures and tests.
var DefaultSystems = []System{
	{Lat: 55, Lon: -30, Delta: -32, Radius: 14, Drift: 12},
	{Lat: 35, Lon: -40, Delta: 18, Radius: 22, Drift: 6},
	{Lat: -50, Lon: 110, Delta: -28, Radius: 16, Drift: 15},
	{Lat: 30, Lon: 140, Delta: 14, Radius: 25, Drift: 5},
	{Lat: 65, Lon: 90, Delta: 22, Radius: 18, Drift: -3},
}

// Synthetic builds a smooth pressure field from systems advanced by phase.
// Column 180 is a copy of column 0 and both pole rows are uniform, matching
// the layout of real payloads.
func Synthetic(systems []System, phase float64) Grid {
	g := New()
	for row := 0; row < Height; row++ {
		lat := 90 - 180*float64(row)/float64(Height-1)
		for col := 0; col < Width-1; col++ {
			lon := -180 + 360*float64(col)/float64(Width-1)
			v := StandardPressure
			for _, s := range systems {
				d := arcDegrees(lat, lon, s.Lat, s.Lon+s.Drift*phase)
				v += s.Delta * math.Exp(-(d*d)/(2*s.Radius*s.Radius))
			}
			g[row*Width+col] = v
		}
		g[row*Width+Width-1] = g[row*Width]
	}
	for _, row := range []int{0, Height - 1} {
		mean := 0.0
		for col := 0; col < Width-1; col++ {
			mean += g[row*Width+col]
		}
		mean /= float64(Width - 1)
		for col := 0; col < Width; col++ {
			g[row*Width+col] = mean
		}
	}
	return g
}

// arcDegrees is the great-circle distance between two points in degrees.
func arcDegrees(lat1, lon1, lat2, lon2 float64) float64 {
	φ1, φ2 := lat1*math.Pi/180, lat2*math.Pi/180
	Δλ := (lon2 - lon1) * math.Pi / 180
	c := math.Sin(φ1)*math.Sin(φ2) + math.Cos(φ1)*math.Cos(φ2)*math.Cos(Δλ)
	return math.Acos(math.Max(-1, math.Min(1, c))) * 180 / math.Pi
}
