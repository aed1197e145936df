// Package geo maps pressure-grid positions onto the globe.
//
// The grid-to-longitude step inverts the equirectangular texture convention
// used by the globe's terrain and precipitation layers: horizontal texture
// coordinate u = x/180 maps to longitude 270 - 360u. Cartesian output is
// Y-up with +X at (0°, 0°) and +Z at (0°, 90°E), on a unit sphere. Changing
// either convention misaligns contours against those overlays.
package geo

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/couchcryptid/isobar-contour-service/internal/grid"
)

// LatLon is a geographic position in degrees.
type LatLon struct {
	Lat float64
	Lon float64
}

// GridToGeo converts a fractional grid position to latitude and longitude.
// Row 0 is +90° and row Height-1 is -90°.
func GridToGeo(x, y float64) LatLon {
	u := x / float64(grid.Width-1)
	return LatLon{
		Lat: 90 - 180*y/float64(grid.Height-1),
		Lon: NormalizeLon(270 - 360*u),
	}
}

// GeoToCartesian converts degrees to a point on the unit sphere.
func GeoToCartesian(p LatLon) r3.Vec {
	φ := toRad(p.Lat)
	λ := toRad(p.Lon)
	cosφ := math.Cos(φ)
	return r3.Vec{
		X: cosφ * math.Cos(λ),
		Y: math.Sin(φ),
		Z: cosφ * math.Sin(λ),
	}
}

// GridToCartesian is GridToGeo followed by GeoToCartesian.
func GridToCartesian(x, y float64) r3.Vec {
	return GeoToCartesian(GridToGeo(x, y))
}

// NormalizeLon wraps a longitude into [-180, 180].
func NormalizeLon(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}

func toRad(d float64) float64 { return d * math.Pi / 180 }
