package contour

import (
	"fmt"

	geojson "github.com/paulmach/go.geojson"

	"github.com/couchcryptid/isobar-contour-service/internal/geo"
	"github.com/couchcryptid/isobar-contour-service/internal/grid"
)

// GeoJSON renders the isobars as a FeatureCollection with one MultiLineString
// per iso-value that has segments, in [lon, lat] order. Segments crossing the
// antimeridian are split.
func GeoJSON(g grid.Grid, isoValues []float64) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, iso := range isoValues {
		var lines [][][]float64
		Walk(g, iso, func(s Segment) {
			a := geo.GridToGeo(s.A.X, s.A.Y)
			b := geo.GridToGeo(s.B.X, s.B.Y)
			for _, part := range geo.SplitAntimeridian(a, b) {
				lines = append(lines, [][]float64{
					{part[0].Lon, part[0].Lat},
					{part[1].Lon, part[1].Lat},
				})
			}
		})
		if len(lines) == 0 {
			continue
		}
		f := geojson.NewMultiLineStringFeature(lines...)
		f.SetProperty("iso_value", iso)
		f.SetProperty("unit", "hPa")
		f.SetProperty("segments", len(lines))
		fc.AddFeature(f)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal isobar geojson: %w", err)
	}
	return data, nil
}
