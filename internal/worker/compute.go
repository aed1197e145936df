package worker

import (
	"fmt"

	"github.com/couchcryptid/isobar-contour-service/internal/contour"
	"github.com/couchcryptid/isobar-contour-service/internal/domain"
	"github.com/couchcryptid/isobar-contour-service/internal/grid"
)

// Compute blends two timestep grids and extracts the requested isobars in
// the request's output format. It does not modify its inputs.
func Compute(lower, upper grid.Grid, req domain.Request) (domain.Response, error) {
	blended, err := grid.Interpolate(lower, upper, req.Blend)
	if err != nil {
		return domain.Response{}, fmt.Errorf("interpolate timesteps %d/%d: %w", req.LowerIndex, req.UpperIndex(), err)
	}

	resp := domain.Response{
		Token:   req.Token,
		Format:  req.OutputFormat(),
		Outcome: domain.OutcomeOK,
	}
	switch resp.Format {
	case domain.FormatGeoJSON:
		data, err := contour.GeoJSON(blended, req.IsoValues)
		if err != nil {
			return domain.Response{}, err
		}
		resp.GeoJSON = data
		resp.Vertices = []float32{}
		for _, iso := range req.IsoValues {
			contour.Walk(blended, iso, func(contour.Segment) { resp.Segments++ })
		}
	default:
		resp.Vertices = contour.Extract(blended, req.IsoValues)
		resp.Segments = len(resp.Vertices) / contour.FloatsPerSegment
	}
	resp.ComputedAt = domain.Now()
	return resp, nil
}
