package domain

import (
	"fmt"
	"math"
	"time"
)

// Format selects the response payload.
type Format string

const (
	FormatVertices Format = "vertices"
	FormatGeoJSON  Format = "geojson"
)

// TimestepDescriptor names one forecast timestep and the resource holding
// its pressure grid.
type TimestepDescriptor struct {
	Date     string `json:"date"`     // YYYYMMDD
	Cycle    string `json:"cycle"`    // "00z", "06z", ...
	Resource string `json:"resource"` // absolute URL or relative to the data base URL
}

// ValidTime returns the run time described by Date and Cycle.
func (d TimestepDescriptor) ValidTime() (time.Time, error) {
	day, err := time.Parse("20060102", d.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestep date %q: %w", d.Date, err)
	}
	hour, err := parseCycle(d.Cycle)
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(time.Duration(hour) * time.Hour), nil
}

// Request asks for the isobars of a moment between two adjacent timesteps.
type Request struct {
	LowerIndex  int                  `json:"lower_timestep_index"`
	Blend       float64              `json:"blend_factor"`
	IsoValues   []float64            `json:"iso_values"`
	Token       int64                `json:"correlation_token"`
	Timesteps   []TimestepDescriptor `json:"timesteps"`
	DataBaseURL string               `json:"data_base_url,omitempty"`
	Format      Format               `json:"format,omitempty"`

	// SkipIfStale lets a WebSocket session drop this request's response
	// when a response with a higher token was already delivered to it.
	// Only meaningful when the caller's tokens increase with submission.
	SkipIfStale bool `json:"skip_if_stale,omitempty"`
}

// UpperIndex is the timestep blended toward.
func (r Request) UpperIndex() int { return r.LowerIndex + 1 }

// OutputFormat returns the requested format, defaulting to vertices.
func (r Request) OutputFormat() Format {
	if r.Format == "" {
		return FormatVertices
	}
	return r.Format
}

// Validate checks the request before any fetch is issued.
func (r Request) Validate() error {
	if r.LowerIndex < 0 || r.UpperIndex() >= len(r.Timesteps) {
		return fmt.Errorf("%w: index %d needs a successor in %d timesteps",
			ErrUnknownTimestep, r.LowerIndex, len(r.Timesteps))
	}
	if math.IsNaN(r.Blend) || r.Blend < 0 || r.Blend > 1 {
		return fmt.Errorf("%w: blend factor %v outside [0,1]", ErrInvalidRequest, r.Blend)
	}
	if len(r.IsoValues) == 0 {
		return fmt.Errorf("%w: no iso-values", ErrInvalidRequest)
	}
	for _, v := range r.IsoValues {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: iso-value %v", ErrInvalidRequest, v)
		}
	}
	switch r.OutputFormat() {
	case FormatVertices, FormatGeoJSON:
	default:
		return fmt.Errorf("%w: unknown format %q", ErrInvalidRequest, r.Format)
	}
	return nil
}
