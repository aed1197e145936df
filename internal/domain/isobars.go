package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// StandardIsobars returns lo, lo+step, ... up to and including hi.
func StandardIsobars(lo, hi, step float64) ([]float64, error) {
	if step <= 0 || hi < lo || math.IsNaN(lo) || math.IsNaN(hi) {
		return nil, fmt.Errorf("%w: isobar range %v..%v step %v", ErrInvalidRequest, lo, hi, step)
	}
	n := int(math.Floor((hi-lo)/step+1e-9)) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out, nil
}

// ParseIsoValues parses either a comma list ("996,1000,1004") or a range
// "lo:hi:step" ("960:1040:4").
func ParseIsoValues(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty iso-value list", ErrInvalidRequest)
	}
	if parts := strings.Split(s, ":"); len(parts) == 3 {
		var nums [3]float64
		for i, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: isobar range %q: %w", ErrInvalidRequest, s, err)
			}
			nums[i] = v
		}
		return StandardIsobars(nums[0], nums[1], nums[2])
	}

	fields := strings.Split(s, ",")
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: iso-value %q: %w", ErrInvalidRequest, f, err)
		}
		out = append(out, v)
	}
	return out, nil
}
