package model

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxAge is the highest age tracked by age-banded tables.
const MaxAge = 99

// ParseAgeProbabilities expands a band map like {"0-13": 0.5, "13-100": 1.0}
// into a per-age slice of length MaxAge+1. Bands are half-open [lo, hi);
// ages not covered by any band take fill.
func ParseAgeProbabilities(bands map[string]float64, fill float64) ([]float64, error) {
	out := make([]float64, MaxAge+1)
	for i := range out {
		out[i] = fill
	}
	for band, value := range bands {
		lo, hi, err := ParseAgeBand(band)
		if err != nil {
			return nil, err
		}
		for age := lo; age < hi && age <= MaxAge; age++ {
			out[age] = value
		}
	}
	return out, nil
}

// ParseAgeBand parses "lo-hi" into its bounds.
func ParseAgeBand(band string) (lo, hi int, err error) {
	parts := strings.SplitN(band, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("age band %q: want \"lo-hi\"", band)
	}
	if lo, err = strconv.Atoi(strings.TrimSpace(parts[0])); err != nil {
		return 0, 0, fmt.Errorf("age band %q: %w", band, err)
	}
	if hi, err = strconv.Atoi(strings.TrimSpace(parts[1])); err != nil {
		return 0, 0, fmt.Errorf("age band %q: %w", band, err)
	}
	if hi < lo {
		return 0, 0, fmt.Errorf("age band %q: inverted bounds", band)
	}
	return lo, hi, nil
}
