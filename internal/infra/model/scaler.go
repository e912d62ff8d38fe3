package model

import (
	"fmt"
	"math"
)

// StandardScaler holds the per-column mean and scale of a fitted standard scaler.
type StandardScaler struct {
	Columns []string  `json:"columns,omitempty"`
	Mean    []float64 `json:"mean"`
	Scale   []float64 `json:"scale"`
}

func (s *StandardScaler) Validate() error {
	if len(s.Mean) == 0 {
		return fmt.Errorf("%w: scaler has no columns", ErrInvalidArtifact)
	}
	if len(s.Scale) != len(s.Mean) {
		return fmt.Errorf("%w: scaler mean/scale length mismatch", ErrInvalidArtifact)
	}
	if len(s.Columns) > 0 && len(s.Columns) != len(s.Mean) {
		return fmt.Errorf("%w: scaler columns/mean length mismatch", ErrInvalidArtifact)
	}
	return nil
}

// Transform standardises v as the i-th scaler column.
func (s *StandardScaler) Transform(i int, v float64) float64 {
	scale := s.Scale[i]
	if scale == 0 || math.IsNaN(scale) {
		scale = 1
	}
	return (v - s.Mean[i]) / scale
}
