// Package scaler reads the standardization parameters exported with the
// trained model and applies them to feature vectors.
package scaler

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/okian/drybean/internal/domain/classifier"
)

// Standard applies (x - mean) / scale element-wise.
type Standard struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// New validates parameters and returns a scaler over width features.
func New(mean, scale []float64, width int) (*Standard, error) {
	if len(mean) != width || len(scale) != width {
		return nil, fmt.Errorf("%w: scaler has %d means and %d scales, want %d",
			classifier.ErrArtifactShape, len(mean), len(scale), width)
	}
	s := &Standard{
		Mean:  append([]float64(nil), mean...),
		Scale: make([]float64, width),
	}
	for i, v := range scale {
		if math.IsNaN(v) || math.IsInf(v, 0) || math.IsNaN(mean[i]) || math.IsInf(mean[i], 0) {
			return nil, fmt.Errorf("%w: non-finite parameter at %d", classifier.ErrArtifactShape, i)
		}
		// A zero-variance feature is left unscaled.
		if v == 0 {
			v = 1
		}
		s.Scale[i] = v
	}
	return s, nil
}

// Open reads a JSON artifact of the form {"mean": [...], "scale": [...]}.
func Open(path string, width int) (*Standard, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scaler: %w", err)
	}
	var params Standard
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("parse scaler: %w", err)
	}
	return New(params.Mean, params.Scale, width)
}

// Opener adapts Open to the loader's signature.
func Opener(width int) classifier.ScalerOpener {
	return func(_ context.Context, path string) (classifier.Scaler, error) {
		s, err := Open(path, width)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Transform returns a new scaled vector; the input is not modified.
func (s *Standard) Transform(_ context.Context, vector []float64) ([]float64, error) {
	if len(vector) != len(s.Mean) {
		return nil, fmt.Errorf("%w: got %d features, want %d",
			classifier.ErrArtifactShape, len(vector), len(s.Mean))
	}
	out := make([]float64, len(vector))
	for i, v := range vector {
		out[i] = (v - s.Mean[i]) / s.Scale[i]
	}
	return out, nil
}
