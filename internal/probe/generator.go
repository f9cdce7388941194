package probe

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/okian/drybean/internal/domain/schema"
	"github.com/okian/drybean/pkg/logger"
)

// newSource returns a seeded generator; seed 0 picks one from the clock.
func newSource(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// GenerateSamples creates n samples whose features are drawn uniformly inside
// each feature range and rounded to the feature precision, the way the form's
// randomize button does.
func GenerateSamples(ctx context.Context, n int, seed uint64) ([]Sample, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSamples, n)
	}
	logger.Get().Info(ctx, "generating samples", logger.Int("samples", n))

	src := newSource(seed)
	samples := make([]Sample, n)
	for i := range samples {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during sample generation: %w", err)
		}
		samples[i] = generateSingleSample(src)
	}
	return samples, nil
}

func generateSingleSample(src *rand.Rand) Sample {
	features := make(map[string]float64, schema.NumFeatures)
	for _, f := range schema.Features {
		features[f.Name] = schema.Round(f.Min+src.Float64()*(f.Max-f.Min), f.Decimals)
	}
	return Sample{ID: uuid.NewString(), Features: features}
}
