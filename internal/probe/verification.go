package probe

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/okian/drybean/internal/domain/schema"
	"github.com/okian/drybean/pkg/logger"
)

// verifyResults checks each successful answer and fills the label histogram.
// Answers that break the contract are marked with a Problem.
func verifyResults(ctx context.Context, results []Result, stats *Stats) {
	stats.Histogram = make(map[string]int, schema.NumClasses)
	for i := range results {
		r := &results[i]
		if !r.Success {
			stats.Failed++
			continue
		}
		if err := verifyPrediction(r.Prediction, r.Probabilities); err != nil {
			r.Problem = err.Error()
			stats.Invalid++
			logger.Get().Warn(ctx, "invalid prediction",
				logger.String("sample", r.Sample.ID),
				logger.Error(err))
			continue
		}
		stats.Successful++
		stats.Histogram[r.Prediction]++
	}
}

// verifyPrediction checks one success body against the prediction contract.
func verifyPrediction(label string, probabilities map[string]float64) error {
	if !slices.Contains(schema.Labels, label) {
		return fmt.Errorf("unknown label %q", label)
	}
	if len(probabilities) != schema.NumClasses {
		return fmt.Errorf("got %d probabilities, want %d", len(probabilities), schema.NumClasses)
	}
	sum := 0.0
	for _, name := range schema.Labels {
		p, ok := probabilities[name]
		if !ok {
			return fmt.Errorf("probability for %q is missing", name)
		}
		if p < 0 || p > 1 || math.IsNaN(p) {
			return fmt.Errorf("probability for %q is %v, outside [0, 1]", name, p)
		}
		sum += p
	}
	if math.Abs(sum-1) > ProbabilityTolerance {
		return fmt.Errorf("probabilities sum to %v", sum)
	}
	return nil
}

// displayHistogram logs how often each cultivar was predicted.
func displayHistogram(ctx context.Context, stats *Stats) {
	for _, label := range schema.Labels {
		count := stats.Histogram[label]
		var share float64
		if stats.Successful > 0 {
			share = float64(count) / float64(stats.Successful) * PercentageMultiplier
		}
		logger.Get().Info(ctx, "prediction histogram",
			logger.String("label", label),
			logger.Int("count", count),
			logger.Float64("percent", share))
	}
}
