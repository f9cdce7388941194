package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/drybean/pkg/logger"
)

// Error constants.
var (
	ErrUnhealthy      = errors.New("service is not healthy")
	ErrModelNotReady  = errors.New("model is not loaded")
	ErrInvalidAnswer  = errors.New("invalid prediction answers")
	ErrInvalidSamples = errors.New("sample count must not be negative")
)

// Run executes the complete probe and returns its statistics. It fails when the
// service is unreachable or not loaded, or when any answer breaks the contract.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	if config.Samples < 0 {
		return stats, fmt.Errorf("%w: %d", ErrInvalidSamples, config.Samples)
	}
	if config.Workers < 1 {
		config.Workers = 1
	}

	logger.Get().Info(ctx, "starting classifier probe",
		logger.String("baseURL", config.BaseURL),
		logger.Int("samples", config.Samples),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Bool("verbose", config.Verbose))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate samples
	samples, err := GenerateSamples(ctx, config.Samples, config.Seed)
	if err != nil {
		return stats, fmt.Errorf("sample generation failed: %w", err)
	}
	stats.SamplesGenerated = len(samples)

	// Step 3: Submit samples concurrently
	results := submitSamples(ctx, config, samples, stats)

	// Step 4: Verify answers
	verifyResults(ctx, results, stats)

	// Step 5: Save samples and answers
	if err := saveResultsToFile(ctx, config, results); err != nil {
		logger.Get().Warn(ctx, "failed to save results to file", logger.Error(err))
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	displayHistogram(ctx, stats)

	if stats.Invalid > 0 {
		return stats, fmt.Errorf("%w: %d of %d", ErrInvalidAnswer, stats.Invalid, stats.SamplesSubmitted)
	}
	logger.Get().Info(ctx, "probe completed successfully")
	return stats, nil
}

// checkServiceHealth verifies the service is running with its model loaded.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	status, body, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, status)
	}
	var health healthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return fmt.Errorf("%w: undecodable health body: %w", ErrUnhealthy, err)
	}
	if !health.ModelLoaded {
		return fmt.Errorf("%w: %s", ErrModelNotReady, health.LoadError)
	}

	logger.Get().Info(ctx, "service is healthy", logger.Bool("scaling", health.Scaling))
	return nil
}

// saveResultsToFile writes samples and answers as one JSON document.
func saveResultsToFile(ctx context.Context, config *Config, results []Result) error {
	if len(results) == 0 {
		return errors.New("no results to save")
	}

	filename := config.OutputFile
	if filename == "" {
		timestamp := time.Now().Format("20060102_150405")
		filename = "probe_results_" + timestamp + ".json"
	}

	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(struct {
		Results []Result `json:"results"`
	}{Results: results}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), logFilePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "results saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final probe statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, samplesPerSecond float64

	if stats.SamplesSubmitted > 0 {
		successRate = float64(stats.Successful) / float64(stats.SamplesSubmitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		samplesPerSecond = float64(stats.SamplesSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("samplesGenerated", stats.SamplesGenerated),
		logger.Int("samplesSubmitted", stats.SamplesSubmitted),
		logger.Int("successful", stats.Successful),
		logger.Int("failed", stats.Failed),
		logger.Int("invalid", stats.Invalid),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("samplesPerSecond", samplesPerSecond))
}
