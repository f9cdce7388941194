package probe

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/drybean/pkg/logger"
)

// SetupLogging points the global logger at both stdout and a log file.
// If logFile is empty, a timestamped filename is generated. The returned
// closer releases the file.
func SetupLogging(logFile string, verbose bool) (io.Closer, error) {
	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "probe_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	logger.SetDefault(logger.New(io.MultiWriter(os.Stdout, file)))
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return file, nil
}

// ShowHelp prints usage information for the probe tool.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `Dry Bean Classifier Probe
=========================

Submits random beans to a running classifier and checks every answer.

Usage:
  go run ./cmd/probe [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:5000")
  -samples int
        Number of random samples to submit (default 1000)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 10s)
  -seed uint
        Random seed, 0 for a fresh one (default 0)
  -output string
        Output file for samples and answers (default: probe_results_TIMESTAMP.json)
  -log string
        Log file for probe output (default: probe_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Probe a local service
  go run ./cmd/probe

  # Reproducible run against another host
  go run ./cmd/probe -url http://beans:5000 -samples 5000 -seed 42
`)
}
