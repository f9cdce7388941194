// Package probe drives a running classifier with random beans and checks
// that every answer honors the prediction contract.
package probe

import "time"

// Config holds configuration for a probe run
type Config struct {
	BaseURL    string        // Base URL of the service
	Samples    int           // Number of random samples to submit
	Workers    int           // Number of concurrent workers
	Timeout    time.Duration // HTTP request timeout
	Seed       uint64        // Random seed; 0 draws a fresh one
	OutputFile string        // Output file for samples and results
	LogFile    string        // Log file for probe output
	Verbose    bool          // Enable verbose logging
}

// Sample is one generated request body
type Sample struct {
	ID       string             `json:"id"`
	Features map[string]float64 `json:"features"`
}

// Result pairs a sample with the service's answer
type Result struct {
	Sample        Sample             `json:"sample"`
	StatusCode    int                `json:"status_code"`
	Success       bool               `json:"success"`
	Prediction    string             `json:"prediction,omitempty"`
	Probabilities map[string]float64 `json:"probabilities,omitempty"`
	Error         string             `json:"error,omitempty"`
	Problem       string             `json:"problem,omitempty"`
}

// predictResponse is the wire shape of both success and failure answers
type predictResponse struct {
	Success       bool               `json:"success"`
	Prediction    string             `json:"prediction"`
	Probabilities map[string]float64 `json:"probabilities"`
	Error         string             `json:"error"`
}

// healthResponse mirrors GET /healthz
type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Scaling     bool   `json:"scaling"`
	LoadError   string `json:"load_error"`
}

// Stats holds probe statistics
type Stats struct {
	SamplesGenerated int
	SamplesSubmitted int
	Successful       int
	Failed           int
	Invalid          int
	Histogram        map[string]int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
