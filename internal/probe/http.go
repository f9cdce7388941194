package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/drybean/pkg/logger"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client *http.Client
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{Timeout: timeout},
	}
}

// Get performs a GET request and returns the status and body.
func (c *HTTPClient) Get(ctx context.Context, url string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req)
}

// Post performs a POST request with a JSON body and returns the status and body.
func (c *HTTPClient) Post(ctx context.Context, url string, body any) (int, []byte, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *HTTPClient) do(req *http.Request) (int, []byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

// submitSamples posts samples concurrently using a worker pool and returns
// results in sample order. Samples skipped after cancellation are dropped.
func submitSamples(ctx context.Context, config *Config, samples []Sample, stats *Stats) []Result {
	log := logger.Get()
	log.Info(ctx, "submitting samples",
		logger.Int("samples", len(samples)),
		logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/predict"
	results := make([]Result, len(samples))

	var (
		submitted  int64
		successful int64
		failed     int64
		lastReport atomic.Int64
	)

	indexChan := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range indexChan {
				if ctx.Err() != nil {
					return
				}
				result := submitSingleSample(ctx, client, url, samples[index])
				results[index] = result

				total := atomic.AddInt64(&submitted, 1)
				if result.Success {
					atomic.AddInt64(&successful, 1)
				} else {
					atomic.AddInt64(&failed, 1)
				}

				now := time.Now().UnixNano()
				last := lastReport.Load()
				if config.Verbose && now-last >= int64(ProgressInterval) && lastReport.CompareAndSwap(last, now) {
					log.Debug(ctx, "progress",
						logger.Int("submitted", int(total)),
						logger.Int("of", len(samples)),
						logger.Int("successful", int(atomic.LoadInt64(&successful))),
						logger.Int("failed", int(atomic.LoadInt64(&failed))))
				}
			}
		}()
	}

	go func() {
		defer close(indexChan)
		for i := range samples {
			select {
			case <-ctx.Done():
				return
			case indexChan <- i:
			}
		}
	}()

	wg.Wait()

	stats.SamplesSubmitted = int(atomic.LoadInt64(&submitted))
	log.Info(ctx, "sample submission completed",
		logger.Int("successful", int(atomic.LoadInt64(&successful))),
		logger.Int("failed", int(atomic.LoadInt64(&failed))))
	if stats.SamplesSubmitted == len(samples) {
		return results
	}
	done := make([]Result, 0, stats.SamplesSubmitted)
	for _, r := range results {
		if r.Sample.ID != "" {
			done = append(done, r)
		}
	}
	return done
}

// submitSingleSample posts one sample and records the decoded answer.
func submitSingleSample(ctx context.Context, client *HTTPClient, url string, sample Sample) Result {
	result := Result{Sample: sample}
	status, body, err := client.Post(ctx, url, sample.Features)
	result.StatusCode = status
	if err != nil {
		result.Error = err.Error()
		return result
	}
	var resp predictResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		result.Error = fmt.Sprintf("undecodable response: %v", err)
		return result
	}
	result.Success = resp.Success && status == http.StatusOK
	result.Prediction = resp.Prediction
	result.Probabilities = resp.Probabilities
	result.Error = resp.Error
	return result
}
