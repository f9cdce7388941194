package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/drybean/internal/adapters/http/api"
	"github.com/okian/drybean/internal/adapters/http/site"
	"github.com/okian/drybean/internal/adapters/http/swagger"
	"github.com/okian/drybean/internal/adapters/onnx"
	"github.com/okian/drybean/internal/adapters/scaler"
	app "github.com/okian/drybean/internal/app"
	"github.com/okian/drybean/internal/config"
	"github.com/okian/drybean/internal/domain/classifier"
	"github.com/okian/drybean/internal/domain/schema"
	"github.com/okian/drybean/pkg/logger"
	"github.com/okian/drybean/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Artifacts load once; failures are kept and surfaced per request.
	artifacts := loadArtifacts(ctx, cfg, loggerInstance)
	defer func() {
		if err := artifacts.Close(); err != nil {
			loggerInstance.Warn(ctx, "failed to release model", logger.Error(err))
		}
		if err := onnx.Shutdown(); err != nil {
			loggerInstance.Warn(ctx, "failed to shut down onnx runtime", logger.Error(err))
		}
	}()

	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, cfg, artifacts, loggerInstance),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		loggerInstance.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.Bool("scaling", cfg.Scaling))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(context.Background(), "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(shutdownCtx, "server stopped")
}

// loadArtifacts opens the configured model (and scaler for the scaled variant)
// and publishes the outcome as metrics.
func loadArtifacts(ctx context.Context, cfg *config.Config, log logger.Logger) *classifier.Artifacts {
	artifacts := classifier.Load(ctx,
		classifier.WithModelPath(cfg.ModelPath),
		classifier.WithScalerPath(cfg.ScalerPath),
		classifier.WithScaling(cfg.Scaling),
		classifier.WithModelOpener(onnx.Opener(onnx.Config{
			LibraryPath:       cfg.ONNXLibraryPath,
			InputName:         cfg.ONNXInputName,
			LabelOutput:       cfg.ONNXLabelOutput,
			ProbabilityOutput: cfg.ONNXProbabilityOutput,
			Features:          schema.NumFeatures,
			Classes:           schema.NumClasses,
		})),
		classifier.WithScalerOpener(scaler.Opener(schema.NumFeatures)),
		classifier.WithLogger(log),
	)
	metrics.SetModelLoaded(artifacts.Ready() == nil)
	metrics.SetScalingEnabled(artifacts.Scaling)
	return artifacts
}

// newHandler wires every route onto one mux behind the request id middleware.
func newHandler(ctx context.Context, cfg *config.Config, artifacts *classifier.Artifacts, log logger.Logger) http.Handler {
	svc := app.New(
		app.WithLogger(log),
		app.WithArtifacts(artifacts),
	)

	mux := http.NewServeMux()

	// Register ReDoc and the OpenAPI document
	swagger.Register(ctx, mux)

	// Register prediction API routes with the service dependency.
	api.NewServer(svc,
		api.WithLogger(log),
		api.WithMaxBodyBytes(cfg.MaxBodyBytes),
		api.WithCORSOrigin(cfg.CORSAllowOrigin),
	).Register(ctx, mux)

	// The form owns "/" and the static assets.
	site.Register(ctx, mux, site.StaticLoadError(artifacts.LoadError))

	return api.RequestIDMiddleware(mux)
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
