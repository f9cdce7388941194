// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	service "github.com/okian/drybean/internal/app"
	"github.com/okian/drybean/internal/domain/classifier"
	"github.com/okian/drybean/pkg/logger"
)

const defaultMaxBodyBytes int64 = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the prediction service.
type Dependencies interface {
	// Ready fails with the not-loaded message when the variant cannot serve.
	Ready() error

	// Predict classifies a raw JSON request body.
	Predict(ctx context.Context, body []byte) (*service.Prediction, error)

	// Artifacts exposes load state for health and model endpoints.
	Artifacts() *classifier.Artifacts
}

// Server wires HTTP routes for the prediction API.
type Server struct {
	healthHandler  *HealthHandler
	modelHandler   *ModelHandler
	predictHandler *PredictHandler
	corsOrigin     string
}

// Option applies a configuration option to the Server.
type Option func(*serverOptions)

type serverOptions struct {
	maxBodyBytes int64
	corsOrigin   string
	logger       logger.Logger
}

// WithMaxBodyBytes caps the size of prediction request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(o *serverOptions) {
		if n > 0 {
			o.maxBodyBytes = n
		}
	}
}

// WithCORSOrigin enables CORS headers for the given origin.
func WithCORSOrigin(origin string) Option {
	return func(o *serverOptions) {
		o.corsOrigin = origin
	}
}

// WithLogger sets the logger used by handlers.
func WithLogger(l logger.Logger) Option {
	return func(o *serverOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	o := serverOptions{maxBodyBytes: defaultMaxBodyBytes}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get()
	}
	return &Server{
		healthHandler:  NewHealthHandler(deps),
		modelHandler:   NewModelHandler(deps),
		predictHandler: NewPredictHandler(deps, o.maxBodyBytes, o.logger),
		corsOrigin:     o.corsOrigin,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/model", MetricsMiddleware(s.modelHandler.HandleModel, "model"))
	mux.HandleFunc("/predict", MetricsMiddleware(CORSMiddleware(s.predictHandler.HandlePredict, s.corsOrigin), "predict"))
	mux.Handle("/metrics", MetricsHandler())
}

// failureResponse is the body of every unsuccessful API call.
type failureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type predictionResponse struct {
	Success       bool               `json:"success"`
	Prediction    string             `json:"prediction"`
	Probabilities map[string]float64 `json:"probabilities"`
}

// writeJSON encodes before writing the header so an unencodable body becomes a
// 500 failure instead of an empty response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		data, _ = json.Marshal(failureResponse{Success: false, Error: service.MsgUnexpected})
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	if msg == "" {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, failureResponse{Success: false, Error: msg})
}
