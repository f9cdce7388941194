// Package service provides the prediction service behind the HTTP API.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/okian/drybean/internal/domain/classifier"
	"github.com/okian/drybean/internal/domain/schema"
	"github.com/okian/drybean/pkg/logger"
	"github.com/okian/drybean/pkg/metrics"
)

// Prediction is the outcome of one successful classification.
type Prediction struct {
	Label         string             `json:"prediction"`
	Probabilities map[string]float64 `json:"probabilities"`
}

// Service validates prediction requests and runs them through the loaded artifacts.
type Service struct {
	artifacts *classifier.Artifacts
	logger    logger.Logger
	now       func() time.Time
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithArtifacts sets the artifacts loaded at startup.
func WithArtifacts(a *classifier.Artifacts) Option {
	return func(s *Service) {
		s.artifacts = a
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces the time source used for latency metrics.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a new Service.
func New(opts ...Option) *Service {
	s := &Service{
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	return s
}

// Artifacts returns the artifacts the service was built with.
func (s *Service) Artifacts() *classifier.Artifacts {
	return s.artifacts
}

// Scaling reports whether requests are normalized before inference.
func (s *Service) Scaling() bool {
	return s.artifacts != nil && s.artifacts.Scaling
}

// Ready returns an error carrying the not-loaded message when the variant cannot serve.
func (s *Service) Ready() error {
	if err := s.artifacts.Ready(); err != nil {
		return newError(ErrModelNotLoaded, err.Error(), nil)
	}
	return nil
}

// Predict decodes a JSON object body and classifies it.
func (s *Service) Predict(ctx context.Context, body []byte) (*Prediction, error) {
	if err := s.Ready(); err != nil {
		metrics.RecordPredictionError(Reason(err))
		return nil, err
	}
	input, err := decodeObject(body)
	if err != nil {
		metrics.RecordPredictionError(Reason(err))
		return nil, err
	}
	return s.PredictFeatures(ctx, input)
}

// PredictFeatures classifies an already decoded request object.
func (s *Service) PredictFeatures(ctx context.Context, input map[string]any) (*Prediction, error) {
	p, err := s.predict(ctx, input)
	if err != nil {
		metrics.RecordPredictionError(Reason(err))
		var e *Error
		if errors.As(err, &e) && !IsClientError(err) {
			s.logger.Error(ctx, "prediction failed",
				logger.String("reason", Reason(err)),
				logger.String("detail", e.Detail()))
		}
		return nil, err
	}
	metrics.RecordPrediction(p.Label)
	s.logger.Debug(ctx, "prediction served", logger.String("label", p.Label))
	return p, nil
}

func (s *Service) predict(ctx context.Context, input map[string]any) (*Prediction, error) {
	if err := s.Ready(); err != nil {
		return nil, err
	}
	if len(input) == 0 {
		return nil, newError(ErrBadRequest, MsgNoJSON, nil)
	}
	vector, err := assemble(input)
	if err != nil {
		return nil, err
	}

	start := s.now()
	index, proba, err := s.infer(ctx, vector)
	metrics.RecordInferenceLatency(float64(s.now().Sub(start).Microseconds()) / 1000)
	if err != nil {
		return nil, newError(ErrInference, MsgUnexpected, err)
	}

	label, ok := schema.Label(index)
	if !ok {
		return nil, newError(ErrInvalidClassIndex,
			fmt.Sprintf("Model returned an invalid class index: %d.", index), nil)
	}
	if len(proba) != schema.NumClasses {
		return nil, newError(ErrInference, MsgUnexpected,
			fmt.Errorf("%w: got %d probabilities, want %d", classifier.ErrArtifactShape, len(proba), schema.NumClasses))
	}

	probabilities := make(map[string]float64, schema.NumClasses)
	for i, name := range schema.Labels {
		p := proba[i]
		if math.IsNaN(p) || p < 0 || p > 1 {
			return nil, newError(ErrInference, MsgUnexpected,
				fmt.Errorf("%w: probability for %s is %v", classifier.ErrArtifactShape, name, p))
		}
		probabilities[name] = p
	}
	return &Prediction{Label: label, Probabilities: probabilities}, nil
}

// infer runs the scaler (scaled variant only) and both model calls. A panic in
// an adapter is turned into an error.
func (s *Service) infer(ctx context.Context, vector []float64) (index int, proba []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during inference: %v", r)
		}
	}()

	if s.artifacts.Scaling {
		vector, err = s.artifacts.Scaler.Transform(ctx, vector)
		if err != nil {
			return 0, nil, fmt.Errorf("scale features: %w", err)
		}
	}
	if e, ok := s.artifacts.Model.(classifier.Evaluator); ok {
		index, proba, err = e.Classify(ctx, vector)
		if err != nil {
			return 0, nil, fmt.Errorf("classify: %w", err)
		}
		return index, proba, nil
	}
	index, err = s.artifacts.Model.Predict(ctx, vector)
	if err != nil {
		return 0, nil, fmt.Errorf("predict: %w", err)
	}
	proba, err = s.artifacts.Model.PredictProba(ctx, vector)
	if err != nil {
		return 0, nil, fmt.Errorf("predict probabilities: %w", err)
	}
	return index, proba, nil
}

// decodeObject accepts exactly one non-empty JSON object.
func decodeObject(body []byte) (map[string]any, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, newError(ErrBadRequest, MsgNoJSON, nil)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, newError(ErrBadRequest, MsgNoJSON, err)
	}
	if dec.More() {
		return nil, newError(ErrBadRequest, MsgNoJSON, errors.New("trailing data after JSON value"))
	}
	obj, ok := v.(map[string]any)
	if !ok || len(obj) == 0 {
		return nil, newError(ErrBadRequest, MsgNoJSON, nil)
	}
	return obj, nil
}

// assemble builds the model vector in schema order, stopping at the first bad feature.
func assemble(input map[string]any) ([]float64, error) {
	vector := make([]float64, 0, schema.NumFeatures)
	for _, f := range schema.Features {
		raw, ok := input[f.Name]
		if s, isString := raw.(string); !ok || (isString && s == "") {
			return nil, newError(ErrMissingFeature,
				fmt.Sprintf("Feature '%s' is missing from the request.", f.Name), nil)
		}
		v, ok := coerce(raw)
		if !ok {
			return nil, newError(ErrInvalidFeature,
				fmt.Sprintf("Invalid input for '%s'. A numeric value is required.", f.Name), nil)
		}
		vector = append(vector, v)
	}
	return vector, nil
}

// coerce converts JSON numbers and decimal numeric strings to finite values.
// Booleans, null, objects, arrays, NaN, infinities and hex floats are not numbers.
func coerce(raw any) (float64, bool) {
	switch v := raw.(type) {
	case json.Number:
		return parseDecimal(v.String())
	case float64:
		return v, finite(v)
	case string:
		return parseDecimal(strings.TrimSpace(v))
	default:
		return 0, false
	}
}

func parseDecimal(s string) (float64, bool) {
	digits := strings.TrimLeft(s, "+-")
	if len(digits) > 1 && digits[0] == '0' && (digits[1] == 'x' || digits[1] == 'X') {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, finite(f)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
