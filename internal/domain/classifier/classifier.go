// Package classifier defines the inference capabilities the service needs and
// loads them from disk once at process start.
package classifier

import (
	"context"
	"errors"
	"io"
)

// Classifier maps an ordered feature vector to a class index and per-class probabilities.
type Classifier interface {
	Predict(ctx context.Context, vector []float64) (int, error)
	PredictProba(ctx context.Context, vector []float64) ([]float64, error)
}

// Evaluator is implemented by classifiers that produce the label and the
// probabilities from a single model run. The service prefers it when present.
type Evaluator interface {
	Classify(ctx context.Context, vector []float64) (int, []float64, error)
}

// Scaler applies the feature normalization fixed at training time.
type Scaler interface {
	Transform(ctx context.Context, vector []float64) ([]float64, error)
}

// ModelOpener deserializes a classifier artifact.
type ModelOpener func(ctx context.Context, path string) (Classifier, error)

// ScalerOpener deserializes a scaler artifact.
type ScalerOpener func(ctx context.Context, path string) (Scaler, error)

// Artifacts is the load-once state shared by request handlers. It is not
// modified after Load returns.
type Artifacts struct {
	Model      Classifier
	Scaler     Scaler
	Scaling    bool
	ModelPath  string
	ScalerPath string
	LoadError  string
}

// Ready reports whether the artifacts needed by the configured variant are present.
func (a *Artifacts) Ready() error {
	if a == nil {
		return &notLoadedError{msg: "Model is not loaded."}
	}
	if a.Scaling {
		if a.Model == nil || a.Scaler == nil {
			return &notLoadedError{msg: "Model or Scaler is not loaded. " + a.LoadError}
		}
		return nil
	}
	if a.Model == nil {
		return &notLoadedError{msg: "Model is not loaded. " + a.LoadError}
	}
	return nil
}

// Close releases handles that hold native resources.
func (a *Artifacts) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	if c, ok := a.Model.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if c, ok := a.Scaler.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

type notLoadedError struct {
	msg string
}

func (e *notLoadedError) Error() string { return e.msg }

func (e *notLoadedError) Is(target error) bool { return target == ErrNotLoaded }
