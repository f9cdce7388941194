package classifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/okian/drybean/pkg/logger"
)

// Default artifact locations, relative to the working directory.
const (
	DefaultModelPath  = "dry_bean_rf_s.onnx"
	DefaultScalerPath = "scaler.json"
)

var errNoOpener = errors.New("no opener configured")

// Option applies a configuration option to the loader.
type Option func(*loader)

// WithModelPath sets the classifier artifact path.
func WithModelPath(path string) Option {
	return func(l *loader) {
		if path != "" {
			l.modelPath = path
		}
	}
}

// WithScalerPath sets the scaler artifact path.
func WithScalerPath(path string) Option {
	return func(l *loader) {
		if path != "" {
			l.scalerPath = path
		}
	}
}

// WithScaling selects the scaled variant (true) or the raw variant (false).
func WithScaling(enabled bool) Option {
	return func(l *loader) {
		l.scaling = enabled
	}
}

// WithModelOpener sets the classifier deserializer.
func WithModelOpener(open ModelOpener) Option {
	return func(l *loader) {
		l.openModel = open
	}
}

// WithScalerOpener sets the scaler deserializer.
func WithScalerOpener(open ScalerOpener) Option {
	return func(l *loader) {
		l.openScaler = open
	}
}

// WithLogger sets the logger used for load status lines.
func WithLogger(log logger.Logger) Option {
	return func(l *loader) {
		if log != nil {
			l.log = log
		}
	}
}

type loader struct {
	modelPath  string
	scalerPath string
	scaling    bool
	openModel  ModelOpener
	openScaler ScalerOpener
	log        logger.Logger
}

// Load reads the classifier (and, in the scaled variant, the scaler) from disk.
// It never fails: problems are recorded in Artifacts.LoadError and the
// corresponding handles are left nil so the process can still serve the form.
func Load(ctx context.Context, opts ...Option) *Artifacts {
	l := &loader{
		modelPath:  DefaultModelPath,
		scalerPath: DefaultScalerPath,
		scaling:    true,
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}

	a := &Artifacts{
		Scaling:    l.scaling,
		ModelPath:  l.modelPath,
		ScalerPath: l.scalerPath,
	}
	if !l.scaling {
		a.ScalerPath = ""
	}

	model, scaler, loadErr := l.load(ctx)
	a.Model = model
	a.Scaler = scaler
	a.LoadError = loadErr

	if loadErr != "" {
		l.log.Error(ctx, loadErr,
			logger.String("model_path", l.modelPath),
			logger.Any("scaling", l.scaling))
	}
	return a
}

func (l *loader) load(ctx context.Context) (Classifier, Scaler, string) {
	var (
		model   Classifier
		scaler  Scaler
		loadErr string
	)

	if exists(l.modelPath) {
		m, err := l.openModelAt(ctx, l.modelPath)
		if err != nil {
			return nil, nil, openFailure(err)
		}
		model = m
		l.log.Info(ctx, fmt.Sprintf("Model '%s' has been loaded.", l.modelPath))
	} else {
		loadErr = fmt.Sprintf("File model '%s' not found.", l.modelPath)
	}

	if !l.scaling {
		return model, nil, loadErr
	}

	if exists(l.scalerPath) {
		s, err := l.openScalerAt(ctx, l.scalerPath)
		if err != nil {
			closeQuietly(model)
			return nil, nil, openFailure(err)
		}
		scaler = s
		l.log.Info(ctx, fmt.Sprintf("Scaler '%s' has been loaded.", l.scalerPath))
	} else if loadErr == "" {
		loadErr = fmt.Sprintf("File scaler '%s' not found.", l.scalerPath)
	}

	return model, scaler, loadErr
}

func (l *loader) openModelAt(ctx context.Context, path string) (Classifier, error) {
	if l.openModel == nil {
		return nil, fmt.Errorf("model: %w", errNoOpener)
	}
	m, err := l.openModel(ctx, path)
	if err == nil && m == nil {
		err = fmt.Errorf("model %q: opener returned no classifier", path)
	}
	return m, err
}

func (l *loader) openScalerAt(ctx context.Context, path string) (Scaler, error) {
	if l.openScaler == nil {
		return nil, fmt.Errorf("scaler: %w", errNoOpener)
	}
	s, err := l.openScaler(ctx, path)
	if err == nil && s == nil {
		err = fmt.Errorf("scaler %q: opener returned no scaler", path)
	}
	return s, err
}

func openFailure(err error) string {
	return "Failed to load ML model or scaler: " + err.Error()
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func closeQuietly(v any) {
	if c, ok := v.(io.Closer); ok {
		_ = c.Close()
	}
}
