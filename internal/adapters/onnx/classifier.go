// Package onnx runs the exported bean classifier through ONNX Runtime.
//
// The artifact is expected to be a converted tree ensemble with one float
// input of shape [1, features], an int64 label output of shape [1] and a float
// probability output of shape [1, classes] (converted without a ZipMap node).
package onnx

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/drybean/internal/domain/classifier"
	ort "github.com/yalue/onnxruntime_go"
)

// Default tensor names produced by the usual converter settings.
const (
	DefaultInputName         = "float_input"
	DefaultLabelOutput       = "output_label"
	DefaultProbabilityOutput = "output_probability"
)

// Config describes how to bind the model graph.
type Config struct {
	LibraryPath       string
	InputName         string
	LabelOutput       string
	ProbabilityOutput string
	Features          int
	Classes           int
}

func (c Config) withDefaults() Config {
	if c.InputName == "" {
		c.InputName = DefaultInputName
	}
	if c.LabelOutput == "" {
		c.LabelOutput = DefaultLabelOutput
	}
	if c.ProbabilityOutput == "" {
		c.ProbabilityOutput = DefaultProbabilityOutput
	}
	return c
}

// Classifier holds a session with pre-bound tensors. Runs are serialized
// because the bound tensors are shared between calls.
type Classifier struct {
	mu          sync.Mutex
	session     *ort.AdvancedSession
	input       *ort.Tensor[float32]
	label       *ort.Tensor[int64]
	probability *ort.Tensor[float32]
	features    int
	classes     int
}

var envMu sync.Mutex

func initEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if ort.IsInitialized() {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}
	return nil
}

// Shutdown releases the process-wide runtime environment.
func Shutdown() error {
	envMu.Lock()
	defer envMu.Unlock()
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// Open creates a session for the model at path.
func Open(path string, cfg Config) (*Classifier, error) {
	cfg = cfg.withDefaults()
	if cfg.Features <= 0 || cfg.Classes <= 0 {
		return nil, fmt.Errorf("%w: features=%d classes=%d", classifier.ErrArtifactShape, cfg.Features, cfg.Classes)
	}
	if err := initEnvironment(cfg.LibraryPath); err != nil {
		return nil, err
	}

	c := &Classifier{features: cfg.Features, classes: cfg.Classes}
	var err error
	c.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(cfg.Features)))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	c.label, err = ort.NewEmptyTensor[int64](ort.NewShape(1))
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to create label tensor: %w", err)
	}
	c.probability, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(cfg.Classes)))
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to create probability tensor: %w", err)
	}

	c.session, err = ort.NewAdvancedSession(path,
		[]string{cfg.InputName}, []string{cfg.LabelOutput, cfg.ProbabilityOutput},
		[]ort.ArbitraryTensor{c.input}, []ort.ArbitraryTensor{c.label, c.probability},
		nil)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return c, nil
}

// Opener adapts Open to the loader's signature.
func Opener(cfg Config) classifier.ModelOpener {
	return func(_ context.Context, path string) (classifier.Classifier, error) {
		c, err := Open(path, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Predict returns the label chosen by the model.
func (c *Classifier) Predict(ctx context.Context, vector []float64) (int, error) {
	index, _, err := c.Classify(ctx, vector)
	return index, err
}

// PredictProba returns the class probabilities in label-index order.
func (c *Classifier) PredictProba(ctx context.Context, vector []float64) ([]float64, error) {
	_, proba, err := c.Classify(ctx, vector)
	return proba, err
}

// Classify runs the session once and reads both outputs.
func (c *Classifier) Classify(_ context.Context, vector []float64) (int, []float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.run(vector); err != nil {
		return 0, nil, err
	}
	raw := c.probability.GetData()
	out := make([]float64, len(raw))
	for i, p := range raw {
		out[i] = float64(p)
	}
	return int(c.label.GetData()[0]), out, nil
}

func (c *Classifier) run(vector []float64) error {
	if len(vector) != c.features {
		return fmt.Errorf("%w: got %d features, want %d", classifier.ErrArtifactShape, len(vector), c.features)
	}
	in := c.input.GetData()
	for i, v := range vector {
		in[i] = float32(v)
	}
	if err := c.session.Run(); err != nil {
		return fmt.Errorf("inference failed: %w", err)
	}
	return nil
}

// Close destroys the session and its tensors.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		_ = c.session.Destroy()
		c.session = nil
	}
	if c.input != nil {
		_ = c.input.Destroy()
		c.input = nil
	}
	if c.label != nil {
		_ = c.label.Destroy()
		c.label = nil
	}
	if c.probability != nil {
		_ = c.probability.Destroy()
		c.probability = nil
	}
	return nil
}
