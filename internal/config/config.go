// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and DRYBEAN_* env vars.
// - Validation errors wrap ErrInvalidConfig; source errors wrap ErrLoadConfig.
package config

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":5000".
	Addr string `koanf:"addr"`

	// Scaling selects the scaled variant (scaler applied before inference).
	Scaling bool `koanf:"scaling"`

	// ModelPath and ScalerPath locate the artifacts read once at startup.
	ModelPath  string `koanf:"model_path"`
	ScalerPath string `koanf:"scaler_path"`

	// ONNXLibraryPath points at the onnxruntime shared library; empty uses the platform default.
	ONNXLibraryPath string `koanf:"onnx_library_path"`

	// Tensor names bound in the classifier graph.
	ONNXInputName         string `koanf:"onnx_input_name"`
	ONNXLabelOutput       string `koanf:"onnx_label_output"`
	ONNXProbabilityOutput string `koanf:"onnx_probability_output"`

	// MaxBodyBytes caps the size of a prediction request body.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`

	// CORSAllowOrigin enables CORS headers when non-empty (e.g. "*").
	CORSAllowOrigin string `koanf:"cors_allow_origin"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		Addr:                  ":5000",
		Scaling:               true,
		ModelPath:             "dry_bean_rf_s.onnx",
		ScalerPath:            "scaler.json",
		ONNXInputName:         "float_input",
		ONNXLabelOutput:       "output_label",
		ONNXProbabilityOutput: "output_probability",
		MaxBodyBytes:          1 << 20,
	}
}
