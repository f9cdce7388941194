package classifier

import "errors"

// Sentinel error kinds for this package.
var (
	ErrNotLoaded     = errors.New("model not loaded")
	ErrArtifactShape = errors.New("artifact shape mismatch")
)
