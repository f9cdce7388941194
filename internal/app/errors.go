package service

import (
	"errors"

	"github.com/okian/drybean/internal/domain/classifier"
)

// Error kinds returned by Predict. Match them with errors.Is.
var (
	ErrModelNotLoaded    = classifier.ErrNotLoaded
	ErrBadRequest        = errors.New("bad request")
	ErrMissingFeature    = errors.New("missing feature")
	ErrInvalidFeature    = errors.New("invalid feature")
	ErrInvalidClassIndex = errors.New("invalid class index")
	ErrInference         = errors.New("inference failed")
)

// Messages shown to API clients.
const (
	MsgNoJSON     = "Invalid request: No JSON data received."
	MsgUnexpected = "An unexpected error occurred during prediction."
)

// Error carries the client-facing message next to the kind and the internal cause.
// Error() returns only Msg so it can be written to the response as is.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string { return e.Msg }

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Detail returns the internal cause for logging, or the message when there is none.
func (e *Error) Detail() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Err.Error()
}

func newError(kind error, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// IsClientError reports whether err was caused by the request rather than the server.
func IsClientError(err error) bool {
	return errors.Is(err, ErrBadRequest) ||
		errors.Is(err, ErrMissingFeature) ||
		errors.Is(err, ErrInvalidFeature)
}

// Reason returns a short metric label for err.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrModelNotLoaded):
		return "not_loaded"
	case errors.Is(err, ErrBadRequest):
		return "bad_request"
	case errors.Is(err, ErrMissingFeature):
		return "missing_feature"
	case errors.Is(err, ErrInvalidFeature):
		return "invalid_feature"
	case errors.Is(err, ErrInvalidClassIndex):
		return "invalid_index"
	default:
		return "internal"
	}
}
