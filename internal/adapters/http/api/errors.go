package api

import (
	"errors"
	"fmt"
	"net/http"

	service "github.com/okian/drybean/internal/app"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest       = errors.New("bad request")
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// WrapKind annotates err with the operation and a sentinel kind.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return NewKind(op, kind)
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// NewKind returns an error of the given kind tagged with the operation.
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}

// statusFor maps prediction errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrModelNotLoaded):
		return http.StatusInternalServerError
	case service.IsClientError(err), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage returns the text safe to show to callers.
func clientMessage(err error) string {
	var e *service.Error
	if errors.As(err, &e) {
		return e.Msg
	}
	if errors.Is(err, ErrBadRequest) {
		return service.MsgNoJSON
	}
	if errors.Is(err, ErrMethodNotAllowed) {
		return "Method not allowed."
	}
	return service.MsgUnexpected
}
