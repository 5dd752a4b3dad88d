package consultation

import (
	"errors"
	"fmt"

	"consultly/database/repository"
)

// BookingError is the typed failure surfaced by the consultation service.
// Match kinds with errors.Is against the Err* values.
type BookingError struct {
	Code    string
	Message string
	Err     error
}

func (e *BookingError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BookingError) Unwrap() error { return e.Err }

func (e *BookingError) Is(target error) bool {
	t, ok := target.(*BookingError)
	return ok && t.Code == e.Code
}

var (
	ErrValidation             = &BookingError{Code: "validation_error"}
	ErrNotFound               = &BookingError{Code: "not_found"}
	ErrInvalidTransition      = &BookingError{Code: "invalid_transition"}
	ErrConcurrentModification = &BookingError{Code: "concurrent_modification"}
	ErrForbidden              = &BookingError{Code: "forbidden"}
	ErrRefundFailed           = &BookingError{Code: "refund_failed"}
	ErrProcessorTimeout       = &BookingError{Code: "processor_timeout"}
	ErrProcessor              = &BookingError{Code: "processor_error"}
)

func newError(kind *BookingError, format string, args ...any) error {
	return &BookingError{Code: kind.Code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind *BookingError, err error, format string, args ...any) error {
	return &BookingError{Code: kind.Code, Message: fmt.Sprintf(format, args...), Err: err}
}

// fromRepository translates persistence sentinels into booking errors.
func fromRepository(err error, what string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return wrapError(ErrNotFound, err, "%s not found", what)
	case errors.Is(err, repository.ErrVersionConflict):
		return wrapError(ErrConcurrentModification, err, "%s was modified concurrently, re-read and retry", what)
	}
	return fmt.Errorf("%s: %w", what, err)
}
