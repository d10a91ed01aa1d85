package parcel

import (
	"fmt"

	"mercator-hq/mixpolicy/pkg/policy/mix"
)

// DecodeError describes where decoding failed.
type DecodeError struct {
	Offset  int
	Message string
}

// Error returns the error message.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("parcel: offset %d: %s", e.Offset, e.Message)
}

// Unwrap returns mix.ErrMalformedInput so callers can use errors.Is.
func (e *DecodeError) Unwrap() error {
	return mix.ErrMalformedInput
}

func malformed(offset int, format string, args ...any) error {
	return &DecodeError{Offset: offset, Message: fmt.Sprintf(format, args...)}
}
