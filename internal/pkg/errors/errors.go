// Package errors holds the sentinels shared by services and the HTTP layer.
// Callers wrap them with context; handlers map them to status codes with errors.Is.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict marks a write that lost a race with a concurrent writer.
	ErrConflict = errors.New("conflicting concurrent update")
)

// Invalidf returns an ErrInvalidArgument carrying a caller-facing message.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
