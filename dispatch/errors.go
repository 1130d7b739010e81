package dispatch

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMethodNotFound indicates that no registered signature matched
	// and the legacy fallback also failed.
	ErrMethodNotFound = errors.New("method not found")

	// ErrSignatureLengthMismatch indicates a method signature whose
	// length differs from the generic's dispatch position count. Fatal
	// to the registration.
	ErrSignatureLengthMismatch = errors.New("signature length mismatch")

	// ErrSignatureDrift indicates a formal-parameter mismatch between a
	// generic and a method. Advisory by default; it becomes a
	// registration error only in strict mode.
	ErrSignatureDrift = errors.New("signature drift")

	// ErrInvalidSuperTarget indicates an as-ancestor dispatch request
	// whose target is not on the argument's ancestor chain.
	ErrInvalidSuperTarget = errors.New("invalid super target")

	// ErrUnknownGeneric indicates a call to a generic name that is not
	// registered.
	ErrUnknownGeneric = errors.New("unknown generic")
)

// MethodNotFoundError names the generic and the partial signature that
// was fixed before matching failed.
type MethodNotFoundError struct {
	Generic string
	Partial []string
}

func (e *MethodNotFoundError) Error() string {
	if len(e.Partial) == 0 {
		return fmt.Sprintf("method not found: %s (no applicable method)", e.Generic)
	}
	return fmt.Sprintf("method not found: %s(%s, ...)", e.Generic, strings.Join(e.Partial, ", "))
}

// Unwrap makes errors.Is(err, ErrMethodNotFound) work.
func (e *MethodNotFoundError) Unwrap() error {
	return ErrMethodNotFound
}
