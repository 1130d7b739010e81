package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the object model. Callers test with errors.Is.
var (
	// ErrInvalidClassSpec indicates a malformed class definition: empty
	// name, unresolvable parent, or a duplicate property name after
	// flattening the ancestor chain.
	ErrInvalidClassSpec = errors.New("invalid class spec")

	// ErrUnresolvedClassName indicates a string class reference that does
	// not resolve in the registry.
	ErrUnresolvedClassName = errors.New("unresolved class name")

	// ErrUnknownProperty indicates a get or set on a property name not
	// declared anywhere in the instance's ancestor chain.
	ErrUnknownProperty = errors.New("unknown property")

	// ErrTypeMismatch indicates a value that does not satisfy the
	// property's declared type. The stored state is never mutated.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrReadOnlyProperty indicates a set attempt on a read-only property.
	ErrReadOnlyProperty = errors.New("read-only property")

	// ErrMissingProperty indicates a required property (no default) that
	// was not supplied at construction.
	ErrMissingProperty = errors.New("missing property")

	// ErrInvalidObject indicates a non-empty validator chain result.
	ErrInvalidObject = errors.New("invalid object")
)

// ValidationError carries the full validator chain output for an instance
// that failed validation at construction or mutation time.
type ValidationError struct {
	ClassName string
	Messages  []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s object: %s", e.ClassName, strings.Join(e.Messages, "; "))
}

// Unwrap makes errors.Is(err, ErrInvalidObject) work.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidObject
}
