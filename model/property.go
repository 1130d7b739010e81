package model

import "fmt"

// GetterFunc is a custom property getter. It is called exactly once per
// get and is responsible for producing the value (storage may live
// outside the instance).
type GetterFunc func(inst *Instance) (any, error)

// SetterFunc is a custom property setter. It is called exactly once per
// set, after the declared-type check, and is responsible for storage.
type SetterFunc func(inst *Instance, value any) error

// AccessorKind distinguishes the two property storage variants.
type AccessorKind int

const (
	// DefaultStorage stores the value keyed by name on the instance.
	DefaultStorage AccessorKind = iota
	// CustomAccessor delegates get/set to user-supplied functions.
	CustomAccessor
)

// Property is a frozen property descriptor: a named, typed, optionally
// custom-accessed datum attached to instances of its owning class.
type Property struct {
	Name       string
	Type       Type
	Default    any
	HasDefault bool
	Getter     GetterFunc
	Setter     SetterFunc

	readOnly bool
	owner    *Class
}

// Accessor returns the storage variant of this property.
func (p *Property) Accessor() AccessorKind {
	if p.Getter != nil || p.Setter != nil {
		return CustomAccessor
	}
	return DefaultStorage
}

// ReadOnly reports whether set attempts must be rejected: either the
// property is declared read-only, or it has a getter with no setter.
func (p *Property) ReadOnly() bool {
	return p.readOnly || (p.Getter != nil && p.Setter == nil)
}

// Owner returns the class that declares this property.
func (p *Property) Owner() *Class {
	return p.owner
}

// ---------------------------------------------------------------------------
// Typed get/set
// ---------------------------------------------------------------------------

// Get resolves a property by walking the instance's ancestor chain
// most-derived-first and returns its value, honoring custom getters.
func Get(inst *Instance, name string) (any, error) {
	p := inst.class.findProperty(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %s has no property %q", ErrUnknownProperty, inst.class.Name, name)
	}
	if p.Getter != nil {
		return p.Getter(inst)
	}
	v, ok := inst.props[name]
	if !ok {
		return nil, nil
	}
	return v, nil
}

// Set resolves a property and stores a new value, honoring custom
// setters. The declared-type check happens before any storage, so a
// TypeMismatch never mutates state. Unless validation is suspended, the
// full validator chain runs afterwards; for default-storage properties
// a validation failure restores the previous value before returning
// InvalidObject, so invalid states do not escape. A custom setter's
// storage cannot be rolled back.
func Set(inst *Instance, name string, value any) error {
	p := inst.class.findProperty(name)
	if p == nil {
		return fmt.Errorf("%w: %s has no property %q", ErrUnknownProperty, inst.class.Name, name)
	}
	if p.ReadOnly() {
		return fmt.Errorf("%w: %s.%s", ErrReadOnlyProperty, inst.class.Name, name)
	}
	return applyProperty(inst, p, value, !inst.ValidationSuspended)
}

// applyProperty performs the type check, storage, and optional trailing
// validation for one property write. Construction reuses it with
// validation off.
func applyProperty(inst *Instance, p *Property, value any, validate bool) error {
	if !p.Type.Accepts(value) {
		return fmt.Errorf("%w: %s.%s expects %s, got %T",
			ErrTypeMismatch, inst.class.Name, p.Name, p.Type.TypeName(), value)
	}

	if p.Setter != nil {
		if err := p.Setter(inst, value); err != nil {
			return err
		}
		if validate {
			if msgs := RunValidators(inst); len(msgs) > 0 {
				return &ValidationError{ClassName: inst.class.Name, Messages: msgs}
			}
		}
		return nil
	}

	prev, hadPrev := inst.props[p.Name]
	inst.props[p.Name] = value

	if validate {
		if msgs := RunValidators(inst); len(msgs) > 0 {
			if hadPrev {
				inst.props[p.Name] = prev
			} else {
				delete(inst.props, p.Name)
			}
			return &ValidationError{ClassName: inst.class.Name, Messages: msgs}
		}
	}
	return nil
}
