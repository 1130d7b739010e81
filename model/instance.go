package model

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Instance is a live object. It is independently owned by its creator:
// the model keeps no instance table, and concurrent mutation of one
// instance must be serialized by the caller.
type Instance struct {
	// ID is a unique identifier, assigned at construction. Display and
	// storage only; never used for identity comparisons.
	ID string

	// ValidationSuspended skips validator invocation on mutation while
	// true. Use WithValidationSuspended rather than toggling directly.
	ValidationSuspended bool

	CreatedAt time.Time

	class *Class
	tags  []string
	props map[string]any
}

// Class returns the runtime class the instance was constructed as.
func (inst *Instance) Class() *Class {
	return inst.class
}

// LegacyTags returns the ancestor name chain, most-derived-first,
// consistent with the runtime class at all times. The slice is a copy;
// the underlying sequence is read-only.
func (inst *Instance) LegacyTags() []string {
	out := make([]string, len(inst.tags))
	copy(out, inst.tags)
	return out
}

// PropertyValues returns a copy of the default-storage property map.
// Custom-accessor values are not included; use Get for those.
func (inst *Instance) PropertyValues() map[string]any {
	out := make(map[string]any, len(inst.props))
	for k, v := range inst.props {
		out[k] = v
	}
	return out
}

func (inst *Instance) String() string {
	return fmt.Sprintf("<%s %s>", inst.class.Name, inst.ID)
}

// newInstanceID creates a unique instance ID for the given class name.
func newInstanceID(className string) string {
	return strings.ToLower(className) + "_" + uuid.New().String()
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

// New builds an instance of a class from named property values.
//
// The ancestor chain is walked root-first; each level's declared
// properties are applied from the supplied values, falling back to the
// property default, with validation suspended for the whole walk. A
// required property (no default) that is not supplied fails with
// MissingProperty. After the full chain is applied the validator chain
// runs once; a non-empty result fails with InvalidObject.
//
// New mutates no registry state. User-supplied constructors must
// terminate by delegating here.
func (r *Registry) New(class *Class, values map[string]any) (*Instance, error) {
	if class == nil {
		return nil, fmt.Errorf("%w: nil class", ErrUnresolvedClassName)
	}

	inst := &Instance{
		ID:                  newInstanceID(class.Name),
		ValidationSuspended: true,
		CreatedAt:           time.Now(),
		class:               class,
		tags:                class.LegacyTags(),
		props:               make(map[string]any),
	}

	// Reject names that resolve nowhere in the chain, before any
	// property is applied.
	var stray []string
	for name := range values {
		if class.findProperty(name) == nil {
			stray = append(stray, name)
		}
	}
	if len(stray) > 0 {
		sort.Strings(stray)
		return nil, fmt.Errorf("%w: %s has no property %q", ErrUnknownProperty, class.Name, stray[0])
	}

	chain := class.Ancestors()
	for i := len(chain) - 1; i >= 0; i-- {
		for _, p := range chain[i].Properties() {
			v, supplied := values[p.Name]
			switch {
			case supplied:
				// Supplied values may target read-only properties: the
				// restriction applies to post-construction mutation.
				if err := applyProperty(inst, p, v, false); err != nil {
					return nil, err
				}
			case p.HasDefault:
				if err := applyProperty(inst, p, p.Default, false); err != nil {
					return nil, err
				}
			default:
				return nil, fmt.Errorf("%w: %s requires %q", ErrMissingProperty, class.Name, p.Name)
			}
		}
	}

	inst.ValidationSuspended = false
	if msgs := RunValidators(inst); len(msgs) > 0 {
		return nil, &ValidationError{ClassName: class.Name, Messages: msgs}
	}
	return inst, nil
}

// NewByName is New with a string class reference.
func (r *Registry) NewByName(className string, values map[string]any) (*Instance, error) {
	c, err := r.Resolve(className)
	if err != nil {
		return nil, err
	}
	return r.New(c, values)
}

// Construct builds an instance through the class's constructor when one
// is declared, passing the arguments through unaltered. Without a
// constructor the sole optional argument is the value map New takes.
func (r *Registry) Construct(ref any, args ...any) (*Instance, error) {
	c, err := r.Resolve(ref)
	if err != nil {
		return nil, err
	}
	if c.Constructor != nil {
		return c.Constructor(args...)
	}

	switch len(args) {
	case 0:
		return r.New(c, nil)
	case 1:
		values, ok := args[0].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no constructor; expected a property value map, got %T",
				ErrInvalidClassSpec, c.Name, args[0])
		}
		return r.New(c, values)
	default:
		return nil, fmt.Errorf("%w: %s has no constructor taking %d arguments",
			ErrInvalidClassSpec, c.Name, len(args))
	}
}
