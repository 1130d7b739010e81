package model

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tliron/commonlog"
)

// ValidatorFunc checks an instance and returns error messages.
// An empty result means the instance is valid. Validators must not
// register classes or methods as a side effect.
type ValidatorFunc func(inst *Instance) []string

// ConstructorFunc is a user-supplied constructor. It may take arbitrary
// arguments but must terminate by delegating to Registry.New; the model
// does not enforce this syntactically.
type ConstructorFunc func(args ...any) (*Instance, error)

// Class is an immutable class descriptor. Equality is pointer identity;
// Name is display-only. All fields are fixed once Registry.Define
// returns.
type Class struct {
	Name        string
	Parent      *Class // nil only for the registry root
	Validator   ValidatorFunc
	Constructor ConstructorFunc

	props []*Property // declared at this level, in declaration order
	chain []*Class    // ancestor chain, most-derived-first, includes self
	tags  []string    // ancestor names, most-derived-first
}

// Properties returns the properties declared directly on this class.
func (c *Class) Properties() []*Property {
	out := make([]*Property, len(c.props))
	copy(out, c.props)
	return out
}

// AllProperties returns every property in the ancestor chain, root-first
// in declaration order.
func (c *Class) AllProperties() []*Property {
	var out []*Property
	for i := len(c.chain) - 1; i >= 0; i-- {
		out = append(out, c.chain[i].props...)
	}
	return out
}

// Ancestors returns the ancestor chain including the class itself,
// most-derived-first.
func (c *Class) Ancestors() []*Class {
	out := make([]*Class, len(c.chain))
	copy(out, c.chain)
	return out
}

// IsSubclassOf returns true if c is other or a descendant of other.
func (c *Class) IsSubclassOf(other *Class) bool {
	for current := c; current != nil; current = current.Parent {
		if current == other {
			return true
		}
	}
	return false
}

// IsSuperclassOf returns true if c is other or an ancestor of other.
func (c *Class) IsSuperclassOf(other *Class) bool {
	return other.IsSubclassOf(c)
}

// LegacyTags returns the ancestor name chain, most-derived-first. This
// is the sequence a legacy single-dispatch runtime matches on.
func (c *Class) LegacyTags() []string {
	out := make([]string, len(c.tags))
	copy(out, c.tags)
	return out
}

// Depth returns the inheritance depth (0 for the root class).
func (c *Class) Depth() int {
	return len(c.chain) - 1
}

// findProperty resolves a property by walking the chain
// most-derived-first. The owning class shadows ancestors.
func (c *Class) findProperty(name string) *Property {
	for _, cls := range c.chain {
		for _, p := range cls.props {
			if p.Name == name {
				return p
			}
		}
	}
	return nil
}

// TypeName makes *Class usable as a property Type.
func (c *Class) TypeName() string {
	return c.Name
}

// Accepts reports whether v is an instance of c or of a subclass.
func (c *Class) Accepts(v any) bool {
	inst, ok := v.(*Instance)
	if !ok {
		return false
	}
	return inst.class.IsSubclassOf(c)
}

func (c *Class) String() string {
	return c.Name
}

// ---------------------------------------------------------------------------
// Class specs
// ---------------------------------------------------------------------------

// PropertySpec describes one property in a ClassSpec. Either Type or
// TypeTag is set; TypeTag is resolved against the registry at Define
// time. A property with a custom accessor must still carry a default so
// the accessor's storage is seeded exactly once at construction.
type PropertySpec struct {
	Name       string
	Type       Type
	TypeTag    string
	Default    any
	HasDefault bool
	Getter     GetterFunc
	Setter     SetterFunc
	ReadOnly   bool
}

// ClassSpec is the input to Registry.Define.
//
// Parent may be a *Class, a class name string, or nil for the registry
// root. Shorthand maps property names to type tags and expands into
// PropertySpec entries (sorted by name for determinism); explicit
// Properties keep their declaration order and come first.
type ClassSpec struct {
	Name        string
	Parent      any
	Properties  []PropertySpec
	Shorthand   map[string]string
	Validator   ValidatorFunc
	Constructor ConstructorFunc
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

// Registry is the scoped class table. Name lookups are explicit; there
// is no implicit global scope. The registry is safe for concurrent
// definition and lookup.
type Registry struct {
	mu      sync.RWMutex
	classes map[string]*Class
	root    *Class
	log     commonlog.Logger
}

// RootClassName is the name of the universal root class every registry
// starts with.
const RootClassName = "Object"

// NewRegistry creates a registry holding only the root class.
func NewRegistry() *Registry {
	root := &Class{Name: RootClassName}
	root.chain = []*Class{root}
	root.tags = []string{RootClassName}

	return &Registry{
		classes: map[string]*Class{RootClassName: root},
		root:    root,
		log:     commonlog.GetLogger("genera.model"),
	}
}

// Root returns the universal root class.
func (r *Registry) Root() *Class {
	return r.root
}

// Lookup finds a class by name, or nil.
func (r *Registry) Lookup(name string) *Class {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.classes[name]
}

// Has returns true if a class with this name is registered.
func (r *Registry) Has(name string) bool {
	return r.Lookup(name) != nil
}

// All returns all registered classes.
func (r *Registry) All() []*Class {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Class, 0, len(r.classes))
	for _, c := range r.classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered classes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.classes)
}

// Resolve turns a class reference into a *Class: descriptor passthrough,
// string name lookup. Anything else, or a name that does not resolve,
// is ErrUnresolvedClassName.
func (r *Registry) Resolve(ref any) (*Class, error) {
	switch v := ref.(type) {
	case *Class:
		if v == nil {
			return nil, fmt.Errorf("%w: nil class reference", ErrUnresolvedClassName)
		}
		return v, nil
	case string:
		if c := r.Lookup(v); c != nil {
			return c, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrUnresolvedClassName, v)
	default:
		return nil, fmt.Errorf("%w: cannot resolve %T", ErrUnresolvedClassName, ref)
	}
}

// Define validates a class spec, freezes it into a Class, and registers
// it. Registration is atomic: on any error nothing is registered.
// Re-defining an existing name replaces it (hot reload); instances of
// the old class keep their old descriptor.
func (r *Registry) Define(spec ClassSpec) (*Class, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("%w: class name must be a non-empty string", ErrInvalidClassSpec)
	}

	parent := r.root
	if spec.Parent != nil {
		p, err := r.Resolve(spec.Parent)
		if err != nil {
			return nil, fmt.Errorf("%w: parent of %q: %v", ErrInvalidClassSpec, spec.Name, err)
		}
		parent = p
	}

	props, err := r.buildProperties(spec)
	if err != nil {
		return nil, err
	}

	c := &Class{
		Name:        spec.Name,
		Parent:      parent,
		Validator:   spec.Validator,
		Constructor: spec.Constructor,
		props:       props,
	}
	for _, p := range props {
		p.owner = c
	}

	// Materialize the ancestor chain and legacy tag list once, so
	// dispatch matching is O(chain length) with no pointer walking.
	c.chain = append([]*Class{c}, parent.chain...)
	c.tags = make([]string, len(c.chain))
	for i, a := range c.chain {
		c.tags[i] = a.Name
	}

	// Duplicate property names across the flattened chain are an error.
	seen := make(map[string]string)
	for i := len(c.chain) - 1; i >= 0; i-- {
		for _, p := range c.chain[i].props {
			if owner, dup := seen[p.Name]; dup {
				return nil, fmt.Errorf("%w: property %q declared by both %s and %s",
					ErrInvalidClassSpec, p.Name, owner, c.chain[i].Name)
			}
			seen[p.Name] = c.chain[i].Name
		}
	}

	r.mu.Lock()
	old := r.classes[spec.Name]
	r.classes[spec.Name] = c
	r.mu.Unlock()

	if old != nil {
		r.log.Infof("redefined class %s", spec.Name)
	}
	return c, nil
}

// buildProperties expands a spec's explicit properties and shorthand
// map into frozen Property descriptors.
func (r *Registry) buildProperties(spec ClassSpec) ([]*Property, error) {
	props := make([]*Property, 0, len(spec.Properties)+len(spec.Shorthand))

	for _, ps := range spec.Properties {
		p, err := r.buildProperty(spec.Name, ps)
		if err != nil {
			return nil, err
		}
		props = append(props, p)
	}

	tags := make([]string, 0, len(spec.Shorthand))
	for name := range spec.Shorthand {
		tags = append(tags, name)
	}
	sort.Strings(tags)
	for _, name := range tags {
		p, err := r.buildProperty(spec.Name, PropertySpec{Name: name, TypeTag: spec.Shorthand[name]})
		if err != nil {
			return nil, err
		}
		props = append(props, p)
	}
	return props, nil
}

func (r *Registry) buildProperty(className string, ps PropertySpec) (*Property, error) {
	if ps.Name == "" {
		return nil, fmt.Errorf("%w: %s has a property with an empty name", ErrInvalidClassSpec, className)
	}

	t := ps.Type
	if t == nil {
		if ps.TypeTag == "" {
			t = Any
		} else {
			resolved, err := r.TypeFromTag(ps.TypeTag)
			if err != nil {
				return nil, fmt.Errorf("%w: property %s.%s: %v", ErrInvalidClassSpec, className, ps.Name, err)
			}
			t = resolved
		}
	}

	if (ps.Getter != nil || ps.Setter != nil) && !ps.HasDefault {
		return nil, fmt.Errorf("%w: property %s.%s has a custom accessor but no default value",
			ErrInvalidClassSpec, className, ps.Name)
	}
	if ps.HasDefault && !t.Accepts(ps.Default) {
		return nil, fmt.Errorf("%w: property %s.%s default %v does not satisfy type %s",
			ErrInvalidClassSpec, className, ps.Name, ps.Default, t.TypeName())
	}

	return &Property{
		Name:       ps.Name,
		Type:       t,
		Default:    ps.Default,
		HasDefault: ps.HasDefault,
		Getter:     ps.Getter,
		Setter:     ps.Setter,
		readOnly:   ps.ReadOnly,
	}, nil
}
