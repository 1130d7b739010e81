package dispatch

import (
	"strings"

	"github.com/chazu/genera/model"
)

// Specializer is one element of a method signature. The concrete
// variants are class, union, legacy tag, any, and missing; matching is
// dispatched explicitly by type switch in the engine.
type Specializer interface {
	// SpecName returns the display form used in errors and logs.
	SpecName() string
}

type classSpec struct {
	class *model.Class
}

type unionSpec struct {
	members []Specializer
}

type tagSpec struct {
	tag string
}

type anySpec struct{}

type missingSpec struct{}

// On specializes a position on a class: it matches instances of the
// class and of its subclasses, ranked by chain distance.
func On(c *model.Class) Specializer {
	return classSpec{class: c}
}

// Union specializes a position on any of its members. The rank is the
// best rank among the members.
func Union(members ...Specializer) Specializer {
	return unionSpec{members: members}
}

// Tag specializes a position on a legacy tag carried by the argument.
func Tag(tag string) Specializer {
	return tagSpec{tag: tag}
}

// Any matches every present argument, at lowest priority.
var Any Specializer = anySpec{}

// Missing matches only an absent positional argument, at higher
// priority than Any for that position.
var Missing Specializer = missingSpec{}

func (s classSpec) SpecName() string   { return s.class.Name }
func (s tagSpec) SpecName() string     { return "legacy:" + s.tag }
func (s anySpec) SpecName() string     { return "any" }
func (s missingSpec) SpecName() string { return "missing" }

func (s unionSpec) SpecName() string {
	names := make([]string, len(s.members))
	for i, m := range s.members {
		names[i] = m.SpecName()
	}
	return "union(" + strings.Join(names, "|") + ")"
}

// specEqual reports whether two specializers denote the same signature
// element. Used for last-write-wins replacement at registration.
func specEqual(a, b Specializer) bool {
	switch x := a.(type) {
	case classSpec:
		y, ok := b.(classSpec)
		return ok && x.class == y.class
	case tagSpec:
		y, ok := b.(tagSpec)
		return ok && x.tag == y.tag
	case anySpec:
		_, ok := b.(anySpec)
		return ok
	case missingSpec:
		_, ok := b.(missingSpec)
		return ok
	case unionSpec:
		y, ok := b.(unionSpec)
		if !ok || len(x.members) != len(y.members) {
			return false
		}
		for i := range x.members {
			if !specEqual(x.members[i], y.members[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// sigEqual reports whether two signatures are the same registration key.
func sigEqual(a, b []Specializer) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !specEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
