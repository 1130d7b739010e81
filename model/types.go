package model

import (
	"fmt"
	"reflect"
	"strings"
)

// Type is the declared type of a property. A value either satisfies a
// Type or it does not; there is no coercion.
type Type interface {
	// TypeName returns the display name of the type.
	TypeName() string
	// Accepts reports whether the value satisfies the type.
	Accepts(v any) bool
}

// Tagged is the interface a value must satisfy to participate in
// legacy-tag matching: an ordered tag sequence, most specific first.
// Instances implement it with their ancestor name chain; host values can
// implement it themselves to be matchable by legacy type declarations
// and the dispatch bridge.
type Tagged interface {
	LegacyTags() []string
}

// ---------------------------------------------------------------------------
// Base types
// ---------------------------------------------------------------------------

// baseKind enumerates the built-in primitive type tags.
type baseKind int

const (
	kindAny baseKind = iota
	kindNull
	kindBool
	kindInt
	kindFloat
	kindNumeric
	kindString
	kindBytes
	kindFunc
	kindList
)

var baseKindNames = map[baseKind]string{
	kindAny:     "any",
	kindNull:    "null",
	kindBool:    "bool",
	kindInt:     "int",
	kindFloat:   "float",
	kindNumeric: "numeric",
	kindString:  "string",
	kindBytes:   "bytes",
	kindFunc:    "func",
	kindList:    "list",
}

type baseType struct {
	kind baseKind
}

// The built-in base types usable as property declarations.
var (
	Any     Type = baseType{kindAny}
	Null    Type = baseType{kindNull}
	Bool    Type = baseType{kindBool}
	Int     Type = baseType{kindInt}
	Float   Type = baseType{kindFloat}
	Numeric Type = baseType{kindNumeric}
	String  Type = baseType{kindString}
	Bytes   Type = baseType{kindBytes}
	Func    Type = baseType{kindFunc}
	List    Type = baseType{kindList}
)

func (t baseType) TypeName() string {
	return baseKindNames[t.kind]
}

func (t baseType) Accepts(v any) bool {
	switch t.kind {
	case kindAny:
		return true
	case kindNull:
		return v == nil
	case kindBool:
		_, ok := v.(bool)
		return ok
	case kindInt:
		return isIntValue(v)
	case kindFloat:
		return isFloatValue(v)
	case kindNumeric:
		return isIntValue(v) || isFloatValue(v)
	case kindString:
		_, ok := v.(string)
		return ok
	case kindBytes:
		_, ok := v.([]byte)
		return ok
	case kindFunc:
		if v == nil {
			return false
		}
		return reflect.TypeOf(v).Kind() == reflect.Func
	case kindList:
		_, ok := v.([]any)
		return ok
	}
	return false
}

func isIntValue(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

func isFloatValue(v any) bool {
	switch v.(type) {
	case float32, float64:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Legacy tag types
// ---------------------------------------------------------------------------

type legacyType struct {
	tag string
}

// Legacy returns a type satisfied by any value carrying the given legacy
// tag (see Tagged).
func Legacy(tag string) Type {
	return legacyType{tag: tag}
}

func (t legacyType) TypeName() string {
	return "legacy:" + t.tag
}

func (t legacyType) Accepts(v any) bool {
	tagged, ok := v.(Tagged)
	if !ok {
		return false
	}
	for _, tag := range tagged.LegacyTags() {
		if tag == t.tag {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Class unions
// ---------------------------------------------------------------------------

// Union is a type satisfied by any value satisfying one of its members.
// Members are classes or base/legacy type tags.
type Union struct {
	members []Type
}

// NewUnion builds a union type. At least one member is required; callers
// get a nil Union (never matching) otherwise.
func NewUnion(members ...Type) *Union {
	if len(members) == 0 {
		return nil
	}
	return &Union{members: members}
}

// Members returns the member types in declaration order.
func (u *Union) Members() []Type {
	if u == nil {
		return nil
	}
	out := make([]Type, len(u.members))
	copy(out, u.members)
	return out
}

func (u *Union) TypeName() string {
	if u == nil {
		return "union()"
	}
	names := make([]string, len(u.members))
	for i, m := range u.members {
		names[i] = m.TypeName()
	}
	return "union(" + strings.Join(names, "|") + ")"
}

func (u *Union) Accepts(v any) bool {
	if u == nil {
		return false
	}
	for _, m := range u.members {
		if m.Accepts(v) {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Type tag resolution
// ---------------------------------------------------------------------------

var baseTypesByTag = map[string]Type{
	"any":     Any,
	"null":    Null,
	"bool":    Bool,
	"boolean": Bool,
	"int":     Int,
	"integer": Int,
	"float":   Float,
	"double":  Float,
	"numeric": Numeric,
	"string":  String,
	"bytes":   Bytes,
	"func":    Func,
	"list":    List,
}

// TypeFromTag resolves a shorthand type tag: a base type name, a
// "legacy:" prefixed tag, or a registered class name.
func (r *Registry) TypeFromTag(tag string) (Type, error) {
	if t, ok := baseTypesByTag[tag]; ok {
		return t, nil
	}
	if rest, ok := strings.CutPrefix(tag, "legacy:"); ok && rest != "" {
		return Legacy(rest), nil
	}
	if c := r.Lookup(tag); c != nil {
		return c, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnresolvedClassName, tag)
}
