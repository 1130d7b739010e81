// Package gowrap derives genera class specs from Go packages: exported
// struct types become classes, exported fields become typed properties,
// and an embedded struct becomes the parent class. It exists so a host
// program can mirror an existing Go data model into the object runtime
// without writing class specs by hand.
package gowrap

import (
	"fmt"
	"go/types"

	"golang.org/x/tools/go/packages"

	"github.com/chazu/genera/model"
)

// DeriveClasses loads a Go package by import path and maps its exported
// struct types to class specs. The includeFilter, if non-nil, restricts
// which exported names are mapped.
func DeriveClasses(importPath string, includeFilter map[string]bool) ([]model.ClassSpec, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedTypes,
	}

	pkgs, err := packages.Load(cfg, importPath)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", importPath, err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found for %s", importPath)
	}
	if len(pkgs[0].Errors) > 0 {
		return nil, fmt.Errorf("package errors: %v", pkgs[0].Errors)
	}

	pkg := pkgs[0]
	if pkg.Types == nil {
		return nil, fmt.Errorf("type information not available for %s", importPath)
	}

	scope := pkg.Types.Scope()

	// First pass: collect the exported struct names so embedded fields
	// can be recognized as parents.
	structNames := make(map[string]bool)
	for _, name := range scope.Names() {
		if includeFilter != nil && !includeFilter[name] {
			continue
		}
		obj, ok := scope.Lookup(name).(*types.TypeName)
		if !ok || !obj.Exported() {
			continue
		}
		if _, ok := obj.Type().Underlying().(*types.Struct); ok {
			structNames[name] = true
		}
	}

	var specs []model.ClassSpec
	for _, name := range scope.Names() {
		if !structNames[name] {
			continue
		}
		st := scope.Lookup(name).Type().Underlying().(*types.Struct)
		specs = append(specs, structSpec(name, st, structNames))
	}
	return specs, nil
}

// structSpec maps one struct type to a class spec. The first embedded
// field naming another derived struct becomes the parent; its
// properties are inherited, not redeclared.
func structSpec(name string, st *types.Struct, structNames map[string]bool) model.ClassSpec {
	spec := model.ClassSpec{Name: name}

	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		if !f.Exported() {
			continue
		}
		if f.Embedded() {
			if named, ok := f.Type().(*types.Named); ok {
				parent := named.Obj().Name()
				if structNames[parent] && spec.Parent == nil {
					spec.Parent = parent
					continue
				}
			}
		}
		spec.Properties = append(spec.Properties, model.PropertySpec{
			Name:    lowerFirst(f.Name()),
			TypeTag: TagForType(f.Type()),
		})
	}
	return spec
}

// TagForType maps a Go type to a genera type tag. Anything without a
// direct base-type counterpart maps to "any".
func TagForType(t types.Type) string {
	switch u := t.Underlying().(type) {
	case *types.Basic:
		info := u.Info()
		switch {
		case info&types.IsBoolean != 0:
			return "bool"
		case info&types.IsInteger != 0:
			return "int"
		case info&types.IsFloat != 0:
			return "float"
		case info&types.IsString != 0:
			return "string"
		}
	case *types.Slice:
		if elem, ok := u.Elem().(*types.Basic); ok && elem.Kind() == types.Byte {
			return "bytes"
		}
		return "list"
	case *types.Signature:
		return "func"
	}
	return "any"
}

// Apply defines the derived specs against a registry, ordering them so
// parents are defined before children regardless of source order.
func Apply(reg *model.Registry, specs []model.ClassSpec) ([]*model.Class, error) {
	pending := append([]model.ClassSpec(nil), specs...)
	out := make([]*model.Class, 0, len(specs))

	for len(pending) > 0 {
		progressed := false
		var deferred []model.ClassSpec
		for _, spec := range pending {
			if parent, ok := spec.Parent.(string); ok && !reg.Has(parent) {
				deferred = append(deferred, spec)
				continue
			}
			c, err := reg.Define(spec)
			if err != nil {
				return out, err
			}
			out = append(out, c)
			progressed = true
		}
		if !progressed {
			return out, fmt.Errorf("gowrap: unresolvable parent chain among %d remaining specs", len(deferred))
		}
		pending = deferred
	}
	return out, nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	if r[0] >= 'A' && r[0] <= 'Z' {
		r[0] = r[0] - 'A' + 'a'
	}
	return string(r)
}
