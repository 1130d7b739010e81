package dispatch

import (
	"errors"
	"testing"

	"github.com/chazu/genera/model"
)

func noop(args []any) (any, error) { return nil, nil }

func constant(v any) func([]any) (any, error) {
	return func(args []any) (any, error) { return v, nil }
}

func TestRegisterLengthMismatch(t *testing.T) {
	gens := NewRegistry()
	g, err := gens.NewGeneric("speak", []int{0, 1})
	if err != nil {
		t.Fatalf("NewGeneric failed: %v", err)
	}

	tbl := NewTable()
	err = tbl.Register(g, []Specializer{Any}, Method{Fn: noop})
	if !errors.Is(err, ErrSignatureLengthMismatch) {
		t.Errorf("short signature error = %v, want ErrSignatureLengthMismatch", err)
	}
	if tbl.MethodCount(g) != 0 {
		t.Error("failed registration must not add an entry")
	}
}

func TestRegisterOverwritesSameSignature(t *testing.T) {
	classes := model.NewRegistry()
	dog, _ := classes.Define(model.ClassSpec{Name: "Dog"})

	gens := NewRegistry()
	g, _ := gens.NewGeneric("speak", []int{0})

	tbl := NewTable()
	if err := tbl.Register(g, []Specializer{On(dog)}, Method{Fn: constant("first")}); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := tbl.Register(g, []Specializer{On(dog)}, Method{Fn: constant("second")}); err != nil {
		t.Fatalf("second Register failed: %v", err)
	}

	if n := tbl.MethodCount(g); n != 1 {
		t.Fatalf("MethodCount = %d after overwrite, want 1", n)
	}

	e := New(classes, WithTable(tbl))
	inst, _ := classes.New(dog, nil)
	got, err := e.Dispatch(g, []any{inst})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if got != any("second") {
		t.Errorf("Dispatch = %v, want the last-registered body", got)
	}
}

func TestRegisterNormalizesNilToAny(t *testing.T) {
	gens := NewRegistry()
	g, _ := gens.NewGeneric("show", []int{0})

	tbl := NewTable()
	if err := tbl.Register(g, []Specializer{nil}, Method{Fn: noop}); err != nil {
		t.Fatalf("Register with nil specializer failed: %v", err)
	}
	sigs := tbl.Signatures(g)
	if len(sigs) != 1 || sigs[0] != "any" {
		t.Errorf("Signatures = %v, want [any]", sigs)
	}
}

func TestSignatureDriftWarning(t *testing.T) {
	gens := NewRegistry()
	g, _ := gens.NewGeneric("area", []int{0}, WithParams(false, "shape"))

	tbl := NewTable()
	err := tbl.Register(g, []Specializer{Any}, Method{
		Params: []string{"figure"},
		Fn:     noop,
	})
	if err != nil {
		t.Fatalf("drift must not fail registration by default: %v", err)
	}
	if tbl.MethodCount(g) != 1 {
		t.Error("drifted method should still be registered")
	}
}

func TestSignatureDriftStrict(t *testing.T) {
	gens := NewRegistry()
	g, _ := gens.NewGeneric("area", []int{0}, WithParams(false, "shape"))

	tbl := NewTable(Strict())
	err := tbl.Register(g, []Specializer{Any}, Method{
		Params: []string{"figure"},
		Fn:     noop,
	})
	if !errors.Is(err, ErrSignatureDrift) {
		t.Errorf("strict drift error = %v, want ErrSignatureDrift", err)
	}
	if tbl.MethodCount(g) != 0 {
		t.Error("strict drift must not register the method")
	}

	// Matching formals register fine in strict mode.
	err = tbl.Register(g, []Specializer{Any}, Method{
		Params: []string{"shape"},
		Fn:     noop,
	})
	if err != nil {
		t.Errorf("matching formals rejected in strict mode: %v", err)
	}
}

func TestDriftNotFlaggedWithoutFormals(t *testing.T) {
	gens := NewRegistry()
	g, _ := gens.NewGeneric("area", []int{0}, WithParams(false, "shape"))

	tbl := NewTable(Strict())
	if err := tbl.Register(g, []Specializer{Any}, Method{Fn: noop}); err != nil {
		t.Errorf("method without declared formals should never drift: %v", err)
	}
}

func TestVariadicGenericAcceptsExtraFormals(t *testing.T) {
	gens := NewRegistry()
	g, _ := gens.NewGeneric("log", []int{0}, WithParams(true, "target"))

	tbl := NewTable(Strict())
	err := tbl.Register(g, []Specializer{Any}, Method{
		Params: []string{"target", "level", "message"},
		Fn:     noop,
	})
	if err != nil {
		t.Errorf("variadic generic should accept longer method formals: %v", err)
	}
}

func TestRemove(t *testing.T) {
	classes := model.NewRegistry()
	dog, _ := classes.Define(model.ClassSpec{Name: "Dog"})

	gens := NewRegistry()
	g, _ := gens.NewGeneric("speak", []int{0})

	tbl := NewTable()
	tbl.Register(g, []Specializer{On(dog)}, Method{Fn: noop})
	tbl.Register(g, []Specializer{Any}, Method{Fn: noop})

	if !tbl.Remove(g, []Specializer{On(dog)}) {
		t.Error("Remove should report the entry it deleted")
	}
	if tbl.Remove(g, []Specializer{On(dog)}) {
		t.Error("second Remove of the same signature should report false")
	}
	if n := tbl.MethodCount(g); n != 1 {
		t.Errorf("MethodCount = %d after Remove, want 1", n)
	}
}

func TestNewGenericValidation(t *testing.T) {
	gens := NewRegistry()

	if _, err := gens.NewGeneric("", []int{0}); err == nil {
		t.Error("empty name should fail")
	}
	if _, err := gens.NewGeneric("f", nil); err == nil {
		t.Error("no dispatch positions should fail")
	}
	if _, err := gens.NewGeneric("f", []int{-1}); err == nil {
		t.Error("negative position should fail")
	}
	if _, err := gens.NewGeneric("f", []int{0, 0}); err == nil {
		t.Error("duplicate positions should fail")
	}
	if gens.Len() != 0 {
		t.Errorf("failed definitions registered %d generics, want 0", gens.Len())
	}

	g, err := gens.NewGeneric("f", []int{1, 0})
	if err != nil {
		t.Fatalf("NewGeneric failed: %v", err)
	}
	if gens.Lookup("f") != g {
		t.Error("Lookup should return the registered generic")
	}

	// Redefinition replaces.
	g2, _ := gens.NewGeneric("f", []int{0})
	if gens.Lookup("f") != g2 {
		t.Error("redefinition must replace the previous generic")
	}
	if gens.Len() != 1 {
		t.Errorf("Len = %d after redefinition, want 1", gens.Len())
	}
}
