package model

import (
	"errors"
	"strings"
	"testing"
)

func TestNewAppliesValuesAndDefaults(t *testing.T) {
	reg := NewRegistry()
	c, err := reg.Define(ClassSpec{
		Name: "Config",
		Properties: []PropertySpec{
			{Name: "host", Type: String},
			{Name: "port", Type: Int, Default: 8080, HasDefault: true},
		},
	})
	if err != nil {
		t.Fatalf("Define failed: %v", err)
	}

	inst, err := reg.New(c, map[string]any{"host": "localhost"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	host, _ := Get(inst, "host")
	if host != any("localhost") {
		t.Errorf("host = %v, want localhost", host)
	}
	port, _ := Get(inst, "port")
	if port != any(8080) {
		t.Errorf("port default = %v, want 8080", port)
	}
	if inst.ValidationSuspended {
		t.Error("construction must not leave validation suspended")
	}
}

func TestNewMissingRequiredProperty(t *testing.T) {
	reg := NewRegistry()
	c, _ := reg.Define(ClassSpec{
		Name: "Strict",
		Properties: []PropertySpec{
			{Name: "required", Type: String},
		},
	})

	_, err := reg.New(c, nil)
	if !errors.Is(err, ErrMissingProperty) {
		t.Errorf("New without required error = %v, want ErrMissingProperty", err)
	}
}

func TestNewRejectsStrayValues(t *testing.T) {
	reg, point := pointRegistry(t)
	_, err := reg.New(point, map[string]any{"x": 1, "y": 2, "z": 3})
	if !errors.Is(err, ErrUnknownProperty) {
		t.Errorf("New with stray value error = %v, want ErrUnknownProperty", err)
	}
}

func TestNewRejectsTypeMismatch(t *testing.T) {
	reg, point := pointRegistry(t)
	_, err := reg.New(point, map[string]any{"x": "one", "y": 2})
	if !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("New with bad type error = %v, want ErrTypeMismatch", err)
	}
}

func TestConstructionAppliesRootFirst(t *testing.T) {
	var order []string
	record := func(name string) SetterFunc {
		return func(inst *Instance, v any) error {
			order = append(order, name)
			return nil
		}
	}
	noGet := func(inst *Instance) (any, error) { return nil, nil }

	reg := NewRegistry()
	if _, err := reg.Define(ClassSpec{
		Name: "Base",
		Properties: []PropertySpec{{
			Name: "a", Type: Any, Default: 0, HasDefault: true,
			Getter: noGet, Setter: record("base.a"),
		}},
	}); err != nil {
		t.Fatalf("Define(Base) failed: %v", err)
	}
	derived, err := reg.Define(ClassSpec{
		Name:   "Derived",
		Parent: "Base",
		Properties: []PropertySpec{{
			Name: "b", Type: Any, Default: 0, HasDefault: true,
			Getter: noGet, Setter: record("derived.b"),
		}},
	})
	if err != nil {
		t.Fatalf("Define(Derived) failed: %v", err)
	}

	if _, err := reg.New(derived, nil); err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if len(order) != 2 || order[0] != "base.a" || order[1] != "derived.b" {
		t.Errorf("application order = %v, want [base.a derived.b]", order)
	}
}

func TestValidatorRunsOnceAtConstruction(t *testing.T) {
	calls := 0
	reg := NewRegistry()
	c, _ := reg.Define(ClassSpec{
		Name:      "Counted",
		Shorthand: map[string]string{"a": "int", "b": "int"},
		Validator: func(inst *Instance) []string {
			calls++
			return nil
		},
	})

	if _, err := reg.New(c, map[string]any{"a": 1, "b": 2}); err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("validator ran %d times during construction, want 1", calls)
	}
}

func TestConstructDelegatesToConstructor(t *testing.T) {
	reg := NewRegistry()
	var c *Class
	c, err := reg.Define(ClassSpec{
		Name:      "Interval",
		Shorthand: map[string]string{"start": "numeric", "end": "numeric"},
		Constructor: func(args ...any) (*Instance, error) {
			// Positional (start, end) convenience form.
			if len(args) != 2 {
				return nil, errors.New("Interval takes start and end")
			}
			return reg.New(c, map[string]any{"start": args[0], "end": args[1]})
		},
	})
	if err != nil {
		t.Fatalf("Define failed: %v", err)
	}

	inst, err := reg.Construct("Interval", 1, 10)
	if err != nil {
		t.Fatalf("Construct failed: %v", err)
	}
	end, _ := Get(inst, "end")
	if end != any(10) {
		t.Errorf("end = %v, want 10", end)
	}

	if _, err := reg.Construct("Interval", 1); err == nil {
		t.Error("constructor arity error should surface")
	}
}

func TestConstructWithoutConstructor(t *testing.T) {
	reg, point := pointRegistry(t)

	inst, err := reg.Construct(point, map[string]any{"x": 1, "y": 2})
	if err != nil {
		t.Fatalf("Construct without constructor failed: %v", err)
	}
	if x, _ := Get(inst, "x"); x != any(1) {
		t.Errorf("x = %v, want 1", x)
	}

	if _, err := reg.Construct(point, 1, 2); err == nil {
		t.Error("positional arguments without a constructor should fail")
	}
}

func TestInstanceIdentity(t *testing.T) {
	reg, point := pointRegistry(t)
	a, _ := reg.New(point, map[string]any{"x": 1, "y": 2})
	b, _ := reg.New(point, map[string]any{"x": 1, "y": 2})

	if a.ID == b.ID {
		t.Error("instances must get distinct IDs")
	}
	if !strings.HasPrefix(a.ID, "point_") {
		t.Errorf("ID %q should carry the lowercased class name prefix", a.ID)
	}
	if a.Class() != point {
		t.Error("Class() must return the constructed class")
	}
}

func TestLegacyTagsAreCopies(t *testing.T) {
	reg, point := pointRegistry(t)
	inst, _ := reg.New(point, map[string]any{"x": 1, "y": 2})

	tags := inst.LegacyTags()
	tags[0] = "mutated"
	if inst.LegacyTags()[0] != "Point" {
		t.Error("LegacyTags must return a copy")
	}
}
