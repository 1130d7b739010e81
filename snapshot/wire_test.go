package snapshot

import (
	"errors"
	"testing"

	"github.com/chazu/genera/model"
)

func rangeRegistry(t *testing.T) *model.Registry {
	t.Helper()
	reg := model.NewRegistry()
	_, err := reg.Define(model.ClassSpec{
		Name:      "Range",
		Shorthand: map[string]string{"start": "int", "end": "int"},
		Validator: func(inst *model.Instance) []string {
			start, _ := model.Get(inst, "start")
			end, _ := model.Get(inst, "end")
			if toInt(end) < toInt(start) {
				return []string{"end must be greater than or equal to start"}
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Define(Range) failed: %v", err)
	}
	return reg
}

func toInt(v any) int64 {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int64:
		return x
	case uint64:
		return int64(x)
	}
	return 0
}

func TestInstanceRoundTrip(t *testing.T) {
	reg := rangeRegistry(t)
	inst, err := reg.NewByName("Range", map[string]any{"start": 1, "end": 10})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	img, err := CaptureInstance(inst)
	if err != nil {
		t.Fatalf("CaptureInstance failed: %v", err)
	}
	if img.Class != "Range" || img.ID != inst.ID {
		t.Errorf("image header = %s/%s, want Range/%s", img.Class, img.ID, inst.ID)
	}
	if len(img.Tags) != 2 || img.Tags[0] != "Range" {
		t.Errorf("image tags = %v, want [Range Object]", img.Tags)
	}

	data, err := MarshalInstance(img)
	if err != nil {
		t.Fatalf("MarshalInstance failed: %v", err)
	}
	back, err := UnmarshalInstance(data)
	if err != nil {
		t.Fatalf("UnmarshalInstance failed: %v", err)
	}

	restored, err := RestoreInstance(back, reg)
	if err != nil {
		t.Fatalf("RestoreInstance failed: %v", err)
	}
	if restored.ID != inst.ID {
		t.Errorf("restored ID = %s, want %s", restored.ID, inst.ID)
	}
	if restored.Class() != reg.Lookup("Range") {
		t.Errorf("restored class = %s, want Range", restored.Class().Name)
	}
	start, _ := model.Get(restored, "start")
	if toInt(start) != 1 {
		t.Errorf("restored start = %v, want 1", start)
	}
}

func TestMarshalIsDeterministic(t *testing.T) {
	reg := rangeRegistry(t)
	inst, _ := reg.NewByName("Range", map[string]any{"start": 3, "end": 7})

	img, err := CaptureInstance(inst)
	if err != nil {
		t.Fatalf("CaptureInstance failed: %v", err)
	}
	a, err := MarshalInstance(img)
	if err != nil {
		t.Fatalf("MarshalInstance failed: %v", err)
	}
	b, _ := MarshalInstance(img)
	if string(a) != string(b) {
		t.Error("canonical encoding must be byte-stable across calls")
	}
}

func TestRestoreRerunsValidators(t *testing.T) {
	reg := rangeRegistry(t)

	// A hand-built image that the validator rejects. Restoring must not
	// produce the inconsistent object.
	img := &InstanceImage{
		Class: "Range",
		Props: map[string]any{"start": 10, "end": 1},
	}
	_, err := RestoreInstance(img, reg)
	if !errors.Is(err, model.ErrInvalidObject) {
		t.Errorf("restore of invalid image error = %v, want ErrInvalidObject", err)
	}
}

func TestRestoreRechecksTypes(t *testing.T) {
	reg := rangeRegistry(t)
	img := &InstanceImage{
		Class: "Range",
		Props: map[string]any{"start": "one", "end": 10},
	}
	if _, err := RestoreInstance(img, reg); !errors.Is(err, model.ErrTypeMismatch) {
		t.Errorf("restore with drifted value type error = %v, want ErrTypeMismatch", err)
	}
}

func TestRestoreUnknownClass(t *testing.T) {
	reg := rangeRegistry(t)
	img := &InstanceImage{Class: "Ghost"}
	if _, err := RestoreInstance(img, reg); !errors.Is(err, model.ErrUnresolvedClassName) {
		t.Errorf("restore of unknown class error = %v, want ErrUnresolvedClassName", err)
	}
}

func TestRestoreGeneratesIDWhenImageHasNone(t *testing.T) {
	reg := rangeRegistry(t)
	img := &InstanceImage{
		Class: "Range",
		Props: map[string]any{"start": 1, "end": 2},
	}
	inst, err := RestoreInstance(img, reg)
	if err != nil {
		t.Fatalf("RestoreInstance failed: %v", err)
	}
	if inst.ID == "" {
		t.Error("restore without an image ID should keep the generated one")
	}
}

func TestClassImageRoundTrip(t *testing.T) {
	reg := rangeRegistry(t)
	img := CaptureClass(reg.Lookup("Range"))

	if img.Name != "Range" || img.Parent != "Object" {
		t.Errorf("class image header = %s < %s, want Range < Object", img.Name, img.Parent)
	}
	if len(img.Props) != 2 || img.Props[0].Name != "end" || img.Props[1].Name != "start" {
		t.Errorf("class image props = %+v, want [end start]", img.Props)
	}

	data, err := MarshalClass(img)
	if err != nil {
		t.Fatalf("MarshalClass failed: %v", err)
	}
	back, err := UnmarshalClass(data)
	if err != nil {
		t.Fatalf("UnmarshalClass failed: %v", err)
	}
	if err := VerifyClass(back, reg); err != nil {
		t.Errorf("VerifyClass on a fresh image failed: %v", err)
	}
}

func TestVerifyClassDrift(t *testing.T) {
	reg := rangeRegistry(t)
	img := CaptureClass(reg.Lookup("Range"))

	// Unregistered class.
	ghost := &ClassImage{Name: "Ghost"}
	if err := VerifyClass(ghost, reg); err == nil {
		t.Error("verify of an unregistered class should fail")
	}

	// Parent drift.
	drifted := *img
	drifted.Parent = "Vector"
	if err := VerifyClass(&drifted, reg); err == nil {
		t.Error("parent drift should fail verification")
	}

	// Property type drift.
	drifted = *img
	drifted.Props = append([]PropImage(nil), img.Props...)
	drifted.Props[0].Type = "string"
	if err := VerifyClass(&drifted, reg); err == nil {
		t.Error("property type drift should fail verification")
	}

	// Property count drift.
	drifted = *img
	drifted.Props = img.Props[:1]
	if err := VerifyClass(&drifted, reg); err == nil {
		t.Error("property count drift should fail verification")
	}
}

func TestNormalizeValue(t *testing.T) {
	// CBOR may decode nested maps with interface keys.
	v := normalizeValue(map[any]any{
		"outer": map[any]any{"inner": uint64(1)},
		"list":  []any{map[any]any{"k": "v"}},
	})
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("normalized to %T, want map[string]any", v)
	}
	inner, ok := m["outer"].(map[string]any)
	if !ok || inner["inner"] != any(uint64(1)) {
		t.Errorf("nested map not normalized: %#v", m["outer"])
	}
	list, ok := m["list"].([]any)
	if !ok {
		t.Fatalf("list normalized to %T", m["list"])
	}
	if _, ok := list[0].(map[string]any); !ok {
		t.Errorf("map inside list not normalized: %#v", list[0])
	}
}
