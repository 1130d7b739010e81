// Package snapshot serializes instances and class shapes to a canonical
// CBOR wire form. Restoring an instance re-enters construction through
// the class registry, so declared types and validators are re-checked;
// a snapshot is never trusted to be internally consistent.
package snapshot

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/genera/model"
)

// cborEncMode uses canonical mode for deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// InstanceImage is the wire form of one instance: its class name, the
// legacy tag chain it carried, and its default-storage property values.
type InstanceImage struct {
	ID    string         `cbor:"id"`
	Class string         `cbor:"class"`
	Tags  []string       `cbor:"tags"`
	Props map[string]any `cbor:"props"`
}

// PropImage is the wire form of one property declaration.
type PropImage struct {
	Name       string `cbor:"name"`
	Type       string `cbor:"type"`
	HasDefault bool   `cbor:"has_default"`
	Default    any    `cbor:"default,omitempty"`
	ReadOnly   bool   `cbor:"read_only,omitempty"`
}

// ClassImage is the structural wire form of one class: enough to verify
// that a registry's live class still has the shape a snapshot was taken
// against. Validators, accessors, and constructors are code and do not
// serialize.
type ClassImage struct {
	Name   string      `cbor:"name"`
	Parent string      `cbor:"parent"`
	Props  []PropImage `cbor:"props"`
}

// ---------------------------------------------------------------------------
// Capture
// ---------------------------------------------------------------------------

// CaptureInstance builds the wire image of an instance. Custom-accessor
// values are read through their getters so external storage is included.
func CaptureInstance(inst *model.Instance) (*InstanceImage, error) {
	img := &InstanceImage{
		ID:    inst.ID,
		Class: inst.Class().Name,
		Tags:  inst.LegacyTags(),
		Props: make(map[string]any),
	}
	for _, p := range inst.Class().AllProperties() {
		v, err := model.Get(inst, p.Name)
		if err != nil {
			return nil, fmt.Errorf("snapshot: capture %s.%s: %w", img.Class, p.Name, err)
		}
		img.Props[p.Name] = v
	}
	return img, nil
}

// CaptureClass builds the structural wire image of a class.
func CaptureClass(c *model.Class) *ClassImage {
	img := &ClassImage{Name: c.Name}
	if c.Parent != nil {
		img.Parent = c.Parent.Name
	}
	for _, p := range c.Properties() {
		img.Props = append(img.Props, PropImage{
			Name:       p.Name,
			Type:       p.Type.TypeName(),
			HasDefault: p.HasDefault,
			Default:    p.Default,
			ReadOnly:   p.ReadOnly(),
		})
	}
	return img
}

// ---------------------------------------------------------------------------
// Wire codec
// ---------------------------------------------------------------------------

// MarshalInstance serializes an InstanceImage to CBOR bytes.
func MarshalInstance(img *InstanceImage) ([]byte, error) {
	return cborEncMode.Marshal(img)
}

// UnmarshalInstance deserializes an InstanceImage from CBOR bytes.
func UnmarshalInstance(data []byte) (*InstanceImage, error) {
	var img InstanceImage
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal instance: %w", err)
	}
	return &img, nil
}

// MarshalClass serializes a ClassImage to CBOR bytes.
func MarshalClass(img *ClassImage) ([]byte, error) {
	return cborEncMode.Marshal(img)
}

// UnmarshalClass deserializes a ClassImage from CBOR bytes.
func UnmarshalClass(data []byte) (*ClassImage, error) {
	var img ClassImage
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal class: %w", err)
	}
	return &img, nil
}

// ---------------------------------------------------------------------------
// Restore and verification
// ---------------------------------------------------------------------------

// RestoreInstance rebuilds a live instance from its image against the
// given registry. Construction goes through Registry.New, so property
// types are re-checked and the validator chain re-runs; images taken
// under a different class definition fail loudly instead of producing
// an inconsistent object. Read-only properties restore like any other
// supplied construction value. The image's ID is kept.
func RestoreInstance(img *InstanceImage, reg *model.Registry) (*model.Instance, error) {
	cls, err := reg.Resolve(img.Class)
	if err != nil {
		return nil, fmt.Errorf("snapshot: restore: %w", err)
	}

	values := normalizeProps(img.Props)
	inst, err := reg.New(cls, values)
	if err != nil {
		return nil, fmt.Errorf("snapshot: restore %s: %w", img.Class, err)
	}
	if img.ID != "" {
		inst.ID = img.ID
	}
	return inst, nil
}

// VerifyClass checks a class image against the live registry: the class
// must exist with the same parent and the same property names and type
// tags. Defaults are not compared; they may legitimately evolve.
func VerifyClass(img *ClassImage, reg *model.Registry) error {
	c := reg.Lookup(img.Name)
	if c == nil {
		return fmt.Errorf("snapshot: class %s is not registered", img.Name)
	}

	parent := ""
	if c.Parent != nil {
		parent = c.Parent.Name
	}
	if parent != img.Parent {
		return fmt.Errorf("snapshot: class %s parent drifted: image %q, registry %q",
			img.Name, img.Parent, parent)
	}

	live := c.Properties()
	if len(live) != len(img.Props) {
		return fmt.Errorf("snapshot: class %s has %d properties, image has %d",
			img.Name, len(live), len(img.Props))
	}
	for i, p := range live {
		pi := img.Props[i]
		if p.Name != pi.Name {
			return fmt.Errorf("snapshot: class %s property %d drifted: image %q, registry %q",
				img.Name, i, pi.Name, p.Name)
		}
		if p.Type.TypeName() != pi.Type {
			return fmt.Errorf("snapshot: property %s.%s type drifted: image %q, registry %q",
				img.Name, p.Name, pi.Type, p.Type.TypeName())
		}
	}
	return nil
}

// normalizeProps undoes CBOR decoding artifacts: map keys decode as
// interface keys and integers decode as uint64/int64 depending on sign.
// Values pass through otherwise; the type check at construction is the
// arbiter.
func normalizeProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, val := range x {
			if ks, ok := k.(string); ok {
				m[ks] = normalizeValue(val)
			}
		}
		return m
	case []any:
		for i := range x {
			x[i] = normalizeValue(x[i])
		}
		return x
	default:
		return v
	}
}
