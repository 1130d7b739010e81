// Package manifest handles genera.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/chazu/genera/dispatch"
	"github.com/chazu/genera/model"
)

// Manifest represents a genera.toml project configuration.
type Manifest struct {
	Project Project    `toml:"project"`
	Runtime Runtime    `toml:"runtime"`
	Classes []ClassDef `toml:"class"`

	// Dir is the directory containing the genera.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Runtime configures runtime behavior.
type Runtime struct {
	// Strict escalates signature-drift warnings to registration errors.
	Strict bool `toml:"strict"`

	// Verbosity is the commonlog verbosity level.
	Verbosity int `toml:"verbosity"`

	// Store is the path of the sqlite instance store, relative to Dir
	// unless absolute. Empty disables persistence.
	Store string `toml:"store"`
}

// ClassDef declares one class in the manifest. Properties maps property
// names to type tags (base type names, "legacy:" tags, or previously
// declared class names); Defaults supplies optional default values;
// ReadOnly lists property names rejected on post-construction set.
type ClassDef struct {
	Name       string            `toml:"name"`
	Parent     string            `toml:"parent"`
	Properties map[string]string `toml:"properties"`
	Defaults   map[string]any    `toml:"defaults"`
	ReadOnly   []string          `toml:"read-only"`
}

// Load parses a genera.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "genera.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	seen := make(map[string]bool)
	for _, def := range m.Classes {
		if def.Name == "" {
			return fmt.Errorf("manifest declares a class with no name")
		}
		if seen[def.Name] {
			return fmt.Errorf("manifest declares class %s twice", def.Name)
		}
		seen[def.Name] = true

		for name := range def.Defaults {
			if _, ok := def.Properties[name]; !ok {
				return fmt.Errorf("class %s has a default for undeclared property %q", def.Name, name)
			}
		}
		for _, name := range def.ReadOnly {
			if _, ok := def.Properties[name]; !ok {
				return fmt.Errorf("class %s marks undeclared property %q read-only", def.Name, name)
			}
		}
	}
	return nil
}

// StorePath resolves the configured store path against the manifest
// directory. Empty if persistence is disabled.
func (m *Manifest) StorePath() string {
	if m.Runtime.Store == "" {
		return ""
	}
	if filepath.IsAbs(m.Runtime.Store) {
		return m.Runtime.Store
	}
	return filepath.Join(m.Dir, m.Runtime.Store)
}

// Apply registers every class block, in declaration order, with the
// registry. Parents must be declared before children or already be
// registered. Returns the defined classes in order.
func (m *Manifest) Apply(reg *model.Registry) ([]*model.Class, error) {
	out := make([]*model.Class, 0, len(m.Classes))
	for _, def := range m.Classes {
		c, err := reg.Define(def.spec())
		if err != nil {
			return out, fmt.Errorf("class %s: %w", def.Name, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// TableOptions translates the runtime settings into method table
// options, so a host building a dispatch engine honors strict mode.
func (m *Manifest) TableOptions() []dispatch.TableOption {
	if m.Runtime.Strict {
		return []dispatch.TableOption{dispatch.Strict()}
	}
	return nil
}

// spec expands a ClassDef into a model.ClassSpec. Properties are
// ordered by name for determinism, matching the registry's shorthand
// expansion rule.
func (def ClassDef) spec() model.ClassSpec {
	readOnly := make(map[string]bool, len(def.ReadOnly))
	for _, name := range def.ReadOnly {
		readOnly[name] = true
	}

	names := make([]string, 0, len(def.Properties))
	for name := range def.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	props := make([]model.PropertySpec, 0, len(names))
	for _, name := range names {
		ps := model.PropertySpec{
			Name:     name,
			TypeTag:  def.Properties[name],
			ReadOnly: readOnly[name],
		}
		if v, ok := def.Defaults[name]; ok {
			ps.Default = v
			ps.HasDefault = true
		}
		props = append(props, ps)
	}

	spec := model.ClassSpec{
		Name:       def.Name,
		Properties: props,
	}
	if def.Parent != "" {
		spec.Parent = def.Parent
	}
	return spec
}
