// Genera CLI - inspect a genera project: its manifest-declared classes
// and its persisted instance store.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/genera/manifest"
	"github.com/chazu/genera/model"
	"github.com/chazu/genera/snapshot"
	"github.com/chazu/genera/store"
)

func main() {
	dir := flag.String("C", ".", "Project directory containing genera.toml")
	list := flag.Bool("list", false, "List registered classes")
	show := flag.String("show", "", "Show a class: ancestor chain and properties")
	instances := flag.String("instances", "", "List stored instance IDs for a class")
	dump := flag.String("dump", "", "Dump a stored instance by ID")
	export := flag.String("export", "", "Write a stored instance as a CBOR snapshot")
	imprt := flag.String("import", "", "Read a CBOR snapshot and store the instance")
	out := flag.String("o", "", "Output file for -export (default stdout)")
	verbosity := flag.Int("v", 0, "Log verbosity")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: genera [options]\n\n")
		fmt.Fprintf(os.Stderr, "Loads genera.toml from the project directory, registers its classes,\n")
		fmt.Fprintf(os.Stderr, "and inspects the registry and the instance store.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  genera -list                 # List classes from ./genera.toml\n")
		fmt.Fprintf(os.Stderr, "  genera -C proj -show Range   # Show the Range class\n")
		fmt.Fprintf(os.Stderr, "  genera -instances Range      # Stored instance IDs for Range\n")
		fmt.Fprintf(os.Stderr, "  genera -dump range_0183...   # Dump one stored instance\n")
		fmt.Fprintf(os.Stderr, "  genera -export range_0183... -o r.cbor\n")
		fmt.Fprintf(os.Stderr, "  genera -import r.cbor        # Restore and store a snapshot\n")
	}
	flag.Parse()

	m, err := manifest.Load(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	level := *verbosity
	if level == 0 {
		level = m.Runtime.Verbosity
	}
	commonlog.Configure(level, nil)

	reg := model.NewRegistry()
	if _, err := m.Apply(reg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	switch {
	case *list:
		listClasses(reg)
	case *show != "":
		showClass(reg, *show)
	case *instances != "":
		withStore(m, reg, func(s *store.Store) error {
			ids, err := s.FindByClass(*instances)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		})
	case *dump != "":
		withStore(m, reg, func(s *store.Store) error {
			return dumpInstance(s, *dump)
		})
	case *export != "":
		withStore(m, reg, func(s *store.Store) error {
			return exportInstance(s, *export, *out)
		})
	case *imprt != "":
		withStore(m, reg, func(s *store.Store) error {
			return importInstance(s, reg, *imprt)
		})
	default:
		fmt.Printf("%s %s: %d classes\n", m.Project.Name, m.Project.Version, reg.Len())
	}
}

func listClasses(reg *model.Registry) {
	for _, c := range reg.All() {
		if c == reg.Root() {
			continue
		}
		fmt.Printf("%-20s < %s\n", c.Name, c.Parent.Name)
	}
}

func showClass(reg *model.Registry, name string) {
	c := reg.Lookup(name)
	if c == nil {
		fmt.Fprintf(os.Stderr, "Error: class %s is not registered\n", name)
		os.Exit(1)
	}

	tags := c.LegacyTags()
	fmt.Printf("%s\n", strings.Join(tags, " < "))
	for _, p := range c.AllProperties() {
		line := fmt.Sprintf("  %s: %s", p.Name, p.Type.TypeName())
		if p.HasDefault {
			line += fmt.Sprintf(" = %v", p.Default)
		}
		if p.ReadOnly() {
			line += " (read-only)"
		}
		fmt.Println(line)
	}
}

func dumpInstance(s *store.Store, id string) error {
	inst, err := s.Load(id)
	if err != nil {
		if errors.Is(err, store.ErrInstanceNotFound) {
			return fmt.Errorf("no stored instance %s", id)
		}
		return err
	}

	img, err := snapshot.CaptureInstance(inst)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s)\n", img.ID, img.Class)
	for _, p := range inst.Class().AllProperties() {
		fmt.Printf("  %s = %v\n", p.Name, img.Props[p.Name])
	}
	return nil
}

func exportInstance(s *store.Store, id, path string) error {
	inst, err := s.Load(id)
	if err != nil {
		return err
	}
	img, err := snapshot.CaptureInstance(inst)
	if err != nil {
		return err
	}
	data, err := snapshot.MarshalInstance(img)
	if err != nil {
		return err
	}
	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func importInstance(s *store.Store, reg *model.Registry, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	img, err := snapshot.UnmarshalInstance(data)
	if err != nil {
		return err
	}
	inst, err := snapshot.RestoreInstance(img, reg)
	if err != nil {
		return err
	}
	if err := s.Save(inst); err != nil {
		return err
	}
	fmt.Println(inst.ID)
	return nil
}

func withStore(m *manifest.Manifest, reg *model.Registry, fn func(*store.Store) error) {
	path := m.StorePath()
	if path == "" {
		fmt.Fprintf(os.Stderr, "Error: no store configured in genera.toml\n")
		os.Exit(1)
	}
	s, err := store.Open(path, reg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	if err := fn(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
