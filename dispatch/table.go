package dispatch

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
)

// Method is a registered implementation: the callable plus its declared
// formal parameter list, used only for the drift check against the
// generic.
type Method struct {
	Params   []string
	Variadic bool
	Fn       func(args []any) (any, error)
}

// entry is one method table row. seq is the registration order, used as
// the deterministic tie-break when the final position leaves several
// equally ranked candidates.
type entry struct {
	sig []Specializer
	m   Method
	seq int
}

// Table maps (generic, signature) pairs to method implementations.
// Re-registering an existing key overwrites silently: last write wins,
// which is what hot reloading needs. The table is the only durable
// dispatch state and is safe for concurrent registration and lookup.
type Table struct {
	mu      sync.RWMutex
	methods map[*Generic][]*entry
	seq     int
	strict  bool
	log     commonlog.Logger
}

// TableOption configures a Table.
type TableOption func(*Table)

// Strict escalates SignatureDrift from an advisory warning to a
// registration error.
func Strict() TableOption {
	return func(t *Table) { t.strict = true }
}

// NewTable creates an empty method table.
func NewTable(opts ...TableOption) *Table {
	t := &Table{
		methods: make(map[*Generic][]*entry),
		log:     commonlog.GetLogger("genera.dispatch"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Register adds a method implementation for a generic under a
// signature. The signature must have exactly one specializer per
// dispatch position; nil elements normalize to Any. Length mismatch is
// fatal and registers nothing. A formal-parameter mismatch between the
// generic and the method logs a SignatureDrift warning and registers
// anyway, unless the table is strict.
func (t *Table) Register(g *Generic, sig []Specializer, m Method) error {
	if g == nil {
		return fmt.Errorf("%w: nil generic", ErrUnknownGeneric)
	}
	if len(sig) != len(g.Positions) {
		return fmt.Errorf("%w: %s expects %d specializers, got %d",
			ErrSignatureLengthMismatch, g.Name, len(g.Positions), len(sig))
	}
	if m.Fn == nil {
		return fmt.Errorf("method for %s has no implementation", g.Name)
	}

	norm := make([]Specializer, len(sig))
	for i, s := range sig {
		if s == nil {
			s = Any
		}
		norm[i] = s
	}

	if msg := formalDrift(g, m); msg != "" {
		if t.strict {
			return fmt.Errorf("%w: %s: %s", ErrSignatureDrift, g.Name, msg)
		}
		t.log.Warningf("signature drift on %s(%s): %s", g.Name, sigString(norm), msg)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++
	e := &entry{sig: norm, m: m, seq: t.seq}
	for i, existing := range t.methods[g] {
		if sigEqual(existing.sig, norm) {
			t.methods[g][i] = e
			return nil
		}
	}
	t.methods[g] = append(t.methods[g], e)
	return nil
}

// Remove deletes the method registered under a signature. Returns true
// if an entry was removed.
func (t *Table) Remove(g *Generic, sig []Specializer) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := t.methods[g]
	for i, e := range entries {
		if sigEqual(e.sig, sig) {
			t.methods[g] = append(entries[:i:i], entries[i+1:]...)
			return true
		}
	}
	return false
}

// MethodCount returns the number of methods registered for a generic.
func (t *Table) MethodCount(g *Generic) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.methods[g])
}

// Signatures returns the display form of every signature registered for
// a generic, in registration order.
func (t *Table) Signatures(g *Generic) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, 0, len(t.methods[g]))
	for _, e := range t.methods[g] {
		out = append(out, sigString(e.sig))
	}
	return out
}

// snapshot copies the entry list for a generic so dispatch can filter
// without holding the lock.
func (t *Table) snapshot(g *Generic) []*entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entries := t.methods[g]
	out := make([]*entry, len(entries))
	copy(out, entries)
	return out
}

func sigString(sig []Specializer) string {
	names := make([]string, len(sig))
	for i, s := range sig {
		names[i] = s.SpecName()
	}
	return strings.Join(names, ", ")
}

// formalDrift compares the method's fixed formal parameters against the
// generic's, per the soft contract: names must agree in order up to the
// point the generic accepts extra arguments; a non-variadic generic
// requires the full lists to agree. Returns an empty string when the
// formals are compatible, else a description. Methods with no declared
// formals are never flagged; argument-count errors at call time remain
// the actual enforcement.
func formalDrift(g *Generic, m Method) string {
	if len(g.Params) == 0 || len(m.Params) == 0 {
		return ""
	}

	fixed := len(g.Params)
	if g.Variadic {
		if len(m.Params) < fixed {
			return fmt.Sprintf("method declares %d parameters, generic has %d fixed", len(m.Params), fixed)
		}
	} else {
		if len(m.Params) != fixed || m.Variadic {
			return fmt.Sprintf("method formals (%s) do not match generic formals (%s)",
				strings.Join(m.Params, ", "), strings.Join(g.Params, ", "))
		}
	}
	for i := 0; i < fixed && i < len(m.Params); i++ {
		if m.Params[i] != g.Params[i] {
			return fmt.Sprintf("parameter %d is %q on the method, %q on the generic",
				i, m.Params[i], g.Params[i])
		}
	}
	return ""
}
