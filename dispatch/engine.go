package dispatch

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/genera/model"
)

// Absent is the explicit marker for an argument position that is
// present in the argument list but deliberately not supplied. Positions
// beyond the end of the argument list are equally absent.
var Absent any = absentMarker{}

type absentMarker struct{}

// anyRank is the rank assigned to an Any match: below every concrete
// chain or tag match, which are bounded by chain length.
const anyRank = 1 << 30

// Engine resolves generic calls to method implementations. It holds no
// per-call state; the method table is the only durable state.
type Engine struct {
	classes  *model.Registry
	generics *Registry
	table    *Table
	bridge   *Bridge
	log      commonlog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithTable supplies a pre-built method table (for strict mode).
func WithTable(t *Table) Option {
	return func(e *Engine) { e.table = t }
}

// WithBridge supplies the legacy compatibility bridge.
func WithBridge(b *Bridge) Option {
	return func(e *Engine) { e.bridge = b }
}

// New creates an engine over a class registry with its own generic
// registry, method table, and bridge unless options supply them.
func New(classes *model.Registry, opts ...Option) *Engine {
	e := &Engine{
		classes:  classes,
		generics: NewRegistry(),
		log:      commonlog.GetLogger("genera.dispatch"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.table == nil {
		e.table = NewTable()
	}
	if e.bridge == nil {
		e.bridge = NewBridge()
	}
	return e
}

// Classes returns the class registry the engine dispatches over.
func (e *Engine) Classes() *model.Registry { return e.classes }

// Generics returns the generic registry.
func (e *Engine) Generics() *Registry { return e.generics }

// Methods returns the method table.
func (e *Engine) Methods() *Table { return e.table }

// Bridge returns the legacy compatibility bridge.
func (e *Engine) Bridge() *Bridge { return e.bridge }

// ---------------------------------------------------------------------------
// Call options
// ---------------------------------------------------------------------------

// CallOption adjusts a single dispatch.
type CallOption func(*callConfig) error

type callConfig struct {
	// super maps argument positions to the ancestor class the argument
	// should be dispatched as. The argument itself is never altered.
	super map[int]*model.Class
}

// AsAncestor requests that the argument at the given position be
// treated, for matching only, as an instance of one of its own
// ancestor classes. The target must be the argument's class or an
// ancestor of it; anything else fails with InvalidSuperTarget at call
// time.
func AsAncestor(position int, target *model.Class) CallOption {
	return func(c *callConfig) error {
		if target == nil {
			return fmt.Errorf("%w: nil target", ErrInvalidSuperTarget)
		}
		if c.super == nil {
			c.super = make(map[int]*model.Class)
		}
		c.super[position] = target
		return nil
	}
}

// ---------------------------------------------------------------------------
// Dispatch
// ---------------------------------------------------------------------------

// argInfo is the extracted dispatch identity of one argument position.
type argInfo struct {
	present bool
	chain   []*model.Class // ancestor chain used for matching, most-derived-first
	tags    []string       // legacy tags used for tag and bridge matching
	val     any
}

func (a argInfo) display() string {
	switch {
	case !a.present:
		return "missing"
	case len(a.chain) > 0:
		return a.chain[0].Name
	case len(a.tags) > 0:
		return a.tags[0]
	default:
		return fmt.Sprintf("%T", a.val)
	}
}

// Call invokes a generic by name: the generic's body runs, which in
// turn (for the default body) dispatches. An unknown generic name is
// resolved through the legacy bridge before failing.
func (e *Engine) Call(name string, args []any, opts ...CallOption) (any, error) {
	g := e.generics.Lookup(name)
	if g == nil {
		if fn := e.bridge.Lookup(name, legacyTagsOf(firstArg(args))); fn != nil {
			return fn(args)
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownGeneric, name)
	}
	return g.Body(e, g, args, opts...)
}

// Dispatch selects the most specific applicable method for the
// arguments and invokes it with the original, non-substituted argument
// list, forwarding extra arguments unchanged.
func (e *Engine) Dispatch(g *Generic, args []any, opts ...CallOption) (any, error) {
	fn, err := e.selectMethod(g, args, opts...)
	if err != nil {
		return nil, err
	}
	return fn(args)
}

// selectMethod runs the position-by-position narrowing. The states of a
// single call are: extract classes, match each position in order, then
// resolved, or unresolved and (on a total miss only) the legacy
// fallback.
func (e *Engine) selectMethod(g *Generic, args []any, opts ...CallOption) (func([]any) (any, error), error) {
	var cfg callConfig
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	for pos := range cfg.super {
		if !containsInt(g.Positions, pos) {
			return nil, fmt.Errorf("%w: %d is not a dispatch position of %s",
				ErrInvalidSuperTarget, pos, g.Name)
		}
	}

	infos := make([]argInfo, len(g.Positions))
	for i, pos := range g.Positions {
		info, err := e.extract(args, pos, cfg.super[pos])
		if err != nil {
			return nil, err
		}
		infos[i] = info
	}

	cands := e.table.snapshot(g)
	if len(cands) == 0 {
		return e.fallback(g, infos, nil)
	}

	for i := range infos {
		best := -1
		kept := cands[:0:0]
		for _, en := range cands {
			r, ok := rank(en.sig[i], infos[i])
			if !ok {
				continue
			}
			switch {
			case best == -1 || r < best:
				best = r
				kept = append(kept[:0], en)
			case r == best:
				kept = append(kept, en)
			}
		}
		if len(kept) == 0 {
			partial := make([]string, i+1)
			for j := 0; j <= i; j++ {
				partial[j] = infos[j].display()
			}
			if i == 0 {
				// Nothing matched even the first position: a total
				// miss, eligible for the legacy fallback.
				return e.fallback(g, infos, partial)
			}
			return nil, &MethodNotFoundError{Generic: g.Name, Partial: partial}
		}
		cands = kept
	}

	// Ties at the final position should not occur under single
	// inheritance with per-position ranking; resolve deterministically
	// by registration order anyway.
	selected := cands[0]
	for _, en := range cands[1:] {
		if en.seq < selected.seq {
			selected = en
		}
	}
	if len(cands) > 1 {
		e.log.Debugf("ambiguous dispatch on %s resolved to first-registered signature (%s)",
			g.Name, sigString(selected.sig))
	}
	return selected.m.Fn, nil
}

// fallback attempts resolution through the compatibility bridge using
// the first dispatch position's legacy tag sequence.
func (e *Engine) fallback(g *Generic, infos []argInfo, partial []string) (func([]any) (any, error), error) {
	if len(infos) > 0 {
		if fn := e.bridge.Lookup(g.Name, infos[0].tags); fn != nil {
			e.log.Debugf("legacy fallback resolved %s", g.Name)
			return fn, nil
		}
	}
	return nil, &MethodNotFoundError{Generic: g.Name, Partial: partial}
}

// extract determines the dispatch identity of one argument position,
// applying any as-ancestor substitution. Substitution changes matching
// only; the argument keeps its runtime class and properties.
func (e *Engine) extract(args []any, pos int, super *model.Class) (argInfo, error) {
	if pos >= len(args) {
		if super != nil {
			return argInfo{}, fmt.Errorf("%w: position %d is absent", ErrInvalidSuperTarget, pos)
		}
		return argInfo{}, nil
	}
	v := args[pos]
	if _, absent := v.(absentMarker); absent {
		if super != nil {
			return argInfo{}, fmt.Errorf("%w: position %d is absent", ErrInvalidSuperTarget, pos)
		}
		return argInfo{}, nil
	}

	info := argInfo{present: true, val: v}

	if inst, ok := v.(*model.Instance); ok {
		cls := inst.Class()
		if super != nil {
			if !cls.IsSubclassOf(super) {
				return argInfo{}, fmt.Errorf("%w: %s is not an ancestor of %s",
					ErrInvalidSuperTarget, super.Name, cls.Name)
			}
			cls = super
		}
		info.chain = cls.Ancestors()
		info.tags = cls.LegacyTags()
		return info, nil
	}

	if super != nil {
		return argInfo{}, fmt.Errorf("%w: position %d carries no class chain", ErrInvalidSuperTarget, pos)
	}
	if tagged, ok := v.(model.Tagged); ok {
		info.tags = tagged.LegacyTags()
	}
	return info, nil
}

// rank scores a specializer against an argument. Lower is more
// specific: an exact class match is 0, an ancestor match is its chain
// index, a union takes its best member, Missing beats Any for an
// absent argument, and Any ranks below every concrete match.
func rank(s Specializer, a argInfo) (int, bool) {
	if !a.present {
		switch s.(type) {
		case missingSpec:
			return 0, true
		case anySpec:
			return 1, true
		}
		return 0, false
	}

	switch x := s.(type) {
	case classSpec:
		for i, c := range a.chain {
			if c == x.class {
				return i, true
			}
		}
		return 0, false
	case tagSpec:
		for i, tag := range a.tags {
			if tag == x.tag {
				return i, true
			}
		}
		return 0, false
	case unionSpec:
		best := -1
		for _, m := range x.members {
			if r, ok := rank(m, a); ok && (best == -1 || r < best) {
				best = r
			}
		}
		if best >= 0 {
			return best, true
		}
		return 0, false
	case anySpec:
		return anyRank, true
	}
	return 0, false
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func firstArg(args []any) any {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}

func legacyTagsOf(v any) []string {
	if tagged, ok := v.(model.Tagged); ok {
		return tagged.LegacyTags()
	}
	return nil
}
