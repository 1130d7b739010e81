package dispatch

import (
	"fmt"
	"sync"

	"github.com/tliron/commonlog"
)

// BodyFunc is a generic's callable body. Every reachable path of a body
// must invoke the engine's dispatch primitive; this is a construction
// contract, not re-verified per call. Custom bodies may validate or
// coerce arguments before delegating.
type BodyFunc func(e *Engine, g *Generic, args []any, opts ...CallOption) (any, error)

// Generic is a named interface with a fixed dispatch-position list,
// implemented by methods registered in a Table. Immutable after
// definition.
type Generic struct {
	Name string

	// Positions are the argument indices used for matching, in the
	// order they are narrowed. Length is at least 1.
	Positions []int

	// Params are the generic's formal parameter names, compared against
	// method formals at registration time. Variadic marks a trailing
	// capture of extra arguments.
	Params   []string
	Variadic bool

	// Body runs on every call. The default body forwards all received
	// arguments to the engine's dispatch primitive unchanged.
	Body BodyFunc
}

// GenericOption configures a Generic at definition time.
type GenericOption func(*Generic)

// WithBody replaces the default dispatch-forwarding body.
func WithBody(body BodyFunc) GenericOption {
	return func(g *Generic) { g.Body = body }
}

// WithParams declares the generic's formal parameter names and whether
// it captures extra arguments variadically.
func WithParams(variadic bool, names ...string) GenericOption {
	return func(g *Generic) {
		g.Params = names
		g.Variadic = variadic
	}
}

func defaultBody(e *Engine, g *Generic, args []any, opts ...CallOption) (any, error) {
	return e.Dispatch(g, args, opts...)
}

// ---------------------------------------------------------------------------
// Generic registry
// ---------------------------------------------------------------------------

// Registry is the process-wide generic table. Registration may happen
// at any point, not only at load time; lookups are continuous.
type Registry struct {
	mu       sync.RWMutex
	generics map[string]*Generic
	log      commonlog.Logger
}

// NewRegistry creates an empty generic registry.
func NewRegistry() *Registry {
	return &Registry{
		generics: make(map[string]*Generic),
		log:      commonlog.GetLogger("genera.dispatch"),
	}
}

// NewGeneric validates and registers a generic. Registration is atomic;
// on error nothing is registered. Re-registering a name replaces it.
func (r *Registry) NewGeneric(name string, positions []int, opts ...GenericOption) (*Generic, error) {
	if name == "" {
		return nil, fmt.Errorf("generic name must be a non-empty string")
	}
	if len(positions) == 0 {
		return nil, fmt.Errorf("generic %s: at least one dispatch position is required", name)
	}
	seen := make(map[int]bool, len(positions))
	for _, p := range positions {
		if p < 0 {
			return nil, fmt.Errorf("generic %s: negative dispatch position %d", name, p)
		}
		if seen[p] {
			return nil, fmt.Errorf("generic %s: duplicate dispatch position %d", name, p)
		}
		seen[p] = true
	}

	g := &Generic{
		Name:      name,
		Positions: append([]int(nil), positions...),
		Body:      defaultBody,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.Body == nil {
		g.Body = defaultBody
	}

	r.mu.Lock()
	old := r.generics[name]
	r.generics[name] = g
	r.mu.Unlock()

	if old != nil {
		r.log.Infof("redefined generic %s", name)
	}
	return g, nil
}

// Lookup finds a generic by name, or nil.
func (r *Registry) Lookup(name string) *Generic {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generics[name]
}

// All returns all registered generics.
func (r *Registry) All() []*Generic {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Generic, 0, len(r.generics))
	for _, g := range r.generics {
		out = append(out, g)
	}
	return out
}

// Len returns the number of registered generics.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.generics)
}
