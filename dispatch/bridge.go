package dispatch

import "sync"

// LegacyFunc is a method implementation reachable through the
// compatibility bridge.
type LegacyFunc func(args []any) (any, error)

// Bridge exposes class tags to a legacy single-dispatch mechanism and
// lets the engine fall back to it when no method table entry matches at
// all. Matching is the legacy rule: a linear search of the first
// argument's tag sequence, most specific tag first.
type Bridge struct {
	mu      sync.RWMutex
	methods map[string]map[string]LegacyFunc // selector -> tag -> impl
}

// NewBridge creates an empty bridge.
func NewBridge() *Bridge {
	return &Bridge{
		methods: make(map[string]map[string]LegacyFunc),
	}
}

// Register adds a legacy implementation for a selector and class tag.
// Last write wins.
func (b *Bridge) Register(selector, tag string, fn LegacyFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.methods[selector] == nil {
		b.methods[selector] = make(map[string]LegacyFunc)
	}
	b.methods[selector][tag] = fn
}

// Lookup resolves a selector against a tag sequence by linear search in
// tag order. Returns nil if nothing matches.
func (b *Bridge) Lookup(selector string, tags []string) LegacyFunc {
	b.mu.RLock()
	defer b.mu.RUnlock()

	byTag := b.methods[selector]
	if byTag == nil {
		return nil
	}
	for _, tag := range tags {
		if fn, ok := byTag[tag]; ok {
			return fn
		}
	}
	return nil
}

// Has returns true if any implementation is registered for the selector.
func (b *Bridge) Has(selector string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.methods[selector]) > 0
}
