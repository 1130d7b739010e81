// Package dispatch implements generic functions with multiple-argument
// dispatch over the genera object model.
//
// A Generic names an interface with an ordered list of dispatch
// positions. Methods are registered against a signature of specializers
// (class, union, any, missing, legacy tag), one per position. Dispatch
// resolves positions strictly left to right: at each position the
// argument's ancestor chain is walked most-derived-first and the
// candidates matching at the nearest chain level survive. A call can
// request that one argument be dispatched as one of its ancestors
// without changing the argument itself, and a total miss falls back to
// the legacy single-dispatch bridge.
package dispatch
