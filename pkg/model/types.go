// Package model defines the core domain types for incr.
//
// incr memoizes derived values computed from mutable inputs using two ideas:
//
//   - Revisions: a logical clock advanced once per input change. Every
//     cached value records when it was last verified and when its value
//     last actually changed.
//
//   - Dependency edges: while a derived value is computed, every input and
//     every other derived value it reads is recorded. A cached value is
//     reusable when none of those dependencies changed after it was verified.
package model

import (
	"fmt"

	"github.com/daviddao/incr/pkg/revision"
)

// Key identifies one derived computation instance: the computation's name
// plus the argument that distinguishes one invocation from another.
type Key struct {
	Query string `json:"query"`
	Arg   string `json:"arg,omitempty"`
}

// String renders k as "query(arg)".
func (k Key) String() string {
	return fmt.Sprintf("%s(%s)", k.Query, k.Arg)
}

// InputID identifies a raw mutable input. Only equality is meaningful.
type InputID string

// EdgeKind tells the two kinds of dependency edge apart.
type EdgeKind string

const (
	EdgeInput EdgeKind = "input"
	EdgeKey   EdgeKind = "key"
)

// Edge records that a computation read either a raw input or another
// derived value. Kind says which of Input and Key is meaningful; any
// InputID, the empty one included, makes a valid input edge.
type Edge struct {
	Kind  EdgeKind `json:"kind"`
	Input InputID  `json:"input,omitempty"`
	Key   Key      `json:"key,omitzero"`
}

// InputEdge returns an edge to a raw input.
func InputEdge(id InputID) Edge { return Edge{Kind: EdgeInput, Input: id} }

// KeyEdge returns an edge to a derived value.
func KeyEdge(k Key) Edge { return Edge{Kind: EdgeKey, Key: k} }

// IsInput reports whether e points at a raw input.
func (e Edge) IsInput() bool { return e.Kind == EdgeInput }

// String renders e as "input:<id>" or the key's form.
func (e Edge) String() string {
	if e.IsInput() {
		return "input:" + string(e.Input)
	}
	return e.Key.String()
}

// CacheEntry is a read-only snapshot of a memoized value.
type CacheEntry struct {
	Key        Key               `json:"key"`
	Value      any               `json:"value"`
	VerifiedAt revision.Revision `json:"verified_at"`
	ChangedAt  revision.Revision `json:"changed_at"`
	Edges      []Edge            `json:"edges"`
}

// VerifiedAtCurrent reports whether the entry was confirmed valid at cur
// and may be reused without looking at its dependencies.
func (e CacheEntry) VerifiedAtCurrent(cur revision.Revision) bool {
	return e.VerifiedAt == cur
}
