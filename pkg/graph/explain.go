package graph

import (
	"fmt"
	"io"
	"strings"

	"github.com/daviddao/incr/pkg/model"
	"github.com/daviddao/incr/pkg/revision"
)

// Node is one dependency in an explain tree.
type Node struct {
	Edge       model.Edge        `json:"edge"`
	Value      any               `json:"value,omitempty"`
	VerifiedAt revision.Revision `json:"verified_at"`
	ChangedAt  revision.Revision `json:"changed_at"`
	// Missing is set for a derived edge with no cached entry.
	Missing bool `json:"missing,omitempty"`
	// Repeat is set when the key was already expanded elsewhere in the tree.
	Repeat   bool    `json:"repeat,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// Explain builds the dependency tree recorded for key. Each key is expanded
// once; later occurrences are marked Repeat. Input nodes carry the input's
// changed-at in both revision fields.
func Explain(key model.Key, entries []model.CacheEntry, inputs map[model.InputID]revision.Revision) *Node {
	idx := NewIndex(entries)
	expanded := make(map[model.Key]bool)

	var build func(edge model.Edge) *Node
	build = func(edge model.Edge) *Node {
		n := &Node{Edge: edge}
		if edge.IsInput() {
			n.ChangedAt = inputs[edge.Input]
			n.VerifiedAt = n.ChangedAt
			return n
		}
		e, ok := idx[edge.Key]
		if !ok {
			n.Missing = true
			return n
		}
		n.Value, n.VerifiedAt, n.ChangedAt = e.Value, e.VerifiedAt, e.ChangedAt
		if expanded[edge.Key] {
			n.Repeat = true
			return n
		}
		expanded[edge.Key] = true
		for _, child := range e.Edges {
			n.Children = append(n.Children, build(child))
		}
		return n
	}
	return build(model.KeyEdge(key))
}

// Print writes n as an indented tree.
func Print(w io.Writer, n *Node) {
	printNode(w, n, 0)
}

func printNode(w io.Writer, n *Node, depth int) {
	indent := strings.Repeat("  ", depth)
	switch {
	case n.Edge.IsInput():
		fmt.Fprintf(w, "%s%s changed=%s\n", indent, n.Edge, n.ChangedAt)
	case n.Missing:
		fmt.Fprintf(w, "%s%s (not cached)\n", indent, n.Edge)
	default:
		suffix := ""
		if n.Repeat {
			suffix = " (see above)"
		}
		fmt.Fprintf(w, "%s%s = %v verified=%s changed=%s%s\n",
			indent, n.Edge, n.Value, n.VerifiedAt, n.ChangedAt, suffix)
	}
	for _, c := range n.Children {
		printNode(w, c, depth+1)
	}
}
