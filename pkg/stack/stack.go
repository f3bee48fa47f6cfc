// Package stack tracks the chain of derived computations currently
// executing in one call tree.
//
// Each active computation owns a frame. A frame collects the dependency
// edges the computation reads while it runs; when the computation finishes
// the caller takes those edges and pops the frame. A key may appear at most
// once among active frames: entering a key that is already on the stack
// means the computation would observe its own unfinished output, which is
// reported as a CycleError.
//
// A Stack is not goroutine-safe. One Stack models one logical thread of
// recursive evaluation.
package stack

import "github.com/daviddao/incr/pkg/model"

type frame struct {
	key   model.Key
	edges []model.Edge
	seen  map[model.Edge]struct{}
}

// Stack is an array-backed stack of active computation frames.
type Stack struct {
	frames []*frame
	active map[model.Key]int
}

// New returns an empty Stack.
func New() *Stack {
	return &Stack{active: make(map[model.Key]int)}
}

// Guard pops the frame pushed by Enter. Release it on every exit path,
// typically with defer.
type Guard struct {
	s     *Stack
	depth int
	done  bool
}

// Enter pushes a frame for key. It fails with a *CycleError if key is
// already active.
func (s *Stack) Enter(key model.Key) (*Guard, error) {
	if _, ok := s.active[key]; ok {
		return nil, &CycleError{Chain: s.Keys(), Key: key}
	}
	s.frames = append(s.frames, &frame{key: key})
	s.active[key] = len(s.frames) - 1
	return &Guard{s: s, depth: len(s.frames) - 1}, nil
}

// Release pops the guarded frame, along with any frame above it that was
// leaked by a caller that did not release its own guard. Calling Release
// more than once is a no-op.
func (g *Guard) Release() {
	if g == nil || g.done {
		return
	}
	g.done = true
	s := g.s
	for len(s.frames) > g.depth {
		top := s.frames[len(s.frames)-1]
		delete(s.active, top.key)
		s.frames[len(s.frames)-1] = nil
		s.frames = s.frames[:len(s.frames)-1]
	}
}

// RecordDependency appends edge to the innermost frame. Duplicate edges are
// recorded once, in first-read order. It returns false and records nothing
// when the stack is empty: a read outside any tracked computation is a root.
func (s *Stack) RecordDependency(edge model.Edge) bool {
	if len(s.frames) == 0 {
		return false
	}
	f := s.frames[len(s.frames)-1]
	if f.seen == nil {
		f.seen = make(map[model.Edge]struct{})
	}
	if _, dup := f.seen[edge]; dup {
		return true
	}
	f.seen[edge] = struct{}{}
	f.edges = append(f.edges, edge)
	return true
}

// CurrentFrameEdges returns a copy of the edges recorded so far by the
// innermost frame, or nil if the stack is empty.
func (s *Stack) CurrentFrameEdges() []model.Edge {
	if len(s.frames) == 0 {
		return nil
	}
	edges := s.frames[len(s.frames)-1].edges
	if len(edges) == 0 {
		return nil
	}
	out := make([]model.Edge, len(edges))
	copy(out, edges)
	return out
}

// Depth returns the number of active frames.
func (s *Stack) Depth() int { return len(s.frames) }

// Contains reports whether key is active.
func (s *Stack) Contains(key model.Key) bool {
	_, ok := s.active[key]
	return ok
}

// Keys returns the active keys, outermost first.
func (s *Stack) Keys() []model.Key {
	keys := make([]model.Key, len(s.frames))
	for i, f := range s.frames {
		keys[i] = f.key
	}
	return keys
}
