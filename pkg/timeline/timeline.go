// Package timeline memoizes derived values and recomputes only those whose
// transitive inputs changed.
//
// A Timeline owns the current revision, the cache of derived values and the
// revision at which each raw input last changed. Query returns a derived
// value, reusing the cached one when it is still valid:
//
//  1. An entry verified at the current revision is returned as is.
//  2. An older entry is verified deeply: every recorded dependency is
//     brought up to date first (recursively, recomputing it if needed) and
//     its changed-at compared against the entry's verified-at. If nothing it
//     read changed, the entry is re-stamped and reused without running its
//     compute function.
//  3. Otherwise the compute function runs. If its output equals the
//     previous one the entry keeps its old changed-at, so dependents still
//     verify clean (early cutoff).
//
// Queries run concurrently under a shared lock; DeclareInputChanged is an
// exclusive section that only advances the revision. Concurrent queries for
// the same key share one computation.
package timeline

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/daviddao/incr/pkg/model"
	"github.com/daviddao/incr/pkg/revision"
	"github.com/daviddao/incr/pkg/stack"
)

// ComputeFunc produces the value for key. It reads inputs through
// h.ReadInput and other derived values through h.Query; those reads become
// the entry's dependencies. It must not call DeclareInputChanged or
// Invalidate on the Timeline it runs under.
type ComputeFunc func(ctx context.Context, h *Handle, key model.Key) (any, error)

// CycleError is returned when a key is requested while it is being computed.
type CycleError = stack.CycleError

// ErrAborted is shared with callers waiting on a computation that panicked.
var ErrAborted = errors.New("timeline: computation aborted")

// entry is immutable once published in Timeline.entries.
type entry struct {
	key        model.Key
	value      any
	verifiedAt revision.Revision
	changedAt  revision.Revision
	edges      []model.Edge
	fn         ComputeFunc
}

func (e *entry) snapshot() model.CacheEntry {
	edges := make([]model.Edge, len(e.edges))
	copy(edges, e.edges)
	return model.CacheEntry{
		Key:        e.key,
		Value:      e.value,
		VerifiedAt: e.verifiedAt,
		ChangedAt:  e.changedAt,
		Edges:      edges,
	}
}

// Stats counts what queries did. Values are cumulative.
type Stats struct {
	Hits       int64 `json:"hits"`
	Verified   int64 `json:"verified"`
	Recomputed int64 `json:"recomputed"`
	Cutoffs    int64 `json:"cutoffs"`
	Failures   int64 `json:"failures"`
	Cycles     int64 `json:"cycles"`
}

type counters struct {
	hits, verified, recomputed, cutoffs, failures, cycles atomic.Int64
}

// Timeline coordinates revisions, dependency tracking and the value cache.
type Timeline struct {
	// rw is held shared by each top-level query tree and exclusively by
	// DeclareInputChanged.
	rw  sync.RWMutex
	rev revision.Counter

	mu      sync.Mutex // guards the maps below
	entries map[model.Key]*entry
	inputs  map[model.InputID]revision.Revision
	flights map[model.Key]*flight
	waiting map[*stack.Stack]*flight

	equal  func(a, b any) bool
	logger *slog.Logger
	stats  counters
}

// New returns an empty Timeline at revision.Zero.
func New(opts ...Option) *Timeline {
	t := &Timeline{
		entries: make(map[model.Key]*entry),
		inputs:  make(map[model.InputID]revision.Revision),
		flights: make(map[model.Key]*flight),
		waiting: make(map[*stack.Stack]*flight),
		equal:   reflect.DeepEqual,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// CurrentRevision returns the present revision.
func (t *Timeline) CurrentRevision() revision.Revision { return t.rev.Current() }

// DeclareInputChanged records that input id has a new value as of a freshly
// minted revision, which it returns. Nothing is recomputed eagerly.
func (t *Timeline) DeclareInputChanged(id model.InputID) revision.Revision {
	t.rw.Lock()
	defer t.rw.Unlock()

	r := t.rev.Advance()
	t.mu.Lock()
	t.inputs[id] = r
	t.mu.Unlock()

	t.logger.Debug("input changed", "input", string(id), "revision", r.String())
	return r
}

// Query returns the up-to-date value for key, running fn only if the cached
// value cannot be reused. A *CycleError is returned if fn, directly or
// through other queries, requests key again. Errors from fn are returned
// unchanged and nothing is cached for key.
func (t *Timeline) Query(ctx context.Context, key model.Key, fn ComputeFunc) (any, error) {
	t.rw.RLock()
	defer t.rw.RUnlock()

	h := &Handle{t: t, stack: stack.New(), rev: t.rev.Current()}
	e, err := t.fetch(ctx, h, key, fn)
	if err != nil {
		return nil, err
	}
	return e.value, nil
}

// Invalidate evicts the entry for key; the next query recomputes it, and
// dependents that recorded key recompute as well. Like an input change it
// is an exclusive section that advances the revision, so whatever key is
// recomputed to counts as changed for every entry verified before.
func (t *Timeline) Invalidate(key model.Key) revision.Revision {
	t.rw.Lock()
	defer t.rw.Unlock()

	r := t.rev.Advance()
	t.mu.Lock()
	delete(t.entries, key)
	t.mu.Unlock()
	t.logger.Debug("entry invalidated", "key", key.String(), "revision", r.String())
	return r
}

// InvalidateAll evicts every entry and advances the revision. Input
// revisions are kept.
func (t *Timeline) InvalidateAll() revision.Revision {
	t.rw.Lock()
	defer t.rw.Unlock()

	r := t.rev.Advance()
	t.mu.Lock()
	n := len(t.entries)
	t.entries = make(map[model.Key]*entry)
	t.mu.Unlock()
	t.logger.Debug("cache cleared", "entries", n, "revision", r.String())
	return r
}

// Entry returns a snapshot of the cached entry for key.
func (t *Timeline) Entry(key model.Key) (model.CacheEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	if !ok {
		return model.CacheEntry{}, false
	}
	return e.snapshot(), true
}

// Snapshot returns every cached entry, ordered by key.
func (t *Timeline) Snapshot() []model.CacheEntry {
	t.mu.Lock()
	out := make([]model.CacheEntry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.snapshot())
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Query != out[j].Key.Query {
			return out[i].Key.Query < out[j].Key.Query
		}
		return out[i].Key.Arg < out[j].Key.Arg
	})
	return out
}

// Inputs returns the revision at which each declared input last changed.
// Inputs never declared are absent and count as unchanged since Zero.
func (t *Timeline) Inputs() map[model.InputID]revision.Revision {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[model.InputID]revision.Revision, len(t.inputs))
	for id, r := range t.inputs {
		out[id] = r
	}
	return out
}

// Stats returns the cumulative query counters.
func (t *Timeline) Stats() Stats {
	return Stats{
		Hits:       t.stats.hits.Load(),
		Verified:   t.stats.verified.Load(),
		Recomputed: t.stats.recomputed.Load(),
		Cutoffs:    t.stats.cutoffs.Load(),
		Failures:   t.stats.failures.Load(),
		Cycles:     t.stats.cycles.Load(),
	}
}

// fetch brings key up to date at h.rev and returns its entry. The caller
// holds rw shared.
func (t *Timeline) fetch(ctx context.Context, h *Handle, key model.Key, fn ComputeFunc) (*entry, error) {
	guard, err := h.stack.Enter(key)
	if err != nil {
		t.stats.cycles.Add(1)
		t.logger.Debug("cycle detected", "key", key.String(), "err", err)
		return nil, err
	}
	defer guard.Release()

	if err, ok := h.failed[key]; ok {
		return nil, err
	}

	for {
		t.mu.Lock()
		if e := t.entries[key]; e != nil && e.verifiedAt == h.rev {
			t.mu.Unlock()
			t.stats.hits.Add(1)
			return e, nil
		}
		if f := t.flights[key]; f != nil {
			if err := t.waitFor(h.stack, key, f); err != nil {
				return nil, err
			}
			if f.err != nil {
				h.fail(key, f.err)
				return nil, f.err
			}
			continue
		}
		f := &flight{key: key, done: make(chan struct{}), owner: h.stack}
		t.flights[key] = f
		prior := t.entries[key]
		t.mu.Unlock()

		return t.refresh(ctx, h, key, fn, prior, f)
	}
}

// refresh verifies prior or recomputes key while owning flight f.
func (t *Timeline) refresh(ctx context.Context, h *Handle, key model.Key, fn ComputeFunc, prior *entry, f *flight) (*entry, error) {
	landed := false
	defer func() {
		if !landed {
			t.land(key, f, ErrAborted)
		}
	}()

	if prior != nil && t.verify(ctx, h, prior) {
		e := *prior
		e.verifiedAt = h.rev
		t.publish(key, prior, &e)
		landed = true
		t.land(key, f, nil)
		t.stats.verified.Add(1)
		t.logger.Debug("entry verified", "key", key.String(), "revision", h.rev.String())
		return &e, nil
	}

	t.stats.recomputed.Add(1)
	value, err := fn(ctx, h, key)
	if err != nil {
		landed = true
		h.fail(key, err)
		t.land(key, f, err)
		t.stats.failures.Add(1)
		t.logger.Debug("compute failed", "key", key.String(), "err", err)
		return nil, err
	}

	e := &entry{
		key:        key,
		value:      value,
		verifiedAt: h.rev,
		changedAt:  h.rev,
		edges:      h.stack.CurrentFrameEdges(),
		fn:         fn,
	}
	if prior != nil && t.equal(prior.value, value) {
		e.value = prior.value
		e.changedAt = prior.changedAt
		t.stats.cutoffs.Add(1)
	}
	t.publish(key, prior, e)
	landed = true
	t.land(key, f, nil)
	t.logger.Debug("entry recomputed", "key", key.String(),
		"revision", h.rev.String(), "changed_at", e.changedAt.String(), "edges", len(e.edges))
	return e, nil
}

// verify reports whether none of prior's dependencies changed after it was
// verified. Derived dependencies are brought up to date first; one that
// fails to refresh counts as changed so the recomputation surfaces the
// failure through prior's own compute function. The failure is kept on h,
// so that recomputation sees it without running the dependency again.
func (t *Timeline) verify(ctx context.Context, h *Handle, prior *entry) bool {
	for _, edge := range prior.edges {
		if edge.IsInput() {
			t.mu.Lock()
			changed := t.inputs[edge.Input]
			t.mu.Unlock()
			if prior.verifiedAt.Less(changed) {
				return false
			}
			continue
		}

		t.mu.Lock()
		dep := t.entries[edge.Key]
		t.mu.Unlock()
		if dep == nil {
			return false
		}
		dep, err := t.fetch(ctx, h, edge.Key, dep.fn)
		if err != nil {
			return false
		}
		if prior.verifiedAt.Less(dep.changedAt) {
			return false
		}
	}
	return true
}

// publish stores next unless the slot was invalidated or replaced since
// prior was read.
func (t *Timeline) publish(key model.Key, prior, next *entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.entries[key] == prior {
		t.entries[key] = next
	}
}
