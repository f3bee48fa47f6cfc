// Package graph analyses a snapshot of a Timeline's cache.
//
// The cache records, per entry, the edges it read when it was last computed.
// Reading those edges backwards answers "what would an input change touch",
// and comparing revisions along them answers "what will the next query have
// to re-validate first". The latter is the stale frontier: the set of
// unverified entries none of whose own derived dependencies are unverified.
// Those are the entries a deep verification reaches before anything else.
//
// Everything here is read-only and works on model.CacheEntry snapshots, so
// it never blocks queries.
package graph

import (
	"sort"

	"github.com/daviddao/incr/pkg/model"
	"github.com/daviddao/incr/pkg/revision"
)

// Index maps keys to snapshot entries.
type Index map[model.Key]model.CacheEntry

// NewIndex indexes entries by key.
func NewIndex(entries []model.CacheEntry) Index {
	idx := make(Index, len(entries))
	for _, e := range entries {
		idx[e.Key] = e
	}
	return idx
}

// Dependents returns every key whose recorded edges reach target,
// directly or transitively, sorted by key.
func Dependents(entries []model.CacheEntry, target model.Edge) []model.Key {
	reverse := make(map[model.Edge][]model.Key)
	for _, e := range entries {
		for _, edge := range e.Edges {
			reverse[edge] = append(reverse[edge], e.Key)
		}
	}

	seen := make(map[model.Key]bool)
	queue := []model.Edge{target}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, k := range reverse[cur] {
			if seen[k] {
				continue
			}
			seen[k] = true
			queue = append(queue, model.KeyEdge(k))
		}
	}

	out := make([]model.Key, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sortKeys(out)
	return out
}

// StaleFrontier returns the antichain of unverified entries: entries not
// verified at cur whose derived dependencies are all verified at cur (or
// no longer cached). Sorted by key.
func StaleFrontier(entries []model.CacheEntry, cur revision.Revision) []model.Key {
	idx := NewIndex(entries)
	var frontier []model.Key
	for _, e := range entries {
		if e.VerifiedAtCurrent(cur) {
			continue
		}
		dominated := false
		for _, edge := range e.Edges {
			if edge.IsInput() {
				continue
			}
			if dep, ok := idx[edge.Key]; ok && !dep.VerifiedAtCurrent(cur) {
				dominated = true
				break
			}
		}
		if !dominated {
			frontier = append(frontier, e.Key)
		}
	}
	sortKeys(frontier)
	return frontier
}

// KeyStatus is the result of a freshness check for one cached key.
type KeyStatus struct {
	Key model.Key `json:"key"`
	// Fresh is true when the entry is verified at the current revision and
	// the next query is a plain cache hit.
	Fresh bool `json:"fresh"`
	// ChangedDeps lists direct edges whose changed-at is newer than the
	// entry's verified-at, or whose entry was evicted.
	ChangedDeps []model.Edge `json:"changed_deps,omitempty"`
	// Frontier is the stale frontier restricted to key's dependency closure.
	Frontier []model.Key `json:"frontier,omitempty"`
}

// ComputeKeyStatus checks whether key can be served from cache at cur,
// given the cache snapshot and the input changed-at revisions.
func ComputeKeyStatus(key model.Key, entries []model.CacheEntry, inputs map[model.InputID]revision.Revision, cur revision.Revision) (KeyStatus, bool) {
	idx := NewIndex(entries)
	e, ok := idx[key]
	if !ok {
		return KeyStatus{Key: key}, false
	}
	status := KeyStatus{Key: key, Fresh: e.VerifiedAtCurrent(cur)}
	if status.Fresh {
		return status, true
	}

	for _, edge := range e.Edges {
		if edge.IsInput() {
			if e.VerifiedAt.Less(inputs[edge.Input]) {
				status.ChangedDeps = append(status.ChangedDeps, edge)
			}
			continue
		}
		dep, ok := idx[edge.Key]
		if !ok || e.VerifiedAt.Less(dep.ChangedAt) {
			status.ChangedDeps = append(status.ChangedDeps, edge)
		}
	}

	closure := closureOf(idx, key)
	var sub []model.CacheEntry
	for k := range closure {
		sub = append(sub, idx[k])
	}
	status.Frontier = StaleFrontier(sub, cur)
	return status, true
}

// closureOf returns key and every cached key it transitively depends on.
func closureOf(idx Index, key model.Key) map[model.Key]bool {
	seen := map[model.Key]bool{key: true}
	stack := []model.Key{key}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, edge := range idx[cur].Edges {
			if edge.IsInput() || seen[edge.Key] {
				continue
			}
			if _, ok := idx[edge.Key]; !ok {
				continue
			}
			seen[edge.Key] = true
			stack = append(stack, edge.Key)
		}
	}
	return seen
}

func sortKeys(keys []model.Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Query != keys[j].Query {
			return keys[i].Query < keys[j].Query
		}
		return keys[i].Arg < keys[j].Arg
	})
}
