package timeline

import (
	"github.com/daviddao/incr/pkg/model"
	"github.com/daviddao/incr/pkg/stack"
)

// flight is one in-progress refresh of a key. Callers that find a flight
// wait on done and then re-read the cache; err is set before done closes.
type flight struct {
	key   model.Key
	done  chan struct{}
	owner *stack.Stack
	err   error
}

// waitFor blocks s until f lands. It is called with t.mu held and returns
// with it released. A wait that would close a loop of call trees waiting
// on each other is refused with a *CycleError whose chain runs through
// every tree in the loop.
func (t *Timeline) waitFor(s *stack.Stack, key model.Key, f *flight) error {
	chain := s.Keys()
	for next := f; next != nil; {
		if next.owner == s {
			t.mu.Unlock()
			if next != f {
				// The last tree's innermost key is the one s owns.
				chain = chain[:len(chain)-1]
			}
			t.stats.cycles.Add(1)
			err := &CycleError{Chain: chain, Key: next.key}
			t.logger.Debug("cycle detected across queries", "key", key.String(), "err", err)
			return err
		}
		parked := t.waiting[next.owner]
		if parked == nil {
			break
		}
		// A parked owner's stack is fixed until it leaves t.waiting.
		chain = append(chain, keysAfter(next.owner.Keys(), next.key)...)
		next = parked
	}
	t.waiting[s] = f
	t.mu.Unlock()

	<-f.done

	t.mu.Lock()
	delete(t.waiting, s)
	t.mu.Unlock()
	return nil
}

// keysAfter returns the keys following k in keys.
func keysAfter(keys []model.Key, k model.Key) []model.Key {
	for i, key := range keys {
		if key == k {
			return keys[i+1:]
		}
	}
	return nil
}

// land publishes the outcome of f and wakes its waiters.
func (t *Timeline) land(key model.Key, f *flight, err error) {
	t.mu.Lock()
	f.err = err
	if t.flights[key] == f {
		delete(t.flights, key)
	}
	t.mu.Unlock()
	close(f.done)
}
