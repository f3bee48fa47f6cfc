package stack

import (
	"errors"
	"strings"

	"github.com/daviddao/incr/pkg/model"
)

// ErrCycle is matched by every *CycleError via errors.Is.
var ErrCycle = errors.New("dependency cycle")

// CycleError reports that Key was requested while already being computed.
// Chain holds the active keys at the moment of detection, outermost first.
type CycleError struct {
	Chain []model.Key
	Key   model.Key
}

func (e *CycleError) Error() string {
	var b strings.Builder
	b.WriteString("dependency cycle: ")
	for _, k := range e.Cycle() {
		b.WriteString(k.String())
		b.WriteString(" -> ")
	}
	b.WriteString(e.Key.String())
	return b.String()
}

// Is makes errors.Is(err, ErrCycle) true for any cycle error.
func (e *CycleError) Is(target error) bool { return target == ErrCycle }

// Cycle returns the part of Chain that starts at the first occurrence of
// Key, i.e. the keys that actually form the loop. It falls back to the whole
// chain when Key is not on it (a cycle closed through another call tree).
func (e *CycleError) Cycle() []model.Key {
	for i, k := range e.Chain {
		if k == e.Key {
			return e.Chain[i:]
		}
	}
	return e.Chain
}
