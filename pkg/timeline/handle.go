package timeline

import (
	"context"

	"github.com/daviddao/incr/pkg/model"
	"github.com/daviddao/incr/pkg/revision"
	"github.com/daviddao/incr/pkg/stack"
)

// Handle is given to a ComputeFunc so it can read inputs and other derived
// values while its dependencies are recorded. A Handle belongs to one call
// tree and must not be used from several goroutines at once.
type Handle struct {
	t     *Timeline
	stack *stack.Stack
	rev   revision.Revision

	// failed holds keys whose computation failed in this call tree.
	failed map[model.Key]error
}

// Query returns the value of key and records it as a dependency of the
// computation running h. The edge is recorded even when the query fails so
// a caller that recovers from the error is still refreshed later.
func (h *Handle) Query(ctx context.Context, key model.Key, fn ComputeFunc) (any, error) {
	e, err := h.t.fetch(ctx, h, key, fn)
	h.stack.RecordDependency(model.KeyEdge(key))
	if err != nil {
		return nil, err
	}
	return e.value, nil
}

// ReadInput records that the running computation read input id. The value
// itself lives outside the Timeline; call this alongside reading it.
func (h *Handle) ReadInput(id model.InputID) {
	h.stack.RecordDependency(model.InputEdge(id))
}

// Revision returns the revision the call tree runs at.
func (h *Handle) Revision() revision.Revision { return h.rev }

// Active returns the keys being computed in this call tree, outermost first.
func (h *Handle) Active() []model.Key { return h.stack.Keys() }

func (h *Handle) fail(key model.Key, err error) {
	if h.failed == nil {
		h.failed = make(map[model.Key]error)
	}
	h.failed[key] = err
}
