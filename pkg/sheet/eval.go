package sheet

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of evaluating one cell.
type Result struct {
	Cell  string `json:"cell"`
	Value string `json:"value,omitempty"`
	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

// EvalAll evaluates names concurrently, at most parallelism at a time
// (unbounded if parallelism <= 0). A failing cell does not stop the others;
// its error is reported in its Result.
func (s *Sheet) EvalAll(ctx context.Context, names []string, parallelism int) []Result {
	results := make([]Result, len(names))
	var g errgroup.Group
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for i, name := range names {
		g.Go(func() error {
			r := Result{Cell: name}
			v, err := s.Eval(ctx, name)
			if err != nil {
				r.Err, r.Error = err, err.Error()
			} else {
				r.Value = Format(v)
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()
	return results
}
