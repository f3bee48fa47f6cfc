// Package sheet is a small spreadsheet evaluated through a Timeline.
//
// Each cell holds an HCL expression such as `price * qty + 1` or
// `max(a, b)`. Cells are raw inputs kept in a store; a cell's value is a
// derived computation that reads its own formula and the values of every
// cell the formula references. Changing a formula declares that one input
// changed, so only cells that transitively read it are re-evaluated, and
// only those whose value actually changes propagate further.
package sheet

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/daviddao/incr/internal/ctxlog"
	"github.com/daviddao/incr/pkg/model"
	"github.com/daviddao/incr/pkg/revision"
	"github.com/daviddao/incr/pkg/store"
	"github.com/daviddao/incr/pkg/timeline"
)

// CellQuery is the query name of a cell's derived value.
const CellQuery = "cell"

// ErrUndefined is returned when a formula references a cell that does not exist.
var ErrUndefined = errors.New("undefined cell")

// CellKey returns the Timeline key of the cell called name.
func CellKey(name string) model.Key { return model.Key{Query: CellQuery, Arg: name} }

var functions = map[string]function.Function{
	"abs":    stdlib.AbsoluteFunc,
	"ceil":   stdlib.CeilFunc,
	"floor":  stdlib.FloorFunc,
	"max":    stdlib.MaxFunc,
	"min":    stdlib.MinFunc,
	"lower":  stdlib.LowerFunc,
	"upper":  stdlib.UpperFunc,
	"strlen": stdlib.StrlenFunc,
}

// Equal compares cell values for early cutoff. cty values are compared
// with RawEquals; anything else falls back to reflect.DeepEqual.
func Equal(a, b any) bool {
	va, okA := a.(cty.Value)
	vb, okB := b.(cty.Value)
	if okA && okB {
		return va.RawEquals(vb)
	}
	return reflect.DeepEqual(a, b)
}

// Sheet binds a cell store to a Timeline.
type Sheet struct {
	store   store.StoreInterface
	tl      *timeline.Timeline
	session string
}

// New returns a Sheet over st. The Timeline should be created with
// timeline.WithEqual(sheet.Equal).
func New(st store.StoreInterface, tl *timeline.Timeline) *Sheet {
	return &Sheet{store: st, tl: tl, session: uuid.NewString()}
}

// Session identifies this process in the change log.
func (s *Sheet) Session() string { return s.session }

// Timeline returns the Timeline cells are evaluated on.
func (s *Sheet) Timeline() *timeline.Timeline { return s.tl }

// Set stores formula for cell name and declares the cell's input changed.
// The formula is parsed first; a syntax error leaves the sheet unchanged.
func (s *Sheet) Set(name, formula string) (revision.Revision, error) {
	if !hclsyntax.ValidIdentifier(name) {
		return 0, fmt.Errorf("invalid cell name %q", name)
	}
	if _, err := parse(name, formula); err != nil {
		return 0, err
	}
	if _, err := s.store.PutCell(name, formula); err != nil {
		return 0, err
	}
	rev := s.tl.DeclareInputChanged(model.CellInput(name))
	if _, err := s.store.AppendChange(&model.Change{
		Session:  s.session,
		Kind:     model.ChangeSet,
		Cell:     name,
		Formula:  formula,
		Revision: uint64(rev),
	}); err != nil {
		return rev, err
	}
	return rev, nil
}

// Delete removes cell name. Cells referencing it fail with ErrUndefined on
// their next evaluation.
func (s *Sheet) Delete(name string) (revision.Revision, error) {
	if err := s.store.DeleteCell(name); err != nil {
		return 0, err
	}
	rev := s.tl.DeclareInputChanged(model.CellInput(name))
	if _, err := s.store.AppendChange(&model.Change{
		Session:  s.session,
		Kind:     model.ChangeDelete,
		Cell:     name,
		Revision: uint64(rev),
	}); err != nil {
		return rev, err
	}
	return rev, nil
}

// Eval returns the current value of cell name.
func (s *Sheet) Eval(ctx context.Context, name string) (cty.Value, error) {
	ctx = ctxlog.With(ctx, "session", s.session)
	v, err := s.tl.Query(ctx, CellKey(name), s.compute)
	if err != nil {
		return cty.NilVal, err
	}
	return v.(cty.Value), nil
}

// compute is the Timeline compute function for cell keys.
func (s *Sheet) compute(ctx context.Context, h *timeline.Handle, key model.Key) (any, error) {
	name := key.Arg
	h.ReadInput(model.CellInput(name))
	cell, err := s.store.GetCell(name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w %q", ErrUndefined, name)
	}
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("evaluating cell",
		"cell", name, "revision", h.Revision().String(), "depth", len(h.Active()))

	expr, err := parse(name, cell.Formula)
	if err != nil {
		return nil, err
	}

	vars := make(map[string]cty.Value)
	for _, traversal := range expr.Variables() {
		ref := traversal.RootName()
		if _, ok := vars[ref]; ok {
			continue
		}
		v, err := h.Query(ctx, CellKey(ref), s.compute)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		vars[ref] = v.(cty.Value)
	}

	val, diags := expr.Value(&hcl.EvalContext{Variables: vars, Functions: functions})
	if diags.HasErrors() {
		return nil, fmt.Errorf("evaluate %s: %w", name, diags)
	}
	return val, nil
}

func parse(name, formula string) (hclsyntax.Expression, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(formula), name, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %s: %w", name, diags)
	}
	return expr, nil
}
