package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/zclconf/go-cty/cty"

	"github.com/daviddao/incr/pkg/graph"
	"github.com/daviddao/incr/pkg/sheet"
)

func newExplainCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "explain <cell>",
		Short: "Evaluate a cell and show the dependencies it read",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(a *app, cmd *cobra.Command, args []string) error {
			if _, err := a.sheet.Eval(a.context(cmd), args[0]); err != nil {
				return err
			}
			return explain(cmd.OutOrStdout(), a.sheet, args[0], jsonOut)
		}),
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "JSON output")
	return cmd
}

// explain prints the dependency tree cached for cell without evaluating it.
func explain(w io.Writer, s *sheet.Sheet, cell string, jsonOut bool) error {
	tl := s.Timeline()
	key := sheet.CellKey(cell)
	if _, ok := tl.Entry(key); !ok {
		return fmt.Errorf("explain: %s is not cached", cell)
	}
	tree := graph.Explain(key, tl.Snapshot(), tl.Inputs())
	formatValues(tree)
	if jsonOut {
		printJSON(w, tree)
		return nil
	}
	graph.Print(w, tree)
	return nil
}

// formatValues replaces cty values in the tree with their display form.
func formatValues(n *graph.Node) {
	if v, ok := n.Value.(cty.Value); ok {
		n.Value = sheet.Format(v)
	}
	for _, c := range n.Children {
		formatValues(c)
	}
}

// status prints whether cell's cached value can be reused as is, and if not
// where re-validation would start.
func status(w io.Writer, s *sheet.Sheet, cell string) {
	tl := s.Timeline()
	st, ok := graph.ComputeKeyStatus(sheet.CellKey(cell), tl.Snapshot(), tl.Inputs(), tl.CurrentRevision())
	switch {
	case !ok:
		fmt.Fprintf(w, "%s: not cached\n", cell)
	case st.Fresh:
		fmt.Fprintf(w, "%s: fresh at %s\n", cell, tl.CurrentRevision())
	default:
		fmt.Fprintf(w, "%s: unverified at %s\n", cell, tl.CurrentRevision())
		for _, e := range st.ChangedDeps {
			fmt.Fprintf(w, "  changed: %s\n", e)
		}
		for _, k := range st.Frontier {
			fmt.Fprintf(w, "  frontier: %s\n", k)
		}
	}
}
