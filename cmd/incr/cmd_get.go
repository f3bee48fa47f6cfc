package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/daviddao/incr/pkg/sheet"
)

func newGetCmd() *cobra.Command {
	var all, jsonOut bool
	cmd := &cobra.Command{
		Use:   "get [cell]...",
		Short: "Evaluate cells",
		Long:  "Evaluate cells concurrently against one revision. With --all, every stored cell is evaluated.",
		RunE: withApp(func(a *app, cmd *cobra.Command, args []string) error {
			names := args
			if all {
				cells, err := a.store.ListCells()
				if err != nil {
					return err
				}
				names = nil
				for _, c := range cells {
					names = append(names, c.Name)
				}
			}
			if len(names) == 0 {
				return fmt.Errorf("get: no cells given (pass names or --all)")
			}

			results := a.sheet.EvalAll(a.context(cmd), names, a.cfg.Parallelism)
			if jsonOut {
				printJSON(cmd.OutOrStdout(), map[string]any{"results": results, "revision": a.sheet.Timeline().CurrentRevision()})
			} else {
				printResults(cmd.OutOrStdout(), results)
			}
			return failedCount(results)
		}),
	}
	cmd.Flags().BoolVar(&all, "all", false, "evaluate every stored cell")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "JSON output")
	return cmd
}

func newLsCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List stored cells and their formulas",
		Args:  cobra.NoArgs,
		RunE: withApp(func(a *app, cmd *cobra.Command, _ []string) error {
			cells, err := a.store.ListCells()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if jsonOut {
				printJSON(w, map[string]any{"cells": cells, "count": len(cells)})
				return nil
			}
			if len(cells) == 0 {
				fmt.Fprintln(w, "no cells")
			}
			for _, c := range cells {
				fmt.Fprintf(w, "%s := %s\n", c.Name, c.Formula)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "JSON output")
	return cmd
}

func printResults(w io.Writer, results []sheet.Result) {
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(w, "%s: error: %v\n", r.Cell, r.Err)
			continue
		}
		fmt.Fprintf(w, "%s = %s\n", r.Cell, r.Value)
	}
}

func failedCount(results []sheet.Result) error {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	if n > 0 {
		return fmt.Errorf("%d of %d cell(s) failed", n, len(results))
	}
	return nil
}
