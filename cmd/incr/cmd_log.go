package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daviddao/incr/pkg/model"
)

func newLogCmd() *cobra.Command {
	var (
		since   int64
		limit   int
		cell    string
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the change log",
		Args:  cobra.NoArgs,
		RunE: withApp(func(a *app, cmd *cobra.Command, _ []string) error {
			var (
				changes []model.Change
				err     error
			)
			if cell != "" {
				changes, err = a.store.ListChangesForCell(cell, limit)
			} else {
				changes, err = a.store.ListChanges(since, limit)
			}
			if err != nil {
				return fmt.Errorf("log: %w", err)
			}

			w := cmd.OutOrStdout()
			if jsonOut {
				printJSON(w, map[string]any{"changes": changes, "count": len(changes)})
				return nil
			}
			if len(changes) == 0 {
				fmt.Fprintln(w, "no changes")
				return nil
			}
			for _, c := range changes {
				session := c.Session
				if len(session) > 8 {
					session = session[:8]
				}
				switch c.Kind {
				case model.ChangeSet:
					fmt.Fprintf(w, "#%d [%s r%d] %s := %s\n", c.ID, session, c.Revision, c.Cell, c.Formula)
				case model.ChangeDelete:
					fmt.Fprintf(w, "#%d [%s r%d] rm %s\n", c.ID, session, c.Revision, c.Cell)
				default:
					fmt.Fprintf(w, "#%d [%s r%d] %s %s\n", c.ID, session, c.Revision, c.Kind, c.Cell)
				}
			}
			return nil
		}),
	}
	cmd.Flags().Int64Var(&since, "since", 0, "show changes with id > this")
	cmd.Flags().IntVar(&limit, "limit", 50, "max changes to return")
	cmd.Flags().StringVar(&cell, "cell", "", "only show changes to this cell")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "JSON output")
	return cmd
}
