package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <cell> <expr>...",
		Short: "Set a cell's formula",
		Example: `  incr set price 12
  incr set total 'price * qty'`,
		Args: cobra.MinimumNArgs(2),
		RunE: withApp(func(a *app, cmd *cobra.Command, args []string) error {
			name, formula := args[0], strings.Join(args[1:], " ")
			rev, err := a.sheet.Set(name, formula)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s := %s (%s)\n", name, formula, rev)
			return nil
		}),
	}
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <cell>...",
		Short: "Delete cells",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(a *app, cmd *cobra.Command, args []string) error {
			for _, name := range args {
				if _, err := a.sheet.Delete(name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", name)
			}
			return nil
		}),
	}
}
