package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <script|->",
		Short: "Run a script of sheet commands against one Timeline",
		Long: `Run executes one command per line against a single in-process Timeline, so
cached values carry over from line to line:

  set <cell> <expr>   set a formula
  rm <cell>           delete a cell
  get <cell>...       evaluate cells
  explain <cell>      print the cached dependency tree
  status <cell>       show whether the cached value is reusable as is
  stats               print cache counters and the current revision

Blank lines and lines starting with # are ignored. A failing line is
reported and the script continues.`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(func(a *app, cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			return a.runScript(a.context(cmd), r, cmd.OutOrStdout())
		}),
	}
}

// runScript executes each line of r and returns an error if any line failed.
func (a *app) runScript(ctx context.Context, r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	failed, lineNo := 0, 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := a.runLine(ctx, line, w); err != nil {
			failed++
			fmt.Fprintf(w, "line %d: error: %v\n", lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d line(s) failed", failed)
	}
	return nil
}

func (a *app) runLine(ctx context.Context, line string, w io.Writer) error {
	verb, rest := splitWord(line)
	switch verb {
	case "set":
		name, formula := splitWord(rest)
		if name == "" || formula == "" {
			return fmt.Errorf("usage: set <cell> <expr>")
		}
		rev, err := a.sheet.Set(name, formula)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s := %s (%s)\n", name, formula, rev)
	case "rm":
		for _, name := range strings.Fields(rest) {
			if _, err := a.sheet.Delete(name); err != nil {
				return err
			}
		}
	case "get":
		names := strings.Fields(rest)
		if len(names) == 0 {
			return fmt.Errorf("usage: get <cell>...")
		}
		results := a.sheet.EvalAll(ctx, names, a.cfg.Parallelism)
		printResults(w, results)
		return failedCount(results)
	case "explain":
		return explain(w, a.sheet, strings.TrimSpace(rest), false)
	case "status":
		status(w, a.sheet, strings.TrimSpace(rest))
	case "stats":
		tl := a.sheet.Timeline()
		st := tl.Stats()
		fmt.Fprintf(w, "revision=%s hits=%d verified=%d recomputed=%d cutoffs=%d failures=%d cycles=%d\n",
			tl.CurrentRevision(), st.Hits, st.Verified, st.Recomputed, st.Cutoffs, st.Failures, st.Cycles)
	default:
		return fmt.Errorf("unknown command %q", verb)
	}
	return nil
}

// splitWord splits s into its first whitespace-delimited word and the
// trimmed remainder.
func splitWord(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i+1:])
}
