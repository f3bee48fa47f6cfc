package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/daviddao/incr/internal/config"
	"github.com/daviddao/incr/internal/ctxlog"
	"github.com/daviddao/incr/pkg/sheet"
	"github.com/daviddao/incr/pkg/store"
	"github.com/daviddao/incr/pkg/timeline"
)

// app holds shared state for all CLI subcommands.
type app struct {
	cfg    config.Config
	store  *store.Store
	sheet  *sheet.Sheet
	logger *slog.Logger
}

// newApp loads configuration, opens the database and builds a fresh
// Timeline.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.LogLevel = "debug"
	}
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	s, err := openStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	tl := timeline.New(timeline.WithEqual(sheet.Equal), timeline.WithLogger(logger))
	return &app{
		cfg:    cfg,
		store:  s,
		sheet:  sheet.New(s, tl),
		logger: logger,
	}, nil
}

// openStore opens the database at path, creating its directory if needed.
func openStore(path string) (*store.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create %s: %w", dir, err)
		}
	}
	s, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open database %q: %w", path, err)
	}
	return s, nil
}

// Close releases the database connection.
func (a *app) Close() { a.store.Close() }

// context attaches the app logger to the command's context.
func (a *app) context(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctxlog.WithLogger(ctx, a.logger)
}

// withApp adapts a RunE that needs an app.
func withApp(run func(a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(a, cmd, args)
	}
}

func newLogger(cfg config.Config, w io.Writer) (*slog.Logger, error) {
	lvl, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// printJSON writes v to w as indented JSON.
func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
