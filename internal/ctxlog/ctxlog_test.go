package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := WithLogger(context.Background(), logger)

	require.Same(t, logger, FromContext(ctx))
	FromContext(ctx).Info("hello", "cell", "a")
	require.Contains(t, buf.String(), "cell=a")
}

func TestWithAddsAttributes(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)))
	ctx = With(ctx, "session", "s1")

	FromContext(ctx).Info("evaluating cell", "cell", "b")
	require.Contains(t, buf.String(), "session=s1 cell=b")
}

func TestMissingLoggerDiscards(t *testing.T) {
	logger := FromContext(context.Background())
	require.NotSame(t, slog.Default(), logger)
	require.False(t, logger.Enabled(context.Background(), slog.LevelError))

	// With on a bare context stays silent too.
	ctx := With(context.Background(), "session", "s1")
	require.False(t, FromContext(ctx).Enabled(context.Background(), slog.LevelError))
}
