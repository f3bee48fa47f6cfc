package timeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/daviddao/incr/pkg/model"
)

func TestSingleFlightSharesComputation(t *testing.T) {
	ctx := context.Background()
	tl := New()

	release := make(chan struct{})
	started := make(chan struct{})
	var calls atomic.Int64
	slow := func(context.Context, *Handle, model.Key) (any, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return 42, nil
	}

	const n = 8
	var g errgroup.Group
	results := make([]any, n)
	g.Go(func() error {
		v, err := tl.Query(ctx, k("slow"), slow)
		results[0] = v
		return err
	})
	<-started
	for i := 1; i < n; i++ {
		g.Go(func() error {
			v, err := tl.Query(ctx, k("slow"), slow)
			results[i] = v
			return err
		})
	}
	waitForWaiters(t, tl, n-1)
	close(release)

	require.NoError(t, g.Wait())
	require.EqualValues(t, 1, calls.Load())
	for i, v := range results {
		require.Equal(t, 42, v, "result %d", i)
	}
}

func TestSingleFlightSharesFailure(t *testing.T) {
	ctx := context.Background()
	tl := New()

	release := make(chan struct{})
	started := make(chan struct{})
	errBoom := errors.New("boom")
	fn := func(context.Context, *Handle, model.Key) (any, error) {
		close(started)
		<-release
		return nil, errBoom
	}

	errs := make(chan error, 2)
	go func() {
		_, err := tl.Query(ctx, k("f"), fn)
		errs <- err
	}()
	<-started
	go func() {
		_, err := tl.Query(ctx, k("f"), fn)
		errs <- err
	}()
	waitForWaiters(t, tl, 1)
	close(release)

	require.ErrorIs(t, <-errs, errBoom)
	require.ErrorIs(t, <-errs, errBoom)
}

func TestCycleAcrossConcurrentQueries(t *testing.T) {
	ctx := context.Background()
	tl := New()

	aStarted := make(chan struct{})
	aGate := make(chan struct{})
	var fA, fB ComputeFunc
	fA = func(ctx context.Context, h *Handle, _ model.Key) (any, error) {
		close(aStarted)
		<-aGate
		return h.Query(ctx, k("B"), fB)
	}
	fB = func(ctx context.Context, h *Handle, _ model.Key) (any, error) {
		return h.Query(ctx, k("A"), fA)
	}

	var g errgroup.Group
	var errA, errB error
	g.Go(func() error {
		_, errA = tl.Query(ctx, k("A"), fA)
		return nil
	})
	<-aStarted
	g.Go(func() error {
		_, errB = tl.Query(ctx, k("B"), fB)
		return nil
	})
	waitForWaiters(t, tl, 1)
	close(aGate)

	done := make(chan struct{})
	go func() { _ = g.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("queries deadlocked on a cross-query cycle")
	}

	var cycle *CycleError
	require.ErrorAs(t, errA, &cycle)
	require.Equal(t, []model.Key{k("A"), k("B")}, cycle.Cycle(), "chain spans both queries")
	require.EqualError(t, cycle, "dependency cycle: A() -> B() -> A()")
	require.ErrorAs(t, errB, &cycle)
	_, okA := tl.Entry(k("A"))
	_, okB := tl.Entry(k("B"))
	require.False(t, okA)
	require.False(t, okB)
}

func TestCycleThroughThreeConcurrentQueries(t *testing.T) {
	ctx := context.Background()
	tl := New()

	started := make(chan struct{}, 3)
	gate := make(chan struct{})
	// Each key computes after the gate opens and reads the next one.
	next := map[string]string{"A": "B", "B": "C", "C": "A"}
	var fn ComputeFunc
	fn = func(ctx context.Context, h *Handle, key model.Key) (any, error) {
		started <- struct{}{}
		if key.Query == "A" {
			<-gate
		}
		return h.Query(ctx, k(next[key.Query]), fn)
	}

	errs := make(chan error, 3)
	go func() {
		_, err := tl.Query(ctx, k("A"), fn)
		errs <- err
	}()
	<-started
	go func() {
		_, err := tl.Query(ctx, k("C"), fn)
		errs <- err
	}()
	<-started
	waitForWaiters(t, tl, 1) // C waits on A
	go func() {
		_, err := tl.Query(ctx, k("B"), fn)
		errs <- err
	}()
	<-started
	waitForWaiters(t, tl, 2) // B waits on C
	close(gate)

	var cycle *CycleError
	for range 3 {
		select {
		case err := <-errs:
			require.ErrorAs(t, err, &cycle)
		case <-time.After(5 * time.Second):
			t.Fatal("queries deadlocked on a three-way cycle")
		}
	}
	// A's tree closes the loop: A -> B (owned by the B tree) -> C -> A.
	require.Equal(t, "dependency cycle: A() -> B() -> C() -> A()", cycle.Error())
}

func TestWaitersOnPanickingComputeGetErrAborted(t *testing.T) {
	ctx := context.Background()
	tl := New()

	started := make(chan struct{})
	release := make(chan struct{})
	fn := func(context.Context, *Handle, model.Key) (any, error) {
		close(started)
		<-release
		panic("compute blew up")
	}

	recovered := make(chan any, 1)
	go func() {
		defer func() { recovered <- recover() }()
		_, _ = tl.Query(ctx, k("p"), fn)
	}()
	<-started

	errs := make(chan error, 1)
	go func() {
		_, err := tl.Query(ctx, k("p"), fn)
		errs <- err
	}()
	waitForWaiters(t, tl, 1)
	close(release)

	require.Equal(t, "compute blew up", <-recovered)
	require.ErrorIs(t, <-errs, ErrAborted)

	tl.mu.Lock()
	require.Empty(t, tl.flights)
	tl.mu.Unlock()
	_, ok := tl.Entry(k("p"))
	require.False(t, ok)
}

func TestConcurrentReadersWithWriter(t *testing.T) {
	ctx := context.Background()
	tl := New()
	in := newInputs(map[model.InputID]int{"x": 0})

	double := func(_ context.Context, h *Handle, _ model.Key) (any, error) {
		return 2 * in.get(h, "x"), nil
	}
	plusOne := func(ctx context.Context, h *Handle, _ model.Key) (any, error) {
		d, err := h.Query(ctx, k("double"), double)
		if err != nil {
			return nil, err
		}
		return d.(int) + 1, nil
	}

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			for j := 0; j < 50; j++ {
				if _, err := tl.Query(ctx, k("plusOne"), plusOne); err != nil {
					return err
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		for v := 1; v <= 20; v++ {
			in.set(tl, "x", v)
		}
		return nil
	})
	require.NoError(t, g.Wait())

	v, err := tl.Query(ctx, k("plusOne"), plusOne)
	require.NoError(t, err)
	require.Equal(t, 41, v)
	require.EqualValues(t, 20, tl.CurrentRevision())
}

// waitForWaiters blocks until n call trees are parked on in-flight keys.
func waitForWaiters(t *testing.T, tl *Timeline, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		tl.mu.Lock()
		defer tl.mu.Unlock()
		return len(tl.waiting) >= n
	}, 5*time.Second, time.Millisecond)
}
