package runtime_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/sagalens/internal/runtime"
	"github.com/aretw0/sagalens/pkg/domain"
	"github.com/aretw0/sagalens/pkg/ports"
	"github.com/aretw0/sagalens/pkg/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_ImmediateLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.engine.RootStarted(ctx, 1, domain.RootMeta{Name: "rootSaga"})
	f.engine.EffectTriggered(ctx, 2, 1, "", domain.Effect{Type: "CALL", Fn: "fetchUser", Args: []any{7}})
	f.engine.EffectTriggered(ctx, 3, 1, "", domain.Effect{Type: "PUT", Action: map[string]any{"type": "SAVE"}})
	f.engine.EffectTriggered(ctx, 4, 1, "", domain.Effect{Type: "TAKE", Pattern: "LOGOUT"})

	root := f.record(t, 1)
	assert.True(t, root.Root)
	assert.Equal(t, domain.KindRoot, root.Kind)
	assert.Equal(t, "rootSaga", root.Description)
	assert.Equal(t, domain.StatusPending, root.Status)

	f.clock.Advance(15 * time.Millisecond)
	f.engine.EffectResolved(ctx, 2, domain.Immediate("user"))
	f.engine.EffectRejected(ctx, 3, errors.New("store closed"))
	f.engine.EffectCancelled(ctx, 4)

	call := f.record(t, 2)
	assert.Equal(t, domain.StatusResolved, call.Status)
	assert.Equal(t, "user", call.Result)
	assert.Equal(t, 15*time.Millisecond, call.Duration)
	assert.Equal(t, "fetchUser", call.Description)

	put := f.record(t, 3)
	assert.Equal(t, domain.StatusRejected, put.Status)
	assert.EqualError(t, put.Err, "store closed")
	assert.Nil(t, put.Result)
	assert.Equal(t, "SAVE", put.Description)

	take := f.record(t, 4)
	assert.Equal(t, domain.StatusCancelled, take.Status)
	assert.Equal(t, 15*time.Millisecond, take.Duration)

	assert.Equal(t, []domain.EffectID{2, 3, 4}, f.engine.Children(1))
}

func TestEngine_DurationWrittenOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.engine.RootStarted(ctx, 1, domain.RootMeta{Name: "root"})
	f.engine.EffectTriggered(ctx, 2, 1, "", domain.Effect{Type: "CALL", Fn: "work"})

	f.clock.Advance(10 * time.Millisecond)
	f.engine.EffectResolved(ctx, 2, domain.Immediate(1))

	f.clock.Advance(time.Hour)
	f.engine.EffectResolved(ctx, 2, domain.Immediate(2))
	f.engine.EffectRejected(ctx, 2, errors.New("late"))
	f.engine.EffectCancelled(ctx, 2)

	rec := f.record(t, 2)
	assert.Equal(t, domain.StatusResolved, rec.Status, "only the first terminal transition counts")
	assert.Equal(t, 1, rec.Result)
	assert.Nil(t, rec.Err)
	assert.Equal(t, 10*time.Millisecond, rec.Duration)

	_, err := f.engine.Snapshot(2)
	require.NoError(t, err)
	rec = f.record(t, 2)
	assert.Equal(t, 10*time.Millisecond, rec.Duration, "reading must not recompute duration")
}

func TestEngine_DurationNeverNegative(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	clock := func() time.Time {
		calls++
		if calls == 1 {
			return now
		}
		return now.Add(-time.Second) // wall clock stepped backwards
	}
	e := runtime.NewEngine(runtime.WithClock(clock))
	defer e.Close()
	ctx := context.Background()

	e.RootStarted(ctx, 1, domain.RootMeta{Name: "root"})
	e.EffectCancelled(ctx, 1)

	rec, ok := e.Record(1)
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), rec.Duration)
}

func TestEngine_UnknownIDsAreIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		f.engine.EffectResolved(ctx, 404, domain.Immediate(1))
		f.engine.EffectResolved(ctx, 404, domain.Deferred(task.New()))
		f.engine.EffectRejected(ctx, 404, errors.New("x"))
		f.engine.EffectCancelled(ctx, 404)
		f.engine.ActionDispatched(ctx, map[string]any{"type": "PING"})
		f.engine.ActionDispatched(ctx, nil)
	})

	_, ok := f.engine.Record(404)
	assert.False(t, ok)
	assert.Equal(t, 0, f.engine.Stats().Effects)

	_, err := f.engine.Snapshot(404)
	assert.ErrorIs(t, err, domain.ErrEffectNotFound)
	_, err = f.engine.Tree(404)
	assert.ErrorIs(t, err, domain.ErrEffectNotFound)
}

func TestEngine_DeferredTaskResolution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.engine.ClientReady(ctx)

	f.engine.RootStarted(ctx, 1, domain.RootMeta{Name: "rootSaga"})
	f.engine.EffectTriggered(ctx, 2, 1, "", domain.Effect{Type: "FORK", Fn: "worker"})

	tk := task.New()
	f.engine.EffectResolved(ctx, 2, domain.Deferred(tk))

	rec := f.record(t, 2)
	assert.Equal(t, domain.StatusPending, rec.Status, "a task handle does not settle the effect")
	assert.True(t, rec.Awaiting)
	assert.Equal(t, []domain.EffectID{2}, f.engine.Children(1), "the effect stays discoverable as a child")
	assert.Empty(t, f.transport.OfType(domain.MessageTaskComplete), "nothing is shipped before the task settles")

	f.clock.Advance(40 * time.Millisecond)
	require.NoError(t, tk.Resolve(42))

	rec = f.record(t, 2)
	assert.Equal(t, domain.StatusResolved, rec.Status)
	assert.Equal(t, 42, rec.Result)
	assert.False(t, rec.Awaiting)
	assert.Equal(t, 40*time.Millisecond, rec.Duration)

	complete := f.transport.OfType(domain.MessageTaskComplete)
	require.Len(t, complete, 1, "shipping happens after the final resolution")
	snap := complete[0].Snapshots()[0]
	assert.Equal(t, "worker", snap.TriggerType)
	assert.Equal(t, int64(40), snap.Duration)
}

func TestEngine_DeferredTaskCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.engine.ClientReady(ctx)

	f.engine.RootStarted(ctx, 1, domain.RootMeta{Name: "rootSaga"})
	f.engine.EffectTriggered(ctx, 2, 1, "", domain.Effect{Type: "FORK", Fn: "worker"})

	tk := task.New()
	f.engine.EffectResolved(ctx, 2, domain.Deferred(tk))
	require.NoError(t, tk.Cancel())

	rec := f.record(t, 2)
	assert.Equal(t, domain.StatusCancelled, rec.Status)
	assert.Nil(t, rec.Result)
	assert.Empty(t, f.transport.OfType(domain.MessageTaskComplete), "cancelled tasks are not shipped")
}

func TestEngine_DeferredTaskRejected(t *testing.T) {
	var reported []error
	f := newFixture(t, runtime.WithErrorHandler(func(err error) { reported = append(reported, err) }))
	ctx := context.Background()

	f.engine.RootStarted(ctx, 1, domain.RootMeta{Name: "rootSaga"})
	f.engine.EffectTriggered(ctx, 2, 1, "", domain.Effect{Type: "FORK", Fn: "worker"})

	boom := errors.New("boom")
	tk := task.New()
	f.engine.EffectResolved(ctx, 2, domain.Deferred(tk))
	require.NoError(t, tk.Reject(boom))

	rec := f.record(t, 2)
	assert.Equal(t, domain.StatusRejected, rec.Status)
	assert.ErrorIs(t, rec.Err, boom)
	assert.Equal(t, []error{boom}, reported)
}

func TestEngine_ErrorHandlerOncePerErrorInstance(t *testing.T) {
	var reported []error
	f := newFixture(t, runtime.WithErrorHandler(func(err error) { reported = append(reported, err) }))
	ctx := context.Background()

	shared := errors.New("shared failure")
	other := errors.New("shared failure") // same text, distinct instance

	f.engine.RootStarted(ctx, 1, domain.RootMeta{Name: "rootSaga"})
	for i, err := range []error{shared, shared, other} {
		id := domain.EffectID(10 + i)
		f.engine.EffectTriggered(ctx, id, 1, "", domain.Effect{Type: "FORK", Fn: fmt.Sprintf("worker%d", i)})
		tk := task.New()
		f.engine.EffectResolved(ctx, id, domain.Deferred(tk))
		require.NoError(t, tk.Reject(err))
	}

	require.Len(t, reported, 2, "the same instance is reported once, distinct instances each time")
	assert.Same(t, shared, reported[0])
	assert.Same(t, other, reported[1])
	assert.Equal(t, domain.StatusRejected, f.record(t, 11).Status, "the record is still rejected")
}

func TestEngine_ErrorHandlerIsolatedPerMonitor(t *testing.T) {
	shared := errors.New("boom")
	var first, second int

	a := newFixture(t, runtime.WithErrorHandler(func(error) { first++ }))
	b := newFixture(t, runtime.WithErrorHandler(func(error) { second++ }))
	ctx := context.Background()

	for _, f := range []*fixture{a, b} {
		f.engine.RootStarted(ctx, 1, domain.RootMeta{Name: "root"})
		tk := task.New()
		f.engine.EffectResolved(ctx, 1, domain.Deferred(tk))
		require.NoError(t, tk.Reject(shared))
	}

	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second, "monitors must not share reporting state")
}

func TestEngine_ErrorHandlerPanicIsContained(t *testing.T) {
	f := newFixture(t, runtime.WithErrorHandler(func(error) { panic("handler bug") }))
	ctx := context.Background()

	f.engine.RootStarted(ctx, 1, domain.RootMeta{Name: "root"})
	tk := task.New()
	f.engine.EffectResolved(ctx, 1, domain.Deferred(tk))

	assert.NotPanics(t, func() { _ = tk.Reject(errors.New("boom")) })
	assert.Equal(t, domain.StatusRejected, f.record(t, 1).Status)
}

type detailedError struct {
	details any
}

func (e detailedError) Error() string { return fmt.Sprintf("failed: %v", e.details) }

func TestEngine_UnhashableErrorIsReported(t *testing.T) {
	var reported []error
	f := newFixture(t, runtime.WithErrorHandler(func(err error) { reported = append(reported, err) }))
	ctx := context.Background()

	f.engine.RootStarted(ctx, 1, domain.RootMeta{Name: "rootSaga"})
	for i := 0; i < 2; i++ {
		id := domain.EffectID(10 + i)
		f.engine.EffectTriggered(ctx, id, 1, "", domain.Effect{Type: "FORK", Fn: "worker"})
		tk := task.New()
		f.engine.EffectResolved(ctx, id, domain.Deferred(tk))
		assert.NotPanics(t, func() { _ = tk.Reject(detailedError{details: []string{"a"}}) })
	}

	assert.Len(t, reported, 2, "errors that cannot be tracked are reported every time")
	assert.Equal(t, domain.StatusRejected, f.record(t, 10).Status)

	// The engine lock was released.
	done := make(chan domain.Stats, 1)
	go func() { done <- f.engine.Stats() }()
	select {
	case stats := <-done:
		assert.Positive(t, stats.Effects)
	case <-time.After(2 * time.Second):
		t.Fatal("engine is still locked")
	}
}

func TestEngine_TerminalEventWhileAwaitingWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.engine.ClientReady(ctx)

	f.engine.RootStarted(ctx, 1, domain.RootMeta{Name: "root"})
	f.engine.EffectTriggered(ctx, 2, 1, "", domain.Effect{Type: "FORK", Fn: "worker"})
	tk := task.New()
	f.engine.EffectResolved(ctx, 2, domain.Deferred(tk))

	f.clock.Advance(5 * time.Millisecond)
	f.engine.EffectCancelled(ctx, 2)
	f.clock.Advance(5 * time.Millisecond)
	require.NoError(t, tk.Resolve("late"))

	rec := f.record(t, 2)
	assert.Equal(t, domain.StatusCancelled, rec.Status)
	assert.Nil(t, rec.Result)
	assert.Equal(t, 5*time.Millisecond, rec.Duration)
	assert.Empty(t, f.transport.OfType(domain.MessageTaskComplete))
}

func TestEngine_GoroutineContinuation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.engine.ClientReady(ctx)

	f.engine.RootStarted(ctx, 1, domain.RootMeta{Name: "root"})
	h := newPollHandle()
	f.engine.EffectResolved(ctx, 1, domain.Deferred(h))

	// Unrelated events keep flowing while the task is pending.
	f.engine.EffectTriggered(ctx, 2, 1, "", domain.Effect{Type: "CALL", Fn: "work"})
	f.engine.EffectResolved(ctx, 2, domain.Immediate(nil))

	h.settle(42, nil, false)

	require.Eventually(t, func() bool {
		return len(f.transport.OfType(domain.MessageTaskComplete)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	rec := f.record(t, 1)
	assert.Equal(t, domain.StatusResolved, rec.Status)
	assert.Equal(t, 42, rec.Result)
}

func TestEngine_GoroutineCancellation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.engine.RootStarted(ctx, 1, domain.RootMeta{Name: "root"})
	h := newPollHandle()
	f.engine.EffectResolved(ctx, 1, domain.Deferred(h))
	h.settle(nil, nil, true)

	require.Eventually(t, func() bool {
		rec, _ := f.engine.Record(1)
		return rec.Status == domain.StatusCancelled
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEngine_CloseStopsWaiting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.engine.RootStarted(ctx, 1, domain.RootMeta{Name: "root"})
	f.engine.EffectResolved(ctx, 1, domain.Deferred(newPollHandle()))

	done := make(chan struct{})
	go func() {
		_ = f.engine.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return while a task was unsettled")
	}

	rec := f.record(t, 1)
	assert.Equal(t, domain.StatusPending, rec.Status)
	assert.True(t, rec.Awaiting)
}

func TestEngine_Stats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.completeRoot(t, 1, "first", time.Millisecond)
	f.engine.RootStarted(ctx, 10, domain.RootMeta{Name: "second"})
	f.engine.EffectResolved(ctx, 10, domain.Deferred(task.New()))

	stats := f.engine.Stats()
	assert.Equal(t, 3, stats.Effects)
	assert.Equal(t, 2, stats.Roots)
	assert.Equal(t, 2, stats.ByStatus[domain.StatusResolved])
	assert.Equal(t, 1, stats.ByStatus[domain.StatusPending])
	assert.Equal(t, 1, stats.Awaiting)
	assert.Equal(t, "unknown", stats.ShipperState)
	assert.Equal(t, 1, stats.Buffered)
}

func TestEngine_ConnectFailureKeepsBuffering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.engine.Connect(ctx, func(context.Context) (ports.Transport, error) {
		return nil, errors.New("dev server unreachable")
	})
	assert.Error(t, err)
	assert.Equal(t, runtime.StateUnknown, f.engine.ShipperState())

	f.completeRoot(t, 1, "saga", time.Millisecond)
	assert.Equal(t, 1, f.engine.Stats().Buffered)

	err = f.engine.Connect(ctx, func(context.Context) (ports.Transport, error) {
		return f.transport, nil
	})
	require.NoError(t, err)
	assert.Equal(t, runtime.StateStreaming, f.engine.ShipperState())
	lists := f.transport.OfType(domain.MessageTaskList)
	require.Len(t, lists, 1)
	assert.Len(t, lists[0].Snapshots(), 1)
}
