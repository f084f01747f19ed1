package runtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/sagalens/internal/runtime"
	"github.com/aretw0/sagalens/internal/testutils"
	"github.com/aretw0/sagalens/pkg/adapters/memory"
	"github.com/aretw0/sagalens/pkg/domain"
	"github.com/aretw0/sagalens/pkg/task"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	engine    *runtime.Engine
	clock     *testutils.ManualClock
	transport *memory.Transport
}

func newFixture(t *testing.T, opts ...runtime.EngineOption) *fixture {
	t.Helper()
	f := &fixture{
		clock:     testutils.NewManualClock(),
		transport: memory.NewTransport(),
	}
	opts = append([]runtime.EngineOption{
		runtime.WithClock(f.clock.Now),
		runtime.WithTransport(f.transport),
	}, opts...)
	f.engine = runtime.NewEngine(opts...)
	t.Cleanup(func() { _ = f.engine.Close() })
	return f
}

// completeRoot runs a root saga with one call and settles it through its task handle.
func (f *fixture) completeRoot(t *testing.T, id domain.EffectID, name string, d time.Duration) {
	t.Helper()
	ctx := context.Background()

	f.engine.RootStarted(ctx, id, domain.RootMeta{Name: name})
	f.engine.EffectTriggered(ctx, id+1, id, "", domain.Effect{Type: "CALL", Fn: name + "Work"})
	f.clock.Advance(d)
	f.engine.EffectResolved(ctx, id+1, domain.Immediate("ok"))

	tk := task.New()
	f.engine.EffectResolved(ctx, id, domain.Deferred(tk))
	require.NoError(t, tk.Resolve(nil))
}

func (f *fixture) record(t *testing.T, id domain.EffectID) domain.Record {
	t.Helper()
	rec, ok := f.engine.Record(id)
	require.True(t, ok, "record %d should exist", id)
	return rec
}

// pollHandle is a task handle without a settle callback, to exercise the
// goroutine continuation path.
type pollHandle struct {
	done      chan struct{}
	value     any
	err       error
	cancelled bool
}

func newPollHandle() *pollHandle {
	return &pollHandle{done: make(chan struct{})}
}

func (h *pollHandle) settle(value any, err error, cancelled bool) {
	h.value, h.err, h.cancelled = value, err, cancelled
	close(h.done)
}

func (h *pollHandle) Done() <-chan struct{} { return h.done }
func (h *pollHandle) Result() (any, error)   { return h.value, h.err }
func (h *pollHandle) Cancelled() bool        { return h.cancelled }
