package sagalens

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/sagalens/internal/logging"
	"github.com/aretw0/sagalens/internal/runtime"
	"github.com/aretw0/sagalens/pkg/domain"
	"github.com/aretw0/sagalens/pkg/observability"
	"github.com/aretw0/sagalens/pkg/ports"
	"github.com/google/uuid"
)

// Monitor is the high-level entry point for the sagalens library.
// It wraps the internal runtime and is installed in the host as its saga
// monitor: the host forwards every lifecycle hook to it.
type Monitor struct {
	runtime     *runtime.Engine
	runtimeOpts []runtime.EngineOption
	logger      *slog.Logger

	// ID identifies this monitor instance in logs and on shared transports.
	ID string
	// Name is a human label for the monitored application.
	Name string
}

var _ ports.Hooks = (*Monitor)(nil)

// Option defines a functional option for configuring the Monitor.
type Option func(*Monitor)

// WithLogger sets a custom structured logger for the monitor.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// WithName labels the monitored application.
func WithName(name string) Option {
	return func(m *Monitor) {
		m.Name = name
	}
}

// WithErrorHandler registers the callback invoked with errors of background
// tasks. Each distinct error instance is reported once per monitor.
func WithErrorHandler(fn func(error)) Option {
	return func(m *Monitor) {
		m.runtimeOpts = append(m.runtimeOpts, runtime.WithErrorHandler(fn))
	}
}

// WithExcept lists task descriptions whose snapshots are never shipped.
func WithExcept(descriptions ...string) Option {
	return func(m *Monitor) {
		m.runtimeOpts = append(m.runtimeOpts, runtime.WithExcept(descriptions...))
	}
}

// WithTransport installs the transport to the inspection client.
// Snapshots are buffered until ClientReady is called.
func WithTransport(t ports.Transport) Option {
	return func(m *Monitor) {
		m.runtimeOpts = append(m.runtimeOpts, runtime.WithTransport(t))
	}
}

// WithHistory keeps every shippable snapshot in store.
func WithHistory(store ports.SnapshotStore) Option {
	return func(m *Monitor) {
		m.runtimeOpts = append(m.runtimeOpts, runtime.WithHistory(store))
	}
}

// WithBufferLimit caps the snapshots held while no client is connected.
// The oldest are dropped first. Zero or less keeps everything.
func WithBufferLimit(n int) Option {
	return func(m *Monitor) {
		m.runtimeOpts = append(m.runtimeOpts, runtime.WithBufferLimit(n))
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Monitor) {
		m.runtimeOpts = append(m.runtimeOpts, runtime.WithMetrics(metrics))
	}
}

// WithClock replaces the wall clock. Useful for deterministic tests and replays.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.runtimeOpts = append(m.runtimeOpts, runtime.WithClock(now))
	}
}

// New creates a Monitor. Without a transport, snapshots accumulate in the
// buffer until Connect succeeds.
func New(opts ...Option) *Monitor {
	m := &Monitor{ID: uuid.NewString()}
	for _, opt := range opts {
		opt(m)
	}

	if m.logger == nil {
		m.logger = logging.NewNop()
	}
	m.logger = m.logger.With("monitor", m.ID)
	if m.Name != "" {
		m.logger = m.logger.With("app", m.Name)
	}

	runtimeOpts := append([]runtime.EngineOption{runtime.WithLogger(m.logger)}, m.runtimeOpts...)
	m.runtime = runtime.NewEngine(runtimeOpts...)
	return m
}

// RootStarted implements ports.Hooks.
func (m *Monitor) RootStarted(ctx context.Context, id domain.EffectID, meta domain.RootMeta) {
	m.runtime.RootStarted(ctx, id, meta)
}

// EffectTriggered implements ports.Hooks.
func (m *Monitor) EffectTriggered(ctx context.Context, id, parentID domain.EffectID, label string, effect domain.Effect) {
	m.runtime.EffectTriggered(ctx, id, parentID, label, effect)
}

// EffectResolved implements ports.Hooks.
func (m *Monitor) EffectResolved(ctx context.Context, id domain.EffectID, res domain.Resolution) {
	m.runtime.EffectResolved(ctx, id, res)
}

// EffectRejected implements ports.Hooks.
func (m *Monitor) EffectRejected(ctx context.Context, id domain.EffectID, err error) {
	m.runtime.EffectRejected(ctx, id, err)
}

// EffectCancelled implements ports.Hooks.
func (m *Monitor) EffectCancelled(ctx context.Context, id domain.EffectID) {
	m.runtime.EffectCancelled(ctx, id)
}

// ActionDispatched implements ports.Hooks.
func (m *Monitor) ActionDispatched(ctx context.Context, action any) {
	m.runtime.ActionDispatched(ctx, action)
}

// ClientReady tells the monitor that the inspection client is listening.
// The buffered snapshots are sent as one list message, then streaming starts.
func (m *Monitor) ClientReady(ctx context.Context) {
	m.runtime.ClientReady(ctx)
}

// Connect dials the inspection client. On failure the monitor keeps
// buffering and the error is returned for information only.
func (m *Monitor) Connect(ctx context.Context, dial ports.Dialer) error {
	return m.runtime.Connect(ctx, dial)
}

// Record returns a copy of the tracked record for id.
func (m *Monitor) Record(id domain.EffectID) (domain.Record, bool) {
	return m.runtime.Record(id)
}

// Tree returns the flattened subtree below id.
func (m *Monitor) Tree(id domain.EffectID) ([]domain.FlatEffect, error) {
	return m.runtime.Tree(id)
}

// Snapshot builds the snapshot of id as it stands now.
func (m *Monitor) Snapshot(id domain.EffectID) (domain.Snapshot, error) {
	return m.runtime.Snapshot(id)
}

// Stats summarizes what the monitor has observed.
func (m *Monitor) Stats() domain.Stats {
	return m.runtime.Stats()
}

// Close releases the goroutines waiting on unsettled tasks.
func (m *Monitor) Close() error {
	return m.runtime.Close()
}
