package runtime

import (
	"log/slog"
	"time"

	"github.com/aretw0/sagalens/pkg/observability"
	"github.com/aretw0/sagalens/pkg/ports"
)

// DefaultBufferLimit caps the snapshots kept while no client is connected.
const DefaultBufferLimit = 1000

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock replaces the wall clock used for start/end timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithErrorHandler sets the callback invoked with background task errors,
// at most once per distinct error instance.
func WithErrorHandler(fn func(error)) EngineOption {
	return func(e *Engine) {
		e.errorHandler = fn
	}
}

// WithExcept suppresses shipping for tasks whose description matches exactly.
func WithExcept(descriptions ...string) EngineOption {
	return func(e *Engine) {
		e.shipperOpts = append(e.shipperOpts, withExcept(descriptions))
	}
}

// WithTransport installs the outbound transport. The shipper keeps
// buffering until ClientReady is signalled.
func WithTransport(t ports.Transport) EngineOption {
	return func(e *Engine) {
		e.shipperOpts = append(e.shipperOpts, withTransport(t))
	}
}

// WithHistory records every shipped (non-excluded) snapshot in store.
func WithHistory(store ports.SnapshotStore) EngineOption {
	return func(e *Engine) {
		e.shipperOpts = append(e.shipperOpts, withHistory(store))
	}
}

// WithBufferLimit caps the pre-connection buffer. Zero or less disables the cap.
func WithBufferLimit(n int) EngineOption {
	return func(e *Engine) {
		e.shipperOpts = append(e.shipperOpts, withBufferLimit(n))
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *observability.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}
