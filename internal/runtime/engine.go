package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/sagalens/internal/logging"
	"github.com/aretw0/sagalens/internal/registry"
	"github.com/aretw0/sagalens/pkg/domain"
	"github.com/aretw0/sagalens/pkg/observability"
	"github.com/aretw0/sagalens/pkg/ports"
)

// Engine is the effect-tracking core. It consumes lifecycle events, keeps the
// effect registry consistent and hands completed tasks to the shipper.
// It implements ports.Hooks and is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	reg      *registry.Registry
	reported map[error]struct{}
	// completed numbers shippable completions in terminal-transition order.
	completed uint64

	shipper     *Shipper
	shipperOpts []shipperOption

	now          func() time.Time
	errorHandler func(error)
	logger       *slog.Logger
	metrics      *observability.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ ports.Hooks = (*Engine)(nil)

// NewEngine creates a new engine with its own registry and shipper.
func NewEngine(opts ...EngineOption) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		reg:      registry.New(),
		reported: make(map[error]struct{}),
		now:      time.Now,
		logger:   logging.NewNop(),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.shipper = newShipper(e.logger, e.metrics, e.shipperOpts...)
	return e
}

// RootStarted registers a root task.
func (e *Engine) RootStarted(ctx context.Context, id domain.EffectID, meta domain.RootMeta) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec := &domain.Record{
		ID:          id,
		Kind:        domain.KindRoot,
		Effect:      &domain.Effect{Fn: meta.Name, Args: meta.Args},
		Description: meta.Name,
		Status:      domain.StatusPending,
		StartedAt:   e.now(),
	}
	if !e.reg.RegisterRoot(rec) {
		e.ignore(ctx, string(domain.EventRootStarted), id, "duplicate id")
		return
	}
	e.logger.DebugContext(ctx, "root started", "effect_id", id, "saga", meta.Name)
}

// EffectTriggered registers a child effect under parentID.
func (e *Engine) EffectTriggered(ctx context.Context, id, parentID domain.EffectID, label string, effect domain.Effect) {
	e.mu.Lock()
	defer e.mu.Unlock()

	kind := Classify(effect)
	desc := effect
	rec := &domain.Record{
		ID:          id,
		ParentID:    parentID,
		Kind:        kind,
		RawType:     effect.Type,
		Effect:      &desc,
		Description: Describe(effect, kind),
		Label:       label,
		Status:      domain.StatusPending,
		StartedAt:   e.now(),
	}
	if !e.reg.Register(rec) {
		e.ignore(ctx, string(domain.EventEffectTriggered), id, "duplicate id")
		return
	}
	e.logger.DebugContext(ctx, "effect triggered",
		"effect_id", id,
		"parent_id", parentID,
		"kind", kind,
		"description", rec.Description,
	)
}

// EffectResolved settles an effect with a plain value, or attaches to the
// task handle carried by a deferred resolution.
func (e *Engine) EffectResolved(ctx context.Context, id domain.EffectID, res domain.Resolution) {
	if handle, ok := res.Handle(); ok {
		e.awaitTask(ctx, id, handle)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rec := e.pending(ctx, domain.EventEffectResolved, id)
	if rec == nil {
		return
	}
	e.resolveLocked(rec, res.Value())
}

// EffectRejected settles an effect with an error.
func (e *Engine) EffectRejected(ctx context.Context, id domain.EffectID, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec := e.pending(ctx, domain.EventEffectRejected, id)
	if rec == nil {
		return
	}
	e.rejectLocked(rec, err)
}

// EffectCancelled settles an effect as cancelled.
func (e *Engine) EffectCancelled(ctx context.Context, id domain.EffectID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec := e.pending(ctx, domain.EventEffectCancelled, id)
	if rec == nil {
		return
	}
	e.terminateLocked(rec, domain.StatusCancelled)
}

// ActionDispatched is not used for tree reconstruction.
func (e *Engine) ActionDispatched(ctx context.Context, action any) {
	e.metrics.ActionDispatched()
	e.logger.DebugContext(ctx, "action dispatched", "type", ActionType(action))
}

// awaitTask marks the record as waiting for its task and arms a one-shot continuation.
func (e *Engine) awaitTask(ctx context.Context, id domain.EffectID, handle domain.TaskHandle) {
	e.mu.Lock()
	rec := e.pending(ctx, domain.EventEffectResolved, id)
	if rec == nil {
		e.mu.Unlock()
		return
	}
	rec.Awaiting = true
	e.mu.Unlock()

	var once sync.Once
	settle := func() {
		once.Do(func() { e.settleTask(id, handle) })
	}

	if notifier, ok := handle.(domain.SettleNotifier); ok {
		notifier.OnSettle(settle)
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		select {
		case <-handle.Done():
			settle()
		case <-e.ctx.Done():
		}
	}()
}

// settleTask is the continuation of a deferred resolution.
func (e *Engine) settleTask(id domain.EffectID, handle domain.TaskHandle) {
	value, err := handle.Result()

	done, report := e.settleTaskLocked(id, handle, value, err)
	if report {
		e.reportError(err)
	}
	if done != nil {
		e.shipper.ship(e.ctx, *done)
	}
}

// settleTaskLocked applies the task outcome to the record. It returns the
// completion to ship, if any, and whether err is reported for the first time.
func (e *Engine) settleTaskLocked(id domain.EffectID, handle domain.TaskHandle, value any, err error) (*completion, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.reg.Get(id)
	if !ok || rec.Status.Terminal() {
		e.metrics.EventIgnored(string(domain.EventTaskSettled))
		e.logger.Debug("task settled for a closed effect", "effect_id", id)
		return nil, false
	}
	rec.Awaiting = false

	if handle.Cancelled() {
		e.terminateLocked(rec, domain.StatusCancelled)
		return nil, false
	}

	if err != nil {
		e.rejectLocked(rec, err)
		return nil, e.markReportedLocked(err)
	}

	e.resolveLocked(rec, value)
	return e.shippableLocked(rec), false
}

func (e *Engine) resolveLocked(rec *domain.Record, value any) {
	e.terminateLocked(rec, domain.StatusResolved)
	rec.Result = value
	if rec.Kind == domain.KindRace {
		e.resolveRaceLocked(rec.ID, value)
	}
}

func (e *Engine) rejectLocked(rec *domain.Record, err error) {
	e.terminateLocked(rec, domain.StatusRejected)
	rec.Err = err
	if rec.Kind == domain.KindRace {
		e.resolveRaceLocked(rec.ID, err)
	}
}

// terminateLocked performs the single terminal transition of a record.
func (e *Engine) terminateLocked(rec *domain.Record, status domain.Status) {
	now := e.now()
	rec.EndedAt = now
	rec.Duration = now.Sub(rec.StartedAt)
	if rec.Duration < 0 {
		rec.Duration = 0
	}
	rec.Status = status
	rec.Awaiting = false
	e.metrics.ObserveEffect(string(rec.Kind), string(status), rec.Duration)
}

// pending returns the record for id if it can still transition.
func (e *Engine) pending(ctx context.Context, event domain.EventKind, id domain.EffectID) *domain.Record {
	rec, ok := e.reg.Get(id)
	if !ok {
		e.ignore(ctx, string(event), id, "unknown effect")
		return nil
	}
	if rec.Status.Terminal() {
		e.ignore(ctx, string(event), id, "effect already settled")
		return nil
	}
	return rec
}

func (e *Engine) ignore(ctx context.Context, event string, id domain.EffectID, reason string) {
	e.metrics.EventIgnored(event)
	e.logger.DebugContext(ctx, "event ignored", "event", event, "effect_id", id, "reason", reason)
}

// markReportedLocked returns true the first time an error instance is seen.
// Errors that cannot be used as a map key are always reported.
func (e *Engine) markReportedLocked(err error) (first bool) {
	defer func() {
		if r := recover(); r != nil {
			first = true
		}
	}()
	if _, seen := e.reported[err]; seen {
		return false
	}
	e.reported[err] = struct{}{}
	return true
}

func (e *Engine) reportError(err error) {
	if e.errorHandler == nil {
		return
	}
	e.metrics.ErrorReported()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("error handler panicked", "panic", fmt.Sprint(r), "error", err)
		}
	}()
	e.errorHandler(err)
}

// ClientReady signals that the inspection client is connected.
// The buffered history is flushed as one list message.
func (e *Engine) ClientReady(ctx context.Context) {
	e.shipper.Ready(ctx)
}

// Connect dials a transport and, on success, installs it and flushes the buffer.
// On failure the shipper keeps buffering and the error is logged and returned.
func (e *Engine) Connect(ctx context.Context, dial ports.Dialer) error {
	t, err := dial(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to set up inspection client", "error", err)
		return fmt.Errorf("connect inspection client: %w", err)
	}
	e.shipper.SetTransport(t)
	e.shipper.Ready(ctx)
	return nil
}

// Record returns a copy of the record for id.
func (e *Engine) Record(id domain.EffectID) (domain.Record, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.reg.Get(id)
	if !ok {
		return domain.Record{}, false
	}
	return *rec, true
}

// Children returns the direct children of id in first-observation order.
func (e *Engine) Children(id domain.EffectID) []domain.EffectID {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]domain.EffectID(nil), e.reg.ChildrenOf(id)...)
}

// Tree returns the flattened subtree below id.
func (e *Engine) Tree(id domain.EffectID) ([]domain.FlatEffect, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.reg.Get(id); !ok {
		return nil, fmt.Errorf("tree of %d: %w", id, domain.ErrEffectNotFound)
	}
	return Flatten(e.reg, id), nil
}

// Snapshot builds the snapshot of id as it would be shipped right now,
// regardless of its status or of the exclusion list.
func (e *Engine) Snapshot(id domain.EffectID) (domain.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.reg.Get(id)
	if !ok {
		return domain.Snapshot{}, fmt.Errorf("snapshot of %d: %w", id, domain.ErrEffectNotFound)
	}
	return BuildSnapshot(e.reg, rec), nil
}

// Stats summarizes the registry and the shipper.
func (e *Engine) Stats() domain.Stats {
	e.mu.Lock()
	stats := domain.Stats{
		Effects:  e.reg.Len(),
		Roots:    len(e.reg.Roots()),
		ByStatus: make(map[domain.Status]int),
	}
	e.reg.Each(func(rec *domain.Record) {
		stats.ByStatus[rec.Status]++
		if rec.Awaiting {
			stats.Awaiting++
		}
	})
	e.mu.Unlock()

	state, buffered, dropped, shipped := e.shipper.stats()
	stats.ShipperState = state.String()
	stats.Buffered = buffered
	stats.Dropped = dropped
	stats.Shipped = shipped
	return stats
}

// ShipperState returns the current shipping state.
func (e *Engine) ShipperState() ShipperState {
	return e.shipper.State()
}

// Close stops waiting on unsettled task handles. Effects still awaiting their
// task stay pending. Close is idempotent.
func (e *Engine) Close() error {
	e.cancel()
	e.wg.Wait()
	return nil
}
