package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/sagalens/internal/logging"
	"github.com/aretw0/sagalens/pkg/domain"
	"github.com/aretw0/sagalens/pkg/ports"
	"github.com/aretw0/sagalens/pkg/task"
)

// Target receives the hook calls rebuilt from events.
type Target interface {
	ports.Hooks
	ClientReady(ctx context.Context)
}

// Player converts events into hook calls. Deferred resolutions get a local
// task handle that a later task_settled event for the same effect settles.
// Safe for concurrent use.
type Player struct {
	target Target
	clock  *EventClock
	logger *slog.Logger

	mu     sync.Mutex
	tasks  map[domain.EffectID]*task.Task
	errors map[string]error
}

// PlayerOption configures a Player.
type PlayerOption func(*Player)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) PlayerOption {
	return func(p *Player) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithEventClock advances clock to each event timestamp before applying it.
// Pass clock.Now as the monitor's clock to replay recorded durations.
func WithEventClock(clock *EventClock) PlayerOption {
	return func(p *Player) {
		p.clock = clock
	}
}

// NewPlayer creates a Player feeding target.
func NewPlayer(target Target, opts ...PlayerOption) *Player {
	p := &Player{
		target: target,
		logger: logging.NewNop(),
		tasks:  make(map[domain.EffectID]*task.Task),
		errors: make(map[string]error),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Apply validates ev and performs the matching hook call.
func (p *Player) Apply(ctx context.Context, ev domain.Event) error {
	if err := Validate(ev); err != nil {
		return err
	}
	if p.clock != nil && !ev.Timestamp.IsZero() {
		p.clock.Set(ev.Timestamp)
	}

	switch ev.Kind {
	case domain.EventRootStarted:
		var meta domain.RootMeta
		if ev.Root != nil {
			meta = *ev.Root
		}
		p.target.RootStarted(ctx, ev.EffectID, meta)

	case domain.EventEffectTriggered:
		effect, err := DecodeEffect(ev.Effect)
		if err != nil {
			return err
		}
		p.target.EffectTriggered(ctx, ev.EffectID, ev.ParentEffectID, ev.Label, effect)

	case domain.EventEffectResolved:
		if !ev.Deferred {
			p.target.EffectResolved(ctx, ev.EffectID, domain.Immediate(ev.Result))
			return nil
		}
		tk := task.New()
		p.mu.Lock()
		if _, exists := p.tasks[ev.EffectID]; exists {
			p.logger.WarnContext(ctx, "replacing pending task", "effect_id", ev.EffectID)
		}
		p.tasks[ev.EffectID] = tk
		p.mu.Unlock()
		p.target.EffectResolved(ctx, ev.EffectID, domain.Deferred(tk))

	case domain.EventEffectRejected:
		p.target.EffectRejected(ctx, ev.EffectID, p.errorFor(ev))

	case domain.EventEffectCancelled:
		p.target.EffectCancelled(ctx, ev.EffectID)

	case domain.EventActionDispatched:
		p.target.ActionDispatched(ctx, ev.Action)

	case domain.EventTaskSettled:
		return p.settle(ev)

	case domain.EventClientReady:
		p.target.ClientReady(ctx)
	}
	return nil
}

func (p *Player) settle(ev domain.Event) error {
	p.mu.Lock()
	tk, ok := p.tasks[ev.EffectID]
	delete(p.tasks, ev.EffectID)
	p.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: no pending task for effect %d", domain.ErrInvalidEvent, ev.EffectID)
	}

	// Settling runs the monitor continuation on this goroutine.
	switch {
	case ev.Cancelled:
		return tk.Cancel()
	case ev.Error != "" || ev.ErrorID != "":
		return tk.Reject(p.errorFor(ev))
	default:
		return tk.Resolve(ev.Result)
	}
}

// errorFor returns the error of ev, reusing the instance of earlier events
// with the same error id.
func (p *Player) errorFor(ev domain.Event) error {
	if ev.ErrorID == "" {
		return errorOf(ev)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.errors[ev.ErrorID]; ok {
		return err
	}
	err := errorOf(ev)
	p.errors[ev.ErrorID] = err
	return err
}

// Pending returns the number of tasks still waiting for task_settled.
func (p *Player) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tasks)
}

// Play applies every event read from r in order and returns how many were
// applied. It stops at the first invalid event or when ctx is done.
func (p *Player) Play(ctx context.Context, r io.Reader) (int, error) {
	reader := NewReader(r)
	applied := 0
	for {
		if err := ctx.Err(); err != nil {
			return applied, err
		}
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return applied, nil
		}
		if err != nil {
			return applied, err
		}
		if err := p.Apply(ctx, ev); err != nil {
			return applied, fmt.Errorf("event %d (%s): %w", applied+1, ev.Kind, err)
		}
		applied++
	}
}

// EventClock is a clock driven by event timestamps. It never moves backwards.
type EventClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewEventClock creates a clock starting at start.
func NewEventClock(start time.Time) *EventClock {
	return &EventClock{now: start}
}

// Now returns the timestamp of the latest event seen.
func (c *EventClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t, unless t is earlier than the current time.
func (c *EventClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.now) {
		c.now = t
	}
}
