package ports

import (
	"context"

	"github.com/aretw0/sagalens/pkg/domain"
)

// Hooks is the entire surface the host task middleware depends on.
// Implementations must never panic and never block the caller for long.
type Hooks interface {
	// RootStarted is called when the middleware starts an independent root task.
	RootStarted(ctx context.Context, id domain.EffectID, meta domain.RootMeta)

	// EffectTriggered is called when an effect is yielded inside a running task.
	// label is the race alternative key (empty outside races).
	EffectTriggered(ctx context.Context, id, parentID domain.EffectID, label string, effect domain.Effect)

	// EffectResolved is called when an effect completes with a value or a task handle.
	EffectResolved(ctx context.Context, id domain.EffectID, res domain.Resolution)

	// EffectRejected is called when an effect fails.
	EffectRejected(ctx context.Context, id domain.EffectID, err error)

	// EffectCancelled is called when an effect is cancelled.
	EffectCancelled(ctx context.Context, id domain.EffectID)

	// ActionDispatched is called for every action dispatched through the store.
	ActionDispatched(ctx context.Context, action any)
}
