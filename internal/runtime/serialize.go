package runtime

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"fortio.org/safecast"
	"github.com/aretw0/sagalens/internal/registry"
	"github.com/aretw0/sagalens/pkg/domain"
)

// Flatten walks the subtree below id depth-first, pre-order, starting at each
// direct child with depth 0. Children are visited in registration order.
// It never mutates the registry.
func Flatten(reg *registry.Registry, id domain.EffectID) []domain.FlatEffect {
	out := make([]domain.FlatEffect, 0)
	for _, childID := range reg.ChildrenOf(id) {
		out = flattenInto(reg, 0, childID, out)
	}
	return out
}

func flattenInto(reg *registry.Registry, depth int, id domain.EffectID, out []domain.FlatEffect) []domain.FlatEffect {
	rec, ok := reg.Get(id)
	if !ok {
		return out
	}
	out = append(out, flatRecord(rec, depth))
	for _, childID := range reg.ChildrenOf(id) {
		out = flattenInto(reg, depth+1, childID, out)
	}
	return out
}

func flatRecord(rec *domain.Record, depth int) domain.FlatEffect {
	flat := domain.FlatEffect{
		Depth:       depth,
		EffectID:    rec.ID,
		Name:        optional(rec.DisplayName()),
		Description: optional(rec.Description),
		Duration:    Millis(rec.Duration),
		Status:      optional(string(rec.Status)),
		Result:      jsonSafe(rec.Result),
		Extra:       jsonSafe(Extra(rec)),
	}
	if rec.HasParent() {
		parent := rec.ParentID
		flat.ParentEffectID = &parent
	}
	if rec.Winner {
		winner := true
		flat.Winner = &winner
	}
	return flat
}

// Extra extracts the kind-specific payload shipped alongside an effect.
func Extra(rec *domain.Record) any {
	if rec.Effect == nil {
		return nil
	}
	switch rec.Kind {
	case domain.KindCall:
		if rec.Effect.Args == nil {
			return nil
		}
		return rec.Effect.Args
	case domain.KindPut:
		return rec.Effect.Action
	case domain.KindRace:
		return nil
	}
	return rec.Effect.Payload
}

// BuildSnapshot assembles the shippable view of a completed task.
// Forks and roots carry their subtree; other effects ship without children.
func BuildSnapshot(reg *registry.Registry, rec *domain.Record) domain.Snapshot {
	snap := domain.Snapshot{
		Duration: Millis(rec.Duration),
		Children: make([]domain.FlatEffect, 0),
	}

	if rec.Kind == domain.KindFork || rec.Root {
		if rec.Kind == domain.KindFork && rec.Effect != nil && len(rec.Effect.Args) > 0 {
			snap.TriggerType = ActionType(rec.Effect.Args[len(rec.Effect.Args)-1])
		}

		var parent *domain.Record
		if rec.HasParent() {
			parent, _ = reg.Get(rec.ParentID)
		}
		if parent != nil {
			// Only a direct ITERATOR parent lends its description.
			if parent.Kind == domain.KindIterator {
				snap.Description = optional(parent.Description)
			}
		} else {
			root := domain.RootSagaDescription
			snap.Description = &root
			snap.TriggerType = rec.Description + "()"
		}

		snap.Children = Flatten(reg, rec.ID)
	}

	if snap.TriggerType == "" {
		snap.TriggerType = rec.Description
	}
	return snap
}

// completion is a snapshot tagged with its place in completion order.
type completion struct {
	seq  uint64
	snap domain.Snapshot
}

// shippableLocked builds the snapshot of rec unless its description is excluded.
func (e *Engine) shippableLocked(rec *domain.Record) *completion {
	if e.shipper.Excluded(rec.Description) {
		e.logger.Debug("snapshot excluded", "effect_id", rec.ID, "description", rec.Description)
		return nil
	}
	c := &completion{seq: e.completed, snap: BuildSnapshot(e.reg, rec)}
	e.completed++
	return c
}

// Millis rounds a duration to whole milliseconds.
func Millis(d time.Duration) int64 {
	ms := math.Round(float64(d) / float64(time.Millisecond))
	v, err := safecast.Convert[int64](ms)
	if err != nil {
		return 0
	}
	return v
}

// jsonSafe replaces a value the wire codec cannot encode with its printed form.
func jsonSafe(v any) any {
	if v == nil {
		return nil
	}
	if _, err := json.Marshal(v); err != nil {
		return fmt.Sprint(v)
	}
	return v
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
