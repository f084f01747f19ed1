package domain

import "time"

// EventKind defines the category of an ingested lifecycle event.
type EventKind string

const (
	EventRootStarted      EventKind = "root_started"
	EventEffectTriggered  EventKind = "effect_triggered"
	EventEffectResolved   EventKind = "effect_resolved"
	EventEffectRejected   EventKind = "effect_rejected"
	EventEffectCancelled  EventKind = "effect_cancelled"
	EventActionDispatched EventKind = "action_dispatched"
	EventTaskSettled      EventKind = "task_settled"
	EventClientReady      EventKind = "client_ready"
)

// Event is the wire form of one hook invocation, used by remote hosts and
// recorded event logs. Effect descriptors travel as opaque maps.
type Event struct {
	Kind      EventKind `json:"kind"`
	Timestamp time.Time `json:"timestamp,omitempty"`

	EffectID       EffectID `json:"effectId,omitempty"`
	ParentEffectID EffectID `json:"parentEffectId,omitempty"`
	Label          string   `json:"label,omitempty"`

	Effect map[string]any `json:"effect,omitempty"`
	Root   *RootMeta      `json:"root,omitempty"`

	// Result is the resolved value, or the task value for task_settled.
	Result any `json:"result,omitempty"`
	// Deferred marks an effect_resolved whose result is a background task;
	// a later task_settled event for the same effect settles it.
	Deferred bool `json:"deferred,omitempty"`
	// Error is the rejection message for effect_rejected / task_settled.
	Error string `json:"error,omitempty"`
	// ErrorID identifies the error instance across events. Events sharing an
	// ErrorID carry the same error, so the error handler sees it once.
	ErrorID string `json:"errorId,omitempty"`
	// RaceLabel tags a rejection with the race alternative that failed.
	RaceLabel string `json:"raceLabel,omitempty"`
	Cancelled bool   `json:"cancelled,omitempty"`

	Action any `json:"action,omitempty"`
}

// Stats summarizes the state of a monitor.
type Stats struct {
	Effects      int            `json:"effects"`
	Roots        int            `json:"roots"`
	ByStatus     map[Status]int `json:"byStatus"`
	Awaiting     int            `json:"awaiting"`
	ShipperState string         `json:"shipperState"`
	Buffered     int            `json:"buffered"`
	Dropped      int            `json:"dropped"`
	Shipped      int            `json:"shipped"`
}
