package domain

import "time"

// Status is the lifecycle state of an observed effect.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusResolved  Status = "RESOLVED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether the status is one of the final states.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusRejected || s == StatusCancelled
}

// Record is the monitor's view of one observed effect.
// Records are created Pending and mutated in place by one terminal transition.
type Record struct {
	ID       EffectID
	ParentID EffectID // NoParent for roots
	Root     bool

	Kind        Kind
	RawType     string // raw effect label, kept for display
	Effect      *Effect
	Description string
	Label       string // race alternative key

	Status    Status
	StartedAt time.Time
	EndedAt   time.Time
	Duration  time.Duration

	// Awaiting is set while the effect resolved with a task handle
	// whose own settlement has not been observed yet.
	Awaiting bool

	Winner bool
	Result any
	Err    error
}

// HasParent reports whether the record has an enclosing effect.
func (r *Record) HasParent() bool {
	return r.ParentID != NoParent
}

// DisplayName is the name shown for the effect: the raw label when the
// middleware supplied one, the kind otherwise.
func (r *Record) DisplayName() string {
	if r.RawType != "" {
		return r.RawType
	}
	return string(r.Kind)
}
