package domain

import (
	"errors"
	"fmt"
)

// TaskHandle is a reference to a backgrounded, independently cancellable unit
// of work returned as the result of an effect (typically a fork).
type TaskHandle interface {
	// Done is closed once the task settled.
	Done() <-chan struct{}
	// Result returns the settlement value or error. Only valid after Done.
	Result() (any, error)
	// Cancelled reports whether the task ended by cancellation.
	Cancelled() bool
}

// SettleNotifier is implemented by task handles that can run a callback
// synchronously when they settle. The callback runs at most once.
type SettleNotifier interface {
	OnSettle(fn func())
}

// Resolution is the outcome passed to EffectResolved.
// It is either Immediate (a plain value) or Deferred (a task handle).
type Resolution struct {
	value  any
	handle TaskHandle
}

// Immediate wraps a plain result value.
func Immediate(value any) Resolution {
	return Resolution{value: value}
}

// Deferred wraps a task handle whose settlement decides the final outcome.
func Deferred(handle TaskHandle) Resolution {
	return Resolution{handle: handle}
}

// Value returns the plain value of an Immediate resolution.
func (r Resolution) Value() any {
	return r.value
}

// Handle returns the task handle of a Deferred resolution.
func (r Resolution) Handle() (TaskHandle, bool) {
	return r.handle, r.handle != nil
}

// IsDeferred reports whether the resolution carries a task handle.
func (r Resolution) IsDeferred() bool {
	return r.handle != nil
}

// RaceSettlement is the settled branch of a race: the winning alternative key
// and its value.
type RaceSettlement struct {
	Label string `json:"label"`
	Value any    `json:"value,omitempty"`
}

// RaceError is the rejection of a race, tagged with the alternative that failed first.
type RaceError struct {
	Label string
	Err   error
}

func (e *RaceError) Error() string {
	return fmt.Sprintf("race alternative %q: %v", e.Label, e.Err)
}

func (e *RaceError) Unwrap() error {
	return e.Err
}

// WinningLabel extracts the winning alternative key from a race settlement.
// It accepts a RaceSettlement, an error wrapping *RaceError, or a mapping with
// exactly one key. Anything else yields ok == false.
func WinningLabel(settlement any) (string, bool) {
	switch v := settlement.(type) {
	case RaceSettlement:
		return v.Label, true
	case *RaceSettlement:
		if v == nil {
			return "", false
		}
		return v.Label, true
	case map[string]any:
		return soleKey(v)
	case error:
		var raceErr *RaceError
		if errors.As(v, &raceErr) {
			return raceErr.Label, true
		}
	}
	return "", false
}

func soleKey(m map[string]any) (string, bool) {
	if len(m) != 1 {
		return "", false
	}
	for k := range m {
		return k, true
	}
	return "", false
}
