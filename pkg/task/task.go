// Package task provides a settable background-task handle.
//
// A Task is the Go counterpart of the task objects returned by fork effects:
// the host resolves, rejects or cancels it exactly once, and observers either
// wait on Done or register a settle callback.
package task

import (
	"sync"

	"github.com/aretw0/sagalens/pkg/domain"
)

// Task is a single-settlement handle. It implements domain.TaskHandle and
// domain.SettleNotifier. The zero value is not usable; use New.
type Task struct {
	mu        sync.Mutex
	done      chan struct{}
	settled   bool
	value     any
	err       error
	cancelled bool
	callbacks []func()
}

var (
	_ domain.TaskHandle     = (*Task)(nil)
	_ domain.SettleNotifier = (*Task)(nil)
)

// New creates an unsettled task.
func New() *Task {
	return &Task{done: make(chan struct{})}
}

// Resolve settles the task with a value.
func (t *Task) Resolve(value any) error {
	return t.settle(value, nil, false)
}

// Reject settles the task with an error.
func (t *Task) Reject(err error) error {
	return t.settle(nil, err, false)
}

// Cancel settles the task as cancelled.
func (t *Task) Cancel() error {
	return t.settle(nil, nil, true)
}

func (t *Task) settle(value any, err error, cancelled bool) error {
	t.mu.Lock()
	if t.settled {
		t.mu.Unlock()
		return domain.ErrTaskSettled
	}
	t.settled = true
	t.value = value
	t.err = err
	t.cancelled = cancelled
	callbacks := t.callbacks
	t.callbacks = nil
	close(t.done)
	t.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
	return nil
}

// Done is closed once the task settled.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Result returns the settlement. Before settlement it returns (nil, nil).
func (t *Task) Result() (any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value, t.err
}

// Cancelled reports whether the task was cancelled.
func (t *Task) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Settled reports whether the task settled.
func (t *Task) Settled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settled
}

// OnSettle registers fn to run once the task settles, on the settling
// goroutine. If the task already settled, fn runs immediately.
func (t *Task) OnSettle(fn func()) {
	t.mu.Lock()
	if !t.settled {
		t.callbacks = append(t.callbacks, fn)
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	fn()
}
