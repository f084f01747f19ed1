package memory

import (
	"context"
	"sync"

	"github.com/aretw0/sagalens/pkg/domain"
)

// Transport records outbound messages in memory. It is the transport used by
// replays and tests. Safe for concurrent use.
type Transport struct {
	mu       sync.Mutex
	messages []domain.Message
	err      error
	notify   chan struct{}
}

// NewTransport creates an empty recording transport.
func NewTransport() *Transport {
	return &Transport{notify: make(chan struct{}, 1)}
}

// Send records msg, or returns the failure set with FailWith.
func (t *Transport) Send(ctx context.Context, msg domain.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.err != nil {
		return t.err
	}
	t.messages = append(t.messages, msg)
	select {
	case t.notify <- struct{}{}:
	default:
	}
	return nil
}

// FailWith makes subsequent sends fail with err. A nil err restores delivery.
func (t *Transport) FailWith(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
}

// Messages returns a copy of the recorded messages.
func (t *Transport) Messages() []domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.Message(nil), t.messages...)
}

// OfType returns the recorded messages of one type.
func (t *Transport) OfType(msgType domain.MessageType) []domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []domain.Message
	for _, m := range t.messages {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

// Notify is signalled (coalesced) whenever a message is recorded.
func (t *Transport) Notify() <-chan struct{} {
	return t.notify
}

// Reset drops the recorded messages.
func (t *Transport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
}
