package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/sagalens/internal/logging"
	"github.com/aretw0/sagalens/pkg/domain"
	"github.com/aretw0/sagalens/pkg/ports"
)

// Hub fans telemetry messages out to the connected SSE clients.
// It is the ports.Transport of a monitor served over HTTP.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan []byte]struct{}
	onReady     func(context.Context)
	bufferSize  int
	logger      *slog.Logger
}

var _ ports.Transport = (*Hub)(nil)

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithOnReady sets the callback run when the first client connects after
// a period without clients. It runs outside the hub lock.
func WithOnReady(fn func(context.Context)) HubOption {
	return func(h *Hub) {
		h.onReady = fn
	}
}

// WithClientBuffer sets how many messages a slow client may lag behind
// before messages to it are dropped.
func WithClientBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.bufferSize = n
		}
	}
}

// WithHubLogger sets a custom structured logger.
func WithHubLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subscribers: make(map[chan []byte]struct{}),
		bufferSize:  64,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a client and returns its channel and the cancel func.
func (h *Hub) Subscribe(ctx context.Context) (<-chan []byte, func()) {
	ch := make(chan []byte, h.bufferSize)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	first := len(h.subscribers) == 1
	h.mu.Unlock()

	if first && h.onReady != nil {
		h.onReady(ctx)
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subscribers, ch)
			close(ch)
		})
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Send broadcasts msg. Without clients it fails with domain.ErrClientNotReady.
// Clients whose buffer is full miss the message.
func (h *Hub) Send(ctx context.Context, msg domain.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.subscribers) == 0 {
		return domain.ErrClientNotReady
	}

	h.logger.DebugContext(ctx, "broadcasting", "type", msg.Type, "payload_size", len(data), "clients", len(h.subscribers))
	for ch := range h.subscribers {
		select {
		case ch <- data:
		default:
			h.logger.WarnContext(ctx, "SSE: client buffer full, dropping message", "type", msg.Type)
		}
	}
	return nil
}
