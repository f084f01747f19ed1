package runtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/sagalens/pkg/domain"
	"github.com/aretw0/sagalens/pkg/observability"
	"github.com/aretw0/sagalens/pkg/ports"
)

// ShipperState is the connection state of the snapshot shipper.
type ShipperState int

const (
	// StateUnknown: the client is not confirmed; snapshots are buffered.
	StateUnknown ShipperState = iota
	// StateAwaitingFirstFlush: the client is confirmed; the buffer is being flushed.
	StateAwaitingFirstFlush
	// StateStreaming: snapshots are sent as they complete.
	StateStreaming
)

func (s ShipperState) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateAwaitingFirstFlush:
		return "awaiting_first_flush"
	case StateStreaming:
		return "streaming"
	}
	return "invalid"
}

// Shipper decides whether a completed snapshot is buffered or streamed.
// Sends happen under its lock so that message order matches completion order.
type Shipper struct {
	mu        sync.Mutex
	state     ShipperState
	transport ports.Transport
	buffer    []domain.Snapshot
	limit     int
	dropped   int
	shipped   int

	next    uint64
	pending map[uint64]domain.Snapshot

	except  map[string]struct{}
	history ports.SnapshotStore

	logger  *slog.Logger
	metrics *observability.Metrics
}

type shipperOption func(*Shipper)

func withExcept(descriptions []string) shipperOption {
	return func(s *Shipper) {
		for _, d := range descriptions {
			s.except[d] = struct{}{}
		}
	}
}

func withTransport(t ports.Transport) shipperOption {
	return func(s *Shipper) {
		s.transport = t
	}
}

func withHistory(store ports.SnapshotStore) shipperOption {
	return func(s *Shipper) {
		s.history = store
	}
}

func withBufferLimit(n int) shipperOption {
	return func(s *Shipper) {
		s.limit = n
	}
}

func newShipper(logger *slog.Logger, metrics *observability.Metrics, opts ...shipperOption) *Shipper {
	s := &Shipper{
		state:   StateUnknown,
		limit:   DefaultBufferLimit,
		except:  make(map[string]struct{}),
		pending: make(map[uint64]domain.Snapshot),
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Excluded reports whether a task description is on the exclusion list.
func (s *Shipper) Excluded(description string) bool {
	_, ok := s.except[description]
	return ok
}

// SetTransport replaces the outbound transport.
func (s *Shipper) SetTransport(t ports.Transport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transport = t
}

// State returns the current state.
func (s *Shipper) State() ShipperState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ship records the snapshot in history, then buffers it or sends it
// depending on the connection state. Completions that arrive ahead of their
// sequence number are held until the earlier ones have been shipped.
func (s *Shipper) ship(ctx context.Context, c completion) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.seq != s.next {
		s.pending[c.seq] = c.snap
		return
	}
	s.shipLocked(ctx, c.snap)
	s.next++
	for {
		snap, ok := s.pending[s.next]
		if !ok {
			return
		}
		delete(s.pending, s.next)
		s.shipLocked(ctx, snap)
		s.next++
	}
}

func (s *Shipper) shipLocked(ctx context.Context, snap domain.Snapshot) {
	if s.history != nil {
		if err := s.history.Append(ctx, snap); err != nil {
			s.logger.WarnContext(ctx, "failed to record snapshot history", "error", err)
		}
	}

	if s.state != StateStreaming {
		s.bufferLocked(snap)
		return
	}

	msg := domain.Message{Type: domain.MessageTaskComplete, Payload: snap}
	if err := s.sendLocked(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "inspection client unavailable, buffering", "error", err)
		s.state = StateUnknown
		s.bufferLocked(snap)
	}
}

// Ready moves Unknown -> AwaitingFirstFlush, sends the buffer as one list
// message and moves on to Streaming. It is a no-op in any other state.
// A failed flush keeps the buffer and returns to Unknown.
func (s *Shipper) Ready(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUnknown {
		return
	}
	if s.transport == nil {
		s.logger.WarnContext(ctx, "client ready signalled without a transport")
		return
	}

	s.state = StateAwaitingFirstFlush
	batch := make([]domain.Snapshot, len(s.buffer))
	copy(batch, s.buffer)

	msg := domain.Message{Type: domain.MessageTaskList, Payload: batch}
	if err := s.sendLocked(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "failed to flush buffered snapshots", "error", err, "buffered", len(batch))
		s.state = StateUnknown
		return
	}

	s.buffer = nil
	s.metrics.SetBuffered(0)
	s.state = StateStreaming
}

func (s *Shipper) sendLocked(ctx context.Context, msg domain.Message) error {
	if s.transport == nil {
		return domain.ErrClientNotReady
	}
	if err := s.transport.Send(ctx, msg); err != nil {
		return err
	}
	s.shipped += len(msg.Snapshots())
	s.metrics.MessageSent(string(msg.Type))
	return nil
}

func (s *Shipper) bufferLocked(snap domain.Snapshot) {
	if s.limit > 0 && len(s.buffer) >= s.limit {
		s.buffer = s.buffer[1:]
		s.dropped++
		s.metrics.SnapshotDropped()
	}
	s.buffer = append(s.buffer, snap)
	s.metrics.SetBuffered(len(s.buffer))
}

// Buffered returns a copy of the pending buffer.
func (s *Shipper) Buffered() []domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Snapshot(nil), s.buffer...)
}

func (s *Shipper) stats() (ShipperState, int, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, len(s.buffer), s.dropped, s.shipped
}
