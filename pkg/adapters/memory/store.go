package memory

import (
	"context"
	"sync"

	"github.com/aretw0/sagalens/pkg/domain"
)

// Store implements ports.SnapshotStore in memory.
// Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	data  []domain.Snapshot
	limit int
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLimit keeps only the newest n snapshots. Zero or less means unbounded.
func WithLimit(n int) StoreOption {
	return func(s *Store) {
		s.limit = n
	}
}

// NewStore creates a new in-memory store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append adds a snapshot, evicting the oldest one beyond the limit.
func (s *Store) Append(ctx context.Context, snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = append(s.data, snap)
	if s.limit > 0 && len(s.data) > s.limit {
		s.data = append([]domain.Snapshot(nil), s.data[len(s.data)-s.limit:]...)
	}
	return nil
}

// List returns the newest limit snapshots (all when limit <= 0), oldest first.
func (s *Store) List(ctx context.Context, limit int) ([]domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if limit > 0 && len(s.data) > limit {
		start = len(s.data) - limit
	}
	out := make([]domain.Snapshot, len(s.data)-start)
	copy(out, s.data[start:])
	return out, nil
}

// Len returns the number of stored snapshots.
func (s *Store) Len(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data), nil
}
