package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/sagalens/pkg/domain"
	"github.com/aretw0/sagalens/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// Store implements ports.SnapshotStore as a capped redis list.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	limit  int
	codec  Codec
}

var _ ports.SnapshotStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithTTL expires the history this long after the last append.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithLimit keeps only the newest n snapshots. Zero or less means unbounded.
func WithLimit(n int) Option {
	return func(s *Store) {
		s.limit = n
	}
}

// WithCodec sets the serialization codec.
func WithCodec(c Codec) Option {
	return func(s *Store) {
		if c != nil {
			s.codec = c
		}
	}
}

// NewClient creates a redis client.
func NewClient(address, password string, db int) *backend.Client {
	return backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
}

// NewStore creates a history store on an existing client.
func NewStore(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "sagalens:",
		codec:  JSON,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *Store) key() string {
	return s.prefix + "snapshots"
}

// Append pushes the snapshot, trims the list and refreshes the expiry.
func (s *Store) Append(ctx context.Context, snap domain.Snapshot) error {
	data, err := s.codec.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, s.key(), data)
	if s.limit > 0 {
		pipe.LTrim(ctx, s.key(), int64(-s.limit), -1)
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(), s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append snapshot to redis: %w", err)
	}
	return nil
}

// List returns the newest limit snapshots, oldest first.
// Zero or less returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]domain.Snapshot, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}

	raw, err := s.client.LRange(ctx, s.key(), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	out := make([]domain.Snapshot, 0, len(raw))
	for _, item := range raw {
		var snap domain.Snapshot
		if err := s.codec.Unmarshal([]byte(item), &snap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, nil
}

// Len returns the number of stored snapshots.
func (s *Store) Len(ctx context.Context) (int, error) {
	n, err := s.client.LLen(ctx, s.key()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return int(n), nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
