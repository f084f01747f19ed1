package ports

import (
	"context"

	"github.com/aretw0/sagalens/pkg/domain"
)

// SnapshotStore keeps the history of completed task snapshots.
type SnapshotStore interface {
	// Append adds a snapshot at the end of the history.
	Append(ctx context.Context, snap domain.Snapshot) error

	// List returns the history in completion order, oldest first.
	// limit <= 0 means everything; otherwise the newest limit entries are returned.
	List(ctx context.Context, limit int) ([]domain.Snapshot, error)

	// Len returns the number of stored snapshots.
	Len(ctx context.Context) (int, error)
}
