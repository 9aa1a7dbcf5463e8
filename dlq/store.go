package dlq

import (
	"context"

	"github.com/xraph/drip/id"
)

// Store is the persistence interface for dead-letter entries.
//
// Implementations enforce a fixed capacity: when a push would exceed
// it, the oldest entry is evicted first. All returned entries are
// copies; mutating them does not affect stored state.
type Store interface {
	// PushDLQ appends an entry, evicting the oldest if at capacity.
	PushDLQ(ctx context.Context, e *Entry) error

	// GetDLQ returns the entry with the given ID, or drip.ErrDLQNotFound.
	GetDLQ(ctx context.Context, entryID id.DLQID) (*Entry, error)

	// ListDLQ returns all entries in insertion order (oldest first).
	ListDLQ(ctx context.Context) ([]*Entry, error)

	// RemoveDLQ deletes the entry with the given ID, or returns
	// drip.ErrDLQNotFound.
	RemoveDLQ(ctx context.Context, entryID id.DLQID) error

	// ClearDLQ removes all entries and returns how many were removed.
	ClearDLQ(ctx context.Context) (int64, error)

	// CountDLQ returns the number of stored entries.
	CountDLQ(ctx context.Context) (int, error)
}

// CapacitySetter is implemented by stores whose dead-letter capacity
// can be configured at wiring time. The engine applies the configured
// capacity through this interface when the store supports it.
type CapacitySetter interface {
	// SetDLQCapacity bounds the store to n entries, evicting oldest
	// entries immediately if the store already holds more.
	SetDLQCapacity(n int)
}
