package retry

import (
	"context"
	"time"

	"github.com/xraph/courier/id"
)

// Store defines the persistence contract for the retry queue.
type Store interface {
	// EnqueueRetry persists a new retry entry.
	EnqueueRetry(ctx context.Context, entry *Entry) error

	// ClaimDueRetries atomically removes and returns up to limit entries
	// whose scheduled time is at or before now. A claimed entry is gone from
	// the queue regardless of what the worker does with it; renewed failures
	// re-enter through EnqueueRetry.
	ClaimDueRetries(ctx context.Context, now time.Time, limit int) ([]*Entry, error)

	// ListRetries returns a subscription's pending entries, soonest first.
	ListRetries(ctx context.Context, subID id.ID) ([]*Entry, error)

	// CountRetries returns the total number of pending entries.
	CountRetries(ctx context.Context) (int64, error)

	// DeleteRetriesBySubscription removes all pending entries for a
	// subscription (cascade path on subscription delete).
	DeleteRetriesBySubscription(ctx context.Context, subID id.ID) error
}
