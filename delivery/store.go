package delivery

import (
	"context"
	"time"

	"github.com/xraph/courier/id"
	"github.com/xraph/courier/stats"
)

// Store defines the persistence contract for delivery attempts.
// Attempts are append-only: there is no update operation.
type Store interface {
	// CreateAttempt persists a new delivery attempt record.
	CreateAttempt(ctx context.Context, att *Attempt) error

	// GetAttempt returns an attempt by ID.
	GetAttempt(ctx context.Context, attID id.ID) (*Attempt, error)

	// ListAttempts returns a subscription's attempts, newest first.
	ListAttempts(ctx context.Context, subID id.ID, opts ListOpts) ([]*Attempt, error)

	// DeleteAttemptsBySubscription removes all attempts for a subscription
	// (cascade path on subscription delete).
	DeleteAttemptsBySubscription(ctx context.Context, subID id.ID) error

	// AttemptStats aggregates a subscription's attempts: total, successes,
	// attempts at or after recentSince, and the newest attempt timestamp.
	AttemptStats(ctx context.Context, subID id.ID, recentSince time.Time) (stats.Row, error)
}
