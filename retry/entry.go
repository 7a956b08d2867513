// Package retry schedules and executes bounded exponential-backoff retries
// for failed webhook deliveries.
//
// The split is deliberate: the Scheduler only decides when the next attempt
// should happen and enqueues a durable Entry; the Worker polls for due
// entries and performs the call. The queue is inspectable and restart-safe:
// a process crash loses nothing but the poll interval.
package retry

import (
	"encoding/json"
	"time"

	"github.com/xraph/courier/catalog"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/internal/entity"
)

// Entry is one queued retry. Entries are independent per delivery: retries
// for different subscriptions never contend.
type Entry struct {
	entity.Entity

	ID id.ID `json:"id"`

	// SubscriptionID references the subscription to retry against.
	SubscriptionID id.ID `json:"subscription_id"`

	// AttemptID references the failed delivery attempt that caused this entry.
	AttemptID id.ID `json:"attempt_id"`

	// Event is the dispatched event name.
	Event catalog.Name `json:"event"`

	// Body is the exact sealed envelope bytes from the original dispatch.
	Body json.RawMessage `json:"body"`

	// SentAt is the envelope timestamp from the original dispatch, replayed
	// unchanged so the retried request carries the same X-Webhook-Timestamp.
	SentAt time.Time `json:"sent_at"`

	// AttemptNumber is the number the next attempt will carry.
	AttemptNumber int `json:"attempt_number"`

	// ScheduledAt is the earliest time the worker may execute this entry.
	ScheduledAt time.Time `json:"scheduled_at"`
}

// Due reports whether the entry is ready for execution at the given time.
func (e *Entry) Due(now time.Time) bool {
	return !e.ScheduledAt.After(now)
}
