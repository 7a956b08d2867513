// Package delivery performs outbound webhook calls and records their
// outcomes as immutable delivery attempts.
package delivery

import (
	"encoding/json"

	"github.com/xraph/courier/catalog"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/internal/entity"
)

// Outcome classifies one delivery attempt.
type Outcome string

const (
	// OutcomeSuccess indicates the destination answered with a 2xx status.
	OutcomeSuccess Outcome = "success"

	// OutcomeFailed indicates a transport failure (status 0) or a non-2xx
	// response.
	OutcomeFailed Outcome = "failed"
)

// Attempt is the immutable record of one outbound webhook call. A retry
// creates a new Attempt; an existing row is never mutated.
type Attempt struct {
	entity.Entity

	// ID is the opaque delivery identifier, also sent as X-Webhook-Delivery.
	ID id.ID `json:"id"`

	// SubscriptionID references the subscription this call was made for.
	SubscriptionID id.ID `json:"subscription_id"`

	// Event is the dispatched event name.
	Event catalog.Name `json:"event"`

	// Payload is the exact envelope bytes sent as the request body.
	Payload json.RawMessage `json:"payload"`

	// URL is the destination at send time.
	URL string `json:"url"`

	// Outcome is success or failed.
	Outcome Outcome `json:"outcome"`

	// StatusCode is the HTTP status of the response. 0 means the call never
	// produced a response (timeout, DNS failure, refused connection).
	StatusCode int `json:"status_code"`

	// Response is the response body, or the transport error text, truncated
	// to 1000 characters.
	Response string `json:"response,omitempty"`

	// LatencyMs is the call duration in milliseconds.
	LatencyMs int `json:"response_time_ms"`

	// AttemptNumber is 1 for first sends and increments per retry.
	AttemptNumber int `json:"attempt_number"`
}

// Succeeded reports whether the attempt got a 2xx response.
func (a *Attempt) Succeeded() bool {
	return a.Outcome == OutcomeSuccess
}

// ListOpts configures filtering and pagination for attempt listing.
type ListOpts struct {
	Offset  int
	Limit   int
	Outcome *Outcome
	Event   catalog.Name
}
