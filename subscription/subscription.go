// Package subscription implements the webhook registry: persisted CRUD of
// subscription records declaring which events a destination wants to receive
// and how delivery to it should behave.
package subscription

import (
	"time"

	"github.com/xraph/courier/catalog"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/internal/entity"
)

// Retry policy and timeout bounds enforced on create and update.
const (
	MaxRetriesCeiling    = 10
	MinBaseDelaySeconds  = 1
	MaxBaseDelaySeconds  = 3600
	MinBackoffMultiplier = 1
	MaxBackoffMultiplier = 10
	MinTimeoutSeconds    = 1
	MaxTimeoutSeconds    = 60
)

// RetryPolicy controls backoff scheduling for failed deliveries.
type RetryPolicy struct {
	// MaxRetries is the highest retry attempt number that will be scheduled.
	// 0 disables retries entirely.
	MaxRetries int `json:"max_retries"`

	// BaseDelaySeconds is the delay before the first retry.
	BaseDelaySeconds int `json:"retry_delay"`

	// BackoffMultiplier grows the delay exponentially per attempt.
	BackoffMultiplier float64 `json:"backoff_multiplier"`
}

// DefaultRetryPolicy is applied when a subscription does not declare one.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        3,
		BaseDelaySeconds:  60,
		BackoffMultiplier: 2,
	}
}

// DefaultTimeoutSeconds is applied when a subscription does not declare a timeout.
const DefaultTimeoutSeconds = 30

// Subscription represents a webhook destination registered by a tenant,
// with the set of events it wants to receive.
type Subscription struct {
	entity.Entity

	// ID is the unique TypeID for this subscription.
	ID id.ID `json:"id"`

	// TenantID identifies the tenant that owns this subscription. Empty for
	// platform-wide subscriptions.
	TenantID string `json:"tenant_id,omitempty"`

	// Name is a human-readable label.
	Name string `json:"name"`

	// URL is the webhook delivery destination.
	URL string `json:"url"`

	// Description explains what the subscription is for.
	Description string `json:"description,omitempty"`

	// Secret is the HMAC signing secret. Write-only: never serialized, never
	// returned through any read path after creation.
	Secret string `json:"-"`

	// Events is the set of catalog event names this subscription receives.
	// Always non-empty.
	Events []catalog.Name `json:"events"`

	// Headers are custom HTTP headers sent with each delivery.
	Headers map[string]string `json:"headers,omitempty"`

	// Active indicates whether the subscription receives dispatches.
	Active bool `json:"is_active"`

	// RetryPolicy controls backoff scheduling for failed deliveries.
	RetryPolicy RetryPolicy `json:"retry_config"`

	// TimeoutSeconds bounds each outbound delivery call.
	TimeoutSeconds int `json:"timeout"`

	// RateLimit is the maximum deliveries per second. 0 means unlimited.
	RateLimit int `json:"rate_limit,omitempty"`
}

// Timeout returns the per-delivery timeout as a duration.
func (s *Subscription) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Subscribed reports whether the subscription receives the given event.
func (s *Subscription) Subscribed(event catalog.Name) bool {
	for _, e := range s.Events {
		if e == event {
			return true
		}
	}
	return false
}
