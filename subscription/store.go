package subscription

import (
	"context"

	"github.com/xraph/courier/catalog"
	"github.com/xraph/courier/id"
)

// Store defines the persistence contract for webhook subscriptions.
type Store interface {
	// CreateSubscription persists a new subscription.
	CreateSubscription(ctx context.Context, sub *Subscription) error

	// GetSubscription returns a subscription by ID.
	GetSubscription(ctx context.Context, subID id.ID) (*Subscription, error)

	// UpdateSubscription modifies an existing subscription.
	UpdateSubscription(ctx context.Context, sub *Subscription) error

	// DeleteSubscription removes a subscription row. Dependent delivery
	// attempts and retry entries are purged by the service before this call.
	DeleteSubscription(ctx context.Context, subID id.ID) error

	// ListSubscriptions returns subscriptions matching opts along with the
	// total count before pagination.
	ListSubscriptions(ctx context.Context, tenantID string, opts ListOpts) ([]*Subscription, int, error)

	// CountSubscriptions returns total and active counts for a tenant.
	CountSubscriptions(ctx context.Context, tenantID string) (total, active int64, err error)

	// Resolve finds all active subscriptions subscribed to the given event.
	// This is the hot path, called on every dispatch.
	Resolve(ctx context.Context, tenantID string, event catalog.Name) ([]*Subscription, error)

	// SetActive activates or deactivates a subscription without deleting it.
	SetActive(ctx context.Context, subID id.ID, active bool) error
}

// DependentsPurger removes a subscription's dependent rows. Implemented by
// the composite store; used by the service for cascade deletes.
type DependentsPurger interface {
	// DeleteAttemptsBySubscription removes all delivery attempts for a subscription.
	DeleteAttemptsBySubscription(ctx context.Context, subID id.ID) error

	// DeleteRetriesBySubscription removes all queued retries for a subscription.
	DeleteRetriesBySubscription(ctx context.Context, subID id.ID) error
}
