package courier

import "errors"

// Sentinel errors returned by Courier operations.
var (
	// ErrNoStore is returned when a Courier is created without a store.
	ErrNoStore = errors.New("courier: store is required")

	// ErrSubscriptionNotFound is returned when a subscription cannot be found.
	ErrSubscriptionNotFound = errors.New("courier: subscription not found")

	// ErrUnknownEvent is returned when an event name is not in the catalog.
	ErrUnknownEvent = errors.New("courier: unknown event")

	// ErrPayloadValidationFailed is returned when event data fails JSON Schema validation.
	ErrPayloadValidationFailed = errors.New("courier: payload validation failed")

	// ErrAttemptNotFound is returned when a delivery attempt cannot be found.
	ErrAttemptNotFound = errors.New("courier: delivery attempt not found")

	// ErrRetryNotFound is returned when a retry entry cannot be found.
	ErrRetryNotFound = errors.New("courier: retry entry not found")

	// ErrStoreClosed is returned when a store operation is attempted after the store is closed.
	ErrStoreClosed = errors.New("courier: store is closed")

	// ErrMigrationFailed is returned when a database migration fails.
	ErrMigrationFailed = errors.New("courier: migration failed")
)
