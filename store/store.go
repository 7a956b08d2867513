// Package store defines the composite Store interface for all Courier
// persistence.
//
// Each subsystem defines its own narrow store interface next to its types,
// and the aggregate Store composes them all. Backends live in subpackages
// (memory, postgres, sqlite, redis, mongo) and implement the whole thing.
package store

import (
	"context"

	"github.com/xraph/courier/audit"
	"github.com/xraph/courier/delivery"
	"github.com/xraph/courier/retry"
	"github.com/xraph/courier/subscription"
)

// Store is the aggregate persistence interface.
type Store interface {
	subscription.Store
	delivery.Store
	retry.Store
	audit.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
