// Package audit records who changed what in the webhook registry.
//
// Every registry mutation appends one entry to the activity log. Recording
// is best-effort: a failed append is logged and swallowed, never surfaced to
// the mutation that triggered it.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/courier/id"
	"github.com/xraph/courier/internal/entity"
	"github.com/xraph/courier/scope"
)

// Entry is one activity-log record.
type Entry struct {
	entity.Entity

	ID id.ID `json:"id"`

	// Actor is who performed the action, taken from the request scope.
	Actor string `json:"actor"`

	// TenantID is the tenant the action happened in, if any.
	TenantID string `json:"tenant_id,omitempty"`

	// Action names the mutation, e.g. "webhook.created".
	Action string `json:"action"`

	// EntityID is the affected subscription id.
	EntityID string `json:"entity_id"`

	// Metadata carries action-specific details.
	Metadata map[string]string `json:"metadata,omitempty"`

	// OccurredAt is when the action happened.
	OccurredAt time.Time `json:"occurred_at"`
}

// ListOpts configures filtering and pagination for activity listing.
type ListOpts struct {
	Offset   int
	Limit    int
	EntityID string
	Action   string
}

// Store defines the persistence contract for the activity log.
type Store interface {
	// AppendAudit persists one activity entry.
	AppendAudit(ctx context.Context, entry *Entry) error

	// ListAudit returns activity entries, newest first.
	ListAudit(ctx context.Context, tenantID string, opts ListOpts) ([]*Entry, error)
}

// Recorder writes activity entries, resolving actor and tenant from the
// request scope.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

// NewRecorder creates an activity recorder.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:  store,
		logger: logger,
	}
}

// Record appends one activity entry. Failures are logged, not returned:
// the registry mutation has already happened and must not be rolled back or
// failed over its audit trail.
func (r *Recorder) Record(ctx context.Context, action, entityID string, metadata map[string]string) {
	entry := &Entry{
		Entity:     entity.New(),
		ID:         id.NewAuditID(),
		Actor:      scope.Actor(ctx),
		TenantID:   scope.Tenant(ctx),
		Action:     action,
		EntityID:   entityID,
		Metadata:   metadata,
		OccurredAt: time.Now().UTC(),
	}

	if err := r.store.AppendAudit(ctx, entry); err != nil {
		r.logger.ErrorContext(ctx, "append audit entry failed",
			"action", action, "entity_id", entityID, "error", err)
	}
}

// List returns activity entries for the scope's tenant.
func (r *Recorder) List(ctx context.Context, opts ListOpts) ([]*Entry, error) {
	return r.store.ListAudit(ctx, scope.Tenant(ctx), opts)
}
