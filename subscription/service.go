package subscription

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/courier/id"
	"github.com/xraph/courier/internal/entity"
	"github.com/xraph/courier/signature"
	"github.com/xraph/courier/stats"
)

// Auditor records registry mutations to the host platform's activity log.
// Implemented by audit.Recorder; nil disables auditing.
type Auditor interface {
	Record(ctx context.Context, action string, entityID string, metadata map[string]string)
}

// StatsSource provides rolling delivery statistics for list responses.
// Implemented by stats.Aggregator; nil disables the join.
type StatsSource interface {
	For(ctx context.Context, subID id.ID) (*stats.Stats, error)
}

// Service provides subscription registry operations.
type Service struct {
	store   Store
	purger  DependentsPurger
	auditor Auditor
	stats   StatsSource
	logger  *slog.Logger
}

// NewService creates a new subscription registry service. auditor and
// statsSrc may be nil.
func NewService(store Store, purger DependentsPurger, auditor Auditor, statsSrc StatsSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		purger:  purger,
		auditor: auditor,
		stats:   statsSrc,
		logger:  logger,
	}
}

// Create registers a new webhook subscription. The signing secret is
// generated when absent and is never serialized back out; callers that need
// it later must rotate it.
func (svc *Service) Create(ctx context.Context, in Input) (*Subscription, error) {
	sub := &Subscription{
		Entity:         entity.New(),
		ID:             id.NewSubscriptionID(),
		TenantID:       in.TenantID,
		Name:           in.Name,
		URL:            in.URL,
		Description:    in.Description,
		Secret:         in.Secret,
		Events:         in.Events,
		Headers:        in.Headers,
		Active:         true,
		RetryPolicy:    DefaultRetryPolicy(),
		TimeoutSeconds: DefaultTimeoutSeconds,
		RateLimit:      in.RateLimit,
	}
	if in.Active != nil {
		sub.Active = *in.Active
	}
	sub.RetryPolicy = in.RetryPolicy.applyTo(sub.RetryPolicy)
	if in.TimeoutSeconds != nil {
		sub.TimeoutSeconds = *in.TimeoutSeconds
	}
	if sub.Secret == "" {
		sub.Secret = signature.GenerateSecret()
	}

	if err := validate(sub); err != nil {
		return nil, err
	}

	if err := svc.store.CreateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("subscription: create: %w", err)
	}

	svc.audit(ctx, "webhook.created", sub)
	return sub, nil
}

// Get returns a subscription by ID.
func (svc *Service) Get(ctx context.Context, subID id.ID) (*Subscription, error) {
	return svc.store.GetSubscription(ctx, subID)
}

// Update applies a partial merge and re-validates the result. The secret can
// be replaced here but is never readable.
func (svc *Service) Update(ctx context.Context, subID id.ID, in Update) (*Subscription, error) {
	sub, err := svc.store.GetSubscription(ctx, subID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		sub.Name = *in.Name
	}
	if in.URL != nil {
		sub.URL = *in.URL
	}
	if in.Description != nil {
		sub.Description = *in.Description
	}
	if in.Secret != nil && *in.Secret != "" {
		sub.Secret = *in.Secret
	}
	if len(in.Events) > 0 {
		sub.Events = in.Events
	}
	if in.Headers != nil {
		sub.Headers = in.Headers
	}
	if in.Active != nil {
		sub.Active = *in.Active
	}
	sub.RetryPolicy = in.RetryPolicy.applyTo(sub.RetryPolicy)
	if in.TimeoutSeconds != nil {
		sub.TimeoutSeconds = *in.TimeoutSeconds
	}
	if in.RateLimit != nil {
		sub.RateLimit = *in.RateLimit
	}

	if err := validate(sub); err != nil {
		return nil, err
	}

	if err := svc.store.UpdateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("subscription: update: %w", err)
	}

	svc.audit(ctx, "webhook.updated", sub)
	return sub, nil
}

// Delete removes a subscription and cascades its delivery attempts and
// queued retries first, so no dependent rows outlive it.
func (svc *Service) Delete(ctx context.Context, subID id.ID) error {
	sub, err := svc.store.GetSubscription(ctx, subID)
	if err != nil {
		return err
	}

	if err := svc.purger.DeleteAttemptsBySubscription(ctx, subID); err != nil {
		return fmt.Errorf("subscription: purge attempts: %w", err)
	}
	if err := svc.purger.DeleteRetriesBySubscription(ctx, subID); err != nil {
		return fmt.Errorf("subscription: purge retries: %w", err)
	}
	if err := svc.store.DeleteSubscription(ctx, subID); err != nil {
		return err
	}

	svc.audit(ctx, "webhook.deleted", sub)
	return nil
}

// SetActive activates or deactivates a subscription.
func (svc *Service) SetActive(ctx context.Context, subID id.ID, active bool) error {
	if err := svc.store.SetActive(ctx, subID, active); err != nil {
		return err
	}

	action := "webhook.deactivated"
	if active {
		action = "webhook.activated"
	}
	if svc.auditor != nil {
		svc.auditor.Record(ctx, action, subID.String(), nil)
	}
	return nil
}

// RotateSecret generates a new signing secret and returns it exactly once.
func (svc *Service) RotateSecret(ctx context.Context, subID id.ID) (string, error) {
	sub, err := svc.store.GetSubscription(ctx, subID)
	if err != nil {
		return "", err
	}

	sub.Secret = signature.GenerateSecret()
	if err := svc.store.UpdateSubscription(ctx, sub); err != nil {
		return "", fmt.Errorf("subscription: rotate secret: %w", err)
	}

	svc.audit(ctx, "webhook.secret_rotated", sub)
	return sub.Secret, nil
}

// Record is one subscription in a list response, joined with its rolling
// delivery statistics.
type Record struct {
	*Subscription
	Stats *stats.Stats `json:"stats,omitempty"`
}

// Summary holds registry-wide counts for a tenant.
type Summary struct {
	Total    int64 `json:"total"`
	Active   int64 `json:"active"`
	Inactive int64 `json:"inactive"`
}

// ListResult is a paginated registry listing.
type ListResult struct {
	Records []Record `json:"records"`
	Total   int      `json:"total"`
	Summary Summary  `json:"summary"`
}

// List returns subscriptions matching opts, each joined with fresh delivery
// statistics, plus tenant-wide summary counts.
func (svc *Service) List(ctx context.Context, tenantID string, opts ListOpts) (*ListResult, error) {
	subs, total, err := svc.store.ListSubscriptions(ctx, tenantID, opts)
	if err != nil {
		return nil, fmt.Errorf("subscription: list: %w", err)
	}

	records := make([]Record, len(subs))
	for i, sub := range subs {
		records[i] = Record{Subscription: sub}
		if svc.stats == nil {
			continue
		}
		st, statsErr := svc.stats.For(ctx, sub.ID)
		if statsErr != nil {
			svc.logger.ErrorContext(ctx, "stats join failed",
				"subscription_id", sub.ID, "error", statsErr)
			continue
		}
		records[i].Stats = st
	}

	allTotal, active, err := svc.store.CountSubscriptions(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("subscription: count: %w", err)
	}

	return &ListResult{
		Records: records,
		Total:   total,
		Summary: Summary{
			Total:    allTotal,
			Active:   active,
			Inactive: allTotal - active,
		},
	}, nil
}

// audit records a mutation with common metadata. Best-effort: auditing is a
// side channel and never fails the mutation.
func (svc *Service) audit(ctx context.Context, action string, sub *Subscription) {
	if svc.auditor == nil {
		return
	}
	svc.auditor.Record(ctx, action, sub.ID.String(), map[string]string{
		"name": sub.Name,
		"url":  sub.URL,
	})
}
