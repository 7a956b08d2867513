// Package memory provides an in-memory Store implementation for unit testing.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xraph/courier"
	"github.com/xraph/courier/audit"
	"github.com/xraph/courier/catalog"
	"github.com/xraph/courier/delivery"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/retry"
	"github.com/xraph/courier/stats"
	courierstore "github.com/xraph/courier/store"
	"github.com/xraph/courier/subscription"
)

// compile-time interface check.
var _ courierstore.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store for testing.
type Store struct {
	mu sync.RWMutex

	subscriptions map[string]*subscription.Subscription // keyed by ID string
	attempts      map[string]*delivery.Attempt          // keyed by ID string
	retries       map[string]*retry.Entry               // keyed by ID string
	auditEntries  []*audit.Entry                        // append-only

	closed bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		subscriptions: make(map[string]*subscription.Subscription),
		attempts:      make(map[string]*delivery.Attempt),
		retries:       make(map[string]*retry.Entry),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the in-memory store.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return courier.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// subscription.Store
// ──────────────────────────────────────────────────

// CreateSubscription persists a new subscription.
func (s *Store) CreateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscriptions[sub.ID.String()] = sub
	return nil
}

// GetSubscription returns a subscription by ID.
func (s *Store) GetSubscription(_ context.Context, subID id.ID) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subscriptions[subID.String()]
	if !ok {
		return nil, courier.ErrSubscriptionNotFound
	}
	return sub, nil
}

// UpdateSubscription modifies an existing subscription.
func (s *Store) UpdateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscriptions[sub.ID.String()]; !ok {
		return courier.ErrSubscriptionNotFound
	}
	sub.UpdatedAt = time.Now().UTC()
	s.subscriptions[sub.ID.String()] = sub
	return nil
}

// DeleteSubscription removes a subscription row.
func (s *Store) DeleteSubscription(_ context.Context, subID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscriptions[subID.String()]; !ok {
		return courier.ErrSubscriptionNotFound
	}
	delete(s.subscriptions, subID.String())
	return nil
}

// ListSubscriptions returns subscriptions matching opts plus the total count
// before pagination.
func (s *Store) ListSubscriptions(_ context.Context, tenantID string, opts subscription.ListOpts) ([]*subscription.Subscription, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*subscription.Subscription, 0, len(s.subscriptions))
	for _, sub := range s.subscriptions {
		if sub.TenantID != tenantID {
			continue
		}
		if opts.Active != nil && sub.Active != *opts.Active {
			continue
		}
		if opts.Event != "" && !sub.Subscribed(opts.Event) {
			continue
		}
		if opts.Search != "" && !matchSearch(sub, opts.Search) {
			continue
		}
		result = append(result, sub)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	total := len(result)
	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, total, nil
}

// CountSubscriptions returns total and active counts for a tenant.
func (s *Store) CountSubscriptions(_ context.Context, tenantID string) (total, active int64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subscriptions {
		if sub.TenantID != tenantID {
			continue
		}
		total++
		if sub.Active {
			active++
		}
	}
	return total, active, nil
}

// Resolve finds all active subscriptions subscribed to an event for a tenant.
func (s *Store) Resolve(_ context.Context, tenantID string, event catalog.Name) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*subscription.Subscription
	for _, sub := range s.subscriptions {
		if sub.TenantID != tenantID || !sub.Active {
			continue
		}
		if sub.Subscribed(event) {
			result = append(result, sub)
		}
	}
	return result, nil
}

// SetActive activates or deactivates a subscription.
func (s *Store) SetActive(_ context.Context, subID id.ID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[subID.String()]
	if !ok {
		return courier.ErrSubscriptionNotFound
	}
	sub.Active = active
	sub.UpdatedAt = time.Now().UTC()
	return nil
}

// ──────────────────────────────────────────────────
// delivery.Store
// ──────────────────────────────────────────────────

// CreateAttempt persists a delivery attempt record.
func (s *Store) CreateAttempt(_ context.Context, att *delivery.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts[att.ID.String()] = att
	return nil
}

// GetAttempt returns an attempt by ID.
func (s *Store) GetAttempt(_ context.Context, attID id.ID) (*delivery.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	att, ok := s.attempts[attID.String()]
	if !ok {
		return nil, courier.ErrAttemptNotFound
	}
	return att, nil
}

// ListAttempts returns a subscription's attempts, newest first.
func (s *Store) ListAttempts(_ context.Context, subID id.ID, opts delivery.ListOpts) ([]*delivery.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*delivery.Attempt, 0, len(s.attempts))
	for _, att := range s.attempts {
		if att.SubscriptionID.String() != subID.String() {
			continue
		}
		if opts.Outcome != nil && att.Outcome != *opts.Outcome {
			continue
		}
		if opts.Event != "" && att.Event != opts.Event {
			continue
		}
		result = append(result, att)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// DeleteAttemptsBySubscription removes all attempts for a subscription.
func (s *Store) DeleteAttemptsBySubscription(_ context.Context, subID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, att := range s.attempts {
		if att.SubscriptionID.String() == subID.String() {
			delete(s.attempts, k)
		}
	}
	return nil
}

// AttemptStats aggregates a subscription's attempts.
func (s *Store) AttemptStats(_ context.Context, subID id.ID, recentSince time.Time) (stats.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var row stats.Row
	for _, att := range s.attempts {
		if att.SubscriptionID.String() != subID.String() {
			continue
		}
		row.Total++
		if att.Succeeded() {
			row.Succeeded++
		}
		if !att.CreatedAt.Before(recentSince) {
			row.Recent++
		}
		if row.LastAttemptAt == nil || att.CreatedAt.After(*row.LastAttemptAt) {
			t := att.CreatedAt
			row.LastAttemptAt = &t
		}
	}
	return row, nil
}

// ──────────────────────────────────────────────────
// retry.Store
// ──────────────────────────────────────────────────

// EnqueueRetry persists a retry entry.
func (s *Store) EnqueueRetry(_ context.Context, entry *retry.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.retries[entry.ID.String()] = entry
	return nil
}

// ClaimDueRetries removes and returns up to limit due entries, soonest first.
func (s *Store) ClaimDueRetries(_ context.Context, now time.Time, limit int) ([]*retry.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := make([]*retry.Entry, 0, len(s.retries))
	for _, entry := range s.retries {
		if entry.Due(now) {
			due = append(due, entry)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledAt.Before(due[j].ScheduledAt)
	})

	if limit > 0 && limit < len(due) {
		due = due[:limit]
	}

	for _, entry := range due {
		delete(s.retries, entry.ID.String())
	}
	return due, nil
}

// ListRetries returns a subscription's pending entries, soonest first.
func (s *Store) ListRetries(_ context.Context, subID id.ID) ([]*retry.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*retry.Entry
	for _, entry := range s.retries {
		if entry.SubscriptionID.String() == subID.String() {
			result = append(result, entry)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ScheduledAt.Before(result[j].ScheduledAt)
	})
	return result, nil
}

// CountRetries returns the total number of pending entries.
func (s *Store) CountRetries(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.retries)), nil
}

// DeleteRetriesBySubscription removes all pending entries for a subscription.
func (s *Store) DeleteRetriesBySubscription(_ context.Context, subID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, entry := range s.retries {
		if entry.SubscriptionID.String() == subID.String() {
			delete(s.retries, k)
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// audit.Store
// ──────────────────────────────────────────────────

// AppendAudit persists one activity entry.
func (s *Store) AppendAudit(_ context.Context, entry *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.auditEntries = append(s.auditEntries, entry)
	return nil
}

// ListAudit returns activity entries, newest first.
func (s *Store) ListAudit(_ context.Context, tenantID string, opts audit.ListOpts) ([]*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*audit.Entry, 0, len(s.auditEntries))
	for _, entry := range s.auditEntries {
		if tenantID != "" && entry.TenantID != tenantID {
			continue
		}
		if opts.EntityID != "" && entry.EntityID != opts.EntityID {
			continue
		}
		if opts.Action != "" && entry.Action != opts.Action {
			continue
		}
		result = append(result, entry)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OccurredAt.After(result[j].OccurredAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func matchSearch(sub *subscription.Subscription, search string) bool {
	needle := strings.ToLower(search)
	return strings.Contains(strings.ToLower(sub.Name), needle) ||
		strings.Contains(strings.ToLower(sub.URL), needle) ||
		strings.Contains(strings.ToLower(sub.Description), needle)
}

func applyPagination[T any](items []*T, offset, limit int) []*T {
	if offset > 0 && offset < len(items) {
		items = items[offset:]
	} else if offset >= len(items) && offset > 0 {
		return nil
	}

	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	return items
}
