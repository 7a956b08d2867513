package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	courier "github.com/xraph/courier"
	"github.com/xraph/courier/catalog"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/internal/entity"
	"github.com/xraph/courier/subscription"
)

// subscriptionModel is the JSON representation stored in Redis.
type subscriptionModel struct {
	ID                string            `json:"id"`
	TenantID          string            `json:"tenant_id"`
	Name              string            `json:"name"`
	URL               string            `json:"url"`
	Description       string            `json:"description"`
	Secret            string            `json:"secret"`
	Events            []string          `json:"events"`
	Headers           map[string]string `json:"headers,omitempty"`
	IsActive          bool              `json:"is_active"`
	MaxRetries        int               `json:"max_retries"`
	RetryDelay        int               `json:"retry_delay"`
	BackoffMultiplier float64           `json:"backoff_multiplier"`
	TimeoutSeconds    int               `json:"timeout_seconds"`
	RateLimit         int               `json:"rate_limit"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func toSubscriptionModel(sub *subscription.Subscription) *subscriptionModel {
	events := make([]string, len(sub.Events))
	for i, e := range sub.Events {
		events[i] = string(e)
	}
	return &subscriptionModel{
		ID:                sub.ID.String(),
		TenantID:          sub.TenantID,
		Name:              sub.Name,
		URL:               sub.URL,
		Description:       sub.Description,
		Secret:            sub.Secret,
		Events:            events,
		Headers:           sub.Headers,
		IsActive:          sub.Active,
		MaxRetries:        sub.RetryPolicy.MaxRetries,
		RetryDelay:        sub.RetryPolicy.BaseDelaySeconds,
		BackoffMultiplier: sub.RetryPolicy.BackoffMultiplier,
		TimeoutSeconds:    sub.TimeoutSeconds,
		RateLimit:         sub.RateLimit,
		CreatedAt:         sub.CreatedAt,
		UpdatedAt:         sub.UpdatedAt,
	}
}

func fromSubscriptionModel(m *subscriptionModel) (*subscription.Subscription, error) {
	subID, err := id.ParseSubscriptionID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse subscription ID %q: %w", m.ID, err)
	}
	events := make([]catalog.Name, len(m.Events))
	for i, e := range m.Events {
		events[i] = catalog.Name(e)
	}
	return &subscription.Subscription{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          subID,
		TenantID:    m.TenantID,
		Name:        m.Name,
		URL:         m.URL,
		Description: m.Description,
		Secret:      m.Secret,
		Events:      events,
		Headers:     m.Headers,
		Active:      m.IsActive,
		RetryPolicy: subscription.RetryPolicy{
			MaxRetries:        m.MaxRetries,
			BaseDelaySeconds:  m.RetryDelay,
			BackoffMultiplier: m.BackoffMultiplier,
		},
		TimeoutSeconds: m.TimeoutSeconds,
		RateLimit:      m.RateLimit,
	}, nil
}

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	key := entityKey(prefixSubscription, m.ID)

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("courier/redis: create subscription: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, zSubscriptionTenant+m.TenantID, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
	if m.IsActive {
		pipe.SAdd(ctx, activeSetKey(m.TenantID), m.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("courier/redis: create subscription indexes: %w", err)
	}
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, subID id.ID) (*subscription.Subscription, error) {
	var m subscriptionModel
	if err := s.getEntity(ctx, entityKey(prefixSubscription, subID.String()), &m); err != nil {
		if isNotFound(err) {
			return nil, courier.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("courier/redis: get subscription: %w", err)
	}
	return fromSubscriptionModel(&m)
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	key := entityKey(prefixSubscription, sub.ID.String())

	// Verify existence.
	var existing subscriptionModel
	if err := s.getEntity(ctx, key, &existing); err != nil {
		if isNotFound(err) {
			return courier.ErrSubscriptionNotFound
		}
		return fmt.Errorf("courier/redis: update subscription get: %w", err)
	}

	m := toSubscriptionModel(sub)
	m.UpdatedAt = now()

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("courier/redis: update subscription: %w", err)
	}

	// Update active set.
	if m.IsActive {
		s.rdb.SAdd(ctx, activeSetKey(m.TenantID), m.ID)
	} else {
		s.rdb.SRem(ctx, activeSetKey(m.TenantID), m.ID)
	}
	return nil
}

func (s *Store) DeleteSubscription(ctx context.Context, subID id.ID) error {
	key := entityKey(prefixSubscription, subID.String())

	var m subscriptionModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isNotFound(err) {
			return courier.ErrSubscriptionNotFound
		}
		return fmt.Errorf("courier/redis: delete subscription get: %w", err)
	}

	if err := s.kv.Delete(ctx, key); err != nil {
		return fmt.Errorf("courier/redis: delete subscription: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.ZRem(ctx, zSubscriptionTenant+m.TenantID, m.ID)
	pipe.SRem(ctx, activeSetKey(m.TenantID), m.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("courier/redis: delete subscription indexes: %w", err)
	}
	return nil
}

func (s *Store) ListSubscriptions(ctx context.Context, tenantID string, opts subscription.ListOpts) ([]*subscription.Subscription, int, error) {
	ids, err := s.rdb.ZRange(ctx, zSubscriptionTenant+tenantID, 0, -1).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("courier/redis: list subscriptions: %w", err)
	}

	filtered := make([]*subscription.Subscription, 0, len(ids))
	for _, entryID := range ids {
		var m subscriptionModel
		if err := s.getEntity(ctx, entityKey(prefixSubscription, entryID), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, 0, err
		}
		if opts.Active != nil && m.IsActive != *opts.Active {
			continue
		}
		sub, err := fromSubscriptionModel(&m)
		if err != nil {
			return nil, 0, err
		}
		if opts.Event != "" && !sub.Subscribed(opts.Event) {
			continue
		}
		if opts.Search != "" && !matchSearch(sub, opts.Search) {
			continue
		}
		filtered = append(filtered, sub)
	}

	total := len(filtered)
	return applyPagination(filtered, opts.Offset, opts.Limit), total, nil
}

func (s *Store) CountSubscriptions(ctx context.Context, tenantID string) (total, active int64, err error) {
	total, err = s.rdb.ZCard(ctx, zSubscriptionTenant+tenantID).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("courier/redis: count subscriptions: %w", err)
	}
	active, err = s.rdb.SCard(ctx, activeSetKey(tenantID)).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("courier/redis: count active subscriptions: %w", err)
	}
	return total, active, nil
}

func (s *Store) Resolve(ctx context.Context, tenantID string, event catalog.Name) ([]*subscription.Subscription, error) {
	ids, err := s.rdb.SMembers(ctx, activeSetKey(tenantID)).Result()
	if err != nil {
		return nil, fmt.Errorf("courier/redis: resolve: %w", err)
	}

	var result []*subscription.Subscription
	for _, entryID := range ids {
		var m subscriptionModel
		if err := s.getEntity(ctx, entityKey(prefixSubscription, entryID), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		sub, err := fromSubscriptionModel(&m)
		if err != nil {
			return nil, err
		}
		if sub.Subscribed(event) {
			result = append(result, sub)
		}
	}
	return result, nil
}

func (s *Store) SetActive(ctx context.Context, subID id.ID, active bool) error {
	key := entityKey(prefixSubscription, subID.String())

	var m subscriptionModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isNotFound(err) {
			return courier.ErrSubscriptionNotFound
		}
		return fmt.Errorf("courier/redis: set active get: %w", err)
	}

	m.IsActive = active
	m.UpdatedAt = now()

	if err := s.setEntity(ctx, key, &m); err != nil {
		return fmt.Errorf("courier/redis: set active: %w", err)
	}

	if active {
		s.rdb.SAdd(ctx, activeSetKey(m.TenantID), m.ID)
	} else {
		s.rdb.SRem(ctx, activeSetKey(m.TenantID), m.ID)
	}
	return nil
}

// matchSearch reports whether the search term appears in the subscription's
// name, URL, or description, case-insensitively.
func matchSearch(sub *subscription.Subscription, term string) bool {
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(sub.Name), term) ||
		strings.Contains(strings.ToLower(sub.URL), term) ||
		strings.Contains(strings.ToLower(sub.Description), term)
}
