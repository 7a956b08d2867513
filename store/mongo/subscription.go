package mongo

import (
	"context"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/v2/bson"

	courier "github.com/xraph/courier"
	"github.com/xraph/courier/catalog"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/subscription"
)

// CreateSubscription persists a new subscription.
func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)

	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("courier/mongo: create subscription: %w", err)
	}

	return nil
}

// GetSubscription returns a subscription by ID.
func (s *Store) GetSubscription(ctx context.Context, subID id.ID) (*subscription.Subscription, error) {
	var m subscriptionModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": subID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, courier.ErrSubscriptionNotFound
		}

		return nil, fmt.Errorf("courier/mongo: get subscription: %w", err)
	}

	return fromSubscriptionModel(&m)
}

// UpdateSubscription modifies an existing subscription.
func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	m.UpdatedAt = now()

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("courier/mongo: update subscription: %w", err)
	}

	if res.MatchedCount() == 0 {
		return courier.ErrSubscriptionNotFound
	}

	return nil
}

// DeleteSubscription removes a subscription.
func (s *Store) DeleteSubscription(ctx context.Context, subID id.ID) error {
	res, err := s.mdb.NewDelete((*subscriptionModel)(nil)).
		Filter(bson.M{"_id": subID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("courier/mongo: delete subscription: %w", err)
	}

	if res.DeletedCount() == 0 {
		return courier.ErrSubscriptionNotFound
	}

	return nil
}

// ListSubscriptions returns a tenant's subscriptions plus the total count
// before pagination.
func (s *Store) ListSubscriptions(ctx context.Context, tenantID string, opts subscription.ListOpts) ([]*subscription.Subscription, int, error) {
	filter := bson.M{"tenant_id": tenantID}
	if opts.Active != nil {
		filter["is_active"] = *opts.Active
	}
	if opts.Event != "" {
		filter["events"] = string(opts.Event)
	}
	if opts.Search != "" {
		pattern := regexp.QuoteMeta(opts.Search)
		filter["$or"] = bson.A{
			bson.M{"name": bson.M{"$regex": pattern, "$options": "i"}},
			bson.M{"url": bson.M{"$regex": pattern, "$options": "i"}},
			bson.M{"description": bson.M{"$regex": pattern, "$options": "i"}},
		}
	}

	total, err := s.mdb.NewFind((*subscriptionModel)(nil)).
		Filter(filter).
		Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("courier/mongo: count subscriptions: %w", err)
	}

	var models []subscriptionModel

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, 0, fmt.Errorf("courier/mongo: list subscriptions: %w", err)
	}

	result := make([]*subscription.Subscription, 0, len(models))

	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, 0, err
		}

		result = append(result, sub)
	}

	return result, int(total), nil
}

// CountSubscriptions returns total and active counts for a tenant.
func (s *Store) CountSubscriptions(ctx context.Context, tenantID string) (total, active int64, err error) {
	total, err = s.mdb.NewFind((*subscriptionModel)(nil)).
		Filter(bson.M{"tenant_id": tenantID}).
		Count(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("courier/mongo: count subscriptions: %w", err)
	}

	active, err = s.mdb.NewFind((*subscriptionModel)(nil)).
		Filter(bson.M{"tenant_id": tenantID, "is_active": true}).
		Count(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("courier/mongo: count active subscriptions: %w", err)
	}

	return total, active, nil
}

// Resolve finds all active subscriptions subscribed to an event for a tenant.
func (s *Store) Resolve(ctx context.Context, tenantID string, event catalog.Name) ([]*subscription.Subscription, error) {
	var models []subscriptionModel

	if err := s.mdb.NewFind(&models).
		Filter(bson.M{
			"tenant_id": tenantID,
			"is_active": true,
			"events":    string(event),
		}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("courier/mongo: resolve: %w", err)
	}

	result := make([]*subscription.Subscription, 0, len(models))

	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, sub)
	}

	return result, nil
}

// SetActive activates or deactivates a subscription.
func (s *Store) SetActive(ctx context.Context, subID id.ID, active bool) error {
	res, err := s.mdb.NewUpdate((*subscriptionModel)(nil)).
		Filter(bson.M{"_id": subID.String()}).
		Set("is_active", active).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("courier/mongo: set active: %w", err)
	}

	if res.MatchedCount() == 0 {
		return courier.ErrSubscriptionNotFound
	}

	return nil
}
