package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/courier/id"
	"github.com/xraph/courier/retry"
)

// EnqueueRetry persists a new retry entry.
func (s *Store) EnqueueRetry(ctx context.Context, entry *retry.Entry) error {
	m := toRetryModel(entry)

	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("courier/mongo: enqueue retry: %w", err)
	}

	return nil
}

// ClaimDueRetries atomically removes and returns up to limit due entries.
// Uses FindOneAndDelete so concurrent workers never claim the same entry.
func (s *Store) ClaimDueRetries(ctx context.Context, nowAt time.Time, limit int) ([]*retry.Entry, error) {
	result := make([]*retry.Entry, 0, limit)
	col := s.mdb.Collection(colRetries)

	for range limit {
		filter := bson.M{
			"scheduled_at": bson.M{"$lte": nowAt},
		}

		opts := options.FindOneAndDelete().
			SetSort(bson.D{{Key: "scheduled_at", Value: 1}})

		var m retryModel

		err := col.FindOneAndDelete(ctx, filter, opts).Decode(&m)
		if err != nil {
			if isNoDocuments(err) {
				break
			}

			return nil, fmt.Errorf("courier/mongo: claim retry: %w", err)
		}

		entry, err := fromRetryModel(&m)
		if err != nil {
			return nil, err
		}

		result = append(result, entry)
	}

	return result, nil
}

// ListRetries returns a subscription's pending entries, soonest first.
func (s *Store) ListRetries(ctx context.Context, subID id.ID) ([]*retry.Entry, error) {
	var models []retryModel

	if err := s.mdb.NewFind(&models).
		Filter(bson.M{"subscription_id": subID.String()}).
		Sort(bson.D{{Key: "scheduled_at", Value: 1}}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("courier/mongo: list retries: %w", err)
	}

	result := make([]*retry.Entry, 0, len(models))

	for i := range models {
		entry, err := fromRetryModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, entry)
	}

	return result, nil
}

// CountRetries returns the total number of pending entries.
func (s *Store) CountRetries(ctx context.Context) (int64, error) {
	count, err := s.mdb.NewFind((*retryModel)(nil)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("courier/mongo: count retries: %w", err)
	}

	return count, nil
}

// DeleteRetriesBySubscription removes all pending entries for a subscription.
func (s *Store) DeleteRetriesBySubscription(ctx context.Context, subID id.ID) error {
	_, err := s.mdb.NewDelete((*retryModel)(nil)).
		Filter(bson.M{"subscription_id": subID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("courier/mongo: delete retries: %w", err)
	}

	return nil
}
