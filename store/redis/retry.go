package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/courier/catalog"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/internal/entity"
	"github.com/xraph/courier/retry"
)

// retryModel is the JSON representation stored in Redis.
type retryModel struct {
	ID             string          `json:"id"`
	SubscriptionID string          `json:"subscription_id"`
	AttemptID      string          `json:"attempt_id"`
	Event          string          `json:"event"`
	Body           json.RawMessage `json:"body,omitempty"`
	SentAt         time.Time       `json:"sent_at"`
	AttemptNumber  int             `json:"attempt_number"`
	ScheduledAt    time.Time       `json:"scheduled_at"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func toRetryModel(e *retry.Entry) *retryModel {
	return &retryModel{
		ID:             e.ID.String(),
		SubscriptionID: e.SubscriptionID.String(),
		AttemptID:      e.AttemptID.String(),
		Event:          e.Event.String(),
		Body:           e.Body,
		SentAt:         e.SentAt,
		AttemptNumber:  e.AttemptNumber,
		ScheduledAt:    e.ScheduledAt,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func fromRetryModel(m *retryModel) (*retry.Entry, error) {
	retryID, err := id.ParseRetryID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse retry ID %q: %w", m.ID, err)
	}
	subID, err := id.ParseSubscriptionID(m.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("parse subscription ID %q: %w", m.SubscriptionID, err)
	}
	attID, err := id.ParseAttemptID(m.AttemptID)
	if err != nil {
		return nil, fmt.Errorf("parse attempt ID %q: %w", m.AttemptID, err)
	}
	return &retry.Entry{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             retryID,
		SubscriptionID: subID,
		AttemptID:      attID,
		Event:          catalog.Name(m.Event),
		Body:           m.Body,
		SentAt:         m.SentAt,
		AttemptNumber:  m.AttemptNumber,
		ScheduledAt:    m.ScheduledAt,
	}, nil
}

// claimScript atomically removes due retry IDs from the sorted set.
// KEYS[1] = courier:z:rty:due
// ARGV[1] = current unix timestamp (score threshold)
// ARGV[2] = limit
var claimScript = goredis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
if #ids == 0 then return {} end
for i, id in ipairs(ids) do
    redis.call('ZREM', KEYS[1], id)
end
return ids
`)

func (s *Store) EnqueueRetry(ctx context.Context, entry *retry.Entry) error {
	m := toRetryModel(entry)
	key := entityKey(prefixRetry, m.ID)

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("courier/redis: enqueue retry: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, zRetryDue, goredis.Z{Score: scoreFromTime(m.ScheduledAt), Member: m.ID})
	pipe.ZAdd(ctx, zRetrySub+m.SubscriptionID, goredis.Z{Score: scoreFromTime(m.ScheduledAt), Member: m.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("courier/redis: enqueue retry indexes: %w", err)
	}
	return nil
}

func (s *Store) ClaimDueRetries(ctx context.Context, nowAt time.Time, limit int) ([]*retry.Entry, error) {
	// Atomically claim due entry IDs using a Lua script: competing workers
	// never pull the same entry from the queue.
	nowScore := fmt.Sprintf("%f", scoreFromTime(nowAt))
	ids, err := claimScript.Run(ctx, s.rdb, []string{zRetryDue}, nowScore, limit).StringSlice()
	if err != nil {
		if isRedisNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("courier/redis: claim script: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	// Fetch each claimed entry, then drop its blob and per-subscription
	// index: a claimed entry is gone from the queue for good.
	result := make([]*retry.Entry, 0, len(ids))
	for _, entryID := range ids {
		key := entityKey(prefixRetry, entryID)
		var m retryModel
		if err := s.getEntity(ctx, key, &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, fmt.Errorf("courier/redis: claim get: %w", err)
		}

		pipe := s.rdb.Pipeline()
		pipe.Del(ctx, key)
		pipe.ZRem(ctx, zRetrySub+m.SubscriptionID, m.ID)
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("courier/redis: claim delete: %w", err)
		}

		entry, err := fromRetryModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, nil
}

func (s *Store) ListRetries(ctx context.Context, subID id.ID) ([]*retry.Entry, error) {
	ids, err := s.rdb.ZRange(ctx, zRetrySub+subID.String(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("courier/redis: list retries: %w", err)
	}

	result := make([]*retry.Entry, 0, len(ids))
	for _, entryID := range ids {
		var m retryModel
		if err := s.getEntity(ctx, entityKey(prefixRetry, entryID), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		entry, err := fromRetryModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, nil
}

func (s *Store) CountRetries(ctx context.Context) (int64, error) {
	count, err := s.rdb.ZCard(ctx, zRetryDue).Result()
	if err != nil {
		return 0, fmt.Errorf("courier/redis: count retries: %w", err)
	}
	return count, nil
}

func (s *Store) DeleteRetriesBySubscription(ctx context.Context, subID id.ID) error {
	indexKey := zRetrySub + subID.String()
	ids, err := s.rdb.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("courier/redis: delete retries list: %w", err)
	}

	pipe := s.rdb.Pipeline()
	for _, entryID := range ids {
		pipe.Del(ctx, entityKey(prefixRetry, entryID))
		pipe.ZRem(ctx, zRetryDue, entryID)
	}
	pipe.Del(ctx, indexKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("courier/redis: delete retries: %w", err)
	}
	return nil
}
