package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	courier "github.com/xraph/courier"
	"github.com/xraph/courier/catalog"
	"github.com/xraph/courier/delivery"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/internal/entity"
	"github.com/xraph/courier/stats"
)

// attemptModel is the JSON representation stored in Redis.
type attemptModel struct {
	ID             string          `json:"id"`
	SubscriptionID string          `json:"subscription_id"`
	Event          string          `json:"event"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	URL            string          `json:"url"`
	Outcome        string          `json:"outcome"`
	StatusCode     int             `json:"status_code"`
	Response       string          `json:"response"`
	LatencyMs      int             `json:"latency_ms"`
	AttemptNumber  int             `json:"attempt_number"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func toAttemptModel(att *delivery.Attempt) *attemptModel {
	return &attemptModel{
		ID:             att.ID.String(),
		SubscriptionID: att.SubscriptionID.String(),
		Event:          att.Event.String(),
		Payload:        att.Payload,
		URL:            att.URL,
		Outcome:        string(att.Outcome),
		StatusCode:     att.StatusCode,
		Response:       att.Response,
		LatencyMs:      att.LatencyMs,
		AttemptNumber:  att.AttemptNumber,
		CreatedAt:      att.CreatedAt,
		UpdatedAt:      att.UpdatedAt,
	}
}

func fromAttemptModel(m *attemptModel) (*delivery.Attempt, error) {
	attID, err := id.ParseAttemptID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse attempt ID %q: %w", m.ID, err)
	}
	subID, err := id.ParseSubscriptionID(m.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("parse subscription ID %q: %w", m.SubscriptionID, err)
	}
	return &delivery.Attempt{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             attID,
		SubscriptionID: subID,
		Event:          catalog.Name(m.Event),
		Payload:        m.Payload,
		URL:            m.URL,
		Outcome:        delivery.Outcome(m.Outcome),
		StatusCode:     m.StatusCode,
		Response:       m.Response,
		LatencyMs:      m.LatencyMs,
		AttemptNumber:  m.AttemptNumber,
	}, nil
}

func (s *Store) CreateAttempt(ctx context.Context, att *delivery.Attempt) error {
	m := toAttemptModel(att)
	key := entityKey(prefixAttempt, m.ID)

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("courier/redis: create attempt: %w", err)
	}

	err := s.rdb.ZAdd(ctx, zAttemptSub+m.SubscriptionID,
		goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID}).Err()
	if err != nil {
		return fmt.Errorf("courier/redis: create attempt index: %w", err)
	}
	return nil
}

func (s *Store) GetAttempt(ctx context.Context, attID id.ID) (*delivery.Attempt, error) {
	var m attemptModel
	if err := s.getEntity(ctx, entityKey(prefixAttempt, attID.String()), &m); err != nil {
		if isNotFound(err) {
			return nil, courier.ErrAttemptNotFound
		}
		return nil, fmt.Errorf("courier/redis: get attempt: %w", err)
	}
	return fromAttemptModel(&m)
}

func (s *Store) ListAttempts(ctx context.Context, subID id.ID, opts delivery.ListOpts) ([]*delivery.Attempt, error) {
	ids, err := s.rdb.ZRange(ctx, zAttemptSub+subID.String(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("courier/redis: list attempts: %w", err)
	}

	result := make([]*delivery.Attempt, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- { // reverse for DESC order
		var m attemptModel
		if err := s.getEntity(ctx, entityKey(prefixAttempt, ids[i]), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if opts.Outcome != nil && delivery.Outcome(m.Outcome) != *opts.Outcome {
			continue
		}
		if opts.Event != "" && catalog.Name(m.Event) != opts.Event {
			continue
		}
		att, err := fromAttemptModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, att)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func (s *Store) DeleteAttemptsBySubscription(ctx context.Context, subID id.ID) error {
	indexKey := zAttemptSub + subID.String()
	ids, err := s.rdb.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("courier/redis: delete attempts list: %w", err)
	}

	pipe := s.rdb.Pipeline()
	for _, entryID := range ids {
		pipe.Del(ctx, entityKey(prefixAttempt, entryID))
	}
	pipe.Del(ctx, indexKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("courier/redis: delete attempts: %w", err)
	}
	return nil
}

func (s *Store) AttemptStats(ctx context.Context, subID id.ID, recentSince time.Time) (stats.Row, error) {
	ids, err := s.rdb.ZRange(ctx, zAttemptSub+subID.String(), 0, -1).Result()
	if err != nil {
		return stats.Row{}, fmt.Errorf("courier/redis: attempt stats: %w", err)
	}

	var row stats.Row
	for _, entryID := range ids {
		var m attemptModel
		if err := s.getEntity(ctx, entityKey(prefixAttempt, entryID), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return stats.Row{}, err
		}
		row.Total++
		if delivery.Outcome(m.Outcome) == delivery.OutcomeSuccess {
			row.Succeeded++
		}
		if !m.CreatedAt.Before(recentSince) {
			row.Recent++
		}
		if row.LastAttemptAt == nil || m.CreatedAt.After(*row.LastAttemptAt) {
			t := m.CreatedAt
			row.LastAttemptAt = &t
		}
	}
	return row, nil
}
