package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"

	courier "github.com/xraph/courier"
	"github.com/xraph/courier/delivery"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/stats"
)

// CreateAttempt persists a new delivery attempt record.
func (s *Store) CreateAttempt(ctx context.Context, att *delivery.Attempt) error {
	m := toAttemptModel(att)

	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("courier/mongo: create attempt: %w", err)
	}

	return nil
}

// GetAttempt returns an attempt by ID.
func (s *Store) GetAttempt(ctx context.Context, attID id.ID) (*delivery.Attempt, error) {
	var m attemptModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": attID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, courier.ErrAttemptNotFound
		}

		return nil, fmt.Errorf("courier/mongo: get attempt: %w", err)
	}

	return fromAttemptModel(&m)
}

// ListAttempts returns a subscription's attempts, newest first.
func (s *Store) ListAttempts(ctx context.Context, subID id.ID, opts delivery.ListOpts) ([]*delivery.Attempt, error) {
	var models []attemptModel

	filter := bson.M{"subscription_id": subID.String()}
	if opts.Outcome != nil {
		filter["outcome"] = string(*opts.Outcome)
	}
	if opts.Event != "" {
		filter["event"] = opts.Event.String()
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("courier/mongo: list attempts: %w", err)
	}

	result := make([]*delivery.Attempt, 0, len(models))

	for i := range models {
		att, err := fromAttemptModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, att)
	}

	return result, nil
}

// DeleteAttemptsBySubscription removes all attempts for a subscription.
func (s *Store) DeleteAttemptsBySubscription(ctx context.Context, subID id.ID) error {
	_, err := s.mdb.NewDelete((*attemptModel)(nil)).
		Filter(bson.M{"subscription_id": subID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("courier/mongo: delete attempts: %w", err)
	}

	return nil
}

// attemptStatsRow receives the aggregation pipeline output.
type attemptStatsRow struct {
	Total         int64      `bson:"total"`
	Succeeded     int64      `bson:"succeeded"`
	Recent        int64      `bson:"recent"`
	LastAttemptAt *time.Time `bson:"last_attempt_at"`
}

// AttemptStats aggregates a subscription's attempt history in a single
// pipeline pass.
func (s *Store) AttemptStats(ctx context.Context, subID id.ID, recentSince time.Time) (stats.Row, error) {
	col := s.mdb.Collection(colAttempts)

	pipeline := mongod.Pipeline{
		{{Key: "$match", Value: bson.M{"subscription_id": subID.String()}}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": 1},
			"succeeded": bson.M{"$sum": bson.M{
				"$cond": bson.A{bson.M{"$eq": bson.A{"$outcome", string(delivery.OutcomeSuccess)}}, 1, 0},
			}},
			"recent": bson.M{"$sum": bson.M{
				"$cond": bson.A{bson.M{"$gte": bson.A{"$created_at", recentSince}}, 1, 0},
			}},
			"last_attempt_at": bson.M{"$max": "$created_at"},
		}}},
	}

	cursor, err := col.Aggregate(ctx, pipeline)
	if err != nil {
		return stats.Row{}, fmt.Errorf("courier/mongo: attempt stats: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []attemptStatsRow
	if err := cursor.All(ctx, &rows); err != nil {
		return stats.Row{}, fmt.Errorf("courier/mongo: attempt stats decode: %w", err)
	}

	if len(rows) == 0 {
		return stats.Row{}, nil
	}

	return stats.Row{
		Total:         rows[0].Total,
		Succeeded:     rows[0].Succeeded,
		Recent:        rows[0].Recent,
		LastAttemptAt: rows[0].LastAttemptAt,
	}, nil
}
