// Package stats computes rolling delivery statistics per subscription.
package stats

import (
	"context"
	"time"

	"github.com/xraph/courier/id"
)

// window is the trailing period counted by Last24h.
const window = 24 * time.Hour

// Row is the raw aggregate a store computes over one subscription's
// attempts; the Aggregator turns it into user-facing statistics.
type Row struct {
	Total         int64
	Succeeded     int64
	Recent        int64
	LastAttemptAt *time.Time
}

// Stats summarizes a subscription's delivery history.
type Stats struct {
	// Total is the number of delivery attempts ever recorded.
	Total int64 `json:"total_deliveries"`

	// SuccessRate is successes/total in [0,1]. Zero when no attempts exist.
	SuccessRate float64 `json:"success_rate"`

	// Last24h counts attempts within the trailing 24 hours of evaluation.
	Last24h int64 `json:"deliveries_24h"`

	// LastDeliveryAt is the newest attempt timestamp, nil when none exist.
	LastDeliveryAt *time.Time `json:"last_delivery_at"`
}

// Source supplies raw attempt aggregates. Implemented by the delivery store.
type Source interface {
	AttemptStats(ctx context.Context, subID id.ID, recentSince time.Time) (Row, error)
}

// Aggregator computes statistics fresh on every call; nothing is cached.
type Aggregator struct {
	source Source

	now func() time.Time
}

// NewAggregator creates a statistics aggregator over the given source.
func NewAggregator(source Source) *Aggregator {
	return &Aggregator{
		source: source,
		now:    time.Now,
	}
}

// For computes statistics for one subscription.
func (a *Aggregator) For(ctx context.Context, subID id.ID) (*Stats, error) {
	since := a.now().UTC().Add(-window)

	row, err := a.source.AttemptStats(ctx, subID, since)
	if err != nil {
		return nil, err
	}

	s := &Stats{
		Total:          row.Total,
		Last24h:        row.Recent,
		LastDeliveryAt: row.LastAttemptAt,
	}
	if row.Total > 0 {
		s.SuccessRate = float64(row.Succeeded) / float64(row.Total)
	}
	return s, nil
}
