package stats_test

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/courier/id"
	"github.com/xraph/courier/stats"
)

type fakeSource struct {
	row   stats.Row
	since time.Time
}

func (f *fakeSource) AttemptStats(_ context.Context, _ id.ID, recentSince time.Time) (stats.Row, error) {
	f.since = recentSince
	return f.row, nil
}

func TestForEmptyHistory(t *testing.T) {
	src := &fakeSource{}
	agg := stats.NewAggregator(src)

	st, err := agg.For(context.Background(), id.NewSubscriptionID())
	if err != nil {
		t.Fatal(err)
	}

	if st.Total != 0 {
		t.Errorf("total = %d", st.Total)
	}
	if st.SuccessRate != 0 {
		t.Errorf("success rate = %f, want 0 for empty history", st.SuccessRate)
	}
	if st.Last24h != 0 {
		t.Errorf("last 24h = %d", st.Last24h)
	}
	if st.LastDeliveryAt != nil {
		t.Error("last delivery should be nil for empty history")
	}
}

func TestForComputesSuccessRate(t *testing.T) {
	last := time.Now().UTC().Add(-time.Hour)
	src := &fakeSource{row: stats.Row{
		Total:         8,
		Succeeded:     6,
		Recent:        3,
		LastAttemptAt: &last,
	}}
	agg := stats.NewAggregator(src)

	st, err := agg.For(context.Background(), id.NewSubscriptionID())
	if err != nil {
		t.Fatal(err)
	}

	if st.Total != 8 {
		t.Errorf("total = %d", st.Total)
	}
	if st.SuccessRate != 0.75 {
		t.Errorf("success rate = %f, want 0.75", st.SuccessRate)
	}
	if st.Last24h != 3 {
		t.Errorf("last 24h = %d", st.Last24h)
	}
	if st.LastDeliveryAt == nil || !st.LastDeliveryAt.Equal(last) {
		t.Errorf("last delivery = %v, want %v", st.LastDeliveryAt, last)
	}
}

func TestForUsesTrailing24hWindow(t *testing.T) {
	src := &fakeSource{}
	agg := stats.NewAggregator(src)

	before := time.Now().UTC().Add(-24 * time.Hour)
	if _, err := agg.For(context.Background(), id.NewSubscriptionID()); err != nil {
		t.Fatal(err)
	}
	after := time.Now().UTC().Add(-24 * time.Hour)

	if src.since.Before(before) || src.since.After(after) {
		t.Errorf("recentSince = %v, want ~24h before now", src.since)
	}
}
