package retry

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/xraph/courier/delivery"
	"github.com/xraph/courier/envelope"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/internal/entity"
	"github.com/xraph/courier/observability"
	"github.com/xraph/courier/subscription"
)

// Scheduler decides when a failed delivery should be retried and enqueues
// the entry. It never executes the retry itself.
type Scheduler struct {
	store   Store
	metrics *observability.Metrics
	logger  *slog.Logger

	now func() time.Time
}

// NewScheduler creates a retry scheduler. metrics may be nil.
func NewScheduler(store Store, metrics *observability.Metrics, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:   store,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Delay returns the backoff delay after the given failed attempt number:
// base_delay * multiplier^(attempt-1). Attempt 1 waits the base delay.
func Delay(policy subscription.RetryPolicy, failedAttempt int) time.Duration {
	if failedAttempt < 1 {
		failedAttempt = 1
	}
	seconds := float64(policy.BaseDelaySeconds) * math.Pow(policy.BackoffMultiplier, float64(failedAttempt-1))
	return time.Duration(seconds * float64(time.Second))
}

// Schedule enqueues a retry for the failed attempt. The entry carries the
// exact envelope bytes and the next attempt number. Returns nil without
// error when the next attempt number would exceed the subscription's
// max_retries: the chain terminates and the failure stays visible only
// through delivery history and statistics.
func (s *Scheduler) Schedule(ctx context.Context, sub *subscription.Subscription, env *envelope.Envelope, failed *delivery.Attempt) (*Entry, error) {
	next := failed.AttemptNumber + 1
	if next > sub.RetryPolicy.MaxRetries {
		s.logger.DebugContext(ctx, "retries exhausted",
			"subscription_id", sub.ID, "attempt_id", failed.ID,
			"attempt", failed.AttemptNumber, "max_retries", sub.RetryPolicy.MaxRetries)
		return nil, nil
	}

	delay := Delay(sub.RetryPolicy, failed.AttemptNumber)
	entry := &Entry{
		Entity:         entity.New(),
		ID:             id.NewRetryID(),
		SubscriptionID: sub.ID,
		AttemptID:      failed.ID,
		Event:          env.Event,
		Body:           env.Body(),
		SentAt:         env.Timestamp,
		AttemptNumber:  next,
		ScheduledAt:    s.now().UTC().Add(delay),
	}

	if err := s.store.EnqueueRetry(ctx, entry); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RetriesScheduledTotal.Inc()
		s.metrics.RetryQueueDepth.Inc()
	}
	s.logger.DebugContext(ctx, "retry scheduled",
		"subscription_id", sub.ID, "attempt_id", failed.ID,
		"next_attempt", next, "scheduled_at", entry.ScheduledAt)

	return entry, nil
}

// ScheduleRetry satisfies the delivery executor's scheduler contract,
// discarding the entry.
func (s *Scheduler) ScheduleRetry(ctx context.Context, sub *subscription.Subscription, env *envelope.Envelope, failed *delivery.Attempt) error {
	_, err := s.Schedule(ctx, sub, env, failed)
	return err
}
