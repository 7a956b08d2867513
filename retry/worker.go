package retry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/courier/delivery"
	"github.com/xraph/courier/envelope"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/observability"
	"github.com/xraph/courier/subscription"
)

// WorkerStore is the interface the worker needs for retry execution.
type WorkerStore interface {
	ClaimDueRetries(ctx context.Context, now time.Time, limit int) ([]*Entry, error)
	CountRetries(ctx context.Context) (int64, error)
	GetSubscription(ctx context.Context, subID id.ID) (*subscription.Subscription, error)
}

// Deliverer performs one outbound delivery attempt. Implemented by
// delivery.Executor.
type Deliverer interface {
	Deliver(ctx context.Context, sub *subscription.Subscription, env *envelope.Envelope, attemptNumber int) *delivery.Attempt
}

// WorkerConfig holds worker configuration.
type WorkerConfig struct {
	Concurrency  int
	PollInterval time.Duration
	BatchSize    int
	Metrics      *observability.Metrics
}

// Worker polls the retry queue for due entries and re-invokes the delivery
// executor. A claimed entry is consumed regardless of outcome: renewed
// failures go back through the scheduler, which enforces the retry bound.
type Worker struct {
	store     WorkerStore
	deliverer Deliverer
	scheduler *Scheduler
	config    WorkerConfig
	logger    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker creates a retry worker.
func NewWorker(store WorkerStore, deliverer Deliverer, scheduler *Scheduler, cfg WorkerConfig, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		store:     store,
		deliverer: deliverer,
		scheduler: scheduler,
		config:    cfg,
		logger:    logger,
	}
}

// Start begins the poll loop.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pollLoop(ctx)
	}()
}

// Stop cancels the poll loop and waits for in-flight retries to drain. If
// ctx expires first, Stop returns without waiting further; the remaining
// deliveries still finish under their own per-delivery timeouts, but their
// outcomes are no longer observed by the caller.
func (w *Worker) Stop(ctx context.Context) {
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "worker stop deadline reached with retries in flight")
	}
}

// pollLoop periodically claims due entries and dispatches them to workers.
func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, w.config.Concurrency)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			batch, err := w.store.ClaimDueRetries(ctx, time.Now().UTC(), w.config.BatchSize)
			if err != nil {
				w.logger.ErrorContext(ctx, "claim retries failed", "error", err)
				continue
			}

			for _, entry := range batch {
				select {
				case <-ctx.Done():
					return
				case sem <- struct{}{}:
				}

				w.wg.Add(1)
				go func(e *Entry) {
					defer w.wg.Done()
					defer func() { <-sem }()
					// Detach from the poll context so Stop's cancel does
					// not abort a claimed delivery mid-flight; the entry is
					// already consumed and would otherwise be lost.
					w.process(context.WithoutCancel(ctx), e)
				}(entry)
			}

			if w.config.Metrics != nil {
				if depth, cntErr := w.store.CountRetries(ctx); cntErr == nil {
					w.config.Metrics.RetryQueueDepth.Set(float64(depth))
				}
			}
		}
	}
}

// process executes one claimed entry: load the subscription, replay the
// original envelope, deliver, and reschedule on renewed failure.
func (w *Worker) process(ctx context.Context, entry *Entry) {
	sub, err := w.store.GetSubscription(ctx, entry.SubscriptionID)
	if err != nil {
		// Subscription deleted since the entry was queued. The claim already
		// removed the entry, so just drop it.
		w.logger.DebugContext(ctx, "retry dropped, subscription gone",
			"retry_id", entry.ID, "subscription_id", entry.SubscriptionID, "error", err)
		return
	}
	if !sub.Active {
		w.logger.DebugContext(ctx, "retry dropped, subscription inactive",
			"retry_id", entry.ID, "subscription_id", sub.ID)
		return
	}

	env := envelope.Resume(entry.Event, entry.SentAt, entry.Body)
	att := w.deliverer.Deliver(ctx, sub, env, entry.AttemptNumber)

	if att.Succeeded() {
		w.logger.DebugContext(ctx, "retry delivered",
			"retry_id", entry.ID, "subscription_id", sub.ID, "attempt", entry.AttemptNumber)
		return
	}

	// The executor only schedules for first attempts; renewed failures are
	// rescheduled here, and the scheduler stops the chain past max_retries.
	if _, schedErr := w.scheduler.Schedule(ctx, sub, env, att); schedErr != nil {
		w.logger.ErrorContext(ctx, "reschedule retry failed",
			"retry_id", entry.ID, "subscription_id", sub.ID, "error", schedErr)
	}
}
