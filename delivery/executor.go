package delivery

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/courier/envelope"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/internal/entity"
	"github.com/xraph/courier/observability"
	"github.com/xraph/courier/ratelimit"
	"github.com/xraph/courier/signature"
	"github.com/xraph/courier/subscription"
)

// Outbound callback contract constants.
const (
	UserAgent = "Cadence-Webhooks/1.0"

	HeaderDelivery  = "X-Webhook-Delivery"
	HeaderEvent     = "X-Webhook-Event"
	HeaderTimestamp = "X-Webhook-Timestamp"
	HeaderSignature = "X-Webhook-Signature"
)

// maxResponseChars caps how much response or error text an attempt stores.
const maxResponseChars = 1000

// RetryScheduler receives failed first attempts for backoff scheduling.
// Implemented by retry.Scheduler.
type RetryScheduler interface {
	ScheduleRetry(ctx context.Context, sub *subscription.Subscription, env *envelope.Envelope, failed *Attempt) error
}

// ExecutorConfig holds optional executor collaborators.
type ExecutorConfig struct {
	Limiter *ratelimit.Limiter
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// Executor performs one signed outbound call per invocation and records the
// outcome. It never raises: one subscriber's failure must not block delivery
// to, or reporting for, any other subscriber.
type Executor struct {
	store     Store
	scheduler RetryScheduler
	client    *http.Client
	limiter   *ratelimit.Limiter
	metrics   *observability.Metrics
	tracer    *observability.Tracer
	logger    *slog.Logger
}

// NewExecutor creates a delivery executor. scheduler may be nil to disable
// retry handoff; per-call timeouts come from each subscription, so the shared
// client carries none.
func NewExecutor(store Store, scheduler RetryScheduler, cfg ExecutorConfig, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		store:     store,
		scheduler: scheduler,
		client:    &http.Client{},
		limiter:   cfg.Limiter,
		metrics:   cfg.Metrics,
		tracer:    cfg.Tracer,
		logger:    logger,
	}
}

// Deliver performs one outbound call for the subscription and returns the
// recorded attempt. attemptNumber is 1 for first sends; the retry worker
// passes the stored number for retries.
//
// On failure of the first attempt, and when the subscription allows retries,
// the failure is handed to the retry scheduler; renewed failures are
// rescheduled by the retry worker instead.
func (e *Executor) Deliver(ctx context.Context, sub *subscription.Subscription, env *envelope.Envelope, attemptNumber int) *Attempt {
	att := &Attempt{
		Entity:         entity.New(),
		ID:             id.NewAttemptID(),
		SubscriptionID: sub.ID,
		Event:          env.Event,
		Payload:        env.Body(),
		URL:            sub.URL,
		AttemptNumber:  attemptNumber,
	}

	var span trace.Span
	if e.tracer != nil {
		ctx, span = e.tracer.StartDeliverySpan(ctx, att.ID.String(), env.Event.String(), sub.ID.String())
	}

	e.send(ctx, sub, env, att)

	if e.metrics != nil {
		e.metrics.RecordDelivery(string(att.Outcome), float64(att.LatencyMs)/1000.0)
	}
	if span != nil {
		e.tracer.EndDeliverySpan(span, att.StatusCode, att.LatencyMs, att.Response)
	}

	if err := e.store.CreateAttempt(ctx, att); err != nil {
		e.logger.ErrorContext(ctx, "persist attempt failed",
			"attempt_id", att.ID, "subscription_id", sub.ID, "error", err)
	}

	if att.Outcome == OutcomeFailed {
		e.logger.DebugContext(ctx, "delivery failed",
			"attempt_id", att.ID, "subscription_id", sub.ID,
			"status", att.StatusCode, "attempt", attemptNumber)

		if attemptNumber == 1 && sub.RetryPolicy.MaxRetries > 0 && e.scheduler != nil {
			if err := e.scheduler.ScheduleRetry(ctx, sub, env, att); err != nil {
				e.logger.ErrorContext(ctx, "schedule retry failed",
					"attempt_id", att.ID, "subscription_id", sub.ID, "error", err)
			}
		}
	} else {
		e.logger.DebugContext(ctx, "delivered",
			"attempt_id", att.ID, "subscription_id", sub.ID,
			"status", att.StatusCode, "latency_ms", att.LatencyMs)
	}

	return att
}

// send issues the HTTP call and fills the attempt's outcome fields.
// Timeout, DNS failure, and refused connections all record uniformly as
// status 0.
func (e *Executor) send(ctx context.Context, sub *subscription.Subscription, env *envelope.Envelope, att *Attempt) {
	if e.limiter != nil && sub.RateLimit > 0 {
		if err := e.limiter.Wait(ctx, sub.ID, sub.RateLimit); err != nil {
			att.Outcome = OutcomeFailed
			att.Response = truncate("rate limit wait: " + err.Error())
			return
		}
	}

	ctx, cancel := context.WithTimeout(ctx, sub.Timeout())
	defer cancel()

	body := env.Body()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		att.Outcome = OutcomeFailed
		att.Response = truncate("create request: " + err.Error())
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set(HeaderDelivery, att.ID.String())
	req.Header.Set(HeaderEvent, env.Event.String())
	req.Header.Set(HeaderTimestamp, env.Timestamp.UTC().Format(time.RFC3339))

	for k, v := range sub.Headers {
		req.Header.Set(k, v)
	}

	// The signature covers the exact bytes sent as the body.
	if sub.Secret != "" {
		req.Header.Set(HeaderSignature, signature.Sign(body, sub.Secret))
	}

	start := time.Now()
	resp, err := e.client.Do(req)
	att.LatencyMs = int(time.Since(start).Milliseconds())

	if err != nil {
		att.Outcome = OutcomeFailed
		att.StatusCode = 0
		att.Response = truncate(err.Error())
		return
	}
	defer resp.Body.Close()

	att.StatusCode = resp.StatusCode
	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseChars+1))
	if readErr != nil {
		att.Response = truncate("read response: " + readErr.Error())
	} else {
		att.Response = truncate(string(respBody))
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		att.Outcome = OutcomeSuccess
	} else {
		att.Outcome = OutcomeFailed
	}
}

// truncate caps stored response/error text at maxResponseChars, backing off
// to the previous rune boundary so a multi-byte character is never split.
func truncate(s string) string {
	if len(s) <= maxResponseChars {
		return s
	}
	cut := maxResponseChars
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
