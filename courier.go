package courier

import (
	"context"
	"fmt"
	"sync"

	"github.com/xraph/courier/audit"
	"github.com/xraph/courier/catalog"
	"github.com/xraph/courier/delivery"
	"github.com/xraph/courier/envelope"
	"github.com/xraph/courier/ratelimit"
	"github.com/xraph/courier/retry"
	"github.com/xraph/courier/scope"
	"github.com/xraph/courier/stats"
	"github.com/xraph/courier/store"
	"github.com/xraph/courier/subscription"
)

// wireServices initializes the internal services after options have been applied.
func (c *Courier) wireServices() {
	c.schemas = catalog.NewSchemas()
	c.limiter = ratelimit.New()

	c.auditRec = audit.NewRecorder(c.store, c.logger)
	c.aggregator = stats.NewAggregator(c.store)

	c.subSvc = subscription.NewService(c.store, c.store, c.auditRec, c.aggregator, c.logger)

	c.scheduler = retry.NewScheduler(c.store, c.metrics, c.logger)

	c.executor = delivery.NewExecutor(c.store, c.scheduler, delivery.ExecutorConfig{
		Limiter: c.limiter,
		Metrics: c.metrics,
		Tracer:  c.tracer,
	}, c.logger)

	c.worker = retry.NewWorker(c.store, c.executor, c.scheduler, retry.WorkerConfig{
		Concurrency:  c.config.Concurrency,
		PollInterval: c.config.PollInterval,
		BatchSize:    c.config.BatchSize,
		Metrics:      c.metrics,
	}, c.logger)
}

// Start begins the retry worker.
func (c *Courier) Start(ctx context.Context) {
	c.worker.Start(ctx)
}

// Stop gracefully shuts down the retry worker, waiting for in-flight
// deliveries up to the configured shutdown timeout.
func (c *Courier) Stop(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.config.ShutdownTimeout)
	defer cancel()
	c.worker.Stop(ctx)
}

// DispatchOption adjusts a single Dispatch call.
type DispatchOption func(*dispatchOpts)

type dispatchOpts struct {
	tenant   string
	metadata map[string]string
}

// ForTenant scopes the dispatch to one tenant's subscriptions, overriding
// any tenant carried by the context scope.
func ForTenant(tenantID string) DispatchOption {
	return func(o *dispatchOpts) {
		o.tenant = tenantID
	}
}

// WithMetadata attaches metadata to the dispatched envelope.
func WithMetadata(md map[string]string) DispatchOption {
	return func(o *dispatchOpts) {
		o.metadata = md
	}
}

// DispatchResult reports the outcome of one fan-out.
type DispatchResult struct {
	// Matched is the number of active subscriptions subscribed to the event.
	Matched int `json:"matched_count"`

	// Sent is the number of deliveries that got a 2xx response.
	Sent int `json:"sent_count"`

	// Attempts holds one delivery attempt per matched subscription.
	Attempts []*delivery.Attempt `json:"attempts,omitempty"`
}

// Dispatch fans an event out to every active matching subscription and
// waits for all deliveries to resolve.
//
// The critical path:
//  1. Reject event names outside the catalog.
//  2. Validate the payload against the event's JSON Schema, if one is set.
//  3. Resolve active subscriptions for this tenant + event.
//  4. Seal one canonical envelope; every subscriber gets the same bytes.
//  5. Deliver concurrently, one goroutine per subscription, and join.
//
// Delivery failures never surface here: they are recorded on the attempts
// and retried in the background. The only errors Dispatch returns are its
// own lookup and validation steps.
func (c *Courier) Dispatch(ctx context.Context, event catalog.Name, payload any, opts ...DispatchOption) (*DispatchResult, error) {
	var o dispatchOpts
	for _, opt := range opts {
		opt(&o)
	}

	if !catalog.Known(event) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, event)
	}

	if err := c.schemas.ValidatePayload(event, payload); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPayloadValidationFailed, err.Error())
	}

	tenant := o.tenant
	if tenant == "" {
		tenant = scope.Tenant(ctx)
	}

	subs, err := c.store.Resolve(ctx, tenant, event)
	if err != nil {
		return nil, fmt.Errorf("courier: resolve subscriptions: %w", err)
	}

	if c.metrics != nil {
		c.metrics.DispatchesTotal.Inc()
	}

	if len(subs) == 0 {
		c.logger.DebugContext(ctx, "dispatch matched nothing", "event", event, "tenant", tenant)
		return &DispatchResult{}, nil
	}

	env, err := envelope.Seal(event, payload, o.metadata)
	if err != nil {
		return nil, err
	}

	// Joined fan-out: one goroutine per subscription, no shared state but
	// the pre-sized attempts slice, each goroutine writing its own index.
	attempts := make([]*delivery.Attempt, len(subs))
	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func(i int, sub *subscription.Subscription) {
			defer wg.Done()
			attempts[i] = c.executor.Deliver(ctx, sub, env, 1)
		}(i, sub)
	}
	wg.Wait()

	result := &DispatchResult{
		Matched:  len(subs),
		Attempts: attempts,
	}
	for _, att := range attempts {
		if att.Succeeded() {
			result.Sent++
		}
	}

	c.logger.DebugContext(ctx, "dispatched",
		"event", event, "tenant", tenant,
		"matched", result.Matched, "sent", result.Sent)

	return result, nil
}

// Subscriptions returns the webhook registry service.
func (c *Courier) Subscriptions() *subscription.Service {
	return c.subSvc
}

// Schemas returns the payload schema registry.
func (c *Courier) Schemas() *catalog.Schemas {
	return c.schemas
}

// Stats returns the statistics aggregator.
func (c *Courier) Stats() *stats.Aggregator {
	return c.aggregator
}

// Audit returns the activity recorder.
func (c *Courier) Audit() *audit.Recorder {
	return c.auditRec
}

// Store returns the underlying store.
func (c *Courier) Store() store.Store {
	return c.store
}
