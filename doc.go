// Package courier provides the webhook delivery engine for the Cadence
// platform.
//
// Courier is a library, not a service. Import it into your application to
// get a tenant-scoped webhook registry, signed event fan-out, bounded
// exponential-backoff retries, and per-subscription delivery statistics.
//
// Key features:
//   - Closed catalog of business event types with optional JSON Schema payload validation
//   - Composable store pattern with multiple backends (Postgres, SQLite, Redis, Mongo, Memory)
//   - HMAC-SHA256 signatures over the exact bytes on the wire
//   - Joined concurrent fan-out: one slow subscriber never delays another
//   - Inspectable, restart-safe retry queue driven by a polling worker
//   - Per-subscription rate limiting and rolling delivery statistics
//
// Quick start:
//
//	c, err := courier.New(
//	    courier.WithStore(memoryStore),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	c.Start(ctx)
//	defer c.Stop(ctx)
//
//	sub, _ := c.Subscriptions().Create(ctx, subscription.Input{
//	    Name:   "crm-sync",
//	    URL:    "https://example.com/hooks/cadence",
//	    Events: []catalog.Name{catalog.DealCreated},
//	})
//
//	c.Dispatch(ctx, catalog.DealCreated, map[string]any{"deal_id": "d_123"})
package courier
