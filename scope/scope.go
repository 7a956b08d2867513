// Package scope carries multi-tenant scope and actor identity on the context.
//
// The host platform sets the scope at its request boundary; Courier reads it
// when resolving subscriptions and when recording audit entries.
package scope

import "context"

type ctxKey int

const (
	tenantKey ctxKey = iota
	actorKey
)

// WithTenant returns a context scoped to the given tenant.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	if tenantID == "" {
		return ctx
	}
	return context.WithValue(ctx, tenantKey, tenantID)
}

// Tenant returns the tenant ID carried on the context, or "" when unscoped.
func Tenant(ctx context.Context) string {
	if v, ok := ctx.Value(tenantKey).(string); ok {
		return v
	}
	return ""
}

// WithActor returns a context carrying the acting user or system identity.
func WithActor(ctx context.Context, actor string) context.Context {
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey, actor)
}

// Actor returns the actor identity carried on the context, or "system".
func Actor(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey).(string); ok && v != "" {
		return v
	}
	return "system"
}
