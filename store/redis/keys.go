package redis

// Key prefixes for primary entity storage.
const (
	prefixSubscription = "courier:sub:"
	prefixAttempt      = "courier:att:"
	prefixRetry        = "courier:rty:"
	prefixAudit        = "courier:aud:"
)

// Key prefixes for sorted set indexes.
const (
	zSubscriptionTenant = "courier:z:sub:tenant:" // + tenant ID
	zAttemptSub         = "courier:z:att:sub:"    // + subscription ID
	zRetryDue           = "courier:z:rty:due"
	zRetrySub           = "courier:z:rty:sub:" // + subscription ID
	zAuditAll           = "courier:z:aud:all"
	zAuditTenant        = "courier:z:aud:tenant:" // + tenant ID
)

// Key prefixes for set indexes.
const (
	sSubscriptionActive = "courier:s:sub:tenant:" // + tenantID + ":active"
)

// entityKey returns the primary key for an entity.
func entityKey(prefix, id string) string {
	return prefix + id
}

// activeSetKey returns the set key for active subscriptions of a tenant.
func activeSetKey(tenantID string) string {
	return sSubscriptionActive + tenantID + ":active"
}
