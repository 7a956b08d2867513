package subscription

import "github.com/xraph/courier/catalog"

// RetryPolicyPatch is the partial retry configuration accepted on create and
// update. Nil fields keep their default (create) or current (update) value,
// so a body like {"max_retries": 5} does not zero the delay or multiplier.
type RetryPolicyPatch struct {
	MaxRetries        *int     `json:"max_retries,omitempty"`
	BaseDelaySeconds  *int     `json:"retry_delay,omitempty"`
	BackoffMultiplier *float64 `json:"backoff_multiplier,omitempty"`
}

// applyTo merges the supplied fields over base.
func (p *RetryPolicyPatch) applyTo(base RetryPolicy) RetryPolicy {
	if p == nil {
		return base
	}
	if p.MaxRetries != nil {
		base.MaxRetries = *p.MaxRetries
	}
	if p.BaseDelaySeconds != nil {
		base.BaseDelaySeconds = *p.BaseDelaySeconds
	}
	if p.BackoffMultiplier != nil {
		base.BackoffMultiplier = *p.BackoffMultiplier
	}
	return base
}

// Input is the creation payload for subscriptions.
type Input struct {
	// TenantID identifies the tenant that owns this subscription.
	TenantID string `json:"tenant_id,omitempty"`

	// Name is a human-readable label.
	Name string `json:"name"`

	// URL is the webhook delivery destination. Must be an absolute http(s) URL.
	URL string `json:"url"`

	// Description explains what the subscription is for.
	Description string `json:"description,omitempty"`

	// Secret is the HMAC signing secret. Auto-generated if empty.
	Secret string `json:"secret,omitempty"`

	// Events is the set of catalog event names to receive. Must be non-empty.
	Events []catalog.Name `json:"events"`

	// Headers are custom HTTP headers sent with each delivery.
	Headers map[string]string `json:"headers,omitempty"`

	// Active defaults to true when nil.
	Active *bool `json:"is_active,omitempty"`

	// RetryPolicy is merged over DefaultRetryPolicy; nil keeps the default.
	RetryPolicy *RetryPolicyPatch `json:"retry_config,omitempty"`

	// TimeoutSeconds defaults to DefaultTimeoutSeconds when nil.
	TimeoutSeconds *int `json:"timeout,omitempty"`

	// RateLimit is the maximum deliveries per second. 0 means unlimited.
	RateLimit int `json:"rate_limit,omitempty"`
}

// Update is the partial-merge payload for subscription updates.
// Nil fields are left unchanged.
type Update struct {
	Name           *string           `json:"name,omitempty"`
	URL            *string           `json:"url,omitempty"`
	Description    *string           `json:"description,omitempty"`
	Secret         *string           `json:"secret,omitempty"`
	Events         []catalog.Name    `json:"events,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
	Active         *bool             `json:"is_active,omitempty"`
	RetryPolicy    *RetryPolicyPatch `json:"retry_config,omitempty"`
	TimeoutSeconds *int              `json:"timeout,omitempty"`
	RateLimit      *int              `json:"rate_limit,omitempty"`
}

// ListOpts configures filtering and pagination for subscription listing.
type ListOpts struct {
	Offset int
	Limit  int

	// Event filters to subscriptions subscribed to this event.
	Event catalog.Name

	// Active filters by active state when non-nil.
	Active *bool

	// Search is a free-text filter over name, URL, and description.
	Search string
}
