package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/courier/audit"
	"github.com/xraph/courier/catalog"
	"github.com/xraph/courier/delivery"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/internal/entity"
	"github.com/xraph/courier/retry"
	"github.com/xraph/courier/subscription"
)

// --- Subscription models ---

type subscriptionModel struct {
	grove.BaseModel `grove:"table:courier_subscriptions"`

	ID                string    `grove:"id,pk"`
	TenantID          string    `grove:"tenant_id"`
	Name              string    `grove:"name"`
	URL               string    `grove:"url"`
	Description       string    `grove:"description"`
	Secret            string    `grove:"secret"`
	Events            string    `grove:"events"`  // JSON array
	Headers           string    `grove:"headers"` // JSON object
	IsActive          bool      `grove:"is_active"`
	MaxRetries        int       `grove:"max_retries"`
	RetryDelay        int       `grove:"retry_delay"`
	BackoffMultiplier float64   `grove:"backoff_multiplier"`
	TimeoutSeconds    int       `grove:"timeout_seconds"`
	RateLimit         int       `grove:"rate_limit"`
	CreatedAt         time.Time `grove:"created_at"`
	UpdatedAt         time.Time `grove:"updated_at"`
}

// events unmarshals the JSON events string into catalog names.
func (m *subscriptionModel) events() []catalog.Name {
	var names []catalog.Name
	if m.Events != "" {
		_ = json.Unmarshal([]byte(m.Events), &names) //nolint:errcheck // best-effort
	}
	return names
}

func toSubscriptionModel(sub *subscription.Subscription) *subscriptionModel {
	events, _ := json.Marshal(sub.Events)   //nolint:errcheck // best-effort
	headers, _ := json.Marshal(sub.Headers) //nolint:errcheck // best-effort

	return &subscriptionModel{
		ID:                sub.ID.String(),
		TenantID:          sub.TenantID,
		Name:              sub.Name,
		URL:               sub.URL,
		Description:       sub.Description,
		Secret:            sub.Secret,
		Events:            string(events),
		Headers:           string(headers),
		IsActive:          sub.Active,
		MaxRetries:        sub.RetryPolicy.MaxRetries,
		RetryDelay:        sub.RetryPolicy.BaseDelaySeconds,
		BackoffMultiplier: sub.RetryPolicy.BackoffMultiplier,
		TimeoutSeconds:    sub.TimeoutSeconds,
		RateLimit:         sub.RateLimit,
		CreatedAt:         sub.CreatedAt,
		UpdatedAt:         sub.UpdatedAt,
	}
}

func fromSubscriptionModel(m *subscriptionModel) (*subscription.Subscription, error) {
	subID, err := id.ParseSubscriptionID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse subscription ID %q: %w", m.ID, err)
	}

	var headers map[string]string
	if m.Headers != "" {
		_ = json.Unmarshal([]byte(m.Headers), &headers) //nolint:errcheck // best-effort
	}

	return &subscription.Subscription{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          subID,
		TenantID:    m.TenantID,
		Name:        m.Name,
		URL:         m.URL,
		Description: m.Description,
		Secret:      m.Secret,
		Events:      m.events(),
		Headers:     headers,
		Active:      m.IsActive,
		RetryPolicy: subscription.RetryPolicy{
			MaxRetries:        m.MaxRetries,
			BaseDelaySeconds:  m.RetryDelay,
			BackoffMultiplier: m.BackoffMultiplier,
		},
		TimeoutSeconds: m.TimeoutSeconds,
		RateLimit:      m.RateLimit,
	}, nil
}

// --- Attempt models ---

type attemptModel struct {
	grove.BaseModel `grove:"table:courier_attempts"`

	ID             string    `grove:"id,pk"`
	SubscriptionID string    `grove:"subscription_id"`
	Event          string    `grove:"event"`
	Payload        string    `grove:"payload"` // JSON text
	URL            string    `grove:"url"`
	Outcome        string    `grove:"outcome"`
	StatusCode     int       `grove:"status_code"`
	Response       string    `grove:"response"`
	LatencyMs      int       `grove:"latency_ms"`
	AttemptNumber  int       `grove:"attempt_number"`
	CreatedAt      time.Time `grove:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"`
}

func toAttemptModel(att *delivery.Attempt) *attemptModel {
	return &attemptModel{
		ID:             att.ID.String(),
		SubscriptionID: att.SubscriptionID.String(),
		Event:          att.Event.String(),
		Payload:        string(att.Payload),
		URL:            att.URL,
		Outcome:        string(att.Outcome),
		StatusCode:     att.StatusCode,
		Response:       att.Response,
		LatencyMs:      att.LatencyMs,
		AttemptNumber:  att.AttemptNumber,
		CreatedAt:      att.CreatedAt,
		UpdatedAt:      att.UpdatedAt,
	}
}

func fromAttemptModel(m *attemptModel) (*delivery.Attempt, error) {
	attID, err := id.ParseAttemptID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse attempt ID %q: %w", m.ID, err)
	}
	subID, err := id.ParseSubscriptionID(m.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("parse subscription ID %q: %w", m.SubscriptionID, err)
	}

	var payload json.RawMessage
	if m.Payload != "" {
		payload = json.RawMessage(m.Payload)
	}

	return &delivery.Attempt{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             attID,
		SubscriptionID: subID,
		Event:          catalog.Name(m.Event),
		Payload:        payload,
		URL:            m.URL,
		Outcome:        delivery.Outcome(m.Outcome),
		StatusCode:     m.StatusCode,
		Response:       m.Response,
		LatencyMs:      m.LatencyMs,
		AttemptNumber:  m.AttemptNumber,
	}, nil
}

// --- Retry models ---

type retryModel struct {
	grove.BaseModel `grove:"table:courier_retries"`

	ID             string    `grove:"id,pk"`
	SubscriptionID string    `grove:"subscription_id"`
	AttemptID      string    `grove:"attempt_id"`
	Event          string    `grove:"event"`
	Body           string    `grove:"body"` // JSON text
	SentAt         time.Time `grove:"sent_at"`
	AttemptNumber  int       `grove:"attempt_number"`
	ScheduledAt    time.Time `grove:"scheduled_at"`
	CreatedAt      time.Time `grove:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"`
}

func toRetryModel(e *retry.Entry) *retryModel {
	return &retryModel{
		ID:             e.ID.String(),
		SubscriptionID: e.SubscriptionID.String(),
		AttemptID:      e.AttemptID.String(),
		Event:          e.Event.String(),
		Body:           string(e.Body),
		SentAt:         e.SentAt,
		AttemptNumber:  e.AttemptNumber,
		ScheduledAt:    e.ScheduledAt,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func fromRetryModel(m *retryModel) (*retry.Entry, error) {
	retryID, err := id.ParseRetryID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse retry ID %q: %w", m.ID, err)
	}
	subID, err := id.ParseSubscriptionID(m.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("parse subscription ID %q: %w", m.SubscriptionID, err)
	}
	attID, err := id.ParseAttemptID(m.AttemptID)
	if err != nil {
		return nil, fmt.Errorf("parse attempt ID %q: %w", m.AttemptID, err)
	}

	var body json.RawMessage
	if m.Body != "" {
		body = json.RawMessage(m.Body)
	}

	return &retry.Entry{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             retryID,
		SubscriptionID: subID,
		AttemptID:      attID,
		Event:          catalog.Name(m.Event),
		Body:           body,
		SentAt:         m.SentAt,
		AttemptNumber:  m.AttemptNumber,
		ScheduledAt:    m.ScheduledAt,
	}, nil
}

// --- Audit models ---

type auditModel struct {
	grove.BaseModel `grove:"table:courier_audit"`

	ID         string    `grove:"id,pk"`
	Actor      string    `grove:"actor"`
	TenantID   string    `grove:"tenant_id"`
	Action     string    `grove:"action"`
	EntityID   string    `grove:"entity_id"`
	Metadata   string    `grove:"metadata"` // JSON object
	OccurredAt time.Time `grove:"occurred_at"`
	CreatedAt  time.Time `grove:"created_at"`
	UpdatedAt  time.Time `grove:"updated_at"`
}

func toAuditModel(e *audit.Entry) *auditModel {
	metadata, _ := json.Marshal(e.Metadata) //nolint:errcheck // best-effort

	return &auditModel{
		ID:         e.ID.String(),
		Actor:      e.Actor,
		TenantID:   e.TenantID,
		Action:     e.Action,
		EntityID:   e.EntityID,
		Metadata:   string(metadata),
		OccurredAt: e.OccurredAt,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

func fromAuditModel(m *auditModel) (*audit.Entry, error) {
	auditID, err := id.ParseAuditID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse audit ID %q: %w", m.ID, err)
	}

	var metadata map[string]string
	if m.Metadata != "" {
		_ = json.Unmarshal([]byte(m.Metadata), &metadata) //nolint:errcheck // best-effort
	}

	return &audit.Entry{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         auditID,
		Actor:      m.Actor,
		TenantID:   m.TenantID,
		Action:     m.Action,
		EntityID:   m.EntityID,
		Metadata:   metadata,
		OccurredAt: m.OccurredAt,
	}, nil
}

// --- Aggregates ---

// attemptStatsModel receives the raw statistics aggregate row.
type attemptStatsModel struct {
	grove.BaseModel `grove:"table:courier_attempts"`

	Total         int64      `grove:"total"`
	Succeeded     int64      `grove:"succeeded"`
	Recent        int64      `grove:"recent"`
	LastAttemptAt *time.Time `grove:"last_attempt_at"`
}
