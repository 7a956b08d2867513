package mongo

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

	ID                string            `grove:"id,pk"              bson:"_id"`
	TenantID          string            `grove:"tenant_id"          bson:"tenant_id"`
	Name              string            `grove:"name"               bson:"name"`
	URL               string            `grove:"url"                bson:"url"`
	Description       string            `grove:"description"        bson:"description"`
	Secret            string            `grove:"secret"             bson:"secret"`
	Events            []string          `grove:"events"             bson:"events"`
	Headers           map[string]string `grove:"headers"            bson:"headers,omitempty"`
	IsActive          bool              `grove:"is_active"          bson:"is_active"`
	MaxRetries        int               `grove:"max_retries"        bson:"max_retries"`
	RetryDelay        int               `grove:"retry_delay"        bson:"retry_delay"`
	BackoffMultiplier float64           `grove:"backoff_multiplier" bson:"backoff_multiplier"`
	TimeoutSeconds    int               `grove:"timeout_seconds"    bson:"timeout_seconds"`
	RateLimit         int               `grove:"rate_limit"         bson:"rate_limit"`
	CreatedAt         time.Time         `grove:"created_at"         bson:"created_at"`
	UpdatedAt         time.Time         `grove:"updated_at"         bson:"updated_at"`
}

func toSubscriptionModel(sub *subscription.Subscription) *subscriptionModel {
	events := make([]string, len(sub.Events))
	for i, e := range sub.Events {
		events[i] = string(e)
	}

	return &subscriptionModel{
		ID:                sub.ID.String(),
		TenantID:          sub.TenantID,
		Name:              sub.Name,
		URL:               sub.URL,
		Description:       sub.Description,
		Secret:            sub.Secret,
		Events:            events,
		Headers:           sub.Headers,
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

	events := make([]catalog.Name, len(m.Events))
	for i, e := range m.Events {
		events[i] = catalog.Name(e)
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
		Events:      events,
		Headers:     m.Headers,
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

	ID             string          `grove:"id,pk"           bson:"_id"`
	SubscriptionID string          `grove:"subscription_id" bson:"subscription_id"`
	Event          string          `grove:"event"           bson:"event"`
	Payload        json.RawMessage `grove:"payload"         bson:"payload,omitempty"`
	URL            string          `grove:"url"             bson:"url"`
	Outcome        string          `grove:"outcome"         bson:"outcome"`
	StatusCode     int             `grove:"status_code"     bson:"status_code"`
	Response       string          `grove:"response"        bson:"response"`
	LatencyMs      int             `grove:"latency_ms"      bson:"latency_ms"`
	AttemptNumber  int             `grove:"attempt_number"  bson:"attempt_number"`
	CreatedAt      time.Time       `grove:"created_at"      bson:"created_at"`
	UpdatedAt      time.Time       `grove:"updated_at"      bson:"updated_at"`
}

func toAttemptModel(att *delivery.Attempt) *attemptModel {
	return &attemptModel{
		ID:             att.ID.String(),
		SubscriptionID: att.SubscriptionID.String(),
		Event:          att.Event.String(),
		Payload:        att.Payload,
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

	return &delivery.Attempt{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             attID,
		SubscriptionID: subID,
		Event:          catalog.Name(m.Event),
		Payload:        m.Payload,
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

	ID             string          `grove:"id,pk"           bson:"_id"`
	SubscriptionID string          `grove:"subscription_id" bson:"subscription_id"`
	AttemptID      string          `grove:"attempt_id"      bson:"attempt_id"`
	Event          string          `grove:"event"           bson:"event"`
	Body           json.RawMessage `grove:"body"            bson:"body,omitempty"`
	SentAt         time.Time       `grove:"sent_at"         bson:"sent_at"`
	AttemptNumber  int             `grove:"attempt_number"  bson:"attempt_number"`
	ScheduledAt    time.Time       `grove:"scheduled_at"    bson:"scheduled_at"`
	CreatedAt      time.Time       `grove:"created_at"      bson:"created_at"`
	UpdatedAt      time.Time       `grove:"updated_at"      bson:"updated_at"`
}

func toRetryModel(e *retry.Entry) *retryModel {
	return &retryModel{
		ID:             e.ID.String(),
		SubscriptionID: e.SubscriptionID.String(),
		AttemptID:      e.AttemptID.String(),
		Event:          e.Event.String(),
		Body:           e.Body,
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

	return &retry.Entry{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             retryID,
		SubscriptionID: subID,
		AttemptID:      attID,
		Event:          catalog.Name(m.Event),
		Body:           m.Body,
		SentAt:         m.SentAt,
		AttemptNumber:  m.AttemptNumber,
		ScheduledAt:    m.ScheduledAt,
	}, nil
}

// --- Audit models ---

type auditModel struct {
	grove.BaseModel `grove:"table:courier_audit"`

	ID         string            `grove:"id,pk"       bson:"_id"`
	Actor      string            `grove:"actor"       bson:"actor"`
	TenantID   string            `grove:"tenant_id"   bson:"tenant_id"`
	Action     string            `grove:"action"      bson:"action"`
	EntityID   string            `grove:"entity_id"   bson:"entity_id"`
	Metadata   map[string]string `grove:"metadata"    bson:"metadata,omitempty"`
	OccurredAt time.Time         `grove:"occurred_at" bson:"occurred_at"`
	CreatedAt  time.Time         `grove:"created_at"  bson:"created_at"`
	UpdatedAt  time.Time         `grove:"updated_at"  bson:"updated_at"`
}

func toAuditModel(e *audit.Entry) *auditModel {
	return &auditModel{
		ID:         e.ID.String(),
		Actor:      e.Actor,
		TenantID:   e.TenantID,
		Action:     e.Action,
		EntityID:   e.EntityID,
		Metadata:   e.Metadata,
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
		Metadata:   m.Metadata,
		OccurredAt: m.OccurredAt,
	}, nil
}
