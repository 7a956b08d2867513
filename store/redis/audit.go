package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/courier/audit"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/internal/entity"
)

// auditModel is the JSON representation stored in Redis.
type auditModel struct {
	ID         string            `json:"id"`
	Actor      string            `json:"actor"`
	TenantID   string            `json:"tenant_id"`
	Action     string            `json:"action"`
	EntityID   string            `json:"entity_id"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
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

func (s *Store) AppendAudit(ctx context.Context, entry *audit.Entry) error {
	m := toAuditModel(entry)
	key := entityKey(prefixAudit, m.ID)

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("courier/redis: append audit: %w", err)
	}

	score := scoreFromTime(m.OccurredAt)
	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, zAuditAll, goredis.Z{Score: score, Member: m.ID})
	if m.TenantID != "" {
		pipe.ZAdd(ctx, zAuditTenant+m.TenantID, goredis.Z{Score: score, Member: m.ID})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("courier/redis: append audit indexes: %w", err)
	}
	return nil
}

func (s *Store) ListAudit(ctx context.Context, tenantID string, opts audit.ListOpts) ([]*audit.Entry, error) {
	indexKey := zAuditAll
	if tenantID != "" {
		indexKey = zAuditTenant + tenantID
	}

	ids, err := s.rdb.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("courier/redis: list audit: %w", err)
	}

	result := make([]*audit.Entry, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- { // reverse for DESC order
		var m auditModel
		if err := s.getEntity(ctx, entityKey(prefixAudit, ids[i]), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if opts.EntityID != "" && m.EntityID != opts.EntityID {
			continue
		}
		if opts.Action != "" && m.Action != opts.Action {
			continue
		}
		entry, err := fromAuditModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, entry)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}
