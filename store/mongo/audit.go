package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/courier/audit"
)

// AppendAudit persists one activity entry.
func (s *Store) AppendAudit(ctx context.Context, entry *audit.Entry) error {
	m := toAuditModel(entry)

	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("courier/mongo: append audit: %w", err)
	}

	return nil
}

// ListAudit returns activity entries, newest first.
func (s *Store) ListAudit(ctx context.Context, tenantID string, opts audit.ListOpts) ([]*audit.Entry, error) {
	var models []auditModel

	filter := bson.M{}
	if tenantID != "" {
		filter["tenant_id"] = tenantID
	}
	if opts.EntityID != "" {
		filter["entity_id"] = opts.EntityID
	}
	if opts.Action != "" {
		filter["action"] = opts.Action
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "occurred_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("courier/mongo: list audit: %w", err)
	}

	result := make([]*audit.Entry, 0, len(models))

	for i := range models {
		entry, err := fromAuditModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, entry)
	}

	return result, nil
}
