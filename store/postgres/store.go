// Package postgres implements the Courier store on PostgreSQL via Grove ORM.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	courier "github.com/xraph/courier"
	"github.com/xraph/courier/audit"
	"github.com/xraph/courier/catalog"
	"github.com/xraph/courier/delivery"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/retry"
	"github.com/xraph/courier/stats"
	courierstore "github.com/xraph/courier/store"
	"github.com/xraph/courier/subscription"
)

// compile-time interface check
var _ courierstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("courier/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("courier/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetSubscription(ctx context.Context, subID id.ID) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", subID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, courier.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return fromSubscriptionModel(m)
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	m.UpdatedAt = time.Now().UTC()
	res, err := s.pg.NewUpdate(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return courier.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) DeleteSubscription(ctx context.Context, subID id.ID) error {
	res, err := s.pg.NewDelete((*subscriptionModel)(nil)).
		Where("id = $1", subID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return courier.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) ListSubscriptions(ctx context.Context, tenantID string, opts subscription.ListOpts) ([]*subscription.Subscription, int, error) {
	cq := s.pg.NewSelect((*subscriptionModel)(nil)).Where("tenant_id = $1", tenantID)
	countIdx := 1
	if opts.Event != "" {
		countIdx++
		cq = cq.Where(fmt.Sprintf("$%d = ANY(events)", countIdx), string(opts.Event))
	}
	if opts.Active != nil {
		countIdx++
		cq = cq.Where(fmt.Sprintf("is_active = $%d", countIdx), *opts.Active)
	}
	if opts.Search != "" {
		countIdx++
		pattern := "%" + opts.Search + "%"
		cq = cq.Where(fmt.Sprintf("(name ILIKE $%d OR url ILIKE $%d OR description ILIKE $%d)",
			countIdx, countIdx, countIdx), pattern)
	}
	total, err := cq.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	var models []subscriptionModel
	q := s.pg.NewSelect(&models).Where("tenant_id = $1", tenantID)
	argIdx := 1
	if opts.Event != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("$%d = ANY(events)", argIdx), string(opts.Event))
	}
	if opts.Active != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("is_active = $%d", argIdx), *opts.Active)
	}
	if opts.Search != "" {
		argIdx++
		pattern := "%" + opts.Search + "%"
		q = q.Where(fmt.Sprintf("(name ILIKE $%d OR url ILIKE $%d OR description ILIKE $%d)",
			argIdx, argIdx, argIdx), pattern)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, 0, err
	}

	result := make([]*subscription.Subscription, len(models))
	for i := range models {
		sub, convErr := fromSubscriptionModel(&models[i])
		if convErr != nil {
			return nil, 0, convErr
		}
		result[i] = sub
	}
	return result, int(total), nil
}

func (s *Store) CountSubscriptions(ctx context.Context, tenantID string) (total, active int64, err error) {
	total, err = s.pg.NewSelect((*subscriptionModel)(nil)).
		Where("tenant_id = $1", tenantID).
		Count(ctx)
	if err != nil {
		return 0, 0, err
	}
	active, err = s.pg.NewSelect((*subscriptionModel)(nil)).
		Where("tenant_id = $1", tenantID).
		Where("is_active = true").
		Count(ctx)
	if err != nil {
		return 0, 0, err
	}
	return total, active, nil
}

func (s *Store) Resolve(ctx context.Context, tenantID string, event catalog.Name) ([]*subscription.Subscription, error) {
	var models []subscriptionModel
	if err := s.pg.NewSelect(&models).
		Where("tenant_id = $1", tenantID).
		Where("is_active = true").
		Where("$2 = ANY(events)", string(event)).
		Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*subscription.Subscription, len(models))
	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sub
	}
	return result, nil
}

func (s *Store) SetActive(ctx context.Context, subID id.ID, active bool) error {
	now := time.Now().UTC()
	res, err := s.pg.NewUpdate((*subscriptionModel)(nil)).
		Set("is_active = $1", active).
		Set("updated_at = $2", now).
		Where("id = $3", subID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return courier.ErrSubscriptionNotFound
	}
	return nil
}

// ==================== Delivery Store ====================

func (s *Store) CreateAttempt(ctx context.Context, att *delivery.Attempt) error {
	m := toAttemptModel(att)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetAttempt(ctx context.Context, attID id.ID) (*delivery.Attempt, error) {
	m := new(attemptModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", attID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, courier.ErrAttemptNotFound
		}
		return nil, err
	}
	return fromAttemptModel(m)
}

func (s *Store) ListAttempts(ctx context.Context, subID id.ID, opts delivery.ListOpts) ([]*delivery.Attempt, error) {
	var models []attemptModel
	q := s.pg.NewSelect(&models).Where("subscription_id = $1", subID.String())

	argIdx := 1
	if opts.Outcome != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("outcome = $%d", argIdx), string(*opts.Outcome))
	}
	if opts.Event != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("event = $%d", argIdx), opts.Event.String())
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*delivery.Attempt, len(models))
	for i := range models {
		att, err := fromAttemptModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = att
	}
	return result, nil
}

func (s *Store) DeleteAttemptsBySubscription(ctx context.Context, subID id.ID) error {
	_, err := s.pg.NewDelete((*attemptModel)(nil)).
		Where("subscription_id = $1", subID.String()).
		Exec(ctx)
	return err
}

func (s *Store) AttemptStats(ctx context.Context, subID id.ID, recentSince time.Time) (stats.Row, error) {
	var rows []attemptStatsModel
	err := s.pg.NewRaw(`
		SELECT
			COUNT(*)                                          AS total,
			COUNT(*) FILTER (WHERE outcome = 'success')       AS succeeded,
			COUNT(*) FILTER (WHERE created_at >= $2)          AS recent,
			MAX(created_at)                                   AS last_attempt_at
		FROM courier_attempts
		WHERE subscription_id = $1
	`, subID.String(), recentSince).Scan(ctx, &rows)
	if err != nil {
		return stats.Row{}, err
	}
	if len(rows) == 0 {
		return stats.Row{}, nil
	}
	return stats.Row{
		Total:         rows[0].Total,
		Succeeded:     rows[0].Succeeded,
		Recent:        rows[0].Recent,
		LastAttemptAt: rows[0].LastAttemptAt,
	}, nil
}

// ==================== Retry Store ====================

func (s *Store) EnqueueRetry(ctx context.Context, entry *retry.Entry) error {
	m := toRetryModel(entry)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) ClaimDueRetries(ctx context.Context, now time.Time, limit int) ([]*retry.Entry, error) {
	// DELETE ... SKIP LOCKED: a claimed entry is gone from the queue even if
	// the worker crashes mid-delivery; renewed failures re-enter via
	// EnqueueRetry. Competing workers never claim the same entry.
	var models []retryModel
	err := s.pg.NewRaw(`
		DELETE FROM courier_retries
		WHERE id IN (
			SELECT id FROM courier_retries
			WHERE scheduled_at <= $1
			ORDER BY scheduled_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *
	`, now, limit).Scan(ctx, &models)
	if err != nil {
		return nil, err
	}

	result := make([]*retry.Entry, len(models))
	for i := range models {
		entry, err := fromRetryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = entry
	}
	return result, nil
}

func (s *Store) ListRetries(ctx context.Context, subID id.ID) ([]*retry.Entry, error) {
	var models []retryModel
	if err := s.pg.NewSelect(&models).
		Where("subscription_id = $1", subID.String()).
		OrderExpr("scheduled_at ASC").
		Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*retry.Entry, len(models))
	for i := range models {
		entry, err := fromRetryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = entry
	}
	return result, nil
}

func (s *Store) CountRetries(ctx context.Context) (int64, error) {
	return s.pg.NewSelect((*retryModel)(nil)).Count(ctx)
}

func (s *Store) DeleteRetriesBySubscription(ctx context.Context, subID id.ID) error {
	_, err := s.pg.NewDelete((*retryModel)(nil)).
		Where("subscription_id = $1", subID.String()).
		Exec(ctx)
	return err
}

// ==================== Audit Store ====================

func (s *Store) AppendAudit(ctx context.Context, entry *audit.Entry) error {
	m := toAuditModel(entry)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) ListAudit(ctx context.Context, tenantID string, opts audit.ListOpts) ([]*audit.Entry, error) {
	var models []auditModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if tenantID != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("tenant_id = $%d", argIdx), tenantID)
	}
	if opts.EntityID != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("entity_id = $%d", argIdx), opts.EntityID)
	}
	if opts.Action != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("action = $%d", argIdx), opts.Action)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("occurred_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*audit.Entry, len(models))
	for i := range models {
		entry, err := fromAuditModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = entry
	}
	return result, nil
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
