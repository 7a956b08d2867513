// Package sqlite implements the Courier store on SQLite via Grove ORM.
//
// SQLite has no array columns, so subscription event lists are stored as
// JSON text and event membership is filtered in Go after loading the
// tenant's rows. Tenant subscription counts stay small enough that this
// beats maintaining a join table.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
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

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("courier/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("courier/sqlite: migration failed: %w", err)
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
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetSubscription(ctx context.Context, subID id.ID) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", subID.String()).
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
	m.UpdatedAt = now()
	res, err := s.sdb.NewUpdate(m).
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
	res, err := s.sdb.NewDelete((*subscriptionModel)(nil)).
		Where("id = ?", subID.String()).
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
	// Event and search filters run in Go against the JSON columns, so the
	// whole tenant slice is loaded and paginated here rather than in SQL.
	var models []subscriptionModel
	q := s.sdb.NewSelect(&models).Where("tenant_id = ?", tenantID)
	if opts.Active != nil {
		q = q.Where("is_active = ?", *opts.Active)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, 0, err
	}

	var filtered []*subscription.Subscription
	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, 0, err
		}
		if opts.Event != "" && !sub.Subscribed(opts.Event) {
			continue
		}
		if opts.Search != "" && !matchSearch(sub, opts.Search) {
			continue
		}
		filtered = append(filtered, sub)
	}

	total := len(filtered)
	if opts.Offset > 0 {
		if opts.Offset >= len(filtered) {
			return nil, total, nil
		}
		filtered = filtered[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(filtered) {
		filtered = filtered[:opts.Limit]
	}
	return filtered, total, nil
}

func (s *Store) CountSubscriptions(ctx context.Context, tenantID string) (total, active int64, err error) {
	total, err = s.sdb.NewSelect((*subscriptionModel)(nil)).
		Where("tenant_id = ?", tenantID).
		Count(ctx)
	if err != nil {
		return 0, 0, err
	}
	active, err = s.sdb.NewSelect((*subscriptionModel)(nil)).
		Where("tenant_id = ?", tenantID).
		Where("is_active = 1").
		Count(ctx)
	if err != nil {
		return 0, 0, err
	}
	return total, active, nil
}

func (s *Store) Resolve(ctx context.Context, tenantID string, event catalog.Name) ([]*subscription.Subscription, error) {
	var models []subscriptionModel
	if err := s.sdb.NewSelect(&models).
		Where("tenant_id = ?", tenantID).
		Where("is_active = 1").
		Scan(ctx); err != nil {
		return nil, err
	}

	var result []*subscription.Subscription
	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, err
		}
		if sub.Subscribed(event) {
			result = append(result, sub)
		}
	}
	return result, nil
}

func (s *Store) SetActive(ctx context.Context, subID id.ID, active bool) error {
	t := now()
	res, err := s.sdb.NewUpdate((*subscriptionModel)(nil)).
		Set("is_active = ?", active).
		Set("updated_at = ?", t).
		Where("id = ?", subID.String()).
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
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetAttempt(ctx context.Context, attID id.ID) (*delivery.Attempt, error) {
	m := new(attemptModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", attID.String()).
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
	q := s.sdb.NewSelect(&models).Where("subscription_id = ?", subID.String())

	if opts.Outcome != nil {
		q = q.Where("outcome = ?", string(*opts.Outcome))
	}
	if opts.Event != "" {
		q = q.Where("event = ?", opts.Event.String())
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
	_, err := s.sdb.NewDelete((*attemptModel)(nil)).
		Where("subscription_id = ?", subID.String()).
		Exec(ctx)
	return err
}

func (s *Store) AttemptStats(ctx context.Context, subID id.ID, recentSince time.Time) (stats.Row, error) {
	var rows []attemptStatsModel
	err := s.sdb.NewRaw(`
		SELECT
			COUNT(*)                                                       AS total,
			COALESCE(SUM(CASE WHEN outcome = 'success' THEN 1 ELSE 0 END), 0) AS succeeded,
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0)  AS recent,
			MAX(created_at)                                                AS last_attempt_at
		FROM courier_attempts
		WHERE subscription_id = ?
	`, recentSince, subID.String()).Scan(ctx, &rows)
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
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) ClaimDueRetries(ctx context.Context, nowAt time.Time, limit int) ([]*retry.Entry, error) {
	// SQLite serializes writes (WAL mode), so a plain DELETE ... RETURNING
	// is already an atomic claim; no FOR UPDATE SKIP LOCKED needed.
	var models []retryModel
	err := s.sdb.NewRaw(`
		DELETE FROM courier_retries
		WHERE id IN (
			SELECT id FROM courier_retries
			WHERE scheduled_at <= ?
			ORDER BY scheduled_at ASC
			LIMIT ?
		)
		RETURNING *
	`, nowAt, limit).Scan(ctx, &models)
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
	if err := s.sdb.NewSelect(&models).
		Where("subscription_id = ?", subID.String()).
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
	return s.sdb.NewSelect((*retryModel)(nil)).Count(ctx)
}

func (s *Store) DeleteRetriesBySubscription(ctx context.Context, subID id.ID) error {
	_, err := s.sdb.NewDelete((*retryModel)(nil)).
		Where("subscription_id = ?", subID.String()).
		Exec(ctx)
	return err
}

// ==================== Audit Store ====================

func (s *Store) AppendAudit(ctx context.Context, entry *audit.Entry) error {
	m := toAuditModel(entry)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) ListAudit(ctx context.Context, tenantID string, opts audit.ListOpts) ([]*audit.Entry, error) {
	var models []auditModel
	q := s.sdb.NewSelect(&models)

	if tenantID != "" {
		q = q.Where("tenant_id = ?", tenantID)
	}
	if opts.EntityID != "" {
		q = q.Where("entity_id = ?", opts.EntityID)
	}
	if opts.Action != "" {
		q = q.Where("action = ?", opts.Action)
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

// matchSearch reports whether the search term appears in the subscription's
// name, URL, or description, case-insensitively.
func matchSearch(sub *subscription.Subscription, term string) bool {
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(sub.Name), term) ||
		strings.Contains(strings.ToLower(sub.URL), term) ||
		strings.Contains(strings.ToLower(sub.Description), term)
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
