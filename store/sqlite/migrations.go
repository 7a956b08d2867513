package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Courier store (SQLite).
var Migrations = migrate.NewGroup("courier")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_courier_subscriptions",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS courier_subscriptions (
    id                 TEXT PRIMARY KEY,
    tenant_id          TEXT NOT NULL DEFAULT '',
    name               TEXT NOT NULL DEFAULT '',
    url                TEXT NOT NULL DEFAULT '',
    description        TEXT NOT NULL DEFAULT '',
    secret             TEXT NOT NULL DEFAULT '',
    events             TEXT NOT NULL DEFAULT '[]',
    headers            TEXT NOT NULL DEFAULT '{}',
    is_active          INTEGER NOT NULL DEFAULT 1,
    max_retries        INTEGER NOT NULL DEFAULT 3,
    retry_delay        INTEGER NOT NULL DEFAULT 60,
    backoff_multiplier REAL NOT NULL DEFAULT 2,
    timeout_seconds    INTEGER NOT NULL DEFAULT 30,
    rate_limit         INTEGER NOT NULL DEFAULT 0,
    created_at         TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at         TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_courier_subscriptions_tenant ON courier_subscriptions (tenant_id);
CREATE INDEX IF NOT EXISTS idx_courier_subscriptions_tenant_active ON courier_subscriptions (tenant_id, is_active);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS courier_subscriptions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_courier_attempts",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS courier_attempts (
    id               TEXT PRIMARY KEY,
    subscription_id  TEXT NOT NULL DEFAULT '',
    event            TEXT NOT NULL DEFAULT '',
    payload          TEXT,
    url              TEXT NOT NULL DEFAULT '',
    outcome          TEXT NOT NULL DEFAULT '',
    status_code      INTEGER NOT NULL DEFAULT 0,
    response         TEXT NOT NULL DEFAULT '',
    latency_ms       INTEGER NOT NULL DEFAULT 0,
    attempt_number   INTEGER NOT NULL DEFAULT 1,
    created_at       TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at       TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_courier_attempts_subscription ON courier_attempts (subscription_id, created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS courier_attempts`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_courier_retries",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS courier_retries (
    id               TEXT PRIMARY KEY,
    subscription_id  TEXT NOT NULL DEFAULT '',
    attempt_id       TEXT NOT NULL DEFAULT '',
    event            TEXT NOT NULL DEFAULT '',
    body             TEXT,
    sent_at          TEXT NOT NULL DEFAULT (datetime('now')),
    attempt_number   INTEGER NOT NULL DEFAULT 2,
    scheduled_at     TEXT NOT NULL DEFAULT (datetime('now')),
    created_at       TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at       TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_courier_retries_due ON courier_retries (scheduled_at);
CREATE INDEX IF NOT EXISTS idx_courier_retries_subscription ON courier_retries (subscription_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS courier_retries`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_courier_audit",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS courier_audit (
    id          TEXT PRIMARY KEY,
    actor       TEXT NOT NULL DEFAULT '',
    tenant_id   TEXT NOT NULL DEFAULT '',
    action      TEXT NOT NULL DEFAULT '',
    entity_id   TEXT NOT NULL DEFAULT '',
    metadata    TEXT NOT NULL DEFAULT '{}',
    occurred_at TEXT NOT NULL DEFAULT (datetime('now')),
    created_at  TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_courier_audit_entity ON courier_audit (entity_id);
CREATE INDEX IF NOT EXISTS idx_courier_audit_tenant ON courier_audit (tenant_id, occurred_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS courier_audit`)
				return err
			},
		},
	)
}
