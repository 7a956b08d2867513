package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Courier store.
// It can be registered with the host's migration orchestrator for locking,
// version tracking, and rollback support.
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
    events             TEXT[] NOT NULL DEFAULT '{}',
    headers            JSONB NOT NULL DEFAULT '{}',
    is_active          BOOLEAN NOT NULL DEFAULT TRUE,
    max_retries        INT NOT NULL DEFAULT 3,
    retry_delay        INT NOT NULL DEFAULT 60,
    backoff_multiplier DOUBLE PRECISION NOT NULL DEFAULT 2,
    timeout_seconds    INT NOT NULL DEFAULT 30,
    rate_limit         INT NOT NULL DEFAULT 0,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_courier_subscriptions_tenant ON courier_subscriptions (tenant_id);
CREATE INDEX IF NOT EXISTS idx_courier_subscriptions_events ON courier_subscriptions USING GIN (events);
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
    payload          JSONB,
    url              TEXT NOT NULL DEFAULT '',
    outcome          TEXT NOT NULL DEFAULT '',
    status_code      INT NOT NULL DEFAULT 0,
    response         TEXT NOT NULL DEFAULT '',
    latency_ms       INT NOT NULL DEFAULT 0,
    attempt_number   INT NOT NULL DEFAULT 1,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_courier_attempts_subscription ON courier_attempts (subscription_id, created_at DESC);
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
    body             JSONB,
    sent_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    attempt_number   INT NOT NULL DEFAULT 2,
    scheduled_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
    metadata    JSONB NOT NULL DEFAULT '{}',
    occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_courier_audit_entity ON courier_audit (entity_id);
CREATE INDEX IF NOT EXISTS idx_courier_audit_tenant ON courier_audit (tenant_id, occurred_at DESC);
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
