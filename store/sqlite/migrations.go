package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the reconcile store (SQLite).
var Migrations = migrate.NewGroup("reconcile")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_reconcile_profiles",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS reconcile_profiles (
    id               TEXT PRIMARY KEY,
    display_name     TEXT NOT NULL DEFAULT '',
    phone            TEXT NOT NULL DEFAULT '',
    address          TEXT NOT NULL DEFAULT '',
    balance_amount   INTEGER NOT NULL DEFAULT 0,
    balance_currency TEXT NOT NULL DEFAULT '',
    lifetime_amount  INTEGER NOT NULL DEFAULT 0,
    editable         INTEGER NOT NULL DEFAULT 1,
    created_at       TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at       TEXT NOT NULL DEFAULT (datetime('now'))
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS reconcile_profiles`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_reconcile_orders",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS reconcile_orders (
    id            TEXT PRIMARY KEY,
    profile_id    TEXT NOT NULL DEFAULT '',
    kind          TEXT NOT NULL DEFAULT '',
    details       TEXT NOT NULL DEFAULT '',
    payment_mode  TEXT NOT NULL DEFAULT 'cash',
    paid_amount   INTEGER NOT NULL DEFAULT 0,
    paid_currency TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL DEFAULT 'pending',
    handle        TEXT NOT NULL DEFAULT '',
    replied       INTEGER NOT NULL DEFAULT 0,
    resolved      INTEGER NOT NULL DEFAULT 0,
    created_at    TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at    TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_reconcile_orders_profile ON reconcile_orders (profile_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_reconcile_orders_handle ON reconcile_orders (handle) WHERE handle != '';
CREATE INDEX IF NOT EXISTS idx_reconcile_orders_resolved ON reconcile_orders (profile_id, resolved);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS reconcile_orders`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_reconcile_charges",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS reconcile_charges (
    id                 TEXT PRIMARY KEY,
    profile_id         TEXT NOT NULL DEFAULT '',
    requested_amount   INTEGER NOT NULL DEFAULT 0,
    requested_currency TEXT NOT NULL DEFAULT '',
    method             TEXT NOT NULL DEFAULT '',
    status             TEXT NOT NULL DEFAULT 'pending',
    handle             TEXT NOT NULL DEFAULT '',
    resolved           INTEGER NOT NULL DEFAULT 0,
    created_at         TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at         TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_reconcile_charges_profile ON reconcile_charges (profile_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_reconcile_charges_handle ON reconcile_charges (handle) WHERE handle != '';
CREATE INDEX IF NOT EXISTS idx_reconcile_charges_resolved ON reconcile_charges (profile_id, resolved);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS reconcile_charges`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_reconcile_notifications",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS reconcile_notifications (
    id         TEXT PRIMARY KEY,
    profile_id TEXT NOT NULL DEFAULT '',
    text       TEXT NOT NULL DEFAULT '',
    read       INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_reconcile_notifications_profile ON reconcile_notifications (profile_id, read);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS reconcile_notifications`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_reconcile_cursors",
			Version: "20240101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS reconcile_cursors (
    channel    TEXT PRIMARY KEY,
    position   INTEGER NOT NULL DEFAULT 0,
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS reconcile_cursors`)
				return err
			},
		},
	)
}
