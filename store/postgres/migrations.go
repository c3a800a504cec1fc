package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the bnpl store.
var Migrations = migrate.NewGroup("bnpl")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_bnpl_credit",
			Version: "20260301000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bnpl_credit_accounts (
    id                TEXT PRIMARY KEY,
    owner             TEXT NOT NULL,
    credit_limit      BIGINT NOT NULL DEFAULT 0,
    used              BIGINT NOT NULL DEFAULT 0,
    health_factor     BIGINT NOT NULL DEFAULT 0,
    score             BIGINT NOT NULL DEFAULT 0,
    billing_cycle_day INT NOT NULL DEFAULT 1,
    status            TEXT NOT NULL DEFAULT 'active',
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_bnpl_accounts_owner ON bnpl_credit_accounts (owner);
CREATE INDEX IF NOT EXISTS idx_bnpl_accounts_status ON bnpl_credit_accounts (status, owner);

CREATE TABLE IF NOT EXISTS bnpl_risk_configs (
    id                     TEXT PRIMARY KEY,
    min_hf_for_charges     BIGINT NOT NULL DEFAULT 0,
    min_hf_for_withdraw    BIGINT NOT NULL DEFAULT 0,
    penalty_rate_daily_bps BIGINT NOT NULL DEFAULT 0,
    late_fee_bps           BIGINT NOT NULL DEFAULT 0,
    grace_volatile_days    INT NOT NULL DEFAULT 0,
    grace_any_days         INT NOT NULL DEFAULT 0,
    min_payment_bps        BIGINT NOT NULL DEFAULT 0,
    admin                  TEXT NOT NULL,
    created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS bnpl_statements (
    id          TEXT PRIMARY KEY,
    owner       TEXT NOT NULL,
    cycle_id    TEXT NOT NULL,
    total_due   BIGINT NOT NULL DEFAULT 0,
    min_payment BIGINT NOT NULL DEFAULT 0,
    due_date    TIMESTAMPTZ NOT NULL,
    closed_at   TIMESTAMPTZ NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_bnpl_statements_cycle ON bnpl_statements (owner, cycle_id);
CREATE INDEX IF NOT EXISTS idx_bnpl_statements_closed ON bnpl_statements (owner, closed_at DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS bnpl_statements;
DROP TABLE IF EXISTS bnpl_risk_configs;
DROP TABLE IF EXISTS bnpl_credit_accounts;
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_bnpl_notes",
			Version: "20260301000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bnpl_notes (
    id          TEXT PRIMARY KEY,
    order_id    TEXT NOT NULL,
    idx         INT NOT NULL,
    merchant    TEXT NOT NULL,
    beneficiary TEXT NOT NULL,
    buyer       TEXT NOT NULL,
    amount      BIGINT NOT NULL,
    due_at      TIMESTAMPTZ NOT NULL,
    status      INT NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_bnpl_notes_order_idx ON bnpl_notes (order_id, idx);
CREATE INDEX IF NOT EXISTS idx_bnpl_notes_status_due ON bnpl_notes (status, due_at);
CREATE INDEX IF NOT EXISTS idx_bnpl_notes_buyer ON bnpl_notes (buyer);
CREATE INDEX IF NOT EXISTS idx_bnpl_notes_beneficiary ON bnpl_notes (beneficiary);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bnpl_notes`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_bnpl_vault",
			Version: "20260301000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bnpl_positions (
    id         TEXT PRIMARY KEY,
    owner      TEXT NOT NULL,
    asset      TEXT NOT NULL,
    amount     BIGINT NOT NULL DEFAULT 0,
    ltv        BIGINT NOT NULL DEFAULT 0,
    valuation  BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_bnpl_positions_owner_asset ON bnpl_positions (owner, asset);

CREATE TABLE IF NOT EXISTS bnpl_vault_configs (
    id                TEXT PRIMARY KEY,
    oracle_primary    TEXT NOT NULL,
    oracle_fallback   TEXT NOT NULL DEFAULT '',
    slippage_max      BIGINT NOT NULL DEFAULT 0,
    oracle_max_age_ms BIGINT NOT NULL DEFAULT 0,
    admin             TEXT NOT NULL,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS bnpl_vault_configs;
DROP TABLE IF EXISTS bnpl_positions;
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_bnpl_pools",
			Version: "20260301000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bnpl_pools (
    id                TEXT PRIMARY KEY,
    custody           TEXT NOT NULL,
    guarantee_reserve BIGINT NOT NULL DEFAULT 0,
    admin             TEXT NOT NULL,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bnpl_pools`)
				return err
			},
		},
	)
}
