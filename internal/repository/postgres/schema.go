package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DDL идемпотентен: сервис накатывает схему при каждом старте.
// UNIQUE (from_agent, to_agent) — опора инварианта "одна строка на пару"
// и цель ON CONFLICT в Upsert.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS a2a_policies (
	id                UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	from_agent        TEXT NOT NULL,
	to_agent          TEXT NOT NULL,
	allowed_actions   JSONB NOT NULL DEFAULT '[]'::jsonb,
	constraints       JSONB NOT NULL DEFAULT '{}'::jsonb,
	status            TEXT NOT NULL DEFAULT 'active',
	issued_by         TEXT NOT NULL,
	valid_from        TIMESTAMPTZ,
	valid_until       TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	revoked_at        TIMESTAMPTZ,
	revocation_reason TEXT,
	UNIQUE (from_agent, to_agent)
);

CREATE INDEX IF NOT EXISTS idx_a2a_policies_from ON a2a_policies (from_agent, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_a2a_policies_to   ON a2a_policies (to_agent, created_at DESC);

CREATE TABLE IF NOT EXISTS a2a_audit_log (
	id         BIGSERIAL PRIMARY KEY,
	timestamp  TIMESTAMPTZ NOT NULL DEFAULT now(),
	from_agent TEXT NOT NULL,
	to_agent   TEXT NOT NULL,
	action     TEXT NOT NULL DEFAULT 'check',
	result     TEXT NOT NULL,
	policy_id  UUID,
	metadata   JSONB NOT NULL DEFAULT '{}'::jsonb
);

CREATE INDEX IF NOT EXISTS idx_a2a_audit_ts   ON a2a_audit_log (timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_a2a_audit_from ON a2a_audit_log (from_agent, timestamp DESC);
`

// EnsureSchema накатывает таблицы реестра при старте.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("postgres: schema init failed: %w", err)
	}
	return nil
}
