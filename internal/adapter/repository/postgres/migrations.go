package postgres

import (
	"context"
	"database/sql"
)

// Schema bootstrap. Statements are idempotent so the scanner can run them
// on every startup.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS institutions (
		id             TEXT PRIMARY KEY,
		tenant_id      TEXT NOT NULL,
		name           TEXT NOT NULL,
		time_zone      TEXT NOT NULL,
		status         TEXT NOT NULL DEFAULT 'active',
		contact_email  TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_institutions_tenant ON institutions (tenant_id)`,

	`CREATE TABLE IF NOT EXISTS member_addresses (
		id                       TEXT PRIMARY KEY,
		tenant_id                TEXT NOT NULL,
		institution_id           TEXT NOT NULL,
		line1                    TEXT NOT NULL,
		line2                    TEXT NOT NULL DEFAULT '',
		city                     TEXT NOT NULL,
		state_or_province        TEXT NOT NULL,
		postal_code              TEXT NOT NULL,
		country_code             TEXT NOT NULL DEFAULT '',
		latitude                 DOUBLE PRECISION,
		longitude                DOUBLE PRECISION,
		is_active                BOOLEAN NOT NULL DEFAULT TRUE,
		tags                     TEXT[] NOT NULL DEFAULT '{}',
		last_matched_at          TIMESTAMPTZ,
		last_matched_listing_id  TEXT NOT NULL DEFAULT '',
		created_at               TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at               TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_member_addresses_tenant ON member_addresses (tenant_id)`,
	`CREATE INDEX IF NOT EXISTS idx_member_addresses_institution ON member_addresses (institution_id)`,
	`CREATE INDEX IF NOT EXISTS idx_member_addresses_state_active
		ON member_addresses (state_or_province) WHERE is_active`,

	`CREATE TABLE IF NOT EXISTS scan_jobs (
		id                 TEXT PRIMARY KEY,
		state_or_province  TEXT NOT NULL,
		cohorts            JSONB NOT NULL DEFAULT '[]',
		status             TEXT NOT NULL DEFAULT 'pending',
		failure_reason     TEXT NOT NULL DEFAULT '',
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		started_at         TIMESTAMPTZ,
		completed_at       TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scan_jobs_created ON scan_jobs (created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS listing_matches (
		id                       TEXT PRIMARY KEY,
		listing_id               TEXT NOT NULL,
		listing_address          TEXT NOT NULL,
		monthly_rent             DOUBLE PRECISION NOT NULL,
		listing_url              TEXT NOT NULL DEFAULT '',
		severity                 TEXT NOT NULL,
		matched_address_ids      TEXT[] NOT NULL,
		matched_tenant_ids       TEXT[] NOT NULL DEFAULT '{}',
		matched_institution_ids  TEXT[] NOT NULL DEFAULT '{}',
		detected_at              TIMESTAMPTZ NOT NULL,
		region                   TEXT NOT NULL DEFAULT '',
		metadata                 JSONB NOT NULL DEFAULT '{}'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_listing_matches_detected ON listing_matches (detected_at DESC)`,

	`CREATE TABLE IF NOT EXISTS scan_schedule (
		id           INTEGER PRIMARY KEY CHECK (id = 1),
		expression   TEXT NOT NULL,
		time_zone    TEXT NOT NULL,
		last_run_utc TIMESTAMPTZ
	)`,
}

// Migrate applies the schema bootstrap statements in order.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
