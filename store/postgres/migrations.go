package postgres

// migrations are applied in order on every start; all statements are
// idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS balances (
		account_id        TEXT PRIMARY KEY,
		signed_in         BIGINT NOT NULL DEFAULT 0,
		anonymous         BIGINT NOT NULL DEFAULT 0,
		signed_in_granted BOOLEAN NOT NULL DEFAULT FALSE,
		anonymous_granted BOOLEAN NOT NULL DEFAULT FALSE,
		total_charged     BIGINT NOT NULL DEFAULT 0,
		created_at        TIMESTAMPTZ NOT NULL,
		updated_at        TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS reservations (
		id            TEXT PRIMARY KEY,
		job_id        TEXT NOT NULL,
		account_id    TEXT NOT NULL,
		signed_in     BOOLEAN NOT NULL DEFAULT FALSE,
		amount        BIGINT NOT NULL,
		status        TEXT NOT NULL,
		reserved_at   TIMESTAMPTZ NOT NULL,
		confirmed_at  TIMESTAMPTZ,
		refunded_at   TIMESTAMPTZ,
		refund_reason TEXT NOT NULL DEFAULT '',
		refund_amount BIGINT NOT NULL DEFAULT 0,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_account ON reservations(account_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_job ON reservations(job_id)`,

	`CREATE TABLE IF NOT EXISTS entries (
		id             TEXT PRIMARY KEY,
		account_id     TEXT NOT NULL,
		date           TIMESTAMPTZ NOT NULL,
		type           TEXT NOT NULL,
		description    TEXT NOT NULL DEFAULT '',
		amount         BIGINT NOT NULL,
		balance_after  BIGINT NOT NULL,
		job_id         TEXT NOT NULL DEFAULT '',
		reservation_id TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_account_date ON entries(account_id, date DESC)`,

	`CREATE TABLE IF NOT EXISTS trials (
		account_id TEXT PRIMARY KEY,
		used       BOOLEAN NOT NULL DEFAULT FALSE,
		used_at    TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS extensions (
		account_id TEXT PRIMARY KEY,
		id         TEXT NOT NULL,
		type       TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS jobs (
		id               TEXT PRIMARY KEY,
		account_id       TEXT NOT NULL,
		signed_in        BOOLEAN NOT NULL DEFAULT FALSE,
		title            TEXT NOT NULL DEFAULT '',
		duration_seconds DOUBLE PRECISION NOT NULL,
		size_bytes       BIGINT NOT NULL DEFAULT 0,
		source_language  TEXT NOT NULL DEFAULT '',
		target_languages JSONB NOT NULL DEFAULT '[]',
		free_trial       BOOLEAN NOT NULL DEFAULT FALSE,
		status           TEXT NOT NULL,
		stage            TEXT NOT NULL DEFAULT '',
		reservation_id   TEXT NOT NULL DEFAULT '',
		reserved         BIGINT NOT NULL DEFAULT 0,
		degraded_from    JSONB NOT NULL DEFAULT 'null',
		failure_reason   TEXT NOT NULL DEFAULT '',
		failed_languages JSONB NOT NULL DEFAULT 'null',
		artifact_ids     JSONB NOT NULL DEFAULT 'null',
		started_at       TIMESTAMPTZ,
		completed_at     TIMESTAMPTZ,
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_account ON jobs(account_id, status)`,

	`CREATE TABLE IF NOT EXISTS artifacts (
		id               TEXT PRIMARY KEY,
		job_id           TEXT NOT NULL,
		account_id       TEXT NOT NULL,
		title            TEXT NOT NULL DEFAULT '',
		duration_seconds DOUBLE PRECISION NOT NULL,
		size_bytes       BIGINT NOT NULL DEFAULT 0,
		language         TEXT NOT NULL DEFAULT '',
		original         BOOLEAN NOT NULL DEFAULT FALSE,
		segments         JSONB NOT NULL DEFAULT 'null',
		downloadable     BOOLEAN NOT NULL DEFAULT TRUE,
		free_trial       BOOLEAN NOT NULL DEFAULT FALSE,
		blob_key         TEXT NOT NULL DEFAULT '',
		expires_at       TIMESTAMPTZ,
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_artifacts_account ON artifacts(account_id)`,
	`CREATE INDEX IF NOT EXISTS idx_artifacts_expiry ON artifacts(expires_at)`,
}
