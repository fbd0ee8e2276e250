package sqlite

// migrations are applied in order on every start; all statements are
// idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS balances (
		account_id        TEXT PRIMARY KEY,
		signed_in         INTEGER NOT NULL DEFAULT 0,
		anonymous         INTEGER NOT NULL DEFAULT 0,
		signed_in_granted INTEGER NOT NULL DEFAULT 0,
		anonymous_granted INTEGER NOT NULL DEFAULT 0,
		total_charged     INTEGER NOT NULL DEFAULT 0,
		created_at        INTEGER NOT NULL,
		updated_at        INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS reservations (
		id            TEXT PRIMARY KEY,
		job_id        TEXT NOT NULL,
		account_id    TEXT NOT NULL,
		signed_in     INTEGER NOT NULL DEFAULT 0,
		amount        INTEGER NOT NULL,
		status        TEXT NOT NULL,
		reserved_at   INTEGER NOT NULL,
		confirmed_at  INTEGER,
		refunded_at   INTEGER,
		refund_reason TEXT NOT NULL DEFAULT '',
		refund_amount INTEGER NOT NULL DEFAULT 0,
		created_at    INTEGER NOT NULL,
		updated_at    INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_account ON reservations(account_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_job ON reservations(job_id)`,

	`CREATE TABLE IF NOT EXISTS entries (
		id             TEXT PRIMARY KEY,
		account_id     TEXT NOT NULL,
		date           INTEGER NOT NULL,
		type           TEXT NOT NULL,
		description    TEXT NOT NULL DEFAULT '',
		amount         INTEGER NOT NULL,
		balance_after  INTEGER NOT NULL,
		job_id         TEXT NOT NULL DEFAULT '',
		reservation_id TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_account_date ON entries(account_id, date DESC)`,

	`CREATE TABLE IF NOT EXISTS trials (
		account_id TEXT PRIMARY KEY,
		used       INTEGER NOT NULL DEFAULT 0,
		used_at    INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS extensions (
		account_id TEXT PRIMARY KEY,
		id         TEXT NOT NULL,
		type       TEXT NOT NULL,
		expires_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS jobs (
		id               TEXT PRIMARY KEY,
		account_id       TEXT NOT NULL,
		signed_in        INTEGER NOT NULL DEFAULT 0,
		title            TEXT NOT NULL DEFAULT '',
		duration_seconds REAL NOT NULL,
		size_bytes       INTEGER NOT NULL DEFAULT 0,
		source_language  TEXT NOT NULL DEFAULT '',
		target_languages TEXT NOT NULL DEFAULT '[]',
		free_trial       INTEGER NOT NULL DEFAULT 0,
		status           TEXT NOT NULL,
		stage            TEXT NOT NULL DEFAULT '',
		reservation_id   TEXT NOT NULL DEFAULT '',
		reserved         INTEGER NOT NULL DEFAULT 0,
		degraded_from    TEXT NOT NULL DEFAULT 'null',
		failure_reason   TEXT NOT NULL DEFAULT '',
		failed_languages TEXT NOT NULL DEFAULT 'null',
		artifact_ids     TEXT NOT NULL DEFAULT 'null',
		started_at       INTEGER,
		completed_at     INTEGER,
		created_at       INTEGER NOT NULL,
		updated_at       INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_account ON jobs(account_id, status)`,

	`CREATE TABLE IF NOT EXISTS artifacts (
		id               TEXT PRIMARY KEY,
		job_id           TEXT NOT NULL,
		account_id       TEXT NOT NULL,
		title            TEXT NOT NULL DEFAULT '',
		duration_seconds REAL NOT NULL,
		size_bytes       INTEGER NOT NULL DEFAULT 0,
		language         TEXT NOT NULL DEFAULT '',
		original         INTEGER NOT NULL DEFAULT 0,
		segments         TEXT NOT NULL DEFAULT 'null',
		downloadable     INTEGER NOT NULL DEFAULT 1,
		free_trial       INTEGER NOT NULL DEFAULT 0,
		blob_key         TEXT NOT NULL DEFAULT '',
		expires_at       INTEGER,
		created_at       INTEGER NOT NULL,
		updated_at       INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_artifacts_account ON artifacts(account_id)`,
	`CREATE INDEX IF NOT EXISTS idx_artifacts_expiry ON artifacts(expires_at)`,
}
