// Package sqlite implements store.Store on an embedded SQLite database.
// It uses the pure-Go modernc driver, so no cgo is required.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "modernc.org/sqlite"

	caption "github.com/Jamesmini007/AX2-Caption"
	"github.com/Jamesmini007/AX2-Caption/artifact"
	"github.com/Jamesmini007/AX2-Caption/credit"
	"github.com/Jamesmini007/AX2-Caption/id"
	"github.com/Jamesmini007/AX2-Caption/job"
	"github.com/Jamesmini007/AX2-Caption/storage"
	captionstore "github.com/Jamesmini007/AX2-Caption/store"
	"github.com/Jamesmini007/AX2-Caption/trial"
)

// compile-time interface check
var _ captionstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path. WAL mode and a busy timeout
// keep the single-writer model workable; the single connection serializes
// writes at the driver level.
func New(path string) (*Store, error) {
	dsn := path + "?" + url.Values{
		"_pragma": []string{
			"busy_timeout(30000)",
			"journal_mode(WAL)",
			"synchronous(NORMAL)",
			"foreign_keys(ON)",
		},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("caption/sqlite: open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return &Store{db: db}, nil
}

// DB returns the underlying database handle for direct access.
func (s *Store) DB() *sql.DB { return s.db }

// Migrate creates the required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("caption/sqlite: migration failed: %w", err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Balance Store ====================

func (s *Store) GetBalance(ctx context.Context, accountID string) (*credit.Balance, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT account_id, signed_in, anonymous, signed_in_granted, anonymous_granted,
		       total_charged, created_at, updated_at
		FROM balances WHERE account_id = ?`, accountID)

	var b credit.Balance
	var createdAt, updatedAt int64
	err := row.Scan(&b.AccountID, &b.SignedIn, &b.Anonymous, &b.SignedInGranted,
		&b.AnonymousGranted, &b.TotalCharged, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, caption.ErrBalanceNotFound
		}
		return nil, err
	}
	b.CreatedAt = fromNanos(createdAt)
	b.UpdatedAt = fromNanos(updatedAt)
	return &b, nil
}

func (s *Store) SaveBalance(ctx context.Context, b *credit.Balance) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO balances (account_id, signed_in, anonymous, signed_in_granted,
		                      anonymous_granted, total_charged, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			signed_in = excluded.signed_in,
			anonymous = excluded.anonymous,
			signed_in_granted = excluded.signed_in_granted,
			anonymous_granted = excluded.anonymous_granted,
			total_charged = excluded.total_charged,
			updated_at = excluded.updated_at`,
		b.AccountID, b.SignedIn, b.Anonymous, b.SignedInGranted, b.AnonymousGranted,
		b.TotalCharged, toNanos(b.CreatedAt), toNanos(b.UpdatedAt))
	return err
}

// ==================== Reservation Store ====================

func (s *Store) CreateReservation(ctx context.Context, r *credit.Reservation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reservations (id, job_id, account_id, signed_in, amount, status,
		                          reserved_at, confirmed_at, refunded_at, refund_reason,
		                          refund_amount, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.JobID.String(), r.AccountID, r.SignedIn, r.Amount,
		string(r.Status), toNanos(r.ReservedAt), nullNanos(r.ConfirmedAt),
		nullNanos(r.RefundedAt), r.RefundReason, r.RefundAmount,
		toNanos(r.CreatedAt), toNanos(r.UpdatedAt))
	return err
}

func (s *Store) GetReservation(ctx context.Context, resID id.ReservationID, jobID id.JobID) (*credit.Reservation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, job_id, account_id, signed_in, amount, status, reserved_at,
		       confirmed_at, refunded_at, refund_reason, refund_amount, created_at, updated_at
		FROM reservations WHERE id = ? AND job_id = ?`, resID.String(), jobID.String())

	r, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, caption.ErrReservationNotFound
		}
		return nil, err
	}
	return r, nil
}

func (s *Store) UpdateReservation(ctx context.Context, r *credit.Reservation) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE reservations SET status = ?, confirmed_at = ?, refunded_at = ?,
		       refund_reason = ?, refund_amount = ?, updated_at = ?
		WHERE id = ?`,
		string(r.Status), nullNanos(r.ConfirmedAt), nullNanos(r.RefundedAt),
		r.RefundReason, r.RefundAmount, toNanos(r.UpdatedAt), r.ID.String())
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return caption.ErrReservationNotFound
	}
	return nil
}

func (s *Store) ListReservations(ctx context.Context, accountID string, status credit.ReservationStatus) ([]*credit.Reservation, error) {
	query := `
		SELECT id, job_id, account_id, signed_in, amount, status, reserved_at,
		       confirmed_at, refunded_at, refund_reason, refund_amount, created_at, updated_at
		FROM reservations WHERE account_id = ?`
	args := []any{accountID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY reserved_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	result := make([]*credit.Reservation, 0)
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// ==================== History Store ====================

func (s *Store) AppendEntry(ctx context.Context, e *credit.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (id, account_id, date, type, description, amount,
		                     balance_after, job_id, reservation_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.AccountID, toNanos(e.Date), string(e.Type), e.Description,
		e.Amount, e.BalanceAfter, e.JobID.String(), e.ReservationID.String())
	return err
}

func (s *Store) ListEntries(ctx context.Context, accountID string, opts credit.ListOpts) ([]*credit.Entry, error) {
	query := `
		SELECT id, account_id, date, type, description, amount, balance_after,
		       job_id, reservation_id
		FROM entries WHERE account_id = ?`
	args := []any{accountID}
	if opts.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(opts.Type))
	}
	query += ` ORDER BY date DESC, id DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	result := make([]*credit.Entry, 0)
	for rows.Next() {
		var e credit.Entry
		var entryID, jobID, resID string
		var date int64
		var typ string
		if err := rows.Scan(&entryID, &e.AccountID, &date, &typ, &e.Description,
			&e.Amount, &e.BalanceAfter, &jobID, &resID); err != nil {
			return nil, err
		}
		e.ID = mustEntryID(entryID)
		e.Date = fromNanos(date)
		e.Type = credit.EntryType(typ)
		e.JobID = parseJobID(jobID)
		e.ReservationID = parseReservationID(resID)
		result = append(result, &e)
	}
	return result, rows.Err()
}

// ==================== Trial Store ====================

func (s *Store) GetTrialFlag(ctx context.Context, accountID string) (*trial.Flag, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT account_id, used, used_at, created_at, updated_at
		FROM trials WHERE account_id = ?`, accountID)

	var f trial.Flag
	var usedAt, createdAt, updatedAt int64
	err := row.Scan(&f.AccountID, &f.Used, &usedAt, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, caption.ErrTrialFlagNotFound
		}
		return nil, err
	}
	f.UsedAt = fromNanos(usedAt)
	f.CreatedAt = fromNanos(createdAt)
	f.UpdatedAt = fromNanos(updatedAt)
	return &f, nil
}

func (s *Store) SaveTrialFlag(ctx context.Context, f *trial.Flag) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trials (account_id, used, used_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			used = excluded.used,
			used_at = excluded.used_at,
			updated_at = excluded.updated_at`,
		f.AccountID, f.Used, toNanos(f.UsedAt), toNanos(f.CreatedAt), toNanos(f.UpdatedAt))
	return err
}

// ==================== Storage Extension Store ====================

func (s *Store) GetExtension(ctx context.Context, accountID string) (*storage.Extension, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, type, expires_at, created_at, updated_at
		FROM extensions WHERE account_id = ?`, accountID)

	var e storage.Extension
	var extID, typ string
	var expiresAt, createdAt, updatedAt int64
	err := row.Scan(&extID, &e.AccountID, &typ, &expiresAt, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, caption.ErrExtensionNotFound
		}
		return nil, err
	}
	e.ID = parseExtensionID(extID)
	e.Type = storage.ExtensionType(typ)
	e.ExpiresAt = fromNanos(expiresAt)
	e.CreatedAt = fromNanos(createdAt)
	e.UpdatedAt = fromNanos(updatedAt)
	return &e, nil
}

func (s *Store) SaveExtension(ctx context.Context, e *storage.Extension) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO extensions (account_id, id, type, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			id = excluded.id,
			type = excluded.type,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		e.AccountID, e.ID.String(), string(e.Type), toNanos(e.ExpiresAt),
		toNanos(e.CreatedAt), toNanos(e.UpdatedAt))
	return err
}

func (s *Store) DeleteExtension(ctx context.Context, accountID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM extensions WHERE account_id = ?`, accountID)
	return err
}

// ==================== Job Store ====================

func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	targets, err := json.Marshal(j.TargetLanguages)
	if err != nil {
		return err
	}
	degraded, err := json.Marshal(j.DegradedFrom)
	if err != nil {
		return err
	}
	failedLangs, err := json.Marshal(j.FailedLanguages)
	if err != nil {
		return err
	}
	artIDs, err := json.Marshal(j.ArtifactIDs)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, account_id, signed_in, title, duration_seconds, size_bytes,
		                  source_language, target_languages, free_trial, status, stage,
		                  reservation_id, reserved, degraded_from, failure_reason,
		                  failed_languages, artifact_ids, started_at, completed_at,
		                  created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID.String(), j.AccountID, j.SignedIn, j.Title, j.DurationSeconds, j.SizeBytes,
		j.SourceLanguage, string(targets), j.FreeTrial, string(j.Status), string(j.Stage),
		j.ReservationID.String(), j.Reserved, string(degraded), j.FailureReason,
		string(failedLangs), string(artIDs), nullNanos(j.StartedAt),
		nullNanos(j.CompletedAt), toNanos(j.CreatedAt), toNanos(j.UpdatedAt))
	return err
}

func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, signed_in, title, duration_seconds, size_bytes,
		       source_language, target_languages, free_trial, status, stage,
		       reservation_id, reserved, degraded_from, failure_reason,
		       failed_languages, artifact_ids, started_at, completed_at,
		       created_at, updated_at
		FROM jobs WHERE id = ?`, jobID.String())

	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, caption.ErrJobNotFound
		}
		return nil, err
	}
	return j, nil
}

func (s *Store) UpdateJob(ctx context.Context, j *job.Job) error {
	failedLangs, err := json.Marshal(j.FailedLanguages)
	if err != nil {
		return err
	}
	artIDs, err := json.Marshal(j.ArtifactIDs)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET source_language = ?, status = ?, stage = ?, failure_reason = ?,
		       failed_languages = ?, artifact_ids = ?, started_at = ?, completed_at = ?,
		       updated_at = ?
		WHERE id = ?`,
		j.SourceLanguage, string(j.Status), string(j.Stage), j.FailureReason,
		string(failedLangs), string(artIDs), nullNanos(j.StartedAt),
		nullNanos(j.CompletedAt), toNanos(j.UpdatedAt), j.ID.String())
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return caption.ErrJobNotFound
	}
	return nil
}

func (s *Store) ListJobs(ctx context.Context, accountID string, opts job.ListOpts) ([]*job.Job, error) {
	query := `
		SELECT id, account_id, signed_in, title, duration_seconds, size_bytes,
		       source_language, target_languages, free_trial, status, stage,
		       reservation_id, reserved, degraded_from, failure_reason,
		       failed_languages, artifact_ids, started_at, completed_at,
		       created_at, updated_at
		FROM jobs WHERE account_id = ?`
	args := []any{accountID}
	if opts.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(opts.Status))
	}
	query += ` ORDER BY created_at DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	result := make([]*job.Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, j)
	}
	return result, rows.Err()
}

// ==================== Artifact Store ====================

func (s *Store) CreateArtifact(ctx context.Context, a *artifact.Artifact) error {
	segments, err := json.Marshal(a.Segments)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO artifacts (id, job_id, account_id, title, duration_seconds, size_bytes,
		                       language, original, segments, downloadable,
		                       free_trial, blob_key, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID.String(), a.JobID.String(), a.AccountID, a.Title, a.DurationSeconds,
		a.SizeBytes, a.Language, a.Original, string(segments),
		a.Downloadable, a.FreeTrial, a.BlobKey, nullNanos(a.ExpiresAt),
		toNanos(a.CreatedAt), toNanos(a.UpdatedAt))
	return err
}

func (s *Store) GetArtifact(ctx context.Context, artID id.ArtifactID) (*artifact.Artifact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, job_id, account_id, title, duration_seconds, size_bytes,
		       language, original, segments, downloadable, free_trial,
		       blob_key, expires_at, created_at, updated_at
		FROM artifacts WHERE id = ?`, artID.String())

	a, err := scanArtifact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, caption.ErrArtifactNotFound
		}
		return nil, err
	}
	return a, nil
}

func (s *Store) DeleteArtifact(ctx context.Context, artID id.ArtifactID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE id = ?`, artID.String())
	return err
}

func (s *Store) ListArtifacts(ctx context.Context, accountID string, opts artifact.ListOpts) ([]*artifact.Artifact, error) {
	query := `
		SELECT id, job_id, account_id, title, duration_seconds, size_bytes,
		       language, original, segments, downloadable, free_trial,
		       blob_key, expires_at, created_at, updated_at
		FROM artifacts WHERE account_id = ? ORDER BY created_at DESC`
	args := []any{accountID}
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	result := make([]*artifact.Artifact, 0)
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (s *Store) ListExpiredArtifacts(ctx context.Context, before time.Time) ([]*artifact.Artifact, error) {
	// Artifacts with a NULL expiry are retained indefinitely.
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, account_id, title, duration_seconds, size_bytes,
		       language, original, segments, downloadable, free_trial,
		       blob_key, expires_at, created_at, updated_at
		FROM artifacts WHERE expires_at IS NOT NULL AND expires_at < ?`, toNanos(before))
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	result := make([]*artifact.Artifact, 0)
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (s *Store) SumArtifactBytes(ctx context.Context, accountID string) (int64, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(size_bytes), 0) FROM artifacts WHERE account_id = ?`, accountID)

	var total int64
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
