// Package postgres implements store.Store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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

// Store implements store.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database at databaseURL.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("caption/postgres: connect: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool wraps an existing connection pool.
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the underlying connection pool for direct access.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Migrate creates the required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("caption/postgres: migration failed: %w", err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// ==================== Balance Store ====================

func (s *Store) GetBalance(ctx context.Context, accountID string) (*credit.Balance, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT account_id, signed_in, anonymous, signed_in_granted, anonymous_granted,
		       total_charged, created_at, updated_at
		FROM balances WHERE account_id = $1`, accountID)

	var b credit.Balance
	err := row.Scan(&b.AccountID, &b.SignedIn, &b.Anonymous, &b.SignedInGranted,
		&b.AnonymousGranted, &b.TotalCharged, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, caption.ErrBalanceNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (s *Store) SaveBalance(ctx context.Context, b *credit.Balance) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO balances (account_id, signed_in, anonymous, signed_in_granted,
		                      anonymous_granted, total_charged, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (account_id) DO UPDATE SET
			signed_in = EXCLUDED.signed_in,
			anonymous = EXCLUDED.anonymous,
			signed_in_granted = EXCLUDED.signed_in_granted,
			anonymous_granted = EXCLUDED.anonymous_granted,
			total_charged = EXCLUDED.total_charged,
			updated_at = EXCLUDED.updated_at`,
		b.AccountID, b.SignedIn, b.Anonymous, b.SignedInGranted, b.AnonymousGranted,
		b.TotalCharged, b.CreatedAt, b.UpdatedAt)
	return err
}

// ==================== Reservation Store ====================

func (s *Store) CreateReservation(ctx context.Context, r *credit.Reservation) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reservations (id, job_id, account_id, signed_in, amount, status,
		                          reserved_at, confirmed_at, refunded_at, refund_reason,
		                          refund_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		r.ID.String(), r.JobID.String(), r.AccountID, r.SignedIn, r.Amount,
		string(r.Status), r.ReservedAt, r.ConfirmedAt, r.RefundedAt, r.RefundReason,
		r.RefundAmount, r.CreatedAt, r.UpdatedAt)
	return err
}

func (s *Store) GetReservation(ctx context.Context, resID id.ReservationID, jobID id.JobID) (*credit.Reservation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, job_id, account_id, signed_in, amount, status, reserved_at,
		       confirmed_at, refunded_at, refund_reason, refund_amount, created_at, updated_at
		FROM reservations WHERE id = $1 AND job_id = $2`, resID.String(), jobID.String())

	r, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, caption.ErrReservationNotFound
		}
		return nil, err
	}
	return r, nil
}

func (s *Store) UpdateReservation(ctx context.Context, r *credit.Reservation) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE reservations SET status = $1, confirmed_at = $2, refunded_at = $3,
		       refund_reason = $4, refund_amount = $5, updated_at = $6
		WHERE id = $7`,
		string(r.Status), r.ConfirmedAt, r.RefundedAt, r.RefundReason,
		r.RefundAmount, r.UpdatedAt, r.ID.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return caption.ErrReservationNotFound
	}
	return nil
}

func (s *Store) ListReservations(ctx context.Context, accountID string, status credit.ReservationStatus) ([]*credit.Reservation, error) {
	query := `
		SELECT id, job_id, account_id, signed_in, amount, status, reserved_at,
		       confirmed_at, refunded_at, refund_reason, refund_amount, created_at, updated_at
		FROM reservations WHERE account_id = $1`
	args := []any{accountID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, string(status))
	}
	query += ` ORDER BY reserved_at ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

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
	_, err := s.pool.Exec(ctx, `
		INSERT INTO entries (id, account_id, date, type, description, amount,
		                     balance_after, job_id, reservation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID.String(), e.AccountID, e.Date, string(e.Type), e.Description,
		e.Amount, e.BalanceAfter, e.JobID.String(), e.ReservationID.String())
	return err
}

func (s *Store) ListEntries(ctx context.Context, accountID string, opts credit.ListOpts) ([]*credit.Entry, error) {
	query := `
		SELECT id, account_id, date, type, description, amount, balance_after,
		       job_id, reservation_id
		FROM entries WHERE account_id = $1`
	args := []any{accountID}
	n := 2
	if opts.Type != "" {
		query += fmt.Sprintf(` AND type = $%d`, n)
		args = append(args, string(opts.Type))
		n++
	}
	query += ` ORDER BY date DESC, id DESC`
	if opts.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, n)
		args = append(args, opts.Limit)
		n++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, n)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*credit.Entry, 0)
	for rows.Next() {
		var e credit.Entry
		var entryID, typ, jobID, resID string
		if err := rows.Scan(&entryID, &e.AccountID, &e.Date, &typ, &e.Description,
			&e.Amount, &e.BalanceAfter, &jobID, &resID); err != nil {
			return nil, err
		}
		e.ID = parseID(entryID)
		e.Type = credit.EntryType(typ)
		e.JobID = parseID(jobID)
		e.ReservationID = parseID(resID)
		result = append(result, &e)
	}
	return result, rows.Err()
}

// ==================== Trial Store ====================

func (s *Store) GetTrialFlag(ctx context.Context, accountID string) (*trial.Flag, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT account_id, used, used_at, created_at, updated_at
		FROM trials WHERE account_id = $1`, accountID)

	var f trial.Flag
	err := row.Scan(&f.AccountID, &f.Used, &f.UsedAt, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, caption.ErrTrialFlagNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (s *Store) SaveTrialFlag(ctx context.Context, f *trial.Flag) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO trials (account_id, used, used_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_id) DO UPDATE SET
			used = EXCLUDED.used,
			used_at = EXCLUDED.used_at,
			updated_at = EXCLUDED.updated_at`,
		f.AccountID, f.Used, f.UsedAt, f.CreatedAt, f.UpdatedAt)
	return err
}

// ==================== Storage Extension Store ====================

func (s *Store) GetExtension(ctx context.Context, accountID string) (*storage.Extension, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, account_id, type, expires_at, created_at, updated_at
		FROM extensions WHERE account_id = $1`, accountID)

	var e storage.Extension
	var extID, typ string
	err := row.Scan(&extID, &e.AccountID, &typ, &e.ExpiresAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, caption.ErrExtensionNotFound
		}
		return nil, err
	}
	e.ID = parseID(extID)
	e.Type = storage.ExtensionType(typ)
	return &e, nil
}

func (s *Store) SaveExtension(ctx context.Context, e *storage.Extension) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO extensions (account_id, id, type, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account_id) DO UPDATE SET
			id = EXCLUDED.id,
			type = EXCLUDED.type,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at`,
		e.AccountID, e.ID.String(), string(e.Type), e.ExpiresAt, e.CreatedAt, e.UpdatedAt)
	return err
}

func (s *Store) DeleteExtension(ctx context.Context, accountID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM extensions WHERE account_id = $1`, accountID)
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

	_, err = s.pool.Exec(ctx, `
		INSERT INTO jobs (id, account_id, signed_in, title, duration_seconds, size_bytes,
		                  source_language, target_languages, free_trial, status, stage,
		                  reservation_id, reserved, degraded_from, failure_reason,
		                  failed_languages, artifact_ids, started_at, completed_at,
		                  created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
		        $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		j.ID.String(), j.AccountID, j.SignedIn, j.Title, j.DurationSeconds, j.SizeBytes,
		j.SourceLanguage, targets, j.FreeTrial, string(j.Status), string(j.Stage),
		j.ReservationID.String(), j.Reserved, degraded, j.FailureReason,
		failedLangs, artIDs, j.StartedAt, j.CompletedAt,
		j.CreatedAt, j.UpdatedAt)
	return err
}

func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, account_id, signed_in, title, duration_seconds, size_bytes,
		       source_language, target_languages, free_trial, status, stage,
		       reservation_id, reserved, degraded_from, failure_reason,
		       failed_languages, artifact_ids, started_at, completed_at,
		       created_at, updated_at
		FROM jobs WHERE id = $1`, jobID.String())

	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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

	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET source_language = $1, status = $2, stage = $3, failure_reason = $4,
		       failed_languages = $5, artifact_ids = $6, started_at = $7, completed_at = $8,
		       updated_at = $9
		WHERE id = $10`,
		j.SourceLanguage, string(j.Status), string(j.Stage), j.FailureReason,
		failedLangs, artIDs, j.StartedAt, j.CompletedAt,
		j.UpdatedAt, j.ID.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
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
		FROM jobs WHERE account_id = $1`
	args := []any{accountID}
	n := 2
	if opts.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, n)
		args = append(args, string(opts.Status))
		n++
	}
	query += ` ORDER BY created_at DESC`
	if opts.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, n)
		args = append(args, opts.Limit)
		n++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, n)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

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

	_, err = s.pool.Exec(ctx, `
		INSERT INTO artifacts (id, job_id, account_id, title, duration_seconds, size_bytes,
		                       language, original, segments, downloadable,
		                       free_trial, blob_key, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		a.ID.String(), a.JobID.String(), a.AccountID, a.Title, a.DurationSeconds,
		a.SizeBytes, a.Language, a.Original, segments, a.Downloadable,
		a.FreeTrial, a.BlobKey, a.ExpiresAt, a.CreatedAt, a.UpdatedAt)
	return err
}

func (s *Store) GetArtifact(ctx context.Context, artID id.ArtifactID) (*artifact.Artifact, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, job_id, account_id, title, duration_seconds, size_bytes,
		       language, original, segments, downloadable, free_trial,
		       blob_key, expires_at, created_at, updated_at
		FROM artifacts WHERE id = $1`, artID.String())

	a, err := scanArtifact(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, caption.ErrArtifactNotFound
		}
		return nil, err
	}
	return a, nil
}

func (s *Store) DeleteArtifact(ctx context.Context, artID id.ArtifactID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM artifacts WHERE id = $1`, artID.String())
	return err
}

func (s *Store) ListArtifacts(ctx context.Context, accountID string, opts artifact.ListOpts) ([]*artifact.Artifact, error) {
	query := `
		SELECT id, job_id, account_id, title, duration_seconds, size_bytes,
		       language, original, segments, downloadable, free_trial,
		       blob_key, expires_at, created_at, updated_at
		FROM artifacts WHERE account_id = $1 ORDER BY created_at DESC`
	args := []any{accountID}
	n := 2
	if opts.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, n)
		args = append(args, opts.Limit)
		n++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, n)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

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
	rows, err := s.pool.Query(ctx, `
		SELECT id, job_id, account_id, title, duration_seconds, size_bytes,
		       language, original, segments, downloadable, free_trial,
		       blob_key, expires_at, created_at, updated_at
		FROM artifacts WHERE expires_at IS NOT NULL AND expires_at < $1`, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

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
	row := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(size_bytes), 0) FROM artifacts WHERE account_id = $1`, accountID)

	var total int64
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
