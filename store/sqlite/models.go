package sqlite

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/Jamesmini007/AX2-Caption/artifact"
	"github.com/Jamesmini007/AX2-Caption/credit"
	"github.com/Jamesmini007/AX2-Caption/id"
	"github.com/Jamesmini007/AX2-Caption/job"
)

// scanner abstracts *sql.Row and *sql.Rows so one scan helper serves both.
type scanner interface {
	Scan(dest ...any) error
}

// Timestamps are stored as unix nanoseconds; zero means "not set".

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func nullNanos(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

func fromNullNanos(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(0, n.Int64).UTC()
	return &t
}

// IDs are stored as their text form; the empty string means the nil ID.

func parseJobID(s string) id.JobID {
	if s == "" {
		return id.Nil
	}
	v, err := id.ParseJobID(s)
	if err != nil {
		return id.Nil
	}
	return v
}

func parseReservationID(s string) id.ReservationID {
	if s == "" {
		return id.Nil
	}
	v, err := id.ParseReservationID(s)
	if err != nil {
		return id.Nil
	}
	return v
}

func parseArtifactID(s string) id.ArtifactID {
	if s == "" {
		return id.Nil
	}
	v, err := id.ParseArtifactID(s)
	if err != nil {
		return id.Nil
	}
	return v
}

func parseExtensionID(s string) id.ExtensionID {
	if s == "" {
		return id.Nil
	}
	v, err := id.ParseExtensionID(s)
	if err != nil {
		return id.Nil
	}
	return v
}

func mustEntryID(s string) id.EntryID {
	v, err := id.ParseEntryID(s)
	if err != nil {
		return id.Nil
	}
	return v
}

func scanReservation(sc scanner) (*credit.Reservation, error) {
	var r credit.Reservation
	var resID, jobID, status string
	var reservedAt, createdAt, updatedAt int64
	var confirmedAt, refundedAt sql.NullInt64

	err := sc.Scan(&resID, &jobID, &r.AccountID, &r.SignedIn, &r.Amount, &status,
		&reservedAt, &confirmedAt, &refundedAt, &r.RefundReason, &r.RefundAmount,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	r.ID = parseReservationID(resID)
	r.JobID = parseJobID(jobID)
	r.Status = credit.ReservationStatus(status)
	r.ReservedAt = fromNanos(reservedAt)
	r.ConfirmedAt = fromNullNanos(confirmedAt)
	r.RefundedAt = fromNullNanos(refundedAt)
	r.CreatedAt = fromNanos(createdAt)
	r.UpdatedAt = fromNanos(updatedAt)
	return &r, nil
}

func scanJob(sc scanner) (*job.Job, error) {
	var j job.Job
	var jobID, targets, status, stage, resID, degraded, failedLangs, artIDs string
	var startedAt, completedAt sql.NullInt64
	var createdAt, updatedAt int64

	err := sc.Scan(&jobID, &j.AccountID, &j.SignedIn, &j.Title, &j.DurationSeconds,
		&j.SizeBytes, &j.SourceLanguage, &targets, &j.FreeTrial, &status, &stage,
		&resID, &j.Reserved, &degraded, &j.FailureReason, &failedLangs, &artIDs,
		&startedAt, &completedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	j.ID = parseJobID(jobID)
	j.Status = job.Status(status)
	j.Stage = job.Stage(stage)
	j.ReservationID = parseReservationID(resID)
	j.StartedAt = fromNullNanos(startedAt)
	j.CompletedAt = fromNullNanos(completedAt)
	j.CreatedAt = fromNanos(createdAt)
	j.UpdatedAt = fromNanos(updatedAt)

	if err := json.Unmarshal([]byte(targets), &j.TargetLanguages); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(degraded), &j.DegradedFrom); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(failedLangs), &j.FailedLanguages); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(artIDs), &j.ArtifactIDs); err != nil {
		return nil, err
	}
	return &j, nil
}

func scanArtifact(sc scanner) (*artifact.Artifact, error) {
	var a artifact.Artifact
	var artID, jobID, segments string
	var expiresAt sql.NullInt64
	var createdAt, updatedAt int64

	err := sc.Scan(&artID, &jobID, &a.AccountID, &a.Title, &a.DurationSeconds,
		&a.SizeBytes, &a.Language, &a.Original, &segments, &a.Downloadable,
		&a.FreeTrial, &a.BlobKey, &expiresAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	a.ID = parseArtifactID(artID)
	a.JobID = parseJobID(jobID)
	a.ExpiresAt = fromNullNanos(expiresAt)
	a.CreatedAt = fromNanos(createdAt)
	a.UpdatedAt = fromNanos(updatedAt)

	if err := json.Unmarshal([]byte(segments), &a.Segments); err != nil {
		return nil, err
	}
	return &a, nil
}
