package postgres

import (
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/Jamesmini007/AX2-Caption/artifact"
	"github.com/Jamesmini007/AX2-Caption/credit"
	"github.com/Jamesmini007/AX2-Caption/id"
	"github.com/Jamesmini007/AX2-Caption/job"
)

// parseID converts a stored text ID back to a typed ID; the empty string
// means the nil ID.
func parseID(s string) id.ID {
	if s == "" {
		return id.Nil
	}
	v, err := id.Parse(s)
	if err != nil {
		return id.Nil
	}
	return v
}

func scanReservation(row pgx.Row) (*credit.Reservation, error) {
	var r credit.Reservation
	var resID, jobID, status string

	err := row.Scan(&resID, &jobID, &r.AccountID, &r.SignedIn, &r.Amount, &status,
		&r.ReservedAt, &r.ConfirmedAt, &r.RefundedAt, &r.RefundReason, &r.RefundAmount,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	r.ID = parseID(resID)
	r.JobID = parseID(jobID)
	r.Status = credit.ReservationStatus(status)
	return &r, nil
}

func scanJob(row pgx.Row) (*job.Job, error) {
	var j job.Job
	var jobID, status, stage, resID string
	var targets, degraded, failedLangs, artIDs []byte

	err := row.Scan(&jobID, &j.AccountID, &j.SignedIn, &j.Title, &j.DurationSeconds,
		&j.SizeBytes, &j.SourceLanguage, &targets, &j.FreeTrial, &status, &stage,
		&resID, &j.Reserved, &degraded, &j.FailureReason, &failedLangs, &artIDs,
		&j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}

	j.ID = parseID(jobID)
	j.Status = job.Status(status)
	j.Stage = job.Stage(stage)
	j.ReservationID = parseID(resID)

	if err := json.Unmarshal(targets, &j.TargetLanguages); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(degraded, &j.DegradedFrom); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(failedLangs, &j.FailedLanguages); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(artIDs, &j.ArtifactIDs); err != nil {
		return nil, err
	}
	return &j, nil
}

func scanArtifact(row pgx.Row) (*artifact.Artifact, error) {
	var a artifact.Artifact
	var artID, jobID string
	var segments []byte

	err := row.Scan(&artID, &jobID, &a.AccountID, &a.Title, &a.DurationSeconds,
		&a.SizeBytes, &a.Language, &a.Original, &segments, &a.Downloadable,
		&a.FreeTrial, &a.BlobKey, &a.ExpiresAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	a.ID = parseID(artID)
	a.JobID = parseID(jobID)

	if err := json.Unmarshal(segments, &a.Segments); err != nil {
		return nil, err
	}
	return &a, nil
}
