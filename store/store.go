package store

import (
	"context"
	"time"

	"github.com/Jamesmini007/AX2-Caption/artifact"
	"github.com/Jamesmini007/AX2-Caption/credit"
	"github.com/Jamesmini007/AX2-Caption/id"
	"github.com/Jamesmini007/AX2-Caption/job"
	"github.com/Jamesmini007/AX2-Caption/storage"
	"github.com/Jamesmini007/AX2-Caption/trial"
)

// Store is the unified storage interface for all AX2-Caption entities.
// Instead of embedding sub-interfaces, all methods are declared explicitly
// to avoid naming conflicts.
type Store interface {
	// Balance methods
	GetBalance(ctx context.Context, accountID string) (*credit.Balance, error)
	SaveBalance(ctx context.Context, b *credit.Balance) error

	// Reservation methods
	CreateReservation(ctx context.Context, r *credit.Reservation) error
	GetReservation(ctx context.Context, resID id.ReservationID, jobID id.JobID) (*credit.Reservation, error)
	UpdateReservation(ctx context.Context, r *credit.Reservation) error
	ListReservations(ctx context.Context, accountID string, status credit.ReservationStatus) ([]*credit.Reservation, error)

	// History methods
	AppendEntry(ctx context.Context, e *credit.Entry) error
	ListEntries(ctx context.Context, accountID string, opts credit.ListOpts) ([]*credit.Entry, error)

	// Trial methods
	GetTrialFlag(ctx context.Context, accountID string) (*trial.Flag, error)
	SaveTrialFlag(ctx context.Context, f *trial.Flag) error

	// Storage extension methods
	GetExtension(ctx context.Context, accountID string) (*storage.Extension, error)
	SaveExtension(ctx context.Context, e *storage.Extension) error
	DeleteExtension(ctx context.Context, accountID string) error

	// Job methods
	CreateJob(ctx context.Context, j *job.Job) error
	GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error)
	UpdateJob(ctx context.Context, j *job.Job) error
	ListJobs(ctx context.Context, accountID string, opts job.ListOpts) ([]*job.Job, error)

	// Artifact methods
	CreateArtifact(ctx context.Context, a *artifact.Artifact) error
	GetArtifact(ctx context.Context, artID id.ArtifactID) (*artifact.Artifact, error)
	DeleteArtifact(ctx context.Context, artID id.ArtifactID) error
	ListArtifacts(ctx context.Context, accountID string, opts artifact.ListOpts) ([]*artifact.Artifact, error)
	ListExpiredArtifacts(ctx context.Context, before time.Time) ([]*artifact.Artifact, error)
	SumArtifactBytes(ctx context.Context, accountID string) (int64, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
