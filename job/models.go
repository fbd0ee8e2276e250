// Package job defines the translation job model and its lifecycle state
// machine.
package job

import (
	"time"

	"github.com/Jamesmini007/AX2-Caption/id"
	"github.com/Jamesmini007/AX2-Caption/types"
)

// Status is a job lifecycle state.
type Status string

const (
	// StatusPending is the initial state: credits reserved, work not started.
	StatusPending Status = "pending"
	// StatusProcessing means the pipeline is running.
	StatusProcessing Status = "processing"
	// StatusCompleted is terminal: all requested languages delivered.
	StatusCompleted Status = "completed"
	// StatusFailed is terminal: the pipeline failed and the reservation was
	// refunded.
	StatusFailed Status = "failed"
	// StatusCancelled is terminal: the user aborted before completion.
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// validTransitions is the job state machine. Absent keys admit nothing.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed, StatusCancelled},
}

// CanTransition reports whether moving from s to next is legal.
func (s Status) CanTransition(next Status) bool {
	for _, v := range validTransitions[s] {
		if v == next {
			return true
		}
	}
	return false
}

// Stage names the pipeline step a processing job is currently in.
type Stage string

const (
	StageExtractingAudio Stage = "extracting_audio"
	StageTranscribing    Stage = "transcribing"
	StageTranslating     Stage = "translating"
	StageRendering       Stage = "rendering"
)

// Request describes a translation job to submit.
type Request struct {
	AccountID string
	SignedIn  bool

	Title           string
	DurationSeconds float64
	SizeBytes       int64
	SourceLanguage  string // empty means auto-detect
	TargetLanguages []string

	// FreeTrial requests the one-time trial path: grant first, then the
	// standard reservation protocol against the granted balance.
	FreeTrial bool

	// AllowDegrade accepts the job with fewer languages when the balance
	// cannot cover all of them, as long as at least one is affordable.
	AllowDegrade bool
}

// Job is a persisted translation job.
type Job struct {
	types.Entity
	ID        id.JobID `json:"id"`
	AccountID string   `json:"account_id"`
	SignedIn  bool     `json:"signed_in"`

	Title           string   `json:"title"`
	DurationSeconds float64  `json:"duration_seconds"`
	SizeBytes       int64    `json:"size_bytes"`
	SourceLanguage  string   `json:"source_language,omitempty"`
	TargetLanguages []string `json:"target_languages"`
	FreeTrial       bool     `json:"free_trial"`

	Status Status `json:"status"`
	Stage  Stage  `json:"stage,omitempty"`

	ReservationID id.ReservationID `json:"reservation_id"`
	Reserved      types.Credits    `json:"reserved"`

	// DegradedFrom is set when the job was accepted with fewer languages
	// than requested because the balance could not cover them all.
	DegradedFrom []string `json:"degraded_from,omitempty"`

	FailureReason   string   `json:"failure_reason,omitempty"`
	FailedLanguages []string `json:"failed_languages,omitempty"`

	// ArtifactIDs lists the outputs in pass order: the original-language
	// artifact first, then one per delivered translation.
	ArtifactIDs []id.ArtifactID `json:"artifact_ids,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Progress is a point-in-time snapshot sent to watchers while a job runs.
type Progress struct {
	JobID    id.JobID `json:"job_id"`
	Status   Status   `json:"status"`
	Stage    Stage    `json:"stage,omitempty"`
	Percent  int      `json:"percent"`
	Language string   `json:"language,omitempty"`
	Message  string   `json:"message,omitempty"`
}

// Result is the final outcome of a submitted job.
type Result struct {
	JobID       id.JobID        `json:"job_id"`
	Status      Status          `json:"status"`
	ArtifactIDs []id.ArtifactID `json:"artifact_ids,omitempty"`

	// Languages actually delivered; on partial failure this excludes the
	// failed ones, which are listed in Failed.
	Delivered []string `json:"delivered,omitempty"`
	Failed    []string `json:"failed,omitempty"`

	Charged  types.Credits `json:"charged"`
	Refunded types.Credits `json:"refunded"`
}

// ListOpts controls job listing.
type ListOpts struct {
	Status Status // optional filter
	Limit  int
	Offset int
}
