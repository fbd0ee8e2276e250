// Package artifact defines the stored output of a completed translation job:
// the rendered video reference plus its transcript and subtitle tracks.
package artifact

import (
	"time"

	"github.com/Jamesmini007/AX2-Caption/id"
	"github.com/Jamesmini007/AX2-Caption/types"
)

// Segment is one timed span of transcript or subtitle text.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Track is a full set of segments in one language.
type Track struct {
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// Artifact is one persisted output of a completed job: one rendered video
// per language pass, so an N-language job produces N+1 artifacts (the
// original-language pass plus one per delivered translation). The metadata
// lives in the store; the media blob lives in the blob store under BlobKey
// and may lag behind, since blob writes happen in the background.
type Artifact struct {
	types.Entity
	ID        id.ArtifactID `json:"id"`
	JobID     id.JobID      `json:"job_id"`
	AccountID string        `json:"account_id"`

	Title           string  `json:"title"`
	DurationSeconds float64 `json:"duration_seconds"`
	SizeBytes       int64   `json:"size_bytes"`

	// Language is the subtitle language of this pass; Original marks the
	// source-language pass.
	Language string    `json:"language"`
	Original bool      `json:"original,omitempty"`
	Segments []Segment `json:"segments,omitempty"`

	// Downloadable is false for free-trial outputs, which are view-only.
	Downloadable bool `json:"downloadable"`
	FreeTrial    bool `json:"free_trial"`

	BlobKey string `json:"blob_key,omitempty"`

	// ExpiresAt is nil for artifacts retained indefinitely.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the artifact's retention period has lapsed.
// Artifacts without an expiry never expire.
func (a *Artifact) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && now.After(*a.ExpiresAt)
}

// SizeGB returns the artifact size rounded down to whole gigabytes.
func (a *Artifact) SizeGB() types.GB {
	return types.GB(a.SizeBytes / (1024 * 1024 * 1024))
}

// ListOpts controls artifact listing.
type ListOpts struct {
	Limit  int
	Offset int
}
