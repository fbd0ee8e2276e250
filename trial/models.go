// Package trial implements the one-time free trial gate.
package trial

import (
	"time"

	"github.com/Jamesmini007/AX2-Caption/types"
)

// Trial limits.
const (
	// GrantAmount is the credit bonus issued when the trial is granted.
	GrantAmount types.Credits = 100

	// MaxDurationSeconds is the longest video the trial accepts.
	MaxDurationSeconds float64 = 600

	// MaxLanguages is the most translation languages the trial accepts.
	MaxLanguages = 1
)

// Flag records whether an account has ever consumed its free trial.
// Once set it is never cleared, even if the trial job later fails.
type Flag struct {
	types.Entity
	AccountID string    `json:"account_id"`
	Used      bool      `json:"used"`
	UsedAt    time.Time `json:"used_at"`
}

// IneligibleReason explains why a trial request was rejected.
type IneligibleReason string

const (
	ReasonAlreadyUsed IneligibleReason = "already_used"
	ReasonTooLong     IneligibleReason = "video_too_long"
	ReasonTooMany     IneligibleReason = "too_many_languages"
)

// Eligibility is the outcome of a trial eligibility check. When Eligible is
// false, Reason carries the first failing condition in check order: usage
// flag, then duration, then language count.
type Eligibility struct {
	Eligible bool
	Reason   IneligibleReason
}

// Check evaluates the trial conditions against an account's usage flag and a
// candidate request. It is pure: granting is a separate, serialized step.
func Check(used bool, durationSeconds float64, languageCount int) Eligibility {
	switch {
	case used:
		return Eligibility{Reason: ReasonAlreadyUsed}
	case durationSeconds > MaxDurationSeconds:
		return Eligibility{Reason: ReasonTooLong}
	case languageCount > MaxLanguages:
		return Eligibility{Reason: ReasonTooMany}
	}

	return Eligibility{Eligible: true}
}
