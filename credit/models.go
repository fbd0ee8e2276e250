// Package credit defines the balance, reservation, and history entry models
// for the credit ledger, plus the pricing functions.
package credit

import (
	"math"
	"time"

	"github.com/Jamesmini007/AX2-Caption/id"
	"github.com/Jamesmini007/AX2-Caption/types"
)

// Required computes the credits needed to process a video of the given
// duration with the given number of translation languages.
//
// Duration is truncated to whole 6-second units (floored, never rounded);
// the language surcharge is flat per language, not duration-scaled.
// Example: 278s with 2 languages → floor(278/6) + 2*10 = 66 credits.
func Required(durationSeconds float64, languageCount int) types.Credits {
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	if languageCount < 0 {
		languageCount = 0
	}

	base := types.Credits(math.Floor(durationSeconds / types.SecondsPerCredit))
	return base + types.PerLanguage.Multiply(int64(languageCount))
}

// AffordableLanguages computes the maximum number of translation languages a
// balance can pay for at the given video duration. Returns 0 when the balance
// cannot even cover the base duration cost.
func AffordableLanguages(balance types.Credits, durationSeconds float64) int {
	base := Required(durationSeconds, 0)
	remaining := balance - base
	if remaining <= 0 {
		return 0
	}
	return int(remaining / types.PerLanguage)
}

// RefundPerFailedLanguage is the amount credited back for each language whose
// translation fails while others succeed. It equals the flat per-language
// surcharge, so a partial refund can never exceed the original reservation.
const RefundPerFailedLanguage = types.PerLanguage

// Balance holds the two independent credit pools for one account. Exactly one
// pool is active per session, selected by the signed-in flag. Neither pool may
// ever go negative.
type Balance struct {
	types.Entity
	AccountID string `json:"account_id"`

	SignedIn  types.Credits `json:"signed_in"`
	Anonymous types.Credits `json:"anonymous"`

	// Sticky flags recording that the one-time welcome grant has been
	// applied to each pool. Never cleared.
	SignedInGranted  bool `json:"signed_in_granted"`
	AnonymousGranted bool `json:"anonymous_granted"`

	// TotalCharged accumulates all paid top-ups, ever. Used by the storage
	// policy to select the paid capacity tier.
	TotalCharged types.Credits `json:"total_charged"`
}

// Active returns the pool selected by the signed-in flag.
func (b *Balance) Active(signedIn bool) types.Credits {
	if signedIn {
		return b.SignedIn
	}
	return b.Anonymous
}

// Granted reports whether the welcome grant was applied to the selected pool.
func (b *Balance) Granted(signedIn bool) bool {
	if signedIn {
		return b.SignedInGranted
	}
	return b.AnonymousGranted
}

// Apply adds delta (which may be negative) to the selected pool.
// The caller must have verified the result stays non-negative.
func (b *Balance) Apply(signedIn bool, delta types.Credits) {
	if signedIn {
		b.SignedIn += delta
	} else {
		b.Anonymous += delta
	}
}

// ReservationStatus is the lifecycle state of a credit reservation.
type ReservationStatus string

const (
	// StatusReserved is the initial state: credits held, outcome unknown.
	StatusReserved ReservationStatus = "reserved"
	// StatusConfirmed is terminal: the hold became a deduction.
	StatusConfirmed ReservationStatus = "confirmed"
	// StatusRefunded is terminal: the hold was released (fully or partially).
	StatusRefunded ReservationStatus = "refunded"
)

// Terminal reports whether the status admits no further transitions.
func (s ReservationStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusRefunded
}

// Reservation is a provisional, revocable hold against a balance, created
// before work starts and resolved exactly once: confirmed xor refunded.
// Lookups must match both ID and JobID.
type Reservation struct {
	types.Entity
	ID        id.ReservationID `json:"id"`
	JobID     id.JobID         `json:"job_id"`
	AccountID string           `json:"account_id"`
	SignedIn  bool             `json:"signed_in"`

	Amount     types.Credits     `json:"amount"`
	Status     ReservationStatus `json:"status"`
	ReservedAt time.Time         `json:"reserved_at"`

	ConfirmedAt  *time.Time    `json:"confirmed_at,omitempty"`
	RefundedAt   *time.Time    `json:"refunded_at,omitempty"`
	RefundReason string        `json:"refund_reason,omitempty"`
	RefundAmount types.Credits `json:"refund_amount,omitempty"`
}

// HeldAmount returns the hold size in raw credits.
func (r *Reservation) HeldAmount() int64 { return r.Amount.Int64() }

// EntryType classifies a credit history entry.
type EntryType string

const (
	// EntryCharge records credits added: welcome grant, trial grant, top-up.
	EntryCharge EntryType = "charge"
	// EntryDebit records a confirmed deduction.
	EntryDebit EntryType = "debit"
	// EntryRefund records released reservation credits.
	EntryRefund EntryType = "refund"
)

// Entry is an append-only audit record. Entries are listed newest-first and
// never mutated once written.
type Entry struct {
	ID        id.EntryID `json:"id"`
	AccountID string     `json:"account_id"`
	Date      time.Time  `json:"date"`
	Type      EntryType  `json:"type"`

	Description  string        `json:"description"`
	Amount       types.Credits `json:"amount"`
	BalanceAfter types.Credits `json:"balance_after"`

	JobID         id.JobID         `json:"job_id,omitempty"`
	ReservationID id.ReservationID `json:"reservation_id,omitempty"`
}

// ListOpts controls history listing.
type ListOpts struct {
	Limit  int
	Offset int
	Type   EntryType // optional filter
}
