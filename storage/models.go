// Package storage defines the artifact retention policy: capacity tiers,
// retention periods, and purchasable extensions.
package storage

import (
	"time"

	"github.com/Jamesmini007/AX2-Caption/id"
	"github.com/Jamesmini007/AX2-Caption/types"
)

// Base policy values.
const (
	// FreeCapacity applies to accounts that have never purchased credits.
	FreeCapacity types.GB = 1

	// PaidCapacity applies once an account has any paid top-up on record.
	PaidCapacity types.GB = 5

	// BasePeriod is how long artifacts are retained without an extension.
	BasePeriod = 7 * 24 * time.Hour
)

// ExtensionType selects a purchasable storage extension tier.
type ExtensionType string

const (
	// ExtensionPlus adds 5 GB of capacity for 30 days.
	ExtensionPlus ExtensionType = "plus"
	// ExtensionPro adds 20 GB of capacity for 90 days.
	ExtensionPro ExtensionType = "pro"
)

// Valid reports whether the extension type is a known tier.
func (t ExtensionType) Valid() bool {
	return t == ExtensionPlus || t == ExtensionPro
}

// Bonus returns the extra capacity the tier adds.
func (t ExtensionType) Bonus() types.GB {
	switch t {
	case ExtensionPlus:
		return 5
	case ExtensionPro:
		return 20
	}
	return 0
}

// Term returns how long the tier stays active after purchase.
func (t ExtensionType) Term() time.Duration {
	switch t {
	case ExtensionPlus:
		return 30 * 24 * time.Hour
	case ExtensionPro:
		return 90 * 24 * time.Hour
	}
	return 0
}

// Price returns the credit cost of purchasing the tier.
func (t ExtensionType) Price() types.Credits {
	switch t {
	case ExtensionPlus:
		return 50
	case ExtensionPro:
		return 150
	}
	return 0
}

// Extension is a purchased storage upgrade. At most one extension is active
// per account; buying a new one replaces the old, it does not stack.
type Extension struct {
	types.Entity
	ID        id.ExtensionID `json:"id"`
	AccountID string         `json:"account_id"`
	Type      ExtensionType  `json:"type"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Active reports whether the extension is still in its term at the given time.
func (e *Extension) Active(now time.Time) bool {
	return e != nil && now.Before(e.ExpiresAt)
}

// Quota is the effective storage allowance for an account at a point in time.
type Quota struct {
	Capacity  types.GB      `json:"capacity"`
	Period    time.Duration `json:"period"`
	UsedBytes int64         `json:"used_bytes"`
	Extension ExtensionType `json:"extension,omitempty"`
}

// CapacityBytes returns the capacity in bytes.
func (q Quota) CapacityBytes() int64 {
	return int64(q.Capacity) * 1024 * 1024 * 1024
}

// Remaining returns how many bytes are still free, never negative.
func (q Quota) Remaining() int64 {
	r := q.CapacityBytes() - q.UsedBytes
	if r < 0 {
		return 0
	}
	return r
}

// Compute derives the effective quota from the account's purchase history and
// currently active extension. An expired extension contributes nothing.
func Compute(hasPaid bool, ext *Extension, usedBytes int64, now time.Time) Quota {
	q := Quota{
		Capacity:  FreeCapacity,
		Period:    BasePeriod,
		UsedBytes: usedBytes,
	}
	if hasPaid {
		q.Capacity = PaidCapacity
	}
	if ext.Active(now) {
		q.Capacity += ext.Type.Bonus()
		q.Extension = ext.Type
	}

	return q
}
