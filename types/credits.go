// Package types provides common types used across AX2-Caption.
package types

import (
	"fmt"
	"strconv"
)

// Credits represents an amount of billable work credits.
// All arithmetic is integer-only; no floating point.
//
// One credit pays for 6 seconds of source video processing; a flat 10-credit
// surcharge applies per translation language.
type Credits int64

// Pricing constants.
const (
	// SecondsPerCredit is the amount of source video one credit pays for.
	SecondsPerCredit = 6

	// PerLanguage is the flat surcharge for each translation language.
	PerLanguage Credits = 10

	// WelcomeGrant is the one-time signup bonus per balance pool.
	WelcomeGrant Credits = 100
)

// Add returns the sum of two credit amounts.
func (c Credits) Add(other Credits) Credits { return c + other }

// Subtract returns the difference of two credit amounts.
func (c Credits) Subtract(other Credits) Credits { return c - other }

// Multiply multiplies the credit amount by a quantity.
func (c Credits) Multiply(qty int64) Credits { return c * Credits(qty) }

// Min returns the smaller of two credit amounts.
func (c Credits) Min(other Credits) Credits {
	if c < other {
		return c
	}
	return other
}

// Max returns the larger of two credit amounts.
func (c Credits) Max(other Credits) Credits {
	if c > other {
		return c
	}
	return other
}

// IsZero returns true if the amount is zero.
func (c Credits) IsZero() bool { return c == 0 }

// IsPositive returns true if the amount is greater than zero.
func (c Credits) IsPositive() bool { return c > 0 }

// IsNegative returns true if the amount is less than zero.
func (c Credits) IsNegative() bool { return c < 0 }

// Int64 returns the amount as a plain int64.
func (c Credits) Int64() int64 { return int64(c) }

// String returns a human-readable representation, e.g. "46 credits".
func (c Credits) String() string {
	if c == 1 || c == -1 {
		return strconv.FormatInt(int64(c), 10) + " credit"
	}
	return strconv.FormatInt(int64(c), 10) + " credits"
}

// Sum calculates the sum of multiple credit amounts.
func Sum(values ...Credits) Credits {
	var total Credits
	for _, v := range values {
		total += v
	}
	return total
}

// GB represents a storage capacity in whole gigabytes.
type GB int

// String returns a human-readable representation, e.g. "5 GB".
func (g GB) String() string {
	return fmt.Sprintf("%d GB", int(g))
}
