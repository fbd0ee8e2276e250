package caption

import (
	"errors"
	"fmt"

	"github.com/Jamesmini007/AX2-Caption/types"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("caption: not found")
	ErrAlreadyExists = errors.New("caption: already exists")
	ErrInvalidInput  = errors.New("caption: invalid input")
	ErrClosed        = errors.New("caption: service is closed")

	// Credit errors
	ErrBalanceNotFound     = errors.New("caption: balance not found")
	ErrInvalidAmount       = errors.New("caption: invalid credit amount")
	ErrReservationNotFound = errors.New("caption: reservation not found")
	ErrAlreadyConfirmed    = errors.New("caption: reservation already confirmed")
	ErrAlreadyRefunded     = errors.New("caption: reservation already refunded")
	ErrNotConfirmed        = errors.New("caption: reservation not confirmed")

	// Trial errors
	ErrTrialAlreadyUsed      = errors.New("caption: free trial already used")
	ErrTrialVideoTooLong     = errors.New("caption: video exceeds free trial duration limit")
	ErrTrialTooManyLanguages = errors.New("caption: free trial allows a single language")

	// Job errors
	ErrJobNotFound        = errors.New("caption: job not found")
	ErrJobNotCancellable  = errors.New("caption: job is already finished")
	ErrInvalidTransition  = errors.New("caption: invalid job state transition")
	ErrInvalidDuration    = errors.New("caption: invalid video duration")
	ErrNoTargetLanguages  = errors.New("caption: no target languages requested")
	ErrArtifactNotFound   = errors.New("caption: artifact not found")
	ErrArtifactExpired    = errors.New("caption: artifact has expired")
	ErrNotDownloadable    = errors.New("caption: artifact is view-only")
	ErrArtifactIncomplete = errors.New("caption: artifact media not stored yet")

	// Storage errors
	ErrStorageExceeded   = errors.New("caption: storage capacity exceeded")
	ErrExtensionNotFound = errors.New("caption: storage extension not found")
	ErrUnknownExtension  = errors.New("caption: unknown storage extension type")
	ErrTrialFlagNotFound = errors.New("caption: trial record not found")

	// Store errors
	ErrStoreNotReady     = errors.New("caption: store not ready")
	ErrStoreClosed       = errors.New("caption: store is closed")
	ErrTransactionFailed = errors.New("caption: transaction failed")
	ErrMigrationFailed   = errors.New("caption: migration failed")
)

// InsufficientCreditsError is returned when a reservation or purchase would
// drive the active balance negative. It carries both sides of the comparison
// so callers can render an exact shortfall message.
type InsufficientCreditsError struct {
	Required types.Credits
	Balance  types.Credits
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("caption: insufficient credits: need %s, have %s", e.Required, e.Balance)
}

// Shortfall returns how many credits are missing.
func (e *InsufficientCreditsError) Shortfall() types.Credits {
	return e.Required - e.Balance
}

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("caption: validation failed for %s: %s", e.Field, e.Message)
}

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "caption: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("caption: %d errors occurred", len(e.Errors))
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrBalanceNotFound) ||
		errors.Is(err, ErrReservationNotFound) ||
		errors.Is(err, ErrJobNotFound) ||
		errors.Is(err, ErrArtifactNotFound) ||
		errors.Is(err, ErrExtensionNotFound) ||
		errors.Is(err, ErrTrialFlagNotFound)
}

// IsInsufficientCredits returns true if the error is a credit shortfall.
func IsInsufficientCredits(err error) bool {
	var ice *InsufficientCreditsError
	return errors.As(err, &ice)
}

// IsTrialError returns true if the error is a free trial eligibility failure.
func IsTrialError(err error) bool {
	return errors.Is(err, ErrTrialAlreadyUsed) ||
		errors.Is(err, ErrTrialVideoTooLong) ||
		errors.Is(err, ErrTrialTooManyLanguages)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed)
}
