// Package plugin provides an extensible plugin system for AX2-Caption.
// Plugins can hook into various lifecycle events to extend functionality.
package plugin

import (
	"context"
	"time"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, svc interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Credit ledger hooks
// ──────────────────────────────────────────────────

// OnWelcomeGranted is called when a balance pool receives its one-time
// welcome bonus.
type OnWelcomeGranted interface {
	Plugin
	OnWelcomeGranted(ctx context.Context, accountID string, signedIn bool, amount int64) error
}

// OnBalanceChanged is called after any balance mutation.
type OnBalanceChanged interface {
	Plugin
	OnBalanceChanged(ctx context.Context, accountID string, signedIn bool, before, after int64) error
}

// OnReservationCreated is called when credits are placed on hold.
type OnReservationCreated interface {
	Plugin
	OnReservationCreated(ctx context.Context, reservation interface{}) error
}

// OnReservationConfirmed is called when a hold becomes a deduction.
type OnReservationConfirmed interface {
	Plugin
	OnReservationConfirmed(ctx context.Context, reservation interface{}) error
}

// OnReservationRefunded is called when a hold is released.
type OnReservationRefunded interface {
	Plugin
	OnReservationRefunded(ctx context.Context, reservation interface{}, amount int64, reason string) error
}

// ──────────────────────────────────────────────────
// Trial hooks
// ──────────────────────────────────────────────────

// OnTrialGranted is called when an account consumes its free trial.
type OnTrialGranted interface {
	Plugin
	OnTrialGranted(ctx context.Context, accountID string) error
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// OnJobStateChanged is called on every job state machine transition.
type OnJobStateChanged interface {
	Plugin
	OnJobStateChanged(ctx context.Context, j interface{}, from, to string) error
}

// ──────────────────────────────────────────────────
// Artifact and storage hooks
// ──────────────────────────────────────────────────

// OnArtifactCreated is called when a completed job's output is persisted.
type OnArtifactCreated interface {
	Plugin
	OnArtifactCreated(ctx context.Context, a interface{}) error
}

// OnArtifactsEvicted is called when the expiry sweep removes artifacts.
type OnArtifactsEvicted interface {
	Plugin
	OnArtifactsEvicted(ctx context.Context, count int, elapsed time.Duration) error
}

// OnBlobWriteFailed is called when a background media write fails. Metadata
// for the artifact stays in place; only the blob is missing.
type OnBlobWriteFailed interface {
	Plugin
	OnBlobWriteFailed(ctx context.Context, blobKey string, err error) error
}
