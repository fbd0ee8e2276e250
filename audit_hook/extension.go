// Package audithook bridges service lifecycle events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not depend on any
// particular audit store. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Jamesmini007/AX2-Caption/artifact"
	"github.com/Jamesmini007/AX2-Caption/credit"
	"github.com/Jamesmini007/AX2-Caption/job"
	"github.com/Jamesmini007/AX2-Caption/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Extension)(nil)
	_ plugin.OnWelcomeGranted       = (*Extension)(nil)
	_ plugin.OnReservationCreated   = (*Extension)(nil)
	_ plugin.OnReservationConfirmed = (*Extension)(nil)
	_ plugin.OnReservationRefunded  = (*Extension)(nil)
	_ plugin.OnTrialGranted         = (*Extension)(nil)
	_ plugin.OnJobStateChanged      = (*Extension)(nil)
	_ plugin.OnArtifactCreated      = (*Extension)(nil)
	_ plugin.OnArtifactsEvicted     = (*Extension)(nil)
	_ plugin.OnBlobWriteFailed      = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// SlogRecorder returns a Recorder that writes audit events to the given
// structured logger. Useful as a default backend.
func SlogRecorder(logger *slog.Logger) Recorder {
	return RecorderFunc(func(ctx context.Context, event *AuditEvent) error {
		logger.InfoContext(ctx, "audit event",
			"action", event.Action,
			"resource", event.Resource,
			"resource_id", event.ResourceID,
			"category", event.Category,
			"outcome", event.Outcome,
			"severity", event.Severity,
			"metadata", event.Metadata,
		)
		return nil
	})
}

// Extension bridges service lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Credit lifecycle hooks
// ──────────────────────────────────────────────────

// OnWelcomeGranted implements plugin.OnWelcomeGranted.
func (e *Extension) OnWelcomeGranted(ctx context.Context, accountID string, signedIn bool, amount int64) error {
	return e.record(ctx, ActionWelcomeGranted, SeverityInfo, OutcomeSuccess,
		ResourceBalance, accountID, CategoryLedger, nil,
		"signed_in", signedIn,
		"amount", amount,
	)
}

// OnReservationCreated implements plugin.OnReservationCreated.
func (e *Extension) OnReservationCreated(ctx context.Context, reservation interface{}) error {
	var resID string
	var amount int64
	if r, ok := reservation.(*credit.Reservation); ok {
		resID = r.ID.String()
		amount = r.Amount.Int64()
	}
	return e.record(ctx, ActionCreditsReserved, SeverityInfo, OutcomeSuccess,
		ResourceReservation, resID, CategoryLedger, nil,
		"amount", amount,
	)
}

// OnReservationConfirmed implements plugin.OnReservationConfirmed.
func (e *Extension) OnReservationConfirmed(ctx context.Context, reservation interface{}) error {
	var resID string
	if r, ok := reservation.(*credit.Reservation); ok {
		resID = r.ID.String()
	}
	return e.record(ctx, ActionReservationConfirmed, SeverityInfo, OutcomeSuccess,
		ResourceReservation, resID, CategoryLedger, nil,
	)
}

// OnReservationRefunded implements plugin.OnReservationRefunded.
func (e *Extension) OnReservationRefunded(ctx context.Context, reservation interface{}, amount int64, reason string) error {
	var resID string
	outcome := OutcomeSuccess
	if r, ok := reservation.(*credit.Reservation); ok {
		resID = r.ID.String()
		if r.Status == credit.StatusConfirmed {
			// Partial give-back on an already confirmed deduction.
			outcome = OutcomePartial
		}
	}
	return e.record(ctx, ActionCreditsRefunded, SeverityInfo, outcome,
		ResourceReservation, resID, CategoryLedger, nil,
		"amount", amount,
		"refund_reason", reason,
	)
}

// ──────────────────────────────────────────────────
// Trial lifecycle hooks
// ──────────────────────────────────────────────────

// OnTrialGranted implements plugin.OnTrialGranted.
func (e *Extension) OnTrialGranted(ctx context.Context, accountID string) error {
	return e.record(ctx, ActionTrialGranted, SeverityInfo, OutcomeSuccess,
		ResourceTrial, accountID, CategoryTrial, nil,
	)
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// OnJobStateChanged implements plugin.OnJobStateChanged.
func (e *Extension) OnJobStateChanged(ctx context.Context, j interface{}, from, to string) error {
	var jobID string
	severity := SeverityInfo
	if jj, ok := j.(*job.Job); ok {
		jobID = jj.ID.String()
	}
	if to == string(job.StatusFailed) {
		severity = SeverityError
	}
	return e.record(ctx, ActionJobTransitioned, severity, OutcomeSuccess,
		ResourceJob, jobID, CategoryProcessing, nil,
		"from", from,
		"to", to,
	)
}

// ──────────────────────────────────────────────────
// Artifact lifecycle hooks
// ──────────────────────────────────────────────────

// OnArtifactCreated implements plugin.OnArtifactCreated.
func (e *Extension) OnArtifactCreated(ctx context.Context, a interface{}) error {
	var artID string
	if aa, ok := a.(*artifact.Artifact); ok {
		artID = aa.ID.String()
	}
	return e.record(ctx, ActionArtifactCreated, SeverityInfo, OutcomeSuccess,
		ResourceArtifact, artID, CategoryStorage, nil,
	)
}

// OnArtifactsEvicted implements plugin.OnArtifactsEvicted.
func (e *Extension) OnArtifactsEvicted(ctx context.Context, count int, elapsed time.Duration) error {
	return e.record(ctx, ActionArtifactsEvicted, SeverityInfo, OutcomeSuccess,
		ResourceArtifact, "", CategoryStorage, nil,
		"count", count,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnBlobWriteFailed implements plugin.OnBlobWriteFailed.
func (e *Extension) OnBlobWriteFailed(ctx context.Context, blobKey string, err error) error {
	return e.record(ctx, ActionBlobWriteFailed, SeverityError, OutcomeFailure,
		ResourceArtifact, blobKey, CategoryStorage, err,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
