// Package observability provides a Prometheus metrics extension that records
// credit, trial, job, and storage lifecycle event counts.
package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Jamesmini007/AX2-Caption/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                 = (*MetricsExtension)(nil)
	_ plugin.OnInit                 = (*MetricsExtension)(nil)
	_ plugin.OnWelcomeGranted       = (*MetricsExtension)(nil)
	_ plugin.OnBalanceChanged       = (*MetricsExtension)(nil)
	_ plugin.OnReservationCreated   = (*MetricsExtension)(nil)
	_ plugin.OnReservationConfirmed = (*MetricsExtension)(nil)
	_ plugin.OnReservationRefunded  = (*MetricsExtension)(nil)
	_ plugin.OnTrialGranted         = (*MetricsExtension)(nil)
	_ plugin.OnJobStateChanged      = (*MetricsExtension)(nil)
	_ plugin.OnArtifactCreated      = (*MetricsExtension)(nil)
	_ plugin.OnArtifactsEvicted     = (*MetricsExtension)(nil)
	_ plugin.OnBlobWriteFailed      = (*MetricsExtension)(nil)
)

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a service plugin to automatically track credit and job
// activity.
type MetricsExtension struct {
	// Credit metrics
	WelcomeGranted     prometheus.Counter
	BalanceMutations   prometheus.Counter
	ReservationsOpened prometheus.Counter
	CreditsReserved    prometheus.Counter
	Confirmations      prometheus.Counter
	Refunds            prometheus.Counter
	CreditsRefunded    prometheus.Counter

	// Trial metrics
	TrialsGranted prometheus.Counter

	// Job metrics
	JobTransitions *prometheus.CounterVec

	// Storage metrics
	ArtifactsCreated prometheus.Counter
	ArtifactsEvicted prometheus.Counter
	SweepLatency     prometheus.Histogram
	BlobWriteErrors  prometheus.Counter
}

// NewMetricsExtension registers all metrics on the given registerer. Pass
// prometheus.DefaultRegisterer unless you manage your own registry.
func NewMetricsExtension(reg prometheus.Registerer) *MetricsExtension {
	factory := promauto.With(reg)

	return &MetricsExtension{
		WelcomeGranted: factory.NewCounter(prometheus.CounterOpts{
			Name: "caption_welcome_granted_total",
			Help: "One-time welcome bonuses applied to balance pools.",
		}),
		BalanceMutations: factory.NewCounter(prometheus.CounterOpts{
			Name: "caption_balance_mutations_total",
			Help: "Balance mutations of any kind.",
		}),
		ReservationsOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "caption_reservations_opened_total",
			Help: "Credit reservations placed.",
		}),
		CreditsReserved: factory.NewCounter(prometheus.CounterOpts{
			Name: "caption_credits_reserved_total",
			Help: "Credits placed on hold across all reservations.",
		}),
		Confirmations: factory.NewCounter(prometheus.CounterOpts{
			Name: "caption_reservations_confirmed_total",
			Help: "Reservations that became deductions.",
		}),
		Refunds: factory.NewCounter(prometheus.CounterOpts{
			Name: "caption_refunds_total",
			Help: "Full or partial refunds issued.",
		}),
		CreditsRefunded: factory.NewCounter(prometheus.CounterOpts{
			Name: "caption_credits_refunded_total",
			Help: "Credits returned to balances by refunds.",
		}),
		TrialsGranted: factory.NewCounter(prometheus.CounterOpts{
			Name: "caption_trials_granted_total",
			Help: "Free trials consumed.",
		}),
		JobTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "caption_job_transitions_total",
			Help: "Job state machine transitions by source and target state.",
		}, []string{"from", "to"}),
		ArtifactsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "caption_artifacts_created_total",
			Help: "Artifacts persisted by completed jobs.",
		}),
		ArtifactsEvicted: factory.NewCounter(prometheus.CounterOpts{
			Name: "caption_artifacts_evicted_total",
			Help: "Artifacts removed by the retention sweep.",
		}),
		SweepLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "caption_sweep_duration_seconds",
			Help:    "Duration of retention sweep runs.",
			Buckets: prometheus.DefBuckets,
		}),
		BlobWriteErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "caption_blob_write_errors_total",
			Help: "Background media writes that failed after the job completed.",
		}),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// ──────────────────────────────────────────────────
// Credit hooks
// ──────────────────────────────────────────────────

// OnWelcomeGranted implements plugin.OnWelcomeGranted.
func (m *MetricsExtension) OnWelcomeGranted(_ context.Context, _ string, _ bool, _ int64) error {
	m.WelcomeGranted.Inc()
	return nil
}

// OnBalanceChanged implements plugin.OnBalanceChanged.
func (m *MetricsExtension) OnBalanceChanged(_ context.Context, _ string, _ bool, _, _ int64) error {
	m.BalanceMutations.Inc()
	return nil
}

// OnReservationCreated implements plugin.OnReservationCreated.
func (m *MetricsExtension) OnReservationCreated(_ context.Context, reservation interface{}) error {
	m.ReservationsOpened.Inc()
	if r, ok := reservation.(interface{ HeldAmount() int64 }); ok {
		m.CreditsReserved.Add(float64(r.HeldAmount()))
	}
	return nil
}

// OnReservationConfirmed implements plugin.OnReservationConfirmed.
func (m *MetricsExtension) OnReservationConfirmed(_ context.Context, _ interface{}) error {
	m.Confirmations.Inc()
	return nil
}

// OnReservationRefunded implements plugin.OnReservationRefunded.
func (m *MetricsExtension) OnReservationRefunded(_ context.Context, _ interface{}, amount int64, _ string) error {
	m.Refunds.Inc()
	m.CreditsRefunded.Add(float64(amount))
	return nil
}

// ──────────────────────────────────────────────────
// Trial hooks
// ──────────────────────────────────────────────────

// OnTrialGranted implements plugin.OnTrialGranted.
func (m *MetricsExtension) OnTrialGranted(_ context.Context, _ string) error {
	m.TrialsGranted.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Job hooks
// ──────────────────────────────────────────────────

// OnJobStateChanged implements plugin.OnJobStateChanged.
func (m *MetricsExtension) OnJobStateChanged(_ context.Context, _ interface{}, from, to string) error {
	m.JobTransitions.WithLabelValues(from, to).Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Artifact and storage hooks
// ──────────────────────────────────────────────────

// OnArtifactCreated implements plugin.OnArtifactCreated.
func (m *MetricsExtension) OnArtifactCreated(_ context.Context, _ interface{}) error {
	m.ArtifactsCreated.Inc()
	return nil
}

// OnArtifactsEvicted implements plugin.OnArtifactsEvicted.
func (m *MetricsExtension) OnArtifactsEvicted(_ context.Context, count int, elapsed time.Duration) error {
	m.ArtifactsEvicted.Add(float64(count))
	m.SweepLatency.Observe(elapsed.Seconds())
	return nil
}

// OnBlobWriteFailed implements plugin.OnBlobWriteFailed.
func (m *MetricsExtension) OnBlobWriteFailed(_ context.Context, _ string, _ error) error {
	m.BlobWriteErrors.Inc()
	return nil
}
