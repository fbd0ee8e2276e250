package audithook

// Action constants for audit events.
const (
	// Credit actions
	ActionWelcomeGranted       = "credit.welcome_granted"
	ActionCreditsReserved      = "credit.reserved"
	ActionReservationConfirmed = "credit.confirmed"
	ActionCreditsRefunded      = "credit.refunded"

	// Trial actions
	ActionTrialGranted = "trial.granted"

	// Job actions
	ActionJobTransitioned = "job.transitioned"

	// Artifact actions
	ActionArtifactCreated  = "artifact.created"
	ActionArtifactsEvicted = "artifact.evicted"
	ActionBlobWriteFailed  = "artifact.blob_write_failed"
)

// Resource constants for audit events.
const (
	ResourceBalance     = "balance"
	ResourceReservation = "reservation"
	ResourceTrial       = "trial"
	ResourceJob         = "job"
	ResourceArtifact    = "artifact"
)

// Category constants for audit events.
const (
	CategoryLedger     = "ledger"
	CategoryTrial      = "trial"
	CategoryProcessing = "processing"
	CategoryStorage    = "storage"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
