package audithook

// Action constants for audit events.
const (
	// Balance actions
	ActionCreditApplied = "credit.applied"

	// Request actions
	ActionRequestResolved = "request.resolved"
	ActionStatusNoted     = "status.noted"

	// Batch actions
	ActionBatchApplied = "batch.applied"

	// Mirror actions
	ActionMirrorSynced   = "mirror.synced"
	ActionMirrorDegraded = "mirror.degraded"
)

// Resource constants for audit events.
const (
	ResourceProfile = "profile"
	ResourceRequest = "request"
	ResourceChannel = "channel"
	ResourceMirror  = "mirror"
)

// Category constants for audit events.
const (
	CategoryBalance     = "balance"
	CategoryRequest     = "request"
	CategoryIngest      = "ingest"
	CategoryConsistency = "consistency"
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
