package audit

import "time"

// Action names an auditable step of the import workflow.
type Action string

const (
	ActionPackageSubmitted   Action = "package_submitted"
	ActionPackageValidated   Action = "package_validated"
	ActionPackageQuarantined Action = "package_quarantined"
	ActionPackageFailed      Action = "package_failed"
	ActionPackageCancelled   Action = "package_cancelled"
	ActionPackageCommitted   Action = "package_committed"
	ActionDetectionRun       Action = "detection_run"
	ActionConflictCreated    Action = "conflict_created"
	ActionConflictResolved   Action = "conflict_resolved"
	ActionConflictEscalated  Action = "conflict_escalated"
	ActionMergePerformed     Action = "merge_performed"
	ActionReviewAttempt      Action = "review_attempt_recorded"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	ActorID   string    `json:"actor_id,omitempty"`
	PackageID string    `json:"package_id,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}
