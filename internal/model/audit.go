package model

import "time"

// Audit outcomes.  Every transition attempt produces an audit entry, so
// denials and failures are replayable alongside successes.
const (
	AuditOutcomeApplied = "APPLIED"
	AuditOutcomeDenied  = "DENIED"
	AuditOutcomeFailed  = "FAILED"
)

// AuditEntry is the forensic record of one transition attempt.  The
// TransitionID is a UUID generated per attempt and doubles as the
// idempotency key for side effects triggered by the transition.
//
// Fields:
//  ID           – primary key identifier.
//  TransitionID – UUID identifying this transition attempt.
//  BookingID    – booking whose state was touched.
//  Domain       – domain under mutation.
//  Action       – requested action.
//  Actor        – who requested it ("system:gateway", "system:sweeper" or
//                 an admin identifier).
//  OldState     – state before the transition.
//  NewState     – state after the transition (empty when denied).
//  Override     – whether the privileged override flag was supplied.
//  Outcome      – APPLIED, DENIED or FAILED.
//  Reason       – machine-readable denial/failure reason, if any.
//  Metadata     – caller-supplied context (e.g. the gateway payload),
//                 stored as JSON.
//  CreatedAt    – creation timestamp.
type AuditEntry struct {
	ID           uint64            // audit_entries.id
	TransitionID string            // audit_entries.transition_id
	BookingID    uint64            // audit_entries.booking_id
	Domain       Domain            // audit_entries.domain
	Action       Action            // audit_entries.action
	Actor        string            // audit_entries.actor
	OldState     string            // audit_entries.old_state
	NewState     string            // audit_entries.new_state
	Override     bool              // audit_entries.override
	Outcome      string            // audit_entries.outcome
	Reason       string            // audit_entries.reason
	Metadata     map[string]string // audit_entries.metadata (JSON)
	CreatedAt    time.Time         // audit_entries.created_at
}
