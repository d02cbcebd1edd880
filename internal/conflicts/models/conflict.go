// Package models defines the conflict records produced by duplicate
// detection and worked through the review queue. A conflict is the durable,
// reviewable form of a match candidate: it survives re-detection, carries
// the reviewer's decision, and gates the owning package's commit.
package models

import (
	"sort"
	"strings"
	"time"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
)

// Type discriminates what kind of entities collided.
type Type string

const (
	TypePersonDuplicate   Type = "person_duplicate"
	TypePropertyDuplicate Type = "property_duplicate"
)

// Status is the review lifecycle. Escalation is deliberately not a status:
// an escalated conflict still blocks its package and still needs a
// terminal decision.
type Status string

const (
	StatusPendingReview Status = "pending_review"
	StatusResolved      Status = "resolved"
	StatusIgnored       Status = "ignored"
)

// Open reports whether the conflict still blocks its package.
func (s Status) Open() bool { return s == StatusPendingReview }

// Outcome is the reviewer's terminal decision on a resolved conflict.
type Outcome string

const (
	OutcomeMerge           Outcome = "merge"
	OutcomeKeepBoth        Outcome = "keep_both"
	OutcomeKeepFirst       Outcome = "keep_first"
	OutcomeKeepSecond      Outcome = "keep_second"
	OutcomeMarkAsDuplicate Outcome = "mark_as_duplicate"
)

// Priority orders the review queue. Derived from match confidence at
// creation; escalation raises it to High.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
)

// rank orders priorities for queue sorting, highest first.
func (p Priority) rank() int {
	if p == PriorityHigh {
		return 0
	}
	return 1
}

// Less reports whether p sorts before other in the queue.
func (p Priority) Less(other Priority) bool { return p.rank() < other.rank() }

// Party is one side of a conflict: a staged record, an authoritative
// entity, or both once the staged side has been committed.
type Party struct {
	StagedID   domain.RecordID `json:"staged_id,omitempty"`
	EntityID   domain.EntityID `json:"entity_id,omitempty"`
	OriginalID string          `json:"original_id,omitempty"`
	Display    string          `json:"display,omitempty"`
}

// Staged reports whether this side lives in the staging area.
func (p Party) Staged() bool { return !p.StagedID.IsNil() }

// Key is the stable identifier used for pair deduplication.
func (p Party) Key() string {
	if p.Staged() {
		return "staged:" + p.StagedID.String()
	}
	return "entity:" + p.EntityID.String()
}

// ReviewAttempt records one touch by a reviewer that did not reach a
// decision. Attempts feed the SLA/overdue reporting.
type ReviewAttempt struct {
	By   string    `json:"by"`
	Note string    `json:"note,omitempty"`
	At   time.Time `json:"at"`
}

// Conflict is one detected duplicate pair awaiting or carrying a decision.
type Conflict struct {
	ID        domain.ConflictID
	PackageID domain.PackageID
	Type      Type
	Status    Status
	Priority  Priority

	A, B            Party
	Score           int
	Confidence      string
	MatchedCriteria []string
	Comparison      map[string]any

	Outcome    Outcome
	Reason     string
	ResolvedBy string
	ResolvedAt time.Time

	// Merge trace, recorded on merge-style resolutions: which party
	// survived and which was folded into it.
	Master    Party
	Discarded Party

	Escalated   bool
	EscalatedBy string
	EscalatedAt time.Time

	Assignee       string
	ReviewAttempts []ReviewAttempt

	SLADeadline time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PairKey is order-independent over the two parties. One conflict exists
// per (package, unordered pair) regardless of status, so re-running
// detection never duplicates open or decided conflicts.
func (c *Conflict) PairKey() string {
	keys := []string{c.A.Key(), c.B.Key()}
	sort.Strings(keys)
	return strings.Join(keys, "|")
}

// Overdue reports whether an open conflict has outlived its review SLA.
func (c *Conflict) Overdue(now time.Time) bool {
	return c.Status.Open() && !c.SLADeadline.IsZero() && now.After(c.SLADeadline)
}
