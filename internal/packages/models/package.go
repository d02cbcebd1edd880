// Package models defines the import package, the unit of submission,
// review, and commit. A package moves through a fixed state machine; every
// transition is checked against it, and the stores enforce the check
// compare-and-swap style so concurrent operators cannot race a package into
// an illegal state.
package models

import (
	"fmt"
	"time"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
)

// Status is the package lifecycle state.
type Status string

const (
	StatusPending            Status = "pending"
	StatusValidating         Status = "validating"
	StatusValidated          Status = "validated"
	StatusValidationFailed   Status = "validation_failed"
	StatusQuarantined        Status = "quarantined"
	StatusDetecting          Status = "detecting_duplicates"
	StatusReviewingConflicts Status = "reviewing_conflicts"
	StatusReadyToCommit      Status = "ready_to_commit"
	StatusCommitting         Status = "committing"
	StatusCompleted          Status = "completed"
	StatusPartiallyCompleted Status = "partially_completed"
	StatusFailed             Status = "failed"
	StatusCancelled          Status = "cancelled"
)

// transitions is the full state machine. Cancellation is allowed from every
// non-terminal state except Committing; an in-flight commit must run to its
// own terminal state first.
var transitions = map[Status][]Status{
	StatusPending:            {StatusValidating, StatusCancelled},
	StatusValidating:         {StatusValidated, StatusValidationFailed, StatusQuarantined, StatusCancelled},
	StatusValidated:          {StatusDetecting, StatusValidating, StatusCancelled},
	StatusValidationFailed:   {StatusValidating, StatusCancelled},
	StatusQuarantined:        {StatusCancelled},
	StatusDetecting:          {StatusReviewingConflicts, StatusReadyToCommit, StatusCancelled},
	StatusReviewingConflicts: {StatusReadyToCommit, StatusDetecting, StatusCancelled},
	StatusReadyToCommit:      {StatusCommitting, StatusDetecting, StatusCancelled},
	StatusCommitting:         {StatusCompleted, StatusPartiallyCompleted, StatusFailed},
}

// CanTransition reports whether from→to is a legal move.
func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the package has reached an end state.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusPartiallyCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Cancellable reports whether the package may still be withdrawn.
func (s Status) Cancellable() bool {
	return s.CanTransition(StatusCancelled)
}

// Number is the human-facing package identifier, unique per submission day.
func Number(day time.Time, seq int) string {
	return fmt.Sprintf("PKG-%s-%04d", day.Format("20060102"), seq)
}

// ImportPackage is one field-collected submission.
type ImportPackage struct {
	ID     domain.PackageID
	Number string
	Status Status

	// Source identifies the collecting device or field team.
	Source          string
	DeclaredVersion domain.CodeListVersion
	SubmittedBy     string

	// ArchiveLocation points at the raw submission payload kept for audit.
	ArchiveLocation string

	RecordCounts map[domain.EntityKind]int

	// QuarantineReason and Notes carry the validation outcome forward for
	// reporting.
	QuarantineReason string
	Notes            []string

	// Commit outcome, written back when the commit pipeline finishes.
	CommittedBy    string
	CommittedCount int
	FailedCount    int
	SkippedCount   int

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt time.Time
}

// TotalRecords sums the staged record counts across kinds.
func (p *ImportPackage) TotalRecords() int {
	n := 0
	for _, c := range p.RecordCounts {
		n += c
	}
	return n
}
