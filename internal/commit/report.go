// Package commit promotes a package's approved staging records into the
// authoritative store. The commit is partial-failure tolerant: each record
// stands alone, failures are collected instead of aborting, and the final
// package status reflects how much survived.
package commit

import (
	"time"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/packages/models"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
)

// KindSummary counts one entity kind's commit outcome. Skipped covers
// everything excluded before the write: invalid, unapproved, and
// merged-away records.
type KindSummary struct {
	Total     int `json:"total"`
	Approved  int `json:"approved"`
	Committed int `json:"committed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Failure records one record that could not be committed.
type Failure struct {
	RecordID   domain.RecordID   `json:"record_id"`
	Kind       domain.EntityKind `json:"kind"`
	OriginalID string            `json:"original_id"`
	Reason     string            `json:"reason"`
}

// IDMapping links a source-device original id to the authoritative id it
// ended up as, including records merged into an existing entity.
type IDMapping struct {
	Kind       domain.EntityKind `json:"kind"`
	OriginalID string            `json:"original_id"`
	EntityID   domain.EntityID   `json:"entity_id"`
}

// Report is the per-package import outcome handed back to the field team.
type Report struct {
	PackageID     domain.PackageID                  `json:"package_id"`
	PackageNumber string                            `json:"package_number"`
	Status        models.Status                     `json:"status"`
	Kinds         map[domain.EntityKind]KindSummary `json:"kinds"`
	Failures      []Failure                         `json:"failures,omitempty"`
	Mappings      []IDMapping                       `json:"mappings,omitempty"`

	ConflictsResolved int `json:"conflicts_resolved"`
	ConflictsMerged   int `json:"conflicts_merged"`
	ConflictsIgnored  int `json:"conflicts_ignored"`
	ConflictsOpen     int `json:"conflicts_open"`

	QuarantineReason string    `json:"quarantine_reason,omitempty"`
	Notes            []string  `json:"notes,omitempty"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// TotalCommitted sums committed records across kinds.
func (r *Report) TotalCommitted() int {
	n := 0
	for _, k := range r.Kinds {
		n += k.Committed
	}
	return n
}

// TotalFailed sums failed records across kinds.
func (r *Report) TotalFailed() int {
	n := 0
	for _, k := range r.Kinds {
		n += k.Failed
	}
	return n
}

// TotalSkipped sums skipped records across kinds.
func (r *Report) TotalSkipped() int {
	n := 0
	for _, k := range r.Kinds {
		n += k.Skipped
	}
	return n
}
