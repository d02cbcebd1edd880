// Package store holds staged records between intake and commit. One store
// serves all eight entity kinds, keyed by the kind tag; per-kind typing is
// recovered by the callers through type switches on the Record interface.
package store

import (
	"context"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/staging/models"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
)

// Store is the staging persistence port. Records are never physically
// deleted; merge resolutions mark them skipped instead.
type Store interface {
	// Add inserts a staged record. Returns sentinel.ErrConflict when the
	// (package, kind, original id) key is already taken.
	Add(ctx context.Context, rec models.Record) error

	// Get returns one record by id, sentinel.ErrNotFound if absent.
	Get(ctx context.Context, id domain.RecordID) (models.Record, error)

	// FindByOriginalID resolves a record by its source-device id within one
	// package and kind.
	FindByOriginalID(ctx context.Context, pkgID domain.PackageID, kind domain.EntityKind, originalID string) (models.Record, error)

	// ListByPackage returns all records of one kind in a package.
	ListByPackage(ctx context.Context, pkgID domain.PackageID, kind domain.EntityKind) ([]models.Record, error)

	// UpdateStatus applies a validation outcome and appends issues.
	UpdateStatus(ctx context.Context, id domain.RecordID, status models.ValidationStatus, issues []models.Issue) error

	// SetApproval flips the operator approval flag.
	SetApproval(ctx context.Context, id domain.RecordID, approved bool) error

	// SetCommittedID writes the authoritative id back after commit.
	SetCommittedID(ctx context.Context, id domain.RecordID, entityID domain.EntityID) error

	// MarkMerged retires a staged record after a merge resolution: status
	// Skipped, approval cleared, and (when the master is authoritative) the
	// committed id pre-set so later commits relink references to the master.
	MarkMerged(ctx context.Context, id domain.RecordID, masterEntityID domain.EntityID) error

	// RelinkReferences rewrites every staged foreign reference from one
	// original id to another within a package. Used when a merge keeps a
	// staged master. Must be atomic: either all references move or none.
	RelinkReferences(ctx context.Context, pkgID domain.PackageID, kind domain.EntityKind, fromOriginalID, toOriginalID string) error
}
