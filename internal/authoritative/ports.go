package authoritative

import (
	"context"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
)

// PersonDirectory is the lookup surface the person matcher needs.
// FindByNationalID is case-insensitive on the identifier. Missing records
// return sentinel.ErrNotFound.
type PersonDirectory interface {
	FindByNationalID(ctx context.Context, nationalID string) (*Person, error)
	// SearchByNamePrefix returns active persons whose family name starts
	// with the given prefix (case-insensitive). The matcher uses this as a
	// cheap prefilter before composite scoring.
	SearchByNamePrefix(ctx context.Context, prefix string) ([]*Person, error)
	GetPerson(ctx context.Context, id domain.EntityID) (*Person, error)
}

// PropertyDirectory is the lookup surface the property matcher needs.
type PropertyDirectory interface {
	// FindUnitByCompositeKey resolves a unit by the exact
	// (building code, unit identifier) pair.
	FindUnitByCompositeKey(ctx context.Context, buildingCode, unitIdentifier string) (*PropertyUnit, error)
	GetUnit(ctx context.Context, id domain.EntityID) (*PropertyUnit, error)
}

// Writer is the per-kind create/update surface the commit pipeline uses.
// Upserts are idempotent on the natural key where one exists (building code,
// composite unit key, national id); otherwise a new entity is created.
type Writer interface {
	UpsertBuilding(ctx context.Context, b Building) (domain.EntityID, error)
	UpsertUnit(ctx context.Context, u PropertyUnit) (domain.EntityID, error)
	UpsertPerson(ctx context.Context, p Person) (domain.EntityID, error)
	CreateHousehold(ctx context.Context, h Household) (domain.EntityID, error)
	CreateRelation(ctx context.Context, r Relation) (domain.EntityID, error)
	CreateEvidence(ctx context.Context, e Evidence) (domain.EntityID, error)
	CreateClaim(ctx context.Context, c Claim) (domain.EntityID, error)
	CreateSurvey(ctx context.Context, s Survey) (domain.EntityID, error)
}

// Merger performs the multi-table relink behind a merge resolution. The
// relink is all-or-nothing: either every foreign reference held by the
// discarded entity moves to the master and the discarded entity is
// deactivated, or nothing changes.
type Merger interface {
	// MergePersons relinks relations, claims, and household headship from
	// the discarded person to the master, then deactivates the discarded
	// person.
	MergePersons(ctx context.Context, masterID, discardedID domain.EntityID) error

	// MergeUnits relinks relations and claims from the discarded unit to
	// the master, then deactivates the discarded unit.
	MergeUnits(ctx context.Context, masterID, discardedID domain.EntityID) error
}

// Store is the full authoritative surface the import pipeline consumes.
type Store interface {
	PersonDirectory
	PropertyDirectory
	Writer
	Merger
}
