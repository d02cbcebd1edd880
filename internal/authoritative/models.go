// Package authoritative abstracts the production data store that lives
// outside the import boundary. The import pipeline only needs keyed lookups
// for duplicate detection, per-kind writes for commit, and the atomic merge
// relink used by conflict resolution.
package authoritative

import (
	"time"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
)

// Person is an authoritative natural person record.
type Person struct {
	ID         domain.EntityID
	NationalID string
	FirstName  string
	FatherName string
	FamilyName string
	Phone      string
	BirthYear  int
	Gender     string
	Active     bool
}

// Building is an authoritative structure, keyed by its administrative code.
type Building struct {
	ID      domain.EntityID
	Code    string
	Address string
	Active  bool
}

// PropertyUnit is an authoritative unit, uniquely keyed by the composite
// (building code, unit identifier).
type PropertyUnit struct {
	ID             domain.EntityID
	BuildingID     domain.EntityID
	BuildingCode   string
	UnitIdentifier string
	Floor          int
	Use            string
	Active         bool
}

// Household groups persons under a head.
type Household struct {
	ID          domain.EntityID
	HeadID      domain.EntityID
	MemberCount int
	Active      bool
}

// Relation links a person to a unit with a tenure type and share.
type Relation struct {
	ID               domain.EntityID
	PersonID         domain.EntityID
	UnitID           domain.EntityID
	RelationType     string
	ShareNumerator   int
	ShareDenominator int
	Active           bool
}

// Evidence documents a relation.
type Evidence struct {
	ID         domain.EntityID
	RelationID domain.EntityID
	Kind       string
	IssuedDate time.Time
	Active     bool
}

// Claim is a tenure claim against a unit.
type Claim struct {
	ID         domain.EntityID
	ClaimantID domain.EntityID
	UnitID     domain.EntityID
	Status     string
	FiledDate  time.Time
	Active     bool
}

// Survey records field-collection provenance.
type Survey struct {
	ID         domain.EntityID
	Surveyor   string
	SurveyDate time.Time
	DeviceID   string
}
