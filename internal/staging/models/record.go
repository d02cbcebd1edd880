// Package models defines the staging records held in the isolated import
// area. Every staged entity embeds RecordMeta (composed, not inherited) and
// satisfies Record, which lets the store and the validators work across all
// eight kinds without reflection.
package models

import (
	"fmt"
	"time"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
)

// ValidationStatus is the per-record outcome of the validation pipeline.
type ValidationStatus string

const (
	StatusValid   ValidationStatus = "valid"
	StatusWarning ValidationStatus = "warning"
	StatusInvalid ValidationStatus = "invalid"
	// StatusSkipped is an explicit operator override; skipped records are
	// excluded from matching and commit but retained for reporting.
	StatusSkipped ValidationStatus = "skipped"
)

// rank orders statuses from best to worst for worst-status-wins
// aggregation. Skipped sits outside the ordering; it is only ever set
// explicitly.
func (s ValidationStatus) rank() int {
	switch s {
	case StatusValid:
		return 0
	case StatusWarning:
		return 1
	case StatusInvalid:
		return 2
	default:
		return 3
	}
}

// Downgrade returns the worse of the two statuses. A status never improves
// within a validation pass.
func (s ValidationStatus) Downgrade(to ValidationStatus) ValidationStatus {
	if to.rank() > s.rank() {
		return to
	}
	return s
}

// Eligible reports whether a record with this status may enter duplicate
// detection and commit.
func (s ValidationStatus) Eligible() bool {
	return s == StatusValid || s == StatusWarning
}

// Severity tags a validation issue as blocking or advisory.
type Severity string

const (
	SeverityRequired Severity = "required"
	SeverityAdvisory Severity = "advisory"
)

// Issue is one structured validator finding attached to a record.
// Validators report issues instead of failing; bad data never throws.
type Issue struct {
	Validator string   `json:"validator"`
	Field     string   `json:"field,omitempty"`
	Message   string   `json:"message"`
	Severity  Severity `json:"severity"`
}

// RecordMeta is the staging metadata shared by every entity kind: package
// reference, source-device original id, validation outcome, approval flag,
// and the authoritative id written back on commit.
type RecordMeta struct {
	ID          domain.RecordID
	PackageID   domain.PackageID
	Kind        domain.EntityKind
	OriginalID  string
	Status      ValidationStatus
	Approved    bool
	CommittedID domain.EntityID
	Issues      []Issue
}

// Record is implemented by all staged entity kinds via the embedded meta.
type Record interface {
	Meta() *RecordMeta
}

func (m *RecordMeta) Meta() *RecordMeta { return m }

// NewMeta initializes staging metadata for a freshly ingested record.
// Records start Valid and unapproved; validation and review set the rest.
func NewMeta(pkgID domain.PackageID, kind domain.EntityKind, originalID string) RecordMeta {
	return RecordMeta{
		ID:         domain.NewRecordID(),
		PackageID:  pkgID,
		Kind:       kind,
		OriginalID: originalID,
		Status:     StatusValid,
	}
}

// New returns an empty record of the given kind, ready for payload
// decoding.
func New(kind domain.EntityKind) (Record, error) {
	switch kind {
	case domain.KindBuilding:
		return &Building{}, nil
	case domain.KindPropertyUnit:
		return &PropertyUnit{}, nil
	case domain.KindPerson:
		return &Person{}, nil
	case domain.KindHousehold:
		return &Household{}, nil
	case domain.KindRelation:
		return &Relation{}, nil
	case domain.KindEvidence:
		return &Evidence{}, nil
	case domain.KindClaim:
		return &Claim{}, nil
	case domain.KindSurvey:
		return &Survey{}, nil
	default:
		return nil, fmt.Errorf("unknown entity kind: %q", kind)
	}
}

// Point is a geometry vertex in WGS84.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Building is a surveyed structure. Buildings legitimately recur across
// packages, so they never raise duplicate conflicts themselves.
type Building struct {
	RecordMeta `json:"-"`
	Code     string  `json:"code"`
	Address  string  `json:"address"`
	Geometry []Point `json:"geometry"`
}

// PropertyUnit is one unit inside a staged building, linked by the
// building's original id within the same package.
type PropertyUnit struct {
	RecordMeta `json:"-"`
	BuildingOriginalID string `json:"building_original_id"`
	UnitIdentifier     string `json:"unit_identifier"`
	Floor              int    `json:"floor"`
	Use                string `json:"use"`
}

// Person is a surveyed natural person.
type Person struct {
	RecordMeta `json:"-"`
	NationalID string `json:"national_id"`
	FirstName  string `json:"first_name"`
	FatherName string `json:"father_name"`
	FamilyName string `json:"family_name"`
	Phone      string `json:"phone"`
	BirthYear  int    `json:"birth_year"`
	Gender     string `json:"gender"`
}

// Household groups persons under a head of household.
type Household struct {
	RecordMeta `json:"-"`
	HeadPersonOriginalID string `json:"head_person_original_id"`
	MemberCount          int    `json:"member_count"`
}

// Relation is an ownership or tenure relation between a person and a unit.
type Relation struct {
	RecordMeta `json:"-"`
	PersonOriginalID string `json:"person_original_id"`
	UnitOriginalID   string `json:"unit_original_id"`
	RelationType     string `json:"relation_type"`
	ShareNumerator   int    `json:"share_numerator"`
	ShareDenominator int    `json:"share_denominator"`
}

// Evidence documents a relation (deed, utility bill, witness statement).
type Evidence struct {
	RecordMeta `json:"-"`
	RelationOriginalID string    `json:"relation_original_id"`
	Kind               string    `json:"kind"`
	IssuedDate         time.Time `json:"issued_date"`
}

// Claim is a tenure claim filed against a unit.
type Claim struct {
	RecordMeta `json:"-"`
	ClaimantOriginalID string    `json:"claimant_original_id"`
	UnitOriginalID     string    `json:"unit_original_id"`
	Status             string    `json:"status"`
	FiledDate          time.Time `json:"filed_date"`
}

// Survey captures field-collection provenance for the package.
type Survey struct {
	RecordMeta `json:"-"`
	Surveyor   string    `json:"surveyor"`
	SurveyDate time.Time `json:"survey_date"`
	DeviceID   string    `json:"device_id"`
}
