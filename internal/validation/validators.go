package validation

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/staging/models"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/vocabulary"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
)

// dataConsistency checks per-record required fields and value sanity.
type dataConsistency struct{}

func (dataConsistency) Name() string { return "data_consistency" }

func (v dataConsistency) Validate(_ context.Context, in *Input) (*Result, error) {
	res := &Result{}
	currentYear := time.Now().Year()

	for _, rec := range in.Records[domain.KindPerson] {
		p := rec.(*models.Person)
		if p.FirstName == "" && p.FamilyName == "" {
			res.add(p.ID, v.Name(), "name", "person has neither first nor family name", models.SeverityRequired)
		}
		if p.BirthYear != 0 && (p.BirthYear < 1900 || p.BirthYear > currentYear) {
			res.add(p.ID, v.Name(), "birth_year", fmt.Sprintf("birth year %d out of range", p.BirthYear), models.SeverityRequired)
		}
		if p.Phone == "" {
			res.add(p.ID, v.Name(), "phone", "person has no phone number", models.SeverityAdvisory)
		}
	}

	for _, rec := range in.Records[domain.KindPropertyUnit] {
		u := rec.(*models.PropertyUnit)
		if u.UnitIdentifier == "" {
			res.add(u.ID, v.Name(), "unit_identifier", "unit identifier is required", models.SeverityRequired)
		}
		if u.BuildingOriginalID == "" {
			res.add(u.ID, v.Name(), "building_original_id", "unit is not linked to a building", models.SeverityRequired)
		}
	}

	for _, rec := range in.Records[domain.KindRelation] {
		r := rec.(*models.Relation)
		if r.ShareDenominator != 0 && r.ShareNumerator > r.ShareDenominator {
			res.add(r.ID, v.Name(), "share", "ownership share exceeds 1/1", models.SeverityRequired)
		}
		if r.ShareDenominator == 0 {
			res.add(r.ID, v.Name(), "share", "share denominator is zero", models.SeverityRequired)
		}
	}

	return res, nil
}

// relationIntegrity checks that cross-entity references resolve within the
// same package by original id.
type relationIntegrity struct{}

func (relationIntegrity) Name() string { return "relation_integrity" }

func (v relationIntegrity) Validate(_ context.Context, in *Input) (*Result, error) {
	res := &Result{}
	persons := in.ByOriginalID(domain.KindPerson)
	units := in.ByOriginalID(domain.KindPropertyUnit)
	buildings := in.ByOriginalID(domain.KindBuilding)
	relations := in.ByOriginalID(domain.KindRelation)

	for _, rec := range in.Records[domain.KindPropertyUnit] {
		u := rec.(*models.PropertyUnit)
		if u.BuildingOriginalID != "" {
			if _, ok := buildings[u.BuildingOriginalID]; !ok {
				res.add(u.ID, v.Name(), "building_original_id",
					fmt.Sprintf("referenced building %q not in package", u.BuildingOriginalID), models.SeverityRequired)
			}
		}
	}

	for _, rec := range in.Records[domain.KindRelation] {
		r := rec.(*models.Relation)
		if _, ok := persons[r.PersonOriginalID]; !ok {
			res.add(r.ID, v.Name(), "person_original_id",
				fmt.Sprintf("referenced person %q not in package", r.PersonOriginalID), models.SeverityRequired)
		}
		if _, ok := units[r.UnitOriginalID]; !ok {
			res.add(r.ID, v.Name(), "unit_original_id",
				fmt.Sprintf("referenced unit %q not in package", r.UnitOriginalID), models.SeverityRequired)
		}
	}

	for _, rec := range in.Records[domain.KindEvidence] {
		e := rec.(*models.Evidence)
		if _, ok := relations[e.RelationOriginalID]; !ok {
			res.add(e.ID, v.Name(), "relation_original_id",
				fmt.Sprintf("referenced relation %q not in package", e.RelationOriginalID), models.SeverityRequired)
		}
	}

	for _, rec := range in.Records[domain.KindClaim] {
		c := rec.(*models.Claim)
		if _, ok := persons[c.ClaimantOriginalID]; !ok {
			res.add(c.ID, v.Name(), "claimant_original_id",
				fmt.Sprintf("referenced claimant %q not in package", c.ClaimantOriginalID), models.SeverityRequired)
		}
		if _, ok := units[c.UnitOriginalID]; !ok {
			res.add(c.ID, v.Name(), "unit_original_id",
				fmt.Sprintf("referenced unit %q not in package", c.UnitOriginalID), models.SeverityRequired)
		}
	}

	return res, nil
}

// ownershipEvidence flags ownership relations with no supporting evidence.
// Advisory: undocumented tenure is common in field collection and reviewers
// decide case by case.
type ownershipEvidence struct{}

func (ownershipEvidence) Name() string { return "ownership_evidence" }

func (v ownershipEvidence) Validate(_ context.Context, in *Input) (*Result, error) {
	res := &Result{}
	documented := make(map[string]bool)
	for _, rec := range in.Records[domain.KindEvidence] {
		documented[rec.(*models.Evidence).RelationOriginalID] = true
	}
	for _, rec := range in.Records[domain.KindRelation] {
		r := rec.(*models.Relation)
		if r.RelationType == "ownership" && !documented[r.OriginalID] {
			res.add(r.ID, v.Name(), "evidence", "ownership relation has no supporting evidence", models.SeverityAdvisory)
		}
	}
	return res, nil
}

// householdStructure checks head references and member-count plausibility.
type householdStructure struct{}

func (householdStructure) Name() string { return "household_structure" }

const maxPlausibleHouseholdSize = 30

func (v householdStructure) Validate(_ context.Context, in *Input) (*Result, error) {
	res := &Result{}
	persons := in.ByOriginalID(domain.KindPerson)
	for _, rec := range in.Records[domain.KindHousehold] {
		h := rec.(*models.Household)
		if _, ok := persons[h.HeadPersonOriginalID]; !ok {
			res.add(h.ID, v.Name(), "head_person_original_id",
				fmt.Sprintf("household head %q not in package", h.HeadPersonOriginalID), models.SeverityRequired)
		}
		if h.MemberCount < 1 {
			res.add(h.ID, v.Name(), "member_count", "household has no members", models.SeverityRequired)
		} else if h.MemberCount > maxPlausibleHouseholdSize {
			res.add(h.ID, v.Name(), "member_count",
				fmt.Sprintf("household size %d is implausible", h.MemberCount), models.SeverityAdvisory)
		}
	}
	return res, nil
}

// spatialGeometry checks building footprints for well-formedness.
type spatialGeometry struct{}

func (spatialGeometry) Name() string { return "spatial_geometry" }

func (v spatialGeometry) Validate(_ context.Context, in *Input) (*Result, error) {
	res := &Result{}
	for _, rec := range in.Records[domain.KindBuilding] {
		b := rec.(*models.Building)
		if len(b.Geometry) == 0 {
			res.add(b.ID, v.Name(), "geometry", "building has no footprint geometry", models.SeverityAdvisory)
			continue
		}
		if len(b.Geometry) < 3 {
			res.add(b.ID, v.Name(), "geometry",
				fmt.Sprintf("footprint has %d vertices, need at least 3", len(b.Geometry)), models.SeverityRequired)
		}
		for i, pt := range b.Geometry {
			if pt.Lat < -90 || pt.Lat > 90 || pt.Lng < -180 || pt.Lng > 180 {
				res.add(b.ID, v.Name(), "geometry",
					fmt.Sprintf("vertex %d outside WGS84 bounds", i), models.SeverityRequired)
				break
			}
		}
	}
	return res, nil
}

// claimLifecycle checks claim statuses and dates.
type claimLifecycle struct{}

func (claimLifecycle) Name() string { return "claim_lifecycle" }

var claimStatuses = map[string]bool{
	"draft":        true,
	"filed":        true,
	"under_review": true,
	"approved":     true,
	"rejected":     true,
}

func (v claimLifecycle) Validate(_ context.Context, in *Input) (*Result, error) {
	res := &Result{}
	now := time.Now()
	for _, rec := range in.Records[domain.KindClaim] {
		c := rec.(*models.Claim)
		if !claimStatuses[c.Status] {
			res.add(c.ID, v.Name(), "status", fmt.Sprintf("unknown claim status %q", c.Status), models.SeverityRequired)
		}
		if !c.FiledDate.IsZero() && c.FiledDate.After(now) {
			res.add(c.ID, v.Name(), "filed_date", "claim filed date is in the future", models.SeverityRequired)
		}
		if c.Status != "draft" && c.FiledDate.IsZero() {
			res.add(c.ID, v.Name(), "filed_date",
				fmt.Sprintf("claim in status %q must have a filed date", c.Status), models.SeverityRequired)
		}
	}
	return res, nil
}

// vocabularyVersion compares the package's declared code-list version
// against the canonical one. A MAJOR gap quarantines the whole package;
// MINOR/PATCH gaps are advisory.
type vocabularyVersion struct {
	provider vocabulary.Provider
}

func (vocabularyVersion) Name() string { return "vocabulary_version" }

func (v vocabularyVersion) Validate(ctx context.Context, in *Input) (*Result, error) {
	canonical, err := v.provider.CurrentVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve canonical code-list version: %w", err)
	}

	res := &Result{}
	switch {
	case in.DeclaredVersion.IsZero():
		res.Quarantine = true
		res.QuarantineReason = "package declares no code-list version"
	case in.DeclaredVersion.MajorMismatch(canonical):
		res.Quarantine = true
		res.QuarantineReason = fmt.Sprintf("code-list version %s is incompatible with canonical %s",
			in.DeclaredVersion, canonical)
	case !in.DeclaredVersion.Equal(canonical):
		res.Notes = append(res.Notes, fmt.Sprintf("code-list version %s differs from canonical %s (minor/patch)",
			in.DeclaredVersion, canonical))
	}
	return res, nil
}

// codeFormat checks the structured building code (administrative + sequence
// digits) and the unit identifier format.
type codeFormat struct{}

func (codeFormat) Name() string { return "code_format" }

var (
	buildingCodeRe   = regexp.MustCompile(`^\d{17}$`)
	unitIdentifierRe = regexp.MustCompile(`^[A-Z]{1,3}-\d{1,4}$`)
)

func (v codeFormat) Validate(_ context.Context, in *Input) (*Result, error) {
	res := &Result{}
	for _, rec := range in.Records[domain.KindBuilding] {
		b := rec.(*models.Building)
		if !buildingCodeRe.MatchString(b.Code) {
			res.add(b.ID, v.Name(), "code",
				fmt.Sprintf("building code %q does not match the 17-digit format", b.Code), models.SeverityRequired)
		}
	}
	for _, rec := range in.Records[domain.KindPropertyUnit] {
		u := rec.(*models.PropertyUnit)
		if u.UnitIdentifier != "" && !unitIdentifierRe.MatchString(u.UnitIdentifier) {
			res.add(u.ID, v.Name(), "unit_identifier",
				fmt.Sprintf("unit identifier %q does not match the expected format", u.UnitIdentifier), models.SeverityAdvisory)
		}
	}
	return res, nil
}
