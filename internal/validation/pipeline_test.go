package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/staging/models"
	stagingstore "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/staging/store"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/vocabulary"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
)

var canonical = vocabulary.Static{Version: domain.CodeListVersion{Major: 2}}

func validPerson(pkgID domain.PackageID, originalID string) *models.Person {
	return &models.Person{
		RecordMeta: models.NewMeta(pkgID, domain.KindPerson, originalID),
		FirstName:  "Ahmad",
		FamilyName: "Haddad",
		Phone:      "0991234567",
		BirthYear:  1980,
	}
}

func stage(t *testing.T, s *stagingstore.InMemory, recs ...models.Record) {
	t.Helper()
	for _, r := range recs {
		require.NoError(t, s.Add(context.Background(), r))
	}
}

func buildInput(pkgID domain.PackageID, declared domain.CodeListVersion, recs ...models.Record) *Input {
	in := &Input{
		PackageID:       pkgID,
		DeclaredVersion: declared,
		Records:         make(map[domain.EntityKind][]models.Record),
	}
	for _, r := range recs {
		kind := r.Meta().Kind
		in.Records[kind] = append(in.Records[kind], r)
	}
	return in
}

func TestRunCleanPackage(t *testing.T) {
	s := stagingstore.NewInMemory()
	pkgID := domain.NewPackageID()
	p := validPerson(pkgID, "p-1")
	stage(t, s, p)

	summary, err := New(canonical).Run(context.Background(),
		buildInput(pkgID, domain.CodeListVersion{Major: 2}, p), s)
	require.NoError(t, err)

	assert.False(t, summary.Quarantined)
	assert.Equal(t, 1, summary.Counts[models.StatusValid])
	assert.True(t, summary.Eligible())

	got, err := s.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusValid, got.Meta().Status)
	assert.True(t, got.Meta().Approved)
}

func TestRunWorstStatusWins(t *testing.T) {
	s := stagingstore.NewInMemory()
	pkgID := domain.NewPackageID()

	// Missing phone (advisory) plus an out-of-range birth year (required):
	// the record must land on invalid, not warning.
	p := validPerson(pkgID, "p-1")
	p.Phone = ""
	p.BirthYear = 1850
	stage(t, s, p)

	summary, err := New(canonical).Run(context.Background(),
		buildInput(pkgID, domain.CodeListVersion{Major: 2}, p), s)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Counts[models.StatusInvalid])
	assert.Zero(t, summary.Counts[models.StatusWarning])
	assert.False(t, summary.Eligible())

	got, err := s.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInvalid, got.Meta().Status)
	assert.False(t, got.Meta().Approved)
	assert.Len(t, got.Meta().Issues, 2, "both findings retained")
}

func TestRunAdvisoryOnlyIsWarning(t *testing.T) {
	s := stagingstore.NewInMemory()
	pkgID := domain.NewPackageID()
	p := validPerson(pkgID, "p-1")
	p.Phone = ""
	stage(t, s, p)

	summary, err := New(canonical).Run(context.Background(),
		buildInput(pkgID, domain.CodeListVersion{Major: 2}, p), s)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Counts[models.StatusWarning])
	assert.True(t, summary.Eligible(), "warnings stay eligible")

	got, err := s.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, got.Meta().Approved)
}

func TestRunQuarantineOnMajorMismatch(t *testing.T) {
	s := stagingstore.NewInMemory()
	pkgID := domain.NewPackageID()
	p := validPerson(pkgID, "p-1")
	stage(t, s, p)

	summary, err := New(canonical).Run(context.Background(),
		buildInput(pkgID, domain.CodeListVersion{Major: 1, Minor: 9}, p), s)
	require.NoError(t, err)

	assert.True(t, summary.Quarantined)
	assert.NotEmpty(t, summary.QuarantineReason)

	// Records keep their own status but nothing gets approved.
	got, err := s.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, got.Meta().Approved)
}

func TestRunQuarantineOnMissingVersion(t *testing.T) {
	s := stagingstore.NewInMemory()
	pkgID := domain.NewPackageID()
	p := validPerson(pkgID, "p-1")
	stage(t, s, p)

	summary, err := New(canonical).Run(context.Background(),
		buildInput(pkgID, domain.CodeListVersion{}, p), s)
	require.NoError(t, err)
	assert.True(t, summary.Quarantined)
}

func TestRunMinorDriftIsNoteOnly(t *testing.T) {
	s := stagingstore.NewInMemory()
	pkgID := domain.NewPackageID()
	p := validPerson(pkgID, "p-1")
	stage(t, s, p)

	summary, err := New(canonical).Run(context.Background(),
		buildInput(pkgID, domain.CodeListVersion{Major: 2, Minor: 1}, p), s)
	require.NoError(t, err)

	assert.False(t, summary.Quarantined)
	assert.NotEmpty(t, summary.Notes)
}

func TestRunSkippedRecordsPreserved(t *testing.T) {
	s := stagingstore.NewInMemory()
	pkgID := domain.NewPackageID()
	skipped := validPerson(pkgID, "p-1")
	stage(t, s, skipped)
	require.NoError(t, s.UpdateStatus(context.Background(), skipped.ID, models.StatusSkipped, nil))

	summary, err := New(canonical).Run(context.Background(),
		buildInput(pkgID, domain.CodeListVersion{Major: 2}, skipped), s)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Counts[models.StatusSkipped])
	assert.Zero(t, summary.Counts[models.StatusValid])

	got, err := s.Get(context.Background(), skipped.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSkipped, got.Meta().Status, "operator override survives revalidation")
}

func TestRunCrossReferenceChecks(t *testing.T) {
	s := stagingstore.NewInMemory()
	pkgID := domain.NewPackageID()

	building := &models.Building{
		RecordMeta: models.NewMeta(pkgID, domain.KindBuilding, "b-1"),
		Code:       "01020300100200001",
		Geometry:   []models.Point{{Lat: 33.5, Lng: 36.3}, {Lat: 33.6, Lng: 36.3}, {Lat: 33.6, Lng: 36.4}},
	}
	unit := &models.PropertyUnit{
		RecordMeta:         models.NewMeta(pkgID, domain.KindPropertyUnit, "u-1"),
		BuildingOriginalID: "b-1",
		UnitIdentifier:     "A-12",
	}
	orphan := &models.Relation{
		RecordMeta:       models.NewMeta(pkgID, domain.KindRelation, "r-1"),
		PersonOriginalID: "missing",
		UnitOriginalID:   "u-1",
		RelationType:     "tenancy",
		ShareNumerator:   1,
		ShareDenominator: 1,
	}
	stage(t, s, building, unit, orphan)

	summary, err := New(canonical).Run(context.Background(),
		buildInput(pkgID, domain.CodeListVersion{Major: 2}, building, unit, orphan), s)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Counts[models.StatusValid])
	assert.Equal(t, 1, summary.Counts[models.StatusInvalid])

	got, err := s.Get(context.Background(), orphan.ID)
	require.NoError(t, err)
	require.NotEmpty(t, got.Meta().Issues)
	assert.Equal(t, "relation_integrity", got.Meta().Issues[0].Validator)
}

func TestRunCodeFormat(t *testing.T) {
	s := stagingstore.NewInMemory()
	pkgID := domain.NewPackageID()
	building := &models.Building{
		RecordMeta: models.NewMeta(pkgID, domain.KindBuilding, "b-1"),
		Code:       "not-a-code",
		Geometry:   []models.Point{{Lat: 33.5, Lng: 36.3}, {Lat: 33.6, Lng: 36.3}, {Lat: 33.6, Lng: 36.4}},
	}
	stage(t, s, building)

	summary, err := New(canonical).Run(context.Background(),
		buildInput(pkgID, domain.CodeListVersion{Major: 2}, building), s)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Counts[models.StatusInvalid])
}
