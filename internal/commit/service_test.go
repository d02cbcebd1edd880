package commit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/audit"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/authoritative"
	conflictmodels "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/conflicts/models"
	conflictstore "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/conflicts/store"
	pkgmodels "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/packages/models"
	pkgservice "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/packages/service"
	pkgstore "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/packages/store"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/staging/models"
	stagingstore "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/staging/store"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
	dErrors "github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain-errors"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/requestcontext"
)

type fixture struct {
	svc       *Service
	staging   *stagingstore.InMemory
	dir       *authoritative.InMemory
	packages  *pkgservice.Service
	conflicts *conflictstore.InMemory
	audit     *audit.Memory
	pkg       *pkgmodels.ImportPackage
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	packages := pkgservice.New(pkgstore.NewInMemory())
	pkg, err := packages.Create(ctx, pkgservice.NewPackage{Source: "team-aleppo-3"})
	require.NoError(t, err)
	for _, step := range [][2]pkgmodels.Status{
		{pkgmodels.StatusPending, pkgmodels.StatusValidating},
		{pkgmodels.StatusValidating, pkgmodels.StatusValidated},
		{pkgmodels.StatusValidated, pkgmodels.StatusDetecting},
		{pkgmodels.StatusDetecting, pkgmodels.StatusReadyToCommit},
	} {
		require.NoError(t, packages.Transition(ctx, pkg.ID, step[0], step[1]))
	}

	f := &fixture{
		staging:   stagingstore.NewInMemory(),
		dir:       authoritative.NewInMemory(),
		packages:  packages,
		conflicts: conflictstore.NewInMemory(),
		audit:     audit.NewMemory(),
		pkg:       pkg,
	}
	f.svc = New(f.staging, f.dir, packages, f.conflicts, WithAudit(f.audit))
	return f
}

// add stages a record and approves it unless approve is false.
func (f *fixture) add(t *testing.T, rec models.Record, approve bool) {
	t.Helper()
	require.NoError(t, f.staging.Add(context.Background(), rec))
	if approve {
		require.NoError(t, f.staging.SetApproval(context.Background(), rec.Meta().ID, true))
	}
}

func (f *fixture) stageFullPackage(t *testing.T) {
	t.Helper()
	pkgID := f.pkg.ID
	f.add(t, &models.Building{
		RecordMeta: models.NewMeta(pkgID, domain.KindBuilding, "b-1"),
		Code:       "01020300100200001",
		Address:    "Old City, Aleppo",
	}, true)
	f.add(t, &models.PropertyUnit{
		RecordMeta:         models.NewMeta(pkgID, domain.KindPropertyUnit, "u-1"),
		BuildingOriginalID: "b-1",
		UnitIdentifier:     "A-12",
		Floor:              2,
	}, true)
	f.add(t, &models.Person{
		RecordMeta: models.NewMeta(pkgID, domain.KindPerson, "p-1"),
		FirstName:  "Ahmad",
		FamilyName: "Haddad",
	}, true)
	f.add(t, &models.Household{
		RecordMeta:           models.NewMeta(pkgID, domain.KindHousehold, "h-1"),
		HeadPersonOriginalID: "p-1",
		MemberCount:          4,
	}, true)
	f.add(t, &models.Relation{
		RecordMeta:       models.NewMeta(pkgID, domain.KindRelation, "r-1"),
		PersonOriginalID: "p-1",
		UnitOriginalID:   "u-1",
		RelationType:     "ownership",
		ShareNumerator:   1,
		ShareDenominator: 1,
	}, true)
	f.add(t, &models.Evidence{
		RecordMeta:         models.NewMeta(pkgID, domain.KindEvidence, "e-1"),
		RelationOriginalID: "r-1",
		Kind:               "deed",
		IssuedDate:         time.Date(2019, 5, 1, 0, 0, 0, 0, time.UTC),
	}, true)
	f.add(t, &models.Claim{
		RecordMeta:         models.NewMeta(pkgID, domain.KindClaim, "c-1"),
		ClaimantOriginalID: "p-1",
		UnitOriginalID:     "u-1",
		Status:             "filed",
		FiledDate:          time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
	}, true)
	f.add(t, &models.Survey{
		RecordMeta: models.NewMeta(pkgID, domain.KindSurvey, "s-1"),
		Surveyor:   "team-aleppo-3",
		DeviceID:   "tablet-17",
	}, true)
}

func TestCommitFullPackage(t *testing.T) {
	f := newFixture(t)
	ctx := requestcontext.WithActorID(context.Background(), "operator-3")
	f.stageFullPackage(t)

	report, err := f.svc.Commit(ctx, f.pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, pkgmodels.StatusCompleted, report.Status)
	assert.Equal(t, 8, report.TotalCommitted())
	assert.Zero(t, report.TotalFailed())
	assert.Len(t, report.Mappings, 8)

	// The outcome is written back onto the package itself.
	pkg, err := f.packages.Get(ctx, f.pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, pkgmodels.StatusCompleted, pkg.Status)
	assert.Equal(t, "operator-3", pkg.CommittedBy)
	assert.Equal(t, 8, pkg.CommittedCount)
	assert.Zero(t, pkg.FailedCount)
	assert.False(t, pkg.CompletedAt.IsZero())

	// The unit landed under the committed building with its composite key.
	unit, err := f.dir.FindUnitByCompositeKey(ctx, "01020300100200001", "A-12")
	require.NoError(t, err)
	assert.False(t, unit.BuildingID.IsNil())

	// Committed ids were written back to staging.
	staged, err := f.staging.FindByOriginalID(ctx, f.pkg.ID, domain.KindPropertyUnit, "u-1")
	require.NoError(t, err)
	assert.Equal(t, unit.ID, staged.Meta().CommittedID)
}

func TestCommitRequiresReadyToCommit(t *testing.T) {
	f := newFixture(t)
	packages := pkgservice.New(pkgstore.NewInMemory())
	pending, err := packages.Create(context.Background(), pkgservice.NewPackage{Source: "team-homs-1"})
	require.NoError(t, err)

	svc := New(f.staging, f.dir, packages, conflictstore.NewInMemory())
	_, err = svc.Commit(context.Background(), pending.ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeStateConflict))
}

func TestCommitPartialFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.stageFullPackage(t)

	// An approved relation whose unit reference cannot resolve fails alone;
	// everything else still commits.
	f.add(t, &models.Relation{
		RecordMeta:       models.NewMeta(f.pkg.ID, domain.KindRelation, "r-2"),
		PersonOriginalID: "p-1",
		UnitOriginalID:   "u-missing",
		RelationType:     "tenancy",
	}, true)

	report, err := f.svc.Commit(ctx, f.pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, pkgmodels.StatusPartiallyCompleted, report.Status)
	assert.Equal(t, 8, report.TotalCommitted())
	assert.Equal(t, 1, report.TotalFailed())
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "r-2", report.Failures[0].OriginalID)
	assert.Contains(t, report.Failures[0].Reason, "u-missing")

	relations := report.Kinds[domain.KindRelation]
	assert.Equal(t, 2, relations.Approved)
	assert.Equal(t, 1, relations.Committed)
	assert.Equal(t, 1, relations.Failed)

	pkg, err := f.packages.Get(ctx, f.pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, pkg.CommittedCount)
	assert.Equal(t, 1, pkg.FailedCount)
}

func TestCommitAllFailuresIsFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, &models.Relation{
		RecordMeta:       models.NewMeta(f.pkg.ID, domain.KindRelation, "r-1"),
		PersonOriginalID: "p-missing",
		UnitOriginalID:   "u-missing",
	}, true)

	report, err := f.svc.Commit(ctx, f.pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, pkgmodels.StatusFailed, report.Status)
	assert.Zero(t, report.TotalCommitted())
	assert.Equal(t, 1, report.TotalFailed())

	pkg, err := f.packages.Get(ctx, f.pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, pkgmodels.StatusFailed, pkg.Status)
}

func TestCommitTranslatesMergedReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.stageFullPackage(t)

	// A second person merged away into an existing authoritative person:
	// skipped at commit, but references to it land on the survivor.
	survivorID := f.dir.SeedPerson(authoritative.Person{FirstName: "Ahmad", FamilyName: "Haddad"})
	merged := &models.Person{
		RecordMeta: models.NewMeta(f.pkg.ID, domain.KindPerson, "p-2"),
		FirstName:  "Ahmed",
		FamilyName: "Haddad",
	}
	f.add(t, merged, false)
	require.NoError(t, f.staging.MarkMerged(ctx, merged.ID, survivorID))

	f.add(t, &models.Relation{
		RecordMeta:       models.NewMeta(f.pkg.ID, domain.KindRelation, "r-2"),
		PersonOriginalID: "p-2",
		UnitOriginalID:   "u-1",
		RelationType:     "tenancy",
	}, true)

	report, err := f.svc.Commit(ctx, f.pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, pkgmodels.StatusCompleted, report.Status)
	assert.Equal(t, 1, report.Kinds[domain.KindPerson].Skipped)

	relations := f.dir.RelationsOf(survivorID)
	require.Len(t, relations, 1)
	assert.Equal(t, "tenancy", relations[0].RelationType)
}

func TestBuildReportAfterCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.stageFullPackage(t)
	f.add(t, &models.Relation{
		RecordMeta:       models.NewMeta(f.pkg.ID, domain.KindRelation, "r-2"),
		PersonOriginalID: "p-1",
		UnitOriginalID:   "u-missing",
	}, true)

	_, err := f.svc.Commit(ctx, f.pkg.ID)
	require.NoError(t, err)

	report, err := f.svc.BuildReport(ctx, f.pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, pkgmodels.StatusPartiallyCompleted, report.Status)
	assert.Equal(t, 8, report.TotalCommitted())
	assert.Equal(t, 1, report.TotalFailed(), "failed derived as approved minus committed")

	// Before any commit a fresh package reports no failures.
	other := newFixture(t)
	other.stageFullPackage(t)
	fresh, err := other.svc.BuildReport(ctx, other.pkg.ID)
	require.NoError(t, err)
	assert.Zero(t, fresh.TotalFailed())
	assert.Zero(t, fresh.TotalCommitted())
}

func TestReportConflictStatistics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seed := func(status conflictmodels.Status, outcome conflictmodels.Outcome) {
		t.Helper()
		_, err := f.conflicts.CreateIfAbsent(ctx, &conflictmodels.Conflict{
			ID:        domain.NewConflictID(),
			PackageID: f.pkg.ID,
			Type:      conflictmodels.TypePersonDuplicate,
			Status:    status,
			Outcome:   outcome,
			Priority:  conflictmodels.PriorityMedium,
			A:         conflictmodels.Party{StagedID: domain.NewRecordID()},
			B:         conflictmodels.Party{StagedID: domain.NewRecordID()},
			CreatedAt: time.Now(),
		})
		require.NoError(t, err)
	}
	seed(conflictmodels.StatusResolved, conflictmodels.OutcomeMerge)
	seed(conflictmodels.StatusResolved, conflictmodels.OutcomeKeepBoth)
	seed(conflictmodels.StatusIgnored, "")
	seed(conflictmodels.StatusPendingReview, "")

	report, err := f.svc.BuildReport(ctx, f.pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, report.ConflictsResolved)
	assert.Equal(t, 1, report.ConflictsMerged, "only merge outcomes count as merged")
	assert.Equal(t, 1, report.ConflictsIgnored)
	assert.Equal(t, 1, report.ConflictsOpen)
}
