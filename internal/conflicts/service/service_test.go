package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/audit"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/authoritative"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/conflicts/models"
	conflictstore "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/conflicts/store"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/matching"
	pkgmodels "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/packages/models"
	pkgservice "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/packages/service"
	pkgstore "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/packages/store"
	stagingmodels "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/staging/models"
	stagingstore "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/staging/store"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
	dErrors "github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain-errors"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/requestcontext"
)

type fixture struct {
	svc       *Service
	conflicts *conflictstore.InMemory
	staging   *stagingstore.InMemory
	dir       *authoritative.InMemory
	packages  *pkgservice.Service
	audit     *audit.Memory
	pkg       *pkgmodels.ImportPackage
}

// newFixture wires the review workflow against in-memory stores with the
// package already sitting in ReviewingConflicts.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	sink := audit.NewMemory()
	packages := pkgservice.New(pkgstore.NewInMemory())
	pkg, err := packages.Create(ctx, pkgservice.NewPackage{Source: "team-aleppo-3"})
	require.NoError(t, err)
	for _, step := range [][2]pkgmodels.Status{
		{pkgmodels.StatusPending, pkgmodels.StatusValidating},
		{pkgmodels.StatusValidating, pkgmodels.StatusValidated},
		{pkgmodels.StatusValidated, pkgmodels.StatusDetecting},
		{pkgmodels.StatusDetecting, pkgmodels.StatusReviewingConflicts},
	} {
		require.NoError(t, packages.Transition(ctx, pkg.ID, step[0], step[1]))
	}

	f := &fixture{
		conflicts: conflictstore.NewInMemory(),
		staging:   stagingstore.NewInMemory(),
		dir:       authoritative.NewInMemory(),
		packages:  packages,
		audit:     sink,
		pkg:       pkg,
	}
	f.svc = New(f.conflicts, f.staging, f.dir, packages, WithAudit(sink))
	return f
}

func (f *fixture) stagePerson(t *testing.T, originalID string) *stagingmodels.Person {
	t.Helper()
	p := &stagingmodels.Person{
		RecordMeta: stagingmodels.NewMeta(f.pkg.ID, domain.KindPerson, originalID),
		FirstName:  "Ahmad",
		FamilyName: "Haddad",
	}
	require.NoError(t, f.staging.Add(context.Background(), p))
	require.NoError(t, f.staging.SetApproval(context.Background(), p.ID, true))
	return p
}

func (f *fixture) ingest(t *testing.T, candidates ...matching.Candidate) []*models.Conflict {
	t.Helper()
	_, _, err := f.svc.IngestCandidates(context.Background(), f.pkg.ID, candidates)
	require.NoError(t, err)
	list, _, err := f.conflicts.List(context.Background(), conflictstore.Filter{PackageID: f.pkg.ID})
	require.NoError(t, err)
	return list
}

func personCandidate(a, b matching.EntityRef, confidence matching.Confidence) matching.Candidate {
	score := 75
	if confidence == matching.ConfidenceHigh {
		score = 95
	}
	return matching.Candidate{
		Kind:       domain.KindPerson,
		A:          a,
		B:          b,
		Score:      score,
		Confidence: confidence,
	}
}

func stagedRef(p *stagingmodels.Person) matching.EntityRef {
	return matching.EntityRef{StagedID: p.ID, OriginalID: p.OriginalID}
}

func TestIngestCandidatesDeduplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.stagePerson(t, "p-1"), f.stagePerson(t, "p-2")

	cand := personCandidate(stagedRef(a), stagedRef(b), matching.ConfidenceHigh)
	created, open, err := f.svc.IngestCandidates(ctx, f.pkg.ID, []matching.Candidate{cand})
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, open)

	// Re-running detection with the pair reversed creates nothing new.
	reversed := personCandidate(stagedRef(b), stagedRef(a), matching.ConfidenceMedium)
	created, open, err = f.svc.IngestCandidates(ctx, f.pkg.ID, []matching.Candidate{reversed})
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Equal(t, 1, open)

	list, _, err := f.conflicts.List(ctx, conflictstore.Filter{PackageID: f.pkg.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.PriorityHigh, list[0].Priority, "priority follows match confidence")
}

func TestIngestDoesNotResurrectDecidedPairs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.stagePerson(t, "p-1"), f.stagePerson(t, "p-2")

	cand := personCandidate(stagedRef(a), stagedRef(b), matching.ConfidenceMedium)
	list := f.ingest(t, cand)
	require.Len(t, list, 1)

	_, err := f.svc.Resolve(ctx, list[0].ID, Decision{Outcome: models.OutcomeKeepBoth, Reason: "distinct persons"})
	require.NoError(t, err)

	created, open, err := f.svc.IngestCandidates(ctx, f.pkg.ID, []matching.Candidate{cand})
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Zero(t, open)
}

func TestResolveRequiresReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.stagePerson(t, "p-1"), f.stagePerson(t, "p-2")
	list := f.ingest(t, personCandidate(stagedRef(a), stagedRef(b), matching.ConfidenceMedium))

	_, err := f.svc.Resolve(ctx, list[0].ID, Decision{Outcome: models.OutcomeKeepBoth})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	got, err := f.svc.Detail(ctx, list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingReview, got.Status, "nothing mutated")
}

func TestResolveTwiceIsStateConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.stagePerson(t, "p-1"), f.stagePerson(t, "p-2")
	list := f.ingest(t, personCandidate(stagedRef(a), stagedRef(b), matching.ConfidenceMedium))

	actor := requestcontext.WithActorID(ctx, "reviewer-7")
	resolved, err := f.svc.Resolve(actor, list[0].ID, Decision{Outcome: models.OutcomeKeepBoth, Reason: "distinct"})
	require.NoError(t, err)
	assert.Equal(t, "reviewer-7", resolved.ResolvedBy)

	_, err = f.svc.Resolve(ctx, list[0].ID, Decision{Outcome: models.OutcomeKeepBoth, Reason: "again"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeStateConflict))
}

func TestResolveMergeStagedPair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.stagePerson(t, "p-1"), f.stagePerson(t, "p-2")

	// A relation pointing at the discarded person must follow the merge.
	relation := &stagingmodels.Relation{
		RecordMeta:       stagingmodels.NewMeta(f.pkg.ID, domain.KindRelation, "r-1"),
		PersonOriginalID: "p-2",
		UnitOriginalID:   "u-1",
	}
	require.NoError(t, f.staging.Add(ctx, relation))

	list := f.ingest(t, personCandidate(stagedRef(a), stagedRef(b), matching.ConfidenceHigh))
	resolved, err := f.svc.Resolve(ctx, list[0].ID, Decision{
		Outcome: models.OutcomeMerge,
		Reason:  "same person surveyed twice",
		Master:  "a",
	})
	require.NoError(t, err)

	// The conflict keeps a trace of which side survived.
	assert.Equal(t, a.ID, resolved.Master.StagedID)
	assert.Equal(t, b.ID, resolved.Discarded.StagedID)
	reloaded, err := f.svc.Detail(ctx, resolved.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, reloaded.Master.StagedID)
	assert.Equal(t, b.ID, reloaded.Discarded.StagedID)

	discarded, err := f.staging.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, stagingmodels.StatusSkipped, discarded.Meta().Status)
	assert.False(t, discarded.Meta().Approved)

	got, err := f.staging.Get(ctx, relation.ID)
	require.NoError(t, err)
	assert.Equal(t, "p-1", got.(*stagingmodels.Relation).PersonOriginalID)
}

func TestResolveKeepFirstAgainstAuthoritative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	existingID := f.dir.SeedPerson(authoritative.Person{NationalID: "01234567890"})
	staged := f.stagePerson(t, "p-1")

	list := f.ingest(t, personCandidate(
		matching.EntityRef{EntityID: existingID},
		stagedRef(staged),
		matching.ConfidenceHigh,
	))

	// Keep the authoritative record; the staged one is discarded and pinned
	// to the survivor for commit-time reference translation.
	resolved, err := f.svc.Resolve(ctx, list[0].ID, Decision{Outcome: models.OutcomeKeepFirst, Reason: "registry wins"})
	require.NoError(t, err)
	assert.Equal(t, existingID, resolved.Master.EntityID)
	assert.Equal(t, staged.ID, resolved.Discarded.StagedID)

	got, err := f.staging.Get(ctx, staged.ID)
	require.NoError(t, err)
	assert.Equal(t, stagingmodels.StatusSkipped, got.Meta().Status)
	assert.Equal(t, existingID, got.Meta().CommittedID)
}

func TestResolveMergeAuthoritativePair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	masterID := f.dir.SeedPerson(authoritative.Person{FirstName: "Ahmad"})
	discardedID := f.dir.SeedPerson(authoritative.Person{FirstName: "Ahmed"})
	f.dir.SeedRelation(authoritative.Relation{PersonID: discardedID})

	list := f.ingest(t, personCandidate(
		matching.EntityRef{EntityID: masterID},
		matching.EntityRef{EntityID: discardedID},
		matching.ConfidenceHigh,
	))

	_, err := f.svc.Resolve(ctx, list[0].ID, Decision{
		Outcome: models.OutcomeMerge,
		Reason:  "same registry person",
		Master:  "a",
	})
	require.NoError(t, err)

	discarded, err := f.dir.GetPerson(ctx, discardedID)
	require.NoError(t, err)
	assert.False(t, discarded.Active)
	assert.Len(t, f.dir.RelationsOf(masterID), 1, "relations relinked to the master")
}

func TestResolveMergeRejectsStagedMasterOverAuthoritative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	existingID := f.dir.SeedPerson(authoritative.Person{FirstName: "Ahmad"})
	staged := f.stagePerson(t, "p-1")

	list := f.ingest(t, personCandidate(
		stagedRef(staged),
		matching.EntityRef{EntityID: existingID},
		matching.ConfidenceHigh,
	))

	_, err := f.svc.Resolve(ctx, list[0].ID, Decision{
		Outcome: models.OutcomeMerge,
		Reason:  "field data wins",
		Master:  "a",
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	got, err := f.svc.Detail(ctx, list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingReview, got.Status, "failed merge leaves the conflict reviewable")
}

func TestResolveMarkAsDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.stagePerson(t, "p-1"), f.stagePerson(t, "p-2")
	relation := &stagingmodels.Relation{
		RecordMeta:       stagingmodels.NewMeta(f.pkg.ID, domain.KindRelation, "r-1"),
		PersonOriginalID: "p-2",
	}
	require.NoError(t, f.staging.Add(ctx, relation))

	list := f.ingest(t, personCandidate(stagedRef(a), stagedRef(b), matching.ConfidenceMedium))
	_, err := f.svc.Resolve(ctx, list[0].ID, Decision{
		Outcome: models.OutcomeMarkAsDuplicate,
		Reason:  "flag for later cleanup",
	})
	require.NoError(t, err)

	flagged, err := f.staging.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, stagingmodels.StatusSkipped, flagged.Meta().Status)

	got, err := f.staging.Get(ctx, relation.ID)
	require.NoError(t, err)
	assert.Equal(t, "p-2", got.(*stagingmodels.Relation).PersonOriginalID, "no relink on mark-as-duplicate")
}

func TestEscalateKeepsConflictOpen(t *testing.T) {
	f := newFixture(t)
	ctx := requestcontext.WithActorID(context.Background(), "reviewer-7")
	a, b := f.stagePerson(t, "p-1"), f.stagePerson(t, "p-2")
	list := f.ingest(t, personCandidate(stagedRef(a), stagedRef(b), matching.ConfidenceMedium))

	c, err := f.svc.Escalate(ctx, list[0].ID, "needs a supervisor call")
	require.NoError(t, err)
	assert.True(t, c.Escalated)
	assert.Equal(t, models.PriorityHigh, c.Priority, "escalation jumps the queue")
	assert.Equal(t, "reviewer-7", c.EscalatedBy)
	assert.Equal(t, models.StatusPendingReview, c.Status)
	require.Len(t, c.ReviewAttempts, 1)

	reloaded, err := f.svc.Detail(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PriorityHigh, reloaded.Priority)

	// The package stays blocked; escalation is not a decision.
	pkg, err := f.packages.Get(ctx, f.pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, pkgmodels.StatusReviewingConflicts, pkg.Status)
}

func TestIgnoreClosesAndReleasesGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.stagePerson(t, "p-1"), f.stagePerson(t, "p-2")
	list := f.ingest(t, personCandidate(stagedRef(a), stagedRef(b), matching.ConfidenceMedium))

	_, err := f.svc.Ignore(ctx, list[0].ID, "false positive")
	require.NoError(t, err)

	pkg, err := f.packages.Get(ctx, f.pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, pkgmodels.StatusReadyToCommit, pkg.Status)
}

func TestGateWaitsForLastOpenConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.stagePerson(t, "p-1")
	b := f.stagePerson(t, "p-2")
	c := f.stagePerson(t, "p-3")

	list := f.ingest(t,
		personCandidate(stagedRef(a), stagedRef(b), matching.ConfidenceMedium),
		personCandidate(stagedRef(a), stagedRef(c), matching.ConfidenceMedium),
	)
	require.Len(t, list, 2)

	_, err := f.svc.Resolve(ctx, list[0].ID, Decision{Outcome: models.OutcomeKeepBoth, Reason: "distinct"})
	require.NoError(t, err)

	pkg, err := f.packages.Get(ctx, f.pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, pkgmodels.StatusReviewingConflicts, pkg.Status, "one conflict still open")

	_, err = f.svc.Resolve(ctx, list[1].ID, Decision{Outcome: models.OutcomeKeepBoth, Reason: "distinct"})
	require.NoError(t, err)

	pkg, err = f.packages.Get(ctx, f.pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, pkgmodels.StatusReadyToCommit, pkg.Status)
}

func TestAssignAndReviewAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := requestcontext.WithActorID(context.Background(), "reviewer-7")
	a, b := f.stagePerson(t, "p-1"), f.stagePerson(t, "p-2")
	list := f.ingest(t, personCandidate(stagedRef(a), stagedRef(b), matching.ConfidenceMedium))

	c, err := f.svc.Assign(ctx, list[0].ID, "reviewer-9")
	require.NoError(t, err)
	assert.Equal(t, "reviewer-9", c.Assignee)

	c, err = f.svc.RecordReviewAttempt(ctx, list[0].ID, "waiting on the field team")
	require.NoError(t, err)
	require.Len(t, c.ReviewAttempts, 1)
	assert.Equal(t, "reviewer-7", c.ReviewAttempts[0].By)
}

func TestAuditTrail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.stagePerson(t, "p-1"), f.stagePerson(t, "p-2")
	list := f.ingest(t, personCandidate(stagedRef(a), stagedRef(b), matching.ConfidenceHigh))

	_, err := f.svc.Resolve(ctx, list[0].ID, Decision{
		Outcome: models.OutcomeMerge,
		Reason:  "same person",
		Master:  "a",
	})
	require.NoError(t, err)

	var actions []audit.Action
	for _, e := range f.audit.Events() {
		actions = append(actions, e.Action)
	}
	assert.Contains(t, actions, audit.ActionConflictCreated)
	assert.Contains(t, actions, audit.ActionConflictResolved)
	assert.Contains(t, actions, audit.ActionMergePerformed)
}
