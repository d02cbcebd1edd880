package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/conflicts/models"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/platform/sentinel"
)

func newConflict(pkgID domain.PackageID, a, b models.Party) *models.Conflict {
	now := time.Now()
	return &models.Conflict{
		ID:          domain.NewConflictID(),
		PackageID:   pkgID,
		Type:        models.TypePersonDuplicate,
		Status:      models.StatusPendingReview,
		Priority:    models.PriorityMedium,
		A:           a,
		B:           b,
		Score:       75,
		SLADeadline: now.Add(72 * time.Hour),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func stagedParty() models.Party {
	return models.Party{StagedID: domain.NewRecordID()}
}

func TestCreateIfAbsentDeduplicatesPairs(t *testing.T) {
	s := NewInMemory()
	pkgID := domain.NewPackageID()
	a, b := stagedParty(), stagedParty()

	inserted, err := s.CreateIfAbsent(context.Background(), newConflict(pkgID, a, b))
	require.NoError(t, err)
	assert.True(t, inserted)

	// Same pair in the opposite order is the same conflict.
	inserted, err = s.CreateIfAbsent(context.Background(), newConflict(pkgID, b, a))
	require.NoError(t, err)
	assert.False(t, inserted)

	// Same pair in a different package is a different conflict.
	inserted, err = s.CreateIfAbsent(context.Background(), newConflict(domain.NewPackageID(), a, b))
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestUpdateAndGet(t *testing.T) {
	s := NewInMemory()
	c := newConflict(domain.NewPackageID(), stagedParty(), stagedParty())
	_, err := s.CreateIfAbsent(context.Background(), c)
	require.NoError(t, err)

	c.Status = models.StatusResolved
	c.Outcome = models.OutcomeKeepBoth
	require.NoError(t, s.Update(context.Background(), c))

	got, err := s.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, got.Status)
	assert.Equal(t, models.OutcomeKeepBoth, got.Outcome)

	_, err = s.Get(context.Background(), domain.NewConflictID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	missing := newConflict(domain.NewPackageID(), stagedParty(), stagedParty())
	assert.ErrorIs(t, s.Update(context.Background(), missing), sentinel.ErrNotFound)
}

func TestListQueueOrdering(t *testing.T) {
	s := NewInMemory()
	pkgID := domain.NewPackageID()
	base := time.Now()

	mediumEarly := newConflict(pkgID, stagedParty(), stagedParty())
	mediumEarly.SLADeadline = base.Add(1 * time.Hour)

	highLate := newConflict(pkgID, stagedParty(), stagedParty())
	highLate.Priority = models.PriorityHigh
	highLate.SLADeadline = base.Add(48 * time.Hour)

	highEarly := newConflict(pkgID, stagedParty(), stagedParty())
	highEarly.Priority = models.PriorityHigh
	highEarly.SLADeadline = base.Add(2 * time.Hour)

	for _, c := range []*models.Conflict{mediumEarly, highLate, highEarly} {
		_, err := s.CreateIfAbsent(context.Background(), c)
		require.NoError(t, err)
	}

	list, total, err := s.List(context.Background(), Filter{PackageID: pkgID})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, list, 3)
	assert.Equal(t, highEarly.ID, list[0].ID)
	assert.Equal(t, highLate.ID, list[1].ID)
	assert.Equal(t, mediumEarly.ID, list[2].ID)
}

func TestListFilters(t *testing.T) {
	s := NewInMemory()
	pkgID := domain.NewPackageID()

	open := newConflict(pkgID, stagedParty(), stagedParty())
	merged := newConflict(pkgID, stagedParty(), stagedParty())
	merged.Status = models.StatusResolved
	merged.Outcome = models.OutcomeMerge
	keptBoth := newConflict(pkgID, stagedParty(), stagedParty())
	keptBoth.Status = models.StatusResolved
	keptBoth.Outcome = models.OutcomeKeepBoth
	escalated := newConflict(pkgID, stagedParty(), stagedParty())
	escalated.Escalated = true
	overdue := newConflict(pkgID, stagedParty(), stagedParty())
	overdue.SLADeadline = time.Now().Add(-time.Hour)

	for _, c := range []*models.Conflict{open, merged, keptBoth, escalated, overdue} {
		_, err := s.CreateIfAbsent(context.Background(), c)
		require.NoError(t, err)
	}

	_, total, err := s.List(context.Background(), Filter{PackageID: pkgID, Status: models.StatusPendingReview})
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	byOutcome, total, err := s.List(context.Background(), Filter{
		PackageID: pkgID, Status: models.StatusResolved, Outcome: models.OutcomeMerge,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, byOutcome, 1)
	assert.Equal(t, merged.ID, byOutcome[0].ID)

	yes := true
	list, total, err := s.List(context.Background(), Filter{PackageID: pkgID, Escalated: &yes})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, escalated.ID, list[0].ID)

	now := time.Now()
	list, total, err = s.List(context.Background(), Filter{PackageID: pkgID, OverdueAt: &now})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, overdue.ID, list[0].ID)
}

func TestCountOpen(t *testing.T) {
	s := NewInMemory()
	pkgID := domain.NewPackageID()

	open := newConflict(pkgID, stagedParty(), stagedParty())
	ignored := newConflict(pkgID, stagedParty(), stagedParty())
	ignored.Status = models.StatusIgnored
	elsewhere := newConflict(domain.NewPackageID(), stagedParty(), stagedParty())

	for _, c := range []*models.Conflict{open, ignored, elsewhere} {
		_, err := s.CreateIfAbsent(context.Background(), c)
		require.NoError(t, err)
	}

	n, err := s.CountOpen(context.Background(), pkgID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
