//go:build integration

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
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/testutil/containers"
)

func newPostgresStore(t *testing.T) *Postgres {
	t.Helper()
	pg := containers.NewPostgresContainer(t)
	t.Cleanup(func() { pg.Terminate(t) })
	pg.ApplySchema(t, Schema)
	return NewPostgres(pg.Pool)
}

func TestPostgresCreateIfAbsentDeduplicates(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()
	pkgID := domain.NewPackageID()
	a, b := stagedParty(), stagedParty()

	inserted, err := s.CreateIfAbsent(ctx, newConflict(pkgID, a, b))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.CreateIfAbsent(ctx, newConflict(pkgID, b, a))
	require.NoError(t, err)
	assert.False(t, inserted, "reversed pair hits the unique index")

	inserted, err = s.CreateIfAbsent(ctx, newConflict(domain.NewPackageID(), a, b))
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestPostgresRoundTrip(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()

	c := newConflict(domain.NewPackageID(), stagedParty(), stagedParty())
	c.MatchedCriteria = []string{"national_id"}
	c.Comparison = map[string]any{"national_id": "01234567890"}
	_, err := s.CreateIfAbsent(ctx, c)
	require.NoError(t, err)

	got, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.PackageID, got.PackageID)
	assert.Equal(t, c.A.StagedID, got.A.StagedID)
	assert.Equal(t, []string{"national_id"}, got.MatchedCriteria)
	assert.WithinDuration(t, c.SLADeadline, got.SLADeadline, time.Second)

	_, err = s.Get(ctx, domain.NewConflictID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestPostgresUpdateResolution(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()

	c := newConflict(domain.NewPackageID(), stagedParty(), stagedParty())
	_, err := s.CreateIfAbsent(ctx, c)
	require.NoError(t, err)

	c.Status = models.StatusResolved
	c.Outcome = models.OutcomeMerge
	c.Reason = "same person"
	c.ResolvedBy = "reviewer-7"
	c.ResolvedAt = time.Now()
	c.Priority = models.PriorityHigh
	c.Master, c.Discarded = c.A, c.B
	c.ReviewAttempts = []models.ReviewAttempt{{By: "reviewer-7", Note: "checked", At: time.Now()}}
	require.NoError(t, s.Update(ctx, c))

	got, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, got.Status)
	assert.Equal(t, models.OutcomeMerge, got.Outcome)
	assert.Equal(t, "reviewer-7", got.ResolvedBy)
	assert.Equal(t, models.PriorityHigh, got.Priority)
	assert.Equal(t, c.A.StagedID, got.Master.StagedID)
	assert.Equal(t, c.B.StagedID, got.Discarded.StagedID)
	assert.Len(t, got.ReviewAttempts, 1)

	_, total, err := s.List(ctx, Filter{
		PackageID: c.PackageID, Status: models.StatusResolved, Outcome: models.OutcomeMerge,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestPostgresQueueOrderingAndCount(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()
	pkgID := domain.NewPackageID()
	base := time.Now()

	medium := newConflict(pkgID, stagedParty(), stagedParty())
	medium.SLADeadline = base.Add(1 * time.Hour)

	high := newConflict(pkgID, stagedParty(), stagedParty())
	high.Priority = models.PriorityHigh
	high.SLADeadline = base.Add(48 * time.Hour)

	resolved := newConflict(pkgID, stagedParty(), stagedParty())
	resolved.Status = models.StatusResolved

	for _, c := range []*models.Conflict{medium, high, resolved} {
		_, err := s.CreateIfAbsent(ctx, c)
		require.NoError(t, err)
	}

	list, total, err := s.List(ctx, Filter{PackageID: pkgID, Status: models.StatusPendingReview})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, list, 2)
	assert.Equal(t, high.ID, list[0].ID, "high priority first despite later deadline")

	n, err := s.CountOpen(ctx, pkgID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
