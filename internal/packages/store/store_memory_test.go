package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/packages/models"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/platform/sentinel"
)

func newTestPackage() *models.ImportPackage {
	return &models.ImportPackage{
		ID:        domain.NewPackageID(),
		Number:    "PKG-20260314-0001",
		Status:    models.StatusPending,
		Source:    "team-aleppo-3",
		CreatedAt: time.Now(),
	}
}

func TestCreateAndGet(t *testing.T) {
	s := NewInMemory()
	p := newTestPackage()
	require.NoError(t, s.Create(context.Background(), p))

	got, err := s.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Number, got.Number)

	assert.ErrorIs(t, s.Create(context.Background(), p), sentinel.ErrConflict)

	_, err = s.Get(context.Background(), domain.NewPackageID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestTransitionCompareAndSwap(t *testing.T) {
	s := NewInMemory()
	p := newTestPackage()
	require.NoError(t, s.Create(context.Background(), p))

	require.NoError(t, s.Transition(context.Background(), p.ID, models.StatusPending, models.StatusValidating))

	// A second caller still holding the old status loses the race.
	err := s.Transition(context.Background(), p.ID, models.StatusPending, models.StatusValidating)
	assert.ErrorIs(t, err, sentinel.ErrInvalidState)

	got, err := s.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusValidating, got.Status)
	assert.True(t, got.CompletedAt.IsZero())
}

func TestTransitionTerminalSetsCompletedAt(t *testing.T) {
	s := NewInMemory()
	p := newTestPackage()
	require.NoError(t, s.Create(context.Background(), p))

	require.NoError(t, s.Transition(context.Background(), p.ID, models.StatusPending, models.StatusCancelled))

	got, err := s.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, got.CompletedAt.IsZero())
}

func TestUpdateDoesNotChangeStatus(t *testing.T) {
	s := NewInMemory()
	p := newTestPackage()
	require.NoError(t, s.Create(context.Background(), p))

	p.Status = models.StatusCompleted // must be ignored
	p.Notes = []string{"reviewed"}
	require.NoError(t, s.Update(context.Background(), p))

	got, err := s.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, []string{"reviewed"}, got.Notes)
}

func TestUpdatePreservesCompletedAt(t *testing.T) {
	s := NewInMemory()
	p := newTestPackage()
	require.NoError(t, s.Create(context.Background(), p))
	require.NoError(t, s.Transition(context.Background(), p.ID, models.StatusPending, models.StatusCancelled))

	// A caller holding a copy from before the terminal transition writes
	// back the commit result without wiping the completion time.
	p.CommittedBy = "operator-1"
	p.CommittedCount = 8
	p.FailedCount = 1
	require.NoError(t, s.Update(context.Background(), p))

	got, err := s.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, got.CompletedAt.IsZero())
	assert.Equal(t, "operator-1", got.CommittedBy)
	assert.Equal(t, 8, got.CommittedCount)
	assert.Equal(t, 1, got.FailedCount)
}

func TestListFiltersAndPaginates(t *testing.T) {
	s := NewInMemory()
	base := time.Now()
	for i := 0; i < 3; i++ {
		p := newTestPackage()
		p.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.Create(context.Background(), p))
	}
	other := newTestPackage()
	other.Source = "team-homs-1"
	require.NoError(t, s.Create(context.Background(), other))

	all, total, err := s.List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, all, 4)

	bySource, total, err := s.List(context.Background(), Filter{Source: "team-homs-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, bySource, 1)

	page, total, err := s.List(context.Background(), Filter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, page, 2)
}

func TestNextSequencePerDay(t *testing.T) {
	s := NewInMemory()
	day := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	n, err := s.NextSequence(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.NextSequence(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.NextSequence(context.Background(), day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, n, "sequence resets per day")
}
