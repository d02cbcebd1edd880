// Package store persists import packages. Transition is the only way to
// change a package's status: it compares-and-swaps on the expected current
// status and fails with sentinel.ErrInvalidState when another writer got
// there first.
package store

import (
	"context"
	"time"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/packages/models"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
)

// Filter narrows and pages List. Zero values mean "any".
type Filter struct {
	Status models.Status
	Source string
	Limit  int
	Offset int
}

type Store interface {
	Create(ctx context.Context, p *models.ImportPackage) error
	Get(ctx context.Context, id domain.PackageID) (*models.ImportPackage, error)
	// Update persists every mutable field except status.
	Update(ctx context.Context, p *models.ImportPackage) error
	// Transition moves id from→to atomically. ErrInvalidState when the
	// package is not currently in from.
	Transition(ctx context.Context, id domain.PackageID, from, to models.Status) error
	List(ctx context.Context, f Filter) ([]*models.ImportPackage, int, error)
	// NextSequence returns the next per-day counter feeding package numbers.
	NextSequence(ctx context.Context, day time.Time) (int, error)
}
