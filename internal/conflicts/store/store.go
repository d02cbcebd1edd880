// Package store persists conflicts. Implementations must enforce pair
// uniqueness per package: CreateIfAbsent is the only insert path and it is
// a no-op when a conflict for the same unordered pair already exists in the
// package, whatever its status.
package store

import (
	"context"
	"time"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/conflicts/models"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
)

// Filter narrows and pages List. Zero values mean "any".
type Filter struct {
	PackageID domain.PackageID
	Type      models.Type
	Status    models.Status
	Outcome   models.Outcome
	Priority  models.Priority
	Assignee  string
	Escalated *bool
	// OverdueAt, when set, keeps only open conflicts whose SLA deadline
	// passed before the given instant.
	OverdueAt *time.Time

	Limit  int
	Offset int
}

// Store is the conflict persistence surface. List orders by priority
// (high first), then SLA deadline ascending, then creation time, and
// returns the total match count before paging.
type Store interface {
	CreateIfAbsent(ctx context.Context, c *models.Conflict) (bool, error)
	Get(ctx context.Context, id domain.ConflictID) (*models.Conflict, error)
	Update(ctx context.Context, c *models.Conflict) error
	List(ctx context.Context, f Filter) ([]*models.Conflict, int, error)
	// CountOpen returns the number of conflicts still blocking the package.
	CountOpen(ctx context.Context, pkgID domain.PackageID) (int, error)
}
