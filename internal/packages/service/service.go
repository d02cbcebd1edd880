// Package service owns the import-package lifecycle: creation with a
// per-day number, guarded status transitions, and cancellation.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/audit"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/packages/models"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/packages/store"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
	dErrors "github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain-errors"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/platform/sentinel"
)

type Service struct {
	store  store.Store
	audit  audit.Publisher
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAudit(p audit.Publisher) Option {
	return func(s *Service) { s.audit = p }
}

func New(st store.Store, opts ...Option) *Service {
	s := &Service{store: st, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewPackage is the creation request.
type NewPackage struct {
	Source          string
	DeclaredVersion domain.CodeListVersion
	SubmittedBy     string
	ArchiveLocation string
}

// Create registers a submission in Pending with a fresh per-day number.
func (s *Service) Create(ctx context.Context, req NewPackage) (*models.ImportPackage, error) {
	now := time.Now()
	seq, err := s.store.NextSequence(ctx, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "allocate package number")
	}
	pkg := &models.ImportPackage{
		ID:              domain.NewPackageID(),
		Number:          models.Number(now, seq),
		Status:          models.StatusPending,
		Source:          req.Source,
		DeclaredVersion: req.DeclaredVersion,
		SubmittedBy:     req.SubmittedBy,
		ArchiveLocation: req.ArchiveLocation,
		RecordCounts:    make(map[domain.EntityKind]int),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.Create(ctx, pkg); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create package")
	}
	audit.Log(ctx, s.audit, audit.ActionPackageSubmitted, pkg.ID.String(), pkg.Number, "")
	return pkg, nil
}

func (s *Service) Get(ctx context.Context, id domain.PackageID) (*models.ImportPackage, error) {
	pkg, err := s.store.Get(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "package not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load package")
	}
	return pkg, nil
}

func (s *Service) List(ctx context.Context, f store.Filter) ([]*models.ImportPackage, int, error) {
	pkgs, total, err := s.store.List(ctx, f)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "list packages")
	}
	return pkgs, total, nil
}

// Update persists the mutable non-status fields.
func (s *Service) Update(ctx context.Context, pkg *models.ImportPackage) error {
	if err := s.store.Update(ctx, pkg); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "package not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "update package")
	}
	return nil
}

// Transition moves a package from→to, validating the move against the
// state machine before handing it to the store's compare-and-swap.
func (s *Service) Transition(ctx context.Context, id domain.PackageID, from, to models.Status) error {
	if !from.CanTransition(to) {
		return dErrors.Newf(dErrors.CodeStateConflict, "package cannot move from %s to %s", from, to)
	}
	err := s.store.Transition(ctx, id, from, to)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "package not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Newf(dErrors.CodeStateConflict, "package is no longer in %s", from)
	case err != nil:
		return dErrors.Wrap(err, dErrors.CodeInternal, "transition package")
	}
	s.logger.InfoContext(ctx, "package transitioned", "package_id", id, "from", from, "to", to)
	return nil
}

// Cancel withdraws a package from any state that still allows it. An
// in-flight commit cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, id domain.PackageID) error {
	pkg, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !pkg.Status.Cancellable() {
		return dErrors.Newf(dErrors.CodeStateConflict, "package in %s cannot be cancelled", pkg.Status)
	}
	if err := s.Transition(ctx, id, pkg.Status, models.StatusCancelled); err != nil {
		return err
	}
	audit.Log(ctx, s.audit, audit.ActionPackageCancelled, id.String(), pkg.Number, "")
	return nil
}
