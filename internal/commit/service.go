package commit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/audit"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/authoritative"
	conflictmodels "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/conflicts/models"
	conflictstore "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/conflicts/store"
	pkgmodels "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/packages/models"
	pkgservice "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/packages/service"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/staging/models"
	stagingstore "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/staging/store"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
	dErrors "github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain-errors"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/requestcontext"
)

type Service struct {
	staging   stagingstore.Store
	writer    authoritative.Writer
	packages  *pkgservice.Service
	conflicts conflictstore.Store
	audit     audit.Publisher
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAudit(p audit.Publisher) Option {
	return func(s *Service) { s.audit = p }
}

func New(staging stagingstore.Store, writer authoritative.Writer, packages *pkgservice.Service, conflicts conflictstore.Store, opts ...Option) *Service {
	s := &Service{
		staging:   staging,
		writer:    writer,
		packages:  packages,
		conflicts: conflicts,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Commit promotes every approved record of a ReadyToCommit package. Kinds
// run in dependency order so references always resolve against already
// committed parents. One record's failure never aborts the rest; the
// package lands in Completed, PartiallyCompleted, or Failed depending on
// how much survived.
func (s *Service) Commit(ctx context.Context, pkgID domain.PackageID) (*Report, error) {
	pkg, err := s.packages.Get(ctx, pkgID)
	if err != nil {
		return nil, err
	}
	if pkg.Status != pkgmodels.StatusReadyToCommit {
		return nil, dErrors.Newf(dErrors.CodeStateConflict, "package in %s is not ready to commit", pkg.Status)
	}
	if err := s.packages.Transition(ctx, pkgID, pkgmodels.StatusReadyToCommit, pkgmodels.StatusCommitting); err != nil {
		return nil, err
	}

	report := &Report{
		PackageID:        pkgID,
		PackageNumber:    pkg.Number,
		Kinds:            make(map[domain.EntityKind]KindSummary),
		QuarantineReason: pkg.QuarantineReason,
		Notes:            pkg.Notes,
		GeneratedAt:      time.Now(),
	}

	// idMap translates source-device ids to authoritative ids, per kind.
	// Seeded by merged-away records so their references land on the
	// surviving entity.
	idMap := make(map[domain.EntityKind]map[string]domain.EntityID)
	for _, kind := range domain.EntityKinds() {
		idMap[kind] = make(map[string]domain.EntityID)
	}

	for _, kind := range domain.EntityKinds() {
		recs, err := s.staging.ListByPackage(ctx, pkgID, kind)
		if err != nil {
			s.fail(ctx, pkgID, pkg.Number)
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list staged records")
		}
		summary := KindSummary{Total: len(recs)}
		for _, rec := range recs {
			meta := rec.Meta()
			if !meta.Approved {
				summary.Skipped++
				if !meta.CommittedID.IsNil() {
					idMap[kind][meta.OriginalID] = meta.CommittedID
					report.Mappings = append(report.Mappings, IDMapping{
						Kind: kind, OriginalID: meta.OriginalID, EntityID: meta.CommittedID,
					})
				}
				continue
			}
			summary.Approved++

			entityID, err := s.commitRecord(ctx, pkgID, rec, idMap)
			if err != nil {
				summary.Failed++
				report.Failures = append(report.Failures, Failure{
					RecordID: meta.ID, Kind: kind, OriginalID: meta.OriginalID, Reason: err.Error(),
				})
				s.logger.WarnContext(ctx, "record commit failed",
					"package_id", pkgID, "kind", kind, "original_id", meta.OriginalID, "error", err)
				continue
			}

			summary.Committed++
			idMap[kind][meta.OriginalID] = entityID
			report.Mappings = append(report.Mappings, IDMapping{
				Kind: kind, OriginalID: meta.OriginalID, EntityID: entityID,
			})
			if err := s.staging.SetCommittedID(ctx, meta.ID, entityID); err != nil {
				s.logger.ErrorContext(ctx, "record committed but write-back failed",
					"package_id", pkgID, "record_id", meta.ID, "error", err)
			}
		}
		report.Kinds[kind] = summary
	}

	final := pkgmodels.StatusCompleted
	switch {
	case report.TotalFailed() == 0:
	case report.TotalCommitted() == 0:
		final = pkgmodels.StatusFailed
	default:
		final = pkgmodels.StatusPartiallyCompleted
	}
	if err := s.packages.Transition(ctx, pkgID, pkgmodels.StatusCommitting, final); err != nil {
		return nil, err
	}
	report.Status = final
	s.writeResult(ctx, pkg, report)

	s.countConflicts(ctx, report)
	action := audit.ActionPackageCommitted
	if final == pkgmodels.StatusFailed {
		action = audit.ActionPackageFailed
	}
	audit.Log(ctx, s.audit, action, pkgID.String(), pkg.Number,
		fmt.Sprintf("committed=%d failed=%d", report.TotalCommitted(), report.TotalFailed()))
	return report, nil
}

// BuildReport re-derives the import report from current state, for any
// package stage. Per-record failure reasons are only available from the
// Commit call itself; here failed shows up as approved minus committed.
func (s *Service) BuildReport(ctx context.Context, pkgID domain.PackageID) (*Report, error) {
	pkg, err := s.packages.Get(ctx, pkgID)
	if err != nil {
		return nil, err
	}
	report := &Report{
		PackageID:        pkgID,
		PackageNumber:    pkg.Number,
		Status:           pkg.Status,
		Kinds:            make(map[domain.EntityKind]KindSummary),
		QuarantineReason: pkg.QuarantineReason,
		Notes:            pkg.Notes,
		GeneratedAt:      time.Now(),
	}
	committed := pkg.Status == pkgmodels.StatusCompleted ||
		pkg.Status == pkgmodels.StatusPartiallyCompleted ||
		pkg.Status == pkgmodels.StatusFailed

	for _, kind := range domain.EntityKinds() {
		recs, err := s.staging.ListByPackage(ctx, pkgID, kind)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list staged records")
		}
		summary := KindSummary{Total: len(recs)}
		for _, rec := range recs {
			meta := rec.Meta()
			if !meta.Approved {
				summary.Skipped++
				if !meta.CommittedID.IsNil() {
					report.Mappings = append(report.Mappings, IDMapping{
						Kind: kind, OriginalID: meta.OriginalID, EntityID: meta.CommittedID,
					})
				}
				continue
			}
			summary.Approved++
			if !meta.CommittedID.IsNil() {
				summary.Committed++
				report.Mappings = append(report.Mappings, IDMapping{
					Kind: kind, OriginalID: meta.OriginalID, EntityID: meta.CommittedID,
				})
			} else if committed {
				summary.Failed++
			}
		}
		report.Kinds[kind] = summary
	}
	s.countConflicts(ctx, report)
	return report, nil
}

// writeResult records the committing actor and the result counts on the
// package itself. Best effort: the report already carries the outcome.
func (s *Service) writeResult(ctx context.Context, pkg *pkgmodels.ImportPackage, report *Report) {
	pkg.CommittedBy = requestcontext.ActorID(ctx)
	pkg.CommittedCount = report.TotalCommitted()
	pkg.FailedCount = report.TotalFailed()
	pkg.SkippedCount = report.TotalSkipped()
	if err := s.packages.Update(ctx, pkg); err != nil {
		s.logger.ErrorContext(ctx, "write back commit result",
			"package_id", pkg.ID, "error", err)
	}
}

// fail moves an in-flight commit to Failed after a structural error.
func (s *Service) fail(ctx context.Context, pkgID domain.PackageID, number string) {
	if err := s.packages.Transition(ctx, pkgID, pkgmodels.StatusCommitting, pkgmodels.StatusFailed); err != nil {
		s.logger.ErrorContext(ctx, "mark package failed", "package_id", pkgID, "error", err)
		return
	}
	audit.Log(ctx, s.audit, audit.ActionPackageFailed, pkgID.String(), number, "structural commit failure")
}

func (s *Service) countConflicts(ctx context.Context, report *Report) {
	count := func(f conflictstore.Filter) int {
		f.PackageID = report.PackageID
		f.Limit = 1
		_, total, err := s.conflicts.List(ctx, f)
		if err != nil {
			s.logger.ErrorContext(ctx, "count conflicts for report",
				"package_id", report.PackageID, "status", f.Status, "error", err)
			return 0
		}
		return total
	}
	report.ConflictsResolved = count(conflictstore.Filter{Status: conflictmodels.StatusResolved})
	report.ConflictsMerged = count(conflictstore.Filter{
		Status: conflictmodels.StatusResolved, Outcome: conflictmodels.OutcomeMerge,
	})
	report.ConflictsIgnored = count(conflictstore.Filter{Status: conflictmodels.StatusIgnored})
	report.ConflictsOpen = count(conflictstore.Filter{Status: conflictmodels.StatusPendingReview})
}

// lookup resolves one staged reference through the id map.
func lookup(idMap map[domain.EntityKind]map[string]domain.EntityID, kind domain.EntityKind, originalID string) (domain.EntityID, error) {
	id, ok := idMap[kind][originalID]
	if !ok {
		return domain.EntityID{}, fmt.Errorf("%s %q was not committed", kind, originalID)
	}
	return id, nil
}

// commitRecord translates one staged record's references and writes it to
// the authoritative store.
func (s *Service) commitRecord(ctx context.Context, pkgID domain.PackageID, rec models.Record, idMap map[domain.EntityKind]map[string]domain.EntityID) (domain.EntityID, error) {
	switch r := rec.(type) {
	case *models.Building:
		return s.writer.UpsertBuilding(ctx, authoritative.Building{
			Code: r.Code, Address: r.Address, Active: true,
		})

	case *models.PropertyUnit:
		buildingID, err := lookup(idMap, domain.KindBuilding, r.BuildingOriginalID)
		if err != nil {
			return domain.EntityID{}, err
		}
		staged, err := s.staging.FindByOriginalID(ctx, pkgID, domain.KindBuilding, r.BuildingOriginalID)
		if err != nil {
			return domain.EntityID{}, fmt.Errorf("resolve building code for %q: %w", r.BuildingOriginalID, err)
		}
		return s.writer.UpsertUnit(ctx, authoritative.PropertyUnit{
			BuildingID:     buildingID,
			BuildingCode:   staged.(*models.Building).Code,
			UnitIdentifier: r.UnitIdentifier,
			Floor:          r.Floor,
			Use:            r.Use,
			Active:         true,
		})

	case *models.Person:
		return s.writer.UpsertPerson(ctx, authoritative.Person{
			NationalID: r.NationalID,
			FirstName:  r.FirstName,
			FatherName: r.FatherName,
			FamilyName: r.FamilyName,
			Phone:      r.Phone,
			BirthYear:  r.BirthYear,
			Gender:     r.Gender,
			Active:     true,
		})

	case *models.Household:
		headID, err := lookup(idMap, domain.KindPerson, r.HeadPersonOriginalID)
		if err != nil {
			return domain.EntityID{}, err
		}
		return s.writer.CreateHousehold(ctx, authoritative.Household{
			HeadID: headID, MemberCount: r.MemberCount, Active: true,
		})

	case *models.Relation:
		personID, err := lookup(idMap, domain.KindPerson, r.PersonOriginalID)
		if err != nil {
			return domain.EntityID{}, err
		}
		unitID, err := lookup(idMap, domain.KindPropertyUnit, r.UnitOriginalID)
		if err != nil {
			return domain.EntityID{}, err
		}
		return s.writer.CreateRelation(ctx, authoritative.Relation{
			PersonID:         personID,
			UnitID:           unitID,
			RelationType:     r.RelationType,
			ShareNumerator:   r.ShareNumerator,
			ShareDenominator: r.ShareDenominator,
			Active:           true,
		})

	case *models.Evidence:
		relationID, err := lookup(idMap, domain.KindRelation, r.RelationOriginalID)
		if err != nil {
			return domain.EntityID{}, err
		}
		return s.writer.CreateEvidence(ctx, authoritative.Evidence{
			RelationID: relationID, Kind: r.Kind, IssuedDate: r.IssuedDate, Active: true,
		})

	case *models.Claim:
		claimantID, err := lookup(idMap, domain.KindPerson, r.ClaimantOriginalID)
		if err != nil {
			return domain.EntityID{}, err
		}
		unitID, err := lookup(idMap, domain.KindPropertyUnit, r.UnitOriginalID)
		if err != nil {
			return domain.EntityID{}, err
		}
		return s.writer.CreateClaim(ctx, authoritative.Claim{
			ClaimantID: claimantID, UnitID: unitID, Status: r.Status, FiledDate: r.FiledDate, Active: true,
		})

	case *models.Survey:
		return s.writer.CreateSurvey(ctx, authoritative.Survey{
			Surveyor: r.Surveyor, SurveyDate: r.SurveyDate, DeviceID: r.DeviceID,
		})
	}
	return domain.EntityID{}, fmt.Errorf("unsupported staged record kind")
}
