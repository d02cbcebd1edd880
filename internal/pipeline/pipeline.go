// Package pipeline orchestrates the import workflow end to end: intake
// into staging, validation, duplicate detection, the conflict gate, and
// the final commit. Each step is an explicit operator-triggered operation
// guarded by the package state machine.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/audit"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/commit"
	conflictservice "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/conflicts/service"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/matching"
	pkgmodels "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/packages/models"
	pkgservice "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/packages/service"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/staging/models"
	stagingstore "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/staging/store"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/validation"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
	dErrors "github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain-errors"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/platform/sentinel"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/requestcontext"
)

// Pipeline wires the import features behind one operational facade.
type Pipeline struct {
	packages   *pkgservice.Service
	staging    stagingstore.Store
	validation *validation.Pipeline
	persons    *matching.PersonMatcher
	properties *matching.PropertyMatcher
	conflicts  *conflictservice.Service
	commit     *commit.Service
	audit      audit.Publisher
	tracer     trace.Tracer
	logger     *slog.Logger
}

type Option func(*Pipeline)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

func WithAudit(pub audit.Publisher) Option {
	return func(p *Pipeline) { p.audit = pub }
}

func New(
	packages *pkgservice.Service,
	staging stagingstore.Store,
	validationPipeline *validation.Pipeline,
	persons *matching.PersonMatcher,
	properties *matching.PropertyMatcher,
	conflicts *conflictservice.Service,
	committer *commit.Service,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		packages:   packages,
		staging:    staging,
		validation: validationPipeline,
		persons:    persons,
		properties: properties,
		conflicts:  conflicts,
		commit:     committer,
		tracer:     otel.Tracer("trrcms/import"),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submission is one raw field-collected package. Record payloads stay as
// raw JSON until the kind is known.
type Submission struct {
	Source          string                                  `json:"source"`
	DeclaredVersion string                                  `json:"code_list_version"`
	ArchiveLocation string                                  `json:"archive_location"`
	Records         map[domain.EntityKind][]json.RawMessage `json:"records"`
}

// Submit stages a submission as a new Pending package. Every record needs
// an original_id unique within its kind; a collision rejects the whole
// submission so the device can fix and resend.
func (p *Pipeline) Submit(ctx context.Context, sub Submission) (*pkgmodels.ImportPackage, error) {
	ctx, span := p.tracer.Start(ctx, "import.submit")
	defer span.End()

	version, err := domain.ParseCodeListVersion(sub.DeclaredVersion)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid code_list_version")
	}

	pkg, err := p.packages.Create(ctx, pkgservice.NewPackage{
		Source:          sub.Source,
		DeclaredVersion: version,
		SubmittedBy:     requestcontext.ActorID(ctx),
		ArchiveLocation: sub.ArchiveLocation,
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("package.id", pkg.ID.String()))

	for _, kind := range domain.EntityKinds() {
		for _, raw := range sub.Records[kind] {
			rec, err := decodeRecord(pkg.ID, kind, raw)
			if err != nil {
				return nil, err
			}
			if err := p.staging.Add(ctx, rec); err != nil {
				if errors.Is(err, sentinel.ErrConflict) {
					return nil, dErrors.Newf(dErrors.CodeInvalidInput,
						"duplicate original id %q for kind %s", rec.Meta().OriginalID, kind)
				}
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "stage record")
			}
			pkg.RecordCounts[kind]++
		}
	}
	if err := p.packages.Update(ctx, pkg); err != nil {
		return nil, err
	}

	p.logger.InfoContext(ctx, "package submitted",
		"package_id", pkg.ID, "number", pkg.Number, "records", pkg.TotalRecords())
	return pkg, nil
}

func decodeRecord(pkgID domain.PackageID, kind domain.EntityKind, raw json.RawMessage) (models.Record, error) {
	rec, err := models.New(kind)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "unknown record kind")
	}
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed record payload")
	}
	var envelope struct {
		OriginalID string `json:"original_id"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed record payload")
	}
	if envelope.OriginalID == "" {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s record is missing original_id", kind)
	}
	*rec.Meta() = models.NewMeta(pkgID, kind, envelope.OriginalID)
	return rec, nil
}

// Validate runs the validation pipeline over a package and settles it in
// Validated, ValidationFailed, or Quarantined. Re-validation is allowed
// until commit; skipped records keep their operator override.
func (p *Pipeline) Validate(ctx context.Context, pkgID domain.PackageID) (*validation.Summary, error) {
	ctx, span := p.tracer.Start(ctx, "import.validate")
	defer span.End()
	span.SetAttributes(attribute.String("package.id", pkgID.String()))

	pkg, err := p.packages.Get(ctx, pkgID)
	if err != nil {
		return nil, err
	}
	if err := p.packages.Transition(ctx, pkgID, pkg.Status, pkgmodels.StatusValidating); err != nil {
		return nil, err
	}

	input := &validation.Input{
		PackageID:       pkgID,
		DeclaredVersion: pkg.DeclaredVersion,
		Records:         make(map[domain.EntityKind][]models.Record),
	}
	for _, kind := range domain.EntityKinds() {
		recs, err := p.staging.ListByPackage(ctx, pkgID, kind)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load staged records")
		}
		input.Records[kind] = recs
	}

	summary, err := p.validation.Run(ctx, input, p.staging)
	if err != nil {
		span.RecordError(err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "run validation")
	}

	pkg.Notes = summary.Notes
	pkg.QuarantineReason = summary.QuarantineReason
	if err := p.packages.Update(ctx, pkg); err != nil {
		return nil, err
	}

	var final pkgmodels.Status
	var action audit.Action
	switch {
	case summary.Quarantined:
		final, action = pkgmodels.StatusQuarantined, audit.ActionPackageQuarantined
	case !summary.Eligible():
		final, action = pkgmodels.StatusValidationFailed, audit.ActionPackageFailed
	default:
		final, action = pkgmodels.StatusValidated, audit.ActionPackageValidated
	}
	if err := p.packages.Transition(ctx, pkgID, pkgmodels.StatusValidating, final); err != nil {
		return nil, err
	}
	audit.Log(ctx, p.audit, action, pkgID.String(), pkg.Number, summary.QuarantineReason)
	return summary, nil
}

// DetectionResult summarizes one detection run.
type DetectionResult struct {
	Candidates    int `json:"candidates"`
	NewConflicts  int `json:"new_conflicts"`
	OpenConflicts int `json:"open_conflicts"`
}

// Detect runs duplicate detection over the package's eligible records and
// opens conflicts for every new candidate pair. The package lands in
// ReviewingConflicts while anything stays open, ReadyToCommit otherwise.
// Safe to re-run: decided pairs are never resurrected.
func (p *Pipeline) Detect(ctx context.Context, pkgID domain.PackageID) (*DetectionResult, error) {
	ctx, span := p.tracer.Start(ctx, "import.detect")
	defer span.End()
	span.SetAttributes(attribute.String("package.id", pkgID.String()))

	pkg, err := p.packages.Get(ctx, pkgID)
	if err != nil {
		return nil, err
	}
	if err := p.packages.Transition(ctx, pkgID, pkg.Status, pkgmodels.StatusDetecting); err != nil {
		return nil, err
	}

	persons, err := p.eligiblePersons(ctx, pkgID)
	if err != nil {
		return nil, err
	}
	units, buildings, err := p.eligibleUnits(ctx, pkgID)
	if err != nil {
		return nil, err
	}

	personCandidates, err := p.persons.Match(ctx, pkgID, persons)
	if err != nil {
		span.RecordError(err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "match persons")
	}
	propertyCandidates, err := p.properties.Match(ctx, pkgID, units, buildings)
	if err != nil {
		span.RecordError(err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "match property units")
	}
	candidates := append(personCandidates, propertyCandidates...)

	created, open, err := p.conflicts.IngestCandidates(ctx, pkgID, candidates)
	if err != nil {
		return nil, err
	}

	next := pkgmodels.StatusReadyToCommit
	if open > 0 {
		next = pkgmodels.StatusReviewingConflicts
	}
	if err := p.packages.Transition(ctx, pkgID, pkgmodels.StatusDetecting, next); err != nil {
		return nil, err
	}
	audit.Log(ctx, p.audit, audit.ActionDetectionRun, pkgID.String(), pkg.Number, "")

	p.logger.InfoContext(ctx, "detection finished",
		"package_id", pkgID, "candidates", len(candidates), "new_conflicts", created, "open", open)
	return &DetectionResult{
		Candidates:    len(candidates),
		NewConflicts:  created,
		OpenConflicts: open,
	}, nil
}

func (p *Pipeline) eligiblePersons(ctx context.Context, pkgID domain.PackageID) ([]*models.Person, error) {
	recs, err := p.staging.ListByPackage(ctx, pkgID, domain.KindPerson)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load staged persons")
	}
	out := make([]*models.Person, 0, len(recs))
	for _, rec := range recs {
		if rec.Meta().Status.Eligible() {
			out = append(out, rec.(*models.Person))
		}
	}
	return out, nil
}

func (p *Pipeline) eligibleUnits(ctx context.Context, pkgID domain.PackageID) ([]*models.PropertyUnit, map[string]*models.Building, error) {
	unitRecs, err := p.staging.ListByPackage(ctx, pkgID, domain.KindPropertyUnit)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "load staged units")
	}
	units := make([]*models.PropertyUnit, 0, len(unitRecs))
	for _, rec := range unitRecs {
		if rec.Meta().Status.Eligible() {
			units = append(units, rec.(*models.PropertyUnit))
		}
	}

	buildingRecs, err := p.staging.ListByPackage(ctx, pkgID, domain.KindBuilding)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "load staged buildings")
	}
	buildings := make(map[string]*models.Building, len(buildingRecs))
	for _, rec := range buildingRecs {
		b := rec.(*models.Building)
		buildings[b.OriginalID] = b
	}
	return units, buildings, nil
}

// Commit promotes the package's approved records.
func (p *Pipeline) Commit(ctx context.Context, pkgID domain.PackageID) (*commit.Report, error) {
	ctx, span := p.tracer.Start(ctx, "import.commit")
	defer span.End()
	span.SetAttributes(attribute.String("package.id", pkgID.String()))

	report, err := p.commit.Commit(ctx, pkgID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return report, nil
}

// Report re-derives the package's import report.
func (p *Pipeline) Report(ctx context.Context, pkgID domain.PackageID) (*commit.Report, error) {
	return p.commit.BuildReport(ctx, pkgID)
}

// Cancel withdraws a package.
func (p *Pipeline) Cancel(ctx context.Context, pkgID domain.PackageID) error {
	return p.packages.Cancel(ctx, pkgID)
}

// Get returns the package itself.
func (p *Pipeline) Get(ctx context.Context, pkgID domain.PackageID) (*pkgmodels.ImportPackage, error) {
	return p.packages.Get(ctx, pkgID)
}
