package validation

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/staging/models"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/vocabulary"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
)

// StatusWriter is the slice of the staging store the pipeline needs to
// persist outcomes.
type StatusWriter interface {
	UpdateStatus(ctx context.Context, id domain.RecordID, status models.ValidationStatus, issues []models.Issue) error
	SetApproval(ctx context.Context, id domain.RecordID, approved bool) error
}

// Summary is the package-level validation outcome.
type Summary struct {
	Counts           map[models.ValidationStatus]int
	Quarantined      bool
	QuarantineReason string
	Notes            []string
}

// Eligible reports whether any record survived for duplicate detection.
func (s *Summary) Eligible() bool {
	return s.Counts[models.StatusValid]+s.Counts[models.StatusWarning] > 0
}

// Pipeline runs the fixed validator order and aggregates statuses with
// worst-status-wins semantics.
type Pipeline struct {
	validators []Validator
	logger     *slog.Logger
	// writeConcurrency bounds the status write fan-out.
	writeConcurrency int
}

type Option func(*Pipeline)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// New builds the pipeline with the validator order fixed by the import
// contract: consistency and integrity first, domain plausibility next,
// vocabulary and format checks last.
func New(vocab vocabulary.Provider, opts ...Option) *Pipeline {
	p := &Pipeline{
		validators: []Validator{
			dataConsistency{},
			relationIntegrity{},
			ownershipEvidence{},
			householdStructure{},
			spatialGeometry{},
			claimLifecycle{},
			vocabularyVersion{provider: vocab},
			codeFormat{},
		},
		writeConcurrency: 8,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run validates one package's staged records and persists per-record
// outcomes through w. Validators never abort the batch; only a structural
// failure (a validator returning an error) does.
func (p *Pipeline) Run(ctx context.Context, in *Input, w StatusWriter) (*Summary, error) {
	summary := &Summary{Counts: make(map[models.ValidationStatus]int)}

	status := make(map[domain.RecordID]models.ValidationStatus)
	issues := make(map[domain.RecordID][]models.Issue)
	for _, recs := range in.Records {
		for _, rec := range recs {
			meta := rec.Meta()
			if meta.Status == models.StatusSkipped {
				continue // operator override survives revalidation
			}
			status[meta.ID] = models.StatusValid
		}
	}

	for _, v := range p.validators {
		res, err := v.Validate(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("validator %s: %w", v.Name(), err)
		}
		if res.Quarantine {
			summary.Quarantined = true
			summary.QuarantineReason = res.QuarantineReason
		}
		summary.Notes = append(summary.Notes, res.Notes...)

		for _, f := range res.Findings {
			current, tracked := status[f.RecordID]
			if !tracked {
				continue
			}
			issues[f.RecordID] = append(issues[f.RecordID], f.Issue)
			next := models.StatusWarning
			if f.Issue.Severity == models.SeverityRequired {
				next = models.StatusInvalid
			}
			status[f.RecordID] = current.Downgrade(next)
		}
		if p.logger != nil {
			p.logger.DebugContext(ctx, "validator finished",
				"validator", v.Name(),
				"package_id", in.PackageID,
				"findings", len(res.Findings),
			)
		}
	}

	// Persist outcomes. Writes are independent per record; bound the
	// fan-out instead of serializing it.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.writeConcurrency)
	for id, st := range status {
		g.Go(func() error {
			if err := w.UpdateStatus(gctx, id, st, issues[id]); err != nil {
				return fmt.Errorf("persist status for %s: %w", id, err)
			}
			// Valid and Warning records enter the review/commit path
			// approved; operators may still withdraw approval.
			return w.SetApproval(gctx, id, st.Eligible() && !summary.Quarantined)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, st := range status {
		summary.Counts[st]++
	}
	for _, recs := range in.Records {
		for _, rec := range recs {
			if rec.Meta().Status == models.StatusSkipped {
				summary.Counts[models.StatusSkipped]++
			}
		}
	}
	return summary, nil
}
