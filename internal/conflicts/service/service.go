// Package service owns the conflict review workflow: turning match
// candidates into durable conflicts, the reviewer decisions, the merge
// side effects, and the gate that releases a package to commit once no
// open conflict remains.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/audit"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/authoritative"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/conflicts/metrics"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/conflicts/models"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/conflicts/store"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/matching"
	pkgmodels "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/packages/models"
	pkgservice "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/packages/service"
	stagingstore "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/staging/store"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
	dErrors "github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain-errors"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/platform/sentinel"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/requestcontext"
)

// DefaultSLA is the review deadline applied to new conflicts.
const DefaultSLA = 72 * time.Hour

type Service struct {
	conflicts store.Store
	staging   stagingstore.Store
	merger    authoritative.Merger
	packages  *pkgservice.Service
	audit     audit.Publisher
	metrics   *metrics.Metrics
	sla       time.Duration
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAudit(p audit.Publisher) Option {
	return func(s *Service) { s.audit = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithSLA(d time.Duration) Option {
	return func(s *Service) { s.sla = d }
}

func New(conflicts store.Store, staging stagingstore.Store, merger authoritative.Merger, packages *pkgservice.Service, opts ...Option) *Service {
	s := &Service{
		conflicts: conflicts,
		staging:   staging,
		merger:    merger,
		packages:  packages,
		sla:       DefaultSLA,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func conflictType(kind domain.EntityKind) models.Type {
	if kind == domain.KindPropertyUnit {
		return models.TypePropertyDuplicate
	}
	return models.TypePersonDuplicate
}

func entityKind(t models.Type) domain.EntityKind {
	if t == models.TypePropertyDuplicate {
		return domain.KindPropertyUnit
	}
	return domain.KindPerson
}

func party(ref matching.EntityRef) models.Party {
	return models.Party{
		StagedID:   ref.StagedID,
		EntityID:   ref.EntityID,
		OriginalID: ref.OriginalID,
		Display:    ref.Display,
	}
}

// IngestCandidates persists one conflict per new candidate pair. Pairs
// already known to the package, open or decided, are left untouched, so
// re-running detection never resurrects a resolved conflict. Returns how
// many conflicts were created and how many remain open.
func (s *Service) IngestCandidates(ctx context.Context, pkgID domain.PackageID, candidates []matching.Candidate) (int, int, error) {
	now := time.Now()
	created := 0
	for _, cand := range candidates {
		priority := models.PriorityMedium
		if cand.Confidence == matching.ConfidenceHigh {
			priority = models.PriorityHigh
		}
		conflict := &models.Conflict{
			ID:              domain.NewConflictID(),
			PackageID:       pkgID,
			Type:            conflictType(cand.Kind),
			Status:          models.StatusPendingReview,
			Priority:        priority,
			A:               party(cand.A),
			B:               party(cand.B),
			Score:           cand.Score,
			Confidence:      string(cand.Confidence),
			MatchedCriteria: cand.MatchedCriteria,
			Comparison:      cand.Comparison,
			SLADeadline:     now.Add(s.sla),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		inserted, err := s.conflicts.CreateIfAbsent(ctx, conflict)
		if err != nil {
			return 0, 0, dErrors.Wrap(err, dErrors.CodeInternal, "create conflict")
		}
		if !inserted {
			continue
		}
		created++
		s.metrics.ConflictCreated(string(conflict.Type), string(priority))
		audit.Log(ctx, s.audit, audit.ActionConflictCreated, pkgID.String(), conflict.ID.String(),
			string(conflict.Type))
	}
	open, err := s.conflicts.CountOpen(ctx, pkgID)
	if err != nil {
		return 0, 0, dErrors.Wrap(err, dErrors.CodeInternal, "count open conflicts")
	}
	return created, open, nil
}

func (s *Service) Queue(ctx context.Context, f store.Filter) ([]*models.Conflict, int, error) {
	list, total, err := s.conflicts.List(ctx, f)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "list conflicts")
	}
	return list, total, nil
}

func (s *Service) Detail(ctx context.Context, id domain.ConflictID) (*models.Conflict, error) {
	return s.get(ctx, id)
}

// Decision is a reviewer's terminal call on a conflict.
type Decision struct {
	Outcome models.Outcome
	Reason  string
	// Master selects the surviving party for merge: "a" or "b".
	Master string
}

// Resolve applies a terminal decision. The conflict must still be open and
// the decision must carry a reason; otherwise nothing is mutated. Data side
// effects (skips, relinks, authoritative merges) happen before the conflict
// flips to Resolved, so a failed merge leaves the conflict reviewable.
func (s *Service) Resolve(ctx context.Context, id domain.ConflictID, d Decision) (*models.Conflict, error) {
	c, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Status.Open() {
		return nil, dErrors.Newf(dErrors.CodeStateConflict, "conflict already %s", c.Status)
	}
	if d.Reason == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "a resolution reason is required")
	}

	switch d.Outcome {
	case models.OutcomeKeepBoth:
		// Reviewed and found distinct; both records proceed untouched.
	case models.OutcomeKeepFirst:
		if err := s.applyMerge(ctx, c, c.A, c.B); err != nil {
			return nil, err
		}
		c.Master, c.Discarded = c.A, c.B
	case models.OutcomeKeepSecond:
		if err := s.applyMerge(ctx, c, c.B, c.A); err != nil {
			return nil, err
		}
		c.Master, c.Discarded = c.B, c.A
	case models.OutcomeMerge:
		master, discarded, err := pickMaster(c, d.Master)
		if err != nil {
			return nil, err
		}
		if err := s.applyMerge(ctx, c, master, discarded); err != nil {
			return nil, err
		}
		c.Master, c.Discarded = master, discarded
	case models.OutcomeMarkAsDuplicate:
		if err := s.markDuplicate(ctx, c); err != nil {
			return nil, err
		}
	default:
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown outcome %q", d.Outcome)
	}

	now := time.Now()
	c.Status = models.StatusResolved
	c.Outcome = d.Outcome
	c.Reason = d.Reason
	c.ResolvedBy = requestcontext.ActorID(ctx)
	c.ResolvedAt = now
	c.UpdatedAt = now
	if err := s.conflicts.Update(ctx, c); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist resolution")
	}

	s.metrics.ConflictResolved(string(d.Outcome), c.CreatedAt)
	audit.Log(ctx, s.audit, audit.ActionConflictResolved, c.PackageID.String(), c.ID.String(), string(d.Outcome))
	if d.Outcome != models.OutcomeKeepBoth {
		audit.Log(ctx, s.audit, audit.ActionMergePerformed, c.PackageID.String(), c.ID.String(), d.Reason)
	}
	s.releaseGate(ctx, c.PackageID)
	return c, nil
}

// Ignore closes a conflict as reviewed-and-dismissed. Terminal for gating
// purposes but distinct from a resolution: no outcome is recorded.
func (s *Service) Ignore(ctx context.Context, id domain.ConflictID, reason string) (*models.Conflict, error) {
	c, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Status.Open() {
		return nil, dErrors.Newf(dErrors.CodeStateConflict, "conflict already %s", c.Status)
	}
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "a reason is required to ignore a conflict")
	}
	now := time.Now()
	c.Status = models.StatusIgnored
	c.Reason = reason
	c.ResolvedBy = requestcontext.ActorID(ctx)
	c.ResolvedAt = now
	c.UpdatedAt = now
	if err := s.conflicts.Update(ctx, c); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist ignore")
	}
	s.metrics.ConflictResolved("ignored", c.CreatedAt)
	audit.Log(ctx, s.audit, audit.ActionConflictResolved, c.PackageID.String(), c.ID.String(), "ignored")
	s.releaseGate(ctx, c.PackageID)
	return c, nil
}

// Escalate flags a conflict for a supervisor and raises its priority to
// the top of the queue. Deliberately not terminal: the package stays
// blocked until someone makes the call.
func (s *Service) Escalate(ctx context.Context, id domain.ConflictID, reason string) (*models.Conflict, error) {
	c, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Status.Open() {
		return nil, dErrors.Newf(dErrors.CodeStateConflict, "conflict already %s", c.Status)
	}
	now := time.Now()
	c.Escalated = true
	c.Priority = models.PriorityHigh
	c.EscalatedBy = requestcontext.ActorID(ctx)
	c.EscalatedAt = now
	c.UpdatedAt = now
	if reason != "" {
		c.ReviewAttempts = append(c.ReviewAttempts, models.ReviewAttempt{
			By: c.EscalatedBy, Note: reason, At: now,
		})
	}
	if err := s.conflicts.Update(ctx, c); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist escalation")
	}
	s.metrics.ConflictEscalated()
	audit.Log(ctx, s.audit, audit.ActionConflictEscalated, c.PackageID.String(), c.ID.String(), reason)
	return c, nil
}

// RecordReviewAttempt notes a touch that reached no decision.
func (s *Service) RecordReviewAttempt(ctx context.Context, id domain.ConflictID, note string) (*models.Conflict, error) {
	c, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Status.Open() {
		return nil, dErrors.Newf(dErrors.CodeStateConflict, "conflict already %s", c.Status)
	}
	now := time.Now()
	c.ReviewAttempts = append(c.ReviewAttempts, models.ReviewAttempt{
		By: requestcontext.ActorID(ctx), Note: note, At: now,
	})
	c.UpdatedAt = now
	if err := s.conflicts.Update(ctx, c); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist review attempt")
	}
	audit.Log(ctx, s.audit, audit.ActionReviewAttempt, c.PackageID.String(), c.ID.String(), note)
	return c, nil
}

// Assign routes an open conflict to a reviewer.
func (s *Service) Assign(ctx context.Context, id domain.ConflictID, assignee string) (*models.Conflict, error) {
	c, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Status.Open() {
		return nil, dErrors.Newf(dErrors.CodeStateConflict, "conflict already %s", c.Status)
	}
	c.Assignee = assignee
	c.UpdatedAt = time.Now()
	if err := s.conflicts.Update(ctx, c); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist assignment")
	}
	return c, nil
}

func (s *Service) get(ctx context.Context, id domain.ConflictID) (*models.Conflict, error) {
	c, err := s.conflicts.Get(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "conflict not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load conflict")
	}
	return c, nil
}

func pickMaster(c *models.Conflict, master string) (models.Party, models.Party, error) {
	switch master {
	case "a":
		return c.A, c.B, nil
	case "b":
		return c.B, c.A, nil
	default:
		return models.Party{}, models.Party{}, dErrors.New(dErrors.CodeInvalidInput,
			`merge requires master "a" or "b"`)
	}
}

// applyMerge performs the data effect of keeping master and discarding the
// other party.
//
// Discarded staged record: skipped in staging; when the master is
// authoritative its id is pinned so commit-time reference translation lands
// on the surviving entity, and when the master is staged every in-package
// reference is relinked to it. Discarded authoritative entity: the
// all-or-nothing relink in the authoritative store.
func (s *Service) applyMerge(ctx context.Context, c *models.Conflict, master, discarded models.Party) error {
	kind := entityKind(c.Type)

	if discarded.Staged() {
		if err := s.staging.MarkMerged(ctx, discarded.StagedID, master.EntityID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "mark staged record merged")
		}
		if master.Staged() {
			if err := s.staging.RelinkReferences(ctx, c.PackageID, kind, discarded.OriginalID, master.OriginalID); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "relink staged references")
			}
		}
		return nil
	}

	if master.Staged() {
		return dErrors.New(dErrors.CodeInvalidInput,
			"an authoritative record can only be merged into another authoritative record")
	}

	var err error
	switch kind {
	case domain.KindPropertyUnit:
		err = s.merger.MergeUnits(ctx, master.EntityID, discarded.EntityID)
	default:
		err = s.merger.MergePersons(ctx, master.EntityID, discarded.EntityID)
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "merge target not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeStateConflict, "merge target is no longer active")
	case err != nil:
		return dErrors.Wrap(err, dErrors.CodeInternal, "merge authoritative records")
	}
	return nil
}

// markDuplicate flags the staged side as a duplicate of the other party
// without relinking anything. Both-staged pairs skip the second party.
func (s *Service) markDuplicate(ctx context.Context, c *models.Conflict) error {
	target := c.B
	other := c.A
	if !target.Staged() {
		target, other = c.A, c.B
	}
	if !target.Staged() {
		return dErrors.New(dErrors.CodeInvalidInput,
			"mark-as-duplicate needs a staged record to flag")
	}
	if err := s.staging.MarkMerged(ctx, target.StagedID, other.EntityID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "mark staged record duplicate")
	}
	c.Master, c.Discarded = other, target
	return nil
}

// releaseGate moves the package to ReadyToCommit once nothing blocks it.
// Best effort: the gate is re-evaluated on the next decision if anything
// here fails, and a package outside ReviewingConflicts is left alone.
func (s *Service) releaseGate(ctx context.Context, pkgID domain.PackageID) {
	open, err := s.conflicts.CountOpen(ctx, pkgID)
	if err != nil {
		s.logger.ErrorContext(ctx, "count open conflicts for gate", "package_id", pkgID, "error", err)
		return
	}
	if open > 0 {
		return
	}
	pkg, err := s.packages.Get(ctx, pkgID)
	if err != nil || pkg.Status != pkgmodels.StatusReviewingConflicts {
		return
	}
	if err := s.packages.Transition(ctx, pkgID, pkgmodels.StatusReviewingConflicts, pkgmodels.StatusReadyToCommit); err != nil {
		if !dErrors.HasCode(err, dErrors.CodeStateConflict) {
			s.logger.ErrorContext(ctx, "release package for commit", "package_id", pkgID, "error", err)
		}
		return
	}
	s.logger.InfoContext(ctx, "package released for commit", "package_id", pkgID)
}
