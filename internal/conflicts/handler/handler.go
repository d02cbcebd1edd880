// Package handler exposes the conflict review queue over HTTP.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/conflicts/models"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/conflicts/service"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/conflicts/store"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/transport/http/shared"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
	dErrors "github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain-errors"
)

type Handler struct {
	conflicts *service.Service
	logger    *slog.Logger
}

func New(conflicts *service.Service, logger *slog.Logger) *Handler {
	return &Handler{conflicts: conflicts, logger: logger}
}

// Register mounts the conflict routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/conflicts", func(r chi.Router) {
		r.Get("/", h.handleQueue)
		r.Route("/{conflictID}", func(r chi.Router) {
			r.Get("/", h.handleDetail)
			r.Post("/resolve", h.handleResolve)
			r.Post("/merge", h.handleMerge)
			r.Post("/keep-separate", h.outcome(models.OutcomeKeepBoth))
			r.Post("/keep-first", h.outcome(models.OutcomeKeepFirst))
			r.Post("/keep-second", h.outcome(models.OutcomeKeepSecond))
			r.Post("/ignore", h.handleIgnore)
			r.Post("/escalate", h.handleEscalate)
			r.Post("/review-attempt", h.handleReviewAttempt)
			r.Post("/assign", h.handleAssign)
		})
	})
}

type conflictView struct {
	ID              string                 `json:"id"`
	PackageID       string                 `json:"package_id"`
	Type            models.Type            `json:"type"`
	Status          models.Status          `json:"status"`
	Priority        models.Priority        `json:"priority"`
	A               models.Party           `json:"a"`
	B               models.Party           `json:"b"`
	Score           int                    `json:"score"`
	Confidence      string                 `json:"confidence"`
	MatchedCriteria []string               `json:"matched_criteria,omitempty"`
	Comparison      map[string]any         `json:"comparison,omitempty"`
	Outcome         models.Outcome         `json:"outcome,omitempty"`
	Reason          string                 `json:"reason,omitempty"`
	Master          *models.Party          `json:"master,omitempty"`
	Discarded       *models.Party          `json:"discarded,omitempty"`
	ResolvedBy      string                 `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time             `json:"resolved_at,omitempty"`
	Escalated       bool                   `json:"escalated"`
	EscalatedBy     string                 `json:"escalated_by,omitempty"`
	Assignee        string                 `json:"assignee,omitempty"`
	ReviewAttempts  []models.ReviewAttempt `json:"review_attempts,omitempty"`
	SLADeadline     *time.Time             `json:"sla_deadline,omitempty"`
	Overdue         bool                   `json:"overdue"`
	CreatedAt       time.Time              `json:"created_at"`
}

func viewOf(c *models.Conflict) conflictView {
	v := conflictView{
		ID:              c.ID.String(),
		PackageID:       c.PackageID.String(),
		Type:            c.Type,
		Status:          c.Status,
		Priority:        c.Priority,
		A:               c.A,
		B:               c.B,
		Score:           c.Score,
		Confidence:      c.Confidence,
		MatchedCriteria: c.MatchedCriteria,
		Comparison:      c.Comparison,
		Outcome:         c.Outcome,
		Reason:          c.Reason,
		ResolvedBy:      c.ResolvedBy,
		Escalated:       c.Escalated,
		EscalatedBy:     c.EscalatedBy,
		Assignee:        c.Assignee,
		ReviewAttempts:  c.ReviewAttempts,
		Overdue:         c.Overdue(time.Now()),
		CreatedAt:       c.CreatedAt,
	}
	if !c.ResolvedAt.IsZero() {
		t := c.ResolvedAt
		v.ResolvedAt = &t
	}
	if c.Master != (models.Party{}) {
		master, discarded := c.Master, c.Discarded
		v.Master, v.Discarded = &master, &discarded
	}
	if !c.SLADeadline.IsZero() {
		t := c.SLADeadline
		v.SLADeadline = &t
	}
	return v
}

func (h *Handler) handleQueue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.Filter{
		Type:     models.Type(q.Get("type")),
		Status:   models.Status(q.Get("status")),
		Priority: models.Priority(q.Get("priority")),
		Assignee: q.Get("assignee"),
		Limit:    queryInt(r, "limit", 50),
		Offset:   queryInt(r, "offset", 0),
	}
	if raw := q.Get("package_id"); raw != "" {
		id, err := domain.ParsePackageID(raw)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid package id"))
			return
		}
		f.PackageID = id
	}
	if raw := q.Get("escalated"); raw != "" {
		escalated := raw == "true"
		f.Escalated = &escalated
	}
	if q.Get("overdue") == "true" {
		now := time.Now()
		f.OverdueAt = &now
	}

	list, total, err := h.conflicts.Queue(r.Context(), f)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	views := make([]conflictView, 0, len(list))
	for _, c := range list {
		views = append(views, viewOf(c))
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"conflicts": views,
		"total":     total,
	})
}

func (h *Handler) handleDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := h.conflictID(w, r)
	if !ok {
		return
	}
	c, err := h.conflicts.Detail(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, viewOf(c))
}

type decisionRequest struct {
	Outcome string `json:"outcome"`
	Reason  string `json:"reason"`
	Master  string `json:"master"`
	Note    string `json:"note"`
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.conflictID(w, r)
	if !ok {
		return
	}
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	c, err := h.conflicts.Resolve(r.Context(), id, service.Decision{
		Outcome: models.Outcome(req.Outcome),
		Reason:  req.Reason,
		Master:  req.Master,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, viewOf(c))
}

func (h *Handler) handleMerge(w http.ResponseWriter, r *http.Request) {
	id, ok := h.conflictID(w, r)
	if !ok {
		return
	}
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	c, err := h.conflicts.Resolve(r.Context(), id, service.Decision{
		Outcome: models.OutcomeMerge,
		Reason:  req.Reason,
		Master:  req.Master,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, viewOf(c))
}

// outcome builds the handler for the single-outcome convenience routes.
func (h *Handler) outcome(o models.Outcome) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.conflictID(w, r)
		if !ok {
			return
		}
		var req decisionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
			return
		}
		c, err := h.conflicts.Resolve(r.Context(), id, service.Decision{Outcome: o, Reason: req.Reason})
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		shared.WriteJSON(w, http.StatusOK, viewOf(c))
	}
}

func (h *Handler) handleIgnore(w http.ResponseWriter, r *http.Request) {
	id, ok := h.conflictID(w, r)
	if !ok {
		return
	}
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	c, err := h.conflicts.Ignore(r.Context(), id, req.Reason)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, viewOf(c))
}

func (h *Handler) handleEscalate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.conflictID(w, r)
	if !ok {
		return
	}
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	c, err := h.conflicts.Escalate(r.Context(), id, req.Reason)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, viewOf(c))
}

func (h *Handler) handleReviewAttempt(w http.ResponseWriter, r *http.Request) {
	id, ok := h.conflictID(w, r)
	if !ok {
		return
	}
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	c, err := h.conflicts.RecordReviewAttempt(r.Context(), id, req.Note)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, viewOf(c))
}

type assignRequest struct {
	Assignee string `json:"assignee"`
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	id, ok := h.conflictID(w, r)
	if !ok {
		return
	}
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	if req.Assignee == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "assignee is required"))
		return
	}
	c, err := h.conflicts.Assign(r.Context(), id, req.Assignee)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, viewOf(c))
}

func (h *Handler) conflictID(w http.ResponseWriter, r *http.Request) (domain.ConflictID, bool) {
	id, err := domain.ParseConflictID(chi.URLParam(r, "conflictID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid conflict id"))
		return domain.ConflictID{}, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
