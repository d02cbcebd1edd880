// Package handler exposes the import workflow over HTTP: package
// submission, the explicit validate/detect/commit/cancel steps, and the
// import report.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	pkgmodels "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/packages/models"
	pkgservice "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/packages/service"
	pkgstore "github.com/Ameerovich/TRRCMS-Backend-sub004/internal/packages/store"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/pipeline"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/transport/http/shared"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
	dErrors "github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain-errors"
)

type Handler struct {
	pipeline *pipeline.Pipeline
	packages *pkgservice.Service
	logger   *slog.Logger
}

func New(p *pipeline.Pipeline, packages *pkgservice.Service, logger *slog.Logger) *Handler {
	return &Handler{pipeline: p, packages: packages, logger: logger}
}

// Register mounts the import routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/import/packages", func(r chi.Router) {
		r.Post("/", h.handleSubmit)
		r.Get("/", h.handleList)
		r.Route("/{packageID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Get("/report", h.handleReport)
			r.Post("/validate", h.handleValidate)
			r.Post("/detect", h.handleDetect)
			r.Post("/commit", h.handleCommit)
			r.Post("/cancel", h.handleCancel)
		})
	})
}

type packageView struct {
	ID               string                    `json:"id"`
	Number           string                    `json:"number"`
	Status           pkgmodels.Status          `json:"status"`
	Source           string                    `json:"source,omitempty"`
	CodeListVersion  string                    `json:"code_list_version"`
	SubmittedBy      string                    `json:"submitted_by,omitempty"`
	ArchiveLocation  string                    `json:"archive_location,omitempty"`
	RecordCounts     map[domain.EntityKind]int `json:"record_counts"`
	TotalRecords     int                       `json:"total_records"`
	QuarantineReason string                    `json:"quarantine_reason,omitempty"`
	Notes            []string                  `json:"notes,omitempty"`
	CommittedBy      string                    `json:"committed_by,omitempty"`
	CommittedCount   int                       `json:"committed_count"`
	FailedCount      int                       `json:"failed_count"`
	SkippedCount     int                       `json:"skipped_count"`
	CreatedAt        time.Time                 `json:"created_at"`
	UpdatedAt        time.Time                 `json:"updated_at"`
	CompletedAt      *time.Time                `json:"completed_at,omitempty"`
}

func viewOf(p *pkgmodels.ImportPackage) packageView {
	v := packageView{
		ID:               p.ID.String(),
		Number:           p.Number,
		Status:           p.Status,
		Source:           p.Source,
		CodeListVersion:  p.DeclaredVersion.String(),
		SubmittedBy:      p.SubmittedBy,
		ArchiveLocation:  p.ArchiveLocation,
		RecordCounts:     p.RecordCounts,
		TotalRecords:     p.TotalRecords(),
		QuarantineReason: p.QuarantineReason,
		Notes:            p.Notes,
		CommittedBy:      p.CommittedBy,
		CommittedCount:   p.CommittedCount,
		FailedCount:      p.FailedCount,
		SkippedCount:     p.SkippedCount,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
	if !p.CompletedAt.IsZero() {
		t := p.CompletedAt
		v.CompletedAt = &t
	}
	return v
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var sub pipeline.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	pkg, err := h.pipeline.Submit(r.Context(), sub)
	if err != nil {
		h.logger.WarnContext(r.Context(), "submission rejected", "error", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, viewOf(pkg))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	f := pkgstore.Filter{
		Status: pkgmodels.Status(r.URL.Query().Get("status")),
		Source: r.URL.Query().Get("source"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	pkgs, total, err := h.packages.List(r.Context(), f)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	views := make([]packageView, 0, len(pkgs))
	for _, p := range pkgs {
		views = append(views, viewOf(p))
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"packages": views,
		"total":    total,
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.packageID(w, r)
	if !ok {
		return
	}
	pkg, err := h.pipeline.Get(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, viewOf(pkg))
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	id, ok := h.packageID(w, r)
	if !ok {
		return
	}
	report, err := h.pipeline.Report(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.packageID(w, r)
	if !ok {
		return
	}
	summary, err := h.pipeline.Validate(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"counts":            summary.Counts,
		"quarantined":       summary.Quarantined,
		"quarantine_reason": summary.QuarantineReason,
		"notes":             summary.Notes,
	})
}

func (h *Handler) handleDetect(w http.ResponseWriter, r *http.Request) {
	id, ok := h.packageID(w, r)
	if !ok {
		return
	}
	result, err := h.pipeline.Detect(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleCommit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.packageID(w, r)
	if !ok {
		return
	}
	report, err := h.pipeline.Commit(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.packageID(w, r)
	if !ok {
		return
	}
	if err := h.pipeline.Cancel(r.Context(), id); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) packageID(w http.ResponseWriter, r *http.Request) (domain.PackageID, bool) {
	id, err := domain.ParsePackageID(chi.URLParam(r, "packageID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid package id"))
		return domain.PackageID{}, false
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
