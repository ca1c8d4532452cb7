package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trustledger/internal/report/models"
	id "trustledger/pkg/domain"
	dErrors "trustledger/pkg/domain-errors"
	"trustledger/pkg/platform/httputil"
	"trustledger/pkg/requestcontext"
)

// Service defines the report ledger operations exposed over HTTP.
type Service interface {
	Submit(ctx context.Context, caller id.Address, fingerprint, category string) (*models.Report, error)
	MyReports(ctx context.Context, caller id.Address) ([]id.ReportID, error)
	Resolve(ctx context.Context, caller id.Address, reportID id.ReportID) (*models.Report, error)
	Report(ctx context.Context, reportID id.ReportID) (*models.Report, error)
}

// Handler wires report endpoints to the ledger service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts report endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/reports", h.HandleSubmit)
	r.Get("/reports/mine", h.HandleMyReports)
	r.Get("/reports/{id}", h.HandleGetReport)
	r.Post("/reports/{id}/resolve", h.HandleResolve)
}

// HandleSubmit handles POST /reports.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := httputil.RequireCaller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SubmitRequest](w, r, h.logger, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	report, err := h.service.Submit(ctx, caller, req.Fingerprint, req.Category)
	if err != nil {
		h.fail(w, ctx, "submit report failed", err, "caller", caller)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, report)
}

// HandleMyReports handles GET /reports/mine.
func (h *Handler) HandleMyReports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := httputil.RequireCaller(w, r)
	if !ok {
		return
	}
	ids, err := h.service.MyReports(ctx, caller)
	if err != nil {
		h.fail(w, ctx, "list reports failed", err, "caller", caller)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, MyReportsResponse{Reporter: caller, IDs: ids})
}

// HandleResolve handles POST /reports/{id}/resolve.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := httputil.RequireCaller(w, r)
	if !ok {
		return
	}
	reportID, ok := parseReportID(w, r)
	if !ok {
		return
	}

	report, err := h.service.Resolve(ctx, caller, reportID)
	if err != nil {
		h.fail(w, ctx, "resolve report failed", err, "caller", caller, "report_id", reportID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

// HandleGetReport handles GET /reports/{id}.
func (h *Handler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reportID, ok := parseReportID(w, r)
	if !ok {
		return
	}
	report, err := h.service.Report(ctx, reportID)
	if err != nil {
		h.fail(w, ctx, "get report failed", err, "report_id", reportID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func parseReportID(w http.ResponseWriter, r *http.Request) (id.ReportID, bool) {
	reportID, err := id.ParseReportID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return 0, false
	}
	return reportID, true
}

func (h *Handler) fail(w http.ResponseWriter, ctx context.Context, msg string, err error, attrs ...any) {
	args := append([]any{"request_id", requestcontext.RequestID(ctx), "error", err}, attrs...)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, args...)
	} else {
		h.logger.WarnContext(ctx, msg, args...)
	}
	httputil.WriteError(w, err)
}
