package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"trustledger/internal/identity/models"
	id "trustledger/pkg/domain"
	dErrors "trustledger/pkg/domain-errors"
	"trustledger/pkg/platform/httputil"
	"trustledger/pkg/requestcontext"
)

// Service defines the identity registry operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, caller id.Address, externalID string) (*models.User, error)
	VerifyUser(ctx context.Context, caller, target id.Address) (*models.User, error)
	RestrictedAction(ctx context.Context, caller id.Address) error
	User(ctx context.Context, owner id.Address) (*models.User, error)
}

// Handler wires identity endpoints to the registry service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts identity endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/identity/register", h.HandleRegister)
	r.Post("/identity/users/{owner}/verify", h.HandleVerifyUser)
	r.Post("/identity/restricted", h.HandleRestrictedAction)
	r.Get("/identity/users/{owner}", h.HandleGetUser)
}

// HandleRegister handles POST /identity/register.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := httputil.RequireCaller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, requestID)
	if !ok {
		return
	}

	user, err := h.service.Register(ctx, caller, req.ExternalID)
	if err != nil {
		h.logFailure(ctx, "register failed", err, "caller", caller)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, user)
}

// HandleVerifyUser handles POST /identity/users/{owner}/verify.
func (h *Handler) HandleVerifyUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller, ok := httputil.RequireCaller(w, r)
	if !ok {
		return
	}
	target, err := ownerParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	user, err := h.service.VerifyUser(ctx, caller, target)
	if err != nil {
		h.logFailure(ctx, "verify user failed", err, "caller", caller, "target", target)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

// HandleRestrictedAction handles POST /identity/restricted.
func (h *Handler) HandleRestrictedAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller, ok := httputil.RequireCaller(w, r)
	if !ok {
		return
	}
	if err := h.service.RestrictedAction(ctx, caller); err != nil {
		h.logFailure(ctx, "restricted action refused", err, "caller", caller)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetUser handles GET /identity/users/{owner}.
func (h *Handler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner, err := ownerParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	user, err := h.service.User(ctx, owner)
	if err != nil {
		h.logFailure(ctx, "get user failed", err, "owner", owner)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

// ownerParam decodes the {owner} segment. chi routes on RawPath when the
// client escaped a reserved character such as '/', leaving the segment encoded.
func ownerParam(r *http.Request) (id.Address, error) {
	owner := chi.URLParam(r, "owner")
	if r.URL.RawPath != "" {
		decoded, err := url.PathUnescape(owner)
		if err != nil {
			return "", dErrors.New(dErrors.CodeInvalidInput, "owner is not a valid path segment")
		}
		owner = decoded
	}
	return id.ParseAddress(owner)
}

// logFailure logs expected refusals at warn and everything else at error.
func (h *Handler) logFailure(ctx context.Context, msg string, err error, attrs ...any) {
	args := append([]any{"request_id", requestcontext.RequestID(ctx), "error", err}, attrs...)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, args...)
		return
	}
	h.logger.WarnContext(ctx, msg, args...)
}
