package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trustledger/internal/credential/models"
	"trustledger/internal/credential/service"
	id "trustledger/pkg/domain"
	dErrors "trustledger/pkg/domain-errors"
	"trustledger/pkg/platform/httputil"
	"trustledger/pkg/requestcontext"
)

// Service defines the credential ledger operations exposed over HTTP.
type Service interface {
	Issue(ctx context.Context, caller id.Address, req service.IssueRequest) (*models.Credential, error)
	Initiate(ctx context.Context, caller id.Address, req service.InitiateRequest) (*models.Approval, error)
	Approve(ctx context.Context, caller id.Address, credID id.CredentialID) (*models.Approval, error)
	Revoke(ctx context.Context, caller id.Address, credID id.CredentialID, reason string) (*models.Credential, error)
	Verify(ctx context.Context, credID id.CredentialID) (bool, error)
	Credential(ctx context.Context, credID id.CredentialID) (*models.Credential, error)
	Pending(ctx context.Context, credID id.CredentialID) (*models.PendingCredential, error)
	AddIssuer(ctx context.Context, caller, issuer id.Address) error
}

// Handler wires credential endpoints to the ledger service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts credential endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/credentials", func(r chi.Router) {
		r.Post("/", h.HandleIssue)
		r.Post("/issuers", h.HandleAddIssuer)
		r.Post("/pending", h.HandleInitiate)
		r.Get("/pending/{id}", h.HandleGetPending)
		r.Post("/pending/{id}/approve", h.HandleApprove)
		r.Get("/{id}", h.HandleGetCredential)
		r.Get("/{id}/verify", h.HandleVerify)
		r.Post("/{id}/revoke", h.HandleRevoke)
	})
}

// HandleIssue handles POST /credentials.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := httputil.RequireCaller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[IssueRequest](w, r, h.logger, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	c, err := h.service.Issue(ctx, caller, req.toService())
	if err != nil {
		h.fail(w, ctx, "issue failed", err, "caller", caller)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
}

// HandleInitiate handles POST /credentials/pending.
func (h *Handler) HandleInitiate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := httputil.RequireCaller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[InitiateRequest](w, r, h.logger, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	res, err := h.service.Initiate(ctx, caller, req.toService())
	if err != nil {
		h.fail(w, ctx, "initiate failed", err, "caller", caller)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

// HandleApprove handles POST /credentials/pending/{id}/approve.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := httputil.RequireCaller(w, r)
	if !ok {
		return
	}
	credID, ok := credentialID(w, r)
	if !ok {
		return
	}

	res, err := h.service.Approve(ctx, caller, credID)
	if err != nil {
		h.fail(w, ctx, "approve failed", err, "caller", caller, "credential_id", credID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleRevoke handles POST /credentials/{id}/revoke.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := httputil.RequireCaller(w, r)
	if !ok {
		return
	}
	credID, ok := credentialID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RevokeRequest](w, r, h.logger, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	c, err := h.service.Revoke(ctx, caller, credID, req.Reason)
	if err != nil {
		h.fail(w, ctx, "revoke failed", err, "caller", caller, "credential_id", credID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

// HandleVerify handles GET /credentials/{id}/verify.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	credID, ok := credentialID(w, r)
	if !ok {
		return
	}
	valid, err := h.service.Verify(ctx, credID)
	if err != nil {
		h.fail(w, ctx, "verify failed", err, "credential_id", credID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VerifyResponse{ID: credID, Valid: valid})
}

// HandleGetCredential handles GET /credentials/{id}.
func (h *Handler) HandleGetCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	credID, ok := credentialID(w, r)
	if !ok {
		return
	}
	c, err := h.service.Credential(ctx, credID)
	if err != nil {
		h.fail(w, ctx, "get credential failed", err, "credential_id", credID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

// HandleGetPending handles GET /credentials/pending/{id}.
func (h *Handler) HandleGetPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	credID, ok := credentialID(w, r)
	if !ok {
		return
	}
	p, err := h.service.Pending(ctx, credID)
	if err != nil {
		h.fail(w, ctx, "get pending credential failed", err, "credential_id", credID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// HandleAddIssuer handles POST /credentials/issuers.
func (h *Handler) HandleAddIssuer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := httputil.RequireCaller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AddIssuerRequest](w, r, h.logger, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	if err := h.service.AddIssuer(ctx, caller, req.issuer); err != nil {
		h.fail(w, ctx, "add issuer failed", err, "caller", caller, "issuer", req.issuer)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func credentialID(w http.ResponseWriter, r *http.Request) (id.CredentialID, bool) {
	credID, err := id.ParseCredentialID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return 0, false
	}
	return credID, true
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
