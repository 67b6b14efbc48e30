package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trustgrid/internal/identity/models"
	id "trustgrid/pkg/domain"
	"trustgrid/pkg/platform/httputil"
	"trustgrid/pkg/requestcontext"
)

// Service defines the identity operations the HTTP layer needs.
type Service interface {
	CreateIdentity(ctx context.Context, ownerKey id.Key, did, metadataURI string, recoveryKeys []id.Key) (*models.Identity, error)
	AddRecoveryKey(ctx context.Context, caller id.Key, identityID id.IdentityID, newKey id.Key) (*models.Identity, error)
	RecoverIdentity(ctx context.Context, recoverySigner id.Key, identityID id.IdentityID, newOwnerKey id.Key) (*models.Identity, error)
	GetIdentity(ctx context.Context, identityID id.IdentityID) (*models.Identity, error)
	GetIdentityByOwner(ctx context.Context, owner id.Key) (*models.Identity, error)
}

// Handler wires identity endpoints to the identity service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts identity endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/identities", h.HandleCreate)
	r.Get("/identities/{identityID}", h.HandleGet)
	r.Get("/identities/owner/{ownerKey}", h.HandleGetByOwner)
	r.Post("/identities/{identityID}/recovery-keys", h.HandleAddRecoveryKey)
	r.Post("/identities/{identityID}/recover", h.HandleRecover)
}

// HandleCreate handles POST /identities. The authenticated caller becomes
// the owner key.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := httputil.RequireCaller(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateIdentityRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	identity, err := h.service.CreateIdentity(ctx, caller, req.DID, req.MetadataURI, req.ParsedRecoveryKeys())
	if err != nil {
		h.logger.ErrorContext(ctx, "identity creation failed",
			"request_id", requestID, "owner", caller, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromIdentity(identity))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	identityID, err := id.ParseIdentityID(chi.URLParam(r, "identityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	identity, err := h.service.GetIdentity(r.Context(), identityID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromIdentity(identity))
}

func (h *Handler) HandleGetByOwner(w http.ResponseWriter, r *http.Request) {
	owner, err := id.ParseKey(chi.URLParam(r, "ownerKey"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	identity, err := h.service.GetIdentityByOwner(r.Context(), owner)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromIdentity(identity))
}

// HandleAddRecoveryKey handles POST /identities/{id}/recovery-keys.
// Owner only; the service enforces it.
func (h *Handler) HandleAddRecoveryKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := httputil.RequireCaller(w, ctx)
	if !ok {
		return
	}
	identityID, err := id.ParseIdentityID(chi.URLParam(r, "identityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[AddRecoveryKeyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	identity, err := h.service.AddRecoveryKey(ctx, caller, identityID, req.ParsedKey())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromIdentity(identity))
}

// HandleRecover handles POST /identities/{id}/recover. The caller must be
// one of the identity's recovery keys.
func (h *Handler) HandleRecover(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := httputil.RequireCaller(w, ctx)
	if !ok {
		return
	}
	identityID, err := id.ParseIdentityID(chi.URLParam(r, "identityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[RecoverIdentityRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	identity, err := h.service.RecoverIdentity(ctx, caller, identityID, req.ParsedKey())
	if err != nil {
		h.logger.WarnContext(ctx, "identity recovery failed",
			"request_id", requestID, "identity_id", identityID, "signer", caller, "error", err)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "identity recovered",
		"request_id", requestID, "identity_id", identityID, "signer", caller)
	httputil.WriteJSON(w, http.StatusOK, FromIdentity(identity))
}
