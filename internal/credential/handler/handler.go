package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"trustgrid/internal/credential/models"
	id "trustgrid/pkg/domain"
	"trustgrid/pkg/platform/httputil"
	"trustgrid/pkg/requestcontext"
)

// Service defines the credential operations the HTTP layer needs.
type Service interface {
	RegisterIssuer(ctx context.Context, key id.Key, name, did string) (*models.Issuer, error)
	RevokeIssuer(ctx context.Context, key id.Key) (*models.Issuer, error)
	GetIssuer(ctx context.Context, key id.Key) (*models.Issuer, error)
	IssueCredential(ctx context.Context, holder id.IdentityID, credentialType, metadataURI, proofURI string, expiresAt time.Time) (*models.Credential, error)
	RevokeCredential(ctx context.Context, credentialID id.CredentialID) (*models.Credential, error)
	GetCredential(ctx context.Context, credentialID id.CredentialID) (*models.Credential, error)
	ListHolderCredentials(ctx context.Context, holder id.IdentityID) ([]*models.Credential, error)
}

// Handler wires credential endpoints to the credential service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts credential endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/issuers", h.HandleRegisterIssuer)
	r.Post("/issuers/{key}/revoke", h.HandleRevokeIssuer)
	r.Get("/issuers/{key}", h.HandleGetIssuer)
	r.Post("/credentials", h.HandleIssue)
	r.Post("/credentials/{credentialID}/revoke", h.HandleRevoke)
	r.Get("/credentials/{credentialID}", h.HandleGet)
	r.Get("/identities/{identityID}/credentials", h.HandleListByHolder)
}

func (h *Handler) HandleRegisterIssuer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := httputil.RequireCaller(w, ctx); !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RegisterIssuerRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	issuer, err := h.service.RegisterIssuer(ctx, req.ParsedKey(), req.Name, req.DID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, issuer)
}

func (h *Handler) HandleRevokeIssuer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := httputil.RequireCaller(w, ctx); !ok {
		return
	}
	key, err := id.ParseKey(chi.URLParam(r, "key"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	issuer, err := h.service.RevokeIssuer(ctx, key)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, issuer)
}

func (h *Handler) HandleGetIssuer(w http.ResponseWriter, r *http.Request) {
	key, err := id.ParseKey(chi.URLParam(r, "key"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	issuer, err := h.service.GetIssuer(r.Context(), key)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, issuer)
}

// HandleIssue handles POST /credentials. The authenticated caller must be
// a registered active issuer.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := httputil.RequireCaller(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[IssueCredentialRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	cred, err := h.service.IssueCredential(ctx, req.ParsedHolder(), req.Type, req.MetadataURI, req.ProofURI, req.ExpiresAt)
	if err != nil {
		h.logger.WarnContext(ctx, "credential issuance failed",
			"request_id", requestID, "issuer", caller, "holder", req.Holder, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, cred)
}

func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := httputil.RequireCaller(w, ctx); !ok {
		return
	}
	credentialID, err := id.ParseCredentialID(chi.URLParam(r, "credentialID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	cred, err := h.service.RevokeCredential(ctx, credentialID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cred)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	credentialID, err := id.ParseCredentialID(chi.URLParam(r, "credentialID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	cred, err := h.service.GetCredential(r.Context(), credentialID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cred)
}

func (h *Handler) HandleListByHolder(w http.ResponseWriter, r *http.Request) {
	identityID, err := id.ParseIdentityID(chi.URLParam(r, "identityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	creds, err := h.service.ListHolderCredentials(r.Context(), identityID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if creds == nil {
		creds = []*models.Credential{}
	}
	httputil.WriteJSON(w, http.StatusOK, creds)
}
