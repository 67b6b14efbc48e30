package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"trustgrid/internal/oracle/models"
	id "trustgrid/pkg/domain"
	"trustgrid/pkg/platform/httputil"
	"trustgrid/pkg/requestcontext"
)

// Service defines the oracle operations the HTTP layer needs.
type Service interface {
	InitializeConfig(ctx context.Context, minOracleStake uint64, requiredConfirmations uint32, timeout time.Duration, fee uint64) (*models.Config, error)
	UpdateConfig(ctx context.Context, update models.ConfigUpdate) (*models.Config, error)
	GetConfig(ctx context.Context) (*models.Config, error)
	RegisterOracle(ctx context.Context, authority, stakeOwner id.Key) (*models.Node, error)
	DeregisterOracle(ctx context.Context, authority id.Key) (*models.Node, error)
	GetNode(ctx context.Context, authority id.Key) (*models.Node, error)
	RequestVerification(ctx context.Context, identityID id.IdentityID, verificationType id.VerificationType, evidence models.EvidenceHash) (*models.Request, error)
	SubmitVote(ctx context.Context, requestID id.RequestID, choice models.VoteChoice) (*models.Request, error)
	ExpireStaleRequests(ctx context.Context) (int, error)
	GetRequest(ctx context.Context, requestID id.RequestID) (*models.Request, error)
}

// Handler wires oracle endpoints to the oracle service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts oracle endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/oracle/config", h.HandleInitializeConfig)
	r.Patch("/oracle/config", h.HandleUpdateConfig)
	r.Get("/oracle/config", h.HandleGetConfig)
	r.Post("/oracle/nodes", h.HandleRegister)
	r.Delete("/oracle/nodes/{authority}", h.HandleDeregister)
	r.Get("/oracle/nodes/{authority}", h.HandleGetNode)
	r.Post("/verifications", h.HandleRequestVerification)
	r.Get("/verifications/{requestID}", h.HandleGetRequest)
	r.Post("/verifications/{requestID}/votes", h.HandleSubmitVote)
	r.Post("/verifications/expire", h.HandleExpire)
}

func (h *Handler) HandleInitializeConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := httputil.RequireCaller(w, ctx); !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[InitializeConfigRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	cfg, err := h.service.InitializeConfig(ctx, req.MinOracleStake, req.RequiredConfirmations, req.Timeout(), req.VerificationFee)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, cfg)
}

func (h *Handler) HandleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := httputil.RequireCaller(w, ctx); !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateConfigRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	cfg, err := h.service.UpdateConfig(ctx, req.ToUpdate())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cfg)
}

func (h *Handler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.GetConfig(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cfg)
}

// HandleRegister handles POST /oracle/nodes. The authenticated caller
// becomes the node authority.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := httputil.RequireCaller(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RegisterOracleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	node, err := h.service.RegisterOracle(ctx, caller, req.ParsedStakeOwner())
	if err != nil {
		h.logger.WarnContext(ctx, "oracle registration failed",
			"request_id", requestID, "authority", caller, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, node)
}

func (h *Handler) HandleDeregister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := httputil.RequireCaller(w, ctx); !ok {
		return
	}
	authority, err := id.ParseKey(chi.URLParam(r, "authority"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	node, err := h.service.DeregisterOracle(ctx, authority)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, node)
}

func (h *Handler) HandleGetNode(w http.ResponseWriter, r *http.Request) {
	authority, err := id.ParseKey(chi.URLParam(r, "authority"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	node, err := h.service.GetNode(r.Context(), authority)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, node)
}

// HandleRequestVerification handles POST /verifications.
func (h *Handler) HandleRequestVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if _, ok := httputil.RequireCaller(w, ctx); !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RequestVerificationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	created, err := h.service.RequestVerification(ctx, req.ParsedIdentityID(), req.ParsedType(), req.ParsedEvidence())
	if err != nil {
		h.logger.WarnContext(ctx, "verification request failed",
			"request_id", requestID, "identity_id", req.IdentityID, "type", req.Type, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromRequest(created))
}

func (h *Handler) HandleGetRequest(w http.ResponseWriter, r *http.Request) {
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := h.service.GetRequest(r.Context(), requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRequest(req))
}

// HandleSubmitVote handles POST /verifications/{id}/votes. The caller
// must be a registered active oracle.
func (h *Handler) HandleSubmitVote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := requestcontext.RequestID(ctx)

	caller, ok := httputil.RequireCaller(w, ctx)
	if !ok {
		return
	}
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[SubmitVoteRequest](w, r, h.logger, ctx, correlationID)
	if !ok {
		return
	}
	updated, err := h.service.SubmitVote(ctx, requestID, req.ParsedChoice())
	if err != nil {
		h.logger.WarnContext(ctx, "vote submission failed",
			"request_id", correlationID, "verification", requestID, "authority", caller, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRequest(updated))
}

// HandleExpire handles POST /verifications/expire. Permissionless sweep.
func (h *Handler) HandleExpire(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	expired, err := h.service.ExpireStaleRequests(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ExpireResponse{Expired: expired})
}
