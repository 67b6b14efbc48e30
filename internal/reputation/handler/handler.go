package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trustgrid/internal/reputation/models"
	id "trustgrid/pkg/domain"
	dErrors "trustgrid/pkg/domain-errors"
	"trustgrid/pkg/platform/httputil"
	"trustgrid/pkg/requestcontext"
)

// Service defines the reputation operations the HTTP layer needs.
type Service interface {
	ApplyEvent(ctx context.Context, identityID id.IdentityID, eventType models.EventType) (*models.Score, error)
	ApplyDecay(ctx context.Context, identityID id.IdentityID, daysElapsed int64) (*models.Score, error)
	ChallengeReputation(ctx context.Context, identityID id.IdentityID, reason, evidenceURI string) (*models.Score, error)
	ResolveChallenge(ctx context.Context, identityID id.IdentityID, won bool, penalty int64) (*models.Score, error)
	GetScore(ctx context.Context, identityID id.IdentityID) (*models.Score, error)
}

// Handler wires reputation endpoints to the reputation service. Event and
// decay submission is restricted to the platform authority; scores of
// other modules arrive through service ports, not HTTP.
type Handler struct {
	service  Service
	adminKey id.Key
	logger   *slog.Logger
}

func New(service Service, adminKey id.Key, logger *slog.Logger) *Handler {
	return &Handler{service: service, adminKey: adminKey, logger: logger}
}

// Register mounts reputation endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/reputation/{identityID}", h.HandleGetScore)
	r.Post("/reputation/{identityID}/events", h.HandleApplyEvent)
	r.Post("/reputation/{identityID}/decay", h.HandleApplyDecay)
	r.Post("/reputation/{identityID}/challenges", h.HandleChallenge)
	r.Post("/reputation/{identityID}/challenges/resolve", h.HandleResolveChallenge)
}

func (h *Handler) HandleGetScore(w http.ResponseWriter, r *http.Request) {
	identityID, err := id.ParseIdentityID(chi.URLParam(r, "identityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	score, err := h.service.GetScore(r.Context(), identityID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, score)
}

// HandleApplyEvent handles POST /reputation/{id}/events.
func (h *Handler) HandleApplyEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if !h.requireAdmin(w, ctx) {
		return
	}
	identityID, err := id.ParseIdentityID(chi.URLParam(r, "identityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ApplyEventRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	score, err := h.service.ApplyEvent(ctx, identityID, req.ParsedEventType())
	if err != nil {
		h.logger.WarnContext(ctx, "reputation event failed",
			"request_id", requestID, "identity_id", identityID, "event_type", req.EventType, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, score)
}

// HandleApplyDecay handles POST /reputation/{id}/decay.
func (h *Handler) HandleApplyDecay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.requireAdmin(w, ctx) {
		return
	}
	identityID, err := id.ParseIdentityID(chi.URLParam(r, "identityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ApplyDecayRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	score, err := h.service.ApplyDecay(ctx, identityID, req.DaysElapsed)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, score)
}

// HandleChallenge handles POST /reputation/{id}/challenges. Any
// authenticated caller may open a dispute.
func (h *Handler) HandleChallenge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, ok := httputil.RequireCaller(w, ctx); !ok {
		return
	}
	identityID, err := id.ParseIdentityID(chi.URLParam(r, "identityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ChallengeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	score, err := h.service.ChallengeReputation(ctx, identityID, req.Reason, req.EvidenceURI)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, score)
}

// HandleResolveChallenge handles POST /reputation/{id}/challenges/resolve.
func (h *Handler) HandleResolveChallenge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.requireAdmin(w, ctx) {
		return
	}
	identityID, err := id.ParseIdentityID(chi.URLParam(r, "identityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ResolveChallengeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	score, err := h.service.ResolveChallenge(ctx, identityID, req.Won, req.Penalty)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, score)
}

func (h *Handler) requireAdmin(w http.ResponseWriter, ctx context.Context) bool {
	caller, ok := httputil.RequireCaller(w, ctx)
	if !ok {
		return false
	}
	if caller != h.adminKey {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "caller is not the reputation authority"))
		return false
	}
	return true
}
