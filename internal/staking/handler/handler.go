package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"trustgrid/internal/staking/models"
	id "trustgrid/pkg/domain"
	"trustgrid/pkg/platform/httputil"
	"trustgrid/pkg/requestcontext"
)

// Service defines the staking operations the HTTP layer needs.
type Service interface {
	InitializePool(ctx context.Context, caller id.Key, minStake, rewardRateBps uint64, cooldown time.Duration) (*models.Pool, error)
	Stake(ctx context.Context, owner id.Key, amount uint64) (*models.StakeAccount, error)
	RequestUnstake(ctx context.Context, owner id.Key, amount uint64) (*models.StakeAccount, error)
	CompleteUnstake(ctx context.Context, owner id.Key) (*models.StakeAccount, uint64, error)
	CancelUnstake(ctx context.Context, owner id.Key) (*models.StakeAccount, error)
	Slash(ctx context.Context, caller id.Key, owner id.Key, amount uint64, reason string) (*models.StakeAccount, uint64, error)
	AccrueRewards(ctx context.Context, owner id.Key, epochs uint64) (*models.StakeAccount, error)
	UpdatePoolConfig(ctx context.Context, caller id.Key, update models.PoolConfigUpdate) (*models.Pool, error)
	SetPoolPaused(ctx context.Context, caller id.Key, paused bool) (*models.Pool, error)
	GetPool(ctx context.Context) (*models.Pool, error)
	GetAccount(ctx context.Context, owner id.Key) (*models.StakeAccount, error)
}

// Handler wires staking endpoints to the staking service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts staking endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/staking/pool", h.HandleInitializePool)
	r.Get("/staking/pool", h.HandleGetPool)
	r.Patch("/staking/pool", h.HandleUpdatePool)
	r.Post("/staking/pool/pause", h.HandleSetPaused)
	r.Post("/staking/stake", h.HandleStake)
	r.Post("/staking/unstake/request", h.HandleRequestUnstake)
	r.Post("/staking/unstake/complete", h.HandleCompleteUnstake)
	r.Post("/staking/unstake/cancel", h.HandleCancelUnstake)
	r.Post("/staking/slash", h.HandleSlash)
	r.Post("/staking/rewards/accrue", h.HandleAccrueRewards)
	r.Get("/staking/accounts/{owner}", h.HandleGetAccount)
}

func (h *Handler) HandleInitializePool(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := httputil.RequireCaller(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[InitializePoolRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	pool, err := h.service.InitializePool(ctx, caller, req.MinStake, req.RewardRateBps, req.Cooldown())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, pool)
}

func (h *Handler) HandleGetPool(w http.ResponseWriter, r *http.Request) {
	pool, err := h.service.GetPool(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pool)
}

func (h *Handler) HandleUpdatePool(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := httputil.RequireCaller(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdatePoolRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	pool, err := h.service.UpdatePoolConfig(ctx, caller, req.ToUpdate())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pool)
}

func (h *Handler) HandleSetPaused(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := httputil.RequireCaller(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SetPausedRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	pool, err := h.service.SetPoolPaused(ctx, caller, req.Paused)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pool)
}

// HandleStake handles POST /staking/stake. The authenticated caller is
// the account owner.
func (h *Handler) HandleStake(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := httputil.RequireCaller(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AmountRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	account, err := h.service.Stake(ctx, caller, req.Amount)
	if err != nil {
		h.logger.WarnContext(ctx, "stake failed",
			"request_id", requestID, "owner", caller, "amount", req.Amount, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, account)
}

func (h *Handler) HandleRequestUnstake(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := httputil.RequireCaller(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AmountRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	account, err := h.service.RequestUnstake(ctx, caller, req.Amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, account)
}

func (h *Handler) HandleCompleteUnstake(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := httputil.RequireCaller(w, ctx)
	if !ok {
		return
	}
	account, released, err := h.service.CompleteUnstake(ctx, caller)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CompleteUnstakeResponse{Account: account, Released: released})
}

func (h *Handler) HandleCancelUnstake(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := httputil.RequireCaller(w, ctx)
	if !ok {
		return
	}
	account, err := h.service.CancelUnstake(ctx, caller)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, account)
}

// HandleSlash handles POST /staking/slash. Restricted to the admin and
// the configured slasher; the service enforces it.
func (h *Handler) HandleSlash(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := httputil.RequireCaller(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SlashRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	account, slashed, err := h.service.Slash(ctx, caller, req.ParsedOwner(), req.Amount, req.Reason)
	if err != nil {
		h.logger.WarnContext(ctx, "slash failed",
			"request_id", requestID, "owner", req.Owner, "amount", req.Amount, "error", err)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "stake slashed",
		"request_id", requestID, "owner", req.Owner, "slashed", slashed, "reason", req.Reason)
	httputil.WriteJSON(w, http.StatusOK, SlashResponse{Account: account, Slashed: slashed})
}

func (h *Handler) HandleAccrueRewards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := httputil.RequireCaller(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AccrueRewardsRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	account, err := h.service.AccrueRewards(ctx, caller, req.Epochs)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, account)
}

func (h *Handler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	owner, err := id.ParseKey(chi.URLParam(r, "owner"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	account, err := h.service.GetAccount(r.Context(), owner)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, account)
}
