package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	identitymodels "trustgrid/internal/identity/models"
	platformredis "trustgrid/internal/platform/redis"
	reputationmodels "trustgrid/internal/reputation/models"
	stakingmodels "trustgrid/internal/staking/models"
	id "trustgrid/pkg/domain"
	dErrors "trustgrid/pkg/domain-errors"
	"trustgrid/pkg/platform/httputil"
)

// TrustSnapshot is the aggregated read model for one identity: bitmap,
// score and tier, stake and cooldown state in a single response.
type TrustSnapshot struct {
	IdentityID         string     `json:"identity_id"`
	OwnerKey           string     `json:"owner_key"`
	DID                string     `json:"did"`
	VerificationBitmap uint8      `json:"verification_bitmap"`
	Verifications      []string   `json:"verifications"`
	Score              int64      `json:"score"`
	Tier               string     `json:"tier"`
	StakedAmount       uint64     `json:"staked_amount"`
	PendingUnstake     uint64     `json:"pending_unstake"`
	UnstakeRequestedAt *time.Time `json:"unstake_requested_at,omitempty"`
	GeneratedAt        time.Time  `json:"generated_at"`
}

// IdentityReader, ScoreReader and StakeReader are the read surfaces the
// snapshot endpoint aggregates.
type IdentityReader interface {
	GetIdentity(ctx context.Context, identityID id.IdentityID) (*identitymodels.Identity, error)
}

type ScoreReader interface {
	GetScore(ctx context.Context, identityID id.IdentityID) (*reputationmodels.Score, error)
}

type StakeReader interface {
	GetAccount(ctx context.Context, owner id.Key) (*stakingmodels.StakeAccount, error)
}

// SnapshotCache caches trust snapshots in redis. A nil cache is a no-op,
// so the endpoint works without redis configured.
type SnapshotCache struct {
	client *platformredis.Client
	ttl    time.Duration
}

func NewSnapshotCache(client *platformredis.Client, ttl time.Duration) *SnapshotCache {
	if client == nil {
		return nil
	}
	return &SnapshotCache{client: client, ttl: ttl}
}

func snapshotKey(identityID id.IdentityID) string {
	return "trust:snapshot:" + identityID.String()
}

func (c *SnapshotCache) Get(ctx context.Context, identityID id.IdentityID) (*TrustSnapshot, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, snapshotKey(identityID)).Bytes()
	if err != nil {
		return nil, false
	}
	var snap TrustSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, false
	}
	return &snap, true
}

func (c *SnapshotCache) Set(ctx context.Context, identityID id.IdentityID, snap *TrustSnapshot) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	c.client.Set(ctx, snapshotKey(identityID), raw, c.ttl)
}

// Invalidate drops the cached snapshot. Wired into the identity service
// so every snapshot-relevant mutation clears the entry.
func (c *SnapshotCache) Invalidate(ctx context.Context, identityID id.IdentityID) error {
	if c == nil {
		return nil
	}
	if err := c.client.Del(ctx, snapshotKey(identityID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// SnapshotHandler serves GET /trust/{identityID}.
type SnapshotHandler struct {
	identities IdentityReader
	scores     ScoreReader
	stakes     StakeReader
	cache      *SnapshotCache
	logger     *slog.Logger
}

func NewSnapshotHandler(identities IdentityReader, scores ScoreReader, stakes StakeReader, cache *SnapshotCache, logger *slog.Logger) *SnapshotHandler {
	return &SnapshotHandler{
		identities: identities,
		scores:     scores,
		stakes:     stakes,
		cache:      cache,
		logger:     logger,
	}
}

func (h *SnapshotHandler) Register(r chi.Router) {
	r.Get("/trust/{identityID}", h.HandleGet)
}

func (h *SnapshotHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identityID, err := id.ParseIdentityID(chi.URLParam(r, "identityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if snap, ok := h.cache.Get(ctx, identityID); ok {
		httputil.WriteJSON(w, http.StatusOK, snap)
		return
	}

	snap, err := h.build(ctx, identityID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.cache.Set(ctx, identityID, snap)
	httputil.WriteJSON(w, http.StatusOK, snap)
}

// build assembles the snapshot. The identity record is authoritative for
// existence; missing score or stake rows degrade to zero values rather
// than failing the read.
func (h *SnapshotHandler) build(ctx context.Context, identityID id.IdentityID) (*TrustSnapshot, error) {
	identity, err := h.identities.GetIdentity(ctx, identityID)
	if err != nil {
		return nil, err
	}

	snap := &TrustSnapshot{
		IdentityID:         identity.ID.String(),
		OwnerKey:           identity.OwnerKey.String(),
		DID:                identity.DID,
		VerificationBitmap: identity.VerificationBitmap,
		Score:              identity.ReputationScore,
		Tier:               string(reputationmodels.TierFor(identity.ReputationScore)),
		StakedAmount:       identity.StakedAmount,
		GeneratedAt:        time.Now().UTC(),
	}
	for _, t := range id.VerificationTypes() {
		if identity.HasVerification(t) {
			snap.Verifications = append(snap.Verifications, t.String())
		}
	}

	if score, err := h.scores.GetScore(ctx, identityID); err == nil {
		snap.Score = score.Value
		snap.Tier = string(score.Tier)
	} else if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		h.logger.WarnContext(ctx, "score lookup failed", "identity_id", identityID, "error", err)
	}

	if account, err := h.stakes.GetAccount(ctx, identity.OwnerKey); err == nil {
		snap.StakedAmount = account.StakedAmount
		snap.PendingUnstake = account.PendingUnstake
		snap.UnstakeRequestedAt = account.UnstakeRequestedAt
	} else if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		h.logger.WarnContext(ctx, "stake lookup failed", "owner", identity.OwnerKey, "error", err)
	}

	return snap, nil
}
