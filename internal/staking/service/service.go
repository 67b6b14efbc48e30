package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	stakemetrics "trustgrid/internal/staking/metrics"
	"trustgrid/internal/staking/models"
	id "trustgrid/pkg/domain"
	dErrors "trustgrid/pkg/domain-errors"
	"trustgrid/pkg/platform/audit"
	"trustgrid/pkg/platform/sentinel"
	"trustgrid/pkg/requestcontext"
)

// Store persists the pool and stake accounts. MutateAccount must hand the
// account and pool to the callback inside one atomic step so balance and
// pool-total changes land together.
type Store interface {
	CreatePool(ctx context.Context, pool *models.Pool) error
	GetPool(ctx context.Context) (*models.Pool, error)
	MutatePool(ctx context.Context, fn func(*models.Pool) error) (*models.Pool, error)
	FindAccount(ctx context.Context, owner id.Key) (*models.StakeAccount, error)
	MutateAccount(ctx context.Context, owner id.Key, create bool, fn func(*models.StakeAccount, *models.Pool) error) (*models.StakeAccount, error)
}

// IdentityNotifier keeps the identity record's staked-amount snapshot in
// step with the account balance. Participants without an identity record
// (pure oracle operators) are simply skipped.
type IdentityNotifier interface {
	UpdateStakeSnapshot(ctx context.Context, owner id.Key, staked uint64) error
}

// ReputationRecorder emits staking-driven reputation events.
type ReputationRecorder interface {
	RecordStakeDeposited(ctx context.Context, owner id.Key) error
	RecordStakeSlashed(ctx context.Context, owner id.Key) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service manages the collateral lifecycle: deposits, the unstake cooldown
// state machine, and slashing.
type Service struct {
	store      Store
	admin      id.Key
	slasher    id.Key
	identities IdentityNotifier
	reputation ReputationRecorder
	logger     *slog.Logger
	auditPub   AuditPublisher
	metrics    *stakemetrics.Metrics
	tracer     trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(pub AuditPublisher) Option {
	return func(s *Service) { s.auditPub = pub }
}

func WithMetrics(m *stakemetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithIdentityNotifier(n IdentityNotifier) Option {
	return func(s *Service) { s.identities = n }
}

func WithReputationRecorder(r ReputationRecorder) Option {
	return func(s *Service) { s.reputation = r }
}

// WithSlasher authorizes a key (the oracle dispute authority) to call Slash
// in addition to the admin.
func WithSlasher(key id.Key) Option {
	return func(s *Service) { s.slasher = key }
}

func New(store Store, admin id.Key, opts ...Option) *Service {
	s := &Service{
		store:  store,
		admin:  admin,
		tracer: otel.Tracer("trustgrid/staking"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InitializePool creates the singleton pool. Admin-only, one-time.
func (s *Service) InitializePool(ctx context.Context, caller id.Key, minStake, rewardRateBps uint64, cooldown time.Duration) (*models.Pool, error) {
	ctx, span := s.tracer.Start(ctx, "staking.InitializePool")
	defer span.End()

	if err := s.requireAdmin(caller); err != nil {
		return nil, err
	}
	pool, err := models.NewPool(caller, minStake, rewardRateBps, cooldown, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.CreatePool(ctx, pool); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			return nil, dErrors.New(dErrors.CodeConflict, "staking pool already initialized")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create staking pool")
	}
	s.setTotalStaked(0)
	return pool, nil
}

// Stake credits a deposit to the caller's account and the pool total.
// The transfer of liquid funds into custody is the host runtime's concern;
// this records the accounting and enforces the minimum.
func (s *Service) Stake(ctx context.Context, owner id.Key, amount uint64) (*models.StakeAccount, error) {
	ctx, span := s.tracer.Start(ctx, "staking.Stake")
	defer span.End()

	now := requestcontext.Now(ctx)
	account, err := s.store.MutateAccount(ctx, owner, true, func(a *models.StakeAccount, p *models.Pool) error {
		if p.Paused {
			return dErrors.NewReason(dErrors.CodeFailedPrecondition, dErrors.ReasonPoolPaused,
				"pool is paused")
		}
		if amount < p.MinStake {
			return dErrors.NewReason(dErrors.CodeFailedPrecondition, dErrors.ReasonInsufficientStakeAmount,
				"stake amount is below the pool minimum")
		}
		a.ApplyStake(amount, now)
		p.TotalStaked += amount
		p.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, s.translate(err, "failed to stake")
	}

	s.notifyStakeSnapshot(ctx, owner, account.StakedAmount)
	if s.reputation != nil {
		if repErr := s.reputation.RecordStakeDeposited(ctx, owner); repErr != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "stake reputation event failed", "owner", owner.String(), "error", repErr)
		}
	}
	if s.metrics != nil {
		s.metrics.Stakes.Inc()
	}
	s.refreshTotalStaked(ctx)
	s.logAudit(ctx, owner, audit.EventStakeDeposited, "", "amount", amount, "balance", account.StakedAmount)
	return account, nil
}

// RequestUnstake starts the cooldown for a withdrawal. At most one request
// can be pending; a new one requires the previous to complete or cancel.
func (s *Service) RequestUnstake(ctx context.Context, owner id.Key, amount uint64) (*models.StakeAccount, error) {
	ctx, span := s.tracer.Start(ctx, "staking.RequestUnstake")
	defer span.End()

	now := requestcontext.Now(ctx)
	account, err := s.store.MutateAccount(ctx, owner, false, func(a *models.StakeAccount, p *models.Pool) error {
		if p.Paused {
			return dErrors.NewReason(dErrors.CodeFailedPrecondition, dErrors.ReasonPoolPaused,
				"pool is paused")
		}
		if err := a.CanRequestUnstake(amount); err != nil {
			return err
		}
		a.ApplyUnstakeRequest(amount, now)
		return nil
	})
	if err != nil {
		return nil, s.translate(err, "failed to request unstake")
	}

	if s.metrics != nil {
		s.metrics.UnstakeRequests.Inc()
	}
	s.logAudit(ctx, owner, audit.EventUnstakeRequested, "", "amount", amount)
	return account, nil
}

// CompleteUnstake releases the pending amount once the cooldown has elapsed.
// The release is clamped to the current balance, so a slash that landed after
// the request shrinks what comes out. Deliberately not blocked by a pause:
// already-committed exits are never frozen.
func (s *Service) CompleteUnstake(ctx context.Context, owner id.Key) (*models.StakeAccount, uint64, error) {
	ctx, span := s.tracer.Start(ctx, "staking.CompleteUnstake")
	defer span.End()

	now := requestcontext.Now(ctx)
	var released uint64
	account, err := s.store.MutateAccount(ctx, owner, false, func(a *models.StakeAccount, p *models.Pool) error {
		if err := a.CanCompleteUnstake(p.UnstakeCooldown, now); err != nil {
			return err
		}
		released = a.ApplyUnstakeCompletion(now)
		p.TotalStaked -= released
		p.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, 0, s.translate(err, "failed to complete unstake")
	}

	s.notifyStakeSnapshot(ctx, owner, account.StakedAmount)
	if s.metrics != nil {
		s.metrics.UnstakesComplete.Inc()
	}
	s.refreshTotalStaked(ctx)
	s.logAudit(ctx, owner, audit.EventUnstakeCompleted, "", "released", released, "balance", account.StakedAmount)
	return account, released, nil
}

// CancelUnstake abandons a pending request without moving funds.
func (s *Service) CancelUnstake(ctx context.Context, owner id.Key) (*models.StakeAccount, error) {
	ctx, span := s.tracer.Start(ctx, "staking.CancelUnstake")
	defer span.End()

	now := requestcontext.Now(ctx)
	account, err := s.store.MutateAccount(ctx, owner, false, func(a *models.StakeAccount, p *models.Pool) error {
		return a.ApplyUnstakeCancellation(now)
	})
	if err != nil {
		return nil, s.translate(err, "failed to cancel unstake")
	}
	s.logAudit(ctx, owner, audit.EventUnstakeCancelled, "")
	return account, nil
}

// Slash removes up to amount from the account, flooring at zero. Only the
// configured slasher (the oracle dispute authority) or the admin may call it.
// A pending unstake request survives; completion re-validates the balance.
func (s *Service) Slash(ctx context.Context, caller id.Key, owner id.Key, amount uint64, reason string) (*models.StakeAccount, uint64, error) {
	ctx, span := s.tracer.Start(ctx, "staking.Slash")
	defer span.End()

	if caller != s.admin && (s.slasher.IsZero() || caller != s.slasher) {
		return nil, 0, dErrors.New(dErrors.CodeForbidden, "caller is not authorized to slash")
	}
	if amount == 0 {
		return nil, 0, dErrors.New(dErrors.CodeValidation, "slash amount must be positive")
	}

	now := requestcontext.Now(ctx)
	var slashed uint64
	account, err := s.store.MutateAccount(ctx, owner, false, func(a *models.StakeAccount, p *models.Pool) error {
		slashed = a.ApplySlash(amount, now)
		p.TotalStaked -= slashed
		p.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, 0, s.translate(err, "failed to slash")
	}

	s.notifyStakeSnapshot(ctx, owner, account.StakedAmount)
	if s.reputation != nil {
		if repErr := s.reputation.RecordStakeSlashed(ctx, owner); repErr != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "slash reputation event failed", "owner", owner.String(), "error", repErr)
		}
	}
	if s.metrics != nil {
		s.metrics.Slashes.Inc()
	}
	s.refreshTotalStaked(ctx)
	s.logAudit(ctx, owner, audit.EventStakeSlashed, reason, "requested", amount, "slashed", slashed, "balance", account.StakedAmount)
	return account, slashed, nil
}

// AccrueRewards credits epochs worth of rewards at the pool rate.
func (s *Service) AccrueRewards(ctx context.Context, owner id.Key, epochs uint64) (*models.StakeAccount, error) {
	ctx, span := s.tracer.Start(ctx, "staking.AccrueRewards")
	defer span.End()

	if epochs == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "epochs must be positive")
	}
	now := requestcontext.Now(ctx)
	account, err := s.store.MutateAccount(ctx, owner, false, func(a *models.StakeAccount, p *models.Pool) error {
		a.ApplyRewardAccrual(epochs, p.RewardRateBps, now)
		return nil
	})
	if err != nil {
		return nil, s.translate(err, "failed to accrue rewards")
	}
	return account, nil
}

// UpdatePoolConfig applies admin changes. Records created before the change
// keep the thresholds they copied at creation.
func (s *Service) UpdatePoolConfig(ctx context.Context, caller id.Key, update models.PoolConfigUpdate) (*models.Pool, error) {
	ctx, span := s.tracer.Start(ctx, "staking.UpdatePoolConfig")
	defer span.End()

	if err := s.requireAdmin(caller); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	pool, err := s.store.MutatePool(ctx, func(p *models.Pool) error {
		return p.ApplyConfigUpdate(update, now)
	})
	if err != nil {
		return nil, s.translate(err, "failed to update pool config")
	}
	return pool, nil
}

// SetPoolPaused flips deposit acceptance. complete_unstake stays available.
func (s *Service) SetPoolPaused(ctx context.Context, caller id.Key, paused bool) (*models.Pool, error) {
	ctx, span := s.tracer.Start(ctx, "staking.SetPoolPaused")
	defer span.End()

	if err := s.requireAdmin(caller); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	pool, err := s.store.MutatePool(ctx, func(p *models.Pool) error {
		p.SetPaused(paused, now)
		return nil
	})
	if err != nil {
		return nil, s.translate(err, "failed to set pool paused")
	}
	return pool, nil
}

// GetPool returns the pool configuration and totals.
func (s *Service) GetPool(ctx context.Context) (*models.Pool, error) {
	pool, err := s.store.GetPool(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "staking pool not initialized")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pool")
	}
	return pool, nil
}

// GetAccount returns a participant's stake account.
func (s *Service) GetAccount(ctx context.Context, owner id.Key) (*models.StakeAccount, error) {
	account, err := s.store.FindAccount(ctx, owner)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "stake account not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load stake account")
	}
	return account, nil
}

func (s *Service) requireAdmin(caller id.Key) error {
	if caller != s.admin {
		return dErrors.New(dErrors.CodeForbidden, "caller is not the pool admin")
	}
	return nil
}

// translate maps store sentinels and passes coded errors through unchanged.
func (s *Service) translate(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "stake account or pool not found")
	}
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func (s *Service) notifyStakeSnapshot(ctx context.Context, owner id.Key, staked uint64) {
	if s.identities == nil {
		return
	}
	if err := s.identities.UpdateStakeSnapshot(ctx, owner, staked); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "identity stake snapshot update failed",
			"owner", owner.String(),
			"error", err,
		)
	}
}

func (s *Service) setTotalStaked(v uint64) {
	if s.metrics != nil {
		s.metrics.TotalStaked.Set(float64(v))
	}
}

func (s *Service) refreshTotalStaked(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	if pool, err := s.store.GetPool(ctx); err == nil {
		s.metrics.TotalStaked.Set(float64(pool.TotalStaked))
	}
}

func (s *Service) logAudit(ctx context.Context, owner id.Key, action audit.AuditEvent, reason string, attributes ...any) {
	args := append(attributes, "event", string(action), "owner", owner.String(), "log_type", "audit")
	event := audit.Event{Actor: owner, Action: string(action), Reason: reason}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		event.RequestID = requestID
		args = append(args, "request_id", requestID)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(action), args...)
	}
	if s.auditPub == nil {
		return
	}
	if err := s.auditPub.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}
