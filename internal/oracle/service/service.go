package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	oraclemetrics "trustgrid/internal/oracle/metrics"
	"trustgrid/internal/oracle/models"
	id "trustgrid/pkg/domain"
	dErrors "trustgrid/pkg/domain-errors"
	"trustgrid/pkg/platform/audit"
	"trustgrid/pkg/platform/sentinel"
	"trustgrid/pkg/requestcontext"
)

// Store is the persistence surface for the oracle network. CreateNode and
// MutateNode pair node changes with the active-oracle counter atomically;
// MutateRequest serializes vote application against the tally.
type Store interface {
	CreateConfig(ctx context.Context, cfg *models.Config) error
	GetConfig(ctx context.Context) (*models.Config, error)
	MutateConfig(ctx context.Context, fn func(*models.Config) error) (*models.Config, error)
	FindNode(ctx context.Context, authority id.Key) (*models.Node, error)
	CreateNode(ctx context.Context, node *models.Node) error
	MutateNode(ctx context.Context, authority id.Key, fn func(*models.Node, *models.Config) error) (*models.Node, error)
	FindRequest(ctx context.Context, requestID id.RequestID) (*models.Request, error)
	CreateRequest(ctx context.Context, req *models.Request) error
	MutateRequest(ctx context.Context, requestID id.RequestID, fn func(*models.Request) error) (*models.Request, error)
	ListPendingRequests(ctx context.Context) ([]*models.Request, error)
}

// StakeBalances reports active stake for oracle registration checks.
type StakeBalances interface {
	StakedAmount(ctx context.Context, owner id.Key) (uint64, error)
}

// IdentityRegistry is the identity module's surface as the oracle sees it.
type IdentityRegistry interface {
	Exists(ctx context.Context, identityID id.IdentityID) error
	SetVerificationBit(ctx context.Context, identityID id.IdentityID, verificationType id.VerificationType, set bool) error
}

// ReputationRecorder feeds verification outcomes into the score.
type ReputationRecorder interface {
	RecordVerificationCompleted(ctx context.Context, identityID id.IdentityID) error
	RecordVerificationFailed(ctx context.Context, identityID id.IdentityID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store      Store
	stakes     StakeBalances
	identities IdentityRegistry
	reputation ReputationRecorder
	adminKey   id.Key
	logger     *slog.Logger
	auditor    AuditPublisher
	metrics    *oraclemetrics.Metrics
	tracer     trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(pub AuditPublisher) Option {
	return func(s *Service) { s.auditor = pub }
}

func WithIdentityRegistry(reg IdentityRegistry) Option {
	return func(s *Service) { s.identities = reg }
}

func WithReputationRecorder(rec ReputationRecorder) Option {
	return func(s *Service) { s.reputation = rec }
}

func WithMetrics(m *oraclemetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(store Store, stakes StakeBalances, adminKey id.Key, opts ...Option) *Service {
	s := &Service{
		store:    store,
		stakes:   stakes,
		adminKey: adminKey,
		logger:   slog.Default(),
		tracer:   otel.Tracer("trustgrid/oracle"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InitializeConfig bootstraps the oracle network. Admin only, once.
func (s *Service) InitializeConfig(ctx context.Context, minOracleStake uint64, requiredConfirmations uint32, timeout time.Duration, fee uint64) (*models.Config, error) {
	ctx, span := s.tracer.Start(ctx, "oracle.InitializeConfig")
	defer span.End()

	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	cfg, err := models.NewConfig(s.adminKey, minOracleStake, requiredConfirmations, timeout, fee, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateConfig(ctx, cfg); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			return nil, dErrors.New(dErrors.CodeConflict, "oracle config already initialized")
		}
		return nil, translate(err)
	}
	return cfg, nil
}

// UpdateConfig changes governance parameters. In-flight requests keep
// their frozen thresholds.
func (s *Service) UpdateConfig(ctx context.Context, update models.ConfigUpdate) (*models.Config, error) {
	ctx, span := s.tracer.Start(ctx, "oracle.UpdateConfig")
	defer span.End()

	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	cfg, err := s.store.MutateConfig(ctx, func(c *models.Config) error {
		return c.ApplyUpdate(update, now)
	})
	if err != nil {
		return nil, translate(err)
	}
	s.logger.InfoContext(ctx, "oracle config updated", "version", cfg.Version)
	return cfg, nil
}

// RegisterOracle admits an operator into the eligible voter set. The
// caller must be the authority and the backing stake account must hold at
// least the configured minimum.
func (s *Service) RegisterOracle(ctx context.Context, authority, stakeOwner id.Key) (*models.Node, error) {
	ctx, span := s.tracer.Start(ctx, "oracle.RegisterOracle")
	defer span.End()

	if requestcontext.CallerKey(ctx) != authority {
		return nil, dErrors.New(dErrors.CodeForbidden, "caller is not the oracle authority")
	}
	cfg, err := s.store.GetConfig(ctx)
	if err != nil {
		return nil, translate(err)
	}
	staked, err := s.stakes.StakedAmount(ctx, stakeOwner)
	if err != nil {
		return nil, translate(err)
	}
	if staked < cfg.MinOracleStake {
		return nil, dErrors.NewReason(dErrors.CodeFailedPrecondition, dErrors.ReasonInsufficientOracleStake, "stake below oracle minimum")
	}
	node, err := models.NewNode(authority, stakeOwner, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateNode(ctx, node); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			return nil, dErrors.New(dErrors.CodeConflict, "oracle already registered for this authority")
		}
		return nil, translate(err)
	}
	s.refreshActiveGauge(ctx)
	s.logAudit(ctx, audit.EventOracleRegistered, id.IdentityID{}, string(authority), "")
	s.logger.InfoContext(ctx, "oracle registered", "authority", authority)
	return node, nil
}

// DeregisterOracle removes an operator from the eligible set. Requests
// that froze their population before this still count the node.
func (s *Service) DeregisterOracle(ctx context.Context, authority id.Key) (*models.Node, error) {
	ctx, span := s.tracer.Start(ctx, "oracle.DeregisterOracle")
	defer span.End()

	caller := requestcontext.CallerKey(ctx)
	if caller != authority && caller != s.adminKey {
		return nil, dErrors.New(dErrors.CodeForbidden, "caller may not deregister this oracle")
	}
	now := requestcontext.Now(ctx)
	node, err := s.store.MutateNode(ctx, authority, func(n *models.Node, cfg *models.Config) error {
		if err := n.ApplyDeactivation(now); err != nil {
			return err
		}
		if cfg.ActiveOracleCount > 0 {
			cfg.ActiveOracleCount--
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	s.refreshActiveGauge(ctx)
	s.logAudit(ctx, audit.EventOracleDeregistered, id.IdentityID{}, string(authority), "")
	s.logger.InfoContext(ctx, "oracle deregistered", "authority", authority)
	return node, nil
}

// RequestVerification opens a voting round for an identity and type. The
// round copies the current thresholds and eligible population, and the
// verification fee is accounted to the vault.
func (s *Service) RequestVerification(ctx context.Context, identityID id.IdentityID, verificationType id.VerificationType, evidence models.EvidenceHash) (*models.Request, error) {
	ctx, span := s.tracer.Start(ctx, "oracle.RequestVerification")
	defer span.End()

	if s.identities != nil {
		if err := s.identities.Exists(ctx, identityID); err != nil {
			return nil, translate(err)
		}
	}
	cfg, err := s.store.GetConfig(ctx)
	if err != nil {
		return nil, translate(err)
	}
	req, err := models.NewRequest(identityID, verificationType, evidence, cfg, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateRequest(ctx, req); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			return nil, dErrors.New(dErrors.CodeConflict, "a pending request already exists for this identity and type")
		}
		return nil, translate(err)
	}
	if _, err := s.store.MutateConfig(ctx, func(c *models.Config) error {
		c.FeesCollected += req.Fee
		return nil
	}); err != nil {
		s.logger.ErrorContext(ctx, "fee accounting failed", "request_id", req.ID, "error", err)
	}
	if s.metrics != nil {
		s.metrics.RequestsOpened.Inc()
	}
	s.logAudit(ctx, audit.EventVerificationRequested, identityID, verificationType.String(), "")
	s.logger.InfoContext(ctx, "verification requested",
		"request_id", req.ID, "identity_id", identityID, "type", verificationType)
	return req, nil
}

// SubmitVote records one oracle's verdict. A vote against a request whose
// timeout has elapsed transitions it to expired instead; the vote is
// rejected and no tally moves.
func (s *Service) SubmitVote(ctx context.Context, requestID id.RequestID, choice models.VoteChoice) (*models.Request, error) {
	ctx, span := s.tracer.Start(ctx, "oracle.SubmitVote")
	defer span.End()

	authority := requestcontext.CallerKey(ctx)
	node, err := s.store.FindNode(ctx, authority)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.NewReason(dErrors.CodeFailedPrecondition, dErrors.ReasonOracleNotActive, "caller is not a registered oracle")
		}
		return nil, translate(err)
	}
	if !node.IsActive() {
		return nil, dErrors.NewReason(dErrors.CodeFailedPrecondition, dErrors.ReasonOracleNotActive, "oracle node is not active")
	}

	now := requestcontext.Now(ctx)
	var expired bool
	req, err := s.store.MutateRequest(ctx, requestID, func(r *models.Request) error {
		if !r.Status.IsTerminal() && r.IsExpired(now) {
			expired = true
			return r.ApplyExpiry(now)
		}
		_, err := r.ApplyVote(authority, choice, now)
		return err
	})
	if err != nil {
		return nil, translate(err)
	}
	if expired {
		s.onExpired(ctx, req)
		return nil, dErrors.NewReason(dErrors.CodeFailedPrecondition, dErrors.ReasonRequestExpired, "verification request has expired")
	}

	if _, err := s.store.MutateNode(ctx, authority, func(n *models.Node, _ *models.Config) error {
		n.RecordVote(now)
		return nil
	}); err != nil {
		s.logger.WarnContext(ctx, "vote bookkeeping failed", "authority", authority, "error", err)
	}
	if s.metrics != nil {
		s.metrics.VotesSubmitted.WithLabelValues(string(choice)).Inc()
	}
	s.logAudit(ctx, audit.EventVoteSubmitted, req.IdentityID, string(authority), string(choice))

	switch req.Status {
	case models.RequestStatusConfirmed:
		s.onConfirmed(ctx, req)
	case models.RequestStatusRejected:
		s.onRejected(ctx, req)
	}
	return req, nil
}

// ExpireStaleRequests sweeps pending requests past their timeout. Anyone
// may call it; it returns how many requests it closed.
func (s *Service) ExpireStaleRequests(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "oracle.ExpireStaleRequests")
	defer span.End()

	pending, err := s.store.ListPendingRequests(ctx)
	if err != nil {
		return 0, translate(err)
	}
	now := requestcontext.Now(ctx)
	var closed int
	for _, req := range pending {
		if !req.IsExpired(now) {
			continue
		}
		updated, err := s.store.MutateRequest(ctx, req.ID, func(r *models.Request) error {
			return r.ApplyExpiry(now)
		})
		if err != nil {
			// Another caller may have closed it first.
			if dErrors.HasReason(err, dErrors.ReasonRequestNotPending) {
				continue
			}
			return closed, translate(err)
		}
		s.onExpired(ctx, updated)
		closed++
	}
	return closed, nil
}

func (s *Service) GetRequest(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	req, err := s.store.FindRequest(ctx, requestID)
	if err != nil {
		return nil, translate(err)
	}
	return req, nil
}

func (s *Service) GetNode(ctx context.Context, authority id.Key) (*models.Node, error) {
	node, err := s.store.FindNode(ctx, authority)
	if err != nil {
		return nil, translate(err)
	}
	return node, nil
}

func (s *Service) GetConfig(ctx context.Context) (*models.Config, error) {
	cfg, err := s.store.GetConfig(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return cfg, nil
}

func (s *Service) onConfirmed(ctx context.Context, req *models.Request) {
	if s.identities != nil {
		if err := s.identities.SetVerificationBit(ctx, req.IdentityID, req.Type, true); err != nil {
			s.logger.ErrorContext(ctx, "verification bit update failed",
				"identity_id", req.IdentityID, "type", req.Type, "error", err)
		}
	}
	if s.reputation != nil {
		if err := s.reputation.RecordVerificationCompleted(ctx, req.IdentityID); err != nil {
			s.logger.ErrorContext(ctx, "reputation update failed", "identity_id", req.IdentityID, "error", err)
		}
	}
	s.creditAccurateVoters(ctx, req, models.VoteConfirm)
	s.observeFinalized(models.RequestStatusConfirmed)
	s.logAudit(ctx, audit.EventVerificationConfirmed, req.IdentityID, req.Type.String(), "")
	s.logger.InfoContext(ctx, "verification confirmed", "request_id", req.ID, "identity_id", req.IdentityID)
}

func (s *Service) onRejected(ctx context.Context, req *models.Request) {
	if s.reputation != nil {
		if err := s.reputation.RecordVerificationFailed(ctx, req.IdentityID); err != nil {
			s.logger.ErrorContext(ctx, "reputation update failed", "identity_id", req.IdentityID, "error", err)
		}
	}
	s.observeFinalized(models.RequestStatusRejected)
	s.creditAccurateVoters(ctx, req, models.VoteReject)
	s.logAudit(ctx, audit.EventVerificationRejected, req.IdentityID, req.Type.String(), "")
	s.logger.InfoContext(ctx, "verification rejected", "request_id", req.ID, "identity_id", req.IdentityID)
}

// creditAccurateVoters bumps the accuracy counter of every node whose vote
// matched the final outcome.
func (s *Service) creditAccurateVoters(ctx context.Context, req *models.Request, winning models.VoteChoice) {
	now := requestcontext.Now(ctx)
	for authority, choice := range req.Votes {
		if choice != winning {
			continue
		}
		if _, err := s.store.MutateNode(ctx, authority, func(n *models.Node, _ *models.Config) error {
			n.RecordAccuracy(now)
			return nil
		}); err != nil {
			s.logger.WarnContext(ctx, "accuracy bookkeeping failed", "authority", authority, "error", err)
		}
	}
}

// onExpired closes the books on a timed-out request. Expiry carries no
// reputation signal; the identity simply never got verified.
func (s *Service) onExpired(ctx context.Context, req *models.Request) {
	s.observeFinalized(models.RequestStatusExpired)
	s.logAudit(ctx, audit.EventVerificationExpired, req.IdentityID, req.Type.String(), "")
	s.logger.InfoContext(ctx, "verification expired", "request_id", req.ID, "identity_id", req.IdentityID)
}

func (s *Service) requireAdmin(ctx context.Context) error {
	if requestcontext.CallerKey(ctx) != s.adminKey {
		return dErrors.New(dErrors.CodeForbidden, "caller is not the oracle admin")
	}
	return nil
}

func (s *Service) observeFinalized(status models.RequestStatus) {
	if s.metrics != nil {
		s.metrics.RequestsFinalized.WithLabelValues(string(status)).Inc()
	}
}

func (s *Service) refreshActiveGauge(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	cfg, err := s.store.GetConfig(ctx)
	if err != nil {
		return
	}
	s.metrics.ActiveOracles.Set(float64(cfg.ActiveOracleCount))
}

func (s *Service) logAudit(ctx context.Context, action audit.AuditEvent, identityID id.IdentityID, actor, reason string) {
	if s.auditor == nil {
		return
	}
	event := audit.Event{
		Timestamp:  requestcontext.Now(ctx),
		IdentityID: identityID,
		Actor:      id.Key(actor),
		Action:     string(action),
		Reason:     reason,
		RequestID:  requestcontext.RequestID(ctx),
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "audit emit failed", "action", action, "error", err)
	}
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "resource not found")
	case errors.Is(err, sentinel.ErrAlreadyExists), errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "conflicting state")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "oracle store failure")
	}
}
