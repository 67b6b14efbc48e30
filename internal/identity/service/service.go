package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	identitymetrics "trustgrid/internal/identity/metrics"
	"trustgrid/internal/identity/models"
	id "trustgrid/pkg/domain"
	dErrors "trustgrid/pkg/domain-errors"
	"trustgrid/pkg/platform/audit"
	"trustgrid/pkg/platform/sentinel"
	"trustgrid/pkg/requestcontext"
)

// IdentityStore persists identity records.
type IdentityStore interface {
	Create(ctx context.Context, identity *models.Identity) error
	FindByID(ctx context.Context, identityID id.IdentityID) (*models.Identity, error)
	FindByOwner(ctx context.Context, owner id.Key) (*models.Identity, error)
	Mutate(ctx context.Context, identityID id.IdentityID, fn func(*models.Identity) error) (*models.Identity, error)
}

// ScoreInitializer creates the reputation record when an identity is born so
// the registry and the engine never disagree about who has a score.
type ScoreInitializer interface {
	InitializeScore(ctx context.Context, identityID id.IdentityID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// SnapshotInvalidator drops cached read models when a record changes.
type SnapshotInvalidator interface {
	Invalidate(ctx context.Context, identityID id.IdentityID) error
}

// Service owns the canonical identity records and key recovery.
type Service struct {
	identities IdentityStore
	baseScore  int64
	scores     ScoreInitializer
	logger     *slog.Logger
	auditPub   AuditPublisher
	metrics    *identitymetrics.Metrics
	cache      SnapshotInvalidator
	tracer     trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(pub AuditPublisher) Option {
	return func(s *Service) { s.auditPub = pub }
}

func WithMetrics(m *identitymetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithScoreInitializer(init ScoreInitializer) Option {
	return func(s *Service) { s.scores = init }
}

func WithSnapshotInvalidator(cache SnapshotInvalidator) Option {
	return func(s *Service) { s.cache = cache }
}

// SetScoreInitializer attaches the reputation port after construction.
// Identity and reputation reference each other, so one side has to be
// wired late; call this before serving traffic.
func (s *Service) SetScoreInitializer(init ScoreInitializer) {
	s.scores = init
}

func New(identities IdentityStore, baseScore int64, opts ...Option) *Service {
	s := &Service{
		identities: identities,
		baseScore:  baseScore,
		tracer:     otel.Tracer("trustgrid/identity"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateIdentity allocates a record for the owner key. The ID derives from
// the key, so a second create for the same key conflicts rather than forking.
func (s *Service) CreateIdentity(ctx context.Context, ownerKey id.Key, did, metadataURI string, recoveryKeys []id.Key) (*models.Identity, error) {
	ctx, span := s.tracer.Start(ctx, "identity.CreateIdentity")
	defer span.End()

	identity, err := models.NewIdentity(ownerKey, did, metadataURI, recoveryKeys, s.baseScore, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			return nil, dErrors.New(dErrors.CodeConflict, "identity already exists for owner key")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create identity")
	}

	if s.scores != nil {
		if err := s.scores.InitializeScore(ctx, identity.ID); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "score initialization failed",
				"identity_id", identity.ID.String(), "error", err)
		}
	}
	if s.metrics != nil {
		s.metrics.IdentitiesCreated.Inc()
	}
	s.logAudit(ctx, identity.ID, ownerKey, audit.EventIdentityCreated, "", "did", did)
	return identity, nil
}

// AddRecoveryKey appends a recovery contact. Owner-signed.
func (s *Service) AddRecoveryKey(ctx context.Context, caller id.Key, identityID id.IdentityID, newKey id.Key) (*models.Identity, error) {
	ctx, span := s.tracer.Start(ctx, "identity.AddRecoveryKey")
	defer span.End()

	if newKey.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "recovery key cannot be empty")
	}
	now := requestcontext.Now(ctx)
	identity, err := s.identities.Mutate(ctx, identityID, func(i *models.Identity) error {
		if i.OwnerKey != caller {
			return dErrors.New(dErrors.CodeUnauthorized, "caller is not the identity owner")
		}
		if err := i.CanAddRecoveryKey(); err != nil {
			return err
		}
		i.ApplyRecoveryKey(newKey, now)
		return nil
	})
	if err != nil {
		return nil, s.translate(err, "failed to add recovery key")
	}
	s.logAudit(ctx, identityID, caller, audit.EventRecoveryKeyAdded, "")
	return identity, nil
}

// RecoverIdentity swaps the owner key on the authority of a recovery key.
// The recovery set survives unchanged; see the model for why.
func (s *Service) RecoverIdentity(ctx context.Context, recoverySigner id.Key, identityID id.IdentityID, newOwnerKey id.Key) (*models.Identity, error) {
	ctx, span := s.tracer.Start(ctx, "identity.RecoverIdentity")
	defer span.End()

	if newOwnerKey.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "new owner key cannot be empty")
	}
	now := requestcontext.Now(ctx)
	identity, err := s.identities.Mutate(ctx, identityID, func(i *models.Identity) error {
		if err := i.CanRecover(recoverySigner); err != nil {
			return err
		}
		i.ApplyRecovery(newOwnerKey, now)
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "new owner key already owns an identity")
		}
		return nil, s.translate(err, "failed to recover identity")
	}

	if s.metrics != nil {
		s.metrics.Recoveries.Inc()
	}
	s.invalidate(ctx, identityID)
	s.logAudit(ctx, identityID, recoverySigner, audit.EventIdentityRecovered, "")
	return identity, nil
}

// SetVerificationBit records a finalized verification outcome on the bitmap.
// Called by the oracle on finalization, not by external parties.
func (s *Service) SetVerificationBit(ctx context.Context, identityID id.IdentityID, t id.VerificationType, verified bool) error {
	ctx, span := s.tracer.Start(ctx, "identity.SetVerificationBit")
	defer span.End()

	now := requestcontext.Now(ctx)
	_, err := s.identities.Mutate(ctx, identityID, func(i *models.Identity) error {
		return i.SetVerificationBit(t, verified, now)
	})
	if err != nil {
		return s.translate(err, "failed to update verification bitmap")
	}
	s.invalidate(ctx, identityID)
	return nil
}

// UpdateReputationSnapshot mirrors the engine's score onto the record.
func (s *Service) UpdateReputationSnapshot(ctx context.Context, identityID id.IdentityID, score int64) error {
	now := requestcontext.Now(ctx)
	_, err := s.identities.Mutate(ctx, identityID, func(i *models.Identity) error {
		i.ReputationScore = score
		i.UpdatedAt = now
		return nil
	})
	if err != nil {
		return s.translate(err, "failed to update reputation snapshot")
	}
	s.invalidate(ctx, identityID)
	return nil
}

// UpdateStakeSnapshot mirrors the staking balance onto the record, looked up
// by owner key. Not every staker has an identity; that is not an error for
// the staking manager, so NotFound propagates as such and callers decide.
func (s *Service) UpdateStakeSnapshot(ctx context.Context, owner id.Key, staked uint64) error {
	identity, err := s.identities.FindByOwner(ctx, owner)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up identity by owner")
	}
	now := requestcontext.Now(ctx)
	_, err = s.identities.Mutate(ctx, identity.ID, func(i *models.Identity) error {
		i.StakedAmount = staked
		i.UpdatedAt = now
		return nil
	})
	if err != nil {
		return s.translate(err, "failed to update stake snapshot")
	}
	s.invalidate(ctx, identity.ID)
	return nil
}

// GetIdentity returns the record by ID.
func (s *Service) GetIdentity(ctx context.Context, identityID id.IdentityID) (*models.Identity, error) {
	identity, err := s.identities.FindByID(ctx, identityID)
	if err != nil {
		return nil, s.translate(err, "failed to load identity")
	}
	return identity, nil
}

// GetIdentityByOwner returns the record for an owner key.
func (s *Service) GetIdentityByOwner(ctx context.Context, owner id.Key) (*models.Identity, error) {
	identity, err := s.identities.FindByOwner(ctx, owner)
	if err != nil {
		return nil, s.translate(err, "failed to load identity")
	}
	return identity, nil
}

func (s *Service) invalidate(ctx context.Context, identityID id.IdentityID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, identityID); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "snapshot invalidation failed",
			"identity_id", identityID.String(), "error", err)
	}
}

func (s *Service) translate(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "identity not found")
	}
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func (s *Service) logAudit(ctx context.Context, identityID id.IdentityID, actor id.Key, action audit.AuditEvent, reason string, attributes ...any) {
	args := append(attributes,
		"event", string(action),
		"identity_id", identityID.String(),
		"log_type", "audit",
	)
	event := audit.Event{IdentityID: identityID, Actor: actor, Action: string(action), Reason: reason}
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
