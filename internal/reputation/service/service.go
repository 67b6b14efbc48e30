package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	repmetrics "trustgrid/internal/reputation/metrics"
	"trustgrid/internal/reputation/models"
	id "trustgrid/pkg/domain"
	dErrors "trustgrid/pkg/domain-errors"
	"trustgrid/pkg/platform/audit"
	"trustgrid/pkg/platform/sentinel"
	"trustgrid/pkg/requestcontext"
)

// ScoreStore persists reputation scores. Mutate must apply the callback
// atomically with respect to other mutations of the same record.
type ScoreStore interface {
	Create(ctx context.Context, score *models.Score) error
	FindByIdentity(ctx context.Context, identityID id.IdentityID) (*models.Score, error)
	Mutate(ctx context.Context, identityID id.IdentityID, fn func(*models.Score) error) (*models.Score, error)
}

// IdentitySnapshots pushes the recomputed score back onto the identity
// record so its snapshot field tracks the engine.
type IdentitySnapshots interface {
	UpdateReputationSnapshot(ctx context.Context, identityID id.IdentityID, score int64) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the reputation engine: event-driven score adjustment with
// time decay and derived tiers.
type Service struct {
	scores    ScoreStore
	params    models.Params
	snapshots IdentitySnapshots
	logger    *slog.Logger
	auditPub  AuditPublisher
	metrics   *repmetrics.Metrics
	tracer    trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(pub AuditPublisher) Option {
	return func(s *Service) { s.auditPub = pub }
}

func WithMetrics(m *repmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithIdentitySnapshots(snap IdentitySnapshots) Option {
	return func(s *Service) { s.snapshots = snap }
}

func New(scores ScoreStore, params models.Params, opts ...Option) *Service {
	s := &Service{
		scores: scores,
		params: params,
		tracer: otel.Tracer("trustgrid/reputation"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InitializeScore creates the score record for an identity at the base
// score. One-time; a second call conflicts.
func (s *Service) InitializeScore(ctx context.Context, identityID id.IdentityID) (*models.Score, error) {
	ctx, span := s.tracer.Start(ctx, "reputation.InitializeScore")
	defer span.End()

	score, err := models.NewScore(identityID, s.params, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.scores.Create(ctx, score); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			return nil, dErrors.New(dErrors.CodeConflict, "score already initialized for identity")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create score")
	}
	return score, nil
}

// ApplyEvent adjusts the identity's score by the event's point delta and
// recomputes the tier. The identity snapshot is refreshed in the same call.
func (s *Service) ApplyEvent(ctx context.Context, identityID id.IdentityID, eventType models.EventType) (*models.Score, error) {
	ctx, span := s.tracer.Start(ctx, "reputation.ApplyEvent",
		trace.WithAttributes(attribute.String("event_type", eventType.String())))
	defer span.End()

	if !eventType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid event type")
	}

	now := requestcontext.Now(ctx)
	var previousTier models.Tier
	var delta int64
	score, err := s.scores.Mutate(ctx, identityID, func(sc *models.Score) error {
		previousTier = sc.Tier
		var applyErr error
		delta, applyErr = sc.ApplyEvent(eventType, s.params, now)
		return applyErr
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "score not initialized for identity")
		}
		var coded *dErrors.Error
		if errors.As(err, &coded) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply reputation event")
	}

	s.pushSnapshot(ctx, score)
	s.observeEvent(eventType, previousTier, score.Tier)
	s.logAudit(ctx, audit.Event{
		IdentityID: identityID,
		Action:     string(audit.EventReputationAdjusted),
		Reason:     eventType.String(),
	}, "delta", delta, "score", score.Value, "tier", string(score.Tier))

	return score, nil
}

// ApplyDecay reduces the score proportionally to the days elapsed since the
// last decay. Callers own the window arithmetic: pass days since LastDecayAt,
// not since creation, or decay double-bills.
func (s *Service) ApplyDecay(ctx context.Context, identityID id.IdentityID, daysElapsed int64) (*models.Score, error) {
	ctx, span := s.tracer.Start(ctx, "reputation.ApplyDecay",
		trace.WithAttributes(attribute.Int64("days_elapsed", daysElapsed)))
	defer span.End()

	now := requestcontext.Now(ctx)
	var decayed int64
	score, err := s.scores.Mutate(ctx, identityID, func(sc *models.Score) error {
		var decayErr error
		decayed, decayErr = sc.ApplyDecay(daysElapsed, s.params, now)
		return decayErr
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "score not initialized for identity")
		}
		var coded *dErrors.Error
		if errors.As(err, &coded) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply decay")
	}

	s.pushSnapshot(ctx, score)
	if s.metrics != nil {
		s.metrics.DecayApplied.Inc()
	}
	s.logAudit(ctx, audit.Event{
		IdentityID: identityID,
		Action:     string(audit.EventReputationDecayed),
	}, "decayed", decayed, "score", score.Value)

	return score, nil
}

// ChallengeReputation opens a dispute against an identity's score. Anyone
// may challenge; only resolution moves the score.
func (s *Service) ChallengeReputation(ctx context.Context, identityID id.IdentityID, reason, evidenceURI string) (*models.Score, error) {
	ctx, span := s.tracer.Start(ctx, "reputation.ChallengeReputation")
	defer span.End()

	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "challenge reason is required")
	}
	if len(reason) > models.MaxChallengeReasonLen {
		return nil, dErrors.New(dErrors.CodeValidation, "challenge reason exceeds maximum length")
	}
	if len(evidenceURI) > models.MaxChallengeURILen {
		return nil, dErrors.NewReason(dErrors.CodeValidation, dErrors.ReasonURITooLong, "evidence URI exceeds maximum length")
	}

	now := requestcontext.Now(ctx)
	score, err := s.scores.Mutate(ctx, identityID, func(sc *models.Score) error {
		sc.RecordChallenge(now)
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "score not initialized for identity")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record challenge")
	}

	if s.metrics != nil {
		s.metrics.ChallengesOpened.Inc()
	}
	s.logAudit(ctx, audit.Event{
		IdentityID: identityID,
		Actor:      requestcontext.CallerKey(ctx),
		Action:     string(audit.EventReputationChallenged),
		Reason:     reason,
	}, "evidence_uri", evidenceURI)

	return score, nil
}

// ResolveChallenge settles a dispute. A challenge the identity wins bumps
// its win counter; a lost one deducts the penalty and refreshes the
// identity snapshot.
func (s *Service) ResolveChallenge(ctx context.Context, identityID id.IdentityID, won bool, penalty int64) (*models.Score, error) {
	ctx, span := s.tracer.Start(ctx, "reputation.ResolveChallenge",
		trace.WithAttributes(attribute.Bool("won", won)))
	defer span.End()

	now := requestcontext.Now(ctx)
	score, err := s.scores.Mutate(ctx, identityID, func(sc *models.Score) error {
		return sc.ResolveChallenge(won, penalty, s.params, now)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "score not initialized for identity")
		}
		var coded *dErrors.Error
		if errors.As(err, &coded) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve challenge")
	}

	outcome := "lost"
	if won {
		outcome = "won"
	} else {
		s.pushSnapshot(ctx, score)
	}
	if s.metrics != nil {
		s.metrics.ChallengesResolved.WithLabelValues(outcome).Inc()
	}
	s.logAudit(ctx, audit.Event{
		IdentityID: identityID,
		Action:     string(audit.EventChallengeResolved),
		Reason:     outcome,
	}, "penalty", penalty, "score", score.Value)

	return score, nil
}

// GetScore returns the current score and tier.
func (s *Service) GetScore(ctx context.Context, identityID id.IdentityID) (*models.Score, error) {
	score, err := s.scores.FindByIdentity(ctx, identityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "score not initialized for identity")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load score")
	}
	return score, nil
}

func (s *Service) pushSnapshot(ctx context.Context, score *models.Score) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.UpdateReputationSnapshot(ctx, score.IdentityID, score.Value); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "identity snapshot update failed",
			"identity_id", score.IdentityID.String(),
			"error", err,
		)
	}
}

func (s *Service) observeEvent(eventType models.EventType, from, to models.Tier) {
	if s.metrics == nil {
		return
	}
	s.metrics.EventsApplied.WithLabelValues(eventType.String()).Inc()
	if from != to {
		s.metrics.TierTransitions.WithLabelValues(string(to)).Inc()
	}
}

func (s *Service) logAudit(ctx context.Context, event audit.Event, attributes ...any) {
	args := append(attributes, "event", event.Action, "log_type", "audit")
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		event.RequestID = requestID
		args = append(args, "request_id", requestID)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, event.Action, args...)
	}
	if s.auditPub == nil {
		return
	}
	if err := s.auditPub.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}
