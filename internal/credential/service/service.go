package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"trustgrid/internal/credential/metrics"
	"trustgrid/internal/credential/models"
	id "trustgrid/pkg/domain"
	dErrors "trustgrid/pkg/domain-errors"
	"trustgrid/pkg/platform/audit"
	"trustgrid/pkg/platform/sentinel"
	"trustgrid/pkg/requestcontext"
)

// Store persists issuers and credentials. CreateCredential pairs the
// credential insert with the issuer's issuance counter atomically.
type Store interface {
	CreateIssuer(ctx context.Context, issuer *models.Issuer) error
	FindIssuer(ctx context.Context, key id.Key) (*models.Issuer, error)
	MutateIssuer(ctx context.Context, key id.Key, fn func(*models.Issuer) error) (*models.Issuer, error)
	CreateCredential(ctx context.Context, cred *models.Credential) error
	FindCredential(ctx context.Context, credentialID id.CredentialID) (*models.Credential, error)
	MutateCredential(ctx context.Context, credentialID id.CredentialID, fn func(*models.Credential) error) (*models.Credential, error)
	ListByHolder(ctx context.Context, holder id.IdentityID) ([]*models.Credential, error)
}

// IdentityDirectory answers whether a holder identity exists.
type IdentityDirectory interface {
	Exists(ctx context.Context, identityID id.IdentityID) error
}

// ReputationRecorder feeds issuance and revocation into the score.
type ReputationRecorder interface {
	RecordCredentialIssued(ctx context.Context, identityID id.IdentityID) error
	RecordCredentialRevoked(ctx context.Context, identityID id.IdentityID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store      Store
	identities IdentityDirectory
	reputation ReputationRecorder
	adminKey   id.Key
	logger     *slog.Logger
	auditor    AuditPublisher
	tracer     trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(pub AuditPublisher) Option {
	return func(s *Service) { s.auditor = pub }
}

func WithReputationRecorder(rec ReputationRecorder) Option {
	return func(s *Service) { s.reputation = rec }
}

func New(store Store, identities IdentityDirectory, adminKey id.Key, opts ...Option) *Service {
	s := &Service{
		store:      store,
		identities: identities,
		adminKey:   adminKey,
		logger:     slog.Default(),
		tracer:     otel.Tracer("trustgrid/credential"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterIssuer admits an issuing organization. Admin only.
func (s *Service) RegisterIssuer(ctx context.Context, key id.Key, name, did string) (*models.Issuer, error) {
	ctx, span := s.tracer.Start(ctx, "credential.RegisterIssuer")
	defer span.End()

	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	issuer, err := models.NewIssuer(key, name, did, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateIssuer(ctx, issuer); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			return nil, dErrors.New(dErrors.CodeConflict, "issuer already registered for this key")
		}
		return nil, translate(err)
	}
	metrics.IssuersRegistered.Inc()
	s.logAudit(ctx, audit.EventIssuerRegistered, id.IdentityID{}, string(key), name)
	s.logger.InfoContext(ctx, "issuer registered", "issuer", key, "name", name)
	return issuer, nil
}

// RevokeIssuer bars an issuer from further issuance. Its existing
// credentials stay valid until revoked individually.
func (s *Service) RevokeIssuer(ctx context.Context, key id.Key) (*models.Issuer, error) {
	ctx, span := s.tracer.Start(ctx, "credential.RevokeIssuer")
	defer span.End()

	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	issuer, err := s.store.MutateIssuer(ctx, key, func(i *models.Issuer) error {
		return i.ApplyRevocation(now)
	})
	if err != nil {
		return nil, translate(err)
	}
	s.logAudit(ctx, audit.EventIssuerRevoked, id.IdentityID{}, string(key), "")
	s.logger.InfoContext(ctx, "issuer revoked", "issuer", key)
	return issuer, nil
}

// IssueCredential attests a claim about a holder. The caller must be an
// active registered issuer and the holder identity must exist.
func (s *Service) IssueCredential(ctx context.Context, holder id.IdentityID, credentialType, metadataURI, proofURI string, expiresAt time.Time) (*models.Credential, error) {
	ctx, span := s.tracer.Start(ctx, "credential.IssueCredential")
	defer span.End()

	issuerKey := requestcontext.CallerKey(ctx)
	issuer, err := s.store.FindIssuer(ctx, issuerKey)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeForbidden, "caller is not a registered issuer")
		}
		return nil, translate(err)
	}
	if err := issuer.CanIssue(); err != nil {
		return nil, err
	}
	if s.identities != nil {
		if err := s.identities.Exists(ctx, holder); err != nil {
			return nil, translate(err)
		}
	}
	now := requestcontext.Now(ctx)
	cred, err := models.NewCredential(issuerKey, holder, credentialType, metadataURI, proofURI, expiresAt, now)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateCredential(ctx, cred); err != nil {
		return nil, translate(err)
	}
	if s.reputation != nil {
		if err := s.reputation.RecordCredentialIssued(ctx, holder); err != nil {
			s.logger.ErrorContext(ctx, "reputation update failed", "identity_id", holder, "error", err)
		}
	}
	metrics.CredentialsIssued.WithLabelValues(credentialType).Inc()
	s.logAudit(ctx, audit.EventCredentialIssued, holder, string(issuerKey), credentialType)
	s.logger.InfoContext(ctx, "credential issued",
		"credential_id", cred.ID, "holder", holder, "type", credentialType)
	return cred, nil
}

// RevokeCredential withdraws an attestation. Only the issuing key may
// revoke, and only once; the holder takes the reputation penalty.
func (s *Service) RevokeCredential(ctx context.Context, credentialID id.CredentialID) (*models.Credential, error) {
	ctx, span := s.tracer.Start(ctx, "credential.RevokeCredential")
	defer span.End()

	caller := requestcontext.CallerKey(ctx)
	now := requestcontext.Now(ctx)
	cred, err := s.store.MutateCredential(ctx, credentialID, func(c *models.Credential) error {
		if c.Issuer != caller {
			return dErrors.New(dErrors.CodeForbidden, "caller did not issue this credential")
		}
		return c.ApplyRevocation(now)
	})
	if err != nil {
		return nil, translate(err)
	}
	if s.reputation != nil {
		if err := s.reputation.RecordCredentialRevoked(ctx, cred.Holder); err != nil {
			s.logger.ErrorContext(ctx, "reputation update failed", "identity_id", cred.Holder, "error", err)
		}
	}
	metrics.CredentialsRevoked.Inc()
	s.logAudit(ctx, audit.EventCredentialRevoked, cred.Holder, string(caller), cred.Type)
	s.logger.InfoContext(ctx, "credential revoked", "credential_id", credentialID, "holder", cred.Holder)
	return cred, nil
}

func (s *Service) GetCredential(ctx context.Context, credentialID id.CredentialID) (*models.Credential, error) {
	cred, err := s.store.FindCredential(ctx, credentialID)
	if err != nil {
		return nil, translate(err)
	}
	return cred, nil
}

func (s *Service) GetIssuer(ctx context.Context, key id.Key) (*models.Issuer, error) {
	issuer, err := s.store.FindIssuer(ctx, key)
	if err != nil {
		return nil, translate(err)
	}
	return issuer, nil
}

func (s *Service) ListHolderCredentials(ctx context.Context, holder id.IdentityID) ([]*models.Credential, error) {
	creds, err := s.store.ListByHolder(ctx, holder)
	if err != nil {
		return nil, translate(err)
	}
	return creds, nil
}

func (s *Service) requireAdmin(ctx context.Context) error {
	if requestcontext.CallerKey(ctx) != s.adminKey {
		return dErrors.New(dErrors.CodeForbidden, "caller is not the credential admin")
	}
	return nil
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
		return dErrors.Wrap(err, dErrors.CodeInternal, "credential store failure")
	}
}
