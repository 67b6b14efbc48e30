package store

import (
	"context"
	"sync"

	"trustgrid/internal/credential/models"
	id "trustgrid/pkg/domain"
	"trustgrid/pkg/platform/sentinel"
)

// InMemory keeps issuers and credentials behind one lock so issuance and
// the issuer's counter move together.
type InMemory struct {
	mu          sync.Mutex
	issuers     map[id.Key]*models.Issuer
	credentials map[id.CredentialID]*models.Credential
}

func NewInMemory() *InMemory {
	return &InMemory{
		issuers:     make(map[id.Key]*models.Issuer),
		credentials: make(map[id.CredentialID]*models.Credential),
	}
}

func (s *InMemory) CreateIssuer(_ context.Context, issuer *models.Issuer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.issuers[issuer.Key]; ok {
		return sentinel.ErrAlreadyExists
	}
	i := *issuer
	s.issuers[issuer.Key] = &i
	return nil
}

func (s *InMemory) FindIssuer(_ context.Context, key id.Key) (*models.Issuer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	issuer, ok := s.issuers[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	i := *issuer
	return &i, nil
}

func (s *InMemory) MutateIssuer(_ context.Context, key id.Key, fn func(*models.Issuer) error) (*models.Issuer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	issuer, ok := s.issuers[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	i := *issuer
	if err := fn(&i); err != nil {
		return nil, err
	}
	s.issuers[key] = &i
	out := i
	return &out, nil
}

// CreateCredential stores the credential and bumps the issuer's counter in
// one critical section.
func (s *InMemory) CreateCredential(_ context.Context, cred *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	issuer, ok := s.issuers[cred.Issuer]
	if !ok {
		return sentinel.ErrNotFound
	}
	if _, ok := s.credentials[cred.ID]; ok {
		return sentinel.ErrAlreadyExists
	}
	c := *cred
	s.credentials[cred.ID] = &c
	i := *issuer
	i.RecordIssuance(cred.IssuedAt)
	s.issuers[cred.Issuer] = &i
	return nil
}

func (s *InMemory) FindCredential(_ context.Context, credentialID id.CredentialID) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.credentials[credentialID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneCredential(cred), nil
}

func (s *InMemory) MutateCredential(_ context.Context, credentialID id.CredentialID, fn func(*models.Credential) error) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.credentials[credentialID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := cloneCredential(cred)
	if err := fn(working); err != nil {
		return nil, err
	}
	s.credentials[credentialID] = working
	return cloneCredential(working), nil
}

// ListByHolder returns every credential attached to an identity.
func (s *InMemory) ListByHolder(_ context.Context, holder id.IdentityID) ([]*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Credential
	for _, cred := range s.credentials {
		if cred.Holder == holder {
			out = append(out, cloneCredential(cred))
		}
	}
	return out, nil
}

func cloneCredential(cred *models.Credential) *models.Credential {
	c := *cred
	if cred.RevokedAt != nil {
		t := *cred.RevokedAt
		c.RevokedAt = &t
	}
	return &c
}
