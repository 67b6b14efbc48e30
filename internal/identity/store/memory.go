package store

import (
	"context"
	"sync"

	"trustgrid/internal/identity/models"
	id "trustgrid/pkg/domain"
	"trustgrid/pkg/platform/sentinel"
)

// InMemory keeps identities in process memory, indexed by ID with a
// secondary owner-key index kept in the same critical section.
type InMemory struct {
	mu         sync.RWMutex
	identities map[id.IdentityID]*models.Identity
	byOwner    map[id.Key]id.IdentityID
}

func NewInMemory() *InMemory {
	return &InMemory{
		identities: make(map[id.IdentityID]*models.Identity),
		byOwner:    make(map[id.Key]id.IdentityID),
	}
}

func (s *InMemory) Create(ctx context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[identity.ID]; ok {
		return sentinel.ErrAlreadyExists
	}
	if _, ok := s.byOwner[identity.OwnerKey]; ok {
		return sentinel.ErrAlreadyExists
	}
	c := clone(identity)
	s.identities[identity.ID] = c
	s.byOwner[identity.OwnerKey] = identity.ID
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, identityID id.IdentityID) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.identities[identityID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(identity), nil
}

func (s *InMemory) FindByOwner(ctx context.Context, owner id.Key) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identityID, ok := s.byOwner[owner]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(s.identities[identityID]), nil
}

// Mutate applies fn to the identity atomically, re-indexing the owner key if
// fn swapped it (recovery).
func (s *InMemory) Mutate(ctx context.Context, identityID id.IdentityID, fn func(*models.Identity) error) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.identities[identityID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	work := clone(identity)
	if err := fn(work); err != nil {
		return nil, err
	}
	if work.OwnerKey != identity.OwnerKey {
		if _, taken := s.byOwner[work.OwnerKey]; taken {
			return nil, sentinel.ErrConflict
		}
		delete(s.byOwner, identity.OwnerKey)
		s.byOwner[work.OwnerKey] = identityID
	}
	s.identities[identityID] = work
	return clone(work), nil
}

func clone(i *models.Identity) *models.Identity {
	c := *i
	c.RecoveryKeys = append([]id.Key(nil), i.RecoveryKeys...)
	return &c
}
