package store

import (
	"context"
	"sync"

	"trustgrid/internal/reputation/models"
	id "trustgrid/pkg/domain"
	"trustgrid/pkg/platform/sentinel"
)

// InMemory keeps scores in process memory. Mutate runs the whole
// read-modify-write under the store lock, which is what gives each score
// record the serialized, no-lost-update semantics the engine assumes.
type InMemory struct {
	mu     sync.RWMutex
	scores map[id.IdentityID]*models.Score
}

func NewInMemory() *InMemory {
	return &InMemory{scores: make(map[id.IdentityID]*models.Score)}
}

func (s *InMemory) Create(ctx context.Context, score *models.Score) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scores[score.IdentityID]; ok {
		return sentinel.ErrAlreadyExists
	}
	c := *score
	s.scores[score.IdentityID] = &c
	return nil
}

func (s *InMemory) FindByIdentity(ctx context.Context, identityID id.IdentityID) (*models.Score, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	score, ok := s.scores[identityID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *score
	return &c, nil
}

// Mutate applies fn to the stored score atomically. If fn returns an error
// the record is left untouched.
func (s *InMemory) Mutate(ctx context.Context, identityID id.IdentityID, fn func(*models.Score) error) (*models.Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	score, ok := s.scores[identityID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	work := *score
	if err := fn(&work); err != nil {
		return nil, err
	}
	s.scores[identityID] = &work
	c := work
	return &c, nil
}
