package store

import (
	"context"
	"sync"

	"trustgrid/internal/staking/models"
	id "trustgrid/pkg/domain"
	"trustgrid/pkg/platform/sentinel"
	"trustgrid/pkg/requestcontext"
)

// InMemory holds the pool and all stake accounts behind one lock. The single
// lock is deliberate: every balance change must land together with its pool
// total change, and MutateAccount hands both records to the callback inside
// the same critical section so the two can never drift.
type InMemory struct {
	mu       sync.RWMutex
	pool     *models.Pool
	accounts map[id.Key]*models.StakeAccount
}

func NewInMemory() *InMemory {
	return &InMemory{accounts: make(map[id.Key]*models.StakeAccount)}
}

func (s *InMemory) CreatePool(ctx context.Context, pool *models.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool != nil {
		return sentinel.ErrAlreadyExists
	}
	c := *pool
	s.pool = &c
	return nil
}

func (s *InMemory) GetPool(ctx context.Context) (*models.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pool == nil {
		return nil, sentinel.ErrNotFound
	}
	c := *s.pool
	return &c, nil
}

// MutatePool applies fn to the pool atomically.
func (s *InMemory) MutatePool(ctx context.Context, fn func(*models.Pool) error) (*models.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool == nil {
		return nil, sentinel.ErrNotFound
	}
	work := *s.pool
	if err := fn(&work); err != nil {
		return nil, err
	}
	s.pool = &work
	c := work
	return &c, nil
}

func (s *InMemory) FindAccount(ctx context.Context, owner id.Key) (*models.StakeAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[owner]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *account
	return &c, nil
}

// MutateAccount applies fn to the owner's account and the pool in one atomic
// step. When create is set a zero-balance account is handed to fn if none
// exists yet. If fn errors, neither record changes.
func (s *InMemory) MutateAccount(ctx context.Context, owner id.Key, create bool, fn func(*models.StakeAccount, *models.Pool) error) (*models.StakeAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool == nil {
		return nil, sentinel.ErrNotFound
	}

	account, ok := s.accounts[owner]
	if !ok {
		if !create {
			return nil, sentinel.ErrNotFound
		}
		fresh, err := models.NewStakeAccount(owner, requestcontext.Now(ctx))
		if err != nil {
			return nil, err
		}
		account = fresh
	}

	workAccount := *account
	workPool := *s.pool
	if err := fn(&workAccount, &workPool); err != nil {
		return nil, err
	}
	s.accounts[owner] = &workAccount
	s.pool = &workPool
	c := workAccount
	return &c, nil
}
