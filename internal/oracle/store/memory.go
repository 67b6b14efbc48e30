package store

import (
	"context"
	"sync"

	"trustgrid/internal/oracle/models"
	id "trustgrid/pkg/domain"
	"trustgrid/pkg/platform/sentinel"
)

// InMemory keeps the oracle config, node set and requests behind a single
// lock so that node churn and the active-oracle counter always move
// together, and so votes and tallies cannot interleave.
type InMemory struct {
	mu       sync.Mutex
	config   *models.Config
	nodes    map[id.Key]*models.Node
	requests map[id.RequestID]*models.Request
}

func NewInMemory() *InMemory {
	return &InMemory{
		nodes:    make(map[id.Key]*models.Node),
		requests: make(map[id.RequestID]*models.Request),
	}
}

func (s *InMemory) CreateConfig(_ context.Context, cfg *models.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config != nil {
		return sentinel.ErrAlreadyExists
	}
	c := *cfg
	s.config = &c
	return nil
}

func (s *InMemory) GetConfig(_ context.Context) (*models.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return nil, sentinel.ErrNotFound
	}
	c := *s.config
	return &c, nil
}

// MutateConfig applies fn to a copy of the config and swaps it in when fn
// succeeds.
func (s *InMemory) MutateConfig(_ context.Context, fn func(*models.Config) error) (*models.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return nil, sentinel.ErrNotFound
	}
	c := *s.config
	if err := fn(&c); err != nil {
		return nil, err
	}
	s.config = &c
	out := c
	return &out, nil
}

func (s *InMemory) FindNode(_ context.Context, authority id.Key) (*models.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[authority]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	n := *node
	return &n, nil
}

// CreateNode registers a node and bumps the active counter in one critical
// section.
func (s *InMemory) CreateNode(_ context.Context, node *models.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return sentinel.ErrNotFound
	}
	if _, ok := s.nodes[node.Authority]; ok {
		return sentinel.ErrAlreadyExists
	}
	n := *node
	s.nodes[node.Authority] = &n
	cfg := *s.config
	cfg.ActiveOracleCount++
	s.config = &cfg
	return nil
}

// MutateNode applies fn to copies of the node and config together. The
// swap is atomic, so a deactivation and its counter decrement land as one.
func (s *InMemory) MutateNode(_ context.Context, authority id.Key, fn func(*models.Node, *models.Config) error) (*models.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return nil, sentinel.ErrNotFound
	}
	node, ok := s.nodes[authority]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	n := *node
	cfg := *s.config
	if err := fn(&n, &cfg); err != nil {
		return nil, err
	}
	s.nodes[authority] = &n
	s.config = &cfg
	out := n
	return &out, nil
}

func (s *InMemory) FindRequest(_ context.Context, requestID id.RequestID) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneRequest(req), nil
}

// CreateRequest stores a request at its deterministic address. A terminal
// request at the same address is superseded; a pending one blocks.
func (s *InMemory) CreateRequest(_ context.Context, req *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.requests[req.ID]; ok && !existing.Status.IsTerminal() {
		return sentinel.ErrAlreadyExists
	}
	s.requests[req.ID] = cloneRequest(req)
	return nil
}

// MutateRequest applies fn to a copy of the request so a failed vote never
// leaves a half-applied tally behind.
func (s *InMemory) MutateRequest(_ context.Context, requestID id.RequestID, fn func(*models.Request) error) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := cloneRequest(req)
	if err := fn(working); err != nil {
		return nil, err
	}
	s.requests[requestID] = working
	return cloneRequest(working), nil
}

// ListPendingRequests returns pending requests for permissionless expiry
// sweeps.
func (s *InMemory) ListPendingRequests(_ context.Context) ([]*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Request
	for _, req := range s.requests {
		if !req.Status.IsTerminal() {
			out = append(out, cloneRequest(req))
		}
	}
	return out, nil
}

func cloneRequest(req *models.Request) *models.Request {
	r := *req
	r.Votes = make(map[id.Key]models.VoteChoice, len(req.Votes))
	for k, v := range req.Votes {
		r.Votes[k] = v
	}
	if req.Result != nil {
		res := *req.Result
		r.Result = &res
	}
	return &r
}
