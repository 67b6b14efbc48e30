// Package publisher delivers audit events to a Store, synchronously by
// default or through a buffered channel when async mode is enabled.
//
// Sync mode is fail-closed: Emit returns the store error and the calling
// operation should abort. Async mode trades that guarantee for latency;
// Close drains the buffer before returning.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	id "trustgrid/pkg/domain"
	audit "trustgrid/pkg/platform/audit"
)

// ErrClosed is returned by Emit once the publisher has been closed.
var ErrClosed = errors.New("audit publisher is closed")

type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	inbox  chan audit.Event
	done   chan struct{}
	closed sync.Once

	mu      sync.RWMutex
	stopped bool
}

type Option func(*Publisher)

// WithLogger sets a logger for async delivery failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// WithAsyncBuffer enables asynchronous delivery with the given buffer size.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) { p.inbox = make(chan audit.Event, size) }
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, done: make(chan struct{})}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		go p.drain()
	}
	return p
}

// Emit records an audit event. In sync mode the event is persisted before
// Emit returns; in async mode it is queued (blocking if the buffer is full).
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrClosed
	}
	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}
	select {
	case p.inbox <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// List returns events recorded for an identity.
func (p *Publisher) List(ctx context.Context, identityID id.IdentityID) ([]audit.Event, error) {
	return p.store.ListByIdentity(ctx, identityID)
}

// Close stops delivery, draining any buffered events first. Emit calls
// arriving after Close return ErrClosed instead of hitting a closed channel.
func (p *Publisher) Close() {
	p.closed.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()
		if p.inbox == nil {
			close(p.done)
			return
		}
		close(p.inbox)
		<-p.done
	})
}

func (p *Publisher) drain() {
	defer close(p.done)
	for event := range p.inbox {
		if err := p.store.Append(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Error("audit event dropped", "action", event.Action, "error", err)
		}
	}
}
