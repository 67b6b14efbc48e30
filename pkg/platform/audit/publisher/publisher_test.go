package publisher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	id "trustgrid/pkg/domain"
	audit "trustgrid/pkg/platform/audit"
	memory "trustgrid/pkg/platform/audit/store/memory"
)

type PublisherSuite struct {
	suite.Suite
	store *memory.InMemoryStore
}

func TestPublisherSuite(t *testing.T) {
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) SetupTest() {
	s.store = memory.NewInMemoryStore()
}

func (s *PublisherSuite) event(owner string) audit.Event {
	return audit.Event{
		IdentityID: id.IdentityIDFor(id.Key(owner)),
		Actor:      id.Key(owner),
		Action:     string(audit.EventIdentityCreated),
	}
}

func (s *PublisherSuite) TestSyncEmit() {
	s.Run("persists before returning", func() {
		pub := NewPublisher(s.store)
		s.Require().NoError(pub.Emit(context.Background(), s.event("owner-1")))
		s.Len(s.store.All(), 1)
	})

	s.Run("fills in timestamp and category", func() {
		pub := NewPublisher(s.store)
		s.Require().NoError(pub.Emit(context.Background(), s.event("owner-1")))
		stored := s.store.All()[0]
		s.False(stored.Timestamp.IsZero())
		s.Equal(audit.CategoryCompliance, stored.Category)
	})
}

func (s *PublisherSuite) TestAsyncEmit() {
	s.Run("close drains the buffer", func() {
		pub := NewPublisher(s.store, WithAsyncBuffer(8))
		for i := 0; i < 5; i++ {
			s.Require().NoError(pub.Emit(context.Background(), s.event("owner-1")))
		}
		pub.Close()
		s.Len(s.store.All(), 5)
	})
}

func (s *PublisherSuite) TestEmitAfterClose() {
	s.Run("sync publisher reports closed", func() {
		pub := NewPublisher(s.store)
		pub.Close()
		s.ErrorIs(pub.Emit(context.Background(), s.event("owner-1")), ErrClosed)
		s.Empty(s.store.All())
	})

	s.Run("async publisher reports closed without panicking", func() {
		pub := NewPublisher(s.store, WithAsyncBuffer(1))
		pub.Close()
		s.NotPanics(func() {
			s.ErrorIs(pub.Emit(context.Background(), s.event("owner-1")), ErrClosed)
		})
	})

	s.Run("close is idempotent", func() {
		pub := NewPublisher(s.store, WithAsyncBuffer(1))
		pub.Close()
		s.NotPanics(pub.Close)
	})
}
