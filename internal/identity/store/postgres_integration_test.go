//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trustgrid/internal/identity/models"
	"trustgrid/internal/identity/store"
	id "trustgrid/pkg/domain"
	dErrors "trustgrid/pkg/domain-errors"
	"trustgrid/pkg/platform/sentinel"
	"trustgrid/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T(), store.Schema)
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "identities"))
}

func newTestIdentity(s *suite.Suite, owner id.Key) *models.Identity {
	identity, err := models.NewIdentity(owner, "did:sov:"+owner.String(), "", nil, 500, time.Now().UTC())
	s.Require().NoError(err)
	return identity
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	identity := newTestIdentity(&s.Suite, "owner-1")
	s.Require().NoError(s.store.Create(ctx, identity))

	byID, err := s.store.FindByID(ctx, identity.ID)
	s.Require().NoError(err)
	s.Equal(identity.OwnerKey, byID.OwnerKey)
	s.Equal(identity.DID, byID.DID)

	byOwner, err := s.store.FindByOwner(ctx, "owner-1")
	s.Require().NoError(err)
	s.Equal(identity.ID, byOwner.ID)

	_, err = s.store.FindByOwner(ctx, "nobody")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestDuplicateCreate() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, newTestIdentity(&s.Suite, "owner-1")))
	err := s.store.Create(ctx, newTestIdentity(&s.Suite, "owner-1"))
	s.ErrorIs(err, sentinel.ErrAlreadyExists)
}

func (s *PostgresStoreSuite) TestMutatePersistsChanges() {
	ctx := context.Background()
	identity := newTestIdentity(&s.Suite, "owner-1")
	s.Require().NoError(s.store.Create(ctx, identity))

	now := time.Now().UTC()
	_, err := s.store.Mutate(ctx, identity.ID, func(i *models.Identity) error {
		i.ApplyRecoveryKey("guardian-1", now)
		return i.SetVerificationBit(id.VerificationEmail, true, now)
	})
	s.Require().NoError(err)

	got, err := s.store.FindByID(ctx, identity.ID)
	s.Require().NoError(err)
	s.Equal([]id.Key{"guardian-1"}, got.RecoveryKeys)
	s.True(got.HasVerification(id.VerificationEmail))
}

func (s *PostgresStoreSuite) TestMutateOwnerSwapConflicts() {
	ctx := context.Background()
	first := newTestIdentity(&s.Suite, "owner-1")
	s.Require().NoError(s.store.Create(ctx, first))
	s.Require().NoError(s.store.Create(ctx, newTestIdentity(&s.Suite, "owner-2")))

	// Swapping onto a taken owner key hits the unique index.
	_, err := s.store.Mutate(ctx, first.ID, func(i *models.Identity) error {
		i.ApplyRecovery("owner-2", time.Now().UTC())
		return nil
	})
	s.ErrorIs(err, sentinel.ErrConflict)

	// A free key goes through and re-addresses the owner lookup.
	_, err = s.store.Mutate(ctx, first.ID, func(i *models.Identity) error {
		i.ApplyRecovery("owner-3", time.Now().UTC())
		return nil
	})
	s.Require().NoError(err)
	got, err := s.store.FindByOwner(ctx, "owner-3")
	s.Require().NoError(err)
	s.Equal(first.ID, got.ID)
}

func (s *PostgresStoreSuite) TestMutateCallbackErrorRollsBack() {
	ctx := context.Background()
	identity := newTestIdentity(&s.Suite, "owner-1")
	s.Require().NoError(s.store.Create(ctx, identity))

	boom := dErrors.New(dErrors.CodeFailedPrecondition, "nope")
	_, err := s.store.Mutate(ctx, identity.ID, func(i *models.Identity) error {
		i.ReputationScore = 999
		return boom
	})
	s.Require().Error(err)
	s.True(errors.Is(err, boom) || dErrors.HasCode(err, dErrors.CodeFailedPrecondition))

	got, err := s.store.FindByID(ctx, identity.ID)
	s.Require().NoError(err)
	s.Equal(int64(500), got.ReputationScore)
}

// TestConcurrentMutations verifies that row locking serializes updates: 50
// concurrent bitmap writes never lose one.
func (s *PostgresStoreSuite) TestConcurrentMutations() {
	ctx := context.Background()
	identity := newTestIdentity(&s.Suite, "owner-1")
	s.Require().NoError(s.store.Create(ctx, identity))

	const goroutines = 50
	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Mutate(ctx, identity.ID, func(ident *models.Identity) error {
				ident.ReputationScore++
				return nil
			})
			if err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Zero(failures.Load())
	got, err := s.store.FindByID(ctx, identity.ID)
	s.Require().NoError(err)
	s.Equal(int64(500+goroutines), got.ReputationScore)
}
