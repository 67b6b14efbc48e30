package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trustgrid/internal/identity/store"
	id "trustgrid/pkg/domain"
	dErrors "trustgrid/pkg/domain-errors"
	"trustgrid/pkg/requestcontext"
)

type fakeScoreInit struct {
	initialized []id.IdentityID
}

func (f *fakeScoreInit) InitializeScore(_ context.Context, identityID id.IdentityID) error {
	f.initialized = append(f.initialized, identityID)
	return nil
}

type fakeInvalidator struct {
	invalidated []id.IdentityID
}

func (f *fakeInvalidator) Invalidate(_ context.Context, identityID id.IdentityID) error {
	f.invalidated = append(f.invalidated, identityID)
	return nil
}

type IdentityServiceSuite struct {
	suite.Suite
	svc    *Service
	scores *fakeScoreInit
	cache  *fakeInvalidator
	ctx    context.Context
}

func TestIdentityServiceSuite(t *testing.T) {
	suite.Run(t, new(IdentityServiceSuite))
}

func (s *IdentityServiceSuite) SetupTest() {
	s.scores = &fakeScoreInit{}
	s.cache = &fakeInvalidator{}
	s.svc = New(store.NewInMemory(), 500,
		WithScoreInitializer(s.scores),
		WithSnapshotInvalidator(s.cache),
	)
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
}

func (s *IdentityServiceSuite) TestCreateIdentity() {
	s.Run("creation seeds the base score and kicks off a reputation record", func() {
		identity, err := s.svc.CreateIdentity(s.ctx, "owner-1", "did:sov:alice", "https://meta/alice", nil)
		s.Require().NoError(err)
		s.Equal(int64(500), identity.ReputationScore)
		s.Equal([]id.IdentityID{identity.ID}, s.scores.initialized)
	})

	s.Run("one identity per owner key", func() {
		_, err := s.svc.CreateIdentity(s.ctx, "owner-2", "did:sov:bob", "", nil)
		s.Require().NoError(err)
		_, err = s.svc.CreateIdentity(s.ctx, "owner-2", "did:sov:bob-2", "", nil)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *IdentityServiceSuite) TestRecoveryFlow() {
	s.Run("owner adds a guardian, guardian recovers to a new key", func() {
		identity, err := s.svc.CreateIdentity(s.ctx, "owner-1", "did:sov:alice", "", nil)
		s.Require().NoError(err)

		_, err = s.svc.AddRecoveryKey(s.ctx, "owner-1", identity.ID, "guardian-1")
		s.Require().NoError(err)

		recovered, err := s.svc.RecoverIdentity(s.ctx, "guardian-1", identity.ID, "owner-1-new")
		s.Require().NoError(err)
		s.Equal(id.Key("owner-1-new"), recovered.OwnerKey)
		s.Contains(s.cache.invalidated, identity.ID)

		// The old key no longer resolves; the new one does.
		_, err = s.svc.GetIdentityByOwner(s.ctx, "owner-1")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		byNew, err := s.svc.GetIdentityByOwner(s.ctx, "owner-1-new")
		s.Require().NoError(err)
		s.Equal(identity.ID, byNew.ID)
	})

	s.Run("non-owner cannot add recovery keys", func() {
		identity, err := s.svc.CreateIdentity(s.ctx, "owner-3", "did:sov:carol", "", nil)
		s.Require().NoError(err)
		_, err = s.svc.AddRecoveryKey(s.ctx, "stranger", identity.ID, "guardian-x")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("non-guardian cannot recover", func() {
		identity, err := s.svc.CreateIdentity(s.ctx, "owner-4", "did:sov:dave", "", []id.Key{"guardian-4"})
		s.Require().NoError(err)
		_, err = s.svc.RecoverIdentity(s.ctx, "stranger", identity.ID, "owner-4-new")
		s.True(dErrors.HasReason(err, dErrors.ReasonUnauthorizedRecovery))
	})

	s.Run("cannot recover onto a key that already owns an identity", func() {
		first, err := s.svc.CreateIdentity(s.ctx, "owner-5", "did:sov:erin", "", []id.Key{"guardian-5"})
		s.Require().NoError(err)
		_, err = s.svc.CreateIdentity(s.ctx, "owner-6", "did:sov:frank", "", nil)
		s.Require().NoError(err)

		_, err = s.svc.RecoverIdentity(s.ctx, "guardian-5", first.ID, "owner-6")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *IdentityServiceSuite) TestSnapshots() {
	s.Run("verification bit lands on the record and busts the cache", func() {
		identity, err := s.svc.CreateIdentity(s.ctx, "owner-7", "did:sov:grace", "", nil)
		s.Require().NoError(err)

		s.Require().NoError(s.svc.SetVerificationBit(s.ctx, identity.ID, id.VerificationEmail, true))
		got, err := s.svc.GetIdentity(s.ctx, identity.ID)
		s.Require().NoError(err)
		s.True(got.HasVerification(id.VerificationEmail))
		s.Contains(s.cache.invalidated, identity.ID)
	})

	s.Run("reputation snapshot mirrors the engine score", func() {
		identity, err := s.svc.CreateIdentity(s.ctx, "owner-8", "did:sov:henry", "", nil)
		s.Require().NoError(err)

		s.Require().NoError(s.svc.UpdateReputationSnapshot(s.ctx, identity.ID, 720))
		got, err := s.svc.GetIdentity(s.ctx, identity.ID)
		s.Require().NoError(err)
		s.Equal(int64(720), got.ReputationScore)
	})

	s.Run("stake snapshot for an ownerless key is a no-op", func() {
		s.NoError(s.svc.UpdateStakeSnapshot(s.ctx, "pure-oracle-operator", 9_000))
	})

	s.Run("stake snapshot lands by owner key", func() {
		identity, err := s.svc.CreateIdentity(s.ctx, "owner-9", "did:sov:iris", "", nil)
		s.Require().NoError(err)

		s.Require().NoError(s.svc.UpdateStakeSnapshot(s.ctx, "owner-9", 9_000))
		got, err := s.svc.GetIdentity(s.ctx, identity.ID)
		s.Require().NoError(err)
		s.Equal(uint64(9_000), got.StakedAmount)
	})
}
