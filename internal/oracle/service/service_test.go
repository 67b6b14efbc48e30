package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trustgrid/internal/oracle/models"
	"trustgrid/internal/oracle/store"
	id "trustgrid/pkg/domain"
	dErrors "trustgrid/pkg/domain-errors"
	"trustgrid/pkg/requestcontext"
)

const oracleAdmin = id.Key("oracle-admin")

type fakeStakes struct {
	balances map[id.Key]uint64
}

func (f *fakeStakes) StakedAmount(_ context.Context, owner id.Key) (uint64, error) {
	return f.balances[owner], nil
}

type fakeIdentities struct {
	known map[id.IdentityID]bool
	bits  map[id.IdentityID][]id.VerificationType
}

func (f *fakeIdentities) Exists(_ context.Context, identityID id.IdentityID) error {
	if !f.known[identityID] {
		return dErrors.New(dErrors.CodeNotFound, "identity not found")
	}
	return nil
}

func (f *fakeIdentities) SetVerificationBit(_ context.Context, identityID id.IdentityID, t id.VerificationType, set bool) error {
	if set {
		f.bits[identityID] = append(f.bits[identityID], t)
	}
	return nil
}

type fakeReputation struct {
	completed []id.IdentityID
	failed    []id.IdentityID
}

func (f *fakeReputation) RecordVerificationCompleted(_ context.Context, identityID id.IdentityID) error {
	f.completed = append(f.completed, identityID)
	return nil
}

func (f *fakeReputation) RecordVerificationFailed(_ context.Context, identityID id.IdentityID) error {
	f.failed = append(f.failed, identityID)
	return nil
}

type OracleServiceSuite struct {
	suite.Suite
	svc        *Service
	stakes     *fakeStakes
	identities *fakeIdentities
	reputation *fakeReputation
	base       time.Time
	identity   id.IdentityID
	evidence   models.EvidenceHash
}

func TestOracleServiceSuite(t *testing.T) {
	suite.Run(t, new(OracleServiceSuite))
}

func (s *OracleServiceSuite) SetupTest() {
	s.base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.identity = id.IdentityIDFor("identity-owner")
	evidence, err := models.ParseEvidenceHash(strings.Repeat("ab", 32))
	s.Require().NoError(err)
	s.evidence = evidence

	s.stakes = &fakeStakes{balances: map[id.Key]uint64{}}
	s.identities = &fakeIdentities{
		known: map[id.IdentityID]bool{s.identity: true},
		bits:  map[id.IdentityID][]id.VerificationType{},
	}
	s.reputation = &fakeReputation{}
	s.svc = New(store.NewInMemory(), s.stakes, oracleAdmin,
		WithIdentityRegistry(s.identities),
		WithReputationRecorder(s.reputation),
	)
}

func (s *OracleServiceSuite) asCaller(caller id.Key) context.Context {
	ctx := requestcontext.WithTime(context.Background(), s.base)
	return requestcontext.WithCallerKey(ctx, caller)
}

func (s *OracleServiceSuite) asCallerAt(caller id.Key, t time.Time) context.Context {
	ctx := requestcontext.WithTime(context.Background(), t)
	return requestcontext.WithCallerKey(ctx, caller)
}

// network stands up a fresh config with the given quorum and registers
// oracles until the active set reaches the given size.
func (s *OracleServiceSuite) network(required uint32, oracles ...id.Key) {
	s.SetupTest()
	_, err := s.svc.InitializeConfig(s.asCaller(oracleAdmin), 1_000, required, time.Hour, 50)
	s.Require().NoError(err)
	for _, authority := range oracles {
		s.stakes.balances[authority] = 1_000
		_, err := s.svc.RegisterOracle(s.asCaller(authority), authority, authority)
		s.Require().NoError(err)
	}
}

func (s *OracleServiceSuite) TestConfig() {
	s.Run("admin initializes once", func() {
		s.network(2)
		_, err := s.svc.InitializeConfig(s.asCaller(oracleAdmin), 1_000, 2, time.Hour, 50)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("non-admin rejected", func() {
		s.SetupTest()
		_, err := s.svc.InitializeConfig(s.asCaller("someone"), 1_000, 2, time.Hour, 50)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("update bumps the version", func() {
		s.network(2)
		newFee := uint64(75)
		cfg, err := s.svc.UpdateConfig(s.asCaller(oracleAdmin), models.ConfigUpdate{VerificationFee: &newFee})
		s.Require().NoError(err)
		s.Equal(uint64(75), cfg.VerificationFee)
		s.Equal(uint64(2), cfg.Version)
	})
}

func (s *OracleServiceSuite) TestRegistration() {
	s.Run("registration requires the minimum stake", func() {
		s.network(1)
		s.stakes.balances["poor-oracle"] = 999
		_, err := s.svc.RegisterOracle(s.asCaller("poor-oracle"), "poor-oracle", "poor-oracle")
		s.True(dErrors.HasReason(err, dErrors.ReasonInsufficientOracleStake))
	})

	s.Run("authority must register itself", func() {
		s.network(1)
		s.stakes.balances["rich-oracle"] = 5_000
		_, err := s.svc.RegisterOracle(s.asCaller("someone-else"), "rich-oracle", "rich-oracle")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("registration and deregistration move the active count", func() {
		s.network(1, "oracle-1", "oracle-2")
		cfg, err := s.svc.GetConfig(s.asCaller(oracleAdmin))
		s.Require().NoError(err)
		s.Equal(uint32(2), cfg.ActiveOracleCount)

		node, err := s.svc.DeregisterOracle(s.asCaller("oracle-1"), "oracle-1")
		s.Require().NoError(err)
		s.False(node.IsActive())

		cfg, err = s.svc.GetConfig(s.asCaller(oracleAdmin))
		s.Require().NoError(err)
		s.Equal(uint32(1), cfg.ActiveOracleCount)
	})

	s.Run("only the authority or the admin may deregister", func() {
		s.network(1, "oracle-1")
		_, err := s.svc.DeregisterOracle(s.asCaller("oracle-2"), "oracle-1")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

		_, err = s.svc.DeregisterOracle(s.asCaller(oracleAdmin), "oracle-1")
		s.NoError(err)
	})
}

func (s *OracleServiceSuite) TestRequestVerification() {
	s.Run("unknown identity rejected", func() {
		s.network(2, "oracle-1", "oracle-2")
		_, err := s.svc.RequestVerification(s.asCaller("anyone"), id.IdentityIDFor("nobody"), id.VerificationEmail, s.evidence)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("fee is accounted to the vault", func() {
		s.network(2, "oracle-1", "oracle-2")
		req, err := s.svc.RequestVerification(s.asCaller("anyone"), s.identity, id.VerificationEmail, s.evidence)
		s.Require().NoError(err)
		s.Equal(uint64(50), req.Fee)

		cfg, err := s.svc.GetConfig(s.asCaller(oracleAdmin))
		s.Require().NoError(err)
		s.Equal(uint64(50), cfg.FeesCollected)
	})

	s.Run("one pending round per identity and type", func() {
		s.network(2, "oracle-1", "oracle-2")
		_, err := s.svc.RequestVerification(s.asCaller("anyone"), s.identity, id.VerificationEmail, s.evidence)
		s.Require().NoError(err)
		_, err = s.svc.RequestVerification(s.asCaller("anyone"), s.identity, id.VerificationEmail, s.evidence)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("quorum must be reachable", func() {
		s.network(3, "oracle-1", "oracle-2")
		_, err := s.svc.RequestVerification(s.asCaller("anyone"), s.identity, id.VerificationEmail, s.evidence)
		s.True(dErrors.HasCode(err, dErrors.CodeFailedPrecondition))
	})
}

func (s *OracleServiceSuite) TestVoting() {
	s.Run("confirmation sets the bit and rewards reputation", func() {
		s.network(2, "oracle-1", "oracle-2", "oracle-3")
		req, err := s.svc.RequestVerification(s.asCaller("anyone"), s.identity, id.VerificationEmail, s.evidence)
		s.Require().NoError(err)

		_, err = s.svc.SubmitVote(s.asCaller("oracle-1"), req.ID, models.VoteConfirm)
		s.Require().NoError(err)
		voted, err := s.svc.SubmitVote(s.asCaller("oracle-2"), req.ID, models.VoteConfirm)
		s.Require().NoError(err)
		s.Equal(models.RequestStatusConfirmed, voted.Status)

		s.Equal([]id.VerificationType{id.VerificationEmail}, s.identities.bits[s.identity])
		s.Equal([]id.IdentityID{s.identity}, s.reputation.completed)
	})

	s.Run("rejection by impossibility dings reputation", func() {
		s.network(2, "oracle-1", "oracle-2", "oracle-3")
		req, err := s.svc.RequestVerification(s.asCaller("anyone"), s.identity, id.VerificationEmail, s.evidence)
		s.Require().NoError(err)

		_, err = s.svc.SubmitVote(s.asCaller("oracle-1"), req.ID, models.VoteReject)
		s.Require().NoError(err)
		voted, err := s.svc.SubmitVote(s.asCaller("oracle-2"), req.ID, models.VoteReject)
		s.Require().NoError(err)
		s.Equal(models.RequestStatusRejected, voted.Status)
		s.Equal([]id.IdentityID{s.identity}, s.reputation.failed)
		s.Empty(s.identities.bits[s.identity])
	})

	s.Run("voters on the winning side earn accuracy credit", func() {
		s.network(2, "oracle-1", "oracle-2", "oracle-3")
		req, err := s.svc.RequestVerification(s.asCaller("anyone"), s.identity, id.VerificationEmail, s.evidence)
		s.Require().NoError(err)

		_, err = s.svc.SubmitVote(s.asCaller("oracle-1"), req.ID, models.VoteReject)
		s.Require().NoError(err)
		_, err = s.svc.SubmitVote(s.asCaller("oracle-2"), req.ID, models.VoteConfirm)
		s.Require().NoError(err)
		voted, err := s.svc.SubmitVote(s.asCaller("oracle-3"), req.ID, models.VoteConfirm)
		s.Require().NoError(err)
		s.Require().Equal(models.RequestStatusConfirmed, voted.Status)

		for _, tc := range []struct {
			authority id.Key
			accurate  uint64
		}{
			{"oracle-1", 0},
			{"oracle-2", 1},
			{"oracle-3", 1},
		} {
			node, err := s.svc.GetNode(s.asCaller("anyone"), tc.authority)
			s.Require().NoError(err)
			s.Equal(tc.accurate, node.AccurateVerifications, tc.authority)
			s.Equal(uint64(1), node.VerificationsSubmitted, tc.authority)
		}
	})

	s.Run("reject voters earn credit when the round is rejected", func() {
		s.network(2, "oracle-1", "oracle-2", "oracle-3")
		req, err := s.svc.RequestVerification(s.asCaller("anyone"), s.identity, id.VerificationEmail, s.evidence)
		s.Require().NoError(err)

		_, err = s.svc.SubmitVote(s.asCaller("oracle-1"), req.ID, models.VoteReject)
		s.Require().NoError(err)
		voted, err := s.svc.SubmitVote(s.asCaller("oracle-2"), req.ID, models.VoteReject)
		s.Require().NoError(err)
		s.Require().Equal(models.RequestStatusRejected, voted.Status)

		node, err := s.svc.GetNode(s.asCaller("anyone"), "oracle-1")
		s.Require().NoError(err)
		s.Equal(uint64(1), node.AccurateVerifications)
	})

	s.Run("unregistered and inactive oracles may not vote", func() {
		s.network(1, "oracle-1", "oracle-2")
		req, err := s.svc.RequestVerification(s.asCaller("anyone"), s.identity, id.VerificationEmail, s.evidence)
		s.Require().NoError(err)

		_, err = s.svc.SubmitVote(s.asCaller("stranger"), req.ID, models.VoteConfirm)
		s.True(dErrors.HasReason(err, dErrors.ReasonOracleNotActive))

		_, err = s.svc.DeregisterOracle(s.asCaller("oracle-2"), "oracle-2")
		s.Require().NoError(err)
		_, err = s.svc.SubmitVote(s.asCaller("oracle-2"), req.ID, models.VoteConfirm)
		s.True(dErrors.HasReason(err, dErrors.ReasonOracleNotActive))
	})

	s.Run("vote after the timeout expires the request instead", func() {
		s.network(2, "oracle-1", "oracle-2")
		req, err := s.svc.RequestVerification(s.asCaller("anyone"), s.identity, id.VerificationEmail, s.evidence)
		s.Require().NoError(err)

		late := s.base.Add(2 * time.Hour)
		_, err = s.svc.SubmitVote(s.asCallerAt("oracle-1", late), req.ID, models.VoteConfirm)
		s.True(dErrors.HasReason(err, dErrors.ReasonRequestExpired))

		got, err := s.svc.GetRequest(s.asCaller("anyone"), req.ID)
		s.Require().NoError(err)
		s.Equal(models.RequestStatusExpired, got.Status)
		s.Empty(s.reputation.completed)
		s.Empty(s.reputation.failed)
	})

	s.Run("terminal round can be superseded at the same address", func() {
		s.network(1, "oracle-1", "oracle-2")
		req, err := s.svc.RequestVerification(s.asCaller("anyone"), s.identity, id.VerificationEmail, s.evidence)
		s.Require().NoError(err)
		_, err = s.svc.SubmitVote(s.asCaller("oracle-1"), req.ID, models.VoteConfirm)
		s.Require().NoError(err)

		fresh, err := s.svc.RequestVerification(s.asCaller("anyone"), s.identity, id.VerificationEmail, s.evidence)
		s.Require().NoError(err)
		s.Equal(req.ID, fresh.ID)
		s.Equal(models.RequestStatusPending, fresh.Status)
	})
}

func (s *OracleServiceSuite) TestExpireStaleRequests() {
	s.Run("sweep closes only timed-out rounds", func() {
		s.network(2, "oracle-1", "oracle-2")
		_, err := s.svc.RequestVerification(s.asCaller("anyone"), s.identity, id.VerificationEmail, s.evidence)
		s.Require().NoError(err)

		later := s.base.Add(30 * time.Minute)
		_, err = s.svc.RequestVerification(s.asCallerAt("anyone", later), s.identity, id.VerificationPhone, s.evidence)
		s.Require().NoError(err)

		// 90 minutes in: the first round is stale, the second is not.
		closed, err := s.svc.ExpireStaleRequests(s.asCallerAt("sweeper", s.base.Add(90*time.Minute)))
		s.Require().NoError(err)
		s.Equal(1, closed)

		closed, err = s.svc.ExpireStaleRequests(s.asCallerAt("sweeper", s.base.Add(90*time.Minute)))
		s.Require().NoError(err)
		s.Zero(closed)
	})
}
