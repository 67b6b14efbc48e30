package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trustgrid/internal/reputation/models"
	"trustgrid/internal/reputation/store"
	id "trustgrid/pkg/domain"
	dErrors "trustgrid/pkg/domain-errors"
	"trustgrid/pkg/requestcontext"
)

type fakeSnapshots struct {
	scores map[id.IdentityID]int64
}

func (f *fakeSnapshots) UpdateReputationSnapshot(_ context.Context, identityID id.IdentityID, score int64) error {
	if f.scores == nil {
		f.scores = map[id.IdentityID]int64{}
	}
	f.scores[identityID] = score
	return nil
}

type ReputationServiceSuite struct {
	suite.Suite
	svc       *Service
	snapshots *fakeSnapshots
	ctx       context.Context
	identity  id.IdentityID
}

func TestReputationServiceSuite(t *testing.T) {
	suite.Run(t, new(ReputationServiceSuite))
}

func (s *ReputationServiceSuite) SetupTest() {
	s.snapshots = &fakeSnapshots{}
	s.svc = New(store.NewInMemory(), models.DefaultParams, WithIdentitySnapshots(s.snapshots))
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s.identity = id.IdentityIDFor("owner-1")
}

func (s *ReputationServiceSuite) TestInitializeScore() {
	s.Run("starts at the base score", func() {
		score, err := s.svc.InitializeScore(s.ctx, s.identity)
		s.Require().NoError(err)
		s.Equal(models.DefaultParams.BaseScore, score.Value)
		s.Equal(models.TierSilver, score.Tier)
	})

	s.Run("double initialization rejected", func() {
		_, err := s.svc.InitializeScore(s.ctx, s.identity)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ReputationServiceSuite) TestApplyEvent() {
	s.Run("event moves the score and the identity snapshot", func() {
		_, err := s.svc.InitializeScore(s.ctx, s.identity)
		s.Require().NoError(err)

		score, err := s.svc.ApplyEvent(s.ctx, s.identity, models.EventVerificationCompleted)
		s.Require().NoError(err)
		s.Equal(int64(550), score.Value)
		s.Equal(int64(550), s.snapshots.scores[s.identity])
	})

	s.Run("uninitialized identity not found", func() {
		_, err := s.svc.ApplyEvent(s.ctx, id.IdentityIDFor("nobody"), models.EventStakeDeposited)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("invalid event type rejected", func() {
		_, err := s.svc.ApplyEvent(s.ctx, s.identity, models.EventType(99))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *ReputationServiceSuite) TestApplyDecay() {
	s.Run("decay subtracts the rate-scaled amount", func() {
		_, err := s.svc.InitializeScore(s.ctx, s.identity)
		s.Require().NoError(err)

		// 500 * 10bps * 30 days / 10_000 = 15 points.
		score, err := s.svc.ApplyDecay(s.ctx, s.identity, 30)
		s.Require().NoError(err)
		s.Equal(int64(485), score.Value)
		s.Equal(int64(485), s.snapshots.scores[s.identity])
	})

	s.Run("negative days rejected", func() {
		_, err := s.svc.ApplyDecay(s.ctx, s.identity, -1)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ReputationServiceSuite) TestChallengeReputation() {
	s.Run("challenge counts without moving the score", func() {
		_, err := s.svc.InitializeScore(s.ctx, s.identity)
		s.Require().NoError(err)

		ctx := requestcontext.WithCallerKey(s.ctx, "challenger-1")
		score, err := s.svc.ChallengeReputation(ctx, s.identity, "credential looks forged", "ipfs://evidence")
		s.Require().NoError(err)
		s.Equal(uint64(1), score.ChallengesReceived)
		s.Equal(models.DefaultParams.BaseScore, score.Value)
	})

	s.Run("empty reason rejected", func() {
		_, err := s.svc.ChallengeReputation(s.ctx, s.identity, "", "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("oversized reason rejected", func() {
		long := strings.Repeat("x", models.MaxChallengeReasonLen+1)
		_, err := s.svc.ChallengeReputation(s.ctx, s.identity, long, "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("oversized evidence URI rejected", func() {
		long := "ipfs://" + strings.Repeat("x", models.MaxChallengeURILen)
		_, err := s.svc.ChallengeReputation(s.ctx, s.identity, "reason", long)
		s.True(dErrors.HasReason(err, dErrors.ReasonURITooLong))
	})

	s.Run("uninitialized identity not found", func() {
		_, err := s.svc.ChallengeReputation(s.ctx, id.IdentityIDFor("nobody"), "reason", "")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ReputationServiceSuite) TestResolveChallenge() {
	s.Run("won challenge bumps the counter and keeps the score", func() {
		_, err := s.svc.InitializeScore(s.ctx, s.identity)
		s.Require().NoError(err)
		_, err = s.svc.ChallengeReputation(s.ctx, s.identity, "disputed", "")
		s.Require().NoError(err)

		score, err := s.svc.ResolveChallenge(s.ctx, s.identity, true, 200)
		s.Require().NoError(err)
		s.Equal(uint64(1), score.ChallengesWon)
		s.Equal(models.DefaultParams.BaseScore, score.Value)
	})

	s.Run("lost challenge deducts the penalty and refreshes the snapshot", func() {
		identity := id.IdentityIDFor("owner-2")
		_, err := s.svc.InitializeScore(s.ctx, identity)
		s.Require().NoError(err)
		_, err = s.svc.ChallengeReputation(s.ctx, identity, "disputed", "")
		s.Require().NoError(err)

		score, err := s.svc.ResolveChallenge(s.ctx, identity, false, 200)
		s.Require().NoError(err)
		s.Equal(int64(300), score.Value)
		s.Equal(models.TierBronze, score.Tier)
		s.Zero(score.ChallengesWon)
		s.Equal(int64(300), s.snapshots.scores[identity])
	})

	s.Run("negative penalty rejected", func() {
		_, err := s.svc.ResolveChallenge(s.ctx, s.identity, false, -1)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("uninitialized identity not found", func() {
		_, err := s.svc.ResolveChallenge(s.ctx, id.IdentityIDFor("nobody"), true, 0)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ReputationServiceSuite) TestGetScore() {
	s.Run("missing score not found", func() {
		_, err := s.svc.GetScore(s.ctx, id.IdentityIDFor("nobody"))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
