package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "trustgrid/pkg/domain-errors"
)

type StakeAccountSuite struct {
	suite.Suite
	now time.Time
}

func TestStakeAccountSuite(t *testing.T) {
	suite.Run(t, new(StakeAccountSuite))
}

func (s *StakeAccountSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func (s *StakeAccountSuite) account(staked uint64) *StakeAccount {
	account, err := NewStakeAccount("staker-1", s.now)
	s.Require().NoError(err)
	account.ApplyStake(staked, s.now)
	return account
}

func (s *StakeAccountSuite) TestUnstakeRequest() {
	s.Run("request reserves the amount and starts the clock", func() {
		account := s.account(5_000)
		s.Require().NoError(account.CanRequestUnstake(2_000))
		account.ApplyUnstakeRequest(2_000, s.now)
		s.Equal(uint64(2_000), account.PendingUnstake)
		s.Require().NotNil(account.UnstakeRequestedAt)
		s.Equal(s.now, *account.UnstakeRequestedAt)
	})

	s.Run("second request rejected while one is pending", func() {
		account := s.account(5_000)
		account.ApplyUnstakeRequest(2_000, s.now)
		err := account.CanRequestUnstake(1_000)
		s.True(dErrors.HasReason(err, dErrors.ReasonUnstakeAlreadyRequested))
	})

	s.Run("request above balance rejected", func() {
		account := s.account(5_000)
		err := account.CanRequestUnstake(5_001)
		s.True(dErrors.HasReason(err, dErrors.ReasonInsufficientStakeAmount))
	})

	s.Run("zero amount rejected", func() {
		account := s.account(5_000)
		s.Error(account.CanRequestUnstake(0))
	})
}

func (s *StakeAccountSuite) TestUnstakeCompletion() {
	cooldown := 7 * 24 * time.Hour

	s.Run("completion blocked before the cooldown elapses", func() {
		account := s.account(5_000)
		account.ApplyUnstakeRequest(2_000, s.now)
		err := account.CanCompleteUnstake(cooldown, s.now.Add(cooldown-time.Second))
		s.True(dErrors.HasReason(err, dErrors.ReasonCooldownNotElapsed))
	})

	s.Run("completion releases the pending amount after cooldown", func() {
		account := s.account(5_000)
		account.ApplyUnstakeRequest(2_000, s.now)
		after := s.now.Add(cooldown)
		s.Require().NoError(account.CanCompleteUnstake(cooldown, after))
		released := account.ApplyUnstakeCompletion(after)
		s.Equal(uint64(2_000), released)
		s.Equal(uint64(3_000), account.StakedAmount)
		s.False(account.HasPendingUnstake())
	})

	s.Run("completion without a request rejected", func() {
		account := s.account(5_000)
		s.Error(account.CanCompleteUnstake(cooldown, s.now))
	})

	s.Run("slash during cooldown clamps the release", func() {
		account := s.account(5_000)
		account.ApplyUnstakeRequest(2_000, s.now)

		slashed := account.ApplySlash(4_000, s.now.Add(time.Hour))
		s.Equal(uint64(4_000), slashed)
		s.Equal(uint64(1_000), account.StakedAmount)
		// The request survives the slash untouched.
		s.Equal(uint64(2_000), account.PendingUnstake)

		released := account.ApplyUnstakeCompletion(s.now.Add(cooldown))
		s.Equal(uint64(1_000), released)
		s.Zero(account.StakedAmount)
	})
}

func (s *StakeAccountSuite) TestCancellation() {
	s.Run("cancel clears the request without moving funds", func() {
		account := s.account(5_000)
		account.ApplyUnstakeRequest(2_000, s.now)
		s.Require().NoError(account.ApplyUnstakeCancellation(s.now))
		s.Zero(account.PendingUnstake)
		s.False(account.HasPendingUnstake())
		s.Equal(uint64(5_000), account.StakedAmount)
	})

	s.Run("cancel without a request rejected", func() {
		account := s.account(5_000)
		s.Error(account.ApplyUnstakeCancellation(s.now))
	})
}

func (s *StakeAccountSuite) TestSlash() {
	s.Run("slash floors at zero and counts", func() {
		account := s.account(1_000)
		slashed := account.ApplySlash(9_999, s.now)
		s.Equal(uint64(1_000), slashed)
		s.Zero(account.StakedAmount)
		s.Equal(uint32(1), account.SlashCount)
	})
}

func (s *StakeAccountSuite) TestRewardAccrual() {
	s.Run("rewards accumulate without compounding", func() {
		account := s.account(10_000)
		earned := account.ApplyRewardAccrual(3, 500, s.now)
		s.Equal(uint64(10_000*500*3/10_000), earned)
		s.Equal(earned, account.RewardsAccrued)
		s.Equal(uint64(10_000), account.StakedAmount)
	})
}
