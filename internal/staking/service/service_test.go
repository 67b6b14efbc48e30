package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trustgrid/internal/staking/models"
	"trustgrid/internal/staking/store"
	id "trustgrid/pkg/domain"
	dErrors "trustgrid/pkg/domain-errors"
	"trustgrid/pkg/requestcontext"
)

const (
	adminKey   = id.Key("pool-admin")
	slasherKey = id.Key("dispute-authority")
	stakerKey  = id.Key("staker-1")
)

type fakeNotifier struct {
	snapshots map[id.Key]uint64
}

func (f *fakeNotifier) UpdateStakeSnapshot(_ context.Context, owner id.Key, staked uint64) error {
	if f.snapshots == nil {
		f.snapshots = map[id.Key]uint64{}
	}
	f.snapshots[owner] = staked
	return nil
}

type fakeRecorder struct {
	deposits []id.Key
	slashes  []id.Key
}

func (f *fakeRecorder) RecordStakeDeposited(_ context.Context, owner id.Key) error {
	f.deposits = append(f.deposits, owner)
	return nil
}

func (f *fakeRecorder) RecordStakeSlashed(_ context.Context, owner id.Key) error {
	f.slashes = append(f.slashes, owner)
	return nil
}

type StakingServiceSuite struct {
	suite.Suite
	svc      *Service
	notifier *fakeNotifier
	recorder *fakeRecorder
	base     time.Time
}

func TestStakingServiceSuite(t *testing.T) {
	suite.Run(t, new(StakingServiceSuite))
}

func (s *StakingServiceSuite) SetupTest() {
	s.notifier = &fakeNotifier{}
	s.recorder = &fakeRecorder{}
	s.base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.svc = New(store.NewInMemory(), adminKey,
		WithSlasher(slasherKey),
		WithIdentityNotifier(s.notifier),
		WithReputationRecorder(s.recorder),
	)
}

func (s *StakingServiceSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.base)
}

func (s *StakingServiceSuite) ctxAt(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

// initPool rebuilds the service with a fresh store so subtests stay isolated.
func (s *StakingServiceSuite) initPool(minStake uint64, cooldown time.Duration) {
	s.SetupTest()
	_, err := s.svc.InitializePool(s.ctx(), adminKey, minStake, 500, cooldown)
	s.Require().NoError(err)
}

func (s *StakingServiceSuite) TestInitializePool() {
	s.Run("admin initializes once", func() {
		pool, err := s.svc.InitializePool(s.ctx(), adminKey, 1_000, 500, 24*time.Hour)
		s.Require().NoError(err)
		s.Equal(uint64(1_000), pool.MinStake)

		_, err = s.svc.InitializePool(s.ctx(), adminKey, 1_000, 500, 24*time.Hour)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("non-admin rejected", func() {
		_, err := s.svc.InitializePool(s.ctx(), stakerKey, 1_000, 500, 24*time.Hour)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *StakingServiceSuite) TestStake() {
	s.Run("deposit credits account, pool, and side channels", func() {
		s.initPool(1_000, 24*time.Hour)
		account, err := s.svc.Stake(s.ctx(), stakerKey, 5_000)
		s.Require().NoError(err)
		s.Equal(uint64(5_000), account.StakedAmount)

		pool, err := s.svc.GetPool(s.ctx())
		s.Require().NoError(err)
		s.Equal(uint64(5_000), pool.TotalStaked)

		s.Equal(uint64(5_000), s.notifier.snapshots[stakerKey])
		s.Equal([]id.Key{stakerKey}, s.recorder.deposits)
	})

	s.Run("deposit below minimum rejected", func() {
		s.initPool(1_000, 24*time.Hour)
		_, err := s.svc.Stake(s.ctx(), stakerKey, 999)
		s.True(dErrors.HasReason(err, dErrors.ReasonInsufficientStakeAmount))
	})

	s.Run("deposit blocked while paused", func() {
		s.initPool(1_000, 24*time.Hour)
		_, err := s.svc.SetPoolPaused(s.ctx(), adminKey, true)
		s.Require().NoError(err)

		_, err = s.svc.Stake(s.ctx(), stakerKey, 5_000)
		s.True(dErrors.HasReason(err, dErrors.ReasonPoolPaused))
	})
}

func (s *StakingServiceSuite) TestUnstakeLifecycle() {
	cooldown := 7 * 24 * time.Hour

	s.Run("request then complete after the cooldown", func() {
		s.initPool(1_000, cooldown)
		_, err := s.svc.Stake(s.ctx(), stakerKey, 5_000)
		s.Require().NoError(err)

		_, err = s.svc.RequestUnstake(s.ctx(), stakerKey, 2_000)
		s.Require().NoError(err)

		_, _, err = s.svc.CompleteUnstake(s.ctxAt(s.base.Add(cooldown-time.Minute)), stakerKey)
		s.True(dErrors.HasReason(err, dErrors.ReasonCooldownNotElapsed))

		account, released, err := s.svc.CompleteUnstake(s.ctxAt(s.base.Add(cooldown)), stakerKey)
		s.Require().NoError(err)
		s.Equal(uint64(2_000), released)
		s.Equal(uint64(3_000), account.StakedAmount)

		pool, err := s.svc.GetPool(s.ctx())
		s.Require().NoError(err)
		s.Equal(uint64(3_000), pool.TotalStaked)
	})

	s.Run("only one request at a time", func() {
		s.initPool(1_000, cooldown)
		_, err := s.svc.Stake(s.ctx(), stakerKey, 5_000)
		s.Require().NoError(err)
		_, err = s.svc.RequestUnstake(s.ctx(), stakerKey, 2_000)
		s.Require().NoError(err)

		_, err = s.svc.RequestUnstake(s.ctx(), stakerKey, 1_000)
		s.True(dErrors.HasReason(err, dErrors.ReasonUnstakeAlreadyRequested))
	})

	s.Run("cancel frees the slot", func() {
		s.initPool(1_000, cooldown)
		_, err := s.svc.Stake(s.ctx(), stakerKey, 5_000)
		s.Require().NoError(err)
		_, err = s.svc.RequestUnstake(s.ctx(), stakerKey, 2_000)
		s.Require().NoError(err)

		account, err := s.svc.CancelUnstake(s.ctx(), stakerKey)
		s.Require().NoError(err)
		s.False(account.HasPendingUnstake())

		_, err = s.svc.RequestUnstake(s.ctx(), stakerKey, 1_000)
		s.NoError(err)
	})

	s.Run("pause blocks new requests but not completion", func() {
		s.initPool(1_000, cooldown)
		_, err := s.svc.Stake(s.ctx(), stakerKey, 5_000)
		s.Require().NoError(err)
		_, err = s.svc.RequestUnstake(s.ctx(), stakerKey, 2_000)
		s.Require().NoError(err)

		_, err = s.svc.SetPoolPaused(s.ctx(), adminKey, true)
		s.Require().NoError(err)

		_, released, err := s.svc.CompleteUnstake(s.ctxAt(s.base.Add(cooldown)), stakerKey)
		s.Require().NoError(err)
		s.Equal(uint64(2_000), released)
	})
}

func (s *StakingServiceSuite) TestSlash() {
	s.Run("slasher key is authorized", func() {
		s.initPool(1_000, 24*time.Hour)
		_, err := s.svc.Stake(s.ctx(), stakerKey, 5_000)
		s.Require().NoError(err)

		account, slashed, err := s.svc.Slash(s.ctx(), slasherKey, stakerKey, 2_000, "false verification")
		s.Require().NoError(err)
		s.Equal(uint64(2_000), slashed)
		s.Equal(uint64(3_000), account.StakedAmount)
		s.Equal(uint32(1), account.SlashCount)
		s.Equal([]id.Key{stakerKey}, s.recorder.slashes)
		s.Equal(uint64(3_000), s.notifier.snapshots[stakerKey])
	})

	s.Run("oversized slash is clamped to the balance", func() {
		s.initPool(1_000, 24*time.Hour)
		_, err := s.svc.Stake(s.ctx(), stakerKey, 5_000)
		s.Require().NoError(err)

		_, slashed, err := s.svc.Slash(s.ctx(), adminKey, stakerKey, 99_999, "misconduct")
		s.Require().NoError(err)
		s.Equal(uint64(5_000), slashed)

		pool, err := s.svc.GetPool(s.ctx())
		s.Require().NoError(err)
		s.Zero(pool.TotalStaked)
	})

	s.Run("slash shrinks a pending release", func() {
		cooldown := 24 * time.Hour
		s.initPool(1_000, cooldown)
		_, err := s.svc.Stake(s.ctx(), stakerKey, 5_000)
		s.Require().NoError(err)
		_, err = s.svc.RequestUnstake(s.ctx(), stakerKey, 2_000)
		s.Require().NoError(err)

		_, _, err = s.svc.Slash(s.ctx(), slasherKey, stakerKey, 4_000, "misconduct")
		s.Require().NoError(err)

		account, released, err := s.svc.CompleteUnstake(s.ctxAt(s.base.Add(cooldown)), stakerKey)
		s.Require().NoError(err)
		s.Equal(uint64(1_000), released)
		s.Zero(account.StakedAmount)
	})

	s.Run("unauthorized caller rejected", func() {
		s.initPool(1_000, 24*time.Hour)
		_, err := s.svc.Stake(s.ctx(), stakerKey, 5_000)
		s.Require().NoError(err)

		_, _, err = s.svc.Slash(s.ctx(), stakerKey, stakerKey, 1_000, "self report")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *StakingServiceSuite) TestRewardsAndConfig() {
	s.Run("rewards accrue at the pool rate", func() {
		s.initPool(1_000, 24*time.Hour)
		_, err := s.svc.Stake(s.ctx(), stakerKey, 10_000)
		s.Require().NoError(err)

		account, err := s.svc.AccrueRewards(s.ctx(), stakerKey, 3)
		s.Require().NoError(err)
		s.Equal(uint64(10_000*500*3/10_000), account.RewardsAccrued)
	})

	s.Run("config update is admin-only and versions forward", func() {
		s.initPool(1_000, 24*time.Hour)
		newMin := uint64(2_000)
		_, err := s.svc.UpdatePoolConfig(s.ctx(), stakerKey, models.PoolConfigUpdate{MinStake: &newMin})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

		pool, err := s.svc.UpdatePoolConfig(s.ctx(), adminKey, models.PoolConfigUpdate{MinStake: &newMin})
		s.Require().NoError(err)
		s.Equal(uint64(2_000), pool.MinStake)

		_, err = s.svc.Stake(s.ctx(), stakerKey, 1_500)
		s.True(dErrors.HasReason(err, dErrors.ReasonInsufficientStakeAmount))
	})

	s.Run("missing account surfaces not found", func() {
		s.initPool(1_000, 24*time.Hour)
		_, err := s.svc.GetAccount(s.ctx(), id.Key("nobody"))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
