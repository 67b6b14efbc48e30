//go:build integration

package httptransport_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	platformredis "trustgrid/internal/platform/redis"
	httptransport "trustgrid/internal/transport/http"
	id "trustgrid/pkg/domain"
	"trustgrid/pkg/testutil/containers"
)

type SnapshotCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *httptransport.SnapshotCache
}

func TestSnapshotCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(SnapshotCacheSuite))
}

func (s *SnapshotCacheSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	client := &platformredis.Client{Client: s.redis.Client}
	s.cache = httptransport.NewSnapshotCache(client, time.Minute)
}

func (s *SnapshotCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *SnapshotCacheSuite) snapshot(identity id.IdentityID) *httptransport.TrustSnapshot {
	return &httptransport.TrustSnapshot{
		IdentityID:   identity.String(),
		OwnerKey:     "owner-1",
		DID:          "did:sov:alice",
		Score:        720,
		Tier:         "platinum",
		StakedAmount: 5_000,
		GeneratedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
}

func (s *SnapshotCacheSuite) TestSetGetInvalidate() {
	ctx := context.Background()
	identity := id.IdentityIDFor("owner-1")

	_, ok := s.cache.Get(ctx, identity)
	s.False(ok)

	want := s.snapshot(identity)
	s.cache.Set(ctx, identity, want)

	got, ok := s.cache.Get(ctx, identity)
	s.Require().True(ok)
	s.Equal(want.IdentityID, got.IdentityID)
	s.Equal(want.Score, got.Score)
	s.Equal(want.Tier, got.Tier)

	s.Require().NoError(s.cache.Invalidate(ctx, identity))
	_, ok = s.cache.Get(ctx, identity)
	s.False(ok)
}

func (s *SnapshotCacheSuite) TestEntriesAreScopedPerIdentity() {
	ctx := context.Background()
	first := id.IdentityIDFor("owner-1")
	second := id.IdentityIDFor("owner-2")

	s.cache.Set(ctx, first, s.snapshot(first))
	s.cache.Set(ctx, second, s.snapshot(second))

	s.Require().NoError(s.cache.Invalidate(ctx, first))
	_, ok := s.cache.Get(ctx, first)
	s.False(ok)
	_, ok = s.cache.Get(ctx, second)
	s.True(ok)
}

func (s *SnapshotCacheSuite) TestTTLExpiry() {
	ctx := context.Background()
	identity := id.IdentityIDFor("owner-1")

	client := &platformredis.Client{Client: s.redis.Client}
	shortCache := httptransport.NewSnapshotCache(client, 500*time.Millisecond)
	shortCache.Set(ctx, identity, s.snapshot(identity))

	_, ok := shortCache.Get(ctx, identity)
	s.Require().True(ok)

	s.Eventually(func() bool {
		_, ok := shortCache.Get(ctx, identity)
		return !ok
	}, 5*time.Second, 100*time.Millisecond)
}
