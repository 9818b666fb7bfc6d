//go:build integration

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"studbook/internal/migration/store"
	"studbook/pkg/testutil/containers"
)

type RedisCheckpointSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *store.CheckpointRedis
}

func TestRedisCheckpointSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCheckpointSuite))
}

func (s *RedisCheckpointSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = store.NewCheckpointRedis(s.redis.Client)
}

func (s *RedisCheckpointSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCheckpointSuite) TestRoundTrip() {
	ctx := context.Background()

	_, found, err := s.store.Load(ctx, "invoices")
	s.Require().NoError(err)
	s.False(found)

	s.Require().NoError(s.store.Save(ctx, "invoices", 4200))
	lastPK, found, err := s.store.Load(ctx, "invoices")
	s.Require().NoError(err)
	s.True(found)
	s.Equal(int64(4200), lastPK)

	// Windowed keys do not collide with the plain table key.
	s.Require().NoError(s.store.Save(ctx, "invoices#1", 9000))
	lastPK, _, err = s.store.Load(ctx, "invoices")
	s.Require().NoError(err)
	s.Equal(int64(4200), lastPK)

	s.Require().NoError(s.store.Clear(ctx, "invoices"))
	_, found, err = s.store.Load(ctx, "invoices")
	s.Require().NoError(err)
	s.False(found)
}
