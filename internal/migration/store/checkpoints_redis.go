package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const checkpointKeyPrefix = "studbook:backfill:"

// CheckpointRedis stores backfill checkpoints in Redis. Checkpoints are an
// optimization, not a source of truth: losing one re-runs already-linked
// chunks, which the backfill is idempotent against.
type CheckpointRedis struct {
	client redis.Cmdable
}

// NewCheckpointRedis constructs a Redis-backed checkpoint store.
func NewCheckpointRedis(client redis.Cmdable) *CheckpointRedis {
	return &CheckpointRedis{client: client}
}

func (s *CheckpointRedis) Load(ctx context.Context, key string) (int64, bool, error) {
	value, err := s.client.Get(ctx, checkpointKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load checkpoint: %w", err)
	}
	lastPK, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse checkpoint %q: %w", value, err)
	}
	return lastPK, true, nil
}

func (s *CheckpointRedis) Save(ctx context.Context, key string, lastPK int64) error {
	if err := s.client.Set(ctx, checkpointKeyPrefix+key, strconv.FormatInt(lastPK, 10), 0).Err(); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (s *CheckpointRedis) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, checkpointKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}
