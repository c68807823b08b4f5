package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"drive-eval/backend/app/models"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "drive-eval:session:"

// RedisStore keeps sessions as JSON values that expire after ttl of inactivity.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (r *RedisStore) key(owner string) string {
	return redisKeyPrefix + models.UsernameKey(owner)
}

func (r *RedisStore) Load(ctx context.Context, owner string) (*Session, error) {
	b, err := r.rdb.Get(ctx, r.key(owner)).Bytes()
	if errors.Is(err, redis.Nil) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if s.Selected == nil {
		s.Selected = []models.ErrorCode{}
	}
	return &s, nil
}

func (r *RedisStore) Save(ctx context.Context, owner string, s *Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.rdb.Set(ctx, r.key(owner), b, r.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, owner string) error {
	if err := r.rdb.Del(ctx, r.key(owner)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
