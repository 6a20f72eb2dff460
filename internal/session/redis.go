package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "portal_session:"

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(id string) string {
	return redisKeyPrefix + HashID(id)
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	raw, err := s.client.Get(ctx, redisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeRecord(id, raw)
}

func (s *RedisStore) Save(ctx context.Context, rec *Record) error {
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return s.Delete(ctx, rec.ID)
	}
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKey(rec.ID), data, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, redisKey(id)).Err()
}

// Sweep is a no-op: Redis expires keys itself.
func (s *RedisStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}
