package signedurl

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "ugcvideo:signedurl:"

// RedisStore shares signed URLs between instances. Redis expiry replaces
// the sweep.
type RedisStore struct {
	rdb redis.UniversalClient
}

// NewRedisStore wraps rdb.
func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	url, err := r.rdb.Get(ctx, redisPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return url, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key, url string, ttl time.Duration) error {
	return r.rdb.Set(ctx, redisPrefix+key, url, ttl).Err()
}
