package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds our token, so an
// expired holder cannot release a lock taken over by another node.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLock is a non-blocking SET NX lock shared across instances.
type RedisLock struct {
	rdb redis.UniversalClient
}

// NewRedisLock wraps rdb. A nil client yields a nil lock.
func NewRedisLock(rdb redis.UniversalClient) *RedisLock {
	if rdb == nil {
		return nil
	}
	return &RedisLock{rdb: rdb}
}

// TryLock acquires key for ttl without waiting. When ok is false another
// holder owns the key. release must be called once the work is done.
func (l *RedisLock) TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error) {
	token := uuid.NewString()
	ok, err = l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return func() {}, false, nil
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.rdb, []string{key}, token).Err()
	}, true, nil
}
