// internal/pkg/idempotency/redis.go
package idempotency

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Store 以业务键（PaymentID、OrderID 等）探测重复投递。
// 这只是快速去重层：真正的幂等兜底是数据库里的状态 CAS，
// Redis 丢数据时最多多走一次 CAS 的幂等分支。
type Store interface {
	// FirstSeen 原子地登记 key，第一次见到返回 true。
	FirstSeen(ctx context.Context, key string) (bool, error)
	// Forget 撤销登记：处理失败后调用，让重投递能重新进入。
	Forget(ctx context.Context, key string) error
}

type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// redisKey 拼出完整的 Redis key。prefix 不带尾部冒号，
// 例如 prefix "order:processed" + key "settle:x" → "order:processed:settle:x"。
func (s *RedisStore) redisKey(key string) string {
	return s.prefix + ":" + key
}

func (s *RedisStore) FirstSeen(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.redisKey(key), 1, s.ttl).Result()
	if err != nil {
		return false, errors.Wrapf(err, "dedup check %s", key)
	}
	return ok, nil
}

func (s *RedisStore) Forget(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return errors.Wrapf(err, "dedup forget %s", key)
	}
	return nil
}
