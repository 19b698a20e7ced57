package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// KV is a Redis-backed ephemeral key-value store with TTL support.
type KV struct {
	rdb    redis.Cmdable
	prefix string
}

func NewKV(rdb redis.Cmdable) *KV {
	return &KV{rdb: rdb}
}

// WithPrefix namespaces every key, e.g. per deployment.
func (k *KV) WithPrefix(prefix string) *KV {
	k.prefix = prefix
	return k
}

func (k *KV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return k.rdb.Set(ctx, k.prefix+key, value, ttl).Err()
}

// Take reads and deletes key atomically (GETDEL), so only one caller can win it.
func (k *KV) Take(ctx context.Context, key string) ([]byte, bool, error) {
	return bytesOrMiss(k.rdb.GetDel(ctx, k.prefix+key).Bytes())
}

func bytesOrMiss(b []byte, err error) ([]byte, bool, error) {
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}
