package redislimiter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limit is the max number of hits allowed per Window.
type Limit struct {
	Limit  int
	Window time.Duration
}

// Limiter is a Redis sliding-window limiter backed by one ZSET per key.
type Limiter struct {
	rdb    redis.Cmdable
	limits map[string]Limit
	prefix string
}

func New(rdb redis.Cmdable, limits map[string]Limit) *Limiter {
	if limits == nil {
		limits = map[string]Limit{}
	}
	return &Limiter{rdb: rdb, limits: limits, prefix: "otpkit:rl:"}
}

func (l *Limiter) limitFor(bucket string) Limit {
	if v, ok := l.limits[bucket]; ok {
		return v
	}
	if v, ok := l.limits["default"]; ok {
		return v
	}
	return Limit{Limit: 100, Window: time.Minute}
}

func (l *Limiter) AllowNamed(ctx context.Context, bucket, key string) (bool, error) {
	if l == nil || l.rdb == nil {
		return true, nil
	}
	if bucket == "" || key == "" {
		return false, fmt.Errorf("bucket and key required")
	}
	lim := l.limitFor(bucket)
	now := time.Now().UnixNano()
	start := now - lim.Window.Nanoseconds()
	k := l.prefix + key + ":" + bucket
	member := strconv.FormatInt(now, 10)

	pipe := l.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, k, "0", strconv.FormatInt(start, 10))
	pipe.ZAdd(ctx, k, redis.Z{Score: float64(now), Member: member})
	count := pipe.ZCard(ctx, k)
	pipe.Expire(ctx, k, lim.Window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	if count.Val() > int64(lim.Limit) {
		l.rdb.ZRem(ctx, k, member)
		return false, nil
	}
	return true, nil
}
