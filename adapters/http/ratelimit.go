package authhttp

import "context"

// RateLimiter is the per-IP limiter used by the handlers. The memory and redis
// limiters under ratelimit/ implement it.
type RateLimiter interface {
	AllowNamed(ctx context.Context, bucket, key string) (bool, error)
}
