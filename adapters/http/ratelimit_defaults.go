package authhttp

import (
	"time"

	memorylimiter "github.com/open-rails/otpkit/ratelimit/memory"
	redislimiter "github.com/open-rails/otpkit/ratelimit/redis"
)

// Limit configures a named rate limit bucket.
type Limit struct {
	Limit  int
	Window time.Duration
}

// DefaultRateLimits returns the per-IP limits for each endpoint. They sit on top of the
// per-phone resend cooldown and per-code attempt cap enforced by core.
func DefaultRateLimits() map[string]Limit {
	return map[string]Limit{
		"default": {Limit: 120, Window: time.Minute},

		RLSendOTP:         {Limit: 10, Window: 10 * time.Minute},
		RLVerifyOTP:       {Limit: 30, Window: 10 * time.Minute},
		RLMagicLinkRedeem: {Limit: 30, Window: 10 * time.Minute},
		RLAuthToken:       {Limit: 30, Window: time.Minute},
	}
}

func ToMemoryLimits(in map[string]Limit) map[string]memorylimiter.Limit {
	out := make(map[string]memorylimiter.Limit, len(in))
	for k, v := range in {
		out[k] = memorylimiter.Limit{Limit: v.Limit, Window: v.Window}
	}
	return out
}

func ToRedisLimits(in map[string]Limit) map[string]redislimiter.Limit {
	out := make(map[string]redislimiter.Limit, len(in))
	for k, v := range in {
		out[k] = redislimiter.Limit{Limit: v.Limit, Window: v.Window}
	}
	return out
}
