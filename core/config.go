package core

import (
	"time"

	jwtkit "github.com/open-rails/otpkit/jwt"
)

// Config is the host-facing configuration: issuer, durations, code policy and keys.
type Config struct {
	Issuer          string
	IssuedAudiences []string // every issued access token carries all of these
	// AccessTokenDuration defaults to 1h; RefreshTokenDuration defaults to 30 days.
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration

	// BaseURL prefixes magic links (e.g. "https://app.example.com").
	BaseURL       string
	MagicLinkPath string
	MagicLinkTTL  time.Duration

	CodeTTL        time.Duration
	ResendCooldown time.Duration
	MaxAttempts    int
	CodeLength     int

	DefaultAccountType string
	// AccountTypes defaults to DefaultAccountType and "creator".
	AccountTypes []string
	// KeepPhoneOnFile stops a verified phone from replacing a different phone already
	// on the resolved account. A missing phone is still backfilled.
	KeepPhoneOnFile bool

	// Keys may be nil, in which case keys come from jwtkit.NewAutoKeySource.
	Keys jwtkit.KeySource
}
