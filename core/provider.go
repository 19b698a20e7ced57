package core

import (
	"context"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	jwtkit "github.com/open-rails/otpkit/jwt"
)

// Verifier is the minimal surface needed to validate access tokens.
type Verifier interface {
	JWKS() (jwk.Set, error)
	Keyfunc() func(token *jwt.Token) (any, error)
	ParseAccessToken(token string) (*jwtkit.AccessClaims, error)
	Options() Options
}

// Provider is the surface the built-in HTTP handlers need. *Service implements it.
type Provider interface {
	Verifier
	SendOTP(ctx context.Context, req SendRequest) (*SendResult, error)
	VerifyOTP(ctx context.Context, req VerifyRequest) (*VerifyResult, error)
	RedeemMagicLink(ctx context.Context, token string) (*TokenPair, error)
	ExchangeRefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error)
	HasSMSSender() bool
}

var _ Provider = (*Service)(nil)
