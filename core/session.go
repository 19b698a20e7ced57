package core

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/mr-tron/base58"
	jwtkit "github.com/open-rails/otpkit/jwt"
)

// SessionIssuer mints the login artifact handed back by a successful verification.
type SessionIssuer interface {
	IssueSession(ctx context.Context, u *User) (*SessionArtifact, error)
}

// TokenPair is an access token plus the refresh token that renews it.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	// ExpiresIn is the access token lifetime as issued.
	ExpiresIn time.Duration
}

// SessionArtifact is what the client receives after verification: a single-use magic
// link and, when the issuer provides one, a ready session.
type SessionArtifact struct {
	MagicLink string
	Session   *TokenPair
}

type magicLinkData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func (s *Service) sessionIssuer() SessionIssuer {
	if s.issuer != nil {
		return s.issuer
	}
	return s
}

// IssueSession is the built-in SessionIssuer: a magic link redeemable once within
// MagicLinkTTL plus an access/refresh token pair.
func (s *Service) IssueSession(ctx context.Context, u *User) (*SessionArtifact, error) {
	if u == nil {
		return nil, errors.New("nil user")
	}
	link, err := s.createMagicLink(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("magic link: %w", err)
	}
	pair, err := s.issueTokenPair(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("token pair: %w", err)
	}
	return &SessionArtifact{MagicLink: link, Session: pair}, nil
}

func (s *Service) createMagicLink(ctx context.Context, u *User) (string, error) {
	b, err := randBytes(32)
	if err != nil {
		return "", err
	}
	token := base58.Encode(b)
	if err := s.ephemSetJSON(ctx, keyMagicLink+sha256Hex(token), magicLinkData{UserID: u.ID, Email: u.Email}, s.opts.MagicLinkTTL); err != nil {
		return "", err
	}
	return strings.TrimRight(s.opts.BaseURL, "/") + s.opts.MagicLinkPath + "?token=" + url.QueryEscape(token), nil
}

// RedeemMagicLink exchanges a magic link token for a fresh session. Each token works once.
func (s *Service) RedeemMagicLink(ctx context.Context, token string) (*TokenPair, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMagicLinkInvalid
	}
	if _, err := base58.Decode(token); err != nil {
		return nil, ErrMagicLinkInvalid
	}
	var data magicLinkData
	ok, err := s.ephemTakeJSON(ctx, keyMagicLink+sha256Hex(token), &data)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrMagicLinkInvalid
	}
	u, err := s.identities.GetUserByID(ctx, data.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrMagicLinkInvalid
	}
	return s.issueTokenPair(ctx, u)
}

func (s *Service) issueTokenPair(ctx context.Context, u *User) (*TokenPair, error) {
	if s.sessions == nil {
		return nil, errors.New("session store not configured")
	}
	b, err := randBytes(32)
	if err != nil {
		return nil, err
	}
	rt := base58.Encode(b)
	now := s.now()
	rs := RefreshSession{
		ID:               uuid.NewString(),
		FamilyID:         uuid.NewString(),
		UserID:           u.ID,
		CurrentTokenHash: sha256Hex(rt),
		CreatedAt:        now,
		LastUsedAt:       now,
	}
	if s.opts.RefreshTokenDuration > 0 {
		exp := now.Add(s.opts.RefreshTokenDuration)
		rs.ExpiresAt = &exp
	}
	if err := s.sessions.CreateSession(ctx, rs); err != nil {
		return nil, err
	}
	at, exp, err := s.IssueAccessToken(ctx, u, rs.ID)
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, AuthEvent{Event: EventSessionCreated, UserID: u.ID})
	return &TokenPair{AccessToken: at, RefreshToken: rt, ExpiresAt: exp, ExpiresIn: s.opts.AccessTokenDuration}, nil
}

// ExchangeRefreshToken rotates a refresh token and returns a new pair. Replaying an
// already-rotated token revokes every session in its family.
func (s *Service) ExchangeRefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if s.sessions == nil {
		return nil, errors.New("session store not configured")
	}
	if strings.TrimSpace(refreshToken) == "" {
		return nil, ErrSessionNotFound
	}
	b, err := randBytes(32)
	if err != nil {
		return nil, err
	}
	next := base58.Encode(b)
	rs, err := s.sessions.RotateSession(ctx, sha256Hex(refreshToken), sha256Hex(next), s.now())
	if err != nil {
		if errors.Is(err, ErrRefreshReuse) {
			s.log.WithContext(ctx).Warn("refresh token reuse detected; session family revoked")
		}
		return nil, err
	}
	u, err := s.identities.GetUserByID(ctx, rs.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrSessionNotFound
	}
	at, exp, err := s.IssueAccessToken(ctx, u, rs.ID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: at, RefreshToken: next, ExpiresAt: exp, ExpiresIn: s.opts.AccessTokenDuration}, nil
}

// IssueAccessToken signs an access token for u bound to the refresh session sid.
func (s *Service) IssueAccessToken(ctx context.Context, u *User, sid string) (token string, expiresAt time.Time, err error) {
	if s.keys.Active == nil {
		return "", time.Time{}, errors.New("no active signing key")
	}
	claims := jwtkit.NewAccessClaims(s.opts.Issuer, u.ID, s.opts.IssuedAudiences, s.now(), s.opts.AccessTokenDuration)
	claims.Email = u.Email
	claims.AccountType = u.AccountType
	claims.SessionID = sid
	if u.Phone != nil {
		claims.PhoneNumber = *u.Phone
	}
	tok, err := s.keys.Active.Sign(ctx, claims)
	return tok, claims.ExpiresAt.Time, err
}

// ParseAccessToken verifies signature, iss, aud and exp against the service clock.
func (s *Service) ParseAccessToken(token string) (*jwtkit.AccessClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(s.opts.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(accessTokenLeeway),
		jwt.WithTimeFunc(s.now),
	}
	if len(s.opts.IssuedAudiences) > 0 {
		opts = append(opts, jwt.WithAudience(s.opts.IssuedAudiences[0]))
	}
	claims := &jwtkit.AccessClaims{}
	if _, err := jwt.ParseWithClaims(token, claims, s.Keyfunc(), opts...); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// JWKS returns the public key set for token verification.
func (s *Service) JWKS() (jwk.Set, error) {
	return jwtkit.BuildJWKS(s.keys.PublicKeys)
}
