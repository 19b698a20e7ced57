package core

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	jwtkit "github.com/open-rails/otpkit/jwt"
	"github.com/sirupsen/logrus"
)

// Options is the resolved, defaulted form of Config.
type Options struct {
	Issuer               string
	IssuedAudiences      []string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration

	BaseURL       string
	MagicLinkPath string
	MagicLinkTTL  time.Duration

	CodeTTL        time.Duration
	ResendCooldown time.Duration
	MaxAttempts    int
	CodeLength     int

	DefaultAccountType string
	// AccountTypes a verify request may ask for. DefaultAccountType is always allowed.
	AccountTypes    []string
	KeepPhoneOnFile bool
}

const (
	DefaultCodeTTL        = 10 * time.Minute
	DefaultResendCooldown = 60 * time.Second
	DefaultMaxAttempts    = 5
	DefaultCodeLength     = 6
	DefaultMagicLinkTTL   = 15 * time.Minute
	DefaultMagicLinkPath  = "/auth/magic-link"
	DefaultAccountType    = "user"
	CreatorAccountType    = "creator"

	accessTokenLeeway = time.Second
)

func (o Options) withDefaults() Options {
	if o.AccessTokenDuration <= 0 {
		o.AccessTokenDuration = time.Hour
	}
	if o.RefreshTokenDuration == 0 {
		o.RefreshTokenDuration = 30 * 24 * time.Hour
	}
	if o.MagicLinkPath == "" {
		o.MagicLinkPath = DefaultMagicLinkPath
	}
	if o.MagicLinkTTL <= 0 {
		o.MagicLinkTTL = DefaultMagicLinkTTL
	}
	if o.CodeTTL <= 0 {
		o.CodeTTL = DefaultCodeTTL
	}
	if o.ResendCooldown < 0 {
		o.ResendCooldown = 0
	} else if o.ResendCooldown == 0 {
		o.ResendCooldown = DefaultResendCooldown
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.CodeLength <= 0 {
		o.CodeLength = DefaultCodeLength
	}
	if o.DefaultAccountType == "" {
		o.DefaultAccountType = DefaultAccountType
	}
	if o.AccountTypes == nil {
		o.AccountTypes = []string{DefaultAccountType, CreatorAccountType}
	}
	return o
}

// Keyset holds the active signer and the public keys exposed via JWKS.
type Keyset struct {
	Active     jwtkit.Signer
	PublicKeys map[string]*rsa.PublicKey // kid -> pub
}

// SMSSender delivers verification codes.
type SMSSender interface {
	SendVerificationCode(ctx context.Context, phone, code string) error
}

// Service runs the send and verify flows over injected stores.
type Service struct {
	opts           Options
	keys           Keyset
	codes          CodeStore
	identities     IdentityStore
	sessions       SessionStore
	issuer         SessionIssuer
	sms            SMSSender
	ephemeralStore EphemeralStore
	ephemeralMode  EphemeralMode
	authlog        AuthEventLogger
	strategies     []ResolveStrategy
	log            *logrus.Logger
	now            func() time.Time
}

func NewService(opts Options, keys Keyset) *Service {
	l := logrus.StandardLogger()
	return &Service{
		opts:          opts.withDefaults(),
		keys:          keys,
		ephemeralMode: EphemeralMemory,
		authlog:       LogrusEventLogger{Logger: l},
		strategies:    DefaultStrategies(),
		log:           l,
		now:           time.Now,
	}
}

// NewFromConfig validates cfg and builds a Service. Keys are auto-discovered when cfg.Keys is nil.
func NewFromConfig(cfg Config) (*Service, error) {
	keySource := cfg.Keys
	if keySource == nil {
		var err error
		keySource, err = jwtkit.NewAutoKeySource()
		if err != nil {
			return nil, fmt.Errorf("otpkit: load JWT keys: %w", err)
		}
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, errors.New("otpkit: Issuer is required (e.g., \"https://myapp.com\")")
	}
	if len(cfg.IssuedAudiences) == 0 {
		return nil, errors.New("otpkit: IssuedAudiences is required (e.g., []string{\"myapp\"})")
	}
	if cfg.MaxAttempts < 0 || cfg.CodeLength < 0 {
		return nil, errors.New("otpkit: MaxAttempts and CodeLength must not be negative")
	}
	ks := Keyset{Active: keySource.ActiveSigner(), PublicKeys: keySource.PublicKeys()}
	opts := Options{
		Issuer:               strings.TrimRight(cfg.Issuer, "/"),
		IssuedAudiences:      cfg.IssuedAudiences,
		AccessTokenDuration:  cfg.AccessTokenDuration,
		RefreshTokenDuration: cfg.RefreshTokenDuration,
		BaseURL:              cfg.BaseURL,
		MagicLinkPath:        cfg.MagicLinkPath,
		MagicLinkTTL:         cfg.MagicLinkTTL,
		CodeTTL:              cfg.CodeTTL,
		ResendCooldown:       cfg.ResendCooldown,
		MaxAttempts:          cfg.MaxAttempts,
		CodeLength:           cfg.CodeLength,
		DefaultAccountType:   cfg.DefaultAccountType,
		AccountTypes:         cfg.AccountTypes,
		KeepPhoneOnFile:      cfg.KeepPhoneOnFile,
	}
	return NewService(opts, ks), nil
}

// Options exposes the resolved configuration.
func (s *Service) Options() Options { return s.opts }

func (s *Service) WithCodeStore(cs CodeStore) *Service         { s.codes = cs; return s }
func (s *Service) WithIdentityStore(is IdentityStore) *Service { s.identities = is; return s }
func (s *Service) WithSessionStore(ss SessionStore) *Service   { s.sessions = ss; return s }

// WithSessionIssuer replaces the built-in magic link + token issuer.
func (s *Service) WithSessionIssuer(si SessionIssuer) *Service { s.issuer = si; return s }

// WithSMSSender sets the code delivery channel.
func (s *Service) WithSMSSender(sender SMSSender) *Service { s.sms = sender; return s }

// HasSMSSender returns true if an SMS sender is configured.
func (s *Service) HasSMSSender() bool { return s.sms != nil }

// WithAuthLogger sets the sink for verification lifecycle events. nil disables events.
func (s *Service) WithAuthLogger(l AuthEventLogger) *Service { s.authlog = l; return s }

// WithLogger sets the logger used for operational logs.
func (s *Service) WithLogger(l *logrus.Logger) *Service {
	if l == nil {
		l = logrus.StandardLogger()
	}
	if _, ok := s.authlog.(LogrusEventLogger); ok {
		s.authlog = LogrusEventLogger{Logger: l}
	}
	s.log = l
	return s
}

// WithResolveStrategies overrides the identity lookup order.
func (s *Service) WithResolveStrategies(st ...ResolveStrategy) *Service {
	s.strategies = st
	return s
}

// WithClock overrides time.Now; used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	s.now = now
	return s
}

// Validate reports missing required collaborators.
func (s *Service) Validate() error {
	switch {
	case s.codes == nil:
		return errors.New("otpkit: code store is required")
	case s.identities == nil:
		return errors.New("otpkit: identity store is required")
	case s.issuer == nil && s.sessions == nil:
		return errors.New("otpkit: session store is required unless a custom session issuer is set")
	case s.issuer == nil && s.ephemeralStore == nil:
		return errors.New("otpkit: ephemeral store is required for magic links")
	}
	return nil
}

// Keyfunc looks up a public key by kid, falling back to the active RSA key.
func (s *Service) Keyfunc() func(token *jwt.Token) (any, error) {
	return func(token *jwt.Token) (any, error) {
		if kid, _ := token.Header["kid"].(string); kid != "" {
			if pub, ok := s.keys.PublicKeys[kid]; ok {
				return pub, nil
			}
		}
		if rsaSigner, ok := s.keys.Active.(*jwtkit.RSASigner); ok {
			return rsaSigner.PublicKey(), nil
		}
		return nil, jwt.ErrTokenUnverifiable
	}
}

// deliver sends the code, or logs it in dev environments when no sender is configured.
func (s *Service) deliver(ctx context.Context, phone, code string) error {
	if s.sms != nil {
		return s.sms.SendVerificationCode(ctx, phone, code)
	}
	if !isDevEnvironment(getEnvironment()) {
		return ErrDeliveryUnavailable
	}
	s.log.WithFields(logrus.Fields{"phone": phone, "code": code}).Warn("otpkit/dev-sms: no SMS sender configured, logging code")
	return nil
}

// helpers

func randDigits(n int) (string, error) {
	var b strings.Builder
	b.Grow(n)
	ten := big.NewInt(10)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}

func randBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsDevEnvironment reports whether ENV/APP_ENV/ENVIRONMENT is anything but prod/production.
func IsDevEnvironment() bool {
	return isDevEnvironment(getEnvironment())
}

func getEnvironment() string {
	env := os.Getenv("ENV")
	if env == "" {
		env = os.Getenv("APP_ENV")
	}
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	return env
}

func isDevEnvironment(env string) bool {
	e := strings.ToLower(strings.TrimSpace(env))
	return e != "prod" && e != "production"
}
