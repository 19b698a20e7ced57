package authgin

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/open-rails/otpkit/adapters/gin/handlers"
	"github.com/open-rails/otpkit/adapters/ginutil"
	core "github.com/open-rails/otpkit/core"
	memorylimiter "github.com/open-rails/otpkit/ratelimit/memory"
	redisl "github.com/open-rails/otpkit/ratelimit/redis"
	memorystore "github.com/open-rails/otpkit/storage/memory"
	pgstore "github.com/open-rails/otpkit/storage/postgres"
	redisstore "github.com/open-rails/otpkit/storage/redis"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Service wraps core.Service with Gin mounting helpers.
type Service struct {
	svc *core.Service
	rd  *redis.Client
	rl  ginutil.RateLimiter
}

// NewService constructs a core.Service backed by in-memory stores and wraps it for
// Gin mounting. Returns an error if the core service fails to initialize (e.g., missing
// keys in production).
func NewService(cfg core.Config) (*Service, error) {
	coreSvc, err := core.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	coreSvc = coreSvc.
		WithCodeStore(memorystore.NewCodeStore()).
		WithIdentityStore(memorystore.NewIdentityStore()).
		WithSessionStore(memorystore.NewSessionStore()).
		WithEphemeralStore(memorystore.NewKV(), core.EphemeralMemory)
	return Wrap(coreSvc), nil
}

// Wrap mounts an already configured core.Service.
func Wrap(coreSvc *core.Service) *Service { return &Service{svc: coreSvc} }

func (s *Service) WithPostgres(pg *pgxpool.Pool) *Service {
	st := pgstore.New(pg)
	s.svc = s.svc.WithCodeStore(st).WithIdentityStore(st).WithSessionStore(st)
	return s
}

// WithRedis moves magic link tokens and the default per-IP limiter to Redis.
func (s *Service) WithRedis(rd *redis.Client) *Service {
	s.rd = rd
	if rd != nil {
		s.svc = s.svc.WithEphemeralStore(redisstore.NewKV(rd).WithPrefix("otpkit:"), core.EphemeralRedis)
	}
	return s
}

func (s *Service) WithRateLimiter(rl ginutil.RateLimiter) *Service { s.rl = rl; return s }

func (s *Service) WithSMSSender(sender core.SMSSender) *Service {
	s.svc = s.svc.WithSMSSender(sender)
	return s
}

// WithAuthLogger wires a custom sink for verification lifecycle events.
func (s *Service) WithAuthLogger(l core.AuthEventLogger) *Service {
	s.svc = s.svc.WithAuthLogger(l)
	return s
}

// GinRegisterJWKS mounts the JWKS endpoint at the absolute root path.
func (s *Service) GinRegisterJWKS(root gin.IRouter) *Service {
	root.GET("/.well-known/jwks.json", handlers.HandleJWKS(s.svc))
	return s
}

// GinRegisterAPI mounts the OTP endpoints under the given router/group (e.g., /api/v1).
// It panics on a misconfigured service, like the net/http adapter.
func (s *Service) GinRegisterAPI(api gin.IRouter) *Service {
	if !core.IsDevEnvironment() && s.svc.EphemeralMode() != core.EphemeralRedis {
		panic("otpkit: redis-compatible ephemeral store is required in production")
	}
	if err := s.svc.Validate(); err != nil {
		panic(err.Error())
	}
	rl := s.ensureLimiter()

	api.POST("/send-otp", handlers.HandleSendOTPPOST(s.svc, rl))
	api.POST("/verify-otp", handlers.HandleVerifyOTPPOST(s.svc, rl))
	api.POST("/auth/magic-link/redeem", handlers.HandleMagicLinkRedeemPOST(s.svc, rl))
	api.POST("/auth/token", handlers.HandleAuthTokenPOST(s.svc, rl))
	return s
}

// RegisterGin mounts JWKS and the API routes on one router.
func (s *Service) RegisterGin(r gin.IRouter) *Service {
	return s.GinRegisterJWKS(r).GinRegisterAPI(r)
}

func (s *Service) Core() *core.Service { return s.svc }

// Middleware returns a Bearer token gate for the caller's own routes.
func (s *Service) Middleware() gin.HandlerFunc { return AuthRequired(s.svc) }

func (s *Service) ensureLimiter() ginutil.RateLimiter {
	if s.rl != nil {
		return s.rl
	}
	if s.rd != nil {
		return redisl.New(s.rd, defaultLimits())
	}
	log.Info("otpkit: Redis client not configured; using in-memory rate limiter (single-node only)")
	return memorylimiter.New(defaultMemoryLimits())
}

// defaultLimits sit on top of the per-phone resend cooldown and per-code attempt cap
// enforced by core.
func defaultLimits() map[string]redisl.Limit {
	return map[string]redisl.Limit{
		"default":                 {Limit: 120, Window: time.Minute},
		ginutil.RLSendOTP:         {Limit: 10, Window: 10 * time.Minute},
		ginutil.RLVerifyOTP:       {Limit: 30, Window: 10 * time.Minute},
		ginutil.RLMagicLinkRedeem: {Limit: 30, Window: 10 * time.Minute},
		ginutil.RLAuthToken:       {Limit: 30, Window: time.Minute},
	}
}

func defaultMemoryLimits() map[string]memorylimiter.Limit {
	out := make(map[string]memorylimiter.Limit)
	for k, v := range defaultLimits() {
		out[k] = memorylimiter.Limit{Limit: v.Limit, Window: v.Window}
	}
	return out
}
