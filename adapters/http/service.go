package authhttp

import (
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	core "github.com/open-rails/otpkit/core"
	memorylimiter "github.com/open-rails/otpkit/ratelimit/memory"
	redislimiter "github.com/open-rails/otpkit/ratelimit/redis"
	memorystore "github.com/open-rails/otpkit/storage/memory"
	pgstore "github.com/open-rails/otpkit/storage/postgres"
	redisstore "github.com/open-rails/otpkit/storage/redis"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Service wraps core.Service with net/http mounting helpers.
type Service struct {
	svc      *core.Service
	rl       RateLimiter
	clientIP ClientIPFunc
	log      *logrus.Logger
}

func (s *Service) allow(r *http.Request, bucket string) bool {
	if s == nil || s.rl == nil {
		return true
	}
	ipFn := s.clientIP
	if ipFn == nil {
		ipFn = DefaultClientIP()
	}
	ip := ipFn(r)
	if strings.TrimSpace(ip) == "" {
		return true
	}
	key := "otp:" + bucket + ":ip:" + ip
	ok, err := s.rl.AllowNamed(r.Context(), bucket, key)
	if err != nil {
		s.logger().WithContext(r.Context()).WithField("bucket", bucket).WithError(err).Warn("rate limiter unavailable, failing open")
		return true
	}
	return ok
}

// NewService constructs a core.Service backed by in-memory stores and wraps it for
// net/http mounting. Use WithPostgres and WithRedis for multi-instance deployments.
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
func Wrap(coreSvc *core.Service) *Service {
	return &Service{
		svc:      coreSvc,
		rl:       memorylimiter.New(ToMemoryLimits(DefaultRateLimits())),
		clientIP: DefaultClientIP(),
		log:      logrus.StandardLogger(),
	}
}

// WithPostgres moves codes, accounts and refresh sessions to Postgres.
func (s *Service) WithPostgres(pg *pgxpool.Pool) *Service {
	st := pgstore.New(pg)
	s.svc = s.svc.WithCodeStore(st).WithIdentityStore(st).WithSessionStore(st)
	return s
}

// WithRedis moves magic link tokens and the per-IP limiter to Redis.
func (s *Service) WithRedis(rd *redis.Client) *Service {
	if rd != nil {
		s.svc = s.svc.WithEphemeralStore(redisstore.NewKV(rd).WithPrefix("otpkit:"), core.EphemeralRedis)
		s.rl = redislimiter.New(rd, ToRedisLimits(DefaultRateLimits()))
	}
	return s
}

func (s *Service) WithRateLimiter(rl RateLimiter) *Service { s.rl = rl; return s }
func (s *Service) DisableRateLimiter() *Service            { s.rl = nil; return s }
func (s *Service) WithClientIPFunc(fn ClientIPFunc) *Service {
	if fn == nil {
		s.clientIP = DefaultClientIP()
		return s
	}
	s.clientIP = fn
	return s
}
func (s *Service) WithSMSSender(sender core.SMSSender) *Service {
	s.svc = s.svc.WithSMSSender(sender)
	return s
}
func (s *Service) WithAuthLogger(l core.AuthEventLogger) *Service {
	s.svc = s.svc.WithAuthLogger(l)
	return s
}
func (s *Service) WithEphemeralStore(store core.EphemeralStore, mode core.EphemeralMode) *Service {
	s.svc = s.svc.WithEphemeralStore(store, mode)
	return s
}

// WithLogger sets the logger for the adapter and the wrapped core service.
func (s *Service) WithLogger(l *logrus.Logger) *Service {
	s.log = l
	s.svc = s.svc.WithLogger(l)
	return s
}

func (s *Service) Core() *core.Service { return s.svc }

func (s *Service) logger() *logrus.Logger {
	if s.log == nil {
		return logrus.StandardLogger()
	}
	return s.log
}
