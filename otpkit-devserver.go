package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/sirupsen/logrus"

	authgin "github.com/open-rails/otpkit/adapters/gin"
	authhttp "github.com/open-rails/otpkit/adapters/http"
	"github.com/open-rails/otpkit/config"
	"github.com/open-rails/otpkit/core"
	jwtkit "github.com/open-rails/otpkit/jwt"
	pgmigrations "github.com/open-rails/otpkit/migrations/postgres"
	"github.com/open-rails/otpkit/riverjobs"
	"github.com/open-rails/otpkit/sms"
	pgstore "github.com/open-rails/otpkit/storage/postgres"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fatal(err)
	}
	log := logrus.StandardLogger()
	cfg.ConfigureLogger(log)

	cmd := "serve"
	if len(os.Args) > 1 && strings.TrimSpace(os.Args[1]) != "" {
		cmd = strings.TrimSpace(os.Args[1])
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "serve":
		err = runServe(ctx, cfg, log)
	case "migrate":
		err = runMigrate(ctx, cfg, log)
	case "sweep":
		err = runSweep(ctx, cfg, log)
	default:
		err = fmt.Errorf("unknown command %q (supported: serve, migrate, sweep)", cmd)
	}
	if err != nil {
		fatal(err)
	}
}

func requireDB(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("OTPKIT_DATABASE_URL is required")
	}
	return nil
}

func runServe(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	if err := requireDB(cfg); err != nil {
		return err
	}
	if cfg.MigrateOnStart {
		if err := runMigrate(ctx, cfg, log); err != nil {
			return err
		}
	}

	pg, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	var rd *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		rd = redis.NewClient(opts)
		defer rd.Close()
		if err := rd.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
	}

	coreSvc, err := newCoreService(cfg, pg, log)
	if err != nil {
		return err
	}

	riverClient, err := newRiverClient(pg, coreSvc, cfg, log)
	if err != nil {
		return err
	}
	if err := riverClient.Start(ctx); err != nil {
		return fmt.Errorf("start river: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := riverClient.Stop(stopCtx); err != nil {
			log.WithError(err).Warn("river client did not stop cleanly")
		}
	}()

	api, err := newRouter(cfg, coreSvc, rd, log)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pg.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "db_unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	mux.Handle("/", api)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	log.WithFields(logrus.Fields{"addr": cfg.ListenAddr, "router": cfg.Router, "redis": rd != nil}).Info("otpkit devserver listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newCoreService(cfg *config.Config, pg *pgxpool.Pool, log *logrus.Logger) (*core.Service, error) {
	keys, err := jwtkit.NewAutoKeySource()
	if err != nil {
		return nil, fmt.Errorf("load jwt keys: %w", err)
	}
	svc, err := core.NewFromConfig(cfg.Core(keys))
	if err != nil {
		return nil, err
	}
	st := pgstore.New(pg)
	svc = svc.WithCodeStore(st).WithIdentityStore(st).WithSessionStore(st).WithLogger(log)

	if smsCfg, ok := cfg.SMS(); ok {
		sender, err := sms.NewHTTPSender(smsCfg)
		if err != nil {
			return nil, fmt.Errorf("sms sender: %w", err)
		}
		svc = svc.WithSMSSender(sender.WithLogger(log))
	} else if core.IsDevEnvironment() {
		svc = svc.WithSMSSender(sms.LogSender{Logger: log})
	} else {
		log.Warn("no SMS gateway configured; sends will fail")
	}
	return svc, nil
}

// newRouter mounts the OTP routes with the adapter named by cfg.Router.
func newRouter(cfg *config.Config, svc *core.Service, rd *redis.Client, log *logrus.Logger) (http.Handler, error) {
	proxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		return nil, err
	}
	if cfg.Router == "gin" {
		if !core.IsDevEnvironment() {
			gin.SetMode(gin.ReleaseMode)
		}
		engine := gin.New()
		engine.Use(gin.Recovery())
		cidrs := make([]string, 0, len(proxies))
		for _, p := range proxies {
			cidrs = append(cidrs, p.String())
		}
		if err := engine.SetTrustedProxies(cidrs); err != nil {
			return nil, fmt.Errorf("gin trusted proxies: %w", err)
		}
		authgin.Wrap(svc).WithRedis(rd).RegisterGin(engine)
		return engine, nil
	}

	h := authhttp.Wrap(svc).WithRedis(rd).WithLogger(log)
	if len(proxies) > 0 {
		h = h.WithClientIPFunc(authhttp.ClientIPFromForwardedHeaders(proxies))
	}
	return h.APIHandler(), nil
}

func newRiverClient(pg *pgxpool.Pool, svc *core.Service, cfg *config.Config, log *logrus.Logger) (*river.Client[pgx.Tx], error) {
	workers := river.NewWorkers()
	riverjobs.RegisterExpireStaleCodesWorker(workers, svc)
	client, err := river.NewClient(riverpgxv5.New(pg), &river.Config{
		Queues:  map[string]river.QueueConfig{river.QueueDefault: {MaxWorkers: 2}},
		Workers: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("river client: %w", err)
	}
	args := riverjobs.ExpireStaleCodesArgs{BatchSize: cfg.SweepBatchSize}
	if err := riverjobs.AddExpireStaleCodesPeriodicJob(client, cfg.SweepSchedule, args, true); err != nil {
		return nil, err
	}
	log.WithField("schedule", cfg.SweepSchedule).Debug("expired code sweep scheduled")
	return client, nil
}

func runMigrate(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	if err := requireDB(cfg); err != nil {
		return err
	}
	sqlDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open sql db: %w", err)
	}
	defer sqlDB.Close()

	applied, err := pgmigrations.Migrate(ctx, sqlDB)
	if err != nil {
		return err
	}
	log.WithField("applied", len(applied)).Info("otpkit schema up to date")

	pg, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()
	migrator, err := rivermigrate.New(riverpgxv5.New(pg), nil)
	if err != nil {
		return fmt.Errorf("river migrator: %w", err)
	}
	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return fmt.Errorf("river migrations: %w", err)
	}
	log.WithField("applied", len(res.Versions)).Info("river schema up to date")
	return nil
}

// runSweep burns expired codes once, outside the river schedule.
func runSweep(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	if err := requireDB(cfg); err != nil {
		return err
	}
	pg, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()
	svc, err := newCoreService(cfg, pg, log)
	if err != nil {
		return err
	}
	var total int64
	for {
		n, err := svc.SweepExpiredCodes(ctx, cfg.SweepBatchSize)
		if err != nil {
			return err
		}
		total += n
		if n < int64(cfg.SweepBatchSize) {
			break
		}
	}
	log.WithField("burned", total).Info("sweep complete")
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func fatal(err error) {
	logrus.WithError(err).Error("otpkit devserver failed")
	os.Exit(1)
}
