package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/correlator"
	"github.com/watchpost/watchpost/internal/domain"
	"github.com/watchpost/watchpost/internal/history"
	"github.com/watchpost/watchpost/internal/httpapi"
	"github.com/watchpost/watchpost/internal/httpapi/middleware"
	"github.com/watchpost/watchpost/internal/logging"
	"github.com/watchpost/watchpost/internal/metrics"
	"github.com/watchpost/watchpost/internal/notify"
	"github.com/watchpost/watchpost/internal/probe"
	"github.com/watchpost/watchpost/internal/repo"
	"github.com/watchpost/watchpost/internal/repo/memory"
	"github.com/watchpost/watchpost/internal/repo/postgres"
	"github.com/watchpost/watchpost/internal/scheduler"
	"github.com/watchpost/watchpost/internal/targets"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	targetStore, ruleStore, alertStore := buildStores(ctx, cfg, logger)
	hist := buildHistory(cfg, logger)

	uptime := probe.NewUptimeProbe()
	uptime.Client.Timeout = cfg.HTTPTimeout
	certs := probe.NewCertCache(probe.NewCertificateProbe(), 1024, 30*time.Minute)
	prober := probe.NewBatchProber(uptime, certs, logger)
	prober.HostRate = probe.NewPerHostLimiter(2, 2)

	registry := notify.NewRegistry(logger)
	registry.Register(domain.ChannelDashboard, notify.NewDashboard(logger))
	if slack := notify.NewSlack(cfg.SlackWebhook); slack != nil {
		registry.Register(domain.ChannelSlack, slack)
	}
	if email := notify.NewEmail(cfg.SMTPAddr, cfg.SMTPFrom, cfg.SMTPTo); email != nil {
		registry.Register(domain.ChannelEmail, email)
	}

	corr := correlator.New(ruleStore, alertStore, hist, registry, logger)
	svc := targets.NewService(targetStore, nil, logger)

	if cfg.TargetsFile != "" {
		seedFromFile(ctx, cfg.TargetsFile, targetStore, ruleStore, logger)
	}

	sweeper := scheduler.NewSweeper(targetStore, ruleStore, prober, corr, hist, logger)
	sweeper.Concurrency = cfg.Concurrency
	if err := sweeper.Start(cfg.SweepSpec); err != nil {
		logger.Fatal("sweeper_start_failed", zap.String("spec", cfg.SweepSpec), zap.Error(err))
	}
	defer sweeper.Stop()

	if cfg.MetricsAddr != "" {
		go metrics.Serve(cfg.MetricsAddr, logger)
	}

	api := httpapi.NewServer(logger, svc, alertStore, corr, prober)
	api.Keys = middleware.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}
	api.Limits = httpapi.Limits{
		PublicRPM:   cfg.PublicRPM,
		PublicBurst: cfg.PublicBurst,
		AdminRPM:    cfg.AdminRPM,
		AdminBurst:  cfg.AdminBurst,
	}

	srv := &http.Server{Addr: cfg.Addr, Handler: api.Router()}
	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api_server_stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func buildStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (repo.TargetStore, repo.RuleStore, repo.AlertStore) {
	if cfg.DatabaseURL == "" {
		store := memory.New()
		return store, store, memory.NewAlertStore()
	}
	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("postgres_connect_failed", zap.Error(err))
	}
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal("postgres_schema_failed", zap.Error(err))
	}
	store := postgres.NewStore(pool)
	return store, store, postgres.NewAlertStore(pool)
}

func buildHistory(cfg config.Config, logger *zap.Logger) history.Store {
	if cfg.RedisAddr == "" {
		return history.NewMemory()
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	logger.Info("history_redis", zap.String("addr", cfg.RedisAddr))
	return history.NewRedis(client)
}

func seedFromFile(ctx context.Context, path string, ts repo.TargetStore, rs repo.RuleStore, logger *zap.Logger) {
	tgts, rules, err := config.LoadTargetsFile(path)
	if err != nil {
		logger.Fatal("targets_file_load_failed", zap.String("path", path), zap.Error(err))
	}
	for i := range tgts {
		t := tgts[i]
		existing, err := ts.Get(ctx, t.ID)
		if err != nil {
			logger.Fatal("targets_file_seed_failed", zap.Error(err))
		}
		if existing != nil {
			t.CreatedAt = existing.CreatedAt
			err = ts.Update(ctx, &t)
		} else {
			err = ts.Add(ctx, &t)
		}
		if err != nil {
			logger.Fatal("targets_file_seed_failed", zap.String("target_id", string(t.ID)), zap.Error(err))
		}
	}
	for i := range rules {
		r := rules[i]
		if err := rs.Upsert(ctx, &r); err != nil {
			logger.Fatal("targets_file_seed_failed", zap.String("rule_id", r.ID), zap.Error(err))
		}
	}
	logger.Info("targets_file_loaded",
		zap.String("path", path),
		zap.Int("targets", len(tgts)),
		zap.Int("rules", len(rules)),
	)
}
