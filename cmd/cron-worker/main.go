package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/backoffice-backend/internal/cron"
	"github.com/angelmondragon/backoffice-backend/internal/products"
	"github.com/angelmondragon/backoffice-backend/pkg/config"
	"github.com/angelmondragon/backoffice-backend/pkg/db"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
	"github.com/angelmondragon/backoffice-backend/pkg/metrics"
	"github.com/angelmondragon/backoffice-backend/pkg/migrate"
	"github.com/angelmondragon/backoffice-backend/pkg/redis"
)

type flags struct {
	once        bool
	metricsAddr string
}

func main() {
	var f flags
	flag.BoolVar(&f.once, "once", false, "run a single cycle and exit")
	flag.StringVar(&f.metricsAddr, "metrics-addr", "", "serve /metrics on this address (disabled when empty)")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Expiry.ReportInterval.String(),
	})

	if err := run(ctx, cfg, logg, f); err != nil {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, f flags) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer closeQuietly(ctx, logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	lock, closeLock, err := buildLock(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer closeLock()

	productService, err := products.NewService(products.ServiceParams{
		Repo:     products.NewRepository(dbClient.DB()),
		WarnDays: cfg.Expiry.WarnDays,
		Logger:   logg,
	})
	if err != nil {
		return err
	}
	expiryJob, err := products.NewExpiryReportJob(productService, metrics.NewExpiryMetrics(prometheus.DefaultRegisterer), logg)
	if err != nil {
		return err
	}

	service, err := cron.NewService(cron.ServiceParams{
		Name:       "cron-worker",
		Logger:     logg,
		Registry:   cron.NewRegistry(expiryJob),
		Lock:       lock,
		Metrics:    metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Expiry.ReportInterval,
		JobTimeout: cfg.Expiry.ReportInterval,
	})
	if err != nil {
		return err
	}

	if f.once {
		report, err := service.RunOnce(ctx)
		if err != nil {
			return err
		}
		logg.Info(logg.WithFields(ctx, map[string]any{
			"skipped": report.Skipped,
			"ran":     strings.Join(report.Ran, ","),
			"failed":  strings.Join(report.Failed, ","),
		}), "cron cycle finished")
		if len(report.Failed) > 0 {
			return errors.New("jobs failed: " + strings.Join(report.Failed, ","))
		}
		return nil
	}

	logg.Info(ctx, "starting cron worker")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return service.Run(gctx) })
	if f.metricsAddr != "" {
		srv := &http.Server{Addr: f.metricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	return g.Wait()
}

// buildLock shares the cycle across workers through Redis when it is
// configured and falls back to a process-local lock otherwise.
func buildLock(ctx context.Context, cfg *config.Config, logg *logger.Logger) (cron.Lock, func(), error) {
	if !cfg.Redis.Enabled() {
		logg.Warn(ctx, "redis not configured; cron lock is process local")
		return &cron.LocalLock{}, func() {}, nil
	}
	client, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return nil, nil, err
	}
	env := cfg.App.Env
	if env == "" {
		env = "local"
	}
	lock, err := cron.NewRedisLock(client, client.LockKey("cron-worker:"+env), cfg.Expiry.ReportInterval)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return lock, func() { closeQuietly(ctx, logg, "redis", client.Close) }, nil
}

func closeQuietly(ctx context.Context, logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(logg.WithField(ctx, "resource", name), "close failed", err)
	}
}
