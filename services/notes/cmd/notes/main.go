package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"keepnotes/internal/util"
	"keepnotes/services/notes/internal/app"
	"keepnotes/services/notes/internal/config"
	"keepnotes/services/notes/internal/guest"
	"keepnotes/services/notes/internal/server"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	durations, err := cfg.Durations()
	if err != nil {
		log.Fatalf("failed to parse durations: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	if err := run(cfg, durations, logger); err != nil {
		logger.Error("notes server stopped with error", "err", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// run owns every resource it opens so deferred cleanup happens on all exits.
func run(cfg config.FileConfig, durations config.Durations, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("reach redis: %w", err)
		}
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		return fmt.Errorf("parse trustedProxyCidrs: %w", err)
	}

	guestMetrics := guest.NewMetrics(prometheus.DefaultRegisterer)
	appCore, err := app.New(app.Config{
		DatabaseURL:    cfg.DatabaseURL,
		JWTSecret:      cfg.JWTSecret,
		JWTIssuer:      cfg.JWTIssuer,
		SessionTTL:     durations.SessionTTL,
		Redis:          redisClient,
		GuestPoolSize:  cfg.GuestPoolSize,
		GuestRetention: durations.GuestRetention,
		GuestMetrics:   guestMetrics,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer func() {
		if err := appCore.Close(); err != nil {
			logger.Error("close app", "err", err)
		}
	}()

	httpServer, err := server.New(server.Config{
		App:                      appCore,
		Redis:                    redisClient,
		TrustedProxies:           trusted,
		CORSOrigins:              cfg.CORSOrigins,
		LoginRateLimitPerMinute:  cfg.LoginRateLimitPerMinute,
		SignupRateLimitPerMinute: cfg.SignupRateLimitPerMinute,
		GuestRateLimitPerMinute:  cfg.GuestRateLimitPerMinute,
	})
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpServer.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	maintainer := guest.NewScheduler(appCore.Guests(), durations.SweepInterval, logger, guestMetrics)
	maintainer.Start()
	logger.Info("guest pool maintainer started", "interval", durations.SweepInterval.String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("notes server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(
			srv.Shutdown(shutdownCtx),
			maintainer.Stop(shutdownCtx),
		)
	})

	return g.Wait()
}
