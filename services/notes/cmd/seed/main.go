package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"keepnotes/internal/util"
	"keepnotes/pkg/store"
	"keepnotes/services/notes/internal/config"
	"keepnotes/services/notes/internal/seed"
)

// Creates the shared demo account and its starter notes if missing.
func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}
	defer db.Close()

	user, err := seed.EnsureDemoUser(ctx, db, logger)
	if err != nil {
		log.Fatalf("failed to seed demo user: %v", err)
	}
	logger.Info("demo user ready", "user_id", user.ID, "login", seed.DemoLogin)
}
