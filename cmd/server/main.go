package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mcoot/villefarm/internal/api"
	"github.com/mcoot/villefarm/internal/config"
	"github.com/mcoot/villefarm/internal/factory"
	"github.com/mcoot/villefarm/internal/services/delegation"
	"github.com/mcoot/villefarm/internal/services/identity"
	redisstorage "github.com/mcoot/villefarm/internal/storage/redis"
	"github.com/mcoot/villefarm/internal/sweep"
)

func main() {
	// A missing .env is fine; real environment variables still apply
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to load .env", slog.String("error", err.Error()))
		os.Exit(1)
	}

	serverCfg, err := config.LoadServer(os.Getenv("VILLEFARM_CONFIG_FILE"))
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	level, err := serverCfg.SlogLevel()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	rules, err := serverCfg.Rules()
	if err != nil {
		logger.Error("failed to load rules", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cfg := factory.Config{
		Logger:           logger,
		StorageType:      serverCfg.Storage,
		SQLitePath:       serverCfg.SQLitePath,
		Rules:            &rules,
		IdentityConfig:   identity.Config{SessionDuration: serverCfg.SessionDuration},
		DelegationConfig: delegation.Config{MaxDuration: serverCfg.MaxDelegation},
	}
	if cfg.StorageType == factory.StorageTypeRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = serverCfg.RedisURL
		cfg.RedisConfig = &redisCfg
	}

	// Create application factory
	app, err := factory.New(cfg)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("application configured",
		slog.String("storage", serverCfg.Storage),
		slog.Int64("maturation_seconds", rules.MaturationSeconds()),
		slog.String("sweep_schedule", serverCfg.SweepSchedule))

	sweeper, err := sweep.New(serverCfg.SweepSchedule, app.Metrics, logger, app.SweepJobs()...)
	if err != nil {
		logger.Error("failed to create sweeper", slog.String("error", err.Error()))
		os.Exit(1)
	}

	router := api.NewRouter(api.RouterConfig{
		Logger:            logger,
		Storage:           app.Storage,
		IdentityService:   app.IdentityService,
		DelegationService: app.DelegationService,
		FarmController:    app.FarmController,
		BotService:        app.BotService,
		HubManager:        app.HubManager,
		Metrics:           app.Metrics,
	})

	// Create server
	server := api.NewServer(router, api.ServerConfigFrom(serverCfg), logger)

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()
	sweeper.Start()

	logger.Info("server started", slog.String("addr", server.Addr()))

	// Wait for shutdown or error
	exitCode := 0
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			exitCode = 1
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		// Close event streams first so Shutdown isn't held open by them
		app.HubManager.CloseAll()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			exitCode = 1
		}
	}

	sweeper.Stop(context.Background())
	if err := app.Close(); err != nil {
		logger.Error("failed to close storage", slog.String("error", err.Error()))
	}
	logger.Info("server stopped")
	stop()
	os.Exit(exitCode)
}
