package factory

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/mcoot/villefarm/internal/config"
	"github.com/mcoot/villefarm/internal/dependencies/clock"
	"github.com/mcoot/villefarm/internal/dependencies/random"
	"github.com/mcoot/villefarm/internal/events"
	"github.com/mcoot/villefarm/internal/events/sse"
	"github.com/mcoot/villefarm/internal/metrics"
	"github.com/mcoot/villefarm/internal/services/authority"
	"github.com/mcoot/villefarm/internal/services/bot"
	"github.com/mcoot/villefarm/internal/services/delegation"
	"github.com/mcoot/villefarm/internal/services/farm"
	"github.com/mcoot/villefarm/internal/services/identity"
	"github.com/mcoot/villefarm/internal/storage"
	"github.com/mcoot/villefarm/internal/storage/memory"
	redisstorage "github.com/mcoot/villefarm/internal/storage/redis"
	"github.com/mcoot/villefarm/internal/storage/sqlite"
	"github.com/mcoot/villefarm/internal/sweep"
)

// Storage type constants
const (
	StorageTypeMemory = config.StorageMemory
	StorageTypeRedis  = config.StorageRedis
	StorageTypeSQLite = config.StorageSQLite
)

// Sweep job names, also used as the metrics target label
const (
	SweepSessions    = "sessions"
	SweepDelegations = "delegations"
	SweepHubs        = "sse_hubs"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	Rules   config.Rules
	Metrics *metrics.Metrics

	// Services
	IdentityService   *identity.Service
	DelegationService *delegation.Service
	FarmController    *farm.Controller
	BotService        *bot.Service
	HubManager        *sse.HubManager
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "sqlite")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// SQLitePath is the database file (required if StorageType is "sqlite")
	SQLitePath string
	// Rules are the game rules (optional)
	// If nil, defaults to config.DefaultRules()
	Rules *config.Rules
	// IdentityConfig holds configuration for the identity service (optional)
	IdentityConfig identity.Config
	// DelegationConfig holds configuration for the delegation service (optional)
	DelegationConfig delegation.Config
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	// Create storage based on type
	var store storage.Storage
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
	case StorageTypeSQLite:
		if cfg.SQLitePath == "" {
			return nil, errors.New("SQLitePath required when StorageType is sqlite")
		}
		sqliteStore, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		store = sqliteStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory', 'redis' or 'sqlite'")
	}

	// Create external dependencies
	clk := clock.New()
	rnd := random.New()

	return newWithDependencies(store, clk, rnd, cfg, logger), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, rnd random.Random, cfg Config, logger *slog.Logger) *App {
	rules := config.DefaultRules()
	if cfg.Rules != nil {
		rules = *cfg.Rules
	}
	identityCfg := cfg.IdentityConfig
	if identityCfg.SessionDuration == 0 {
		identityCfg = identity.DefaultConfig()
	}
	delegationCfg := cfg.DelegationConfig
	if delegationCfg.MaxDuration == 0 {
		delegationCfg = delegation.DefaultConfig()
	}

	m := metrics.New()
	hubManager := sse.NewHubManager(logger)
	publisher := events.Multi{
		events.NewLog(logger),
		m,
		sse.NewBroadcaster(hubManager, logger),
	}

	// Create services
	identityService := identity.New(store, clk, rnd, identityCfg, logger)
	delegationService := delegation.New(store, clk, delegationCfg, logger)
	verifier := authority.New(delegationService)
	farmController := farm.NewController(store, verifier, rules, clk, publisher, m, logger)
	botService := bot.NewService(farmController, bot.DefaultStrategies(rnd), logger)

	return &App{
		Storage:           store,
		Clock:             clk,
		Random:            rnd,
		Rules:             rules,
		Metrics:           m,
		IdentityService:   identityService,
		DelegationService: delegationService,
		FarmController:    farmController,
		BotService:        botService,
		HubManager:        hubManager,
	}
}

// SweepJobs returns the periodic expiry jobs for this app
func (a *App) SweepJobs() []sweep.Job {
	return []sweep.Job{
		{
			Name: SweepSessions,
			Run: func(context.Context) (int, error) {
				return a.IdentityService.CleanExpiredSessions(), nil
			},
		},
		{
			Name: SweepDelegations,
			Run:  a.DelegationService.Sweep,
		},
		{
			Name: SweepHubs,
			Run: func(context.Context) (int, error) {
				return a.HubManager.CleanupEmptyHubs(), nil
			},
		},
	}
}

// Close releases the storage backend and closes all event streams
func (a *App) Close() error {
	a.HubManager.CloseAll()
	if c, ok := a.Storage.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
