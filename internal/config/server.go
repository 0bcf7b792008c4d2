package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backend names
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"
)

// Config keys
const (
	keyHost            = "host"
	keyPort            = "port"
	keyStorage         = "storage"
	keyRedisURL        = "redis.url"
	keySQLitePath      = "sqlite.path"
	keyRulesFile       = "rules_file"
	keyLogLevel        = "log_level"
	keySweepSchedule   = "sweep_schedule"
	keySessionDuration = "session_duration"
	keyMaxDelegation   = "max_delegation"
	keyShutdownTimeout = "shutdown_timeout"
)

// EnvPrefix is prepended to every environment override, e.g. VILLEFARM_REDIS_URL
const EnvPrefix = "VILLEFARM"

// Server holds the settings for cmd/server
type Server struct {
	Host            string
	Port            int
	Storage         string
	RedisURL        string
	SQLitePath      string
	RulesFile       string // optional; empty means DefaultRules
	LogLevel        string
	SweepSchedule   string // cron spec for expiry sweeps
	SessionDuration time.Duration
	MaxDelegation   time.Duration
	ShutdownTimeout time.Duration
}

// LoadServer reads server settings from defaults, an optional config file, and
// VILLEFARM_* environment variables, in increasing order of precedence.
func LoadServer(configFile string) (Server, error) {
	v := viper.New()
	v.SetDefault(keyHost, "")
	v.SetDefault(keyPort, 8080)
	v.SetDefault(keyStorage, StorageMemory)
	v.SetDefault(keyRedisURL, "redis://localhost:6379")
	v.SetDefault(keySQLitePath, "villefarm.db")
	v.SetDefault(keyRulesFile, "")
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keySweepSchedule, "@every 1m")
	v.SetDefault(keySessionDuration, 24*time.Hour)
	v.SetDefault(keyMaxDelegation, 7*24*time.Hour)
	v.SetDefault(keyShutdownTimeout, 30*time.Second)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Server{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Server{
		Host:            v.GetString(keyHost),
		Port:            v.GetInt(keyPort),
		Storage:         v.GetString(keyStorage),
		RedisURL:        v.GetString(keyRedisURL),
		SQLitePath:      v.GetString(keySQLitePath),
		RulesFile:       v.GetString(keyRulesFile),
		LogLevel:        v.GetString(keyLogLevel),
		SweepSchedule:   v.GetString(keySweepSchedule),
		SessionDuration: v.GetDuration(keySessionDuration),
		MaxDelegation:   v.GetDuration(keyMaxDelegation),
		ShutdownTimeout: v.GetDuration(keyShutdownTimeout),
	}

	switch cfg.Storage {
	case StorageMemory, StorageRedis, StorageSQLite:
	default:
		return Server{}, fmt.Errorf("invalid storage %q: must be %s, %s or %s",
			cfg.Storage, StorageMemory, StorageRedis, StorageSQLite)
	}

	return cfg, nil
}

// Rules loads the configured rules file, or the defaults if none is set
func (s Server) Rules() (Rules, error) {
	if s.RulesFile == "" {
		return DefaultRules(), nil
	}
	return LoadRules(s.RulesFile)
}

// SlogLevel parses LogLevel ("debug", "info", "warn", "error")
func (s Server) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q: %w", s.LogLevel, err)
	}
	return level, nil
}
