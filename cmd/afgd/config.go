package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/piwi3910/arcflow/internal/model"
	"github.com/piwi3910/arcflow/internal/project"
)

type Config struct {
	Addr        string
	DBPath      string
	RedisAddr   string
	CacheTTL    time.Duration
	LogLevel    string
	PresetsPath string

	// Backup and Restore name a backup file to write or load instead of
	// serving.
	Backup  string
	Restore string
}

// LoadConfig resolves the daemon settings. Flags override ARCFLOW_*
// environment variables, which override the application config.
func LoadConfig(args []string, app model.AppConfig) (Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("failed to get cwd: %w", err)
	}

	addr := envOrDefault("ARCFLOW_ADDR", app.ServerAddr)
	dbPath := envOrDefault("ARCFLOW_DB_PATH", app.DBPath)
	redisAddr := envOrDefault("ARCFLOW_REDIS_ADDR", app.RedisAddr)
	logLevel := envOrDefault("ARCFLOW_LOG_LEVEL", app.LogLevel)
	cacheTTL := time.Duration(app.CacheTTL) * time.Second
	if ttlEnv := os.Getenv("ARCFLOW_CACHE_TTL"); ttlEnv != "" {
		parsed, err := time.ParseDuration(ttlEnv)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ARCFLOW_CACHE_TTL: %w", err)
		}
		if parsed < 0 {
			return Config{}, errors.New("ARCFLOW_CACHE_TTL must not be negative")
		}
		cacheTTL = parsed
	}

	flagSet := flag.NewFlagSet("afgd", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagAddr := flagSet.String("addr", addr, "HTTP listen address")
	flagDB := flagSet.String("db", dbPath, "path to the SQLite run history (empty disables it)")
	flagRedis := flagSet.String("redis", redisAddr, "Redis address for the graph cache (empty disables it)")
	flagTTL := flagSet.String("cache-ttl", cacheTTL.String(), "graph cache expiry (0 keeps entries)")
	flagLevel := flagSet.String("log-level", logLevel, "log level: debug|info|warn|error")
	flagPresets := flagSet.String("presets", envOrDefault("ARCFLOW_PRESETS", project.DefaultPresetPath()), "path to the bin presets")
	flagBackup := flagSet.String("backup", "", "write config, presets and run history to this file and exit")
	flagRestore := flagSet.String("restore", "", "load a backup file into config, presets and run history and exit")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			flagSet.SetOutput(os.Stdout)
			flagSet.PrintDefaults()
		}
		return Config{}, err
	}

	ttl, err := time.ParseDuration(*flagTTL)
	if err != nil {
		return Config{}, fmt.Errorf("invalid cache ttl: %w", err)
	}
	if ttl < 0 {
		return Config{}, errors.New("cache ttl must not be negative")
	}

	config := Config{
		Addr:        strings.TrimSpace(*flagAddr),
		DBPath:      resolvePath(*flagDB, cwd),
		RedisAddr:   strings.TrimSpace(*flagRedis),
		CacheTTL:    ttl,
		LogLevel:    strings.TrimSpace(*flagLevel),
		PresetsPath: resolvePath(*flagPresets, cwd),
		Backup:      resolvePath(*flagBackup, cwd),
		Restore:     resolvePath(*flagRestore, cwd),
	}
	if config.Addr == "" {
		return Config{}, errors.New("addr cannot be empty")
	}
	if config.Backup != "" && config.Restore != "" {
		return Config{}, errors.New("-backup and -restore are mutually exclusive")
	}
	return config, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func resolvePath(path string, cwd string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(cwd, trimmed)
}
