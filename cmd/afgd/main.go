// afgd serves graph building and solution extraction over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/piwi3910/arcflow/internal/cache"
	"github.com/piwi3910/arcflow/internal/project"
	"github.com/piwi3910/arcflow/internal/server"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "afgd:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	configPath := envOrDefault("ARCFLOW_CONFIG", project.DefaultConfigPath())
	app, err := project.LoadAppConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg, err := LoadConfig(args, app)
	if err != nil {
		return err
	}

	logger := project.NewLogger(os.Stderr, cfg.LogLevel)
	logger.Info("system_started", "component", "afgd")
	if project.ParseLogLevel(cfg.LogLevel) > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	serverCfg := server.Config{Logger: logger, Defaults: app}

	if cfg.DBPath != "" {
		h, err := project.NewHistory(cfg.DBPath)
		if err != nil {
			return err
		}
		defer func() {
			if err := h.Close(); err != nil {
				logger.Error("failed_to_close_history", "error", err)
			}
		}()
		serverCfg.History = h
		logger.Info("history_initialized", "path", cfg.DBPath)
	}

	stores := project.Stores{ConfigPath: configPath, PresetsPath: cfg.PresetsPath, History: serverCfg.History}
	switch {
	case cfg.Backup != "":
		data, err := stores.Backup(context.Background(), cfg.Backup)
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		logger.Info("backup_written", "path", cfg.Backup, "presets", len(data.Presets), "runs", len(data.Runs))
		return nil
	case cfg.Restore != "":
		res, err := stores.Restore(context.Background(), cfg.Restore)
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		logger.Info("backup_restored", "path", cfg.Restore, "presets", res.Presets, "runs", res.Runs)
		return nil
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		gc := cache.New(client, cfg.CacheTTL)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := gc.Ping(pingCtx); err != nil {
			logger.Warn("redis_unreachable", "addr", cfg.RedisAddr, "error", err)
		}
		cancel()
		serverCfg.Cache = gc
		logger.Info("cache_initialized", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(serverCfg)
	if err := srv.Run(ctx, cfg.Addr); err != nil {
		return err
	}
	logger.Info("shutdown_complete")
	return nil
}
