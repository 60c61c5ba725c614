package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/zzzchinguun/holdem-server/internal/db"
	"github.com/zzzchinguun/holdem-server/internal/history"
	"github.com/zzzchinguun/holdem-server/internal/models"
	"github.com/zzzchinguun/holdem-server/internal/recovery"
	"github.com/zzzchinguun/holdem-server/internal/redisstore"
	"github.com/zzzchinguun/holdem-server/internal/server"
)

func main() {
	godotenv.Load()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           parseLogLevel(getEnv("LOG_LEVEL", "info")),
	})

	if getEnv("ENV", "development") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	cfg := server.Config{
		Addr:           ":" + getEnv("SERVER_PORT", "8080"),
		JWTSecret:      getEnv("JWT_SECRET", "secret"),
		AllowedOrigins: splitEnv(getEnv("ALLOWED_ORIGINS", "")),
		DefaultTable: models.TableConfig{
			SmallBlind:    getEnvInt("TABLE_SMALL_BLIND", 10),
			BigBlind:      getEnvInt("TABLE_BIG_BLIND", 20),
			MaxPlayers:    getEnvInt("TABLE_MAX_PLAYERS", 8),
			MinBuyIn:      getEnvInt("TABLE_MIN_BUY_IN", 200),
			MaxBuyIn:      getEnvInt("TABLE_MAX_BUY_IN", 4000),
			ActionTimeout: getEnvInt("TABLE_ACTION_TIMEOUT", 30),
			NextHandDelay: getEnvInt("TABLE_NEXT_HAND_DELAY", 5),
			RakePercent:   getEnvInt("TABLE_RAKE_PERCENT", 0),
			RakeCap:       getEnvInt("TABLE_RAKE_CAP", 0),
		},
	}

	srv := server.New(cfg, logger, nil)

	if getEnv("DB_ENABLED", "true") == "true" {
		database, err := db.New(db.Config{
			Driver:   getEnv("DB_DRIVER", "sqlite"),
			Path:     getEnv("DB_PATH", "holdem.db"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "3306"),
			User:     getEnv("DB_USER", "root"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "holdem"),
		})
		if err != nil {
			logger.Fatal("database connection failed", "err", err)
		}
		srv.AttachPersistence(database, history.NewTracker(database, logger))

		recovered, err := recovery.NewRecoverer(database, logger).Recover(srv.Manager())
		if err != nil {
			logger.Error("table recovery failed", "err", err)
		} else if recovered > 0 {
			logger.Info("tables recovered", "count", recovered)
		}
	} else {
		logger.Warn("running without persistence, tables are lost on restart")
	}

	if getEnv("REDIS_ENABLED", "false") == "true" {
		cache, err := redisstore.New(redisstore.Config{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		}, logger)
		if err != nil {
			logger.Error("redis unavailable, snapshot cache disabled", "err", err)
		} else {
			srv.AttachCache(cache)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return srv.Run(ctx)
	})

	if err := group.Wait(); err != nil {
		logger.Fatal("server exited", "err", err)
	}
	logger.Info("shutdown complete")
}

func parseLogLevel(s string) log.Level {
	switch strings.ToLower(s) {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func splitEnv(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := parts[:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
