package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/zzzchinguun/holdem-server/internal/models"
)

// Config holds the Redis connection settings.
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Client wraps redis.Client with the gateway's snapshot cache.
type Client struct {
	*redis.Client
	logger *log.Logger
}

func New(cfg Config, logger *log.Logger) (*Client, error) {
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("connected to redis", "addr", addr)
	return &Client{Client: client, logger: logger.WithPrefix("redis")}, nil
}

func (c *Client) HealthCheck(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

const snapshotTTL = 5 * time.Minute

func snapshotKey(tableID string) string {
	return "table:" + tableID + ":state"
}

// CacheSnapshot stores the latest unmasked table snapshot. Failures are
// logged and swallowed: the cache is a read accelerator, never the source
// of truth.
func (c *Client) CacheSnapshot(ctx context.Context, state *models.GameState) {
	data, err := json.Marshal(state)
	if err != nil {
		c.logger.Error("failed to marshal snapshot", "table", state.TableID, "err", err)
		return
	}
	if err := c.Set(ctx, snapshotKey(state.TableID), data, snapshotTTL).Err(); err != nil {
		c.logger.Error("failed to cache snapshot", "table", state.TableID, "err", err)
	}
}

// LatestSnapshot returns the cached snapshot for a table, or nil when none
// is cached.
func (c *Client) LatestSnapshot(ctx context.Context, tableID string) (*models.GameState, error) {
	data, err := c.Get(ctx, snapshotKey(tableID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var state models.GameState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &state, nil
}

// DropSnapshot removes a destroyed table's cached state.
func (c *Client) DropSnapshot(ctx context.Context, tableID string) {
	if err := c.Del(ctx, snapshotKey(tableID)).Err(); err != nil {
		c.logger.Error("failed to drop snapshot", "table", tableID, "err", err)
	}
}
