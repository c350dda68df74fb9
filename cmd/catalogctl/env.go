package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-pos/internal/app"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
)

// env holds the lazily opened backends shared by subcommands.
type env struct {
	cfg    *app.Config
	logger *slog.Logger
	pool   *pgxpool.Pool
	redis  *redis.Client
}

func loadEnv() (*env, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &env{cfg: cfg, logger: app.NewLogger(cfg)}, nil
}

func (e *env) postgres(ctx context.Context) (*pgxpool.Pool, error) {
	if e.pool == nil {
		pool, err := db.New(ctx, e.cfg.PGDSN, e.cfg.PoolConfig("catalogctl"))
		if err != nil {
			return nil, err
		}
		e.pool = pool
	}
	return e.pool, nil
}

func (e *env) redisClient(ctx context.Context) (*redis.Client, error) {
	if e.redis == nil {
		client, err := cache.Connect(ctx, e.cfg.RedisAddr, 5*time.Second)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		e.redis = client
	}
	return e.redis, nil
}

func (e *env) Close() {
	if e.pool != nil {
		e.pool.Close()
	}
	if e.redis != nil {
		if err := e.redis.Close(); err != nil {
			e.logger.Warn("redis close", slog.Any("error", err))
		}
	}
}
