package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-pos/internal/catalog"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// CatalogCacheNamespace prefixes the read cache version key.
const CatalogCacheNamespace = "catalog:cache"

// NewCatalogService wires the catalog repository, audit trail, read cache and observer
// from config. rdb may be nil, in which case reads go straight to Postgres.
func NewCatalogService(pool *pgxpool.Pool, rdb *redis.Client, cfg *Config, logger *slog.Logger, observer catalog.Observer) (*catalog.Service, error) {
	mode, err := catalog.ParseReferenceMode(cfg.CatalogReferenceMode)
	if err != nil {
		return nil, err
	}
	repo := catalog.NewRepository(pool, catalog.TxSettings{
		Timeout: cfg.CatalogTxTimeout,
		MaxWait: cfg.CatalogTxMaxWait,
	})
	svcCfg := catalog.ServiceConfig{
		ReferenceMode: mode,
		Audit:         shared.NewAuditLogger(pool),
		Observer:      observer,
	}
	if rdb != nil && cfg.CatalogCacheTTL > 0 {
		svcCfg.Cache = cache.New(rdb, CatalogCacheNamespace, cfg.CatalogCacheTTL)
	}
	return catalog.NewService(repo, logger, svcCfg)
}
