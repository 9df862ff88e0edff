package kv

import (
	"context"
	"fmt"
	"strings"

	"github.com/Twixes/mcpolice/internal/model"
)

// Backend names accepted by Open
const (
	BackendMemory   = "memory"
	BackendDisk     = "disk"
	BackendLayered  = "layered"
	BackendNATS     = "nats"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Open creates the backend selected by cfg.Backend
func Open(ctx context.Context, cfg model.StoreConfig) (Store, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))

	switch backend {
	case BackendMemory, "":
		return NewMemory(), nil

	case BackendDisk:
		return NewDisk(cfg.Dir)

	case BackendLayered:
		return NewLayered(cfg.Dir)

	case BackendNATS:
		return OpenNATS(ctx, cfg.NATSURL, cfg.NATSBucket)

	case BackendRedis:
		return OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	case BackendPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres backend requires store.postgres_dsn")
		}
		return OpenPostgres(ctx, cfg.PostgresDSN, cfg.PostgresTable)

	default:
		return nil, fmt.Errorf("unknown store backend: %s (supported: memory, disk, layered, nats, redis, postgres)", cfg.Backend)
	}
}
