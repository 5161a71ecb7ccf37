package kv

import (
	"context"
	"fmt"
	"path/filepath"

	"calplan/internal/config"
	appLog "calplan/internal/log"
)

const redisPrefix = "calplan:"

// Open builds the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Backend {
	case "memory":
		s = NewMemory()
	case "file", "":
		s, err = NewFile(cfg.Path)
	case "sqlite":
		path := cfg.Path
		if filepath.Ext(path) == "" {
			path = filepath.Join(path, "calplan.db")
		}
		s, err = OpenSQLite(ctx, path)
	case "redis":
		s, err = OpenRedis(ctx, cfg.RedisURL, redisPrefix)
	case "postgres":
		s, err = OpenPostgres(ctx, cfg.PostgresDSN)
	case "aztables":
		s, err = OpenAzTables(ctx, cfg.AzTables.ConnectionString, cfg.AzTables.Table)
	default:
		return nil, fmt.Errorf("kv: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("kv: open %s: %w", cfg.Backend, err)
	}
	appLog.Info("kv store opened", "backend", cfg.Backend)
	return s, nil
}
