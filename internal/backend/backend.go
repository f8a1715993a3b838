// Package backend opens the key-value store selected by configuration.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rpggio/promptkeeper/internal/config"
	"github.com/rpggio/promptkeeper/internal/memory"
	"github.com/rpggio/promptkeeper/internal/redisstore"
	"github.com/rpggio/promptkeeper/internal/repository"
	"github.com/rpggio/promptkeeper/internal/sqlite"
)

// Open connects the configured backend. Closing the returned store
// releases everything Open acquired.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (repository.KVStore, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	switch cfg.Backend {
	case "memory":
		logger.Warn("using in-memory store; prompts are lost on exit and not shared between processes")
		return memory.NewStore(), nil
	case "redis":
		store, err := redisstore.Open(ctx, cfg.RedisURL, cfg.Channel, logger)
		if err != nil {
			return nil, fmt.Errorf("opening redis store: %w", err)
		}
		return store, nil
	case "sqlite", "":
		return openSQLite(cfg)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

type sqliteStore struct {
	*sqlite.KVStore
	db *sqlite.DB
}

func (s sqliteStore) Close() error {
	_ = s.KVStore.Close()
	return s.db.Close()
}

func openSQLite(cfg config.StoreConfig) (repository.KVStore, error) {
	if err := ensureDBDir(cfg.Path); err != nil {
		return nil, fmt.Errorf("preparing database path: %w", err)
	}

	db, err := sqlite.New(cfg.Path)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return sqliteStore{KVStore: sqlite.NewKVStore(db, cfg.PollInterval), db: db}, nil
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
