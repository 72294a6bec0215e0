package history

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/comigor/chatsession/internal/config"
	"github.com/comigor/chatsession/internal/logger"
)

// Open builds the store selected by cfg.Backend. When a durable backend
// cannot be opened the store falls back to memory so the session still works,
// it just won't survive a restart. Only an unknown backend name is an error.
func Open(ctx context.Context, cfg config.StoreConfig) (*KVStore, error) {
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		var unknown unknownBackendError
		if errors.As(err, &unknown) {
			return nil, err
		}
		logger.L.Warn("history backend unavailable; using in-memory history", "backend", cfg.Backend, "error", err)
		backend = NewMemoryBackend()
	}
	return New(backend, cfg.Key, cfg.Timeout), nil
}

type unknownBackendError string

func (e unknownBackendError) Error() string {
	return fmt.Sprintf("unknown history backend %q", string(e))
}

func openBackend(ctx context.Context, cfg config.StoreConfig) (Backend, error) {
	switch strings.ToLower(cfg.Backend) {
	case config.BackendMemory:
		return NewMemoryBackend(), nil
	case "", config.BackendFile:
		return NewFileBackend(cfg.Path), nil
	case config.BackendSQLite:
		path := cfg.Path
		switch filepath.Ext(path) {
		case ".db", ".sqlite", ".sqlite3":
		default:
			path = filepath.Join(path, "history.db")
		}
		if err := ensureDir(filepath.Dir(path)); err != nil {
			return nil, err
		}
		return OpenSQLite(ctx, path)
	case config.BackendRedis:
		return OpenRedis(ctx, cfg.Redis)
	default:
		return nil, unknownBackendError(cfg.Backend)
	}
}
