package backend

import (
	"context"
	"fmt"
	"log/slog"

	"saldo/internal/kv/badgerkv"
	kvmemory "saldo/internal/kv/memory"
	"saldo/internal/log"
	"saldo/internal/remote/memory"
	"saldo/internal/remote/postgres"
	"saldo/internal/remote/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger.With(log.FieldComponent, log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case PostgresBackend:
		return f.createPostgresBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	store, err := sqlite.Open(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Store:   store,
		Cleanup: store.Close,
	}, nil
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := postgres.Open(ctx, config.PostgresURL, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
	}

	f.logger.Info("Initialized Postgres backend")

	return &BackendResult{
		Store:   store,
		Cleanup: store.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	f.logger.Info("Initialized memory backend")

	return &BackendResult{
		Store:   memory.New(),
		Cleanup: nil, // No cleanup needed for memory backend
	}, nil
}

// CreateOffline implements Factory.CreateOffline
func (f *DefaultFactory) CreateOffline(config Config) (*OfflineResult, error) {
	if config.OfflineCacheDir == "" {
		f.logger.Info("Offline cache kept in memory")
		return &OfflineResult{Store: kvmemory.New()}, nil
	}

	store, err := badgerkv.Open(config.OfflineCacheDir, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open offline cache: %w", err)
	}

	f.logger.Info("Opened offline cache", "dir", config.OfflineCacheDir)

	return &OfflineResult{
		Store:   store,
		Cleanup: store.Close,
	}, nil
}
