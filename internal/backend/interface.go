package backend

import (
	"context"
	"slices"

	"saldo/internal/kv"
	"saldo/internal/remote"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the remote store and optional cleanup function
type BackendResult struct {
	Store   remote.Store
	Cleanup CleanupFunc
}

// OfflineResult contains the device-local key/value store backing the
// offline cache.
type OfflineResult struct {
	Store   kv.Store
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend opens the remote store selected by config.Type.
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	// CreateOffline opens the offline store; an empty directory keeps it
	// in memory.
	CreateOffline(config Config) (*OfflineResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	PostgresURL  string

	OfflineCacheDir string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	return slices.Contains(GetBackendTypes(), bt)
}
