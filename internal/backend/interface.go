package backend

import (
	"context"

	"tesouraria/internal/auth"
	"tesouraria/internal/ledger"
	"tesouraria/internal/localstore"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Backend bundles everything persisted by one storage engine.
type Backend struct {
	Type  BackendType
	Store ledger.Store
	Users auth.UserStore
	KV    localstore.KV

	// Ping reports whether the engine is reachable; used by /readyz.
	Ping    func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Watcher returns the store's change notifications, if it has any.
func (b *Backend) Watcher() (ledger.Watcher, bool) {
	w, ok := b.Store.(ledger.Watcher)
	return w, ok
}

// MirrorTracker returns the store's mirror bookkeeping, if it has any.
func (b *Backend) MirrorTracker() (ledger.MirrorTracker, bool) {
	m, ok := b.Store.(ledger.MirrorTracker)
	return m, ok
}

// Close runs Cleanup once.
func (b *Backend) Close() error {
	if b.Cleanup == nil {
		return nil
	}
	cleanup := b.Cleanup
	b.Cleanup = nil
	return cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Backend, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string

	MongoURI      string
	MongoDatabase string

	// Optional JSON backup used to seed the memory backend.
	MemorySeedFile string
}

// BackendType represents the type of storage engine
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MongoBackend  BackendType = "mongo"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MongoBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
