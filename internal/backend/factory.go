package backend

import (
	"context"
	"fmt"
	"time"

	"tesouraria/internal/auth"
	"tesouraria/internal/docstore"
	"tesouraria/internal/ledger/memory"
	"tesouraria/internal/localstore"
	"tesouraria/internal/log"
	"tesouraria/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Backend, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case MongoBackend:
		return f.createMongoBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*Backend, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &Backend{
		Type:    SQLiteBackend,
		Store:   repo,
		Users:   repo,
		KV:      repo.KV(),
		Ping:    repo.Ping,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMongoBackend(ctx context.Context, config Config) (*Backend, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := docstore.Connect(connectCtx, config.MongoURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	db := client.Database(config.MongoDatabase)
	if err := docstore.EnsureIndexes(connectCtx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create MongoDB indexes: %w", err)
	}

	provider := docstore.NewMongoProvider(db)

	f.logger.Info("Initialized MongoDB backend", "database", config.MongoDatabase)

	return &Backend{
		Type:  MongoBackend,
		Store: docstore.NewStore(provider),
		Users: docstore.NewUsers(provider),
		KV:    docstore.NewKV(provider),
		Ping: func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		},
		Cleanup: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return client.Disconnect(ctx)
		},
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*Backend, error) {
	store, err := memory.NewFromFile(config.MemorySeedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to seed memory backend: %w", err)
	}

	f.logger.Info("Initialized memory backend", "seed_file", config.MemorySeedFile)

	return &Backend{
		Type:  MemoryBackend,
		Store: store,
		Users: auth.NewMemoryUsers(),
		KV:    localstore.NewMemoryKV(),
		Ping:  func(context.Context) error { return nil },
	}, nil
}
