package sqlstore

import (
	"fmt"
	"time"

	"github.com/goliatone/go-loop-client/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

type FactoryOption func(*RepositoryFactory)

// WithSecretProvider encrypts stored preference values.
func WithSecretProvider(secrets core.SecretProvider) FactoryOption {
	return func(f *RepositoryFactory) {
		f.secrets = secrets
	}
}

// WithCacheTTL puts a go-repository-cache layer in front of preference reads.
func WithCacheTTL(ttl time.Duration) FactoryOption {
	return func(f *RepositoryFactory) {
		f.cacheTTL = ttl
	}
}

type RepositoryFactory struct {
	db       *bun.DB
	secrets  core.SecretProvider
	cacheTTL time.Duration

	preferenceStore *PreferenceStore
	preferences     core.PreferenceStore
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	if client == nil {
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	}
	return newRepositoryFactory(client, opts...)
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	return newRepositoryFactory(db, opts...)
}

func newRepositoryFactory(candidate any, opts ...FactoryOption) (*RepositoryFactory, error) {
	db, err := resolveBunDB(candidate)
	if err != nil {
		return nil, err
	}
	f := &RepositoryFactory{db: db}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

// Preferences returns the store handed to the auth provider, cached when a
// cache TTL was configured.
func (f *RepositoryFactory) Preferences() core.PreferenceStore {
	if f == nil {
		return nil
	}
	return f.preferences
}

// PreferenceStore returns the uncached table store.
func (f *RepositoryFactory) PreferenceStore() *PreferenceStore {
	if f == nil {
		return nil
	}
	return f.preferenceStore
}

func (f *RepositoryFactory) initStores() error {
	store, err := NewPreferenceStore(f.db, f.secrets)
	if err != nil {
		return err
	}
	f.preferenceStore = store
	f.preferences = store

	if f.cacheTTL <= 0 {
		return nil
	}
	config := repositorycache.DefaultConfig()
	config.TTL = f.cacheTTL
	cacheService, err := repositorycache.NewCacheService(config)
	if err != nil {
		return fmt.Errorf("sqlstore: preference cache: %w", err)
	}
	cached, err := NewCachedPreferenceStore(store, cacheService)
	if err != nil {
		return err
	}
	f.preferences = cached
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		if typed == nil {
			return nil, fmt.Errorf("sqlstore: bun db is required")
		}
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
