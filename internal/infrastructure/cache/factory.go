package cache

import (
	"fmt"
	"io"

	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/tenancy"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/config"
	"go.uber.org/zap"
)

// SnapshotStoreFactory creates snapshot stores based on configuration
type SnapshotStoreFactory struct {
	redisConfig           config.RedisConfig
	resolverConfig        config.ResolverConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// SnapshotStoreFactoryOption configures the factory
type SnapshotStoreFactoryOption func(*SnapshotStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) SnapshotStoreFactoryOption {
	return func(f *SnapshotStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to
// the in-memory store. Default is true.
func WithInMemoryFallback(allow bool) SnapshotStoreFactoryOption {
	return func(f *SnapshotStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewSnapshotStoreFactory creates a new factory
func NewSnapshotStoreFactory(redisCfg config.RedisConfig, resolverCfg config.ResolverConfig, opts ...SnapshotStoreFactoryOption) *SnapshotStoreFactory {
	f := &SnapshotStoreFactory{
		redisConfig:           redisCfg,
		resolverConfig:        resolverCfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateRedisStore creates a Redis-backed snapshot store
func (f *SnapshotStoreFactory) CreateRedisStore() (*RedisSnapshotStore, error) {
	store, err := NewRedisSnapshotStore(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	}, f.resolverConfig.SnapshotKeyPrefix, f.resolverConfig.SnapshotTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis snapshot store: %w", err)
	}
	return store, nil
}

// CreateStore returns a Redis store when Redis is enabled and reachable,
// else an in-memory store if fallback is allowed. The closer releases the
// Redis client and is never nil.
func (f *SnapshotStoreFactory) CreateStore() (tenancy.SnapshotStore, io.Closer, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory snapshot store")
		return NewInMemorySnapshotStore(f.resolverConfig.SnapshotTTL), nopCloser{}, nil
	}

	store, err := f.CreateRedisStore()
	if err == nil {
		f.logger.Info("Using Redis snapshot store", zap.String("addr", f.redisConfig.Addr()))
		return store, store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, nil, fmt.Errorf("redis required for snapshots but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory snapshot store. "+
		"Cached contexts will not be shared between instances.",
		zap.Error(err),
	)
	return NewInMemorySnapshotStore(f.resolverConfig.SnapshotTTL), nopCloser{}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
