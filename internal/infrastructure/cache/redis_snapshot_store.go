package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/tenancy"
	"github.com/redis/go-redis/v9"
)

// DefaultSnapshotKeyPrefix namespaces snapshot keys; the uid is appended
const DefaultSnapshotKeyPrefix = "madas_business_context:"

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RedisSnapshotStore implements tenancy.SnapshotStore on Redis so every
// instance serving a user sees the same cached context
type RedisSnapshotStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisSnapshotStore connects to Redis and verifies the connection
func NewRedisSnapshotStore(cfg RedisConfig, keyPrefix string, ttl time.Duration) (*RedisSnapshotStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisSnapshotStoreWithClient(client, keyPrefix, ttl), nil
}

// NewRedisSnapshotStoreWithClient creates a store over an existing client.
// A zero ttl keeps snapshots until they are cleared.
func NewRedisSnapshotStoreWithClient(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisSnapshotStore {
	if keyPrefix == "" {
		keyPrefix = DefaultSnapshotKeyPrefix
	}
	return &RedisSnapshotStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

func (s *RedisSnapshotStore) key(uid string) string {
	return s.keyPrefix + uid
}

// Load returns the snapshot of uid, or nil when none is stored. An
// unreadable payload is dropped and reported as absent; failing to drop it
// is an error so the bad key is not served again silently.
func (s *RedisSnapshotStore) Load(ctx context.Context, uid string) (*tenancy.Snapshot, error) {
	data, err := s.client.Get(ctx, s.key(uid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snapshot tenancy.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		if err := s.client.Del(ctx, s.key(uid)).Err(); err != nil {
			return nil, fmt.Errorf("failed to drop unreadable snapshot: %w", err)
		}
		return nil, nil
	}
	return &snapshot, nil
}

// Save overwrites the snapshot of uid
func (s *RedisSnapshotStore) Save(ctx context.Context, uid string, snapshot *tenancy.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key(uid), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// Clear removes the snapshot of uid
func (s *RedisSnapshotStore) Clear(ctx context.Context, uid string) error {
	if err := s.client.Del(ctx, s.key(uid)).Err(); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}
	return nil
}

// Ping checks the Redis connection
func (s *RedisSnapshotStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (s *RedisSnapshotStore) Close() error {
	return s.client.Close()
}
