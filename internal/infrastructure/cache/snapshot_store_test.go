package cache

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/tenancy"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/config"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() *tenancy.Snapshot {
	return &tenancy.Snapshot{
		Email:        "a@x.com",
		BusinessID:   "biz-a",
		BusinessName: "Alpha",
		Role:         tenancy.RoleStaff,
		Permissions:  tenancy.NormalizePermissions([]byte(`{"orders":["view"]}`)),
		DisplayName:  "Amal",
		LinkedBusinesses: []tenancy.LinkedBusiness{
			{ID: "biz-b", Name: "Beta", AccessType: tenancy.AccessRead},
		},
	}
}

func newMiniRedisStore(t *testing.T, ttl time.Duration) (*RedisSnapshotStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSnapshotStoreWithClient(client, "", ttl), mr
}

// refuseCommandHook fails every command with the given name
type refuseCommandHook struct {
	name string
}

func (h refuseCommandHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h refuseCommandHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == h.name {
			return errors.New(h.name + " refused")
		}
		return next(ctx, cmd)
	}
}

func (h refuseCommandHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRedisSnapshotStore(t *testing.T) {
	ctx := context.Background()

	t.Run("miss", func(t *testing.T) {
		store, _ := newMiniRedisStore(t, 0)

		snap, err := store.Load(ctx, "u1")
		require.NoError(t, err)
		assert.Nil(t, snap)
	})

	t.Run("save then load under the uid key", func(t *testing.T) {
		store, mr := newMiniRedisStore(t, 0)

		require.NoError(t, store.Save(ctx, "u1", sampleSnapshot()))

		assert.True(t, mr.Exists(DefaultSnapshotKeyPrefix+"u1"))
		assert.Zero(t, mr.TTL(DefaultSnapshotKeyPrefix+"u1"))

		snap, err := store.Load(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, sampleSnapshot(), snap)

		other, err := store.Load(ctx, "u2")
		require.NoError(t, err)
		assert.Nil(t, other)
	})

	t.Run("ttl", func(t *testing.T) {
		store, mr := newMiniRedisStore(t, time.Hour)

		require.NoError(t, store.Save(ctx, "u1", sampleSnapshot()))
		assert.Equal(t, time.Hour, mr.TTL(DefaultSnapshotKeyPrefix+"u1"))

		mr.FastForward(2 * time.Hour)
		snap, err := store.Load(ctx, "u1")
		require.NoError(t, err)
		assert.Nil(t, snap)
	})

	t.Run("corrupt payload is dropped", func(t *testing.T) {
		store, mr := newMiniRedisStore(t, 0)
		require.NoError(t, mr.Set(DefaultSnapshotKeyPrefix+"u1", "{not json"))

		snap, err := store.Load(ctx, "u1")
		require.NoError(t, err)
		assert.Nil(t, snap)
		assert.False(t, mr.Exists(DefaultSnapshotKeyPrefix+"u1"))
	})

	t.Run("corrupt payload that cannot be dropped is an error", func(t *testing.T) {
		store, mr := newMiniRedisStore(t, 0)
		store.client.AddHook(refuseCommandHook{name: "del"})
		require.NoError(t, mr.Set(DefaultSnapshotKeyPrefix+"u1", "{not json"))

		snap, err := store.Load(ctx, "u1")
		assert.ErrorContains(t, err, "failed to drop unreadable snapshot")
		assert.Nil(t, snap)
		assert.True(t, mr.Exists(DefaultSnapshotKeyPrefix+"u1"))
	})

	t.Run("clear", func(t *testing.T) {
		store, mr := newMiniRedisStore(t, 0)
		require.NoError(t, store.Save(ctx, "u1", sampleSnapshot()))

		require.NoError(t, store.Clear(ctx, "u1"))
		require.NoError(t, store.Clear(ctx, "u1"))
		assert.False(t, mr.Exists(DefaultSnapshotKeyPrefix+"u1"))
	})

	t.Run("server down", func(t *testing.T) {
		store, mr := newMiniRedisStore(t, 0)
		mr.Close()

		_, err := store.Load(ctx, "u1")
		assert.Error(t, err)
		assert.Error(t, store.Ping(ctx))
	})
}

func TestInMemorySnapshotStore(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip is isolated from the caller", func(t *testing.T) {
		store := NewInMemorySnapshotStore(0)
		snap := sampleSnapshot()
		require.NoError(t, store.Save(ctx, "u1", snap))
		snap.LinkedBusinesses[0].Name = "mutated"

		loaded, err := store.Load(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "Beta", loaded.LinkedBusinesses[0].Name)
	})

	t.Run("expiry", func(t *testing.T) {
		store := NewInMemorySnapshotStore(time.Minute)
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		store.now = func() time.Time { return now }
		require.NoError(t, store.Save(ctx, "u1", sampleSnapshot()))

		now = now.Add(2 * time.Minute)
		loaded, err := store.Load(ctx, "u1")
		require.NoError(t, err)
		assert.Nil(t, loaded)
		assert.Zero(t, store.Len())
	})

	t.Run("clear", func(t *testing.T) {
		store := NewInMemorySnapshotStore(0)
		require.NoError(t, store.Save(ctx, "u1", sampleSnapshot()))
		require.NoError(t, store.Clear(ctx, "u1"))

		loaded, err := store.Load(ctx, "u1")
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})
}

func TestSnapshotStoreFactory(t *testing.T) {
	resolverCfg := config.ResolverConfig{SnapshotKeyPrefix: "test:"}

	t.Run("uses redis when reachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		redisCfg := config.RedisConfig{Enabled: true, Host: mr.Host(), Port: mustPort(t, mr)}

		store, closer, err := NewSnapshotStoreFactory(redisCfg, resolverCfg).CreateStore()
		require.NoError(t, err)
		defer closer.Close()

		require.IsType(t, &RedisSnapshotStore{}, store)
		require.NoError(t, store.Save(context.Background(), "u1", sampleSnapshot()))
		assert.True(t, mr.Exists("test:u1"))
	})

	t.Run("falls back to memory", func(t *testing.T) {
		redisCfg := config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}

		store, closer, err := NewSnapshotStoreFactory(redisCfg, resolverCfg).CreateStore()
		require.NoError(t, err)
		assert.NoError(t, closer.Close())
		assert.IsType(t, &InMemorySnapshotStore{}, store)
	})

	t.Run("fallback disabled", func(t *testing.T) {
		redisCfg := config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}

		_, _, err := NewSnapshotStoreFactory(redisCfg, resolverCfg, WithInMemoryFallback(false)).CreateStore()
		assert.Error(t, err)
	})

	t.Run("redis disabled", func(t *testing.T) {
		store, _, err := NewSnapshotStoreFactory(config.RedisConfig{}, resolverCfg).CreateStore()
		require.NoError(t, err)
		assert.IsType(t, &InMemorySnapshotStore{}, store)
	})
}

func mustPort(t *testing.T, mr *miniredis.Miniredis) int {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return port
}
