package redis_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/dukex/taskgraph/pkg/models"
	"github.com/dukex/taskgraph/pkg/persistence"
	"github.com/dukex/taskgraph/pkg/persistence/redis"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) (*goredis.Client, context.Context) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := goredis.NewClient(&goredis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})

	t.Cleanup(func() {
		_ = client.Close()
		_ = container.Terminate(ctx)
	})

	return client, ctx
}

func stamped(seq int64, e models.Event) models.Event {
	models.Stamp(e, seq, time.Date(2026, 1, 1, 0, 0, int(seq), 0, time.UTC))

	return e
}

func TestRedisStore(t *testing.T) {
	client, ctx := setupRedis(t)

	store := redis.New(client, redis.WithLockPolicy(persistence.LockPolicy{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		MaxAttempts:     5,
		StaleAfter:      time.Minute,
	}))

	require.NoError(t, store.HealthCheck(ctx))

	t.Run("load missing", func(t *testing.T) {
		id := uuid.New()

		state, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, state.InstanceID)
		assert.Empty(t, state.Nodes)
	})

	t.Run("snapshot and replay", func(t *testing.T) {
		id := uuid.New()

		require.NoError(t, store.AppendEvent(ctx, id, stamped(1, &models.NodeStateChanged{NodeID: "a", State: models.NodeSucceeded})))

		snapshot := models.NewInstanceState(id, time.Now())
		snapshot.Node("a").State = models.NodeSucceeded
		snapshot.LastAppliedEventSequence = 1
		require.NoError(t, store.SaveSnapshot(ctx, snapshot))

		require.NoError(t, store.AppendEvent(ctx, id, stamped(2, &models.ContextSet{Key: "k", Value: json.RawMessage(`"v"`)})))

		state, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(2), state.LastAppliedEventSequence)
		assert.Equal(t, json.RawMessage(`"v"`), state.Context["k"])

		events, err := store.Events(ctx, id)
		require.NoError(t, err)
		assert.Len(t, events, 2)

		ids, err := store.Instances(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id)
	})

	t.Run("contended lock", func(t *testing.T) {
		id := uuid.New()
		lockKey := "taskgraph:instance:" + hex(id) + ":lock"

		require.NoError(t, client.Set(ctx, lockKey, "someone-else", time.Minute).Err())

		_, err := store.Load(ctx, id)
		require.ErrorIs(t, err, persistence.ErrInstanceLocked)

		require.NoError(t, client.Del(ctx, lockKey).Err())

		_, err = store.Load(ctx, id)
		require.NoError(t, err)

		exists, err := client.Exists(ctx, lockKey).Result()
		require.NoError(t, err)
		assert.Zero(t, exists, "lock must be released after use")
	})
}

func hex(id uuid.UUID) string {
	s := id.String()

	return s[0:8] + s[9:13] + s[14:18] + s[19:23] + s[24:]
}
