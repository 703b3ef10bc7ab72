//go:build integration

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *RedisClient {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx,
		"redis:7.4-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate redis container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := NewRedisClient(ctx, RedisConfig{URL: fmt.Sprintf("redis://%s:%s/0", host, port.Port()), PoolSize: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisClient_Integration(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()

	t.Run("get set delete", func(t *testing.T) {
		_, err := client.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrCacheMiss)

		require.NoError(t, client.Set(ctx, "k", []byte("v"), time.Minute))
		got, err := client.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), got)

		require.NoError(t, client.Delete(ctx, "k"))
		_, err = client.Get(ctx, "k")
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("model updates across sources", func(t *testing.T) {
		watchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		received := make(chan ModelUpdate, 1)
		ready := make(chan struct{})
		go func() {
			msgs, unsubscribe, err := client.Subscribe(watchCtx, "model.updated")
			if err != nil {
				close(ready)
				return
			}
			close(ready)
			defer unsubscribe()
			raw := <-msgs
			var u ModelUpdate
			if err := json.Unmarshal(raw, &u); err == nil {
				received <- u
			}
		}()
		<-ready

		notifier := NewUpdateNotifier(client, "model.updated", "replica-b")
		require.NoError(t, notifier.ModelUpdated(watchCtx, "price-regressor"))

		select {
		case u := <-received:
			assert.Equal(t, "price-regressor", u.Name)
			assert.Equal(t, "replica-b", u.Source)
		case <-watchCtx.Done():
			t.Fatal("no update received")
		}
	})
}
