package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, 5*time.Minute), srv
}

func TestRedisGetSetDelete(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestRedis(t)

	_, found, err := c.Get(ctx, "product:1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "product:1", []byte(`{"id":1}`), 0))
	val, found, err := c.Get(ctx, "product:1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"id":1}`, string(val))

	require.NoError(t, c.Delete(ctx, "product:1"))
	_, found, err = c.Get(ctx, "product:1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisTTL(t *testing.T) {
	ctx := context.Background()
	c, srv := newTestRedis(t)

	require.NoError(t, c.Set(ctx, "default", []byte("v"), 0))
	require.NoError(t, c.Set(ctx, "short", []byte("v"), time.Minute))

	assert.Equal(t, 5*time.Minute, srv.TTL("default"))
	assert.Equal(t, time.Minute, srv.TTL("short"))

	srv.FastForward(2 * time.Minute)
	_, found, err := c.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, found)
	_, found, err = c.Get(ctx, "default")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestRedisDeletePrefix(t *testing.T) {
	ctx := context.Background()
	c, srv := newTestRedis(t)

	// больше одного батча SCAN
	for i := 0; i < scanBatch+5; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf(`products:{"page":%d}`, i), []byte("v"), 0))
	}
	require.NoError(t, c.Set(ctx, "product:5", []byte("v"), 0))
	require.NoError(t, c.Set(ctx, "top-products:Maadi", []byte("v"), 0))

	require.NoError(t, c.DeletePrefix(ctx, "products:"))

	assert.Equal(t, []string{"product:5", "top-products:Maadi"}, srv.Keys())
}

func TestRedisErrorsAreReturned(t *testing.T) {
	ctx := context.Background()
	// на этом адресе никто не слушает
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })
	c := NewRedis(client, time.Minute)

	_, _, err := c.Get(ctx, "k")
	require.Error(t, err)
	require.Error(t, c.Set(ctx, "k", []byte("v"), 0))
	require.Error(t, c.Delete(ctx, "k"))
	require.Error(t, c.DeletePrefix(ctx, "products:"))
}
