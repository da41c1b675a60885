package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestConnect_ParsesURL(t *testing.T) {
	client, err := Connect(context.Background(), "redis://:secret@cache.internal:6380/2")
	require.NoError(t, err)
	defer client.Close()

	opts := client.Options()
	require.Equal(t, "cache.internal:6380", opts.Addr)
	require.Equal(t, "secret", opts.Password)
	require.Equal(t, 2, opts.DB)

	client, err = Connect(context.Background(), "localhost:6379")
	require.NoError(t, err)
	defer client.Close()
	require.Equal(t, "localhost:6379", client.Options().Addr)

	_, err = Connect(context.Background(), "redis://cache.internal:6379/not-a-db")
	require.Error(t, err)
}

func TestRedis_RoundTrip(t *testing.T) {
	url := os.Getenv("QUILTS_TEST_REDIS_URL")
	if url == "" {
		t.Skip("QUILTS_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := Connect(ctx, url)
	require.NoError(t, err)

	r := NewRedis(client, "quilts-test-"+uuid.NewString())
	t.Cleanup(func() { r.Close() })
	require.NoError(t, r.Ping(ctx))

	require.NoError(t, r.Set(ctx, "stats:q1:latest", []byte(`{"n":1}`), time.Minute))
	require.NoError(t, r.Set(ctx, "stats:q2:latest", []byte(`{"n":2}`), time.Minute))

	got, ok, err := r.Get(ctx, "stats:q1:latest")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"n":1}`, string(got))

	n, err := r.Invalidate(ctx, "stats:q1:*")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, ok, err = r.Get(ctx, "stats:q1:latest")
	require.NoError(t, err)
	require.False(t, ok)
}
