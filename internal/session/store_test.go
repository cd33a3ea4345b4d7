package session

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testState struct {
	Stage string            `json:"stage"`
	Info  map[string]string `json:"info"`
	Count int               `json:"count"`
}

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestRedisStoreRoundTripWithTTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRedisStore[testState](client, time.Hour)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	want := testState{Stage: "insurance", Info: map[string]string{"Name": "Mike Davis"}, Count: 2}
	require.NoError(t, store.Put(ctx, "abc", want))
	assert.Equal(t, time.Hour, mr.TTL("chat:session:abc"))

	got, ok, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	mr.FastForward(2 * time.Hour)
	_, ok, err = store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok, "expired sessions disappear")
}

func TestRedisStoreRejectsCorruptPayload(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRedisStore[testState](client, time.Hour)
	require.NoError(t, mr.Set("chat:session:bad", "{not json"))

	_, _, err := store.Get(context.Background(), "bad")
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore[testState]()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "x", testState{Stage: "greeting"}))
	got, ok, err := store.Get(ctx, "x")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "greeting", got.Stage)

	require.NoError(t, store.Delete(ctx, "x"))
	_, ok, _ = store.Get(ctx, "x")
	assert.False(t, ok)
}
