package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStoreFromClient(client, 120*time.Second), mr
}

func TestMarkAndWasSent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sent, err := store.WasSent(ctx, "sub-1", "notif-1")
	require.NoError(t, err)
	assert.False(t, sent)

	require.NoError(t, store.MarkSent(ctx, "sub-1", "notif-1"))

	sent, err = store.WasSent(ctx, "sub-1", "notif-1")
	require.NoError(t, err)
	assert.True(t, sent)

	// Different subscriber, same notification.
	sent, err = store.WasSent(ctx, "sub-2", "notif-1")
	require.NoError(t, err)
	assert.False(t, sent)
}

func TestMarkSentExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.MarkSent(ctx, "sub-1", "notif-1"))
	assert.Greater(t, mr.TTL("sub-1:notif-1"), time.Duration(0))

	mr.FastForward(121 * time.Second)

	sent, err := store.WasSent(ctx, "sub-1", "notif-1")
	require.NoError(t, err)
	assert.False(t, sent)
}

func TestMarkSentIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.MarkSent(ctx, "sub-1", "notif-1"))
	require.NoError(t, store.MarkSent(ctx, "sub-1", "notif-1"))

	sent, err := store.WasSent(ctx, "sub-1", "notif-1")
	require.NoError(t, err)
	assert.True(t, sent)
}

func TestDLQOrdering(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.DLQPush(ctx, "notifications.high", []byte("first")))
	require.NoError(t, store.DLQPush(ctx, "notifications.high", []byte("second")))

	payload, err := store.DLQPop(ctx, "notifications.high")
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), payload)

	payload, err = store.DLQPop(ctx, "notifications.high")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), payload)
}

func TestDLQPopEmpty(t *testing.T) {
	store, _ := newTestStore(t)

	payload, err := store.DLQPop(context.Background(), "notifications.low")
	require.NoError(t, err)
	assert.Nil(t, payload)
}
