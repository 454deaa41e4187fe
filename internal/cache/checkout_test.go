package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestCheckoutStoreLifecycle(t *testing.T) {
	mr, rdb := newRedis(t)
	store := NewCheckoutStore(rdb, 15*time.Minute)
	ctx := context.Background()

	_, found, err := store.Get(ctx, "order_A")
	require.NoError(t, err)
	assert.False(t, found)

	p := PendingCheckout{GatewayOrderID: "order_A", UserID: 5, AmountMinor: 125050, Currency: "INR", CreatedAt: time.Now().UTC().Truncate(time.Second)}
	require.NoError(t, store.Save(ctx, p))
	assert.True(t, mr.Exists("checkout:gateway_order:order_A"))
	assert.Equal(t, 15*time.Minute, mr.TTL("checkout:gateway_order:order_A"))

	got, found, err := store.Get(ctx, "order_A")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, p.UserID, got.UserID)
	assert.Equal(t, p.AmountMinor, got.AmountMinor)
	assert.True(t, p.CreatedAt.Equal(got.CreatedAt))

	require.NoError(t, store.Delete(ctx, "order_A"))
	_, found, err = store.Get(ctx, "order_A")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCheckoutStoreExpires(t *testing.T) {
	mr, rdb := newRedis(t)
	store := NewCheckoutStore(rdb, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, PendingCheckout{GatewayOrderID: "order_B", UserID: 1}))
	mr.FastForward(2 * time.Minute)

	_, found, err := store.Get(ctx, "order_B")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetJSONSurfacesRedisErrors(t *testing.T) {
	mr, rdb := newRedis(t)
	mr.Close()

	var dest map[string]any
	found, err := GetJSON(context.Background(), rdb, "k", &dest)
	assert.Error(t, err)
	assert.False(t, found)
}
