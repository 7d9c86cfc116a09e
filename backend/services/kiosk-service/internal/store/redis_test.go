package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, RedisOptions{PollInterval: 20 * time.Millisecond}, zap.NewNop()), srv
}

func receive(t *testing.T, ch <-chan SessionRecord) SessionRecord {
	t.Helper()
	select {
	case rec, ok := <-ch:
		require.True(t, ok, "watch channel closed")
		return rec
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for snapshot")
	}
	return SessionRecord{}
}

func TestRedisStoreMergeWriteUsesFirmwareEncoding(t *testing.T) {
	st, srv := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, st.Update(ctx, StartUpdate(1700000000, 60)))
	require.NoError(t, st.Update(ctx, StopUpdate()))

	assert.Equal(t, "false", srv.HGet(DefaultKey, "charging"))
	assert.Equal(t, "1700000000", srv.HGet(DefaultKey, "startTime"))
	assert.Equal(t, "60", srv.HGet(DefaultKey, "duration"))
	assert.Equal(t, "true", srv.HGet(DefaultKey, "paymentStatus"))

	rec, err := st.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, SessionRecord{Charging: false, StartTime: 1700000000, Duration: 60, PaymentStatus: true}, rec)
}

func TestRedisStoreGetMissingAndGarbage(t *testing.T) {
	st, srv := newTestRedisStore(t)
	ctx := context.Background()

	rec, err := st.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, SessionRecord{}, rec)

	srv.HSet(DefaultKey, "charging", "yes please", "duration", "ten", "startTime", "5")
	rec, err = st.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, SessionRecord{StartTime: 5}, rec)
}

func TestRedisStoreReset(t *testing.T) {
	st, srv := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, st.Update(ctx, StartUpdate(10, 20)))
	require.NoError(t, st.Reset(ctx))

	assert.Equal(t, "false", srv.HGet(DefaultKey, "charging"))
	assert.Equal(t, "0", srv.HGet(DefaultKey, "duration"))
	assert.Equal(t, "0", srv.HGet(DefaultKey, "startTime"))
	assert.Equal(t, "false", srv.HGet(DefaultKey, "paymentStatus"))
}

func TestRedisStoreWatchDeliversInitialAndOwnWrites(t *testing.T) {
	st, _ := newTestRedisStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, st.Update(ctx, SessionUpdate{PaymentStatus: Bool(true)}))

	ch, err := st.Watch(ctx)
	require.NoError(t, err)
	assert.Equal(t, SessionRecord{PaymentStatus: true}, receive(t, ch))

	require.NoError(t, st.Update(ctx, StartUpdate(100, 60)))
	assert.Equal(t, SessionRecord{Charging: true, StartTime: 100, Duration: 60, PaymentStatus: true}, receive(t, ch))

	require.NoError(t, st.Update(ctx, StopUpdate()))
	assert.False(t, receive(t, ch).Charging)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRedisStoreWriteFailureIsWrapped(t *testing.T) {
	st, srv := newTestRedisStore(t)
	srv.Close()

	err := st.Update(context.Background(), StopUpdate())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreWrite))
}

func TestRedisStoreConnectivityReportsChanges(t *testing.T) {
	st, srv := newTestRedisStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := st.Connectivity(ctx)
	select {
	case up := <-ch:
		assert.True(t, up)
	case <-time.After(2 * time.Second):
		t.Fatalf("no initial connectivity")
	}

	srv.Close()
	select {
	case up := <-ch:
		assert.False(t, up)
	case <-time.After(5 * time.Second):
		t.Fatalf("no disconnect reported")
	}
}

func TestEncodeUpdateSkipsNilFields(t *testing.T) {
	assert.Empty(t, encodeUpdate(SessionUpdate{}))
	assert.Equal(t, map[string]interface{}{"charging": "false"}, encodeUpdate(StopUpdate()))
}
