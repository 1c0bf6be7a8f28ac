package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (Locker, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSlotLocker(client, 5*time.Second), srv
}

func TestNewRedisClient(t *testing.T) {
	srv := miniredis.RunT(t)

	client, err := NewRedisClient(Options{Addr: srv.Addr(), PoolSize: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	assert.NoError(t, client.Ping(context.Background()).Err())
	assert.Equal(t, 4, client.Options().PoolSize)
}

func TestNewRedisClientDefaultsPoolSize(t *testing.T) {
	srv := miniredis.RunT(t)

	client, err := NewRedisClient(Options{Addr: srv.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	assert.Equal(t, 10, client.Options().PoolSize)
}

func TestNewRedisClientUnreachable(t *testing.T) {
	_, err := NewRedisClient(Options{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func testSlotKey() SlotKey {
	return SlotKey{
		DoctorID:  uuid.New(),
		Date:      time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
		TimeOfDay: "09:00",
	}
}

func TestSlotKeyString(t *testing.T) {
	id := uuid.MustParse("6f1c240e-48a5-47c2-9f3e-0d2b9a8f5a01")
	key := SlotKey{
		DoctorID:  id,
		Date:      time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
		TimeOfDay: "14:30",
	}
	assert.Equal(t, "lock:slot:6f1c240e-48a5-47c2-9f3e-0d2b9a8f5a01:2025-06-10:14:30", key.String())
}

func TestWithSlotLockRunsCriticalSection(t *testing.T) {
	locker, srv := newTestLocker(t)
	key := testSlotKey()

	ran := false
	err := locker.WithSlotLock(context.Background(), key, func(ctx context.Context) error {
		ran = true
		assert.True(t, srv.Exists(key.String()), "lock key should be held inside the section")
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, srv.Exists(key.String()), "lock key should be released afterwards")
}

func TestWithSlotLockPropagatesCallbackError(t *testing.T) {
	locker, srv := newTestLocker(t)
	key := testSlotKey()

	sentinel := errors.New("insert failed")
	err := locker.WithSlotLock(context.Background(), key, func(ctx context.Context) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.False(t, srv.Exists(key.String()), "lock released even when the section fails")
}

func TestWithSlotLockHeldByAnotherBooking(t *testing.T) {
	locker, srv := newTestLocker(t)
	key := testSlotKey()

	require.NoError(t, srv.Set(key.String(), "someone-else"))

	err := locker.WithSlotLock(context.Background(), key, func(ctx context.Context) error {
		t.Fatal("critical section must not run while the lock is held")
		return nil
	})
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	// The other holder's lock survives.
	got, err := srv.Get(key.String())
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestWithSlotLockReleasedLockIsReusable(t *testing.T) {
	locker, _ := newTestLocker(t)
	key := testSlotKey()

	for i := 0; i < 2; i++ {
		err := locker.WithSlotLock(context.Background(), key, func(ctx context.Context) error {
			return nil
		})
		require.NoError(t, err)
	}
}

func TestWithSlotLockDistinctSlotsDoNotContend(t *testing.T) {
	locker, _ := newTestLocker(t)
	first := testSlotKey()
	second := first
	second.TimeOfDay = "09:30"

	err := locker.WithSlotLock(context.Background(), first, func(ctx context.Context) error {
		return locker.WithSlotLock(ctx, second, func(ctx context.Context) error {
			return nil
		})
	})
	assert.NoError(t, err)
}

func TestWithSlotLockDoesNotReleaseStolenLock(t *testing.T) {
	locker, srv := newTestLocker(t)
	key := testSlotKey()

	err := locker.WithSlotLock(context.Background(), key, func(ctx context.Context) error {
		// Simulate TTL expiry plus a new holder taking the lock.
		srv.FastForward(10 * time.Second)
		return srv.Set(key.String(), "new-holder")
	})
	require.NoError(t, err)

	got, err := srv.Get(key.String())
	require.NoError(t, err)
	assert.Equal(t, "new-holder", got, "token-checked release must not delete another holder's lock")
}
