package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocker(t *testing.T) (*RedisResidentLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisResidentLocker(client, time.Minute, nil), mr
}

func TestRedisLocker_ExcludesSecondHolder(t *testing.T) {
	locker, mr := newLocker(t)

	unlock, err := locker.Lock(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, mr.Exists("registry:lock:resident:42"))

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, 42)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.False(t, mr.Exists("registry:lock:resident:42"))

	unlock2, err := locker.Lock(context.Background(), 42)
	require.NoError(t, err)
	unlock2()
}

func TestRedisLocker_DifferentResidentsDoNotBlock(t *testing.T) {
	locker, _ := newLocker(t)

	unlock1, err := locker.Lock(context.Background(), 1)
	require.NoError(t, err)
	defer unlock1()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlock2, err := locker.Lock(ctx, 2)
	require.NoError(t, err)
	unlock2()
}

func TestRedisLocker_UnlockKeepsForeignToken(t *testing.T) {
	locker, mr := newLocker(t)

	unlock, err := locker.Lock(context.Background(), 7)
	require.NoError(t, err)

	// lock expired and someone else took it
	require.NoError(t, mr.Set("registry:lock:resident:7", "someone-else"))
	unlock()

	got, err := mr.Get("registry:lock:resident:7")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}
