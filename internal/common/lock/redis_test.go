package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "procurement-harvester/internal/common/errors"
	"procurement-harvester/internal/common/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniLocker(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *RedisLocker) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	l := NewRedisLocker(client, "harvest:lock:", ttl, logger.NewTestLogger(t))
	l.interval = 5 * time.Millisecond
	return mr, l
}

func TestRedisLocker_AcquireRelease(t *testing.T) {
	mr, l := newMiniLocker(t, time.Minute)
	ctx := context.Background()

	lease, err := l.Acquire(ctx, "공사")
	require.NoError(t, err)
	assert.True(t, mr.Exists("harvest:lock:공사"))
	assert.Equal(t, time.Minute, mr.TTL("harvest:lock:공사"))

	require.NoError(t, lease.Release(ctx))
	assert.False(t, mr.Exists("harvest:lock:공사"))
}

func TestRedisLocker_WaitsForHolder(t *testing.T) {
	_, l := newMiniLocker(t, 2*time.Second)
	ctx := context.Background()

	first, err := l.Acquire(ctx, "물품")
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		first.Release(ctx)
	}()

	start := time.Now()
	second, err := l.Acquire(ctx, "물품")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	require.NoError(t, second.Release(ctx))
}

func TestRedisLocker_GivesUpAfterTTL(t *testing.T) {
	_, l := newMiniLocker(t, 40*time.Millisecond)
	ctx := context.Background()

	_, err := l.Acquire(ctx, "용역")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "용역")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeLockUnavailable, apperrors.CodeOf(err))
}

func TestRedisLocker_ReleaseAfterExpiry(t *testing.T) {
	mr, l := newMiniLocker(t, time.Second)
	ctx := context.Background()

	lease, err := l.Acquire(ctx, "발주계획")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("harvest:lock:발주계획", "someone-else"))

	assert.ErrorIs(t, lease.Release(ctx), ErrLockLost)
	got, _ := mr.Get("harvest:lock:발주계획")
	assert.Equal(t, "someone-else", got, "a foreign lease is never deleted")
}

func TestRedisLocker_SetNXFailure(t *testing.T) {
	client, mock := redismock.NewClientMock()
	l := NewRedisLocker(client, "harvest:lock:", time.Minute, logger.NewTestLogger(t))
	l.token = func() string { return "tok" }

	mock.ExpectSetNX("harvest:lock:공사", "tok", time.Minute).SetErr(errors.New("connection refused"))

	_, err := l.Acquire(context.Background(), "공사")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeLockUnavailable, apperrors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLocker_ReleaseFailure(t *testing.T) {
	client, mock := redismock.NewClientMock()
	l := NewRedisLocker(client, "harvest:lock:", time.Minute, logger.NewTestLogger(t))
	l.token = func() string { return "tok" }

	mock.ExpectSetNX("harvest:lock:공사", "tok", time.Minute).SetVal(true)
	mock.ExpectEvalSha(releaseScript.Hash(), []string{"harvest:lock:공사"}, "tok").SetErr(errors.New("i/o timeout"))

	lease, err := l.Acquire(context.Background(), "공사")
	require.NoError(t, err)

	err = lease.Release(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeLockUnavailable, apperrors.CodeOf(err))
	assert.EqualError(t, errors.Unwrap(err), "i/o timeout")
	assert.NoError(t, mock.ExpectationsWereMet())
}
