package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	k := NewKeyedMutex()
	var inside, peak int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := k.Acquire(context.Background(), "공사")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			if n > atomic.LoadInt32(&peak) {
				atomic.StoreInt32(&peak, n)
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			assert.NoError(t, lease.Release(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&peak))
	assert.Empty(t, k.locks, "idle keys are dropped")
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	k := NewKeyedMutex()
	a, err := k.Acquire(context.Background(), "공사")
	require.NoError(t, err)
	defer a.Release(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	b, err := k.Acquire(ctx, "물품")
	require.NoError(t, err)
	require.NoError(t, b.Release(ctx))
}

func TestKeyedMutex_WaiterGivesUpOnContext(t *testing.T) {
	k := NewKeyedMutex()
	held, err := k.Acquire(context.Background(), "용역")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = k.Acquire(ctx, "용역")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, held.Release(context.Background()))
	assert.Empty(t, k.locks)
}

func TestKeyedMutex_DoubleReleaseIsHarmless(t *testing.T) {
	k := NewKeyedMutex()
	lease, err := k.Acquire(context.Background(), "x")
	require.NoError(t, err)
	require.NoError(t, lease.Release(context.Background()))
	require.NoError(t, lease.Release(context.Background()))

	again, err := k.Acquire(context.Background(), "x")
	require.NoError(t, err)
	require.NoError(t, again.Release(context.Background()))
}
