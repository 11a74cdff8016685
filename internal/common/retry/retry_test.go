package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "procurement-harvester/internal/common/errors"
	"procurement-harvester/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return ctx.Err()
}

func testPolicy(rec *sleepRecorder) Policy {
	return DefaultPolicy().WithSleep(rec.sleep)
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	rec := &sleepRecorder{}
	calls := 0
	var retried []int

	p := testPolicy(rec)
	p.OnRetry = func(attempt int, err error) { retried = append(retried, attempt) }

	err := p.Do(context.Background(), logger.NewTestLogger(t), "fetch page", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return apperrors.NewTransientNetworkError("HTTP 503", nil)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.waits)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	rec := &sleepRecorder{}
	calls := 0

	err := testPolicy(rec).Do(context.Background(), logger.NewNoOpLogger(), "fetch page", func(ctx context.Context) error {
		calls++
		return apperrors.NewTransientNetworkError("timeout", errors.New("i/o timeout"))
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, errors.Is(err, apperrors.ErrTransient))
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Len(t, rec.waits, 2)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	rec := &sleepRecorder{}
	calls := 0

	err := testPolicy(rec).Do(context.Background(), logger.NewNoOpLogger(), "fetch page", func(ctx context.Context) error {
		calls++
		return apperrors.NewMalformedResponseError("truncated JSON", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.waits)
	assert.True(t, errors.Is(err, apperrors.ErrMalformed))
	assert.NotContains(t, err.Error(), "attempts")
}

func TestDo_HonorsRetryAfterHint(t *testing.T) {
	rec := &sleepRecorder{}
	calls := 0

	err := testPolicy(rec).Do(context.Background(), logger.NewNoOpLogger(), "fetch page", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return apperrors.NewRateLimitedError("HTTP 429", 5*time.Second)
		}
		if calls == 2 {
			return apperrors.NewRateLimitedError("HTTP 429", time.Minute)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, rec.waits, "hint used, capped at MaxDelay")
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	p := DefaultPolicy().WithSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	})

	err := p.Do(ctx, nil, "upload", func(ctx context.Context) error {
		calls++
		return apperrors.NewTransientNetworkError("reset", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, errors.Is(err, apperrors.ErrTransient))
}

func TestDo_CustomRetryable(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 4, Retryable: func(error) bool { return true }}.WithSleep(func(context.Context, time.Duration) error { return nil })

	err := p.Do(context.Background(), nil, "op", func(ctx context.Context) error {
		calls++
		return errors.New("plain")
	})
	require.Error(t, err)
	assert.Equal(t, 4, calls)
}

func TestPolicyDelay(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
	assert.Equal(t, 8*time.Second, p.Delay(4))
	assert.Equal(t, 10*time.Second, p.Delay(5))
	assert.Equal(t, 10*time.Second, p.Delay(12))
}
