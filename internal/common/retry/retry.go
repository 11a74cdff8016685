// Package retry runs operations under a bounded exponential backoff policy.
package retry

import (
	"context"
	"fmt"
	"time"

	apperrors "procurement-harvester/internal/common/errors"
	"procurement-harvester/internal/common/logger"
)

// Policy describes how many times and how patiently an operation is retried.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// Retryable decides whether err deserves another attempt. Defaults to
	// errors.IsRetryable from the common error taxonomy.
	Retryable func(err error) bool

	// OnRetry is called before each wait; used for metrics.
	OnRetry func(attempt int, err error)

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy mirrors the shipped configuration: 3 attempts, 1s doubling, 10s cap.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
	}
}

// WithSleep returns a copy of p that waits with fn instead of a timer.
func (p Policy) WithSleep(fn func(ctx context.Context, d time.Duration) error) Policy {
	p.sleep = fn
	return p
}

// Delay is the wait before attempt n+1 (n starting at 1), ignoring server hints.
func (p Policy) Delay(n int) time.Duration {
	d := float64(p.InitialDelay)
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	for i := 1; i < n; i++ {
		d *= mult
		if p.MaxDelay > 0 && time.Duration(d) >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && time.Duration(d) > p.MaxDelay {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Do runs op until it succeeds, returns a non-retryable error, the attempts are
// exhausted or ctx is done. The last error is returned wrapped with the attempt count.
func (p Policy) Do(ctx context.Context, log logger.Logger, name string, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = apperrors.IsRetryable
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}

		err = op(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) || attempt == attempts {
			break
		}

		delay := p.Delay(attempt)
		if hint := apperrors.RetryAfterHint(err); hint > delay {
			delay = hint
			if p.MaxDelay > 0 && delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}

		if log != nil {
			log.Warn(fmt.Sprintf("%s failed, retrying...", name), map[string]interface{}{
				"error":       err.Error(),
				"errorCode":   string(apperrors.CodeOf(err)),
				"attempt":     attempt,
				"maxAttempts": attempts,
				"nextRetryIn": delay.String(),
			})
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return err
		}
	}

	if attempts > 1 && retryable(err) {
		return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, err)
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
