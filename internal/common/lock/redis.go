// internal/common/lock/redis.go
package lock

import (
	"context"
	"errors"
	"time"

	apperrors "procurement-harvester/internal/common/errors"
	"procurement-harvester/internal/common/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockLost is returned by Release when the lease expired and another
// holder may have taken the key.
var ErrLockLost = errors.New("LOCK_LOST")

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker takes leases with SET NX PX. A lease that outlives TTL expires on
// its own; it is not renewed.
type RedisLocker struct {
	client   redis.Cmdable
	prefix   string
	ttl      time.Duration
	interval time.Duration
	token    func() string
	logger   logger.Logger
}

func NewRedisLocker(client redis.Cmdable, prefix string, ttl time.Duration, log logger.Logger) *RedisLocker {
	return &RedisLocker{
		client:   client,
		prefix:   prefix,
		ttl:      ttl,
		interval: 200 * time.Millisecond,
		token:    uuid.NewString,
		logger:   log.WithFields(map[string]interface{}{"locker": "redis"}),
	}
}

// Acquire polls until the key is free, ctx ends, or a full TTL has passed
// without success.
func (r *RedisLocker) Acquire(ctx context.Context, key string) (Lease, error) {
	full := r.prefix + key
	token := r.token()
	deadline := time.Now().Add(r.ttl)

	for {
		ok, err := r.client.SetNX(ctx, full, token, r.ttl).Result()
		if err != nil {
			return nil, apperrors.NewLockUnavailableError(full, err)
		}
		if ok {
			r.logger.Debug("lock acquired", map[string]interface{}{"key": full})
			return &redisLease{locker: r, key: full, token: token}, nil
		}
		if time.Now().After(deadline) {
			return nil, apperrors.NewLockUnavailableError(full, errors.New("held by another run"))
		}

		t := time.NewTimer(r.interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

type redisLease struct {
	locker *RedisLocker
	key    string
	token  string
}

func (l *redisLease) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.locker.client, []string{l.key}, l.token).Int()
	if err != nil {
		return apperrors.NewLockUnavailableError(l.key, err)
	}
	if n == 0 {
		l.locker.logger.Warn("lock expired before release", map[string]interface{}{
			"key": l.key,
			"ttl": l.locker.ttl.String(),
		})
		return ErrLockLost
	}
	return nil
}
