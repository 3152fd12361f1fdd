package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// unlockScript deletes the lock only if it still holds our token, so an
// expired holder never releases someone else's lock.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every instance pointed at the same Redis.
type RedisLocker struct {
	rdb        redis.UniversalClient
	prefix     string
	lease      time.Duration
	retryEvery time.Duration
}

// NewRedisLocker creates a distributed locker. lease bounds how long a
// crashed holder can block a phone.
func NewRedisLocker(rdb redis.UniversalClient, lease time.Duration) *RedisLocker {
	if lease <= 0 {
		lease = 30 * time.Second
	}
	return &RedisLocker{
		rdb:        rdb,
		prefix:     "sms:lock",
		lease:      lease,
		retryEvery: 50 * time.Millisecond,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := l.prefix + ":" + key
	token := uuid.NewString()

	for {
		ok, err := l.rdb.SetNX(ctx, lockKey, token, l.lease).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrLockTimeout
			}
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(l.retryEvery)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ErrLockTimeout
		case <-timer.C:
		}
	}

	return func() {
		// The caller's context may already be done; release with a fresh one.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := unlockScript.Run(releaseCtx, l.rdb, []string{lockKey}, token).Err(); err != nil && err != redis.Nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to release lock")
		}
	}, nil
}
