package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	defaultTTL   = 30 * time.Second
	pollInterval = 50 * time.Millisecond
	keyPrefix    = "registry:lock:resident:"
)

// release deletes the key only while it still holds our token
var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisResidentLocker serializes work on a resident across instances with
// SET NX PX. The TTL caps how long a crashed holder blocks others.
type RedisResidentLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	log    *logrus.Entry
}

// NewRedisResidentLocker creates a locker on client
func NewRedisResidentLocker(client redis.UniversalClient, ttl time.Duration, log *logrus.Entry) *RedisResidentLocker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &RedisResidentLocker{client: client, ttl: ttl, log: log}
}

// Lock polls until the lock is acquired or ctx is done
func (l *RedisResidentLocker) Lock(ctx context.Context, residentID uint) (func(), error) {
	key := fmt.Sprintf("%s%d", keyPrefix, residentID)
	token := uuid.NewString()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, errors.Wrapf(err, "acquire %s", key)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := release.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
				l.log.WithError(err).WithField("key", key).Warn("failed to release resident lock")
			}
		})
	}, nil
}
