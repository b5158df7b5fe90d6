package redislock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-api-accounts/internal/pkg/id"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "lock:account:"
	minBackoff = 10 * time.Millisecond
	maxBackoff = 250 * time.Millisecond
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Locker serializes work per key across processes sharing one Redis.
// A held key expires after ttl so a crashed holder cannot block it forever.
type Locker struct {
	client redis.Cmdable
	ttl    time.Duration
}

func New(client redis.Cmdable, ttl time.Duration) *Locker {
	return &Locker{client: client, ttl: ttl}
}

// Lock blocks until key is acquired or ctx is done. The returned func
// releases the key; calling it more than once is a no-op.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefix + key
	token := id.New()
	backoff := minBackoff

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(ctx, key, redisKey, token) })
	}, nil
}

func (l *Locker) release(ctx context.Context, key, redisKey, token string) {
	// Runs even if the caller's context is already canceled.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	n, err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Int()
	if err != nil {
		slog.Error("release lock", "key", key, "err", err)
		return
	}
	if n == 0 {
		slog.Warn("lock expired before release", "key", key, "ttl", l.ttl)
	}
}
