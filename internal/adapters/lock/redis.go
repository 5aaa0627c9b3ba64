package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"faas-engine/internal/core/engine"
	"faas-engine/pkg/rand"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var _ engine.Locker = (*Redis)(nil)

const (
	lockKeyPrefix = "faas-engine:lock:"
	retryInterval = 50 * time.Millisecond
)

// releaseScript deletes the lock only if it is still held by this token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the lease only if it is still held by this token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis is a distributed lock shared by every engine replica. A held lock is
// renewed every ttl/3, so it expires only after its holder dies.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	lg     zerolog.Logger
}

// Connect creates a Redis client from a URL and verifies connectivity.
func Connect(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func NewRedis(client *redis.Client, ttl time.Duration, lg zerolog.Logger) *Redis {
	return &Redis{
		client: client,
		ttl:    ttl,
		lg:     lg.With().Str("adapter", "redis-lock").Logger(),
	}
}

// Lock polls SET NX until the key is free or ctx ends.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := lockKeyPrefix + key
	token := rand.UUIDHex()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %v", engine.ErrLocked, key, ctx.Err())
			}
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			stop := make(chan struct{})
			done := make(chan struct{})
			go r.renew(redisKey, token, stop, done)

			var once sync.Once
			return func() {
				once.Do(func() {
					close(stop)
					<-done
					r.release(redisKey, token)
				})
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", engine.ErrLocked, key, ctx.Err())
		case <-time.After(retryInterval):
		}
	}
}

func (r *Redis) renew(redisKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := r.ttl / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), interval)
		n, err := extendScript.Run(ctx, r.client, []string{redisKey}, token, r.ttl.Milliseconds()).Int()
		cancel()
		if err != nil {
			r.lg.Error().Err(err).Str("key", redisKey).Msg("failed to renew lock")
			continue
		}
		if n == 0 {
			r.lg.Warn().Str("key", redisKey).Msg("lock lost before renewal")
			return
		}
	}
}

func (r *Redis) release(redisKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n, err := releaseScript.Run(ctx, r.client, []string{redisKey}, token).Int()
	if err != nil {
		r.lg.Error().Err(err).Str("key", redisKey).Msg("failed to release lock")
		return
	}
	if n == 0 {
		r.lg.Warn().Str("key", redisKey).Msg("lock expired before release")
	}
}
