package ratelimit

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

const fixedWindowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if current > tonumber(ARGV[2]) then
  return 0
end
return 1
`

// RedisLimiter is a fixed-window limiter shared by every API replica.
type RedisLimiter struct {
	client *redis.Client
	script *redis.Script
	limit  int
	window time.Duration
	log    zerolog.Logger
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, log zerolog.Logger) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		script: redis.NewScript(fixedWindowScript),
		limit:  limit,
		window: window,
		log:    log,
	}
}

// Allow fails open when Redis is unreachable.
func (l *RedisLimiter) Allow(ctx context.Context, key string) bool {
	if l == nil || l.client == nil || key == "" || l.limit <= 0 || l.window <= 0 {
		return true
	}
	ttl := l.window.Milliseconds()
	if ttl <= 0 {
		ttl = 1
	}
	ctx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer cancel()

	allowed, err := l.script.Run(ctx, l.client, []string{"ratelimit:" + key}, ttl, l.limit).Int64()
	if err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("rate limit check failed, allowing request")
		return true
	}
	return allowed == 1
}

// LocalLimiter keeps one token bucket per key in process memory. A bucket idle for a whole
// window has refilled completely, so it is evicted and recreated on the next request.
type LocalLimiter struct {
	mu      sync.Mutex
	buckets *gocache.Cache
	idle    time.Duration
	every   rate.Limit
	burst   int
}

func NewLocalLimiter(limit int, window time.Duration) *LocalLimiter {
	l := &LocalLimiter{idle: window}
	if limit > 0 && window > 0 {
		l.every = rate.Every(window / time.Duration(limit))
		l.burst = limit
		l.buckets = gocache.New(window, window)
	}
	return l
}

func (l *LocalLimiter) Allow(_ context.Context, key string) bool {
	if key == "" || l.burst == 0 {
		return true
	}
	l.mu.Lock()
	var limiter *rate.Limiter
	if cached, found := l.buckets.Get(key); found {
		limiter = cached.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(l.every, l.burst)
	}
	// Sliding expiry
	l.buckets.Set(key, limiter, l.idle)
	l.mu.Unlock()
	return limiter.Allow()
}
