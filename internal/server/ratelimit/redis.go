package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// rateLimitScript counts requests in a fixed window and returns the count and
// the window's remaining lifetime in milliseconds.
const rateLimitScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`

// redisTimeout bounds one limiter round trip; on timeout the request is let through.
const redisTimeout = 250 * time.Millisecond

// RedisLimiter is a fixed-window limiter shared by every server instance.
type RedisLimiter struct {
	client redis.UniversalClient
	config Config
	script *redis.Script
	now    func() time.Time
}

// NewRedisLimiter returns nil when client is nil.
func NewRedisLimiter(client redis.UniversalClient, config Config) *RedisLimiter {
	if client == nil {
		return nil
	}
	return &RedisLimiter{
		client: client,
		config: config,
		script: redis.NewScript(rateLimitScript),
		now:    time.Now,
	}
}

// Allow counts the request against key's current window. Redis failures fail open.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, Info) {
	if l == nil || l.client == nil || !l.config.Enabled() || key == "" {
		return true, unlimited()
	}

	redisKey := key
	if l.config.Prefix != "" {
		redisKey = l.config.Prefix + ":" + key
	}
	ttl := l.config.Window.Milliseconds()
	if ttl <= 0 {
		ttl = 1
	}

	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	res, err := l.script.Run(ctx, l.client, []string{redisKey}, ttl).Int64Slice()
	if err != nil || len(res) != 2 {
		return true, unlimited()
	}

	current, pttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	if pttl < 0 {
		pttl = l.config.Window
	}
	allowed := current <= l.config.Limit
	info := Info{
		Allowed:   allowed,
		Limit:     l.config.Limit,
		Remaining: max(l.config.Limit-current, 0),
		ResetTime: l.now().Add(pttl),
	}
	if !allowed {
		info.RetryAfter = pttl
	}
	return allowed, info
}
