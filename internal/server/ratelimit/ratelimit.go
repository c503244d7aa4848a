// Package ratelimit limits how often one caller may hit a route.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Info contains information about rate limit status.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, Info)
}

// unlimited is the Info returned when limiting is off.
func unlimited() Info {
	return Info{Allowed: true}
}

// TokenBucket represents a token bucket rate limiter.
// It allows a certain number of requests (tokens) per time window,
// with tokens refilling at a steady rate.
type TokenBucket struct {
	capacity   int
	refillRate float64 // tokens per second
	tokens     float64
	lastRefill time.Time
	mu         sync.Mutex
}

func newTokenBucket(capacity int, refillRate float64, now time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		refillRate: refillRate,
		tokens:     float64(capacity),
		lastRefill: now,
	}
}

// take refills the bucket, consumes a token if one is available and reports
// the remaining tokens and when the bucket will be full again.
func (tb *TokenBucket) take(now time.Time) (allowed bool, remaining int, resetTime time.Time) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	elapsed := now.Sub(tb.lastRefill)
	tb.tokens = min(float64(tb.capacity), tb.tokens+elapsed.Seconds()*tb.refillRate)
	tb.lastRefill = now

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		allowed = true
	}

	remaining = int(tb.tokens)
	resetTime = now
	if tb.tokens < float64(tb.capacity) {
		secondsUntilFull := (float64(tb.capacity) - tb.tokens) / tb.refillRate
		resetTime = now.Add(time.Duration(secondsUntilFull * float64(time.Second)))
	}
	return allowed, remaining, resetTime
}

// MemoryLimiter keeps one token bucket per key in process memory. Used when
// no Redis is configured; limits then apply per server instance.
type MemoryLimiter struct {
	config     Config
	buckets    map[string]*TokenBucket
	lastAccess map[string]time.Time
	mu         sync.Mutex
	now        func() time.Time

	cleanupTicker *time.Ticker
	cleanupStop   chan struct{}
	stopOnce      sync.Once
}

// NewMemoryLimiter creates a limiter and starts its bucket cleanup goroutine.
func NewMemoryLimiter(config Config) *MemoryLimiter {
	l := &MemoryLimiter{
		config:     config,
		buckets:    make(map[string]*TokenBucket),
		lastAccess: make(map[string]time.Time),
		now:        time.Now,
	}
	if config.Enabled() && config.CleanupInterval > 0 {
		l.cleanupTicker = time.NewTicker(config.CleanupInterval)
		l.cleanupStop = make(chan struct{})
		go l.cleanup()
	}
	return l
}

// Allow consumes a token from key's bucket.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, Info) {
	if !l.config.Enabled() || key == "" {
		return true, unlimited()
	}

	now := l.now()
	bucket := l.getBucket(key, now)
	allowed, remaining, resetTime := bucket.take(now)

	info := Info{
		Allowed:   allowed,
		Limit:     l.config.Limit,
		Remaining: remaining,
		ResetTime: resetTime,
	}
	if !allowed {
		// One token is enough to retry.
		info.RetryAfter = l.config.Window / time.Duration(l.config.Limit)
	}
	return allowed, info
}

func (l *MemoryLimiter) getBucket(key string, now time.Time) *TokenBucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lastAccess[key] = now
	if bucket, ok := l.buckets[key]; ok {
		return bucket
	}
	capacity := l.config.Burst
	if capacity <= 0 {
		capacity = l.config.Limit
	}
	bucket := newTokenBucket(capacity, float64(l.config.Limit)/l.config.Window.Seconds(), now)
	l.buckets[key] = bucket
	return bucket
}

func (l *MemoryLimiter) cleanup() {
	for {
		select {
		case <-l.cleanupTicker.C:
			l.cleanupBuckets(l.now().Add(-l.config.IdleTTL()))
		case <-l.cleanupStop:
			return
		}
	}
}

// cleanupBuckets removes buckets not used since cutoff.
func (l *MemoryLimiter) cleanupBuckets(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, last := range l.lastAccess {
		if last.Before(cutoff) {
			delete(l.buckets, key)
			delete(l.lastAccess, key)
		}
	}
}

// Stop stops the cleanup goroutine.
func (l *MemoryLimiter) Stop() {
	l.stopOnce.Do(func() {
		if l.cleanupTicker != nil {
			l.cleanupTicker.Stop()
		}
		if l.cleanupStop != nil {
			close(l.cleanupStop)
		}
	})
}
