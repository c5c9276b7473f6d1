package middleware

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vidshare/backend/internal/config"
)

// RateLimiter controls how frequently a caller may perform an action.
type RateLimiter interface {
	Allow(key string) bool
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter keeps one token bucket per key. Keys are "<scope>:<subject>", where the
// subject is a client address or an account id. Buckets idle for longer than the ttl are
// swept at most once per ttl.
type KeyedLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
	onReject  func(scope string)
}

// LimiterOption customises a KeyedLimiter.
type LimiterOption func(*KeyedLimiter)

// WithRejectHook is called with the key's scope whenever a request is refused.
func WithRejectHook(fn func(scope string)) LimiterOption {
	return func(l *KeyedLimiter) { l.onReject = fn }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) LimiterOption {
	return func(l *KeyedLimiter) { l.now = now }
}

// NewKeyedLimiter allows cfg.Requests events per cfg.Window with cfg.Burst extra capacity
// for every key. Non-positive settings fall back to one request per second.
func NewKeyedLimiter(cfg config.RateLimitConfig, ttl time.Duration, opts ...LimiterOption) *KeyedLimiter {
	if cfg.Requests <= 0 {
		cfg.Requests = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	l := &KeyedLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Every(cfg.Window / time.Duration(cfg.Requests)),
		burst:   cfg.Burst,
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastSweep = l.now()
	return l
}

// Allow takes one token from key's bucket.
func (l *KeyedLimiter) Allow(key string) bool {
	if key == "" {
		key = "unknown"
	}

	l.mu.Lock()
	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	if now.Sub(l.lastSweep) >= l.ttl {
		l.sweepLocked(now)
	}
	l.mu.Unlock()

	if b.limiter.AllowN(now, 1) {
		return true
	}
	if l.onReject != nil {
		l.onReject(scopeOf(key))
	}
	return false
}

// Len reports how many buckets are tracked.
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *KeyedLimiter) sweepLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.ttl {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

func scopeOf(key string) string {
	scope, _, found := strings.Cut(key, ":")
	if !found {
		return "global"
	}
	return scope
}
