package security

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	// IdleTTL is how long an unused key is kept before cleanup drops it.
	IdleTTL time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 5,
		Burst:             20,
		IdleTTL:           10 * time.Minute,
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per key, typically a client IP.
type RateLimiter struct {
	config   RateLimitConfig
	visitors map[string]*visitor
	mu       sync.Mutex
	cleanup  *time.Timer
	closed   bool
}

func CreateRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.IdleTTL <= 0 {
		config.IdleTTL = DefaultRateLimitConfig().IdleTTL
	}
	rl := &RateLimiter{
		config:   config,
		visitors: make(map[string]*visitor),
	}
	rl.startCleanup()
	return rl
}

func (rl *RateLimiter) Allow(key string) bool {
	return rl.get(key).Allow()
}

// RetryAfter reports how long the caller should wait before key has a token
// again. It does not consume one.
func (rl *RateLimiter) RetryAfter(key string) time.Duration {
	limiter := rl.get(key)
	now := time.Now()
	tokens := limiter.TokensAt(now)
	if tokens >= 1 {
		return 0
	}
	if rl.config.RequestsPerSecond <= 0 {
		return time.Second
	}
	missing := 1 - tokens
	return time.Duration(missing / rl.config.RequestsPerSecond * float64(time.Second))
}

func (rl *RateLimiter) GetStats(key string) (int, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[key]
	if !exists {
		return 0, false
	}
	return int(v.limiter.Tokens()), true
}

func (rl *RateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.Burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

func (rl *RateLimiter) startCleanup() {
	rl.cleanup = time.AfterFunc(rl.config.IdleTTL, func() {
		rl.mu.Lock()
		defer rl.mu.Unlock()

		if rl.closed {
			return
		}

		cutoff := time.Now().Add(-rl.config.IdleTTL)
		for key, v := range rl.visitors {
			if v.lastSeen.Before(cutoff) {
				delete(rl.visitors, key)
			}
		}

		rl.startCleanup()
	})
}

func (rl *RateLimiter) Close() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.closed = true
	if rl.cleanup != nil {
		rl.cleanup.Stop()
	}
}
