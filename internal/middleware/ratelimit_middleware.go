package middleware

import (
	"sync"
	"time"
)

// InvalidAuthRateLimiter counts failed authentication attempts per key
// (client IP) in a fixed window. Successful requests are never counted.
type InvalidAuthRateLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	attempts map[string]*attemptInfo
	now      func() time.Time
}

type attemptInfo struct {
	count   int
	firstAt time.Time
}

// NewInvalidAuthRateLimiter allows limit failures per window and key.
// Defaults: 5 per minute.
func NewInvalidAuthRateLimiter(limit int, window time.Duration) *InvalidAuthRateLimiter {
	if limit <= 0 {
		limit = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	return &InvalidAuthRateLimiter{
		limit:    limit,
		window:   window,
		attempts: make(map[string]*attemptInfo),
		now:      time.Now,
	}
}

// Allow records a failure for key and reports whether it is still within the limit.
func (r *InvalidAuthRateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	info, exists := r.attempts[key]
	if !exists || now.Sub(info.firstAt) > r.window {
		r.attempts[key] = &attemptInfo{count: 1, firstAt: now}
		r.prune(now)
		return true
	}

	if info.count >= r.limit {
		return false
	}
	info.count++
	return true
}

// Blocked reports whether key has used up its failures without recording one.
func (r *InvalidAuthRateLimiter) Blocked(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.attempts[key]
	return ok && r.now().Sub(info.firstAt) <= r.window && info.count >= r.limit
}

// prune drops expired entries once the map grows; callers hold mu.
func (r *InvalidAuthRateLimiter) prune(now time.Time) {
	if len(r.attempts) < 1024 {
		return
	}
	for key, info := range r.attempts {
		if now.Sub(info.firstAt) > r.window {
			delete(r.attempts, key)
		}
	}
}
