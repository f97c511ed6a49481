package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter allows a fixed number of requests per client IP per window.
type RateLimiter struct {
	requests map[string]*clientLimit
	stop     chan struct{}
	mu       sync.Mutex
	limit    int
	window   time.Duration
	stopOnce sync.Once
}

type clientLimit struct {
	count     int
	resetTime time.Time
}

// NewRateLimiter creates a RateLimiter and starts its cleanup loop.
func NewRateLimiter(requestsPerWindow int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	rl := &RateLimiter{
		requests: make(map[string]*clientLimit),
		stop:     make(chan struct{}),
		limit:    requestsPerWindow,
		window:   window,
	}

	go rl.cleanup()

	return rl
}

// Stop ends the cleanup loop.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for key, limit := range rl.requests {
				if now.After(limit.resetTime) {
					delete(rl.requests, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Middleware rejects requests over the limit with 429. A non-positive
// limit disables limiting.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.limit <= 0 {
			c.Next()
			return
		}

		clientIP := c.ClientIP()
		now := time.Now()

		rl.mu.Lock()
		limit, exists := rl.requests[clientIP]
		if !exists || now.After(limit.resetTime) {
			limit = &clientLimit{resetTime: now.Add(rl.window)}
			rl.requests[clientIP] = limit
		}

		if limit.count >= rl.limit {
			resetTime := limit.resetTime
			rl.mu.Unlock()

			retryAfter := int(resetTime.Sub(now).Seconds()) + 1
			c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))
			c.Header("Retry-After", strconv.Itoa(retryAfter))

			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": retryAfter,
			})
			c.Abort()
			return
		}

		limit.count++
		remaining := rl.limit - limit.count
		resetTime := limit.resetTime
		rl.mu.Unlock()

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

		c.Next()
	}
}
