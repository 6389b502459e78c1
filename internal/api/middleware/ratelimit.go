package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/themobileprof/kernelchat/internal/metrics"
	"golang.org/x/time/rate"
)

// KeyFunc picks the bucket a request is counted against
type KeyFunc func(c *gin.Context) string

// LimiterConfig configures a RateLimiter
type LimiterConfig struct {
	PerMinute int           // sustained requests per minute per key
	Burst     int           // Default: PerMinute
	IdleTTL   time.Duration // buckets unused this long are dropped. Default: 5m
	Key       KeyFunc       // Default: client IP

	now func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a keyed token-bucket limiter. It owns a sweeper goroutine
// that runs until Stop is called.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	limit   rate.Limit
	burst   int
	perMin  int
	idleTTL time.Duration
	key     KeyFunc
	now     func() time.Time

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a limiter and starts its sweeper
func NewRateLimiter(cfg LimiterConfig) *RateLimiter {
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = 100
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.PerMinute
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 5 * time.Minute
	}
	if cfg.Key == nil {
		cfg.Key = func(c *gin.Context) string { return c.ClientIP() }
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}

	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(float64(cfg.PerMinute) / 60.0),
		burst:   cfg.Burst,
		perMin:  cfg.PerMinute,
		idleTTL: cfg.IdleTTL,
		key:     cfg.Key,
		now:     cfg.now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// Reserve takes one token for key. It returns zero when the request may
// proceed, or how long the caller should wait before retrying.
func (rl *RateLimiter) Reserve(key string) time.Duration {
	now := rl.now()

	rl.mu.Lock()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return rl.idleTTL
	}
	if delay := r.DelayFrom(now); delay > 0 {
		// Rejected requests must not consume future tokens
		r.CancelAt(now)
		return delay
	}
	return 0
}

// Middleware rejects requests over the limit with 429 and Retry-After
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	limitHeader := strconv.Itoa(rl.perMin)

	return func(c *gin.Context) {
		c.Header("X-RateLimit-Limit", limitHeader)

		if wait := rl.Reserve(rl.key(c)); wait > 0 {
			metrics.RateLimitRejectedTotal.Inc()
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			return
		}
		c.Next()
	}
}

// Sweep drops buckets idle for longer than the TTL and returns how many
func (rl *RateLimiter) Sweep() int {
	cutoff := rl.now().Add(-rl.idleTTL)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Stop ends the sweeper and waits for it. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
	<-rl.done
}

func (rl *RateLimiter) sweepLoop() {
	defer close(rl.done)

	ticker := time.NewTicker(rl.idleTTL)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.Sweep()
		}
	}
}

// WebSocketLimiter tracks message rate for one WebSocket connection.
// It needs no sweeper: it lives and dies with the connection.
type WebSocketLimiter struct {
	limiter *rate.Limiter
}

// NewWebSocketLimiter creates a limiter for WebSocket messages
func NewWebSocketLimiter(messagesPerMinute int) *WebSocketLimiter {
	return &WebSocketLimiter{
		limiter: rate.NewLimiter(rate.Limit(messagesPerMinute)/60.0, messagesPerMinute),
	}
}

// Allow checks if a message is allowed
func (wsl *WebSocketLimiter) Allow() bool {
	return wsl.limiter.Allow()
}
