package httpmiddleware

import (
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"cohort/internal/auth"
)

// TokenBucket is an in-memory per-caller rate limiter. Buckets left alone
// long enough to refill completely are dropped, so the map only holds
// recently active callers.
type TokenBucket struct {
	capacity  float64
	perMinute float64
	idleAfter time.Duration
	now       func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	swept   time.Time
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// NewTokenBucket allows bursts of capacity requests, refilled at perMinute.
// A non-positive capacity means one minute's worth.
func NewTokenBucket(capacity, perMinute int) *TokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	refill := time.Minute
	if perMinute > 0 {
		refill = time.Duration(float64(capacity) / float64(perMinute) * float64(time.Minute))
	}
	return &TokenBucket{
		capacity:  float64(capacity),
		perMinute: float64(perMinute),
		idleAfter: max(refill, time.Minute),
		now:       time.Now,
		buckets:   make(map[string]*bucket),
	}
}

// GinMiddleware limits signed-in callers by email and everyone else by IP.
// It only sees the email when mounted after auth.Authenticate.
func (l *TokenBucket) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(callerKey(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}

func callerKey(c *gin.Context) string {
	if claims, ok := auth.FromContext(c); ok && claims.Email != "" {
		return "user:" + claims.Email
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

func (l *TokenBucket) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.swept) >= l.idleAfter {
		l.sweep(now)
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.capacity, seen: now}
		l.buckets[key] = b
	} else {
		gained := float64(now.Sub(b.seen)) * l.perMinute / float64(time.Minute)
		b.tokens = math.Min(l.capacity, b.tokens+gained)
		b.seen = now
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// sweep drops buckets idle for idleAfter. Such a bucket is full again, the
// same as a fresh one.
func (l *TokenBucket) sweep(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.seen) >= l.idleAfter {
			delete(l.buckets, key)
		}
	}
	l.swept = now
}
