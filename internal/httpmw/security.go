// Package httpmw holds the ambient HTTP middleware that every route on the
// Control Surface gets regardless of which domain operation it serves:
// security headers and a per-IP rate limit. Neither depends on anything in
// the core packages; they only ever see a *gin.Context.
package httpmw

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityHeaders sets the response headers that protect an API-only,
// token-bearer-auth surface: no inline script/style policy is needed since
// this service serves no HTML, so the CSP is locked down to 'none'.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Content-Security-Policy", "default-src 'none'")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		c.Next()
	}
}

// fixedWindowLimiter is a per-key fixed-window counter: a request is allowed
// while the count within the current window stays at or below limit.
type fixedWindowLimiter struct {
	requests   sync.Map // key -> *windowEntry
	limit      int64
	windowSecs int64
}

type windowEntry struct {
	count       int64
	windowStart int64
}

func newFixedWindowLimiter(limit, windowSecs int64) *fixedWindowLimiter {
	return &fixedWindowLimiter{limit: limit, windowSecs: windowSecs}
}

func (l *fixedWindowLimiter) allow(key string) (allowed bool, remaining, resetIn int64) {
	now := time.Now().Unix()

	entryI, loaded := l.requests.LoadOrStore(key, &windowEntry{count: 1, windowStart: now})
	entry := entryI.(*windowEntry)
	if !loaded {
		return true, l.limit - 1, l.windowSecs
	}

	for {
		start := atomic.LoadInt64(&entry.windowStart)
		if now-start < l.windowSecs {
			break
		}
		if atomic.CompareAndSwapInt64(&entry.windowStart, start, now) {
			atomic.StoreInt64(&entry.count, 1)
			return true, l.limit - 1, l.windowSecs
		}
	}

	start := atomic.LoadInt64(&entry.windowStart)
	count := atomic.AddInt64(&entry.count, 1)
	remaining = l.limit - count
	resetIn = l.windowSecs - (now - start)
	if remaining < 0 {
		remaining = 0
	}
	if resetIn < 0 {
		resetIn = 0
	}
	if count > l.limit {
		atomic.AddInt64(&entry.count, -1)
		return false, 0, resetIn
	}
	return true, remaining, resetIn
}

func clientKey(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	return c.ClientIP()
}

// RateLimit enforces limit requests per windowSecs per client IP, one
// control surface for every websocket-upgrade and REST call alike.
func RateLimit(limit, windowSecs int64) gin.HandlerFunc {
	limiter := newFixedWindowLimiter(limit, windowSecs)
	return func(c *gin.Context) {
		key := clientKey(c)
		allowed, remaining, resetIn := limiter.allow(key)

		c.Header("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetIn, 10))

		if !allowed {
			c.Header("Retry-After", strconv.FormatInt(resetIn, 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "rate limit exceeded",
				"code":    "RATE_LIMIT_EXCEEDED",
			})
			return
		}
		c.Next()
	}
}
