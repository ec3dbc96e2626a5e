// Package httpkit holds the gin middleware and response helpers shared by
// every HTTP-facing module.
package httpkit

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"crm_backend/platform/config"
	"crm_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// HeaderRequestID carries the correlation ID in requests and responses.
const HeaderRequestID = "X-Request-ID"

// RequestID reuses the caller's correlation ID or mints one, echoes it back
// and makes it visible to logger.WithContext.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(HeaderRequestID, id)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), logger.RequestIDKey, id))
		c.Next()
	}
}

func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.HTTPRequest(c.Request.Method, c.Request.URL.Path, c.Writer.Status(),
			float64(time.Since(start).Milliseconds()), c.ClientIP())
	}
}

// SecurityHeaders sets the response headers for a JSON-only API.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Cache-Control", "no-store")
		if c.Request.TLS != nil {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

// IPRateLimiter is a token bucket per client IP.
type IPRateLimiter struct {
	buckets sync.Map
	limit   rate.Limit
	burst   int
	log     *logger.Logger
}

func NewIPRateLimiter(limit rate.Limit, burst int, log *logger.Logger) *IPRateLimiter {
	return &IPRateLimiter{limit: limit, burst: burst, log: log}
}

func (l *IPRateLimiter) bucket(ip string) *rate.Limiter {
	if b, ok := l.buckets.Load(ip); ok {
		return b.(*rate.Limiter)
	}
	b, _ := l.buckets.LoadOrStore(ip, rate.NewLimiter(l.limit, l.burst))
	return b.(*rate.Limiter)
}

// RateLimit rejects with 429 once the caller's bucket is empty.
func (l *IPRateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if l.bucket(ip).Allow() {
			c.Next()
			return
		}
		if l.log != nil {
			l.log.RateLimitExceeded(ip, c.Request.URL.Path)
		}
		abortWith(c, http.StatusTooManyRequests, "rate limit exceeded")
	}
}

// NewFormCaptureRateLimiter guards the unauthenticated capture endpoint.
// Unset values fall back to 30 requests a minute with a burst of one.
func NewFormCaptureRateLimiter(cfg config.FormCaptureConfig, log *logger.Logger) *IPRateLimiter {
	perMinute := cfg.GetFormCaptureRatePerMinute()
	if perMinute <= 0 {
		perMinute = 30
	}
	burst := max(cfg.GetFormCaptureBurst(), 1)
	return NewIPRateLimiter(rate.Limit(perMinute/60.0), burst, log)
}
