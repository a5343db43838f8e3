package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/soundfoundry/backend/internal/infrastructure/cache"
	"go.uber.org/zap"
)

// RateLimitConfig holds configuration for rate limiting middleware
type RateLimitConfig struct {
	// Store counts requests per key within a fixed window
	Store cache.RateLimitStore
	// Limit is the maximum requests per window
	Limit int64
	// Window is the fixed window size
	Window time.Duration
	// KeyFunc extracts the rate limit key from the request.
	// Defaults to client IP, prefixed with the authenticated user when present.
	KeyFunc func(*gin.Context) string
	// Logger for middleware logging
	Logger *zap.Logger
}

// DefaultRateLimitKey returns the default rate limit key for a request.
// Authenticated requests are limited per user and IP so a shared NAT
// doesn't exhaust the window for everyone behind it.
func DefaultRateLimitKey(c *gin.Context) string {
	ip := c.ClientIP()
	if userID := GetJWTUserID(c); userID != "" {
		return userID + ":" + ip
	}
	return ip
}

// RateLimit returns a fixed-window rate limiting middleware.
// Used to throttle checkout session creation per user.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = DefaultRateLimitKey
	}

	return func(c *gin.Context) {
		key := keyFunc(c)

		count, err := cfg.Store.Hit(c.Request.Context(), key, cfg.Window)
		if err != nil {
			// Fail open: a degraded limiter store should not block billing traffic
			if cfg.Logger != nil {
				cfg.Logger.Error("Rate limit store unavailable",
					zap.String("key", key),
					zap.Error(err))
			}
			c.Next()
			return
		}

		remaining := cfg.Limit - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", cfg.Limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if count > cfg.Limit {
			if cfg.Logger != nil {
				cfg.Logger.Warn("Rate limit exceeded",
					zap.String("key", key),
					zap.Int64("count", count),
					zap.Int64("limit", cfg.Limit),
					zap.String("path", c.Request.URL.Path))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "ERR_RATE_LIMITED",
					"message": "Too many requests. Please try again later.",
				},
			})
			return
		}

		c.Next()
	}
}

// RateLimitByKey returns a rate limiting middleware with a custom key extractor
func RateLimitByKey(store cache.RateLimitStore, limit int64, window time.Duration, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return RateLimit(RateLimitConfig{
		Store:   store,
		Limit:   limit,
		Window:  window,
		KeyFunc: keyFunc,
	})
}
