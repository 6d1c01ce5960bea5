package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/kiddies/pkg/errors"
	"github.com/charlesng35/kiddies/pkg/logger"
	"github.com/charlesng35/kiddies/pkg/metrics"
	"github.com/charlesng35/kiddies/pkg/response"
)

const rateLimitKeyPrefix = "ratelimit:"

// RateLimit limits requests per (clientIP, route) within a fixed window using store. A nil store
// falls back to process memory. Store failures let the request through.
func RateLimit(store RateStore, maxRequests int, window time.Duration) gin.HandlerFunc {
	if store == nil {
		store = NewMemoryRateStore()
	}

	return func(c *gin.Context) {
		if maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		key := rateLimitKeyPrefix + c.ClientIP() + "|" + route

		count, ttl, err := store.Increment(c.Request.Context(), key, window)
		if err != nil {
			logger.WithModule("http").Warn("rate limit store unavailable",
				zap.String("key", key),
				zap.Error(err),
			)
			c.Next()
			return
		}
		if ttl < 0 {
			ttl = window
		}

		remaining := maxRequests - count
		if remaining < 0 {
			remaining = 0
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(ttl.Round(time.Second).Seconds())))

		if count > maxRequests {
			metrics.RateLimited.WithLabelValues(route).Inc()
			c.Header("Retry-After", strconv.Itoa(int(ttl.Round(time.Second).Seconds())))
			response.Error(c, errors.ErrRateLimit)
			c.Abort()
			return
		}

		c.Next()
	}
}
