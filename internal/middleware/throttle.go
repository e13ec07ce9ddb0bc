package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"mood/internal/metrics"
	"mood/internal/utils"

	"github.com/gin-gonic/gin"
)

// LoginThrottle allows limit requests per client address and window.
// Counters live in a bounded in-memory cache and are lost on restart.
func LoginThrottle(cache *utils.Cache, limit int, window time.Duration, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "login:" + utils.NormalizeIP(c.ClientIP())
		if cache.Increment(key, window) > limit {
			m.Login(metrics.OutcomeThrottled)
			c.Header("Retry-After", retryAfter(window))
			msg := "Trop de tentatives, réessayez dans une minute"
			if strings.HasPrefix(c.Request.URL.Path, "/api/") || strings.Contains(c.GetHeader("Accept"), "application/json") {
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": msg})
				return
			}
			c.String(http.StatusTooManyRequests, msg)
			c.Abort()
			return
		}
		c.Next()
	}
}

func retryAfter(window time.Duration) string {
	secs := int(window.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
