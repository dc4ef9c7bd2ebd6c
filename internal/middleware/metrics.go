// Package middleware provides the Gin HTTP middleware chain for the registry
// API. Ordering matters and is enforced in internal/api/router.go:
//
//	Recovery → RequestID → Metrics → SecurityHeaders → RateLimit → Handler
//
// Security headers run on every response including errors, and rate limiting
// runs before any handler so brute-force login attempts are rejected before
// any bcrypt or database work.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/org-registry/org-registry/internal/telemetry"
)

// Metrics returns a Gin handler that records request count and latency for
// every request that passes through the router.
//
// The path label is set from c.FullPath(), the matched route template
// (e.g. /org/get/:name) rather than the raw URL, so per-organization URLs do
// not inflate label cardinality. Requests that match no registered route use
// the literal "<no-route>".
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "<no-route>"
		}

		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
