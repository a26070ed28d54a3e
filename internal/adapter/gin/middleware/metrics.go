package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"user-doc-service/pkg/metrics"
)

// Metrics records request count and latency per matched route.
func Metrics(m *metrics.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		m.ObserveHTTP(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
