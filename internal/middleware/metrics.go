package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/duetapp/notify-api/pkg/metrics"
)

// Metrics records per-request counters and latency. Requests are labelled
// with the registered route pattern, not the raw path, so path parameters
// do not explode label cardinality.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPLatency.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
