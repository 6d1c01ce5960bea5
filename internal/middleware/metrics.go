package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/kiddies/pkg/metrics"
)

// MetricsPath is where the Prometheus exporter is mounted. Scrapes are not measured.
const MetricsPath = "/metrics"

const unmatchedRoute = "unmatched"

// Metrics observes latency per route template and tracks in-flight requests. Paths that match
// no route share one label so unknown URLs cannot create new series.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == MetricsPath {
			c.Next()
			return
		}

		metrics.HTTPInFlight.Inc()
		defer metrics.HTTPInFlight.Dec()

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metrics.APILatency.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
