package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/agentwriter-backend/internal/observability"
)

// streamRoutes hold a connection open for the client's lifetime; their
// duration says nothing about server latency.
var streamRoutes = map[string]bool{
	"/api/events": true,
}

// Metrics records request counts and latency by route template. Unmatched
// paths share one label so scanners cannot grow the series set.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		m.ApiInflightInc()
		defer m.ApiInflightDec()
		c.Next()

		if route == "" {
			route = "unmatched"
		}
		dur := time.Since(start)
		if streamRoutes[route] {
			dur = 0
		}
		m.ObserveAPI(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), dur)
	}
}
