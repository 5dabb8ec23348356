package admin

import (
	"time"

	"github.com/danmuck/frameecho/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// unmatchedRoute labels requests that hit no registered route, so stray
// paths cannot grow the metric label set.
const unmatchedRoute = "unmatched"

// observeRequests times each admin request once and feeds both the
// request log and the admin HTTP metrics, labelled by component.
func observeRequests(component string, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		observability.RecordHTTPRequest(component, c.Request.Method, route, status, elapsed)

		event := logger.Debug()
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("route", route).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("elapsed", elapsed).
			Int("bytes", c.Writer.Size()).
			Msg("admin.request served")
	}
}
