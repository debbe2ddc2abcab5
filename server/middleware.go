package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hupe1980/agentexec/logging"
)

// loggerMiddleware logs one line per request.
func loggerMiddleware(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("server.request.completed",
			"method", c.Request.Method,
			"path", path,
			"status_code", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"body_size", c.Writer.Size(),
		)
	}
}
