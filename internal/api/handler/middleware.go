package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	prommetrics "github.com/aimd54/congregation/internal/metrics"
	"github.com/aimd54/congregation/internal/service/points"
	"github.com/aimd54/congregation/pkg/logger"
)

// RequestLogger logs every request with its status and latency.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := log.Info()
		if status >= 500 {
			event = log.Error()
		} else if status >= 400 {
			event = log.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

// UnitOfWork scopes point awards to the request.
func UnitOfWork() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(points.WithUnitOfWork(c.Request.Context()))
		c.Next()
	}
}

// Metrics records request counts and latencies per route.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		prommetrics.RecordHTTPRequest(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start).Seconds(),
		)
	}
}
