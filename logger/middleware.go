package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Middleware logs one entry per HTTP request. Long-lived event streams are logged
// when they end.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		entry := logrus.WithFields(logrus.Fields{
			"status":    c.Writer.Status(),
			"latency":   time.Since(start),
			"client_ip": c.ClientIP(),
			"method":    c.Request.Method,
			"path":      path,
		})
		if len(c.Errors) > 0 {
			entry.WithField("error", c.Errors.String()).Warn("http request")
			return
		}
		entry.Debug("http request")
	}
}
