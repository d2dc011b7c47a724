package logging

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// LoggerMiddleware logs every status API request except health probes at debug level,
// and server errors at error level.
func LoggerMiddleware(logger *logrus.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			if req.URL.Path == "/healthz" {
				return nil
			}

			entry := logger.WithFields(logrus.Fields{
				"remote_ip": c.RealIP(),
				"method":    req.Method,
				"uri":       req.RequestURI,
				"status":    c.Response().Status,
				"latency":   time.Since(start).String(),
			})
			if c.Response().Status >= 500 {
				entry.Error("HTTP request failed")
				return nil
			}
			entry.Debug("HTTP request")
			return nil
		}
	}
}
