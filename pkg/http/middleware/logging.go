package middleware

import (
	"time"

	applogger "FeatPipe/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogging logs every request at debug. Slow and failed requests are
// logged again by Metrics at a higher level.
func RequestLogging(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let the error handler set the final status before logging
				c.Error(err)
				err = nil
			}
			req, res := c.Request(), c.Response()
			l.Debug("http request",
				applogger.String("method", req.Method),
				applogger.String("route", c.Path()),
				applogger.String("uri", req.RequestURI),
				applogger.String("remote", c.RealIP()),
				applogger.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
				applogger.Int("status", res.Status),
				applogger.Int64("bytes", res.Size),
				applogger.Duration("duration", time.Since(start)))
			return err
		}
	}
}
