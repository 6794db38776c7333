package middleware

import (
	"strconv"
	"time"

	"github.com/martabakCode/lofi-backend-sub001/internal/infrastructure/metrics"

	"github.com/labstack/echo/v4"
)

// Metrics counts requests and observes latency per route template.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			route := c.Path()
			method := c.Request().Method
			metrics.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			metrics.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(c.Response().Status)).Inc()
			return nil
		}
	}
}
