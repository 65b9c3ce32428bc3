package middleware

import (
	"strconv"
	"time"

	"github.com/Ramsey-B/bramble/pkg/metrics"
	"github.com/labstack/echo/v4"
)

// Metrics records request counts and durations by route template
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			metrics.APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Response().Status)).Inc()
			metrics.APIRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
