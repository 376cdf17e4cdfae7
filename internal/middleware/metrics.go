package middleware

import (
	"strconv"
	"time"

	"github.com/deppfellow/users-api/internal/metrics"
	"github.com/labstack/echo/v4"
)

// Metrics instruments HTTP requests with Prometheus metrics.
// It tracks request rate, errors, and duration (RED metrics).
//
// It returns before the global error handler writes the response, so
// for a handler that returned an error the status is derived from that
// error rather than read from the response.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			metrics.HTTPRequestsInFlight.Inc()
			defer metrics.HTTPRequestsInFlight.Dec()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = errorStatus(err)
			}

			// The route template keeps label cardinality bounded.
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}

			method := c.Request().Method
			metrics.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())

			return err
		}
	}
}
