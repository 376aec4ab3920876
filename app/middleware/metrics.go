package middleware

import (
	"strconv"
	"time"

	"github.com/amirphl/tv-slot-pool/app/metrics"
	"github.com/gofiber/fiber/v3"
)

// roleAnonymous labels requests that never passed Authenticate
const roleAnonymous = "anonymous"

// Metrics records request counts and latencies. The matched route pattern is
// used as label so slot and client ids do not blow up cardinality.
func Metrics() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		metrics.HTTPInFlight.Inc()
		defer metrics.HTTPInFlight.Dec()

		err := c.Next()

		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}
		role, ok := c.Locals("role").(string)
		if !ok || role == "" {
			role = roleAnonymous
		}

		metrics.HTTPRequestsTotal.WithLabelValues(c.Method(), route, strconv.Itoa(c.Response().StatusCode()), role).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())

		return err
	}
}
