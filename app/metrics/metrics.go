// Package metrics holds the Prometheus collectors for the slot pool
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Claim outcomes
const (
	ClaimResultClaimed  = "claimed"
	ClaimResultConflict = "conflict"
	ClaimResultError    = "error"
)

var (
	// Allocation

	SlotClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pool_slot_claims_total",
			Help: "Total number of slot claim attempts by outcome",
		},
		[]string{"result"},
	)

	PoolExhaustedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pool_exhausted_total",
			Help: "Total number of assignments that failed with an exhausted pool",
		},
	)

	BatchRollbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pool_batch_rollbacks_total",
			Help: "Total number of batch assignments rolled back",
		},
	)

	SlotsReleasedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pool_slots_released_total",
			Help: "Total number of slots returned to the pool by reason",
		},
		[]string{"reason"},
	)

	PasswordsRegeneratedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pool_passwords_regenerated_total",
			Help: "Total number of slot passwords regenerated",
		},
	)

	// Growth

	AccountsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pool_accounts_created_total",
			Help: "Total number of accounts created by pool growth",
		},
	)

	GrowthDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pool_growth_duration_seconds",
			Help:    "Time spent holding the growth lock",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// HTTP

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pool_http_requests_total",
			Help: "Total number of HTTP requests by method, route, status and caller role",
		},
		[]string{"method", "route", "status", "role"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pool_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pool_http_inflight_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	// Availability

	AvailableSlots = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pool_available_slots",
			Help: "Available unassigned slots, fresh or total",
		},
		[]string{"kind"},
	)
)

// SetAvailability publishes both availability counts
func SetAvailability(fresh, total int64) {
	AvailableSlots.WithLabelValues("fresh").Set(float64(fresh))
	AvailableSlots.WithLabelValues("total").Set(float64(total))
}
