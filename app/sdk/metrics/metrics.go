// Package metrics constructs the Prometheus metrics the application tracks.
package metrics

import (
	"context"
	"runtime"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tenantauth"

// Outcomes recorded for login and registration attempts.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeConflict = "conflict"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

var (
	// Goroutines samples the number of goroutines every 100 requests.
	Goroutines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "goroutines",
			Help:      "Goroutines sampled every 100 requests",
		},
	)

	// Requests counts every request handled by the web app.
	Requests = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total requests",
		},
	)

	// Errors counts requests that ended in an error response.
	Errors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total error responses",
		},
	)

	// Panics counts recovered handler panics.
	Panics = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "panics_total",
			Help:      "Total recovered panics",
		},
	)

	// Logins counts login attempts by outcome.
	Logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by outcome",
		},
		[]string{"outcome"},
	)

	// Registrations counts tenant registrations by outcome.
	Registrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Tenant registrations by outcome",
		},
		[]string{"outcome"},
	)
)

var requests atomic.Int64

func init() {
	prometheus.MustRegister(
		Goroutines,
		Requests,
		Errors,
		Panics,
		Logins,
		Registrations,
	)
}

// AddGoroutines refreshes the goroutine gauge.
func AddGoroutines(ctx context.Context) int64 {
	g := int64(runtime.NumGoroutine())
	Goroutines.Set(float64(g))
	return g
}

// AddRequests increments the request count by 1 and returns the running
// total seen by this process.
func AddRequests(ctx context.Context) int64 {
	Requests.Inc()
	return requests.Add(1)
}

// AddErrors increments the errors count by 1.
func AddErrors(ctx context.Context) {
	Errors.Inc()
}

// AddPanics increments the panics count by 1.
func AddPanics(ctx context.Context) {
	Panics.Inc()
}

// AddLogin records a login attempt.
func AddLogin(ctx context.Context, outcome string) {
	Logins.WithLabelValues(outcome).Inc()
}

// AddRegistration records a registration attempt.
func AddRegistration(ctx context.Context, outcome string) {
	Registrations.WithLabelValues(outcome).Inc()
}
