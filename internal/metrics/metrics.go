package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "praxis"

var (
	once sync.Once

	conflictChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflict_checks_total",
			Help:      "Count of conflict checks by outcome (clear/conflict).",
		},
		[]string{"outcome"},
	)

	conflictsFound = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_found_total",
			Help:      "Count of conflicts reported by kind.",
		},
		[]string{"kind"},
	)

	slotQueries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_queries_total",
			Help:      "Count of available-slot enumerations.",
		},
	)

	slotsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slots_returned",
			Help:      "Number of free start times returned per enumeration.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64},
		},
	)

	appointmentTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointment_transitions_total",
			Help:      "Count of appointment status changes by target status.",
		},
		[]string{"status"},
	)

	bookingRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_rejected_total",
			Help:      "Count of rejected booking attempts by reason.",
		},
		[]string{"reason"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of API requests by route and status code.",
		},
		[]string{"route", "code"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency by route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			conflictChecks, conflictsFound, slotQueries, slotsReturned,
			appointmentTransitions, bookingRejected, httpRequests, httpDuration,
		)
	})
}

// ObserveConflictCheck records one check and the kinds it reported.
func ObserveConflictCheck(kinds []string) {
	if len(kinds) == 0 {
		conflictChecks.WithLabelValues("clear").Inc()
		return
	}
	conflictChecks.WithLabelValues("conflict").Inc()
	for _, k := range kinds {
		conflictsFound.WithLabelValues(k).Inc()
	}
}

func ObserveSlotQuery(returned int) {
	slotQueries.Inc()
	slotsReturned.Observe(float64(returned))
}

func IncAppointmentTransition(status string) {
	appointmentTransitions.WithLabelValues(status).Inc()
}

func IncBookingRejected(reason string) {
	bookingRejected.WithLabelValues(reason).Inc()
}

func ObserveHTTPRequest(route, code string, seconds float64) {
	httpRequests.WithLabelValues(route, code).Inc()
	httpDuration.WithLabelValues(route).Observe(seconds)
}
