package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pawbook",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	slotQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pawbook",
			Name:      "slot_queries_total",
			Help:      "Slot listing queries by provider and cache outcome.",
		},
		[]string{"provider", "cache"},
	)

	bookingCommits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pawbook",
			Name:      "booking_commits_total",
			Help:      "Booking commit attempts by outcome.",
		},
		[]string{"outcome"},
	)

	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pawbook",
			Name:      "booking_transitions_total",
			Help:      "Booking lifecycle transitions by target status.",
		},
		[]string{"status"},
	)

	exportTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pawbook",
			Name:      "export_tasks_total",
			Help:      "Export queue tasks by final status.",
		},
		[]string{"status"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, slotQueries, bookingCommits, bookingTransitions, exportTasks)
	})
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncSlotQuery records one listing query; cache is "hit" or "miss".
func IncSlotQuery(provider, cache string) {
	slotQueries.WithLabelValues(provider, cache).Inc()
}

// IncCommit records a commit attempt outcome: confirmed, replayed,
// conflict or rejected.
func IncCommit(outcome string) {
	bookingCommits.WithLabelValues(outcome).Inc()
}

func IncTransition(status string) {
	bookingTransitions.WithLabelValues(status).Inc()
}

func IncExportTask(status string) {
	exportTasks.WithLabelValues(status).Inc()
}
