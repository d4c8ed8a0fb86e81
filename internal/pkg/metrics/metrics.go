package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ApplicationsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admissions_applications_submitted_total",
			Help: "Total number of accepted application submissions.",
		},
		[]string{"level"},
	)
	StatusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admissions_status_transitions_total",
			Help: "Total number of application status transitions.",
		},
		[]string{"from", "to"},
	)
	Rejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admissions_policy_rejections_total",
			Help: "Total number of operations refused by the admission policy.",
		},
		[]string{"reason"},
	)
	WaitingListPromotions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "admissions_waiting_list_promotions_total",
			Help: "Total number of waiting applicants promoted to admitted.",
		},
	)
	SelectionCascades = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "admissions_selection_declines",
			Help:    "Number of admissions declined per institution selection.",
			Buckets: []float64{0, 1, 2, 3, 5, 8},
		},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "admissions_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

var registerOnce sync.Once

// Register adds all collectors to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			ApplicationsSubmitted,
			StatusTransitions,
			Rejections,
			WaitingListPromotions,
			SelectionCascades,
			HTTPRequestDuration,
		)
	})
}

// Handler exposes the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
