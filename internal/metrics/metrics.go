package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all Prometheus metrics for the society backend.
type Registry struct {
	// Gatherer exposes the underlying registry to the /metrics handler.
	Gatherer prometheus.Gatherer

	// HTTP Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Cache Metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Business Metrics
	BookingsSubmittedTotal prometheus.Counter
	BookingDecisionsTotal  *prometheus.CounterVec
	VerificationsTotal     *prometheus.CounterVec
	NotificationsCreated   *prometheus.CounterVec
	EmailsTotal            *prometheus.CounterVec
	UploadsTotal           *prometheus.CounterVec
	MembershipsExpired     prometheus.Counter
}

// NewRegistry registers every metric on reg. Passing a fresh
// prometheus.NewRegistry() keeps tests isolated from the global registry.
func NewRegistry(reg *prometheus.Registry) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		Gatherer: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scis_http_requests_total",
				Help: "Total HTTP requests processed by route, method, and status code",
			},
			[]string{"route", "method", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scis_http_request_duration_seconds",
				Help:    "HTTP request latency distribution in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"route", "method"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "scis_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		CacheHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scis_cache_hits_total",
				Help: "Total cache hits by key prefix",
			},
			[]string{"prefix"},
		),
		CacheMissesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scis_cache_misses_total",
				Help: "Total cache misses by key prefix",
			},
			[]string{"prefix"},
		),

		BookingsSubmittedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "scis_bookings_submitted_total",
				Help: "Membership applications accepted for review",
			},
		),
		BookingDecisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scis_bookings_decided_total",
				Help: "Membership applications decided by an admin",
			},
			[]string{"decision"},
		),
		VerificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scis_payment_verifications_total",
				Help: "Payment verification events by outcome",
			},
			[]string{"outcome"},
		),
		NotificationsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scis_notifications_created_total",
				Help: "Notifications created by type",
			},
			[]string{"type"},
		),
		EmailsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scis_emails_total",
				Help: "Outbound emails by template and result",
			},
			[]string{"template", "result"},
		),
		UploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scis_uploads_total",
				Help: "Object storage uploads by namespace and result",
			},
			[]string{"namespace", "result"},
		),
		MembershipsExpired: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "scis_memberships_expired_total",
				Help: "Memberships deactivated after their expiry date",
			},
		),
	}
}

// NewDefaultRegistry creates a registry that also exports Go runtime and process metrics.
func NewDefaultRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewRegistry(reg)
}

// Result labels a success/failure outcome.
func Result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
