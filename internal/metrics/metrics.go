package metrics

import (
	"net/http"
	"strconv"
	"time"

	"ms-reservation/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the reservation service collectors. It implements
// booking.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	operations   *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	admissions   *prometheus.CounterVec
	promotions   *prometheus.CounterVec
	retries      *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reservation_operations_total",
			Help: "Booking and cancellation attempts by outcome",
		}, []string{"operation", "outcome"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reservation_operation_duration_seconds",
			Help:    "Latency of booking and cancellation units of work, retries included",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		admissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reservation_admissions_total",
			Help: "Tickets admitted per tier",
		}, []string{"tier"}),
		promotions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reservation_promotions_total",
			Help: "Tier promotions performed by the cancellation cascade",
		}, []string{"from", "to"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reservation_transient_retries_total",
			Help: "Units of work retried after a lock conflict",
		}, []string{"operation"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reservation_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"method", "route", "code"}),
	}
}

func (m *Metrics) ObserveOperation(op, outcome string, d time.Duration) {
	m.operations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) ObserveTier(tier models.Tier) {
	m.admissions.WithLabelValues(string(tier)).Inc()
}

func (m *Metrics) IncPromotion(from, to models.Tier) {
	m.promotions.WithLabelValues(string(from), string(to)).Inc()
}

func (m *Metrics) IncRetry(op string) {
	m.retries.WithLabelValues(op).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, code int) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
