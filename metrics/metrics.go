// Package metrics exposes request, transaction and authentication counters
// in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Authentication outcomes.
const (
	AuthAnonymous = "anonymous"
	AuthAccepted  = "accepted"
	AuthExpired   = "expired"
	AuthRejected  = "rejected"
)

// Registry tracks request metrics.
type Registry struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	inFlight prometheus.Gauge
	latency  prometheus.Histogram
	txns     *prometheus.CounterVec
	auth     *prometheus.CounterVec
}

// New creates a registry with default latency buckets.
func New() *Registry {
	return NewWithBuckets(prometheus.DefBuckets)
}

// NewWithBuckets creates a registry with latency buckets in seconds.
func NewWithBuckets(buckets []float64) *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bear_requests_total",
			Help: "HTTP requests by status code.",
		}, []string{"code"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bear_in_flight",
			Help: "In-flight HTTP requests.",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bear_latency_seconds",
			Help:    "Request latency.",
			Buckets: buckets,
		}),
		txns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bear_txn_total",
			Help: "Request transaction lifecycle events by state.",
		}, []string{"state"}),
		auth: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bear_auth_total",
			Help: "Authentication outcomes.",
		}, []string{"result"}),
	}
	r.registry.MustRegister(r.requests, r.inFlight, r.latency, r.txns, r.auth)
	return r
}

// Start marks the start of a request.
func (r *Registry) Start() time.Time {
	r.inFlight.Inc()
	return time.Now()
}

// End records a completed request.
func (r *Registry) End(start time.Time, status int) {
	r.inFlight.Dec()
	r.latency.Observe(time.Since(start).Seconds())
	r.requests.WithLabelValues(strconv.Itoa(status)).Inc()
}

// Txn counts a transaction lifecycle event.
func (r *Registry) Txn(state string) {
	r.txns.WithLabelValues(state).Inc()
}

// Auth counts an authentication outcome.
func (r *Registry) Auth(result string) {
	r.auth.WithLabelValues(result).Inc()
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler serves the registry in Prometheus text format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
