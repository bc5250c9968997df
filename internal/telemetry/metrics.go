// Package telemetry owns the Prometheus collectors and the tracer used by the
// ledger service and its HTTP surface.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/Veysel440/go-ledger"

// Tracer returns the ledger tracer from the global provider. Without a
// configured provider spans are no-ops.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentation)
}

// Metrics groups the ledger collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	EventsRegistered *prometheus.CounterVec
	Rejections       *prometheus.CounterVec
	AppendConflicts  prometheus.Counter
	Verifications    *prometheus.CounterVec
	Rollbacks        prometheus.Counter

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics registers every collector on a private registry so several
// instances can coexist in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		EventsRegistered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_events_registered_total",
			Help: "Audit events appended to a case chain",
		}, []string{"kind"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_registrations_not_recorded_total",
			Help: "RegisterEvent calls soft-rejected without persisting",
		}, []string{"reason"}),
		AppendConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_append_conflicts_total",
			Help: "Appends retried because another writer took the chain tip",
		}),
		Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_verifications_total",
			Help: "Chain verifications by outcome",
		}, []string{"result"}),
		Rollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_rollbacks_total",
			Help: "Rollbacks applied",
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latency",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "path"}),
	}
	reg.MustRegister(
		m.EventsRegistered, m.Rejections, m.AppendConflicts, m.Verifications, m.Rollbacks,
		m.HTTPRequestsTotal, m.HTTPRequestDuration,
	)
	return m
}

// Handler serves the /metrics exposition for this instance.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registered(kind string) {
	if m != nil {
		m.EventsRegistered.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) NotRecorded(reason string) {
	if m != nil {
		m.Rejections.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) Conflict() {
	if m != nil {
		m.AppendConflicts.Inc()
	}
}

func (m *Metrics) Verified(result string) {
	if m != nil {
		m.Verifications.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) RolledBack() {
	if m != nil {
		m.Rollbacks.Inc()
	}
}

func (m *Metrics) HTTPObserved(method, path string, status int, d time.Duration) {
	if m != nil {
		m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
	}
}
