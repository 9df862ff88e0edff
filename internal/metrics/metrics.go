// Package metrics exposes Prometheus counters for reports and requests.
// A nil *Registry is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/Twixes/mcpolice/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mcpolice"

// Registry holds the collectors on a private Prometheus registry
type Registry struct {
	reg *prometheus.Registry

	reports      *prometheus.CounterVec
	rejected     *prometheus.CounterVec
	cleared      prometheus.Counter
	rpcCalls     *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	clients atomic.Pointer[func() int]
}

// NewRegistry creates a registry with process and Go runtime collectors
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "violations_reported_total",
			Help:      "Violation reports accepted, by severity.",
		}, []string{"severity"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "violations_rejected_total",
			Help:      "Violation reports rejected, by reason.",
		}, []string{"reason"}),
		cleared: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "violations_cleared_total",
			Help:      "Violations removed by clear operations.",
		}),
		rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_calls_total",
			Help:      "JSON-RPC calls, by method and outcome.",
		}, []string{"method", "outcome"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "code"}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.reports,
		r.rejected,
		r.cleared,
		r.rpcCalls,
		r.httpDuration,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rate_limited_clients",
			Help:      "Clients currently tracked by the rate limiter.",
		}, r.clientCount),
	)

	// Pre-create severity series so dashboards see zeroes
	for _, s := range model.Severities {
		r.reports.WithLabelValues(string(s))
	}
	return r
}

// Reported counts an accepted report
func (r *Registry) Reported(rec model.ViolationReport) {
	if r == nil {
		return
	}
	r.reports.WithLabelValues(string(rec.Violation.Severity)).Inc()
}

// Rejected counts a rejected report
func (r *Registry) Rejected(reason string) {
	if r == nil {
		return
	}
	r.rejected.WithLabelValues(reason).Inc()
}

// Cleared counts removed violations
func (r *Registry) Cleared(n int) {
	if r == nil {
		return
	}
	r.cleared.Add(float64(n))
}

// RPCCall counts one JSON-RPC call. outcome is "ok" or the error code.
func (r *Registry) RPCCall(method, outcome string) {
	if r == nil {
		return
	}
	r.rpcCalls.WithLabelValues(method, outcome).Inc()
}

// ObserveHTTP records one request
func (r *Registry) ObserveHTTP(route, method string, code int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.httpDuration.WithLabelValues(route, method, strconv.Itoa(code)).Observe(elapsed.Seconds())
}

// TrackClients sets the source of the rate_limited_clients gauge. A later
// call replaces the earlier source.
func (r *Registry) TrackClients(count func() int) {
	if r == nil {
		return
	}
	r.clients.Store(&count)
}

func (r *Registry) clientCount() float64 {
	count := r.clients.Load()
	if count == nil {
		return 0
	}
	return float64((*count)())
}

// Handler serves the registry in the Prometheus text format
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
