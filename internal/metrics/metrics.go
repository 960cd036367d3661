// Package metrics collects Prometheus metrics for both services and serves
// them on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "unitedblog"

// Collector holds the HTTP and domain metrics. Every series carries a
// constant "service" label so both binaries can share one dashboard.
type Collector struct {
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	inFlight      prometheus.Gauge
	registrations prometheus.Counter
	tokens        *prometheus.CounterVec
	authFailures  prometheus.Counter
	postWrites    *prometheus.CounterVec
}

// NewCollector creates a Collector for service and registers it with reg.
func NewCollector(reg prometheus.Registerer, service string) *Collector {
	constLabels := prometheus.Labels{"service": service}

	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "http_requests_total",
			Help:        "HTTP requests by method, route pattern and status code.",
			ConstLabels: constLabels,
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latency by method and route pattern.",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"method", "route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "http_requests_in_flight",
			Help:        "Requests currently being served.",
			ConstLabels: constLabels,
		}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "users_registered_total",
			Help:        "Accounts created.",
			ConstLabels: constLabels,
		}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "tokens_issued_total",
			Help:        "Tokens issued by type.",
			ConstLabels: constLabels,
		}, []string{"type"}),
		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "login_failures_total",
			Help:        "Rejected username/password logins.",
			ConstLabels: constLabels,
		}),
		postWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "post_writes_total",
			Help:        "Successful post mutations by operation.",
			ConstLabels: constLabels,
		}, []string{"op"}),
	}

	reg.MustRegister(
		c.requests,
		c.duration,
		c.inFlight,
		c.registrations,
		c.tokens,
		c.authFailures,
		c.postWrites,
	)
	return c
}

// RegisterRuntime adds the Go runtime and process collectors to reg.
func RegisterRuntime(reg prometheus.Registerer) {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func (c *Collector) RecordRegistration() { c.registrations.Inc() }

func (c *Collector) RecordTokenIssued(kind string) { c.tokens.WithLabelValues(kind).Inc() }

func (c *Collector) RecordLoginFailure() { c.authFailures.Inc() }

func (c *Collector) RecordPostWrite(op string) { c.postWrites.WithLabelValues(op).Inc() }

// Middleware records request count, latency and in-flight requests. The
// route label is the chi pattern ("/api/posts/{id}"), not the raw path, so
// ids never create new series. Unmatched requests are labelled "unmatched".
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		c.inFlight.Inc()
		defer c.inFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}

		c.requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		c.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the exposition format for the metrics in gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	return s.ResponseWriter.Write(b)
}
