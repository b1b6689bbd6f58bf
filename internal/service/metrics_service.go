package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the audit
// engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	auditDuration   *prometheus.HistogramVec
	auditTotal      *prometheus.CounterVec
	graphRebuild    prometheus.Observer
	graphCourses    prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	auditDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "audit_run_duration_seconds",
		Help:    "Duration of audit runs end to end",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	auditTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_runs_total",
		Help: "Total audit runs by terminal status",
	}, []string{"status"})

	graphRebuild := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_graph_rebuild_seconds",
		Help:    "Duration of catalog graph rebuilds",
		Buckets: prometheus.DefBuckets,
	})

	graphCourses := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_graph_courses",
		Help: "Courses in the active catalog graph snapshot",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, auditDuration, auditTotal, graphRebuild, graphCourses, cacheHits, cacheMisses, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		auditDuration:   auditDuration,
		auditTotal:      auditTotal,
		graphRebuild:    graphRebuild,
		graphCourses:    graphCourses,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveAuditRun records one finished audit by terminal status.
func (m *MetricsService) ObserveAuditRun(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.auditDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.auditTotal.WithLabelValues(status).Inc()
}

// ObserveGraphRebuild records a completed catalog graph rebuild.
func (m *MetricsService) ObserveGraphRebuild(courses int, duration time.Duration) {
	if m == nil {
		return
	}
	m.graphRebuild.Observe(duration.Seconds())
	m.graphCourses.Set(float64(courses))
}

// RecordCacheOperation records one cache lookup outcome.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
