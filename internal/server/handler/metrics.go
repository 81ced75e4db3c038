package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/val-protocol/val-verify/internal/verifier"
)

var (
	valRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "val_verification_runs_total",
		Help: "Total verification runs by verdict.",
	}, []string{"verdict"})

	valIssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "val_verification_issues_total",
		Help: "Total verification issues produced, by severity and code.",
	}, []string{"severity", "code"})

	valRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "val_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	valRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "val_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	valMirrorUp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "val_mirror_up",
		Help: "1 when the last mirror-node probe succeeded, 0 otherwise.",
	})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		valRequestsTotal.WithLabelValues(method, path, status).Inc()
		valRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordRun records a completed verification run and its issues.
func RecordRun(verdict string, issues []verifier.Issue) {
	valRunsTotal.WithLabelValues(verdict).Inc()
	for _, is := range issues {
		valIssuesTotal.WithLabelValues(string(is.Severity), is.Code).Inc()
	}
}

// RecordMirrorProbe records a mirror-node health probe result.
func RecordMirrorProbe(success bool) {
	if success {
		valMirrorUp.Set(1)
	} else {
		valMirrorUp.Set(0)
	}
}
