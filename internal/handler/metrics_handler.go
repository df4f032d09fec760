package handler

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// MetricsHandler handles the Prometheus metrics endpoint
type MetricsHandler struct {
}

var (
	// HTTP request duration histogram
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pybroo_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"method", "path", "status"})

	// Active connections gauge
	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pybroo_active_connections",
		Help: "Number of active connections",
	})

	// Total requests counter
	totalRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pybroo_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	// Resources added to the catalog
	resourcesUploaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pybroo_resources_uploaded_total",
		Help: "Total number of resources uploaded",
	})

	// Request tickets filed
	requestsFiled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pybroo_requests_filed_total",
		Help: "Total number of resource requests filed",
	})

	// Approved downloads
	downloadsApproved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pybroo_downloads_approved_total",
		Help: "Total number of approved downloads",
	})

	// Denied downloads by reason
	downloadsDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pybroo_downloads_denied_total",
		Help: "Total number of denied download attempts",
	}, []string{"reason"})

	// Level upgrades by target level
	levelUpgrades = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pybroo_level_upgrades_total",
		Help: "Total number of completed level upgrades",
	}, []string{"level"})

	// Failed authentication attempts counter
	authFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pybroo_auth_failures_total",
		Help: "Total number of failed authentication attempts",
	}, []string{"reason"})
)

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// Handler returns the Prometheus metrics handler for Fiber
func (h *MetricsHandler) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Gather metrics from the default registry
		mfs, err := prometheus.DefaultGatherer.Gather()
		if err != nil {
			return c.Status(500).SendString("Failed to gather metrics")
		}

		// Format as Prometheus text format
		var sb strings.Builder
		for _, mf := range mfs {
			if _, err := expfmt.MetricFamilyToText(&sb, mf); err != nil {
				return c.Status(500).SendString("Failed to format metrics")
			}
		}

		c.Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		return c.SendString(sb.String())
	}
}

// MetricsMiddleware records HTTP metrics for each request
func MetricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		activeConnections.Inc()
		defer activeConnections.Dec()
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		path := c.Route().Path
		if path == "" {
			path = "__unmatched__"
		}

		statusStr := "200"
		if status >= 200 && status < 300 {
			statusStr = "2xx"
		} else if status >= 300 && status < 400 {
			statusStr = "3xx"
		} else if status >= 400 && status < 500 {
			statusStr = "4xx"
		} else if status >= 500 {
			statusStr = "5xx"
		}

		totalRequests.WithLabelValues(c.Method(), path, statusStr).Inc()
		httpDuration.WithLabelValues(c.Method(), path, statusStr).Observe(time.Since(start).Seconds())

		return err
	}
}

// RecordUpload records a resource added to the catalog
func RecordUpload() {
	resourcesUploaded.Inc()
}

// RecordRequestFiled records a new resource request ticket
func RecordRequestFiled() {
	requestsFiled.Inc()
}

// RecordDownloadApproved records an approved download
func RecordDownloadApproved() {
	downloadsApproved.Inc()
}

// RecordDownloadDenied records a denied download attempt with its reason
func RecordDownloadDenied(reason string) {
	downloadsDenied.WithLabelValues(reason).Inc()
}

// RecordLevelUpgrade records a completed upgrade to the given level
func RecordLevelUpgrade(level string) {
	levelUpgrades.WithLabelValues(level).Inc()
}

// RecordAuthFailure increments the failed auth counter with a reason label.
func RecordAuthFailure(reason string) {
	authFailures.WithLabelValues(reason).Inc()
}
