// Package metrics holds the prometheus collectors of the archive
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archive_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "archive_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Outcome of every download proxied to the object store:
	// ok, not_found, upstream_error or bad_request
	ProxyRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archive_proxy_requests_total",
			Help: "Downloads proxied to the object store by outcome",
		},
		[]string{"outcome"},
	)

	// stored, existing, rejected or failed
	RelayUploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archive_relay_uploads_total",
			Help: "Uploads received by the relay by outcome",
		},
		[]string{"outcome"},
	)

	RelayBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "archive_relay_bytes_total",
			Help: "Bytes written to the object store by the relay",
		},
	)

	DuplicateRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "archive_duplicate_rejections_total",
			Help: "Catalog inserts refused because the fingerprint is already listed",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		ProxyRequests,
		RelayUploads,
		RelayBytes,
		DuplicateRejections,
	)
}

// Middleware records the count and latency of every request by route
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		RequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
