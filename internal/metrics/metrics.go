package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "codesight"

// Metrics holds every collector the service exports. All methods are no-ops on a nil receiver.
type Metrics struct {
	gatherer prometheus.Gatherer

	providerRequests *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	reconcileOps     *prometheus.CounterVec
	webhookEvents    *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Provider API operations by outcome.",
		}, []string{"provider", "operation", "outcome"}),
		providerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "request_duration_seconds",
			Help:      "Provider API operation latency including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "operation"}),
		reconcileOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "operations_total",
			Help:      "Connect, disconnect and repair operations by outcome.",
		}, []string{"operation", "outcome"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Inbound webhook deliveries by provider, kind and disposition.",
		}, []string{"provider", "kind", "disposition"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests handled.",
		}, []string{"method", "route", "status_class"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status_class"}),
	}
	reg.MustRegister(
		m.providerRequests,
		m.providerDuration,
		m.reconcileOps,
		m.webhookEvents,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

func (m *Metrics) ObserveProviderCall(provider, operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.providerRequests.WithLabelValues(provider, operation, outcome).Inc()
	m.providerDuration.WithLabelValues(provider, operation).Observe(d.Seconds())
}

func (m *Metrics) ObserveReconcile(operation, outcome string) {
	if m == nil {
		return
	}
	m.reconcileOps.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveWebhookEvent(provider, kind, disposition string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(provider, kind, disposition).Inc()
}

// Middleware records request counts and latency keyed by the matched gin route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		class := statusClass(c.Writer.Status())
		m.httpRequests.WithLabelValues(c.Request.Method, route, class).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route, class).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() http.Handler {
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if m != nil && m.gatherer != nil {
		gatherer = m.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
