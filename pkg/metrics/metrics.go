package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "callcenter"

var registry = prometheus.NewRegistry()

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "route", "status_code"})

	httpLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	callEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "call_events_total",
		Help:      "Call automation events by type and outcome",
	}, []string{"event_type", "outcome"})

	serviceCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "service_calls_total",
		Help:      "Outbound calls to external services",
	}, []string{"service", "operation", "status"})

	serviceLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "service_call_duration_seconds",
		Help:      "Latency of outbound calls to external services",
		Buckets:   prometheus.DefBuckets,
	}, []string{"service", "operation"})

	circuitBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "circuit_breaker_open",
		Help:      "1 while the service circuit breaker rejects calls",
	}, []string{"service"})

	jobs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_total",
		Help:      "Queue jobs by queue and status",
	}, []string{"queue", "status"})
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpRequests,
		httpLatency,
		callEvents,
		serviceCalls,
		serviceLatency,
		circuitBreakerState,
		jobs,
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

// GinMiddleware records request counts and latencies per route template.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpLatency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// RecordEvent counts one inbound call automation event.
func RecordEvent(eventType, outcome string) {
	callEvents.WithLabelValues(eventType, outcome).Inc()
}

// RecordServiceCall records a service call
func RecordServiceCall(service, operation string, success bool, latency time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	serviceCalls.WithLabelValues(service, operation, status).Inc()
	serviceLatency.WithLabelValues(service, operation).Observe(latency.Seconds())
}

// UpdateCircuitBreaker updates circuit breaker metrics
func UpdateCircuitBreaker(service string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	circuitBreakerState.WithLabelValues(service).Set(v)
}

// RecordJob counts one processed queue message.
func RecordJob(queue, status string) {
	jobs.WithLabelValues(queue, status).Inc()
}
