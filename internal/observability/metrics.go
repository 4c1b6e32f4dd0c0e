package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forum_http_requests_total",
			Help: "Total number of HTTP requests processed by the forum service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forum_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "forum_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
		[]string{"kind"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forum_ws_events_total",
			Help: "Total number of websocket lifecycle events.",
		},
		[]string{"kind", "event"},
	)
	wsFramesDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forum_ws_frames_dropped_total",
			Help: "Inbound websocket frames ignored without reply.",
		},
		[]string{"reason"},
	)
	wsCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forum_ws_commands_total",
			Help: "Websocket commands by type and outcome.",
		},
		[]string{"command", "outcome"},
	)
	storeCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forum_store_call_duration_seconds",
			Help:    "Latency of store calls issued by websocket commands, queueing included.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	broadcastDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forum_broadcast_deliveries_total",
			Help: "Room event deliveries by result.",
		},
		[]string{"result"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forum_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		wsFramesDroppedTotal,
		wsCommandsTotal,
		storeCallDuration,
		broadcastDeliveriesTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			// unmatched paths share one label to keep cardinality bounded
			route = "unmatched"
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Inc()
}

func DecWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Dec()
}

func IncWSEvent(kind, event string) {
	wsEventsTotal.WithLabelValues(kind, event).Inc()
}

func IncFrameDropped(reason string) {
	wsFramesDroppedTotal.WithLabelValues(reason).Inc()
}

func IncCommand(command, outcome string) {
	wsCommandsTotal.WithLabelValues(command, outcome).Inc()
}

func ObserveStoreCall(command string, d time.Duration) {
	storeCallDuration.WithLabelValues(command).Observe(d.Seconds())
}

func AddBroadcastDeliveries(result string, n int) {
	if n > 0 {
		broadcastDeliveriesTotal.WithLabelValues(result).Add(float64(n))
	}
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
