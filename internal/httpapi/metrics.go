package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ticketflow/ticketd/internal/queue"
	"github.com/ticketflow/ticketd/internal/ticket"
)

// requestDuration tracks HTTP latency by route and status. It lives on
// the default registry so tests constructing multiple *Server values
// over one process don't hit double-registration panics for the metrics
// that really are process-global.
var requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "ticketd_http_request_duration_seconds",
	Help:    "HTTP request latency by route and status.",
	Buckets: prometheus.DefBuckets,
}, []string{"route", "method", "status"})

func init() {
	prometheus.MustRegister(requestDuration)
}

// withMetrics wraps a handler to record request latency. The route
// pattern, not the raw path, is used as the label to keep cardinality
// bounded (ticket/agent ids never become label values).
func withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := r.Pattern
		if route == "" {
			// Unmatched requests share one label; raw paths would make
			// cardinality unbounded.
			route = "unmatched"
		}
		requestDuration.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// QueueDepthCollector exports live depth and oldest-ticket-age gauges
// per queue.
// It is a prometheus.Collector rather than a cached gauge so every
// scrape reflects the queue manager's current state without a
// separate refresh goroutine.
type QueueDepthCollector struct {
	qm *queue.Manager
}

// NewQueueDepthCollector wraps qm for Prometheus registration.
func NewQueueDepthCollector(qm *queue.Manager) *QueueDepthCollector {
	return &QueueDepthCollector{qm: qm}
}

var queueDepthDesc = prometheus.NewDesc(
	"ticketd_queue_depth",
	"Number of tickets currently resident in a queue.",
	[]string{"queue"}, nil,
)

var queueOldestAgeDesc = prometheus.NewDesc(
	"ticketd_queue_oldest_ticket_age_seconds",
	"Age in seconds of the oldest ticket in a queue.",
	[]string{"queue"}, nil,
)

// Describe implements prometheus.Collector.
func (c *QueueDepthCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- queueDepthDesc
	ch <- queueOldestAgeDesc
}

// Collect implements prometheus.Collector.
func (c *QueueDepthCollector) Collect(ch chan<- prometheus.Metric) {
	for _, q := range ticket.AllQueues {
		stats := c.qm.GetQueueStats(q)
		ch <- prometheus.MustNewConstMetric(queueDepthDesc, prometheus.GaugeValue, float64(stats.Count), string(q))
		ch <- prometheus.MustNewConstMetric(queueOldestAgeDesc, prometheus.GaugeValue, stats.OldestTicketAgeSeconds, string(q))
	}
}
