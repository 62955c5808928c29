package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec

	requestsCreatedTotal      prometheus.Counter
	lifecycleTransitionsTotal *prometheus.CounterVec
	acceptConflictsTotal      prometheus.Counter
	chatMessagesTotal         *prometheus.CounterVec
	ratingsSubmittedTotal     prometheus.Counter

	realtimeConnections     prometheus.Gauge
	realtimeDeliveredTotal  *prometheus.CounterVec
	realtimeDroppedTotal    *prometheus.CounterVec
	uploadRequestsTotal     *prometheus.CounterVec
	uploadRejectedTotal     *prometheus.CounterVec
	uploadLatencySeconds    prometheus.Histogram
	profileCacheLookupTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notehub_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notehub_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notehub_http_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		requestsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notehub_requests_created_total",
			Help: "Note requests posted to the pool.",
		})

		lifecycleTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notehub_lifecycle_transitions_total",
			Help: "Successful lifecycle transitions by target status.",
		}, []string{"status"})

		acceptConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notehub_accept_conflicts_total",
			Help: "Accept attempts that lost the race for a request.",
		})

		chatMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notehub_chat_messages_total",
			Help: "Chat messages stored by message type.",
		}, []string{"type"})

		ratingsSubmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notehub_ratings_submitted_total",
			Help: "Ratings accepted by the reputation aggregator.",
		})

		realtimeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "notehub_realtime_connections",
			Help: "Currently connected realtime subscribers.",
		})

		realtimeDeliveredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notehub_realtime_events_delivered_total",
			Help: "Realtime events queued to subscribers by event name.",
		}, []string{"event"})

		realtimeDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notehub_realtime_events_dropped_total",
			Help: "Realtime events dropped for slow subscribers by event name.",
		}, []string{"event"})

		uploadRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notehub_upload_requests_total",
			Help: "Stored uploads by purpose and media type.",
		}, []string{"purpose", "type"})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notehub_upload_rejected_total",
			Help: "Rejected uploads by reason.",
		}, []string{"reason"})

		uploadLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "notehub_upload_latency_seconds",
			Help:    "Time spent validating and storing uploads.",
			Buckets: prometheus.DefBuckets,
		})

		profileCacheLookupTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notehub_profile_cache_lookups_total",
			Help: "Writer profile cache lookups by result.",
		}, []string{"result"})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			requestsCreatedTotal, lifecycleTransitionsTotal, acceptConflictsTotal,
			chatMessagesTotal, ratingsSubmittedTotal,
			realtimeConnections, realtimeDeliveredTotal, realtimeDroppedTotal,
			uploadRequestsTotal, uploadRejectedTotal, uploadLatencySeconds,
			profileCacheLookupTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// RequestsCreated counts new note requests.
func RequestsCreated() prometheus.Counter {
	RegisterMetrics()
	return requestsCreatedTotal
}

// LifecycleTransitions counts successful transitions, including accept.
func LifecycleTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return lifecycleTransitionsTotal
}

// AcceptConflicts counts lost accept races.
func AcceptConflicts() prometheus.Counter {
	RegisterMetrics()
	return acceptConflictsTotal
}

// ChatMessagesSent counts stored chat messages.
func ChatMessagesSent() *prometheus.CounterVec {
	RegisterMetrics()
	return chatMessagesTotal
}

// RatingsSubmitted counts stored ratings.
func RatingsSubmitted() prometheus.Counter {
	RegisterMetrics()
	return ratingsSubmittedTotal
}

// RealtimeConnections tracks connected subscribers.
func RealtimeConnections() prometheus.Gauge {
	RegisterMetrics()
	return realtimeConnections
}

// RealtimeEventsDelivered counts events queued to subscribers.
func RealtimeEventsDelivered() *prometheus.CounterVec {
	RegisterMetrics()
	return realtimeDeliveredTotal
}

// RealtimeEventsDropped counts events dropped for slow subscribers.
func RealtimeEventsDropped() *prometheus.CounterVec {
	RegisterMetrics()
	return realtimeDroppedTotal
}

// UploadRequests counts stored uploads.
func UploadRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRequestsTotal
}

// UploadRejected counts rejected uploads.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

// UploadLatency observes upload handling time.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatencySeconds
}

// ProfileCacheLookups counts writer profile cache hits and misses.
func ProfileCacheLookups() *prometheus.CounterVec {
	RegisterMetrics()
	return profileCacheLookupTotal
}
