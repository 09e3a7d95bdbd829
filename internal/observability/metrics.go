package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	httpRequestsTotal        *prometheus.CounterVec
	httpLatencySeconds       *prometheus.HistogramVec
	httpErrorsTotal          *prometheus.CounterVec
	requestTransitionsTotal  *prometheus.CounterVec
	chatMessagesSentTotal    *prometheus.CounterVec
	realtimeConnectionsCount prometheus.Counter
	realtimeEventsCount      *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helphub_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "helphub_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helphub_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		requestTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helphub_request_transitions_total",
			Help: "Help request lifecycle transitions applied.",
		}, []string{"to_status"})

		chatMessagesSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helphub_chat_messages_sent_total",
			Help: "Chat messages accepted into threads.",
		}, []string{"type"})

		realtimeConnectionsCount = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "helphub_realtime_connections_total",
			Help: "Websocket connections accepted by the realtime hub.",
		})

		realtimeEventsCount = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helphub_realtime_events_total",
			Help: "Realtime events delivered, by event name.",
		}, []string{"event"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			requestTransitionsTotal,
			chatMessagesSentTotal,
			realtimeConnectionsCount,
			realtimeEventsCount,
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

// RequestTransitions exposes the lifecycle transition counter.
func RequestTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return requestTransitionsTotal
}

// ChatMessagesSent exposes the chat message counter.
func ChatMessagesSent() *prometheus.CounterVec {
	RegisterMetrics()
	return chatMessagesSentTotal
}

// RealtimeConnectionsTotal exposes the websocket connection counter.
func RealtimeConnectionsTotal() prometheus.Counter {
	RegisterMetrics()
	return realtimeConnectionsCount
}

// RealtimeEventsTotal exposes the realtime event counter.
func RealtimeEventsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return realtimeEventsCount
}
