package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Realtime metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_connections",
			Help: "Open websocket connections",
		},
	)

	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_online_users",
			Help: "Users with at least one identified session",
		},
	)

	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_events_received_total",
			Help: "Inbound websocket events",
		},
		[]string{"event"},
	)

	DroppedFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_ws_dropped_frames_total",
			Help: "Outbound frames dropped because a send buffer was full",
		},
	)

	// Business metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Total messages persisted",
		},
		[]string{"room_type"}, // "direct" or "group"
	)

	RoomsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_rooms_created_total",
			Help: "Total rooms created",
		},
		[]string{"room_type"},
	)

	PushJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_push_jobs_total",
			Help: "Push jobs handed to the dispatcher",
		},
		[]string{"result"}, // "queued" or "failed"
	)

	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_errors_total",
			Help: "Errors returned to clients by kind",
		},
		[]string{"kind"},
	)

	// Infrastructure metrics
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_store_latency_seconds",
			Help:    "Persistence operation latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25},
		},
		[]string{"op"},
	)
)
