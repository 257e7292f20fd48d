package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Reconciliation
	PushEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convo_push_events_total",
			Help: "Pushed events received, by kind",
		},
		[]string{"kind"},
	)

	Reconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convo_reconciled_total",
			Help: "Incoming inserts by outcome",
		},
		[]string{"outcome"}, // "duplicate", "replaced", "appended"
	)

	MalformedEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convo_malformed_events_total",
			Help: "Pushed events dropped because the payload could not be applied",
		},
	)

	// Sends
	SendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convo_sends_total",
			Help: "Send attempts by result",
		},
		[]string{"result"}, // "confirmed", "failed"
	)

	SendLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "convo_send_latency_seconds",
			Help:    "Time from send to confirmation",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	ModifyRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convo_modify_rejected_total",
			Help: "Edits and deletes rejected before reaching the store",
		},
		[]string{"reason"},
	)

	// Pagination
	PagesLoaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convo_pages_loaded_total",
			Help: "History pages fetched",
		},
	)

	// Presence
	TypingPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convo_typing_publishes_total",
			Help: "Typing state publishes by value",
		},
		[]string{"typing"},
	)

	// Link
	Reconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convo_reconnects_total",
			Help: "Push subscriptions recovered after a drop",
		},
	)

	// Backend
	BackendLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "convo_backend_latency_seconds",
			Help:    "Remote channel call latency",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"backend", "op"},
	)

	// Daemon
	StreamedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convo_daemon_streamed_events_total",
			Help: "Events forwarded to daemon subscribers, by topic",
		},
		[]string{"topic"},
	)

	ActiveStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "convo_daemon_active_streams",
			Help: "Open Subscribe streams",
		},
	)
)
