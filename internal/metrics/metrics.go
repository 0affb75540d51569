package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consult_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "consult_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Signaling metrics
	ActiveRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "consult_rooms_active",
			Help: "Rooms with at least one connected participant",
		},
	)

	ActiveParticipants = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "consult_participants_active",
			Help: "Connected socket participants",
		},
	)

	SignalsRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consult_signals_relayed_total",
			Help: "Signaling events relayed to room peers",
		},
		[]string{"event"},
	)

	OffersRolledBack = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "consult_offers_rolled_back_total",
			Help: "Offers rejected by glare resolution",
		},
	)

	// Stream assembler metrics
	StreamsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "consult_streams_started_total",
			Help: "Live media streams opened",
		},
	)

	ChunksReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "consult_stream_chunks_received_total",
			Help: "Base64 chunks appended to live stream buffers",
		},
	)

	StreamsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "consult_streams_completed_total",
			Help: "Live media streams assembled and persisted",
		},
	)

	StreamsAbandoned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "consult_streams_abandoned_total",
			Help: "Live media stream buffers evicted by TTL or drop",
		},
	)

	// Infrastructure metrics
	PostgresLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "consult_postgres_latency_seconds",
			Help:    "PostgreSQL query latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1},
		},
	)
)
