package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion metrics
var (
	// IngestedRecordsTotal counts accepted observations per channel scope.
	IngestedRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_records_total",
			Help: "Total stats records ingested, by scope",
		},
		[]string{"scope"},
	)

	// InvariantViolationsTotal counts records whose per-platform counts
	// do not add up to the audience total.
	InvariantViolationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_invariant_violations_total",
			Help: "Records stored despite platform counts disagreeing with the audience total",
		},
	)

	// ArchiveAppendsTotal counts windows handed to long-term storage.
	ArchiveAppendsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archive_appends_total",
			Help: "Total displaced windows appended to the archive",
		},
	)

	// ArchiveFailuresTotal counts failed archive appends.
	ArchiveFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archive_failures_total",
			Help: "Total failed archive appends",
		},
	)
)

// Upstream gateway metrics
var (
	// UpstreamRequestsTotal tracks forwarded requests by outcome.
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Total requests forwarded upstream, by status",
		},
		[]string{"status"},
	)

	// UpstreamRequestDuration tracks upstream round-trip latency.
	UpstreamRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Upstream request duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// PollCyclesTotal counts completed upstream poll cycles.
	PollCyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "poll_cycles_total",
			Help: "Total completed upstream poll cycles",
		},
	)
)

// Distribution metrics
var (
	// BroadcasterActiveScopes tracks scopes with at least one subscriber.
	BroadcasterActiveScopes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcaster_active_scopes",
			Help: "Number of scopes with connected subscribers",
		},
	)

	// BroadcasterConnectedClients tracks connected WebSocket clients.
	BroadcasterConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcaster_connected_clients_total",
			Help: "Total connected WebSocket clients across all scopes",
		},
	)

	// BroadcasterSlowClientsEvicted counts clients dropped because their
	// outbound buffer was full.
	BroadcasterSlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_slow_clients_evicted_total",
			Help: "Clients evicted because they could not keep up",
		},
	)

	// BroadcasterDroppedPublishesTotal counts updates dropped because the
	// broadcaster command queue was full.
	BroadcasterDroppedPublishesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_dropped_publishes_total",
			Help: "Snapshot updates dropped on a saturated broadcaster queue",
		},
	)

	// BroadcasterPanicsTotal counts recovered panics in the broadcast loop.
	BroadcasterPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_panics_total",
			Help: "Total panics recovered in the broadcaster",
		},
	)

	// BroadcasterStopTimeoutsTotal counts shutdowns that exceeded the
	// graceful stop timeout.
	BroadcasterStopTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_stop_timeouts_total",
			Help: "Total broadcaster stops that timed out",
		},
	)

	// WebSocketPingFailures counts failed keepalive pings.
	WebSocketPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_ping_failures_total",
			Help: "Total WebSocket ping failures",
		},
	)
)
