package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Host metrics
	HostsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetctl_hosts_total",
			Help: "Total number of registered hosts by connection kind and health",
		},
		[]string{"kind", "health"},
	)

	// Circuit breaker metrics
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetctl_breaker_state",
			Help: "Circuit breaker state per host (0=closed, 1=half_open, 2=open)",
		},
		[]string{"host_id"},
	)

	BreakerTripsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetctl_breaker_trips_total",
			Help: "Total number of times a host's breaker has opened",
		},
		[]string{"host_id"},
	)

	// Connection manager metrics
	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetctl_connections_active",
			Help: "Number of engine handles currently cached by the connection manager",
		},
	)

	ConnectionDialDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetctl_connection_dial_duration_seconds",
			Help:    "Time taken to dial and ping a host's engine",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Stream multiplexer metrics
	StreamsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetctl_streams_active",
			Help: "Number of active multiplexed upstream log/stats streams by source type",
		},
		[]string{"source_type"},
	)

	StreamSubscribersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetctl_stream_subscribers_active",
			Help: "Number of subscribers currently attached to any multiplexed stream",
		},
	)

	// Exec session metrics
	ExecSessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetctl_exec_sessions_active",
			Help: "Number of interactive exec sessions currently in progress",
		},
	)

	ExecSessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetctl_exec_sessions_total",
			Help: "Total number of exec sessions started, by outcome",
		},
		[]string{"outcome"},
	)

	// Event bus metrics
	EventSubscribersActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetctl_event_subscribers_active",
			Help: "Number of event subscribers currently attached, by host",
		},
		[]string{"host_id"},
	)

	// Operation metrics
	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetctl_operation_duration_seconds",
			Help:    "Time taken to execute an engine operation, by domain and operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"domain", "operation"},
	)

	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetctl_operations_total",
			Help: "Total number of engine operations, by domain, operation, and outcome",
		},
		[]string{"domain", "operation", "outcome"},
	)

	// RPC metrics
	RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetctl_rpc_requests_total",
			Help: "Total number of RPC requests by method and status code",
		},
		[]string{"method", "code"},
	)

	RPCRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetctl_rpc_request_duration_seconds",
			Help:    "RPC request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(HostsTotal)
	prometheus.MustRegister(BreakerState)
	prometheus.MustRegister(BreakerTripsTotal)
	prometheus.MustRegister(ConnectionsActive)
	prometheus.MustRegister(ConnectionDialDuration)
	prometheus.MustRegister(StreamsActive)
	prometheus.MustRegister(StreamSubscribersActive)
	prometheus.MustRegister(ExecSessionsActive)
	prometheus.MustRegister(ExecSessionsTotal)
	prometheus.MustRegister(EventSubscribersActive)
	prometheus.MustRegister(OperationDuration)
	prometheus.MustRegister(OperationsTotal)
	prometheus.MustRegister(RPCRequestsTotal)
	prometheus.MustRegister(RPCRequestDuration)
}

// Handler returns the Prometheus HTTP handler for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
