/*
Package metrics provides Prometheus metrics collection and exposition for the
connection and streaming plane.

The metrics package defines and registers every gauge, counter, and histogram
this plane exposes, using the Prometheus client library, giving
observability into host reachability, circuit breaker state, connection
reuse, stream multiplexing, exec sessions, and engine operation latency.
Metrics are exposed via an HTTP endpoint for scraping by Prometheus servers.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Categories               │          │
	│  │                                              │          │
	│  │  Hosts: count by connection kind, health    │          │
	│  │  Breaker: per-host state, trip count        │          │
	│  │  Connections: active handles, dial latency  │          │
	│  │  Streams: active upstreams, subscribers     │          │
	│  │  Exec: active sessions, outcome totals      │          │
	│  │  Events: subscribers per host               │          │
	│  │  Operations: duration/outcome per domain    │          │
	│  │  RPC: request count, duration, status code  │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          Collector (ticker-driven)           │          │
	│  │  Samples hosts/connmgr/breaker/eventbus      │          │
	│  │  state and republishes it as gauges on its   │          │
	│  │  interval (15s when none is given). No code  │          │
	│  │  in this repository updates the stream,      │          │
	│  │  exec, dial, operation or RPC metrics.       │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint               │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Metric Types

Gauge: instant values that can go up or down (hosts total, breaker state).
Counter: monotonically increasing values (operations total, breaker trips).
Histogram: distributions with buckets for latency percentiles (operation
duration, RPC duration).

Timer is a small helper for the histogram case: start a Timer, run the
operation, then ObserveDuration (or ObserveDurationVec for a labeled
histogram) once it completes.

# Metrics Catalog

fleetctl_hosts_total{kind, health}:
  - Gauge. Registered hosts grouped by connection kind and health.

fleetctl_breaker_state{host_id}:
  - Gauge. 0=closed, 1=half_open, 2=open.

fleetctl_breaker_trips_total{host_id}:
  - Counter. Times a host's breaker has opened.

fleetctl_connections_active:
  - Gauge. Engine handles currently cached by the connection manager.

fleetctl_connection_dial_duration_seconds:
  - Histogram. Time to dial and ping a host's engine.

fleetctl_streams_active{source_type}:
  - Gauge. Active multiplexed upstream log/stats streams.

fleetctl_stream_subscribers_active:
  - Gauge. Subscribers currently attached to any multiplexed stream.

fleetctl_exec_sessions_active:
  - Gauge. Interactive exec sessions currently in progress.

fleetctl_exec_sessions_total{outcome}:
  - Counter. Exec sessions started, by outcome (ok, error, cancelled).

fleetctl_event_subscribers_active{host_id}:
  - Gauge. Event subscribers currently attached, by host.

fleetctl_operation_duration_seconds{domain, operation}:
  - Histogram. Engine operation latency.

fleetctl_operations_total{domain, operation, outcome}:
  - Counter. Engine operations by outcome.

fleetctl_rpc_requests_total{method, code}:
  - Counter. RPC requests by method and status code.

fleetctl_rpc_request_duration_seconds{method}:
  - Histogram. RPC request duration.

# Health and Readiness

This package also exposes a small process-level health tracker
(RegisterComponent/UpdateComponent/GetHealth/GetReadiness) independent of
the Prometheus metrics above, following the same /health, /ready, /metrics
HTTP surface cuemby-warren's own API health server exposed — readiness
here gates on the repository, connection manager, and rpc listener coming
up, rather than a Raft quorum.

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
*/
package metrics
