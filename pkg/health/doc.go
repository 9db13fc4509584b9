/*
Package health provides a small reachability-check primitive used as a
fast pre-flight in front of the connection and streaming plane's own,
heavier health checking.

Two other things already check engine health more thoroughly:

  - pkg/connmgr's Manager pings a cached handle's Docker client directly
    (through the host's circuit breaker) whenever the handle goes stale.
  - pkg/metrics's HealthChecker tracks this process's own components
    (repository, connection manager, rpc listener) for /health and /ready.

Neither of those is cheap to run before a host even has credentials or a
dialer configured. TCPChecker fills that gap: a bare TCP dial against a
host's transport address, used by pkg/executor's TestConnection to fail
fast with a clear "address unreachable" error before attempting a full
TLS handshake or SSH negotiation.

# Checker

	type Checker interface {
	    Check(ctx context.Context) Result
	    Type() CheckType
	}

TCPChecker is the only Checker implementation. It is deliberately
narrow: Docker engines reached over SSH or a unix socket are validated
by the transport dialer and credential decryption themselves, not by a
separate reachability probe.

# Status and debouncing

Status turns a sequence of individual Results into a debounced
healthy/unhealthy verdict, so a single slow or dropped check does not
flip a host's reported health: Healthy only flips to false once
ConsecutiveFailures reaches Config.Retries, and flips back to true on
the very next success.

# See Also

  - pkg/connmgr for the connection-manager's own engine health check
  - pkg/metrics for process-level health and readiness
*/
package health
