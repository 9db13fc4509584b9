// Package health provides lightweight reachability checks used as a
// fast pre-flight by pkg/executor's TestConnection before it attempts a
// full engine dial.
// It is deliberately small: one Checker type (TCP dial) plus the
// hysteresis bookkeeping (Status) that turns a string of individual
// Results into a debounced healthy/unhealthy verdict, the same shape
// cuemby-warren used for its own readiness probing.
package health

import (
	"context"
	"time"
)

// CheckType identifies the mechanism a Checker uses.
type CheckType string

// CheckTypeTCP is currently the only supported check: a bare TCP dial
// against a host's transport address. Docker engines reached over SSH
// or a unix socket are validated by the transport dialer itself and
// credential decryption, not by a reachability probe.
const (
	CheckTypeTCP CheckType = "tcp"
)

// Result represents the outcome of a single health check.
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is the interface every health checker implements.
type Checker interface {
	// Check performs the health check and returns the result.
	Check(ctx context.Context) Result

	// Type returns the type of health check.
	Type() CheckType
}

// Config contains common configuration for a health check loop.
type Config struct {
	// Interval is the time between health checks.
	Interval time.Duration

	// Timeout is the maximum time to wait for a health check to complete.
	Timeout time.Duration

	// Retries is the number of consecutive failures before marking as unhealthy.
	Retries int

	// StartPeriod is the grace period before starting health checks.
	// Used to allow a newly registered host time to come up.
	StartPeriod time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    30 * time.Second,
		Timeout:     5 * time.Second,
		Retries:     3,
		StartPeriod: 0,
	}
}

// Status tracks the current health status of a host, debounced across
// consecutive check results.
type Status struct {
	// ConsecutiveFailures tracks the number of consecutive failed checks.
	ConsecutiveFailures int

	// ConsecutiveSuccesses tracks the number of consecutive successful checks.
	ConsecutiveSuccesses int

	// LastCheck is the timestamp of the last health check.
	LastCheck time.Time

	// LastResult is the result of the last health check.
	LastResult Result

	// Healthy indicates if the host is currently considered healthy.
	Healthy bool

	// StartedAt is when health monitoring started for this host.
	StartedAt time.Time
}

// NewStatus creates a new Status with default values.
func NewStatus() *Status {
	return &Status{
		Healthy:   true, // assume healthy until proven otherwise
		StartedAt: time.Now(),
	}
}

// Update updates the status based on a new health check result.
func (s *Status) Update(result Result, config Config) {
	s.LastCheck = result.CheckedAt
	s.LastResult = result

	if result.Healthy {
		s.ConsecutiveSuccesses++
		s.ConsecutiveFailures = 0
		s.Healthy = true
	} else {
		s.ConsecutiveFailures++
		s.ConsecutiveSuccesses = 0
		if s.ConsecutiveFailures >= config.Retries {
			s.Healthy = false
		}
	}
}

// InStartPeriod returns true if we're still in the startup grace period.
func (s *Status) InStartPeriod(config Config) bool {
	if config.StartPeriod == 0 {
		return false
	}
	return time.Since(s.StartedAt) < config.StartPeriod
}
