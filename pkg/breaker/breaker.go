// Package breaker implements a per-host circuit breaker guarding outbound
// calls to an engine. It mirrors the closed/open/half_open state machine
// used by the control plane's original circuit_breaker.py, with the
// thresholds this rewrite specifies rather than that module's defaults.
package breaker

import (
	"sync"
	"time"

	"github.com/cuemby/fleetctl/pkg/corerr"
)

// State is one of the three circuit breaker modes.
type State string

const (
	Closed   State = "closed"
	Open     State = "open"
	HalfOpen State = "half_open"
)

// Config tunes a Breaker. Zero-value fields fall back to the defaults.
type Config struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
	SuccessThreshold int
}

// DefaultConfig returns sensible defaults: 3 failures to trip, 30s
// recovery, 2 consecutive successes to fully close.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 2,
	}
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = 30 * time.Second
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	return c
}

// Status is a point-in-time snapshot for introspection.
type Status struct {
	HostID                      string
	State                       State
	ConsecutiveFailures         int
	ConsecutiveHalfOpenSuccesses int
	OpenedAt                    time.Time
}

// Breaker gates calls to a single host.
type Breaker struct {
	hostID string
	cfg    Config

	mu                           sync.Mutex
	state                        State
	consecutiveFailures          int
	consecutiveHalfOpenSuccesses int
	openedAt                     time.Time
}

// New creates a closed breaker for hostID.
func New(hostID string, cfg Config) *Breaker {
	return &Breaker{
		hostID: hostID,
		cfg:    cfg.withDefaults(),
		state:  Closed,
	}
}

// Call runs fn if the breaker currently admits calls, updating state from
// the outcome. Only errors for which corerr.CountsAsBreakerFailure is true
// count toward tripping the breaker; other errors pass through untouched.
func (b *Breaker) Call(fn func() error) error {
	if !b.allow() {
		return corerr.BreakerOpen("breaker.Call", b.hostID)
	}

	err := fn()
	b.observe(err)
	return err
}

// allow reports whether a call may proceed, transitioning open->half_open
// if the recovery timeout has elapsed.
func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed, HalfOpen:
		return true
	case Open:
		if time.Since(b.openedAt) >= b.cfg.RecoveryTimeout {
			b.state = HalfOpen
			b.consecutiveHalfOpenSuccesses = 0
			return true
		}
		return false
	default:
		return true
	}
}

func (b *Breaker) observe(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.onSuccess()
		return
	}
	if corerr.CountsAsBreakerFailure(err) {
		b.onFailure()
	}
}

func (b *Breaker) onSuccess() {
	switch b.state {
	case HalfOpen:
		b.consecutiveHalfOpenSuccesses++
		if b.consecutiveHalfOpenSuccesses >= b.cfg.SuccessThreshold {
			b.transitionToClosed()
		}
	case Closed:
		b.consecutiveFailures = 0
	}
}

func (b *Breaker) onFailure() {
	switch b.state {
	case HalfOpen:
		b.transitionToOpen()
	case Closed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.cfg.FailureThreshold {
			b.transitionToOpen()
		}
	}
}

func (b *Breaker) transitionToOpen() {
	b.state = Open
	b.openedAt = time.Now()
	b.consecutiveHalfOpenSuccesses = 0
}

func (b *Breaker) transitionToClosed() {
	b.state = Closed
	b.consecutiveFailures = 0
	b.consecutiveHalfOpenSuccesses = 0
}

// Status returns a snapshot of the breaker's current state.
func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{
		HostID:                       b.hostID,
		State:                        b.state,
		ConsecutiveFailures:          b.consecutiveFailures,
		ConsecutiveHalfOpenSuccesses: b.consecutiveHalfOpenSuccesses,
		OpenedAt:                     b.openedAt,
	}
}

// Reset manually forces the breaker back to closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitionToClosed()
}

// Manager owns one Breaker per host, created lazily.
type Manager struct {
	cfg Config

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewManager creates a Manager that lazily builds breakers with cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:      cfg.withDefaults(),
		breakers: make(map[string]*Breaker),
	}
}

// GetOrCreate returns the breaker for hostID, creating it if absent.
func (m *Manager) GetOrCreate(hostID string) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.breakers[hostID]
	if !ok {
		b = New(hostID, m.cfg)
		m.breakers[hostID] = b
	}
	return b
}

// AllStatus returns a snapshot of every breaker the manager has created.
func (m *Manager) AllStatus() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Status, 0, len(m.breakers))
	for _, b := range m.breakers {
		out = append(out, b.Status())
	}
	return out
}

// Reset resets a single host's breaker, if it exists.
func (m *Manager) Reset(hostID string) {
	m.mu.Lock()
	b, ok := m.breakers[hostID]
	m.mu.Unlock()
	if ok {
		b.Reset()
	}
}

// ResetAll resets every known breaker.
func (m *Manager) ResetAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.breakers {
		b.Reset()
	}
}
