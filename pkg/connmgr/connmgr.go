// Package connmgr is the Connection Manager: a singleton registry holding
// at most one live engine handle per host, created lazily, health-checked
// periodically, evicted on failure, and torn down on shutdown. Every
// outbound call routed through it passes its host's Circuit Breaker.
package connmgr

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/fleetctl/pkg/breaker"
	"github.com/cuemby/fleetctl/pkg/corerr"
	"github.com/cuemby/fleetctl/pkg/coretypes"
	"github.com/cuemby/fleetctl/pkg/credentials"
	"github.com/cuemby/fleetctl/pkg/permissions"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog"
)

// HostSource resolves a host record and its decrypted credentials. It is
// the narrow contract to whatever owns host persistence.
type HostSource interface {
	GetHost(ctx context.Context, hostID string) (coretypes.Host, error)
	GetCredentials(ctx context.Context, hostID string) ([]coretypes.CredentialItem, error)
	MarkUnhealthy(ctx context.Context, hostID string)
}

// PermissionChecker is the narrow view of pkg/permissions the manager
// needs to enforce access before yielding a handle, for the specific
// action the caller is about to perform. Satisfied directly by
// permissions.Resolver.Allow.
type PermissionChecker interface {
	Allow(ctx context.Context, userID string, action permissions.Action, hostID string) (bool, error)
}

// Dialer produces a handle for a host; satisfied by pkg/transport.Dialer.
type Dialer interface {
	Dial(ctx context.Context, host coretypes.Host, creds map[coretypes.CredentialKind]coretypes.SecretBytes) (*coretypes.EngineHandle, error)
}

type entry struct {
	mu     sync.Mutex // serializes creation for this one host
	handle *coretypes.EngineHandle
}

// Manager is the Connection Manager.
type Manager struct {
	hosts       HostSource
	creds       *credentials.Store
	dialer      Dialer
	breakers    *breaker.Manager
	perms       PermissionChecker
	log         zerolog.Logger
	healthEvery time.Duration

	mu       sync.Mutex // protects the registry map itself
	registry map[string]*entry
}

// Config tunes the manager's health-check cadence.
type Config struct {
	HealthCheckInterval time.Duration
}

// New builds a Connection Manager.
func New(hosts HostSource, creds *credentials.Store, dialer Dialer, breakers *breaker.Manager, perms PermissionChecker, log zerolog.Logger, cfg Config) *Manager {
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = 5 * time.Minute
	}
	return &Manager{
		hosts:       hosts,
		creds:       creds,
		dialer:      dialer,
		breakers:    breakers,
		perms:       perms,
		log:         log,
		healthEvery: cfg.HealthCheckInterval,
		registry:    make(map[string]*entry),
	}
}

// Get returns a live engine handle for hostID on behalf of userID,
// checking that userID may perform action against hostID before creating
// the handle lazily and health-checking it if stale. action must be the
// real operation being performed (e.g. "start", "remove", "swarm.init"),
// never a stand-in — it is what pkg/permissions' min-role table checks
// against the caller's grant.
func (m *Manager) Get(ctx context.Context, hostID, userID string, action permissions.Action) (*coretypes.EngineHandle, error) {
	if m.perms != nil {
		allowed, err := m.perms.Allow(ctx, userID, action, hostID)
		if err != nil {
			return nil, corerr.Internal("connmgr.Get", err)
		}
		if !allowed {
			return nil, corerr.Forbidden("connmgr.Get", fmt.Sprintf("user %s may not %s on host %s", userID, action, hostID))
		}
	}

	return m.getHandle(ctx, hostID)
}

// GetUnchecked returns a live engine handle for hostID without a
// permission check, for internal collaborators that are not acting on
// behalf of a particular caller (pkg/selfref's self-reference detection,
// which runs once per new upstream stream rather than per request).
func (m *Manager) GetUnchecked(ctx context.Context, hostID string) (*coretypes.EngineHandle, error) {
	return m.getHandle(ctx, hostID)
}

func (m *Manager) getHandle(ctx context.Context, hostID string) (*coretypes.EngineHandle, error) {
	e := m.entryFor(hostID)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handle == nil {
		handle, err := m.create(ctx, hostID)
		if err != nil {
			return nil, err
		}
		e.handle = handle
		return e.handle, nil
	}

	if time.Since(e.handle.LastHealthOKAt) > m.healthEvery {
		if err := m.healthCheck(ctx, e.handle); err != nil {
			m.disposeLocked(e)
			m.hosts.MarkUnhealthy(ctx, hostID)
			return nil, corerr.Transport("connmgr.Get", err)
		}
	}

	return e.handle, nil
}

// entryFor returns (creating if absent) the per-host entry, under the
// global registry mutex; the entry's own mutex then serializes creation so
// concurrent first-time callers for the same host do not race.
func (m *Manager) entryFor(hostID string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.registry[hostID]
	if !ok {
		e = &entry{}
		m.registry[hostID] = e
	}
	return e
}

func (m *Manager) create(ctx context.Context, hostID string) (*coretypes.EngineHandle, error) {
	host, err := m.hosts.GetHost(ctx, hostID)
	if err != nil {
		return nil, corerr.Wrap(corerr.KindNotFound, "connmgr.create", err)
	}
	items, err := m.hosts.GetCredentials(ctx, hostID)
	if err != nil {
		return nil, corerr.Internal("connmgr.create", err)
	}
	creds, err := m.creds.Decrypt(items)
	if err != nil {
		return nil, corerr.Internal("connmgr.create", err)
	}

	var handle *coretypes.EngineHandle
	br := m.breakers.GetOrCreate(hostID)
	err = br.Call(func() error {
		h, dialErr := m.dialer.Dial(ctx, host, creds)
		if dialErr != nil {
			return dialErr
		}
		handle = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return handle, nil
}

// healthCheck pings the engine through the host's breaker.
func (m *Manager) healthCheck(ctx context.Context, handle *coretypes.EngineHandle) error {
	cli, ok := handle.Client.(*client.Client)
	if !ok {
		return fmt.Errorf("connmgr: handle for host %s has no docker client", handle.HostID)
	}

	br := m.breakers.GetOrCreate(handle.HostID)
	err := br.Call(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		_, pingErr := cli.Ping(pingCtx)
		if pingErr != nil {
			return corerr.Transport("connmgr.healthCheck", pingErr)
		}
		return nil
	})
	if err == nil {
		handle.LastHealthOKAt = time.Now()
	}
	return err
}

// ActiveCount returns the number of hosts with a live (non-nil) cached
// handle, for the metrics collector.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.registry {
		e.mu.Lock()
		if e.handle != nil {
			n++
		}
		e.mu.Unlock()
	}
	return n
}

// Close evicts and disposes of hostID's handle, if any.
func (m *Manager) Close(hostID string) {
	m.mu.Lock()
	e, ok := m.registry[hostID]
	m.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	m.disposeLocked(e)
	e.mu.Unlock()
}

// disposeLocked closes the handle's client and SSH child, if any. Caller
// must hold e.mu.
func (m *Manager) disposeLocked(e *entry) {
	if e.handle == nil {
		return
	}
	if cli, ok := e.handle.Client.(*client.Client); ok {
		_ = cli.Close()
	}
	if e.handle.TransportChild != nil {
		_ = e.handle.TransportChild.Close()
	}
	e.handle = nil
}

// CloseAll disposes of every handle; called on process shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.registry))
	for _, e := range m.registry {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
		m.disposeLocked(e)
		e.mu.Unlock()
	}
}
