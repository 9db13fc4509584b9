// Package executor is the Operation Executor: the single uniform surface
// translating the connection and streaming plane's primitives into the
// container/image/volume/network/swarm operations a caller can invoke
// against any host in the fleet. Every non-streaming call resolves its
// engine handle through the Connection Manager, so permission checks and
// the circuit breaker apply the same way regardless of which operation is
// being performed; streaming operations delegate to the Stream
// Multiplexer, Exec Session Mediator, and Event Broadcaster instead of
// returning directly.
package executor

import (
	"context"
	"fmt"

	"github.com/cuemby/fleetctl/pkg/breaker"
	"github.com/cuemby/fleetctl/pkg/corerr"
	"github.com/cuemby/fleetctl/pkg/coretypes"
	"github.com/cuemby/fleetctl/pkg/eventbus"
	"github.com/cuemby/fleetctl/pkg/execmediator"
	"github.com/cuemby/fleetctl/pkg/health"
	"github.com/cuemby/fleetctl/pkg/permissions"
	"github.com/cuemby/fleetctl/pkg/streammux"
	"github.com/docker/docker/client"
)

// Conns is the narrow view of the Connection Manager the executor needs:
// a live, permission-checked, breaker-guarded handle per call, plus an
// unchecked lookup for internal collaborators acting on no one's behalf.
// action is the real operation being performed, checked against the
// caller's grant by pkg/permissions' min-role table.
type Conns interface {
	Get(ctx context.Context, hostID, userID string, action permissions.Action) (*coretypes.EngineHandle, error)
	GetUnchecked(ctx context.Context, hostID string) (*coretypes.EngineHandle, error)
}

// Dialer produces a one-shot handle for TestConnection without going
// through the Connection Manager's registry. Satisfied structurally by
// pkg/transport.Dialer.
type Dialer interface {
	Dial(ctx context.Context, host coretypes.Host, creds map[coretypes.CredentialKind]coretypes.SecretBytes) (*coretypes.EngineHandle, error)
}

// Executor is the uniform operation surface over every connected engine.
type Executor struct {
	conns    Conns
	dialer   Dialer
	breakers *breaker.Manager
	mux      *streammux.Multiplexer
	mediator *execmediator.Mediator
	events   *eventbus.Bus
}

// New builds an Executor over an already-wired connection and streaming
// plane. mux may be nil at construction time and set afterward with
// SetMux, which breaks the construction cycle between the Multiplexer
// (which needs a SelfRefChecker) and pkg/selfref's Detector (which needs
// an Inspector satisfied by this Executor).
func New(conns Conns, dialer Dialer, breakers *breaker.Manager, mux *streammux.Multiplexer, mediator *execmediator.Mediator, events *eventbus.Bus) *Executor {
	return &Executor{conns: conns, dialer: dialer, breakers: breakers, mux: mux, mediator: mediator, events: events}
}

// SetMux wires the Stream Multiplexer in after construction, for callers
// that must build a pkg/selfref.Detector (itself requiring this Executor
// as its Inspector) before the Multiplexer it feeds.
func (e *Executor) SetMux(mux *streammux.Multiplexer) {
	e.mux = mux
}

// engine resolves the live Docker client for hostID on behalf of userID,
// after checking userID may perform action against hostID.
func (e *Executor) engine(ctx context.Context, hostID, userID string, action permissions.Action) (*client.Client, error) {
	handle, err := e.conns.Get(ctx, hostID, userID, action)
	if err != nil {
		return nil, err
	}
	cli, ok := handle.Client.(*client.Client)
	if !ok {
		return nil, corerr.Internal("executor.engine", fmt.Errorf("host %s has no docker client bound", hostID))
	}
	return cli, nil
}

// TestConnection performs a one-shot dial and ping for host without
// registering a handle in the Connection Manager, so a failing probe never
// evicts an already-healthy cached connection. Grounded in the control
// plane's original dedicated test-connection endpoint; bound directly to
// the Transport Dialer and Circuit Breaker rather than going through the
// Connection Manager's registry.
func (e *Executor) TestConnection(ctx context.Context, host coretypes.Host, creds map[coretypes.CredentialKind]coretypes.SecretBytes) error {
	if host.Kind == coretypes.ConnectionTCPPlain || host.Kind == coretypes.ConnectionTCPTLS {
		checker := health.NewTCPChecker(host.Endpoint)
		if result := checker.Check(ctx); !result.Healthy {
			return corerr.Transport("executor.TestConnection", fmt.Errorf("%s unreachable: %s", host.Endpoint, result.Message))
		}
	}

	br := e.breakers.GetOrCreate(host.ID)
	return br.Call(func() error {
		handle, err := e.dialer.Dial(ctx, host, creds)
		if err != nil {
			return err
		}
		if cli, ok := handle.Client.(*client.Client); ok {
			_ = cli.Close()
		}
		if handle.TransportChild != nil {
			_ = handle.TransportChild.Close()
		}
		return nil
	})
}
