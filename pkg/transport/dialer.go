// Package transport turns a host record plus decrypted credentials into a
// live engine handle. Each connection kind probes reachability before
// returning: unix_socket and tcp_plain ping the daemon directly, tcp_tls
// additionally verifies the peer certificate, and ssh dials a tunnel and
// probes both SSH and the Docker API across it before the handle is
// considered usable.
package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/fleetctl/pkg/corerr"
	"github.com/cuemby/fleetctl/pkg/coretypes"
	"github.com/rs/zerolog"
)

// pingTimeout bounds the reachability probe every dial path performs
// before a handle is handed back to the Connection Manager.
const pingTimeout = 10 * time.Second

// Dialer produces an engine handle for a host, given its decrypted
// credential material.
type Dialer struct {
	log zerolog.Logger
}

// New builds a Dialer.
func New(log zerolog.Logger) *Dialer {
	return &Dialer{log: log}
}

// Dial dispatches to the kind-specific dial path and returns a handle only
// once the engine has responded to a ping through it.
func (d *Dialer) Dial(ctx context.Context, host coretypes.Host, creds map[coretypes.CredentialKind]coretypes.SecretBytes) (*coretypes.EngineHandle, error) {
	switch host.Kind {
	case coretypes.ConnectionUnixSocket:
		return dialUnixSocket(ctx, host)
	case coretypes.ConnectionTCPPlain:
		return dialTCPPlain(ctx, host)
	case coretypes.ConnectionTCPTLS:
		return dialTCPTLS(ctx, host, creds)
	case coretypes.ConnectionSSH:
		return dialSSH(ctx, host, creds, d.log)
	default:
		return nil, corerr.Validation("transport.Dial", fmt.Sprintf("unknown connection kind %q", host.Kind))
	}
}
