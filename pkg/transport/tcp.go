package transport

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/cuemby/fleetctl/pkg/corerr"
	"github.com/cuemby/fleetctl/pkg/coretypes"
	"github.com/docker/docker/client"
)

// dialUnencryptedHTTPClient builds the http.Client for the plain-TCP dial
// path (the TLS path builds its own); streaming operations (logs, stats, events) are
// long-lived, so no blanket response timeout is set.
func dialUnencryptedHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
		},
	}
}

// dialTCPPlain opens the Docker API over unencrypted TCP.
func dialTCPPlain(ctx context.Context, host coretypes.Host) (*coretypes.EngineHandle, error) {
	cli, err := client.NewClientWithOpts(
		client.WithHost(host.Endpoint),
		client.WithHTTPClient(dialUnencryptedHTTPClient()),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, corerr.Transport("transport.dialTCPPlain", err)
	}

	if err := probe(ctx, cli); err != nil {
		cli.Close()
		return nil, corerr.Transport("transport.dialTCPPlain", err)
	}

	return &coretypes.EngineHandle{
		HostID:         host.ID,
		Client:         cli,
		CreatedAt:      time.Now(),
		LastHealthOKAt: time.Now(),
	}, nil
}
