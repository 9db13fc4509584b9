package transport

import (
	"context"
	"time"

	"github.com/cuemby/fleetctl/pkg/corerr"
	"github.com/cuemby/fleetctl/pkg/coretypes"
	"github.com/docker/docker/client"
)

// dialUnixSocket opens the Docker API over a local unix socket path.
func dialUnixSocket(ctx context.Context, host coretypes.Host) (*coretypes.EngineHandle, error) {
	cli, err := client.NewClientWithOpts(
		client.WithHost("unix://"+host.Endpoint),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, corerr.Transport("transport.dialUnixSocket", err)
	}

	if err := probe(ctx, cli); err != nil {
		cli.Close()
		return nil, corerr.Transport("transport.dialUnixSocket", err)
	}

	return &coretypes.EngineHandle{
		HostID:         host.ID,
		Client:         cli,
		CreatedAt:      time.Now(),
		LastHealthOKAt: time.Now(),
	}, nil
}
