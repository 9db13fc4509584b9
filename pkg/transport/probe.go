package transport

import (
	"context"

	"github.com/docker/docker/client"
)

// probe pings the engine through cli with a bounded timeout; the dialer
// must never hand back a handle whose engine has not answered this.
func probe(ctx context.Context, cli *client.Client) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	_, err := cli.Ping(ctx)
	return err
}
