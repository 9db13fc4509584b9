package transport

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/cuemby/fleetctl/pkg/corerr"
	"github.com/cuemby/fleetctl/pkg/coretypes"
	"github.com/cuemby/fleetctl/pkg/credentials"
	"github.com/docker/docker/client"
)

// dialTCPTLS opens the Docker API over TCP with TLS. A CA is mandatory;
// client cert/key enable mTLS when both are present.
func dialTCPTLS(ctx context.Context, host coretypes.Host, creds map[coretypes.CredentialKind]coretypes.SecretBytes) (*coretypes.EngineHandle, error) {
	tlsCfg, err := credentials.TLSConfig(
		creds[coretypes.CredentialTLSCA],
		creds[coretypes.CredentialTLSCert],
		creds[coretypes.CredentialTLSKey],
	)
	if err != nil {
		return nil, corerr.Transport("transport.dialTCPTLS", err)
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSClientConfig:       tlsCfg,
			TLSHandshakeTimeout:   10 * time.Second,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
		},
	}

	cli, err := client.NewClientWithOpts(
		client.WithHost(host.Endpoint),
		client.WithHTTPClient(httpClient),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, corerr.Transport("transport.dialTCPTLS", err)
	}

	if err := probe(ctx, cli); err != nil {
		cli.Close()
		return nil, corerr.Transport("transport.dialTCPTLS", err)
	}

	return &coretypes.EngineHandle{
		HostID:         host.ID,
		Client:         cli,
		CreatedAt:      time.Now(),
		LastHealthOKAt: time.Now(),
	}, nil
}
