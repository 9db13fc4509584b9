package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/fleetctl/pkg/breaker"
	"github.com/cuemby/fleetctl/pkg/connmgr"
	"github.com/cuemby/fleetctl/pkg/coretypes"
	"github.com/cuemby/fleetctl/pkg/eventbus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	return testutil.ToFloat64(g)
}

type fakeHostsSnapshot struct {
	hosts []coretypes.Host
}

func (f fakeHostsSnapshot) ListHosts(ctx context.Context) ([]coretypes.Host, error) {
	return f.hosts, nil
}

func TestCollector_CollectHosts_GroupsByKindAndHealth(t *testing.T) {
	hosts := fakeHostsSnapshot{hosts: []coretypes.Host{
		{ID: "h1", Kind: coretypes.ConnectionUnixSocket, Health: coretypes.HealthHealthy},
		{ID: "h2", Kind: coretypes.ConnectionUnixSocket, Health: coretypes.HealthHealthy},
		{ID: "h3", Kind: coretypes.ConnectionSSH, Health: coretypes.HealthUnhealthy},
	}}
	c := NewCollector(hosts, nil, nil, nil, time.Hour)

	c.collectHosts(context.Background())

	assert.Equal(t, float64(2), gaugeValue(t, HostsTotal.WithLabelValues(string(coretypes.ConnectionUnixSocket), string(coretypes.HealthHealthy))))
	assert.Equal(t, float64(1), gaugeValue(t, HostsTotal.WithLabelValues(string(coretypes.ConnectionSSH), string(coretypes.HealthUnhealthy))))
}

func TestCollector_CollectBreakers_ReportsState(t *testing.T) {
	mgr := breaker.NewManager(breaker.DefaultConfig())
	mgr.GetOrCreate("host-1")
	c := NewCollector(nil, nil, mgr, nil, time.Hour)

	c.collectBreakers()

	assert.Equal(t, float64(0), gaugeValue(t, BreakerState.WithLabelValues("host-1")))
}

func TestCollector_CollectConnections_ReportsActiveCount(t *testing.T) {
	mgr := &connmgr.Manager{}
	c := NewCollector(nil, mgr, nil, nil, time.Hour)

	c.collectConnections()

	assert.Equal(t, float64(0), gaugeValue(t, ConnectionsActive))
}

func TestCollector_CollectEventSubscribers_NoHostsIsNoop(t *testing.T) {
	bus := eventbus.New(zerolog.Nop())
	c := NewCollector(nil, nil, nil, bus, time.Hour)

	assert.NotPanics(t, func() { c.collectEventSubscribers() })
}

func TestCollector_StartStop(t *testing.T) {
	c := NewCollector(fakeHostsSnapshot{}, nil, nil, nil, 10*time.Millisecond)
	c.Start(context.Background())
	time.Sleep(25 * time.Millisecond)
	c.Stop()
}
