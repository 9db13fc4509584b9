package metrics

import (
	"context"
	"time"

	"github.com/cuemby/fleetctl/pkg/breaker"
	"github.com/cuemby/fleetctl/pkg/connmgr"
	"github.com/cuemby/fleetctl/pkg/coretypes"
	"github.com/cuemby/fleetctl/pkg/eventbus"
)

// Collector periodically samples the connection manager, breaker manager,
// and event bus and republishes their state as gauges. It mirrors
// cuemby-warren's own metrics collector shape (a ticker-driven sweep
// calling one collect* method per subsystem) adapted from cluster/Raft
// state to this plane's host/breaker/stream state.
type Collector struct {
	hosts    HostsSnapshot
	conns    *connmgr.Manager
	breakers *breaker.Manager
	events   *eventbus.Bus

	interval time.Duration
	stopCh   chan struct{}
}

// HostsSnapshot is the narrow read-only view of pkg/repository.Repository
// the collector needs; named separately so the collector doesn't have to
// import the repository package for its whole CRUD surface.
type HostsSnapshot interface {
	ListHosts(ctx context.Context) ([]coretypes.Host, error)
}

// NewCollector builds a Collector. Any of conns, breakers, events may be
// nil, in which case that subsystem's metrics are simply not collected.
func NewCollector(hosts HostsSnapshot, conns *connmgr.Manager, breakers *breaker.Manager, events *eventbus.Bus, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		hosts:    hosts,
		conns:    conns,
		breakers: breakers,
		events:   events,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sample loop in a background goroutine.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.collect(ctx)
		for {
			select {
			case <-ticker.C:
				c.collect(ctx)
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop ends the sample loop.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect(ctx context.Context) {
	c.collectHosts(ctx)
	c.collectBreakers()
	c.collectConnections()
	c.collectEventSubscribers()
}

func (c *Collector) collectHosts(ctx context.Context) {
	if c.hosts == nil {
		return
	}
	hosts, err := c.hosts.ListHosts(ctx)
	if err != nil {
		return
	}

	counts := make(map[[2]string]int)
	for _, h := range hosts {
		counts[[2]string{string(h.Kind), string(h.Health)}]++
	}
	for key, count := range counts {
		HostsTotal.WithLabelValues(key[0], key[1]).Set(float64(count))
	}
}

func (c *Collector) collectBreakers() {
	if c.breakers == nil {
		return
	}
	for _, status := range c.breakers.AllStatus() {
		BreakerState.WithLabelValues(status.HostID).Set(breakerStateValue(status.State))
	}
}

func (c *Collector) collectConnections() {
	if c.conns == nil {
		return
	}
	ConnectionsActive.Set(float64(c.conns.ActiveCount()))
}

func (c *Collector) collectEventSubscribers() {
	if c.events == nil {
		return
	}
	for _, hostID := range c.events.HostIDs() {
		EventSubscribersActive.WithLabelValues(hostID).Set(float64(c.events.SubscriberCount(hostID)))
	}
}

func breakerStateValue(s breaker.State) float64 {
	switch s {
	case breaker.Closed:
		return 0
	case breaker.HalfOpen:
		return 1
	case breaker.Open:
		return 2
	default:
		return 0
	}
}
