// Package eventbus is the Event Broadcaster: at most one upstream Docker
// event subscription per host, fanned out to per-subscriber filters after
// each event is enriched with its host id.
package eventbus

import (
	"context"
	"sync"

	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/client"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event is an engine event enriched with the host it came from.
type Event struct {
	HostID string
	Raw    events.Message
}

// Filter narrows which events a subscriber receives. A nil or zero-value
// field means "don't filter on this dimension".
type Filter struct {
	Types      []events.Type
	Actions    []events.Action
	Labels     map[string]string
	Containers []string // matches Actor.ID or Actor.Attributes["name"]
	Images     []string
}

// Matches reports whether ev satisfies every non-empty dimension of f.
func (f Filter) Matches(ev events.Message) bool {
	if len(f.Types) > 0 && !containsType(f.Types, ev.Type) {
		return false
	}
	if len(f.Actions) > 0 && !containsAction(f.Actions, ev.Action) {
		return false
	}
	if len(f.Containers) > 0 {
		name := ev.Actor.Attributes["name"]
		if !containsString(f.Containers, ev.Actor.ID) && !containsString(f.Containers, name) {
			return false
		}
	}
	if len(f.Images) > 0 {
		if !containsString(f.Images, ev.Actor.Attributes["image"]) {
			return false
		}
	}
	for k, v := range f.Labels {
		if ev.Actor.Attributes[k] != v {
			return false
		}
	}
	return true
}

func containsType(types []events.Type, t events.Type) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

func containsAction(actions []events.Action, a events.Action) bool {
	for _, x := range actions {
		if x == a {
			return true
		}
	}
	return false
}

func containsString(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

type subscriber struct {
	ch     chan Event
	filter Filter
}

type hostSub struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	subs   map[string]*subscriber
}

// Bus manages per-host event subscriptions and subscriber fan-out.
type Bus struct {
	log zerolog.Logger

	mu    sync.Mutex
	hosts map[string]*hostSub
}

// New builds an empty Bus.
func New(log zerolog.Logger) *Bus {
	return &Bus{log: log, hosts: make(map[string]*hostSub)}
}

// Subscribe attaches to hostID's event stream, opening the upstream
// subscription if this is the first subscriber for that host. The
// returned channel is closed on Unsubscribe or upstream failure.
func (b *Bus) Subscribe(ctx context.Context, hostID string, cli *client.Client, filter Filter) (<-chan Event, string, error) {
	hs := b.getOrCreateHost(ctx, hostID, cli)

	hs.mu.Lock()
	defer hs.mu.Unlock()

	id := uuid.NewString()
	sub := &subscriber{ch: make(chan Event, 64), filter: filter}
	hs.subs[id] = sub

	return sub.ch, id, nil
}

// Unsubscribe removes subscriberID from hostID. If it was the last
// subscriber, the upstream event subscription is cancelled.
func (b *Bus) Unsubscribe(hostID, subscriberID string) {
	b.mu.Lock()
	hs, ok := b.hosts[hostID]
	b.mu.Unlock()
	if !ok {
		return
	}

	hs.mu.Lock()
	if sub, ok := hs.subs[subscriberID]; ok {
		delete(hs.subs, subscriberID)
		close(sub.ch)
	}
	empty := len(hs.subs) == 0
	hs.mu.Unlock()

	if empty {
		b.mu.Lock()
		if cur, ok := b.hosts[hostID]; ok && cur == hs {
			delete(b.hosts, hostID)
		}
		b.mu.Unlock()
		hs.cancel()
	}
}

func (b *Bus) getOrCreateHost(ctx context.Context, hostID string, cli *client.Client) *hostSub {
	b.mu.Lock()
	defer b.mu.Unlock()

	if hs, ok := b.hosts[hostID]; ok {
		return hs
	}

	upstreamCtx, cancel := context.WithCancel(context.Background())
	hs := &hostSub{cancel: cancel, subs: make(map[string]*subscriber)}
	b.hosts[hostID] = hs

	go b.runUpstream(upstreamCtx, hostID, cli, hs)

	return hs
}

// runUpstream reads the engine's event firehose for one host and fans
// each event out to matching subscribers.
func (b *Bus) runUpstream(ctx context.Context, hostID string, cli *client.Client, hs *hostSub) {
	defer func() {
		b.mu.Lock()
		if cur, ok := b.hosts[hostID]; ok && cur == hs {
			delete(b.hosts, hostID)
		}
		b.mu.Unlock()
		hs.mu.Lock()
		for id, sub := range hs.subs {
			delete(hs.subs, id)
			close(sub.ch)
		}
		hs.mu.Unlock()
	}()

	msgCh, errCh := cli.Events(ctx, events.ListOptions{})

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			b.broadcast(hostID, hs, Event{HostID: hostID, Raw: msg})

		case err := <-errCh:
			if err != nil {
				b.log.Warn().Err(err).Str("host_id", hostID).Msg("eventbus: upstream event stream ended")
			}
			return

		case <-ctx.Done():
			return
		}
	}
}

func (b *Bus) broadcast(hostID string, hs *hostSub, ev Event) {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	for id, sub := range hs.subs {
		if !sub.filter.Matches(ev.Raw) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			delete(hs.subs, id)
			close(sub.ch)
		}
	}
}

// HostIDs returns the hosts with at least one open upstream subscription,
// for callers (the metrics collector) that need to enumerate them without
// reaching into the Bus's internal map.
func (b *Bus) HostIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]string, 0, len(b.hosts))
	for id := range b.hosts {
		ids = append(ids, id)
	}
	return ids
}

// SubscriberCount reports how many subscribers are attached to hostID.
func (b *Bus) SubscriberCount(hostID string) int {
	b.mu.Lock()
	hs, ok := b.hosts[hostID]
	b.mu.Unlock()
	if !ok {
		return 0
	}
	hs.mu.Lock()
	defer hs.mu.Unlock()
	return len(hs.subs)
}
