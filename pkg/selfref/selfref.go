// Package selfref detects when a request targets the container running the
// control plane itself, so the Stream Multiplexer can suppress a feedback
// loop. Unlike the fragile substring name-matching the original connection
// used, detection here prioritizes a configured self-identifying label and
// falls back to hostname equality only when no label is present.
package selfref

import (
	"context"
	"sync"
	"time"
)

// ContainerInfo is the minimal subset of an inspect result the detector
// needs from an engine.
type ContainerInfo struct {
	Hostname string
	Labels   map[string]string
}

// Inspector fetches ContainerInfo for a container on a host, satisfied by
// pkg/executor.
type Inspector interface {
	InspectForSelfRef(ctx context.Context, hostID, containerID string) (ContainerInfo, error)
}

// Config identifies the control plane's own container.
type Config struct {
	// SelfLabelKey/SelfLabelValue take priority over hostname matching.
	SelfLabelKey   string
	SelfLabelValue string
	CacheTTL       time.Duration
}

type cacheKey struct {
	hostID      string
	containerID string
}

type cacheEntry struct {
	isSelf    bool
	expiresAt time.Time
}

// Detector answers "is this container the control plane itself".
type Detector struct {
	inspector   Inspector
	cfg         Config
	processHost string
	ttl         time.Duration

	mu    sync.Mutex
	cache map[cacheKey]cacheEntry
}

// New builds a Detector. processHostname is the control plane process's
// own hostname, used as the fallback match when no label matches.
func New(inspector Inspector, cfg Config, processHostname string) *Detector {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Detector{
		inspector:   inspector,
		cfg:         cfg,
		processHost: processHostname,
		ttl:         ttl,
		cache:       make(map[cacheKey]cacheEntry),
	}
}

// IsSelf reports whether containerID on hostID is the control plane's own
// container: label match takes priority, hostname equality is the
// fallback. The result is memoized per (host, container) for the TTL.
func (d *Detector) IsSelf(ctx context.Context, hostID, containerID string) (bool, error) {
	key := cacheKey{hostID: hostID, containerID: containerID}

	d.mu.Lock()
	if entry, ok := d.cache[key]; ok && time.Now().Before(entry.expiresAt) {
		d.mu.Unlock()
		return entry.isSelf, nil
	}
	d.mu.Unlock()

	info, err := d.inspector.InspectForSelfRef(ctx, hostID, containerID)
	if err != nil {
		return false, err
	}

	isSelf := d.matches(info)

	d.mu.Lock()
	d.cache[key] = cacheEntry{isSelf: isSelf, expiresAt: time.Now().Add(d.ttl)}
	d.mu.Unlock()

	return isSelf, nil
}

func (d *Detector) matches(info ContainerInfo) bool {
	if d.cfg.SelfLabelKey != "" {
		if v, present := info.Labels[d.cfg.SelfLabelKey]; present {
			return v == d.cfg.SelfLabelValue
		}
	}
	return d.processHost != "" && info.Hostname == d.processHost
}

// Invalidate drops a single cached decision, e.g. after a container recreate.
func (d *Detector) Invalidate(hostID, containerID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.cache, cacheKey{hostID: hostID, containerID: containerID})
}
