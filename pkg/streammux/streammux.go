// Package streammux is the Stream Multiplexer: it lets many callers share
// one upstream log/stats stream per resource, replaying recent history to
// late joiners and evicting slow subscribers rather than stalling the
// whole stream.
package streammux

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/fleetctl/pkg/coretypes"
	"github.com/rs/zerolog"
)

const (
	defaultRingSize           = 1000
	defaultSubscriberQueueLen = 256
	defaultIdleCheckInterval  = 60 * time.Second
	defaultIdleTTL            = 300 * time.Second
)

// Provider opens an upstream stream for a resource. Satisfied structurally
// by pkg/logsource.Provider; declared independently here to avoid an
// import dependency between the two packages.
type Provider interface {
	Stream(ctx context.Context, id string, opts coretypes.StreamOptions, out chan<- coretypes.LogEntry) error
}

// SelfRefChecker reports whether a container is the control plane itself.
// Satisfied structurally by pkg/selfref.Detector.
type SelfRefChecker interface {
	IsSelf(ctx context.Context, hostID, containerID string) (bool, error)
}

// Frame is one message delivered to a subscriber: either a log entry, a
// terminal error that ends the stream, or nothing (a heartbeat keepalive).
type Frame struct {
	Entry     coretypes.LogEntry
	Err       error
	Heartbeat bool
}

// Config tunes buffer sizes and idle-stream cleanup.
type Config struct {
	RingSize           int
	SubscriberQueueLen int
	IdleCheckInterval  time.Duration
	IdleTTL            time.Duration
}

func (c Config) withDefaults() Config {
	if c.RingSize <= 0 {
		c.RingSize = defaultRingSize
	}
	if c.SubscriberQueueLen <= 0 {
		c.SubscriberQueueLen = defaultSubscriberQueueLen
	}
	if c.IdleCheckInterval <= 0 {
		c.IdleCheckInterval = defaultIdleCheckInterval
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = defaultIdleTTL
	}
	return c
}

// Multiplexer owns every ActiveStream, keyed by (source type, resource id).
type Multiplexer struct {
	cfg     Config
	selfRef SelfRefChecker
	log     zerolog.Logger

	mu      sync.Mutex // protects the streams map itself; never held during I/O
	streams map[coretypes.StreamKey]*activeStream

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Multiplexer and starts its idle-stream sweep. selfRef may be
// nil, in which case self-reference suppression is disabled.
func New(cfg Config, selfRef SelfRefChecker, log zerolog.Logger) *Multiplexer {
	m := &Multiplexer{
		cfg:     cfg.withDefaults(),
		selfRef: selfRef,
		log:     log,
		streams: make(map[coretypes.StreamKey]*activeStream),
		stopCh:  make(chan struct{}),
	}
	m.wg.Add(1)
	go m.sweepLoop()
	return m
}

// Shutdown cancels every upstream task and stops the idle sweep.
func (m *Multiplexer) Shutdown() {
	close(m.stopCh)
	m.wg.Wait()

	m.mu.Lock()
	streams := make([]*activeStream, 0, len(m.streams))
	for _, s := range m.streams {
		streams = append(streams, s)
	}
	m.streams = make(map[coretypes.StreamKey]*activeStream)
	m.mu.Unlock()

	for _, s := range streams {
		s.terminateAll(context.Canceled)
	}
}

// Subscribe attaches caller to the stream for key, starting the upstream
// (or a self-reference degraded stream) if this is the first subscriber.
// The returned Frame channel is closed once the subscriber is removed.
// unsubscribe is idempotent.
func (m *Multiplexer) Subscribe(ctx context.Context, hostID string, key coretypes.StreamKey, provider Provider, tail int) (<-chan Frame, func(), error) {
	s := m.getOrCreate(ctx, hostID, key, provider)

	id, ch := s.addSubscriber(m.cfg.SubscriberQueueLen, tail)

	unsubscribe := func() {
		s.removeSubscriber(id)
	}
	return ch, unsubscribe, nil
}

// getOrCreate returns the ActiveStream for key, creating and starting it
// (under the registry lock) if absent.
func (m *Multiplexer) getOrCreate(ctx context.Context, hostID string, key coretypes.StreamKey, provider Provider) *activeStream {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.streams[key]; ok {
		return s
	}

	s := newActiveStream(key, m.cfg.RingSize)
	m.streams[key] = s

	degraded := false
	if m.selfRef != nil && key.Source == coretypes.SourceContainer {
		isSelf, err := m.selfRef.IsSelf(ctx, hostID, key.ResourceID)
		if err != nil {
			m.log.Warn().Err(err).Str("resource_id", key.ResourceID).Msg("streammux: self-reference check failed, assuming not self")
		}
		degraded = isSelf
	}

	upstreamCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if degraded {
		go m.runDegraded(upstreamCtx, s)
	} else {
		go m.runUpstream(upstreamCtx, s, provider)
	}

	return s
}

// runUpstream reads entries off the provider and broadcasts them until the
// provider's stream ends or the upstream context is cancelled.
func (m *Multiplexer) runUpstream(ctx context.Context, s *activeStream, provider Provider) {
	defer m.dropIfEmpty(s)

	out := make(chan coretypes.LogEntry, 64)
	streamErr := make(chan error, 1)

	go func() {
		streamErr <- provider.Stream(ctx, s.key.ResourceID, coretypes.StreamOptions{Follow: true, Timestamps: true}, out)
	}()

	for {
		select {
		case entry, ok := <-out:
			if !ok {
				return
			}
			s.broadcast(Frame{Entry: entry})

		case err := <-streamErr:
			if err != nil {
				s.terminateAll(err)
			}
			return

		case <-ctx.Done():
			return
		}
	}
}

// runDegraded implements self-reference suppression: a single informational
// entry followed by periodic heartbeats, no upstream ever opened.
func (m *Multiplexer) runDegraded(ctx context.Context, s *activeStream) {
	s.broadcast(Frame{Entry: coretypes.LogEntry{
		Timestamp: time.Now(),
		Source:    s.key.Source,
		SourceID:  s.key.ResourceID,
		Level:     coretypes.LevelInfo,
		Message:   "log streaming is disabled for the control plane's own container",
	}})

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.broadcast(Frame{Heartbeat: true})
		case <-ctx.Done():
			return
		}
	}
}

// dropIfEmpty removes s from the registry if it has no subscribers. Safe
// to call unconditionally when an upstream task exits.
func (m *Multiplexer) dropIfEmpty(s *activeStream) {
	if s.subscriberCount() > 0 {
		return
	}
	m.mu.Lock()
	if cur, ok := m.streams[s.key]; ok && cur == s {
		delete(m.streams, s.key)
	}
	m.mu.Unlock()
}

// sweepLoop periodically evicts streams that have had no subscribers for
// longer than IdleTTL.
func (m *Multiplexer) sweepLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.IdleCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweepIdle()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Multiplexer) sweepIdle() {
	now := time.Now()

	m.mu.Lock()
	var idle []*activeStream
	for key, s := range m.streams {
		if s.idleSince(now) > m.cfg.IdleTTL {
			idle = append(idle, s)
			delete(m.streams, key)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.cancelUpstream()
	}
}
