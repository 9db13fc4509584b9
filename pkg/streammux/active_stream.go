package streammux

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/fleetctl/pkg/coretypes"
	"github.com/google/uuid"
)

type subscriber struct {
	ch chan Frame
}

// activeStream is one upstream-backed (or degraded) stream shared by every
// subscriber watching the same resource. All reads and writes of its
// mutable state go through mu; this is what keeps the replay-then-broadcast
// handoff exactly-once instead of racing a concurrent broadcast.
type activeStream struct {
	key coretypes.StreamKey

	mu           sync.Mutex
	cancel       context.CancelFunc
	ring         []coretypes.LogEntry
	ringStart    int // index of the oldest entry in ring
	ringLen      int
	subs         map[string]*subscriber
	lastActivity time.Time
	emptySince   time.Time
}

func newActiveStream(key coretypes.StreamKey, ringSize int) *activeStream {
	now := time.Now()
	return &activeStream{
		key:          key,
		ring:         make([]coretypes.LogEntry, ringSize),
		subs:         make(map[string]*subscriber),
		lastActivity: now,
		emptySince:   now,
	}
}

// addSubscriber registers a new subscriber and, still under the stream
// lock, delivers up to `tail` buffered entries before returning — so the
// caller's channel never interleaves a broadcast ahead of its own replay.
// The replay is clamped to the subscriber's own queue capacity: ch is not
// handed back to any reader until this call returns, so a send beyond
// queueLen would block forever while holding the stream lock, wedging
// every other subscriber and every future broadcast on this stream. A
// caller asking for a longer tail than its queue can hold gets the most
// recent queueLen entries instead.
func (s *activeStream) addSubscriber(queueLen, tail int) (string, <-chan Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan Frame, queueLen)
	s.subs[id] = &subscriber{ch: ch}
	s.emptySince = time.Time{}

	if tail > queueLen {
		tail = queueLen
	}
	for _, entry := range s.replayLocked(tail) {
		ch <- Frame{Entry: entry}
	}

	return id, ch
}

// replayLocked returns up to the most recent `tail` buffered entries in
// original order. Caller must hold mu.
func (s *activeStream) replayLocked(tail int) []coretypes.LogEntry {
	if tail <= 0 || s.ringLen == 0 {
		return nil
	}
	if tail > s.ringLen {
		tail = s.ringLen
	}
	out := make([]coretypes.LogEntry, tail)
	ringCap := len(s.ring)
	start := (s.ringStart + s.ringLen - tail + ringCap) % ringCap
	for i := 0; i < tail; i++ {
		out[i] = s.ring[(start+i)%ringCap]
	}
	return out
}

// removeSubscriber drops id, closing its channel. Returns true if the
// stream has no subscribers left.
func (s *activeStream) removeSubscriber(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[id]
	if !ok {
		return len(s.subs) == 0
	}
	delete(s.subs, id)
	close(sub.ch)

	if len(s.subs) == 0 {
		s.emptySince = time.Now()
	}
	return len(s.subs) == 0
}

// broadcast appends entry to the ring buffer and attempts delivery to
// every subscriber; a subscriber whose queue is full is dropped rather
// than allowed to stall the others.
func (s *activeStream) broadcast(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !f.Heartbeat && f.Err == nil {
		s.appendRingLocked(f.Entry)
	}
	s.lastActivity = time.Now()

	for id, sub := range s.subs {
		select {
		case sub.ch <- f:
		default:
			delete(s.subs, id)
			close(sub.ch)
		}
	}
	if len(s.subs) == 0 && s.emptySince.IsZero() {
		s.emptySince = time.Now()
	}
}

func (s *activeStream) appendRingLocked(entry coretypes.LogEntry) {
	n := len(s.ring)
	idx := (s.ringStart + s.ringLen) % n
	s.ring[idx] = entry
	if s.ringLen < n {
		s.ringLen++
	} else {
		s.ringStart = (s.ringStart + 1) % n
	}
}

// terminateAll delivers a terminal error frame to every subscriber and
// closes their channels; used when the upstream itself fails or on
// shutdown.
func (s *activeStream) terminateAll(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sub := range s.subs {
		select {
		case sub.ch <- Frame{Err: err}:
		default:
		}
		close(sub.ch)
		delete(s.subs, id)
	}
	s.emptySince = time.Now()
}

func (s *activeStream) subscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// idleSince reports how long the stream has had zero subscribers, or zero
// if it currently has at least one.
func (s *activeStream) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.subs) > 0 || s.emptySince.IsZero() {
		return 0
	}
	return now.Sub(s.emptySince)
}

func (s *activeStream) cancelUpstream() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
