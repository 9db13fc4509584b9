package streammux

import (
	"testing"
	"time"

	"github.com/cuemby/fleetctl/pkg/coretypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestActiveStream_AddSubscriber_ClampsReplayToQueueCapacity guards against
// addSubscriber deadlocking: a caller-supplied tail larger than the
// subscriber's own queue must never block the synchronous replay send,
// since the channel isn't handed to any reader until this call returns.
func TestActiveStream_AddSubscriber_ClampsReplayToQueueCapacity(t *testing.T) {
	const ringSize = 1000
	const queueLen = 8

	s := newActiveStream(coretypes.StreamKey{Source: coretypes.SourceContainer, ResourceID: "c1"}, ringSize)
	for i := 0; i < ringSize; i++ {
		s.broadcast(Frame{Entry: coretypes.LogEntry{Message: "line"}})
	}

	done := make(chan struct{})
	var ch <-chan Frame
	go func() {
		_, ch = s.addSubscriber(queueLen, ringSize)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("addSubscriber deadlocked replaying more entries than the subscriber's queue can hold")
	}

	replayed := drainN(t, ch, queueLen, time.Second)
	assert.Len(t, replayed, queueLen, "replay must be clamped to the subscriber's queue capacity, not the full requested tail")
}

func TestActiveStream_ReplayLocked_ReturnsMostRecentEntriesInOrder(t *testing.T) {
	s := newActiveStream(coretypes.StreamKey{Source: coretypes.SourceContainer, ResourceID: "c1"}, 4)
	for i := 0; i < 6; i++ {
		s.appendRingLocked(coretypes.LogEntry{Message: string(rune('a' + i))})
	}

	out := s.replayLocked(3)
	require.Len(t, out, 3)
	assert.Equal(t, "d", out[0].Message)
	assert.Equal(t, "e", out[1].Message)
	assert.Equal(t, "f", out[2].Message)
}
