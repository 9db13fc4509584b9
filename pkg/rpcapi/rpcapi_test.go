package rpcapi

import (
	"testing"
	"time"

	"github.com/cuemby/fleetctl/pkg/corerr"
	"github.com/cuemby/fleetctl/pkg/coretypes"
	"github.com/cuemby/fleetctl/pkg/streammux"
	"github.com/docker/docker/api/types/events"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
)

func TestToStatus_MapsKindsToCodes(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{corerr.NotFound("op", "missing"), codes.NotFound},
		{corerr.Conflict("op", "busy"), codes.AlreadyExists},
		{corerr.Validation("op", "bad"), codes.InvalidArgument},
		{corerr.Forbidden("op", "nope"), codes.PermissionDenied},
		{corerr.Cancelled("op", "aborted"), codes.Canceled},
		{corerr.BreakerOpen("op", "host-1"), codes.Unavailable},
	}
	for _, c := range cases {
		assert.Equal(t, c.code, ToStatus(c.err).Code())
	}
}

func TestToStatus_NilIsOK(t *testing.T) {
	assert.Equal(t, codes.OK, ToStatus(nil).Code())
}

func TestToError_WrapsNonNil(t *testing.T) {
	err := ToError(corerr.NotFound("op", "missing"))
	assert.Error(t, err)
}

func TestNewLogFrame_Heartbeat(t *testing.T) {
	f := NewLogFrame(streammux.Frame{Heartbeat: true})
	assert.True(t, f.Heartbeat)
	assert.Nil(t, f.Timestamp)
}

func TestNewLogFrame_Entry(t *testing.T) {
	now := time.Now()
	f := NewLogFrame(streammux.Frame{Entry: coretypes.LogEntry{
		Timestamp: now,
		Source:    coretypes.SourceContainer,
		SourceID:  "abc123",
		HostID:    "host-1",
		Level:     coretypes.LevelInfo,
		Message:   "hello",
	}})
	assert.False(t, f.Heartbeat)
	assert.Equal(t, "host-1", f.HostID)
	assert.Equal(t, "hello", f.Message)
	assert.Equal(t, now.Unix(), f.Timestamp.AsTime().Unix())
}

func TestNewEventFrame(t *testing.T) {
	msg := events.Message{
		Type:   events.ContainerEventType,
		Action: "start",
		Actor:  events.Actor{ID: "c1", Attributes: map[string]string{"name": "web"}},
		Time:   1700000000,
	}
	f := NewEventFrame("host-1", msg)
	assert.Equal(t, "host-1", f.HostID)
	assert.Equal(t, "start", f.Action)
	assert.Equal(t, "c1", f.ActorID)
	assert.Equal(t, "web", f.Attributes["name"])
}
