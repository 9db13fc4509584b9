package rpcapi

import (
	"time"

	"github.com/cuemby/fleetctl/pkg/streammux"
	"github.com/docker/docker/api/types/events"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// LogFrame is the wire-shaped form of a multiplexed log or stats entry. A
// generated streaming RPC response marshals one of these per message;
// Timestamp uses timestamppb rather than a Go time.Time so the field
// round-trips through protobuf's well-known JSON/binary wire formats.
type LogFrame struct {
	Timestamp *timestamppb.Timestamp `json:"timestamp"`
	Source    string                 `json:"source"`
	SourceID  string                 `json:"source_id"`
	HostID    string                 `json:"host_id"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
	Heartbeat bool                   `json:"heartbeat,omitempty"`
}

// NewLogFrame converts a streammux.Frame into its wire shape. A heartbeat
// frame (no entry) carries only the Heartbeat flag.
func NewLogFrame(f streammux.Frame) LogFrame {
	if f.Heartbeat {
		return LogFrame{Heartbeat: true}
	}
	return LogFrame{
		Timestamp: timestamppb.New(f.Entry.Timestamp),
		Source:    string(f.Entry.Source),
		SourceID:  f.Entry.SourceID,
		HostID:    f.Entry.HostID,
		Level:     string(f.Entry.Level),
		Message:   f.Entry.Message,
		Metadata:  f.Entry.Metadata,
	}
}

// EventFrame is the wire-shaped form of a broadcast engine event.
type EventFrame struct {
	Timestamp  *timestamppb.Timestamp `json:"timestamp"`
	HostID     string                 `json:"host_id"`
	Type       string                 `json:"type"`
	Action     string                 `json:"action"`
	ActorID    string                 `json:"actor_id"`
	Attributes map[string]string      `json:"attributes,omitempty"`
}

// NewEventFrame converts a raw engine event (as broadcast by pkg/eventbus)
// into its wire shape.
func NewEventFrame(hostID string, msg events.Message) EventFrame {
	ts := time.Unix(0, msg.TimeNano)
	if msg.TimeNano == 0 {
		ts = time.Unix(msg.Time, 0)
	}
	return EventFrame{
		Timestamp:  timestamppb.New(ts),
		HostID:     hostID,
		Type:       string(msg.Type),
		Action:     string(msg.Action),
		ActorID:    msg.Actor.ID,
		Attributes: msg.Actor.Attributes,
	}
}

// ExecOutputFrame is the wire shape for one chunk of exec session output.
type ExecOutputFrame struct {
	Stream string `json:"stream"` // "stdout" or "stderr"
	Data   []byte `json:"data"`
}
