package executor

import (
	"context"
	"fmt"

	"github.com/cuemby/fleetctl/pkg/corerr"
	"github.com/cuemby/fleetctl/pkg/coretypes"
	"github.com/cuemby/fleetctl/pkg/eventbus"
	"github.com/cuemby/fleetctl/pkg/execmediator"
	"github.com/cuemby/fleetctl/pkg/logsource"
	"github.com/cuemby/fleetctl/pkg/selfref"
	"github.com/cuemby/fleetctl/pkg/streammux"
	"github.com/docker/docker/client"
)

// StreamLogs subscribes the caller to containerID's log stream on hostID,
// opening (or joining) the shared upstream through the Stream Multiplexer.
func (e *Executor) StreamLogs(ctx context.Context, hostID, userID, containerID string, tail int) (<-chan streammux.Frame, func(), error) {
	cli, err := e.engine(ctx, hostID, userID, "logs")
	if err != nil {
		return nil, nil, err
	}
	provider := logsource.NewContainerProvider(cli, hostID)
	key := coretypes.StreamKey{Source: coretypes.SourceContainer, ResourceID: containerID}
	return e.mux.Subscribe(ctx, hostID, key, provider, tail)
}

// StreamServiceLogs is StreamLogs' swarm-service counterpart.
func (e *Executor) StreamServiceLogs(ctx context.Context, hostID, userID, serviceID string, tail int) (<-chan streammux.Frame, func(), error) {
	cli, err := e.engine(ctx, hostID, userID, "logs")
	if err != nil {
		return nil, nil, err
	}
	provider := logsource.NewServiceProvider(cli, hostID)
	key := coretypes.StreamKey{Source: coretypes.SourceSwarmService, ResourceID: serviceID}
	return e.mux.Subscribe(ctx, hostID, key, provider, tail)
}

// StreamStats is StreamLogs' resource-usage counterpart; stats streams
// have no meaningful replay tail, so subscribers always join live.
func (e *Executor) StreamStats(ctx context.Context, hostID, userID, containerID string) (<-chan streammux.Frame, func(), error) {
	cli, err := e.engine(ctx, hostID, userID, "stats")
	if err != nil {
		return nil, nil, err
	}
	provider := logsource.NewStatsProvider(cli, hostID)
	key := coretypes.StreamKey{Source: coretypes.SourceContainerStats, ResourceID: containerID}
	return e.mux.Subscribe(ctx, hostID, key, provider, 0)
}

// Exec opens an interactive exec session against containerID, pumping
// frames between in and out until either side closes or ctx ends.
func (e *Executor) Exec(ctx context.Context, hostID, userID string, req coretypes.ExecRequest, in <-chan execmediator.InFrame, out chan<- execmediator.OutFrame) error {
	cli, err := e.engine(ctx, hostID, userID, "exec")
	if err != nil {
		return err
	}
	return e.mediator.Run(ctx, cli, req, in, out)
}

// SubscribeEvents attaches to hostID's Docker event firehose, filtered
// per-subscriber.
func (e *Executor) SubscribeEvents(ctx context.Context, hostID, userID string, filter eventbus.Filter) (<-chan eventbus.Event, string, error) {
	cli, err := e.engine(ctx, hostID, userID, "events")
	if err != nil {
		return nil, "", err
	}
	return e.events.Subscribe(ctx, hostID, cli, filter)
}

// UnsubscribeEvents tears down a prior SubscribeEvents call.
func (e *Executor) UnsubscribeEvents(hostID, subscriberID string) {
	e.events.Unsubscribe(hostID, subscriberID)
}

// InspectForSelfRef satisfies pkg/selfref.Inspector, giving the Detector
// just enough of a container's inspect result to decide whether it is the
// control plane's own container. It uses the unchecked connection lookup
// since self-reference detection runs once per new upstream stream, on no
// particular caller's behalf.
func (e *Executor) InspectForSelfRef(ctx context.Context, hostID, containerID string) (selfref.ContainerInfo, error) {
	handle, err := e.conns.GetUnchecked(ctx, hostID)
	if err != nil {
		return selfref.ContainerInfo{}, err
	}
	cli, ok := handle.Client.(*client.Client)
	if !ok {
		return selfref.ContainerInfo{}, corerr.Internal("executor.InspectForSelfRef", fmt.Errorf("host %s has no docker client bound", hostID))
	}
	info, err := cli.ContainerInspect(ctx, containerID)
	if err != nil {
		return selfref.ContainerInfo{}, translateEngineErr("executor.InspectForSelfRef", err)
	}
	var hostname string
	var labels map[string]string
	if info.Config != nil {
		hostname = info.Config.Hostname
		labels = info.Config.Labels
	}
	return selfref.ContainerInfo{Hostname: hostname, Labels: labels}, nil
}
