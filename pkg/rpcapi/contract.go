package rpcapi

import (
	"context"
	"time"

	"github.com/cuemby/fleetctl/pkg/coretypes"
	"github.com/cuemby/fleetctl/pkg/eventbus"
	"github.com/cuemby/fleetctl/pkg/execmediator"
	"github.com/cuemby/fleetctl/pkg/executor"
	"github.com/cuemby/fleetctl/pkg/streammux"
)

// HostService is the contract a caller uses to manage host registration and
// reachability, independent of any particular wire format. A generated
// grpc.ServiceServer implementation binds each method to a repository.Repository
// for persistence and an *executor.Executor for TestConnection.
type HostService interface {
	CreateHost(ctx context.Context, host coretypes.Host, creds map[coretypes.CredentialKind]coretypes.SecretBytes) error
	GetHost(ctx context.Context, hostID string) (coretypes.Host, error)
	ListHosts(ctx context.Context) ([]coretypes.Host, error)
	DeleteHost(ctx context.Context, hostID string) error
	TestConnection(ctx context.Context, host coretypes.Host, creds map[coretypes.CredentialKind]coretypes.SecretBytes) error
}

// EngineService is the read/write surface over a single host's Docker
// engine: container, image, volume, network, and swarm operations. Every
// method takes the caller's userID so the implementation can delegate
// straight to the matching *executor.Executor method, which resolves
// permissions and the circuit breaker itself.
type EngineService interface {
	ListContainers(ctx context.Context, hostID, userID string, all bool) ([]executor.ContainerSummary, error)
	InspectContainer(ctx context.Context, hostID, userID, containerID string) (executor.ContainerSummary, error)
	StartContainer(ctx context.Context, hostID, userID, containerID string) error
	StopContainer(ctx context.Context, hostID, userID, containerID string, timeout *time.Duration) error
	RestartContainer(ctx context.Context, hostID, userID, containerID string, timeout *time.Duration) error
	RemoveContainer(ctx context.Context, hostID, userID, containerID string, force, removeVolumes bool) error

	ListImages(ctx context.Context, hostID, userID string) ([]executor.ImageSummary, error)
	PullImage(ctx context.Context, hostID, userID, ref string) error
	RemoveImage(ctx context.Context, hostID, userID, imageID string, force bool) error

	ListVolumes(ctx context.Context, hostID, userID string) ([]executor.VolumeSummary, error)
	RemoveVolume(ctx context.Context, hostID, userID, name string, force bool) error

	ListNetworks(ctx context.Context, hostID, userID string) ([]executor.NetworkSummary, error)
	RemoveNetwork(ctx context.Context, hostID, userID, networkID string) error

	SystemInfo(ctx context.Context, hostID, userID string) (executor.SystemInfo, error)
}

// compile-time assertions that *executor.Executor satisfies the service
// contracts it backs, so a server implementation can embed it directly
// instead of hand-writing forwarding methods for every operation.
var (
	_ EngineService = (*executor.Executor)(nil)
	_ StreamService = (*executor.Executor)(nil)
	_ ExecService   = (*executor.Executor)(nil)
)

// StreamService is the contract behind log, stats, and event subscriptions.
// A generated server streaming RPC pumps the returned channel into
// NewLogFrame/NewEventFrame values and writes them to the wire until the
// caller cancels ctx or the unsubscribe func is invoked.
type StreamService interface {
	StreamLogs(ctx context.Context, hostID, userID, containerID string, tail int) (<-chan streammux.Frame, func(), error)
	StreamStats(ctx context.Context, hostID, userID, containerID string) (<-chan streammux.Frame, func(), error)
	SubscribeEvents(ctx context.Context, hostID, userID string, filter eventbus.Filter) (<-chan eventbus.Event, string, error)
	UnsubscribeEvents(hostID, subscriberID string)
}

// ExecService is the contract behind interactive exec sessions. A
// generated bidirectional streaming RPC reads client frames off the wire
// into the in channel and writes OutFrame values (adapted to
// ExecOutputFrame) back as they arrive.
type ExecService interface {
	Exec(ctx context.Context, hostID, userID string, req coretypes.ExecRequest, in <-chan execmediator.InFrame, out chan<- execmediator.OutFrame) error
}
