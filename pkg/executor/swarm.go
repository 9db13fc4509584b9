package executor

import (
	"context"

	"github.com/cuemby/fleetctl/pkg/corerr"
	"github.com/cuemby/fleetctl/pkg/coretypes"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/swarm"
)

// ServiceSummary is the normalized view of one swarm service.
type ServiceSummary struct {
	HostID   string
	ID       string
	Name     string
	Image    string
	Replicas uint64
	Labels   map[string]string
}

func serviceSummary(hostID string, s swarm.Service) ServiceSummary {
	sum := ServiceSummary{HostID: hostID, ID: s.ID, Name: s.Spec.Name, Labels: s.Spec.Labels}
	if s.Spec.TaskTemplate.ContainerSpec != nil {
		sum.Image = s.Spec.TaskTemplate.ContainerSpec.Image
	}
	if s.Spec.Mode.Replicated != nil && s.Spec.Mode.Replicated.Replicas != nil {
		sum.Replicas = *s.Spec.Mode.Replicated.Replicas
	}
	return sum
}

// ListServices returns every swarm service visible from hostID.
func (e *Executor) ListServices(ctx context.Context, hostID, userID string) ([]ServiceSummary, error) {
	cli, err := e.engine(ctx, hostID, userID, "list")
	if err != nil {
		return nil, err
	}
	list, err := cli.ServiceList(ctx, types.ServiceListOptions{})
	if err != nil {
		return nil, translateEngineErr("executor.ListServices", err)
	}
	out := make([]ServiceSummary, 0, len(list))
	for _, s := range list {
		out = append(out, serviceSummary(hostID, s))
	}
	return out, nil
}

// InspectService returns the detail record for one swarm service.
func (e *Executor) InspectService(ctx context.Context, hostID, userID, serviceID string) (ServiceSummary, error) {
	cli, err := e.engine(ctx, hostID, userID, "inspect")
	if err != nil {
		return ServiceSummary{}, err
	}
	s, _, err := cli.ServiceInspectWithRaw(ctx, serviceID, types.ServiceInspectOptions{})
	if err != nil {
		return ServiceSummary{}, translateEngineErr("executor.InspectService", err)
	}
	return serviceSummary(hostID, s), nil
}

// ScaleService sets a replicated service's desired replica count.
func (e *Executor) ScaleService(ctx context.Context, hostID, userID, serviceID string, replicas uint64) error {
	cli, err := e.engine(ctx, hostID, userID, "scale")
	if err != nil {
		return err
	}
	s, _, err := cli.ServiceInspectWithRaw(ctx, serviceID, types.ServiceInspectOptions{})
	if err != nil {
		return translateEngineErr("executor.ScaleService", err)
	}
	if s.Spec.Mode.Replicated == nil {
		return corerr.Validation("executor.ScaleService", "service is not running in replicated mode")
	}
	s.Spec.Mode.Replicated.Replicas = &replicas
	if _, err := cli.ServiceUpdate(ctx, serviceID, s.Version, s.Spec, types.ServiceUpdateOptions{}); err != nil {
		return translateEngineErr("executor.ScaleService", err)
	}
	return nil
}

// RemoveService removes a swarm service from hostID.
func (e *Executor) RemoveService(ctx context.Context, hostID, userID, serviceID string) error {
	cli, err := e.engine(ctx, hostID, userID, "remove")
	if err != nil {
		return err
	}
	if err := cli.ServiceRemove(ctx, serviceID); err != nil {
		return translateEngineErr("executor.RemoveService", err)
	}
	return nil
}

// NodeSummary is the normalized view of one swarm node.
type NodeSummary struct {
	HostID       string
	ID           string
	Hostname     string
	Role         coretypes.SwarmRole
	Availability string
	Status       string
}

// ListNodes returns every node in hostID's swarm cluster, as seen from
// hostID (only meaningful for manager hosts).
func (e *Executor) ListNodes(ctx context.Context, hostID, userID string) ([]NodeSummary, error) {
	cli, err := e.engine(ctx, hostID, userID, "list")
	if err != nil {
		return nil, err
	}
	list, err := cli.NodeList(ctx, types.NodeListOptions{})
	if err != nil {
		return nil, translateEngineErr("executor.ListNodes", err)
	}
	out := make([]NodeSummary, 0, len(list))
	for _, n := range list {
		out = append(out, NodeSummary{
			HostID:       hostID,
			ID:           n.ID,
			Hostname:     n.Description.Hostname,
			Role:         nodeRole(n.Spec.Role),
			Availability: string(n.Spec.Availability),
			Status:       string(n.Status.State),
		})
	}
	return out, nil
}

// RemoveNode removes a node from hostID's swarm cluster. force removes a
// node that has not been gracefully drained/demoted first.
func (e *Executor) RemoveNode(ctx context.Context, hostID, userID, nodeID string, force bool) error {
	cli, err := e.engine(ctx, hostID, userID, "remove")
	if err != nil {
		return err
	}
	if err := cli.NodeRemove(ctx, nodeID, types.NodeRemoveOptions{Force: force}); err != nil {
		return translateEngineErr("executor.RemoveNode", err)
	}
	return nil
}

func nodeRole(r swarm.NodeRole) coretypes.SwarmRole {
	if r == swarm.NodeRoleManager {
		return coretypes.SwarmRoleManager
	}
	return coretypes.SwarmRoleWorker
}

// SwarmStatus is the observed host-role state machine reading for one
// host: standalone, worker, or manager (with leader flag), as read from the
// engine. The executor reports this state but does not store it, and it
// never acts as a swarm participant itself.
type SwarmStatus struct {
	HostID    string
	ClusterID string
	Role      coretypes.SwarmRole
	IsLeader  bool
}

// SwarmInspect reads hostID's current swarm membership from the engine. It
// does not update the host's stored role fields.
func (e *Executor) SwarmInspect(ctx context.Context, hostID, userID string) (SwarmStatus, error) {
	cli, err := e.engine(ctx, hostID, userID, "inspect")
	if err != nil {
		return SwarmStatus{}, err
	}
	info, err := cli.Info(ctx)
	if err != nil {
		return SwarmStatus{}, translateEngineErr("executor.SwarmInspect", err)
	}

	st := SwarmStatus{HostID: hostID, Role: coretypes.SwarmRoleStandalone}
	if info.Swarm.Cluster != nil {
		st.ClusterID = info.Swarm.Cluster.ID
	}
	if info.Swarm.LocalNodeState != swarm.LocalNodeStateActive {
		return st, nil
	}
	if !info.Swarm.ControlAvailable {
		st.Role = coretypes.SwarmRoleWorker
		return st, nil
	}
	st.Role = coretypes.SwarmRoleManager
	if node, _, err := cli.NodeInspectWithRaw(ctx, info.Swarm.NodeID); err == nil {
		st.IsLeader = node.ManagerStatus != nil && node.ManagerStatus.Leader
	}
	return st, nil
}

// SwarmInit initializes hostID as the first manager of a new swarm
// cluster. The host's stored role is not updated here; a later
// SwarmInspect reports it as manager.
func (e *Executor) SwarmInit(ctx context.Context, hostID, userID string, req swarm.InitRequest) (string, error) {
	cli, err := e.engine(ctx, hostID, userID, "swarm.init")
	if err != nil {
		return "", err
	}
	id, err := cli.SwarmInit(ctx, req)
	if err != nil {
		return "", translateEngineErr("executor.SwarmInit", err)
	}
	return id, nil
}

// SwarmJoin joins hostID to an existing cluster as a manager or worker,
// per req.
func (e *Executor) SwarmJoin(ctx context.Context, hostID, userID string, req swarm.JoinRequest) error {
	cli, err := e.engine(ctx, hostID, userID, "swarm.join")
	if err != nil {
		return err
	}
	if err := cli.SwarmJoin(ctx, req); err != nil {
		return translateEngineErr("executor.SwarmJoin", err)
	}
	return nil
}

// SwarmLeave removes hostID from its cluster. The host's stored role is
// not updated here; a later SwarmInspect reports it as standalone.
func (e *Executor) SwarmLeave(ctx context.Context, hostID, userID string, force bool) error {
	cli, err := e.engine(ctx, hostID, userID, "swarm.leave")
	if err != nil {
		return err
	}
	if err := cli.SwarmLeave(ctx, force); err != nil {
		return translateEngineErr("executor.SwarmLeave", err)
	}
	return nil
}
