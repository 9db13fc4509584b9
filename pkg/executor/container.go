package executor

import (
	"context"
	"time"

	"github.com/docker/docker/api/types/container"
)

// ContainerSummary is the normalized view of one container returned by
// list/inspect operations, matching spec.md §3's container record shape.
type ContainerSummary struct {
	HostID string
	ID     string
	Names  []string
	Image  string
	State  string
	Status string
	Labels map[string]string
}

// ListContainers returns every container on hostID; all=true includes
// stopped containers alongside running ones.
func (e *Executor) ListContainers(ctx context.Context, hostID, userID string, all bool) ([]ContainerSummary, error) {
	cli, err := e.engine(ctx, hostID, userID, "list")
	if err != nil {
		return nil, err
	}
	list, err := cli.ContainerList(ctx, container.ListOptions{All: all})
	if err != nil {
		return nil, translateEngineErr("executor.ListContainers", err)
	}
	out := make([]ContainerSummary, 0, len(list))
	for _, c := range list {
		out = append(out, ContainerSummary{
			HostID: hostID,
			ID:     c.ID,
			Names:  c.Names,
			Image:  c.Image,
			State:  c.State,
			Status: c.Status,
			Labels: c.Labels,
		})
	}
	return out, nil
}

// InspectContainer returns the full detail record for one container.
func (e *Executor) InspectContainer(ctx context.Context, hostID, userID, containerID string) (ContainerSummary, error) {
	cli, err := e.engine(ctx, hostID, userID, "inspect")
	if err != nil {
		return ContainerSummary{}, err
	}
	info, err := cli.ContainerInspect(ctx, containerID)
	if err != nil {
		return ContainerSummary{}, translateEngineErr("executor.InspectContainer", err)
	}
	summary := ContainerSummary{HostID: hostID, ID: info.ID, Names: []string{info.Name}}
	if info.Config != nil {
		summary.Image = info.Config.Image
		summary.Labels = info.Config.Labels
	}
	if info.State != nil {
		summary.State = info.State.Status
		summary.Status = info.State.Status
	}
	return summary, nil
}

// StartContainer starts containerID. The engine itself treats starting an
// already-running container as a no-op success, so this call is
// idempotent without any extra handling here.
func (e *Executor) StartContainer(ctx context.Context, hostID, userID, containerID string) error {
	cli, err := e.engine(ctx, hostID, userID, "start")
	if err != nil {
		return err
	}
	if err := cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return translateEngineErr("executor.StartContainer", err)
	}
	return nil
}

// StopContainer stops containerID, waiting up to timeout for a graceful
// exit before killing it. A nil timeout uses the engine's default grace
// period. Stopping an already-stopped container is a no-op success.
func (e *Executor) StopContainer(ctx context.Context, hostID, userID, containerID string, timeout *time.Duration) error {
	cli, err := e.engine(ctx, hostID, userID, "stop")
	if err != nil {
		return err
	}
	if err := cli.ContainerStop(ctx, containerID, stopOptions(timeout)); err != nil {
		return translateEngineErr("executor.StopContainer", err)
	}
	return nil
}

// RestartContainer restarts containerID, following the same grace-period
// rules as StopContainer.
func (e *Executor) RestartContainer(ctx context.Context, hostID, userID, containerID string, timeout *time.Duration) error {
	cli, err := e.engine(ctx, hostID, userID, "restart")
	if err != nil {
		return err
	}
	if err := cli.ContainerRestart(ctx, containerID, stopOptions(timeout)); err != nil {
		return translateEngineErr("executor.RestartContainer", err)
	}
	return nil
}

// RemoveContainer removes containerID. force kills a running container
// first; removeVolumes also deletes its anonymous volumes.
func (e *Executor) RemoveContainer(ctx context.Context, hostID, userID, containerID string, force, removeVolumes bool) error {
	cli, err := e.engine(ctx, hostID, userID, "remove")
	if err != nil {
		return err
	}
	opts := container.RemoveOptions{Force: force, RemoveVolumes: removeVolumes}
	if err := cli.ContainerRemove(ctx, containerID, opts); err != nil {
		return translateEngineErr("executor.RemoveContainer", err)
	}
	return nil
}

func stopOptions(timeout *time.Duration) container.StopOptions {
	opts := container.StopOptions{}
	if timeout != nil {
		secs := int(timeout.Seconds())
		opts.Timeout = &secs
	}
	return opts
}
