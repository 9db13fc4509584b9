package executor

import (
	"context"

	"github.com/docker/docker/api/types/network"
)

// NetworkSummary is the normalized view of one Docker network.
type NetworkSummary struct {
	HostID string
	ID     string
	Name   string
	Driver string
	Labels map[string]string
}

// ListNetworks returns every network on hostID.
func (e *Executor) ListNetworks(ctx context.Context, hostID, userID string) ([]NetworkSummary, error) {
	cli, err := e.engine(ctx, hostID, userID, "list")
	if err != nil {
		return nil, err
	}
	list, err := cli.NetworkList(ctx, network.ListOptions{})
	if err != nil {
		return nil, translateEngineErr("executor.ListNetworks", err)
	}
	out := make([]NetworkSummary, 0, len(list))
	for _, n := range list {
		out = append(out, NetworkSummary{HostID: hostID, ID: n.ID, Name: n.Name, Driver: n.Driver, Labels: n.Labels})
	}
	return out, nil
}

// CreateNetwork creates a network on hostID.
func (e *Executor) CreateNetwork(ctx context.Context, hostID, userID, name, driver string, labels map[string]string) (NetworkSummary, error) {
	cli, err := e.engine(ctx, hostID, userID, "create")
	if err != nil {
		return NetworkSummary{}, err
	}
	resp, err := cli.NetworkCreate(ctx, name, network.CreateOptions{Driver: driver, Labels: labels})
	if err != nil {
		return NetworkSummary{}, translateEngineErr("executor.CreateNetwork", err)
	}
	return NetworkSummary{HostID: hostID, ID: resp.ID, Name: name, Driver: driver, Labels: labels}, nil
}

// RemoveNetwork removes a network from hostID.
func (e *Executor) RemoveNetwork(ctx context.Context, hostID, userID, id string) error {
	cli, err := e.engine(ctx, hostID, userID, "remove")
	if err != nil {
		return err
	}
	if err := cli.NetworkRemove(ctx, id); err != nil {
		return translateEngineErr("executor.RemoveNetwork", err)
	}
	return nil
}
