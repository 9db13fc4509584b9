package executor

import (
	"context"

	"github.com/docker/docker/api/types/volume"
)

// VolumeSummary is the normalized view of one named volume.
type VolumeSummary struct {
	HostID     string
	Name       string
	Driver     string
	Mountpoint string
	Labels     map[string]string
}

// ListVolumes returns every named volume on hostID.
func (e *Executor) ListVolumes(ctx context.Context, hostID, userID string) ([]VolumeSummary, error) {
	cli, err := e.engine(ctx, hostID, userID, "list")
	if err != nil {
		return nil, err
	}
	resp, err := cli.VolumeList(ctx, volume.ListOptions{})
	if err != nil {
		return nil, translateEngineErr("executor.ListVolumes", err)
	}
	out := make([]VolumeSummary, 0, len(resp.Volumes))
	for _, v := range resp.Volumes {
		out = append(out, VolumeSummary{HostID: hostID, Name: v.Name, Driver: v.Driver, Mountpoint: v.Mountpoint, Labels: v.Labels})
	}
	return out, nil
}

// CreateVolume creates a named volume on hostID.
func (e *Executor) CreateVolume(ctx context.Context, hostID, userID, name, driver string, labels map[string]string) (VolumeSummary, error) {
	cli, err := e.engine(ctx, hostID, userID, "create")
	if err != nil {
		return VolumeSummary{}, err
	}
	v, err := cli.VolumeCreate(ctx, volume.CreateOptions{Name: name, Driver: driver, Labels: labels})
	if err != nil {
		return VolumeSummary{}, translateEngineErr("executor.CreateVolume", err)
	}
	return VolumeSummary{HostID: hostID, Name: v.Name, Driver: v.Driver, Mountpoint: v.Mountpoint, Labels: v.Labels}, nil
}

// RemoveVolume removes a named volume from hostID.
func (e *Executor) RemoveVolume(ctx context.Context, hostID, userID, name string, force bool) error {
	cli, err := e.engine(ctx, hostID, userID, "remove")
	if err != nil {
		return err
	}
	if err := cli.VolumeRemove(ctx, name, force); err != nil {
		return translateEngineErr("executor.RemoveVolume", err)
	}
	return nil
}
