package executor

import (
	"context"

	"github.com/docker/docker/api/types/filters"
)

// SystemInfo is the normalized subset of engine-wide information surfaced
// to callers: version, platform, swarm-adjacent resource totals.
type SystemInfo struct {
	HostID            string
	EngineVersion     string
	OS                string
	Architecture      string
	Containers        int
	ContainersRunning int
	Images            int
	NCPU              int
	MemTotal          int64
}

// SystemInfo reads hostID's engine-wide info record.
func (e *Executor) SystemInfo(ctx context.Context, hostID, userID string) (SystemInfo, error) {
	cli, err := e.engine(ctx, hostID, userID, "info")
	if err != nil {
		return SystemInfo{}, err
	}
	info, err := cli.Info(ctx)
	if err != nil {
		return SystemInfo{}, translateEngineErr("executor.SystemInfo", err)
	}
	version := ""
	if ver, vErr := cli.ServerVersion(ctx); vErr == nil {
		version = ver.Version
	}
	return SystemInfo{
		HostID:            hostID,
		EngineVersion:     version,
		OS:                info.OperatingSystem,
		Architecture:      info.Architecture,
		Containers:        info.Containers,
		ContainersRunning: info.ContainersRunning,
		Images:            info.Images,
		NCPU:              info.NCPU,
		MemTotal:          info.MemTotal,
	}, nil
}

// PruneReport totals what a prune call reclaimed.
type PruneReport struct {
	ContainersDeleted []string
	ImagesDeleted     int
	VolumesDeleted    int
	NetworksDeleted   int
	SpaceReclaimed    uint64
}

// PruneSystem removes unused containers, dangling images, unused volumes
// and networks from hostID, best-effort across each resource kind.
func (e *Executor) PruneSystem(ctx context.Context, hostID, userID string) (PruneReport, error) {
	cli, err := e.engine(ctx, hostID, userID, "system.prune")
	if err != nil {
		return PruneReport{}, err
	}

	var report PruneReport
	if cr, pruneErr := cli.ContainersPrune(ctx, filters.Args{}); pruneErr == nil {
		report.ContainersDeleted = cr.ContainersDeleted
		report.SpaceReclaimed += cr.SpaceReclaimed
	}
	if ir, pruneErr := cli.ImagesPrune(ctx, filters.Args{}); pruneErr == nil {
		report.ImagesDeleted = len(ir.ImagesDeleted)
		report.SpaceReclaimed += ir.SpaceReclaimed
	}
	if vr, pruneErr := cli.VolumesPrune(ctx, filters.Args{}); pruneErr == nil {
		report.VolumesDeleted = len(vr.VolumesDeleted)
		report.SpaceReclaimed += vr.SpaceReclaimed
	}
	if nr, pruneErr := cli.NetworksPrune(ctx, filters.Args{}); pruneErr == nil {
		report.NetworksDeleted = len(nr.NetworksDeleted)
	}
	return report, nil
}
