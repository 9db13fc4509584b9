package executor

import (
	"context"
	"io"

	"github.com/cuemby/fleetctl/pkg/corerr"
	"github.com/docker/docker/api/types/image"
)

// ImageSummary is the normalized view of one image.
type ImageSummary struct {
	HostID   string
	ID       string
	RepoTags []string
	Size     int64
	Labels   map[string]string
}

// ListImages returns every image cached on hostID.
func (e *Executor) ListImages(ctx context.Context, hostID, userID string) ([]ImageSummary, error) {
	cli, err := e.engine(ctx, hostID, userID, "list")
	if err != nil {
		return nil, err
	}
	list, err := cli.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return nil, translateEngineErr("executor.ListImages", err)
	}
	out := make([]ImageSummary, 0, len(list))
	for _, img := range list {
		out = append(out, ImageSummary{HostID: hostID, ID: img.ID, RepoTags: img.RepoTags, Size: img.Size, Labels: img.Labels})
	}
	return out, nil
}

// PullImage pulls ref on hostID, draining the progress stream before
// returning; callers wanting progress events use the registry's own
// streaming behavior is not currently surfaced beyond completion/error.
func (e *Executor) PullImage(ctx context.Context, hostID, userID, ref string) error {
	cli, err := e.engine(ctx, hostID, userID, "create")
	if err != nil {
		return err
	}
	rc, err := cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return translateEngineErr("executor.PullImage", err)
	}
	defer rc.Close()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return corerr.Engine("executor.PullImage", err)
	}
	return nil
}

// RemoveImage removes imageID from hostID. force removes it even if
// referenced by stopped containers or multiple tags.
func (e *Executor) RemoveImage(ctx context.Context, hostID, userID, imageID string, force bool) error {
	cli, err := e.engine(ctx, hostID, userID, "remove")
	if err != nil {
		return err
	}
	if _, err := cli.ImageRemove(ctx, imageID, image.RemoveOptions{Force: force}); err != nil {
		return translateEngineErr("executor.RemoveImage", err)
	}
	return nil
}
