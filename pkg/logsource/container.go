package logsource

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/cuemby/fleetctl/pkg/corerr"
	"github.com/cuemby/fleetctl/pkg/coretypes"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// ContainerProvider streams and describes logs for a single container.
type ContainerProvider struct {
	cli    *client.Client
	hostID string
}

// NewContainerProvider builds a Provider bound to one engine handle.
func NewContainerProvider(cli *client.Client, hostID string) *ContainerProvider {
	return &ContainerProvider{cli: cli, hostID: hostID}
}

func (p *ContainerProvider) SourceType() coretypes.SourceType { return coretypes.SourceContainer }

func (p *ContainerProvider) GetMetadata(ctx context.Context, id string) (map[string]string, error) {
	info, err := p.cli.ContainerInspect(ctx, id)
	if err != nil {
		return nil, corerr.Wrap(corerr.KindEngine, "logsource.ContainerProvider.GetMetadata", err)
	}
	meta := map[string]string{
		"container_id":       id,
		"container_id_short": shortID(id),
		"container_name":     info.Name,
		"image":              info.Config.Image,
	}
	return meta, nil
}

func (p *ContainerProvider) ValidateAccess(ctx context.Context, id string) (bool, error) {
	_, err := p.cli.ContainerInspect(ctx, id)
	if err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, corerr.Wrap(corerr.KindEngine, "logsource.ContainerProvider.ValidateAccess", err)
	}
	return true, nil
}

func (p *ContainerProvider) Stream(ctx context.Context, id string, opts coretypes.StreamOptions, out chan<- coretypes.LogEntry) error {
	info, err := p.cli.ContainerInspect(ctx, id)
	if err != nil {
		return corerr.Wrap(corerr.KindEngine, "logsource.ContainerProvider.Stream", err)
	}

	logOpts := container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     opts.Follow,
		Timestamps: true,
		Since:      sinceString(opts.Since),
		Until:      untilString(opts.Until),
	}
	if opts.Tail > 0 {
		logOpts.Tail = strconv.Itoa(opts.Tail)
	}

	body, err := p.cli.ContainerLogs(ctx, id, logOpts)
	if err != nil {
		return corerr.Wrap(corerr.KindEngine, "logsource.ContainerProvider.Stream", err)
	}
	defer body.Close()

	metadata := map[string]string{
		"container_id":       id,
		"container_id_short": shortID(id),
		"container_name":     info.Name,
	}

	if info.Config != nil && info.Config.Tty {
		return p.scanLines(ctx, body, id, metadata, out)
	}
	return p.scanDemultiplexed(ctx, body, id, metadata, out)
}

// scanLines handles a TTY container, whose log stream is raw text with no
// stdout/stderr framing.
func (p *ContainerProvider) scanLines(ctx context.Context, r io.Reader, id string, metadata map[string]string, out chan<- coretypes.LogEntry) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		entry := normalizeLine(scanner.Text(), coretypes.SourceContainer, id, p.hostID, metadata)
		select {
		case out <- entry:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return scanner.Err()
}

// scanDemultiplexed handles a non-TTY container, whose log stream
// interleaves stdout and stderr behind the Docker multiplex frame header.
func (p *ContainerProvider) scanDemultiplexed(ctx context.Context, r io.Reader, id string, metadata map[string]string, out chan<- coretypes.LogEntry) error {
	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()

	demuxErr := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(stdoutW, stderrW, r)
		stdoutW.CloseWithError(err)
		stderrW.CloseWithError(err)
		demuxErr <- err
	}()

	scanErr := make(chan error, 2)
	go func() { scanErr <- p.scanStream(ctx, stdoutR, "stdout", id, metadata, out) }()
	go func() { scanErr <- p.scanStream(ctx, stderrR, "stderr", id, metadata, out) }()

	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-scanErr; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return firstErr
	}
	if err := <-demuxErr; err != nil && err != io.EOF {
		return fmt.Errorf("demultiplex container logs: %w", err)
	}
	return nil
}

func (p *ContainerProvider) scanStream(ctx context.Context, r io.Reader, stream, id string, base map[string]string, out chan<- coretypes.LogEntry) error {
	metadata := make(map[string]string, len(base)+1)
	for k, v := range base {
		metadata[k] = v
	}
	metadata["stream"] = stream

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		entry := normalizeLine(scanner.Text(), coretypes.SourceContainer, id, p.hostID, metadata)
		select {
		case out <- entry:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil && err != io.ErrClosedPipe {
		return err
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
