package logsource

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/cuemby/fleetctl/pkg/corerr"
	"github.com/cuemby/fleetctl/pkg/coretypes"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// ServiceProvider streams and describes logs for a swarm service, tagging
// each entry with the task that produced it.
type ServiceProvider struct {
	cli    *client.Client
	hostID string
}

// NewServiceProvider builds a Provider bound to one engine handle.
func NewServiceProvider(cli *client.Client, hostID string) *ServiceProvider {
	return &ServiceProvider{cli: cli, hostID: hostID}
}

func (p *ServiceProvider) SourceType() coretypes.SourceType { return coretypes.SourceSwarmService }

func (p *ServiceProvider) GetMetadata(ctx context.Context, id string) (map[string]string, error) {
	svc, _, err := p.cli.ServiceInspectWithRaw(ctx, id, swarmInspectOptions())
	if err != nil {
		return nil, corerr.Wrap(corerr.KindEngine, "logsource.ServiceProvider.GetMetadata", err)
	}
	return map[string]string{
		"service_id":   id,
		"service_name": svc.Spec.Name,
	}, nil
}

func (p *ServiceProvider) ValidateAccess(ctx context.Context, id string) (bool, error) {
	_, _, err := p.cli.ServiceInspectWithRaw(ctx, id, swarmInspectOptions())
	if err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, corerr.Wrap(corerr.KindEngine, "logsource.ServiceProvider.ValidateAccess", err)
	}
	return true, nil
}

func (p *ServiceProvider) Stream(ctx context.Context, id string, opts coretypes.StreamOptions, out chan<- coretypes.LogEntry) error {
	svc, _, err := p.cli.ServiceInspectWithRaw(ctx, id, swarmInspectOptions())
	if err != nil {
		return corerr.Wrap(corerr.KindEngine, "logsource.ServiceProvider.Stream", err)
	}

	logOpts := container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     opts.Follow,
		Timestamps: true,
		Details:    true,
		Since:      sinceString(opts.Since),
		Until:      untilString(opts.Until),
	}
	if opts.Tail > 0 {
		logOpts.Tail = strconv.Itoa(opts.Tail)
	}

	body, err := p.cli.ServiceLogs(ctx, id, logOpts)
	if err != nil {
		return corerr.Wrap(corerr.KindEngine, "logsource.ServiceProvider.Stream", err)
	}
	defer body.Close()

	baseMetadata := map[string]string{
		"service_id":   id,
		"service_name": svc.Spec.Name,
	}

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()

	demuxErr := make(chan error, 1)
	go func() {
		_, demErr := stdcopy.StdCopy(stdoutW, stderrW, body)
		stdoutW.CloseWithError(demErr)
		stderrW.CloseWithError(demErr)
		demuxErr <- demErr
	}()

	scanErr := make(chan error, 2)
	go func() { scanErr <- p.scanStream(ctx, stdoutR, "stdout", id, baseMetadata, out) }()
	go func() { scanErr <- p.scanStream(ctx, stderrR, "stderr", id, baseMetadata, out) }()

	var firstErr error
	for i := 0; i < 2; i++ {
		if scanE := <-scanErr; scanE != nil && firstErr == nil {
			firstErr = scanE
		}
	}
	if firstErr != nil {
		return firstErr
	}
	if demErr := <-demuxErr; demErr != nil && demErr != io.EOF {
		return corerr.Wrap(corerr.KindStream, "logsource.ServiceProvider.Stream", demErr)
	}
	return nil
}

// scanStream reads one demultiplexed half of a service log stream. The
// engine prefixes each line with "<task> | <message>" when Details is
// requested; we split that off into the task tag rather than leaving it
// embedded in the message text.
func (p *ServiceProvider) scanStream(ctx context.Context, r io.Reader, stream, serviceID string, base map[string]string, out chan<- coretypes.LogEntry) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := scanner.Text()
		task, rest := splitTaskTag(line)

		metadata := make(map[string]string, len(base)+2)
		for k, v := range base {
			metadata[k] = v
		}
		metadata["stream"] = stream
		if task != "" {
			metadata["task"] = task
		}

		entry := normalizeLine(rest, coretypes.SourceSwarmService, serviceID, p.hostID, metadata)
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

// splitTaskTag splits a "task | message" line. If no separator is found
// the whole line is returned as the message with an empty task tag.
func splitTaskTag(line string) (task, message string) {
	if idx := strings.Index(line, " | "); idx >= 0 {
		return strings.TrimSpace(line[:idx]), line[idx+3:]
	}
	return "", line
}
