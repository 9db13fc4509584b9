// Package execmediator is the Exec Session Mediator: it turns a caller's
// bidirectional byte channel into a Docker exec session, forwarding raw
// terminal bytes verbatim and interpreting textual JSON control messages
// (currently just resize) out of band. Operator-level permission is
// enforced by the caller before a Session is ever opened.
package execmediator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/cuemby/fleetctl/pkg/coretypes"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"golang.org/x/sync/errgroup"
)

// shellProbes is the fixed fallback command list used when a caller does
// not specify one; the first entry is preferred.
var shellProbes = [][]string{
	{"/bin/bash"},
	{"/bin/sh"},
	{"bash"},
	{"sh"},
}

// InFrame is one message arriving from the caller.
type InFrame struct {
	// Binary carries raw terminal bytes, forwarded to the engine verbatim.
	// Set exactly one of Binary or Text.
	Binary []byte
	Text   []byte
}

// controlMessage is the shape of a recognized textual control frame.
type controlMessage struct {
	Type string `json:"type"`
	Rows uint   `json:"rows"`
	Cols uint   `json:"cols"`
}

// OutFrame is one message delivered to the caller: raw bytes read back
// from the engine's exec socket.
type OutFrame struct {
	Data []byte
	Err  error
}

// Mediator creates and runs exec sessions against engine handles.
type Mediator struct{}

// New builds a Mediator. It holds no state; every call is parametric over
// the engine client supplied by the Connection Manager.
func New() *Mediator { return &Mediator{} }

// Run creates an exec session for req, starts it, and pumps bytes between
// the engine and the caller's in/out channels until either side closes or
// ctx is cancelled. It returns once the session has fully torn down.
func (m *Mediator) Run(ctx context.Context, cli *client.Client, req coretypes.ExecRequest, in <-chan InFrame, out chan<- OutFrame) error {
	defer close(out)

	cmd := req.Command
	if len(cmd) == 0 {
		cmd = detectShell(ctx, cli, req.ResourceID)
	}

	execCfg := container.ExecOptions{
		Cmd:          cmd,
		WorkingDir:   req.WorkDir,
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
		Tty:          true,
	}
	created, err := cli.ContainerExecCreate(ctx, req.ResourceID, execCfg)
	if err != nil {
		return err
	}

	attached, err := cli.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{Tty: true})
	if err != nil {
		return err
	}
	defer attached.Close()

	if req.Size.Rows > 0 && req.Size.Cols > 0 {
		_ = cli.ContainerExecResize(ctx, created.ID, container.ResizeOptions{Height: req.Size.Rows, Width: req.Size.Cols})
	}

	// A bare newline nudges the shell into printing its prompt immediately
	// rather than waiting for the caller's first keystroke.
	_, _ = attached.Conn.Write([]byte("\n"))

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(sessionCtx)

	g.Go(func() error {
		return pumpFromEngine(gctx, attached.Reader, out)
	})
	g.Go(func() error {
		return pumpFromCaller(gctx, cli, created.ID, attached, in)
	})

	err = g.Wait()
	cancel()
	return err
}

// pumpFromEngine reads raw bytes off the engine's exec socket and forwards
// them to the caller until EOF, error, or cancellation.
func pumpFromEngine(ctx context.Context, r io.Reader, out chan<- OutFrame) error {
	buf := make([]byte, 32*1024)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := r.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case out <- OutFrame{Data: data}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			select {
			case out <- OutFrame{Err: err}:
			case <-ctx.Done():
			}
			return err
		}
	}
}

// pumpFromCaller reads frames from the caller, forwarding binary frames
// verbatim and dispatching recognized textual control messages.
// Unrecognized text is forwarded as if it were binary, matching the
// permissive behavior of a raw terminal.
func pumpFromCaller(ctx context.Context, cli *client.Client, execID string, attached container.HijackedResponse, in <-chan InFrame) error {
	for {
		select {
		case frame, ok := <-in:
			if !ok {
				return nil
			}
			if err := handleInFrame(ctx, cli, execID, attached, frame); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func handleInFrame(ctx context.Context, cli *client.Client, execID string, attached container.HijackedResponse, frame InFrame) error {
	if frame.Binary != nil {
		_, err := attached.Conn.Write(frame.Binary)
		return err
	}

	ctrl, recognized := parseControlMessage(frame.Text)
	if !recognized {
		_, err := attached.Conn.Write(frame.Text)
		return err
	}

	switch ctrl.Type {
	case "resize":
		return cli.ContainerExecResize(ctx, execID, container.ResizeOptions{Height: ctrl.Rows, Width: ctrl.Cols})
	default:
		_, err := attached.Conn.Write(frame.Text)
		return err
	}
}

// parseControlMessage attempts to decode text as a JSON control message.
// Unparseable or type-less text is not recognized, so the caller forwards
// it verbatim as if it had been a binary frame.
func parseControlMessage(text []byte) (controlMessage, bool) {
	var ctrl controlMessage
	if err := json.Unmarshal(bytes.TrimSpace(text), &ctrl); err != nil || ctrl.Type == "" {
		return controlMessage{}, false
	}
	return ctrl, true
}

// detectShell probes a fixed list of shells, in order, running a throwaway
// exec ("command -v <shell>") in the target container and returning the
// first one that resolves. Falls back to the last candidate if none can
// be confirmed, letting the real exec surface a "not found" error.
func detectShell(ctx context.Context, cli *client.Client, containerID string) []string {
	for _, candidate := range shellProbes {
		created, err := cli.ContainerExecCreate(ctx, containerID, container.ExecOptions{
			Cmd:          []string{"command", "-v", candidate[0]},
			AttachStdout: true,
			AttachStderr: true,
		})
		if err != nil {
			continue
		}
		if err := cli.ContainerExecStart(ctx, created.ID, container.ExecStartOptions{}); err != nil {
			continue
		}
		inspect, err := cli.ContainerExecInspect(ctx, created.ID)
		if err != nil {
			continue
		}
		if inspect.ExitCode == 0 {
			return candidate
		}
	}
	return shellProbes[len(shellProbes)-1]
}
