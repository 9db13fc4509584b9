package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/cuemby/fleetctl/pkg/breaker"
	"github.com/cuemby/fleetctl/pkg/corerr"
	"github.com/cuemby/fleetctl/pkg/coretypes"
	"github.com/cuemby/fleetctl/pkg/permissions"
	"github.com/docker/docker/api/types/swarm"
	"github.com/docker/docker/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateEngineErr_ClassifiesByKind(t *testing.T) {
	assert.Equal(t, corerr.KindNotFound, corerr.KindOf(translateEngineErr("op", errdefs.NotFound(errors.New("gone")))))
	assert.Equal(t, corerr.KindConflict, corerr.KindOf(translateEngineErr("op", errdefs.Conflict(errors.New("busy")))))
	assert.Equal(t, corerr.KindValidation, corerr.KindOf(translateEngineErr("op", errdefs.InvalidParameter(errors.New("bad")))))
	assert.Equal(t, corerr.KindForbidden, corerr.KindOf(translateEngineErr("op", errdefs.Forbidden(errors.New("nope")))))
	assert.Equal(t, corerr.KindEngine, corerr.KindOf(translateEngineErr("op", errors.New("unclassified"))))
	assert.Nil(t, translateEngineErr("op", nil))
}

func TestServiceSummary_NormalizesReplicatedMode(t *testing.T) {
	replicas := uint64(3)
	s := swarm.Service{
		ID: "svc1",
		Spec: swarm.ServiceSpec{
			Annotations: swarm.Annotations{Name: "web", Labels: map[string]string{"env": "prod"}},
			TaskTemplate: swarm.TaskSpec{
				ContainerSpec: &swarm.ContainerSpec{Image: "nginx:latest"},
			},
			Mode: swarm.ServiceMode{Replicated: &swarm.ReplicatedService{Replicas: &replicas}},
		},
	}

	sum := serviceSummary("host-1", s)
	assert.Equal(t, "host-1", sum.HostID)
	assert.Equal(t, "svc1", sum.ID)
	assert.Equal(t, "web", sum.Name)
	assert.Equal(t, "nginx:latest", sum.Image)
	assert.Equal(t, uint64(3), sum.Replicas)
	assert.Equal(t, "prod", sum.Labels["env"])
}

func TestServiceSummary_GlobalModeHasZeroReplicas(t *testing.T) {
	s := swarm.Service{
		ID:   "svc2",
		Spec: swarm.ServiceSpec{Annotations: swarm.Annotations{Name: "agent"}, Mode: swarm.ServiceMode{Global: &swarm.GlobalService{}}},
	}
	sum := serviceSummary("host-1", s)
	assert.Equal(t, uint64(0), sum.Replicas)
}

func TestNodeRole(t *testing.T) {
	assert.Equal(t, coretypes.SwarmRoleManager, nodeRole(swarm.NodeRoleManager))
	assert.Equal(t, coretypes.SwarmRoleWorker, nodeRole(swarm.NodeRoleWorker))
}

type fakeDialer struct {
	handle *coretypes.EngineHandle
	err    error
	calls  int
}

func (f *fakeDialer) Dial(ctx context.Context, host coretypes.Host, creds map[coretypes.CredentialKind]coretypes.SecretBytes) (*coretypes.EngineHandle, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.handle, nil
}

type fakeConns struct{}

func (fakeConns) Get(ctx context.Context, hostID, userID string, action permissions.Action) (*coretypes.EngineHandle, error) {
	return nil, errors.New("not used by TestConnection")
}

func (fakeConns) GetUnchecked(ctx context.Context, hostID string) (*coretypes.EngineHandle, error) {
	return nil, errors.New("not used by TestConnection")
}

// actionRecordingConns captures the action each Get call was made with, so
// tests can assert the executor forwards the real operation name instead of
// a hardcoded stand-in.
type actionRecordingConns struct {
	handle     *coretypes.EngineHandle
	allow      map[permissions.Action]bool
	lastAction permissions.Action
}

func (c *actionRecordingConns) Get(ctx context.Context, hostID, userID string, action permissions.Action) (*coretypes.EngineHandle, error) {
	c.lastAction = action
	if !c.allow[action] {
		return nil, corerr.Forbidden("connmgr.Get", "denied")
	}
	return c.handle, nil
}

func (c *actionRecordingConns) GetUnchecked(ctx context.Context, hostID string) (*coretypes.EngineHandle, error) {
	return c.handle, nil
}

func TestExecutor_StartContainer_DeniesViewerLevelGrant(t *testing.T) {
	conns := &actionRecordingConns{
		handle: &coretypes.EngineHandle{HostID: "host-1"},
		allow:  map[permissions.Action]bool{"list": true, "inspect": true},
	}
	e := New(conns, &fakeDialer{}, breaker.NewManager(breaker.DefaultConfig()), nil, nil, nil)

	err := e.StartContainer(context.Background(), "host-1", "viewer-user", "container-1")

	require.Error(t, err)
	assert.Equal(t, permissions.Action("start"), conns.lastAction, "StartContainer must check the real action, not a hardcoded stand-in")

	_, listErr := e.ListContainers(context.Background(), "host-1", "viewer-user", false)
	require.Error(t, listErr, "actionRecordingConns' handle has no docker client bound, but the permission check itself must have passed")
	assert.NotEqual(t, corerr.KindForbidden, corerr.KindOf(listErr), "a viewer-level grant must still be allowed to list")
}

func TestExecutor_TestConnection_SucceedsWithoutRegisteringAHandle(t *testing.T) {
	dialer := &fakeDialer{handle: &coretypes.EngineHandle{HostID: "host-1"}}
	e := New(fakeConns{}, dialer, breaker.NewManager(breaker.DefaultConfig()), nil, nil, nil)

	err := e.TestConnection(context.Background(), coretypes.Host{ID: "host-1"}, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, dialer.calls)
}

func TestExecutor_TestConnection_PropagatesDialFailure(t *testing.T) {
	dialErr := errors.New("connection refused")
	dialer := &fakeDialer{err: dialErr}
	e := New(fakeConns{}, dialer, breaker.NewManager(breaker.DefaultConfig()), nil, nil, nil)

	err := e.TestConnection(context.Background(), coretypes.Host{ID: "host-2"}, nil)

	require.Error(t, err)
}

func TestExecutor_TestConnection_FailsFastOnUnreachableTCPHost(t *testing.T) {
	dialer := &fakeDialer{handle: &coretypes.EngineHandle{HostID: "host-3"}}
	e := New(fakeConns{}, dialer, breaker.NewManager(breaker.DefaultConfig()), nil, nil, nil)

	host := coretypes.Host{ID: "host-3", Kind: coretypes.ConnectionTCPTLS, Endpoint: "127.0.0.1:1"}
	err := e.TestConnection(context.Background(), host, nil)

	require.Error(t, err)
	assert.Equal(t, corerr.KindTransport, corerr.KindOf(err))
	assert.Equal(t, 0, dialer.calls, "dialer should not be invoked once the reachability pre-check fails")
}
