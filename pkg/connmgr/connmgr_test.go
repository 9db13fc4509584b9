package connmgr

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cuemby/fleetctl/pkg/breaker"
	"github.com/cuemby/fleetctl/pkg/coretypes"
	"github.com/cuemby/fleetctl/pkg/credentials"
	"github.com/cuemby/fleetctl/pkg/permissions"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHosts struct {
	host           coretypes.Host
	creds          []coretypes.CredentialItem
	markedUnhealth []string
}

func (f *fakeHosts) GetHost(ctx context.Context, hostID string) (coretypes.Host, error) {
	return f.host, nil
}

func (f *fakeHosts) GetCredentials(ctx context.Context, hostID string) ([]coretypes.CredentialItem, error) {
	return f.creds, nil
}

func (f *fakeHosts) MarkUnhealthy(ctx context.Context, hostID string) {
	f.markedUnhealth = append(f.markedUnhealth, hostID)
}

type fakePerms struct {
	allow      bool
	err        error
	lastAction permissions.Action
}

func (f *fakePerms) Allow(ctx context.Context, userID string, action permissions.Action, hostID string) (bool, error) {
	f.lastAction = action
	return f.allow, f.err
}

// fakeGrantSource backs a real permissions.Resolver with a single
// viewer-level grant on host-1, to exercise the actual min-role table
// rather than a canned allow/deny.
type fakeGrantSource struct {
	userRole coretypes.Role
	grants   []coretypes.Grant
}

func (f fakeGrantSource) GetUser(ctx context.Context, userID string) (permissions.User, error) {
	return permissions.User{ID: userID, Role: f.userRole}, nil
}

func (f fakeGrantSource) GrantsForUser(ctx context.Context, userID string) ([]coretypes.Grant, error) {
	return f.grants, nil
}

func (f fakeGrantSource) DefaultHost(ctx context.Context) (string, bool, error) {
	return "", false, nil
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

func newTestStore(t *testing.T) *credentials.Store {
	t.Helper()
	s, err := credentials.NewStore(make([]byte, 32))
	require.NoError(t, err)
	return s
}

func TestManager_Get_DeniesWhenPermissionCheckerRefuses(t *testing.T) {
	hosts := &fakeHosts{host: coretypes.Host{ID: "host-1"}}
	dialer := &fakeDialer{handle: &coretypes.EngineHandle{HostID: "host-1"}}
	mgr := New(hosts, newTestStore(t), dialer, breaker.NewManager(breaker.DefaultConfig()), &fakePerms{allow: false}, zerolog.Nop(), Config{})

	_, err := mgr.Get(context.Background(), "host-1", "user-1", "list")

	require.Error(t, err)
	assert.Equal(t, 0, dialer.calls, "a denied permission check must never reach the dialer")
}

func TestManager_Get_ForwardsTheRequestedActionNotAHardcodedStandIn(t *testing.T) {
	hosts := &fakeHosts{host: coretypes.Host{ID: "host-1"}}
	dialer := &fakeDialer{handle: &coretypes.EngineHandle{HostID: "host-1"}}
	perms := &fakePerms{allow: true}
	mgr := New(hosts, newTestStore(t), dialer, breaker.NewManager(breaker.DefaultConfig()), perms, zerolog.Nop(), Config{HealthCheckInterval: time.Hour})

	_, err := mgr.Get(context.Background(), "host-1", "user-1", "remove")

	require.NoError(t, err)
	assert.Equal(t, permissions.Action("remove"), perms.lastAction)
}

func TestManager_Get_ViewerGrantMayListButNotStart(t *testing.T) {
	hosts := &fakeHosts{host: coretypes.Host{ID: "host-1"}}
	dialer := &fakeDialer{handle: &coretypes.EngineHandle{HostID: "host-1"}}
	source := fakeGrantSource{
		userRole: coretypes.RoleViewer,
		grants:   []coretypes.Grant{{UserID: "user-1", HostID: "host-1", Level: coretypes.RoleViewer}},
	}
	resolver := permissions.NewResolver(source, time.Minute)
	mgr := New(hosts, newTestStore(t), dialer, breaker.NewManager(breaker.DefaultConfig()), resolver, zerolog.Nop(), Config{HealthCheckInterval: time.Hour})

	_, err := mgr.Get(context.Background(), "host-1", "user-1", "start")
	require.Error(t, err, "a viewer grant must not be sufficient to start a container")
	assert.Equal(t, 0, dialer.calls)

	_, err = mgr.Get(context.Background(), "host-1", "user-1", "list")
	require.NoError(t, err, "a viewer grant must still be sufficient to list")
}

func TestManager_Get_PropagatesPermissionCheckError(t *testing.T) {
	hosts := &fakeHosts{host: coretypes.Host{ID: "host-1"}}
	dialer := &fakeDialer{handle: &coretypes.EngineHandle{HostID: "host-1"}}
	mgr := New(hosts, newTestStore(t), dialer, breaker.NewManager(breaker.DefaultConfig()), &fakePerms{err: errors.New("boom")}, zerolog.Nop(), Config{})

	_, err := mgr.Get(context.Background(), "host-1", "user-1", "list")

	require.Error(t, err)
}

func TestManager_Get_CreatesAndCachesHandle(t *testing.T) {
	hosts := &fakeHosts{host: coretypes.Host{ID: "host-1"}}
	dialer := &fakeDialer{handle: &coretypes.EngineHandle{HostID: "host-1", LastHealthOKAt: time.Now()}}
	mgr := New(hosts, newTestStore(t), dialer, breaker.NewManager(breaker.DefaultConfig()), &fakePerms{allow: true}, zerolog.Nop(), Config{HealthCheckInterval: time.Hour})

	h1, err := mgr.Get(context.Background(), "host-1", "user-1", "list")
	require.NoError(t, err)
	assert.Equal(t, hosts.host.ID, h1.HostID)

	h2, err := mgr.Get(context.Background(), "host-1", "user-1", "list")
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Equal(t, 1, dialer.calls, "second Get should reuse the cached handle, not re-dial")
}

func TestManager_GetUnchecked_SkipsPermissionChecker(t *testing.T) {
	hosts := &fakeHosts{host: coretypes.Host{ID: "host-1"}}
	dialer := &fakeDialer{handle: &coretypes.EngineHandle{HostID: "host-1"}}
	mgr := New(hosts, newTestStore(t), dialer, breaker.NewManager(breaker.DefaultConfig()), &fakePerms{allow: false}, zerolog.Nop(), Config{HealthCheckInterval: time.Hour})

	h, err := mgr.GetUnchecked(context.Background(), "host-1")

	require.NoError(t, err)
	assert.Equal(t, "host-1", h.HostID)
}

func TestManager_Get_PropagatesDialFailure(t *testing.T) {
	hosts := &fakeHosts{host: coretypes.Host{ID: "host-1"}}
	dialer := &fakeDialer{err: errors.New("connection refused")}
	mgr := New(hosts, newTestStore(t), dialer, breaker.NewManager(breaker.DefaultConfig()), &fakePerms{allow: true}, zerolog.Nop(), Config{})

	_, err := mgr.Get(context.Background(), "host-1", "user-1", "list")

	require.Error(t, err)
}

func TestManager_ActiveCount_CountsOnlyLiveHandles(t *testing.T) {
	hosts := &fakeHosts{host: coretypes.Host{ID: "host-1"}}
	dialer := &fakeDialer{handle: &coretypes.EngineHandle{HostID: "host-1"}}
	mgr := New(hosts, newTestStore(t), dialer, breaker.NewManager(breaker.DefaultConfig()), &fakePerms{allow: true}, zerolog.Nop(), Config{HealthCheckInterval: time.Hour})

	assert.Equal(t, 0, mgr.ActiveCount())

	_, err := mgr.Get(context.Background(), "host-1", "user-1", "list")
	require.NoError(t, err)
	assert.Equal(t, 1, mgr.ActiveCount())

	mgr.Close("host-1")
	assert.Equal(t, 0, mgr.ActiveCount())
}

func TestManager_Close_OnUnknownHostIsNoop(t *testing.T) {
	mgr := New(&fakeHosts{}, newTestStore(t), &fakeDialer{}, breaker.NewManager(breaker.DefaultConfig()), nil, zerolog.Nop(), Config{})
	assert.NotPanics(t, func() { mgr.Close("nonexistent") })
}
