package permissions

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/fleetctl/pkg/coretypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	users         map[string]User
	grants        map[string][]coretypes.Grant
	defaultHostID string
	hasDefault    bool
}

func (f *fakeSource) GetUser(ctx context.Context, userID string) (User, error) {
	u, ok := f.users[userID]
	if !ok {
		return User{}, assertErr("no such user")
	}
	return u, nil
}

func (f *fakeSource) GrantsForUser(ctx context.Context, userID string) ([]coretypes.Grant, error) {
	return f.grants[userID], nil
}

func (f *fakeSource) DefaultHost(ctx context.Context) (string, bool, error) {
	return f.defaultHostID, f.hasDefault, nil
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestResolver_GlobalAdminAllowsEverything(t *testing.T) {
	src := &fakeSource{users: map[string]User{"u1": {ID: "u1", Role: coretypes.RoleAdmin}}}
	r := NewResolver(src, time.Minute)

	allow, err := r.Allow(context.Background(), "u1", "host.edit", "h1")
	require.NoError(t, err)
	assert.True(t, allow)
}

func TestResolver_ViewerCannotMutate(t *testing.T) {
	src := &fakeSource{
		users:  map[string]User{"u1": {ID: "u1", Role: coretypes.RoleViewer}},
		grants: map[string][]coretypes.Grant{"u1": {{UserID: "u1", HostID: "h1", Level: coretypes.RoleViewer}}},
	}
	r := NewResolver(src, time.Minute)

	allow, err := r.Allow(context.Background(), "u1", "start", "h1")
	require.NoError(t, err)
	assert.False(t, allow)

	allow, err = r.Allow(context.Background(), "u1", "list", "h1")
	require.NoError(t, err)
	assert.True(t, allow)
}

func TestResolver_OperatorCanMutateGrantedHostOnly(t *testing.T) {
	src := &fakeSource{
		users:  map[string]User{"u1": {ID: "u1", Role: coretypes.RoleViewer}},
		grants: map[string][]coretypes.Grant{"u1": {{UserID: "u1", HostID: "h1", Level: coretypes.RoleOperator}}},
	}
	r := NewResolver(src, time.Minute)

	allow, err := r.Allow(context.Background(), "u1", "start", "h1")
	require.NoError(t, err)
	assert.True(t, allow)

	allow, err = r.Allow(context.Background(), "u1", "start", "h2")
	require.NoError(t, err)
	assert.False(t, allow)
}

func TestResolver_DefaultHostResolution(t *testing.T) {
	src := &fakeSource{
		users: map[string]User{"u1": {ID: "u1", Role: coretypes.RoleViewer}},
		grants: map[string][]coretypes.Grant{"u1": {
			{UserID: "u1", HostID: "h1", Level: coretypes.RoleViewer},
			{UserID: "u1", HostID: "h2", Level: coretypes.RoleViewer},
		}},
		defaultHostID: "h2",
		hasDefault:    true,
	}
	r := NewResolver(src, time.Minute)

	allow, err := r.Allow(context.Background(), "u1", "list", "")
	require.NoError(t, err)
	assert.True(t, allow)
}

func TestResolver_NoGrantsMeansNoHost(t *testing.T) {
	src := &fakeSource{users: map[string]User{"u1": {ID: "u1", Role: coretypes.RoleViewer}}}
	r := NewResolver(src, time.Minute)

	allow, err := r.Allow(context.Background(), "u1", "list", "")
	require.NoError(t, err)
	assert.False(t, allow)
}

func TestResolver_InvalidateClearsCache(t *testing.T) {
	src := &fakeSource{
		users:  map[string]User{"u1": {ID: "u1", Role: coretypes.RoleViewer}},
		grants: map[string][]coretypes.Grant{"u1": {{UserID: "u1", HostID: "h1", Level: coretypes.RoleViewer}}},
	}
	r := NewResolver(src, time.Hour)

	allow, _ := r.Allow(context.Background(), "u1", "start", "h1")
	assert.False(t, allow)

	src.grants["u1"] = []coretypes.Grant{{UserID: "u1", HostID: "h1", Level: coretypes.RoleOperator}}
	r.Invalidate("u1")

	allow, _ = r.Allow(context.Background(), "u1", "start", "h1")
	assert.True(t, allow)
}
