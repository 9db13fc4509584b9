package boltrepo

import (
	"context"
	"testing"

	"github.com/cuemby/fleetctl/pkg/corerr"
	"github.com/cuemby/fleetctl/pkg/coretypes"
	"github.com/cuemby/fleetctl/pkg/permissions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_HostRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	host := coretypes.Host{ID: "host-1", Name: "prod-1", Kind: coretypes.ConnectionTCPTLS, Default: true}
	require.NoError(t, s.CreateHost(ctx, host))

	got, err := s.GetHost(ctx, "host-1")
	require.NoError(t, err)
	assert.Equal(t, host, got)

	id, ok, err := s.DefaultHost(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "host-1", id)
}

func TestStore_GetHost_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetHost(context.Background(), "missing")
	assert.Equal(t, corerr.KindNotFound, corerr.KindOf(err))
}

func TestStore_MarkUnhealthy(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateHost(ctx, coretypes.Host{ID: "host-1", Health: coretypes.HealthHealthy}))

	s.MarkUnhealthy(ctx, "host-1")

	got, err := s.GetHost(ctx, "host-1")
	require.NoError(t, err)
	assert.Equal(t, coretypes.HealthUnhealthy, got.Health)
}

func TestStore_CredentialsScopedByHost(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutCredential(ctx, coretypes.CredentialItem{HostID: "host-1", Kind: coretypes.CredentialTLSCA, EncryptedBlob: []byte("a")}))
	require.NoError(t, s.PutCredential(ctx, coretypes.CredentialItem{HostID: "host-1", Kind: coretypes.CredentialTLSKey, EncryptedBlob: []byte("b")}))
	require.NoError(t, s.PutCredential(ctx, coretypes.CredentialItem{HostID: "host-2", Kind: coretypes.CredentialTLSCA, EncryptedBlob: []byte("c")}))

	items, err := s.GetCredentials(ctx, "host-1")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	require.NoError(t, s.DeleteCredentials(ctx, "host-1"))
	items, err = s.GetCredentials(ctx, "host-1")
	require.NoError(t, err)
	assert.Empty(t, items)

	items, err = s.GetCredentials(ctx, "host-2")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestStore_GrantsScopedByUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutGrant(ctx, coretypes.Grant{UserID: "u1", HostID: "host-1", Level: coretypes.RoleOperator}))
	require.NoError(t, s.PutGrant(ctx, coretypes.Grant{UserID: "u1", HostID: "host-2", Level: coretypes.RoleViewer}))
	require.NoError(t, s.PutGrant(ctx, coretypes.Grant{UserID: "u2", HostID: "host-1", Level: coretypes.RoleAdmin}))

	grants, err := s.GrantsForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, grants, 2)

	require.NoError(t, s.DeleteGrant(ctx, "u1", "host-1"))
	grants, err = s.GrantsForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, grants, 1)
	assert.Equal(t, "host-2", grants[0].HostID)
}

func TestStore_UserRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, permissions.User{ID: "u1", Role: coretypes.RoleAdmin}))
	got, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, coretypes.RoleAdmin, got.Role)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	require.NoError(t, s.DeleteUser(ctx, "u1"))
	_, err = s.GetUser(ctx, "u1")
	assert.Error(t, err)
}
