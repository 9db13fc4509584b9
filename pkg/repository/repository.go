// Package repository defines the narrow external-store contract the
// connection and streaming plane depends on: hosts, encrypted credential
// blobs, users, and per-host grants. It is deliberately small: the reads
// pkg/connmgr and pkg/permissions name as collaborator contracts, plus the
// create, list and delete calls that maintain that state.
// pkg/repository/boltrepo provides the bbolt-backed reference
// implementation.
package repository

import (
	"context"

	"github.com/cuemby/fleetctl/pkg/coretypes"
	"github.com/cuemby/fleetctl/pkg/permissions"
)

// Repository is the persisted-state contract backing the control plane.
// It satisfies connmgr.HostSource and permissions.GrantSource directly,
// so either component can depend on it without an adapter.
type Repository interface {
	// Hosts
	CreateHost(ctx context.Context, host coretypes.Host) error
	GetHost(ctx context.Context, hostID string) (coretypes.Host, error)
	ListHosts(ctx context.Context) ([]coretypes.Host, error)
	UpdateHost(ctx context.Context, host coretypes.Host) error
	DeleteHost(ctx context.Context, hostID string) error
	MarkUnhealthy(ctx context.Context, hostID string)

	// Credentials (ciphertext only; pkg/credentials owns decryption)
	PutCredential(ctx context.Context, item coretypes.CredentialItem) error
	GetCredentials(ctx context.Context, hostID string) ([]coretypes.CredentialItem, error)
	DeleteCredentials(ctx context.Context, hostID string) error

	// Users
	CreateUser(ctx context.Context, user permissions.User) error
	GetUser(ctx context.Context, userID string) (permissions.User, error)
	ListUsers(ctx context.Context) ([]permissions.User, error)
	DeleteUser(ctx context.Context, userID string) error

	// Grants
	PutGrant(ctx context.Context, grant coretypes.Grant) error
	GrantsForUser(ctx context.Context, userID string) ([]coretypes.Grant, error)
	DeleteGrant(ctx context.Context, userID, hostID string) error
	DefaultHost(ctx context.Context) (hostID string, hasDefault bool, err error)

	Close() error
}
