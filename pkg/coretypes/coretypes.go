// Package coretypes holds the data model shared by every component of the
// host connection and streaming plane: hosts, credentials, grants, engine
// handles, breaker state, and the normalized shapes that flow through the
// stream multiplexer and exec mediator.
package coretypes

import (
	"io"
	"time"
)

// ConnectionKind identifies the transport used to reach an engine.
type ConnectionKind string

const (
	ConnectionUnixSocket ConnectionKind = "unix_socket"
	ConnectionTCPPlain   ConnectionKind = "tcp_plain"
	ConnectionTCPTLS     ConnectionKind = "tcp_tls"
	ConnectionSSH        ConnectionKind = "ssh"
)

// SwarmRole is the observed role of a host within a swarm cluster.
type SwarmRole string

const (
	SwarmRoleStandalone SwarmRole = "standalone"
	SwarmRoleManager    SwarmRole = "manager"
	SwarmRoleWorker     SwarmRole = "worker"
)

// HealthStatus is the last observed reachability of a host.
type HealthStatus string

const (
	HealthUnknown   HealthStatus = "unknown"
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// Host is the externally owned record describing how to reach an engine.
// The core never persists this; it is read through pkg/repository.
type Host struct {
	ID            string
	Name          string
	Kind          ConnectionKind
	Endpoint      string
	Active        bool
	Default       bool
	Health        HealthStatus
	EngineVersion string
	ClusterID     string
	Role          SwarmRole
	IsLeader      bool
}

// CredentialKind enumerates the pieces of secret material a host may carry.
type CredentialKind string

const (
	CredentialTLSCA          CredentialKind = "tls_ca"
	CredentialTLSCert        CredentialKind = "tls_cert"
	CredentialTLSKey         CredentialKind = "tls_key"
	CredentialSSHPrivateKey  CredentialKind = "ssh_private_key"
	CredentialSSHPassphrase  CredentialKind = "ssh_passphrase"
	CredentialSSHPassword    CredentialKind = "ssh_password"
	CredentialSSHUser        CredentialKind = "ssh_user"
	CredentialSSHKnownHosts  CredentialKind = "ssh_known_hosts"
)

// CredentialItem is a single encrypted-at-rest secret belonging to a host.
type CredentialItem struct {
	HostID         string
	Kind           CredentialKind
	EncryptedBlob  []byte
}

// SecretBytes wraps decrypted credential material so that interpolating it
// into a log line prints "[redacted]" rather than the plaintext; callers
// must call Bytes() explicitly to reach the plaintext.
type SecretBytes struct {
	b []byte
}

// NewSecretBytes wraps plaintext bytes.
func NewSecretBytes(b []byte) SecretBytes { return SecretBytes{b: b} }

// Bytes returns the wrapped plaintext. Callers must not log or persist it.
func (s SecretBytes) Bytes() []byte { return s.b }

// Len reports the plaintext length without exposing it.
func (s SecretBytes) Len() int { return len(s.b) }

// String deliberately redacts; SecretBytes must never leak into logs.
func (s SecretBytes) String() string { return "[redacted]" }

// Role is a user's global role, independent of any host grant.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// Level returns a role's numeric rank for comparison against a host grant.
func (r Role) Level() int {
	switch r {
	case RoleViewer:
		return 1
	case RoleOperator:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}

// Grant is a per-host permission level for a user.
type Grant struct {
	UserID  string
	HostID  string
	Level   Role
}

// EngineHandle is the live, pooled connection to one engine. It is owned
// exclusively by the Connection Manager.
type EngineHandle struct {
	HostID         string
	Client         any // *docker/docker/client.Client, kept generic to avoid an import cycle
	CreatedAt      time.Time
	LastHealthOKAt time.Time
	TransportChild io.Closer
}

// LogLevel is the normalized severity of a log entry.
type LogLevel string

const (
	LevelDebug    LogLevel = "debug"
	LevelInfo     LogLevel = "info"
	LevelWarning  LogLevel = "warning"
	LevelError    LogLevel = "error"
	LevelCritical LogLevel = "critical"
	LevelUnknown  LogLevel = "unknown"
)

// SourceType identifies what kind of resource a stream or log entry belongs to.
type SourceType string

const (
	SourceContainer      SourceType = "container"
	SourceSwarmService   SourceType = "swarm_service"
	SourceContainerStats SourceType = "container_stats"
)

// LogEntry is a normalized, source-agnostic log line.
type LogEntry struct {
	Timestamp time.Time
	Source    SourceType
	SourceID  string
	HostID    string
	Level     LogLevel
	Message   string
	Metadata  map[string]string
	Raw       string
}

// StreamKey identifies one multiplexed upstream.
type StreamKey struct {
	Source     SourceType
	ResourceID string
}

// StreamOptions controls how a Source Provider opens its native stream.
type StreamOptions struct {
	Follow     bool
	Tail       int
	Since      time.Time
	Until      time.Time
	Timestamps bool
}

// ExecSize is a terminal geometry in rows/columns.
type ExecSize struct {
	Rows uint
	Cols uint
}

// ExecRequest describes the session an Exec Session Mediator sets up.
type ExecRequest struct {
	HostID     string
	ResourceID string
	Command    []string
	WorkDir    string
	Size       ExecSize
}
