// Package logsource adapts an engine's native log and stats streams into
// the normalized entry sequence the Stream Multiplexer broadcasts.
// Container and swarm-service resources each get their own Provider; both
// share the line-parsing and level-detection logic in parse.go.
package logsource

import (
	"context"

	"github.com/cuemby/fleetctl/pkg/coretypes"
)

// Provider opens and describes a single source-typed stream.
type Provider interface {
	SourceType() coretypes.SourceType

	// GetMetadata fetches descriptive info about id without opening a
	// stream (used for access checks and UI display).
	GetMetadata(ctx context.Context, id string) (map[string]string, error)

	// Stream opens the engine's native stream for id and pushes normalized
	// entries onto out until the context is cancelled or the stream ends
	// (when opts.Follow is false). out is never closed by the caller.
	Stream(ctx context.Context, id string, opts coretypes.StreamOptions, out chan<- coretypes.LogEntry) error

	// ValidateAccess reports whether id exists and is reachable through
	// this provider, independent of permission checks.
	ValidateAccess(ctx context.Context, id string) (bool, error)
}
