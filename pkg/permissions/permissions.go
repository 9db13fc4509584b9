// Package permissions answers "may user U perform action A against host H"
// and resolves a caller's default host, combining a global role with
// per-host grants. Results are cached for a bounded TTL and invalidated
// whenever a grant changes, mirroring the role+grant model the control
// plane's original permission_service.py implements.
package permissions

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/fleetctl/pkg/corerr"
	"github.com/cuemby/fleetctl/pkg/coretypes"
)

// Action is an operation name as listed in the min-role table.
type Action string

// minLevel is the fixed action -> minimum grant level mapping from the
// permission→min-role table: read ops need viewer, mutations need
// operator, host/grant/swarm-lifecycle/system-prune edits need admin.
var minLevel = map[Action]coretypes.Role{
	"list":    coretypes.RoleViewer,
	"get":     coretypes.RoleViewer,
	"inspect": coretypes.RoleViewer,
	"logs":    coretypes.RoleViewer,
	"stats":   coretypes.RoleViewer,
	"events":  coretypes.RoleViewer,
	"info":    coretypes.RoleViewer,

	"start":   coretypes.RoleOperator,
	"stop":    coretypes.RoleOperator,
	"restart": coretypes.RoleOperator,
	"create":  coretypes.RoleOperator,
	"remove":  coretypes.RoleOperator,
	"exec":    coretypes.RoleOperator,
	"scale":   coretypes.RoleOperator,
	"update":  coretypes.RoleOperator,
	"prune":   coretypes.RoleOperator,

	"host.edit":        coretypes.RoleAdmin,
	"grant.edit":       coretypes.RoleAdmin,
	"swarm.init":       coretypes.RoleAdmin,
	"swarm.join":       coretypes.RoleAdmin,
	"swarm.leave":      coretypes.RoleAdmin,
	"system.prune":     coretypes.RoleAdmin,
	"test_connection":  coretypes.RoleOperator,
}

// MinLevel returns the minimum grant level required for action, defaulting
// to admin for any action not in the fixed table (fail closed).
func MinLevel(action Action) coretypes.Role {
	if lvl, ok := minLevel[action]; ok {
		return lvl
	}
	return coretypes.RoleAdmin
}

// User is the subset of a user record the resolver needs.
type User struct {
	ID   string
	Role coretypes.Role
}

// GrantSource reads the current role/grant state. It is the narrow
// collaborator contract to whatever owns user and grant persistence.
type GrantSource interface {
	GetUser(ctx context.Context, userID string) (User, error)
	GrantsForUser(ctx context.Context, userID string) ([]coretypes.Grant, error)
	DefaultHost(ctx context.Context) (hostID string, hasDefault bool, err error)
}

type cacheKey struct {
	userID string
	action Action
	hostID string
}

type cacheEntry struct {
	allow     bool
	expiresAt time.Time
}

// Resolver evaluates permission checks with a bounded-TTL cache.
type Resolver struct {
	source GrantSource
	ttl    time.Duration

	mu    sync.Mutex
	cache map[cacheKey]cacheEntry
}

// NewResolver builds a Resolver backed by source with the given cache TTL.
func NewResolver(source GrantSource, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Resolver{
		source: source,
		ttl:    ttl,
		cache:  make(map[cacheKey]cacheEntry),
	}
}

// Allow reports whether userID may perform action against hostID ("" means
// "use the caller's default host", resolved via DefaultHost).
func (r *Resolver) Allow(ctx context.Context, userID string, action Action, hostID string) (bool, error) {
	key := cacheKey{userID: userID, action: action, hostID: hostID}

	r.mu.Lock()
	if entry, ok := r.cache[key]; ok && time.Now().Before(entry.expiresAt) {
		r.mu.Unlock()
		return entry.allow, nil
	}
	r.mu.Unlock()

	allow, err := r.evaluate(ctx, userID, action, hostID)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	r.cache[key] = cacheEntry{allow: allow, expiresAt: time.Now().Add(r.ttl)}
	r.mu.Unlock()

	return allow, nil
}

func (r *Resolver) evaluate(ctx context.Context, userID string, action Action, hostID string) (bool, error) {
	user, err := r.source.GetUser(ctx, userID)
	if err != nil {
		return false, corerr.Wrap(corerr.KindNotFound, "permissions.evaluate", err)
	}

	if user.Role == coretypes.RoleAdmin {
		return true, nil
	}

	grants, err := r.source.GrantsForUser(ctx, userID)
	if err != nil {
		return false, corerr.Internal("permissions.evaluate", err)
	}

	if hostID == "" {
		resolved, found, err := r.resolveDefaultHost(ctx, grants)
		if err != nil {
			return false, corerr.Internal("permissions.evaluate", err)
		}
		if !found {
			return false, nil
		}
		hostID = resolved
	}

	required := MinLevel(action)
	for _, g := range grants {
		if g.HostID == hostID {
			return g.Level.Level() >= required.Level(), nil
		}
	}
	return false, nil
}

// resolveDefaultHost picks the caller's default host: the flagged-default
// host if they hold a grant on it, otherwise any host they hold a grant on,
// otherwise not-found ("no_host").
func (r *Resolver) resolveDefaultHost(ctx context.Context, grants []coretypes.Grant) (string, bool, error) {
	if len(grants) == 0 {
		return "", false, nil
	}

	if defaultHostID, hasDefault, err := r.source.DefaultHost(ctx); err != nil {
		return "", false, err
	} else if hasDefault {
		for _, g := range grants {
			if g.HostID == defaultHostID {
				return defaultHostID, true, nil
			}
		}
	}

	return grants[0].HostID, true, nil
}

// Invalidate drops every cached decision for userID, called whenever one
// of their grants changes.
func (r *Resolver) Invalidate(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.cache {
		if k.userID == userID {
			delete(r.cache, k)
		}
	}
}

// InvalidateAll clears the entire cache.
func (r *Resolver) InvalidateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[cacheKey]cacheEntry)
}
