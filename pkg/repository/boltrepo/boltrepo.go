// Package boltrepo is the bbolt-backed reference implementation of
// pkg/repository.Repository, adapted from the control plane's original
// bucket-per-entity BoltDB store: one bucket per record kind, JSON-encoded
// values keyed by ID, update implemented as upsert.
package boltrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cuemby/fleetctl/pkg/corerr"
	"github.com/cuemby/fleetctl/pkg/coretypes"
	"github.com/cuemby/fleetctl/pkg/permissions"
	"github.com/cuemby/fleetctl/pkg/repository"
	bolt "go.etcd.io/bbolt"
)

var _ repository.Repository = (*Store)(nil)

var (
	bucketHosts       = []byte("hosts")
	bucketCredentials = []byte("credentials")
	bucketUsers       = []byte("users")
	bucketGrants      = []byte("grants")
)

// Store is a bbolt-backed Repository.
type Store struct {
	db *bolt.DB
}

// Open creates or reuses the database file under dataDir.
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "fleetctl.db")
	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("boltrepo: open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketHosts, bucketCredentials, bucketUsers, bucketGrants} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("boltrepo: create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Hosts

func (s *Store) CreateHost(ctx context.Context, host coretypes.Host) error {
	return s.putJSON(bucketHosts, host.ID, host)
}

func (s *Store) GetHost(ctx context.Context, hostID string) (coretypes.Host, error) {
	var host coretypes.Host
	err := s.getJSON(bucketHosts, hostID, &host)
	return host, err
}

func (s *Store) ListHosts(ctx context.Context) ([]coretypes.Host, error) {
	var hosts []coretypes.Host
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHosts).ForEach(func(k, v []byte) error {
			var host coretypes.Host
			if err := json.Unmarshal(v, &host); err != nil {
				return err
			}
			hosts = append(hosts, host)
			return nil
		})
	})
	return hosts, err
}

func (s *Store) UpdateHost(ctx context.Context, host coretypes.Host) error {
	return s.CreateHost(ctx, host)
}

func (s *Store) DeleteHost(ctx context.Context, hostID string) error {
	return s.delete(bucketHosts, hostID)
}

// MarkUnhealthy flips a host's recorded health to unhealthy; callers
// (the Connection Manager) invoke this after a failed health check, not
// as a general-purpose status setter.
func (s *Store) MarkUnhealthy(ctx context.Context, hostID string) {
	host, err := s.GetHost(ctx, hostID)
	if err != nil {
		return
	}
	host.Health = coretypes.HealthUnhealthy
	_ = s.UpdateHost(ctx, host)
}

// Credentials

func (s *Store) PutCredential(ctx context.Context, item coretypes.CredentialItem) error {
	return s.putJSON(bucketCredentials, credentialKey(item.HostID, item.Kind), item)
}

func (s *Store) GetCredentials(ctx context.Context, hostID string) ([]coretypes.CredentialItem, error) {
	var items []coretypes.CredentialItem
	prefix := []byte(hostID + ":")
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketCredentials).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var item coretypes.CredentialItem
			if err := json.Unmarshal(v, &item); err != nil {
				return err
			}
			items = append(items, item)
		}
		return nil
	})
	return items, err
}

func (s *Store) DeleteCredentials(ctx context.Context, hostID string) error {
	prefix := []byte(hostID + ":")
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCredentials)
		c := b.Cursor()
		var keys [][]byte
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func credentialKey(hostID string, kind coretypes.CredentialKind) string {
	return hostID + ":" + string(kind)
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Users

func (s *Store) CreateUser(ctx context.Context, user permissions.User) error {
	return s.putJSON(bucketUsers, user.ID, user)
}

func (s *Store) GetUser(ctx context.Context, userID string) (permissions.User, error) {
	var user permissions.User
	err := s.getJSON(bucketUsers, userID, &user)
	return user, err
}

func (s *Store) ListUsers(ctx context.Context) ([]permissions.User, error) {
	var users []permissions.User
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUsers).ForEach(func(k, v []byte) error {
			var user permissions.User
			if err := json.Unmarshal(v, &user); err != nil {
				return err
			}
			users = append(users, user)
			return nil
		})
	})
	return users, err
}

func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	return s.delete(bucketUsers, userID)
}

// Grants

func (s *Store) PutGrant(ctx context.Context, grant coretypes.Grant) error {
	return s.putJSON(bucketGrants, grantKey(grant.UserID, grant.HostID), grant)
}

func (s *Store) GrantsForUser(ctx context.Context, userID string) ([]coretypes.Grant, error) {
	var grants []coretypes.Grant
	prefix := []byte(userID + ":")
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketGrants).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var grant coretypes.Grant
			if err := json.Unmarshal(v, &grant); err != nil {
				return err
			}
			grants = append(grants, grant)
		}
		return nil
	})
	return grants, err
}

func (s *Store) DeleteGrant(ctx context.Context, userID, hostID string) error {
	return s.delete(bucketGrants, grantKey(userID, hostID))
}

func grantKey(userID, hostID string) string {
	return userID + ":" + hostID
}

// DefaultHost returns the first host flagged Default=true, if any.
func (s *Store) DefaultHost(ctx context.Context) (string, bool, error) {
	hosts, err := s.ListHosts(ctx)
	if err != nil {
		return "", false, err
	}
	for _, h := range hosts {
		if h.Default {
			return h.ID, true, nil
		}
	}
	return "", false, nil
}

// helpers

func (s *Store) putJSON(bucket []byte, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return corerr.Internal("boltrepo.putJSON", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

func (s *Store) getJSON(bucket []byte, key string, out any) error {
	return s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(key))
		if data == nil {
			return corerr.NotFound("boltrepo.getJSON", fmt.Sprintf("%s/%s not found", bucket, key))
		}
		return json.Unmarshal(data, out)
	})
}

func (s *Store) delete(bucket []byte, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(key))
	})
}
