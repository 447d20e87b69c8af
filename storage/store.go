// Package storage implements the file-backed account and mailbox store.
//
// Layout under the data root:
//
//	<root>/<username>/credential    bcrypt password hash, mode 0600
//	<root>/<username>/*.eml         one RFC 5322 file per message
//	<root>/+lost/*.eml              undeliverable in-domain mail
//
// A mailbox is nothing but the account directory; enumeration derives
// from the stored files, there is no separate index.
package storage

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"

	"github.com/plumemail/plume/consts"
)

// lockShards is the size of the per-username lock table. Mutations and
// scans of one mailbox are serialized; unrelated mailboxes proceed in
// parallel.
const lockShards = 64

// Store is the file-backed persistence layer shared by the session
// handlers, the delivery engine and the admin tool.
type Store struct {
	root   string
	domain string
	locks  [lockShards]sync.RWMutex
}

// New opens (or creates) the data root and the lost bin. Failure here is
// fatal to the process: without the data root nothing can be persisted.
func New(root, domain string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, consts.LostBinDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data root '%s': %w", root, err)
	}
	return &Store{root: root, domain: domain}, nil
}

// Domain returns the service's own mail domain.
func (s *Store) Domain() string {
	return s.domain
}

// Root returns the data root path.
func (s *Store) Root() string {
	return s.root
}

// userLock returns the shard lock covering the given normalized username.
func (s *Store) userLock(username string) *sync.RWMutex {
	h := fnv.New32a()
	h.Write([]byte(username))
	return &s.locks[h.Sum32()%lockShards]
}

// accountDir returns the mailbox directory of a normalized username.
func (s *Store) accountDir(username string) string {
	return filepath.Join(s.root, username)
}

// lostDir returns the shared lost bin directory.
func (s *Store) lostDir() string {
	return filepath.Join(s.root, consts.LostBinDir)
}

// AccountExists reports whether a mailbox directory exists for the given
// normalized username.
func (s *Store) AccountExists(username string) bool {
	info, err := os.Stat(s.accountDir(username))
	return err == nil && info.IsDir()
}

// storageErr wraps a disk I/O error so callers can match it with
// errors.Is(err, consts.ErrStorageFailure).
func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", consts.ErrStorageFailure, op, err)
}
