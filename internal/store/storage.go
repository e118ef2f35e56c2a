// Package store implements the Store side of the protocol: on-disk file
// storage plus the control/client connection handling described in spec
// §4.2.
package store

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by Open/Remove when name is absent from the
// store's folder.
var ErrNotFound = errors.New("file not present in store")

// Storage owns one Store's on-disk folder. Whole-file semantics only —
// no chunking, no partial writes — per spec §1's Non-goals.
type Storage struct {
	mu     sync.RWMutex
	folder string
	quota  uint64 // 0 means unlimited; advisory only, see SetQuota
}

// NewStorage binds Storage to folder. The folder must already exist;
// callers that want the spec §6 "fresh start" guarantee should call
// Reset immediately after construction.
func NewStorage(folder string) *Storage {
	return &Storage{folder: folder}
}

// SetQuota records an advisory capacity for this folder, in bytes. It
// never rejects a store — spec §6's wire protocol has no token for
// "over quota" — Usage callers decide what, if anything, to log.
func (s *Storage) SetQuota(bytes uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quota = bytes
}

// Usage returns the total size in bytes of every regular file directly
// in the folder, and the configured quota (0 if none was set).
func (s *Storage) Usage() (used uint64, quota uint64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, err := os.ReadDir(s.folder)
	if err != nil {
		return 0, s.quota, errors.Wrap(err, "read store folder")
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		used += uint64(info.Size())
	}
	return used, s.quota, nil
}

// Reset deletes every regular file directly inside the folder, giving a
// Store the clean slate spec §6 requires on startup. Subdirectories are
// left untouched, matching the original's "doesn't recurse" folder
// convention.
func (s *Storage) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.folder)
	if err != nil {
		return errors.Wrap(err, "read store folder")
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.folder, e.Name())); err != nil {
			return errors.Wrapf(err, "remove %s", e.Name())
		}
	}
	return nil
}

// List returns the names of every regular file currently stored.
func (s *Storage) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, err := os.ReadDir(s.folder)
	if err != nil {
		return nil, errors.Wrap(err, "read store folder")
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Create creates name for writing, truncating any existing content.
// Callers must Close the returned file.
func (s *Storage) Create(name string) (*os.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Create(filepath.Join(s.folder, name))
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", name)
	}
	return f, nil
}

// Open opens name for reading. Returns ErrNotFound if it does not exist.
func (s *Storage) Open(name string) (*os.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, err := os.Open(filepath.Join(s.folder, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "open %s", name)
	}
	return f, nil
}

// Remove deletes name. Returns ErrNotFound if it does not exist.
func (s *Storage) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(filepath.Join(s.folder, name))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return errors.Wrapf(err, "remove %s", name)
	}
	return nil
}

// Exists reports whether name is currently stored.
func (s *Storage) Exists(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := os.Stat(filepath.Join(s.folder, name))
	return err == nil
}
