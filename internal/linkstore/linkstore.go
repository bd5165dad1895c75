// Package linkstore persists public link capabilities to a JSON file.
// Each shared file is keyed by "root|relpath" and owns one URL-safe
// 256-bit capability. The table is rewritten in full on every
// mutation, and a new capability is persisted before it is ever
// handed out.
package linkstore

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sync"

	"github.com/BingleP/BinglesHTTPServer/internal/auth"
	"github.com/BingleP/BinglesHTTPServer/internal/fsutil"
)

const keySep = "|"

// CompositeKey returns the table key for a file inside a root.
func CompositeKey(root, rel string) string { return root + keySep + rel }

// Store is a mutex-guarded capability table backed by a JSON file.
type Store struct {
	path string

	mu    sync.Mutex
	links map[string]string
}

// Open loads the link table at path, starting empty when the file
// does not exist.
func Open(path string) (*Store, error) {
	s := &Store{path: path, links: make(map[string]string)}
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, err
	}
	if err := json.Unmarshal(b, &s.links); err != nil {
		return nil, err
	}
	return s, nil
}

// GetOrCreate returns the capability for (root, rel), minting and
// persisting a fresh one when none exists. The same file always maps
// to the same capability until it is deleted.
func (s *Store) GetOrCreate(root, rel string) (string, bool, error) {
	key := CompositeKey(root, rel)
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.links[key]; ok {
		return existing, false, nil
	}
	capability, err := auth.NewCapability()
	if err != nil {
		return "", false, err
	}
	s.links[key] = capability
	if err := s.save(); err != nil {
		delete(s.links, key)
		return "", false, err
	}
	return capability, true, nil
}

// Lookup returns the capability for (root, rel) if one exists.
func (s *Store) Lookup(root, rel string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	capability, ok := s.links[CompositeKey(root, rel)]
	return capability, ok
}

// Verify reports whether capability grants access to (root, rel).
// The comparison is constant time.
func (s *Store) Verify(root, rel, capability string) bool {
	if capability == "" {
		return false
	}
	s.mu.Lock()
	stored, ok := s.links[CompositeKey(root, rel)]
	s.mu.Unlock()
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(capability)) == 1
}

// Delete revokes a link by its composite key. It reports whether the
// key existed.
func (s *Store) Delete(composite string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.links[composite]
	if !ok {
		return false, nil
	}
	delete(s.links, composite)
	if err := s.save(); err != nil {
		s.links[composite] = old
		return false, err
	}
	return true, nil
}

// Clear revokes every link and returns how many were dropped.
func (s *Store) Clear() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.links)
	if n == 0 {
		return 0, nil
	}
	old := s.links
	s.links = make(map[string]string)
	if err := s.save(); err != nil {
		s.links = old
		return 0, err
	}
	return n, nil
}

// All returns a copy of the table for the admin listing.
func (s *Store) All() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.links))
	for k, v := range s.links {
		out[k] = v
	}
	return out
}

// save rewrites the link table. Caller holds the lock.
func (s *Store) save() error {
	b, err := json.MarshalIndent(s.links, "", "  ")
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(s.path, b, 0o600)
}
