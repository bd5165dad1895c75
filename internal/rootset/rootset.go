// Package rootset persists the list of served share roots to a JSON
// file. The first entry is the primary root used as the default for
// listings. Config files written by older deployments that stored a
// single "root_dir" value migrate on load.
package rootset

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/BingleP/BinglesHTTPServer/internal/fsutil"
)

// DefaultRoot is served when no roots file exists yet.
const DefaultRoot = "uploads"

var (
	ErrLastRoot = errors.New("cannot remove the last root directory")
	ErrNotFound = errors.New("root directory not found")
	ErrExists   = errors.New("root directory already served")
)

// fileShape covers both the current and the legacy on-disk formats.
type fileShape struct {
	RootDirs []string `json:"root_dirs"`
	RootDir  string   `json:"root_dir,omitempty"`
}

// Set is a mutex-guarded list of share roots backed by a JSON file.
// It implements fsutil.Roots.
type Set struct {
	path string
	log  *slog.Logger

	mu    sync.Mutex
	roots []string
}

// Open loads the roots file at path. A missing or unreadable file
// falls back to the default root, which is persisted immediately.
func Open(path string, lg *slog.Logger) (*Set, error) {
	if lg == nil {
		lg = slog.Default()
	}
	s := &Set{path: path, log: lg}

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		s.roots = parseRoots(b, lg, path)
	}

	if len(s.roots) == 0 {
		s.roots = []string{DefaultRoot}
		if err := s.save(); err != nil {
			return nil, err
		}
		lg.Info("initialized root directory list", "path", path, "root", DefaultRoot)
	}
	return s, nil
}

// parseRoots decodes the file body, accepting the legacy single-root
// and bare-string shapes. Invalid content yields nil.
func parseRoots(b []byte, lg *slog.Logger, path string) []string {
	var shape fileShape
	if err := json.Unmarshal(b, &shape); err == nil {
		if len(shape.RootDirs) > 0 {
			return shape.RootDirs
		}
		if shape.RootDir != "" {
			lg.Info("migrated legacy single-root config", "path", path)
			return []string{shape.RootDir}
		}
	}
	var single string
	if err := json.Unmarshal(b, &single); err == nil && single != "" {
		lg.Info("migrated legacy single-root config", "path", path)
		return []string{single}
	}
	lg.Warn("unreadable roots file, falling back to default", "path", path)
	return nil
}

// EnsureExist creates any missing root directories on disk.
func (s *Set) EnsureExist() error {
	s.mu.Lock()
	roots := append([]string(nil), s.roots...)
	s.mu.Unlock()
	for _, r := range roots {
		if err := os.MkdirAll(r, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// List returns a copy of the served roots in order.
func (s *Set) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.roots...)
}

// Primary returns the first root, the default for listings.
func (s *Set) Primary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roots[0]
}

// Contains reports exact membership of path in the served set.
// Clients must name roots exactly as listed.
func (s *Set) Contains(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.roots {
		if r == path {
			return true
		}
	}
	return false
}

// Add registers a new root directory, creating it on disk when absent.
// The stored entry is the cleaned absolute path.
func (s *Set) Add(abs string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.roots {
		if sameEntry(r, abs) {
			return ErrExists
		}
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return err
	}
	s.roots = append(s.roots, abs)
	if err := s.save(); err != nil {
		s.roots = s.roots[:len(s.roots)-1]
		return err
	}
	return nil
}

// Remove drops a root from the served set, matching entries by
// absolute path. The directory itself is left on disk. The last root
// cannot be removed.
func (s *Set) Remove(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, r := range s.roots {
		if sameEntry(r, path) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNotFound
	}
	if len(s.roots) == 1 {
		return ErrLastRoot
	}
	old := s.roots
	s.roots = append(append([]string(nil), old[:idx]...), old[idx+1:]...)
	if err := s.save(); err != nil {
		s.roots = old
		return err
	}
	return nil
}

// sameEntry compares two root spellings by absolute path.
func sameEntry(a, b string) bool {
	if a == b {
		return true
	}
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && aa == bb
}

// save rewrites the roots file. Caller holds the lock.
func (s *Set) save() error {
	b, err := json.MarshalIndent(fileShape{RootDirs: s.roots}, "", "  ")
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(s.path, b, 0o644)
}
