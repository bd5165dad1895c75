// Package fsutil confines client-supplied paths to the served root
// directories. Every path coming off the wire passes through Resolve
// or ResolveNewFile before it touches the filesystem.
package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Rejection reasons. Handlers map these to HTTP statuses.
var (
	ErrRootNotServed = errors.New("root directory not served")
	ErrTraversal     = errors.New("path escapes root")
	ErrNotFound      = errors.New("path not found")
	ErrWrongKind     = errors.New("path is not the requested kind")
	ErrBadName       = errors.New("invalid file name")
)

// Kind selects what the resolved target must be.
type Kind int

const (
	Any Kind = iota
	File
	Dir
)

// Roots is the resolver's view of the served root set.
type Roots interface {
	List() []string
	Contains(path string) bool
}

// Resolve maps (root, rel) to an absolute filesystem path for an
// existing target. The root must be a member of the served set. The
// relative path is rejected on raw-string grounds before any
// normalization: a ".." anywhere or a leading separator fails with
// ErrTraversal. Both sides are then canonicalized through symlinks and
// the target must stay under the canonical root.
func Resolve(roots Roots, root, rel string, want Kind) (string, error) {
	if roots == nil || !roots.Contains(root) {
		return "", ErrRootNotServed
	}
	if rejectRaw(rel) {
		return "", ErrTraversal
	}
	rootReal, err := canonical(root)
	if err != nil {
		return "", err
	}
	target := rootReal
	if rel != "" {
		target = filepath.Join(rootReal, filepath.FromSlash(rel))
	}
	targetReal, err := filepath.EvalSymlinks(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	targetReal = filepath.Clean(targetReal)
	if !isWithin(rootReal, targetReal) {
		return "", ErrTraversal
	}
	info, err := os.Stat(targetReal)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	switch want {
	case File:
		if !info.Mode().IsRegular() {
			return "", ErrWrongKind
		}
	case Dir:
		if !info.IsDir() {
			return "", ErrWrongKind
		}
	}
	return targetReal, nil
}

// ResolveNewFile maps an upload destination to an absolute path inside
// root. Only the base name of the client-supplied filename is used,
// and it passes the same raw-string checks as Resolve. The target file
// need not exist; the root must.
func ResolveNewFile(roots Roots, root, filename string) (string, error) {
	if roots == nil || !roots.Contains(root) {
		return "", ErrRootNotServed
	}
	name := filepath.Base(filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", ErrBadName
	}
	if rejectRaw(name) {
		return "", ErrTraversal
	}
	rootReal, err := canonical(root)
	if err != nil {
		return "", err
	}
	return filepath.Join(rootReal, name), nil
}

// rejectRaw applies the raw-string checks that run before any path
// normalization.
func rejectRaw(rel string) bool {
	if strings.Contains(rel, "..") {
		return true
	}
	return strings.HasPrefix(rel, "/") || strings.HasPrefix(rel, `\`)
}

// canonical returns the symlink-resolved absolute form of path.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	return filepath.Clean(real), nil
}

// isWithin reports whether candidate equals root or sits under it.
// The separator is appended before the prefix check so sibling
// directories sharing a name prefix do not pass.
func isWithin(root, candidate string) bool {
	if root == candidate {
		return true
	}
	sep := string(filepath.Separator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(candidate, root)
}
