// Package userstore persists user accounts to a JSON file. The file
// maps usernames to bcrypt password hashes and roles; it is rewritten
// in full on every mutation. Files written by older deployments that
// carry a separate salt field still load (bcrypt embeds the salt).
package userstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/BingleP/BinglesHTTPServer/internal/auth"
	"github.com/BingleP/BinglesHTTPServer/internal/fsutil"
)

// Default account seeded when no users file exists yet.
const (
	DefaultAdminUser     = "Admin"
	DefaultAdminPassword = "Password"
)

var (
	ErrNotFound  = errors.New("user not found")
	ErrExists    = errors.New("user already exists")
	ErrLastAdmin = errors.New("cannot remove the last admin account")
)

// Info is the secret-free view of an account.
type Info struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// record is the on-disk account shape.
type record struct {
	HashedPassword string `json:"hashed_password"`
	Salt           string `json:"salt,omitempty"`
	Role           string `json:"role"`
}

// Store is a mutex-guarded account table backed by a JSON file.
type Store struct {
	path string
	log  *slog.Logger

	mu    sync.Mutex
	users map[string]record
}

// Open loads the users file at path, creating it with the default
// admin account when it does not exist.
func Open(path string, lg *slog.Logger) (*Store, error) {
	if lg == nil {
		lg = slog.Default()
	}
	s := &Store{path: path, log: lg, users: make(map[string]record)}

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// First run: seed the default admin so the server is reachable.
	case err != nil:
		return nil, fmt.Errorf("read users file: %w", err)
	default:
		if err := json.Unmarshal(b, &s.users); err != nil {
			return nil, fmt.Errorf("parse users file %s: %w", path, err)
		}
	}

	if len(s.users) == 0 {
		hash, err := auth.HashPassword(DefaultAdminPassword)
		if err != nil {
			return nil, err
		}
		s.users[DefaultAdminUser] = record{HashedPassword: hash, Role: auth.RoleAdmin}
		if err := s.save(); err != nil {
			return nil, err
		}
		lg.Warn("created default admin account; change its password",
			"username", DefaultAdminUser, "path", path)
	}
	return s, nil
}

// Verify checks a password and returns the account role on success.
func (s *Store) Verify(username, password string) (string, bool) {
	s.mu.Lock()
	rec, ok := s.users[username]
	s.mu.Unlock()
	if !ok {
		return "", false
	}
	if !auth.VerifyPassword(password, rec.HashedPassword) {
		return "", false
	}
	return rec.Role, true
}

// Exists reports whether an account exists.
func (s *Store) Exists(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[username]
	return ok
}

// Role returns an account's role, or "" when absent.
func (s *Store) Role(username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[username].Role
}

// Create adds a new account.
func (s *Store) Create(username, password, role string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; ok {
		return ErrExists
	}
	s.users[username] = record{HashedPassword: hash, Role: role}
	if err := s.save(); err != nil {
		delete(s.users, username)
		return err
	}
	return nil
}

// Delete removes an account, refusing to drop the last admin.
func (s *Store) Delete(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[username]
	if !ok {
		return ErrNotFound
	}
	if rec.Role == auth.RoleAdmin && s.adminCount() == 1 {
		return ErrLastAdmin
	}
	delete(s.users, username)
	if err := s.save(); err != nil {
		s.users[username] = rec
		return err
	}
	return nil
}

// SetPassword replaces an account's password hash.
func (s *Store) SetPassword(username, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[username]
	if !ok {
		return ErrNotFound
	}
	old := rec
	rec.HashedPassword = hash
	rec.Salt = ""
	s.users[username] = rec
	if err := s.save(); err != nil {
		s.users[username] = old
		return err
	}
	return nil
}

// Rename moves an account to a new username with a new password,
// keeping its role. Renaming onto an existing account fails.
func (s *Store) Rename(oldName, newName, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[oldName]
	if !ok {
		return ErrNotFound
	}
	if newName != oldName {
		if _, taken := s.users[newName]; taken {
			return ErrExists
		}
	}
	delete(s.users, oldName)
	s.users[newName] = record{HashedPassword: hash, Role: rec.Role}
	if err := s.save(); err != nil {
		delete(s.users, newName)
		s.users[oldName] = rec
		return err
	}
	return nil
}

// List returns all accounts sorted by username, without secrets.
func (s *Store) List() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Info, 0, len(s.users))
	for name, rec := range s.users {
		out = append(out, Info{Username: name, Role: rec.Role})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// adminCount counts admin accounts. Caller holds the lock.
func (s *Store) adminCount() int {
	n := 0
	for _, rec := range s.users {
		if rec.Role == auth.RoleAdmin {
			n++
		}
	}
	return n
}

// save rewrites the users file. Caller holds the lock.
func (s *Store) save() error {
	b, err := json.MarshalIndent(s.users, "", "  ")
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(s.path, b, 0o600)
}
