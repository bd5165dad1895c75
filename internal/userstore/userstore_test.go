// Package userstore tests cover account CRUD and the admin guards.
package userstore

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/BingleP/BinglesHTTPServer/internal/auth"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "users.json"), testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

// TestOpenSeedsDefaultAdmin confirms a fresh store gets the default account.
func TestOpenSeedsDefaultAdmin(t *testing.T) {
	s := openTemp(t)
	role, ok := s.Verify(DefaultAdminUser, DefaultAdminPassword)
	if !ok {
		t.Fatalf("expected default admin to verify")
	}
	if role != auth.RoleAdmin {
		t.Fatalf("expected admin role, got %q", role)
	}
}

// TestCreateVerifyDelete covers the basic account lifecycle.
func TestCreateVerifyDelete(t *testing.T) {
	s := openTemp(t)
	if err := s.Create("alice", "hunter2", auth.RoleUser); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create("alice", "other", auth.RoleUser); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, ok := s.Verify("alice", "wrong"); ok {
		t.Fatalf("expected wrong password to fail")
	}
	role, ok := s.Verify("alice", "hunter2")
	if !ok || role != auth.RoleUser {
		t.Fatalf("Verify = (%q, %v)", role, ok)
	}
	if err := s.Delete("alice"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete("alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// TestDeleteRefusesLastAdmin keeps at least one admin account alive.
func TestDeleteRefusesLastAdmin(t *testing.T) {
	s := openTemp(t)
	if err := s.Delete(DefaultAdminUser); !errors.Is(err, ErrLastAdmin) {
		t.Fatalf("expected ErrLastAdmin, got %v", err)
	}
	if err := s.Create("root2", "pw", auth.RoleAdmin); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Delete(DefaultAdminUser); err != nil {
		t.Fatalf("expected delete to succeed with a second admin: %v", err)
	}
}

// TestSetPasswordInvalidatesOld confirms password changes take effect.
func TestSetPasswordInvalidatesOld(t *testing.T) {
	s := openTemp(t)
	if err := s.SetPassword(DefaultAdminUser, "newpass"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	if _, ok := s.Verify(DefaultAdminUser, DefaultAdminPassword); ok {
		t.Fatalf("expected old password to stop working")
	}
	if _, ok := s.Verify(DefaultAdminUser, "newpass"); !ok {
		t.Fatalf("expected new password to work")
	}
}

// TestRenameKeepsRole moves an account and preserves its role.
func TestRenameKeepsRole(t *testing.T) {
	s := openTemp(t)
	if err := s.Rename(DefaultAdminUser, "boss", "bosspw"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	role, ok := s.Verify("boss", "bosspw")
	if !ok || role != auth.RoleAdmin {
		t.Fatalf("Verify after rename = (%q, %v)", role, ok)
	}
	if s.Exists(DefaultAdminUser) {
		t.Fatalf("expected old username to be gone")
	}
}

// TestPersistenceAcrossReopen confirms mutations survive a reload.
func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users.json")
	s, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Create("bob", "pw", auth.RoleUser); err != nil {
		t.Fatalf("Create: %v", err)
	}

	s2, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, ok := s2.Verify("bob", "pw"); !ok {
		t.Fatalf("expected bob to survive reopen")
	}
	got := s2.List()
	if len(got) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(got))
	}
	for _, info := range got {
		if info.Username == "" || info.Role == "" {
			t.Fatalf("unexpected listing entry: %+v", info)
		}
	}
}
