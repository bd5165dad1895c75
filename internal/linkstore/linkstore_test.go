// Package linkstore tests cover capability lifecycle and persistence.
package linkstore

import (
	"os"
	"path/filepath"
	"testing"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "public_links.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, path
}

// TestGetOrCreateIsIdempotent returns the same capability for the same file.
func TestGetOrCreateIsIdempotent(t *testing.T) {
	s, _ := openTemp(t)
	first, created, err := s.GetOrCreate("uploads", "a/b.txt")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if !created {
		t.Fatalf("expected first call to create")
	}
	second, created, err := s.GetOrCreate("uploads", "a/b.txt")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if created {
		t.Fatalf("expected second call to reuse")
	}
	if first != second {
		t.Fatalf("expected identical capability, got %q vs %q", first, second)
	}
}

// TestVerify accepts only the exact capability for the exact file.
func TestVerify(t *testing.T) {
	s, _ := openTemp(t)
	capability, _, err := s.GetOrCreate("uploads", "doc.pdf")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if !s.Verify("uploads", "doc.pdf", capability) {
		t.Fatalf("expected capability to verify")
	}
	if s.Verify("uploads", "doc.pdf", capability+"x") {
		t.Fatalf("expected tampered capability to fail")
	}
	if s.Verify("uploads", "other.pdf", capability) {
		t.Fatalf("expected capability to be file-scoped")
	}
	if s.Verify("elsewhere", "doc.pdf", capability) {
		t.Fatalf("expected capability to be root-scoped")
	}
	if s.Verify("uploads", "doc.pdf", "") {
		t.Fatalf("expected empty capability to fail")
	}
}

// TestDeleteMintsFreshCapability confirms revocation invalidates the
// old capability and a later share gets a new one.
func TestDeleteMintsFreshCapability(t *testing.T) {
	s, _ := openTemp(t)
	old, _, err := s.GetOrCreate("uploads", "x.bin")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	ok, err := s.Delete(CompositeKey("uploads", "x.bin"))
	if err != nil || !ok {
		t.Fatalf("Delete = (%v, %v)", ok, err)
	}
	if s.Verify("uploads", "x.bin", old) {
		t.Fatalf("expected revoked capability to fail")
	}
	fresh, created, err := s.GetOrCreate("uploads", "x.bin")
	if err != nil || !created {
		t.Fatalf("GetOrCreate after delete = (%v, %v)", created, err)
	}
	if fresh == old {
		t.Fatalf("expected a fresh capability after revocation")
	}

	ok, err = s.Delete("uploads|never-shared")
	if err != nil || ok {
		t.Fatalf("expected delete of unknown key to report false")
	}
}

// TestClear drops every link at once.
func TestClear(t *testing.T) {
	s, _ := openTemp(t)
	s.GetOrCreate("uploads", "a")
	s.GetOrCreate("uploads", "b")
	n, err := s.Clear()
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 cleared, got %d", n)
	}
	if len(s.All()) != 0 {
		t.Fatalf("expected empty table after clear")
	}
}

// TestPersistBeforeReturn confirms the table hits disk on creation and
// survives a reload.
func TestPersistBeforeReturn(t *testing.T) {
	s, path := openTemp(t)
	capability, _, err := s.GetOrCreate("uploads", "kept.txt")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected links file on disk: %v", err)
	}
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !s2.Verify("uploads", "kept.txt", capability) {
		t.Fatalf("expected capability to survive reload")
	}
	if got := s2.All(); len(got) != 1 {
		t.Fatalf("unexpected table after reload: %v", got)
	}
}
