// Range semantics tests for serveFileRange, including the empty-file
// and malformed-specifier edge cases media players depend on.
package httpapi

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// writeTempFile creates a file with the given content and returns its path.
func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return p
}

// serveRange runs serveFileRange against path with an optional Range header.
func serveRange(t *testing.T, path, rangeHeader string) *httptest.ResponseRecorder {
	t.Helper()
	s := &Server{Logger: testLogger()}
	r := httptest.NewRequest("GET", "/download?file=x", nil)
	if rangeHeader != "" {
		r.Header.Set("Range", rangeHeader)
	}
	w := httptest.NewRecorder()
	s.serveFileRange(w, r, path, streamOptions{})
	return w
}

// TestRangeTable walks the full byte-range policy on a 10-byte file.
func TestRangeTable(t *testing.T) {
	const content = "0123456789"
	path := writeTempFile(t, "ten.bin", content)

	cases := []struct {
		name         string
		rangeHeader  string
		wantStatus   int
		wantBody     string
		contentRange string
	}{
		{"no header", "", 200, content, ""},
		{"zero dash is plain 200", "bytes=0-", 200, content, ""},
		{"empty specifier", "bytes=", 416, "", "bytes */10"},
		{"interior range", "bytes=2-5", 206, "2345", "bytes 2-5/10"},
		{"end clipped to size", "bytes=5-100", 206, "56789", "bytes 5-9/10"},
		{"open ended", "bytes=3-", 206, "3456789", "bytes 3-9/10"},
		{"start past end of file", "bytes=20-30", 416, "", "bytes */10"},
		{"suffix", "bytes=-3", 206, "789", "bytes 7-9/10"},
		{"suffix longer than file", "bytes=-100", 206, content, "bytes 0-9/10"},
		{"zero suffix", "bytes=-0", 416, "", "bytes */10"},
		{"garbage after bytes=", "bytes=ten-twenty", 206, content, "bytes 0-9/10"},
		{"non-bytes unit ignored", "items=0-5", 200, content, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := serveRange(t, path, tc.rangeHeader)
			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			if got := w.Header().Get("Content-Range"); got != tc.contentRange {
				t.Fatalf("Content-Range = %q, want %q", got, tc.contentRange)
			}
			if tc.wantStatus == 416 {
				return
			}
			if got := w.Body.String(); got != tc.wantBody {
				t.Fatalf("body = %q, want %q", got, tc.wantBody)
			}
			if got := w.Header().Get("Content-Length"); got != strconv.Itoa(len(tc.wantBody)) {
				t.Fatalf("Content-Length = %s, want %d", got, len(tc.wantBody))
			}
			if got := w.Header().Get("Accept-Ranges"); got != "bytes" {
				t.Fatalf("Accept-Ranges = %q", got)
			}
		})
	}
}

// TestRangeEmptyFile checks both the plain and the ranged request
// against a zero-length file.
func TestRangeEmptyFile(t *testing.T) {
	path := writeTempFile(t, "empty.bin", "")

	w := serveRange(t, path, "")
	if w.Code != 200 || w.Body.Len() != 0 {
		t.Fatalf("plain GET: status=%d len=%d, want 200 and empty", w.Code, w.Body.Len())
	}
	if got := w.Header().Get("Content-Length"); got != "0" {
		t.Fatalf("Content-Length = %q, want 0", got)
	}

	for _, rh := range []string{"bytes=0-", "bytes=-1", "bytes=0-5", "bytes="} {
		w := serveRange(t, path, rh)
		if w.Code != 416 {
			t.Fatalf("Range %q on empty file: status = %d, want 416", rh, w.Code)
		}
		if got := w.Header().Get("Content-Range"); got != "bytes */0" {
			t.Fatalf("Range %q: Content-Range = %q, want bytes */0", rh, got)
		}
	}
}

// TestRangeDispositionAndType checks the MIME-driven disposition rule.
func TestRangeDispositionAndType(t *testing.T) {
	txt := writeTempFile(t, "notes.txt", "hello")
	w := serveRange(t, txt, "")
	if got := w.Header().Get("Content-Disposition"); got != "inline" {
		t.Fatalf("text disposition = %q, want inline", got)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("Content-Type = %q, want text/plain", ct)
	}

	bin := writeTempFile(t, "blob.xyz123", "hello")
	w = serveRange(t, bin, "")
	if got := w.Header().Get("Content-Disposition"); !strings.HasPrefix(got, "attachment") {
		t.Fatalf("binary disposition = %q, want attachment", got)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/octet-stream" {
		t.Fatalf("Content-Type = %q, want octet-stream", ct)
	}

	s := &Server{Logger: testLogger()}
	r := httptest.NewRequest("GET", "/download?file=notes.txt", nil)
	rec := httptest.NewRecorder()
	s.serveFileRange(rec, r, txt, streamOptions{forceAttachment: true})
	if got := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(got, "attachment") {
		t.Fatalf("forced disposition = %q, want attachment", got)
	}
}

// TestRangeMissingFile maps an unopenable path to 404.
func TestRangeMissingFile(t *testing.T) {
	w := serveRange(t, filepath.Join(t.TempDir(), "nope.bin"), "")
	if w.Code != 404 {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
