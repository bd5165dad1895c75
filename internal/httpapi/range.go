package httpapi

import (
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

const streamChunkSize = 8192

var (
	startEndRe = regexp.MustCompile(`^(\d+)-(\d*)$`)
	suffixRe   = regexp.MustCompile(`^-(\d+)$`)
)

// streamOptions tweaks serveFileRange per endpoint.
type streamOptions struct {
	// forceAttachment overrides the inline-for-media disposition rule.
	forceAttachment bool
}

// serveFileRange streams absPath honoring the Range header.
//
// Semantics the clients depend on: "bytes=0-" gets a plain 200 with
// the whole file and no Content-Range; an empty specifier ("bytes=")
// is 416; any Range against an empty file is 416 with
// "Content-Range: bytes */0"; an unrecognized specifier after
// "bytes=" degrades to a 206 covering the whole file; a Range header
// that does not start with "bytes=" is ignored.
func (s *Server) serveFileRange(w http.ResponseWriter, r *http.Request, absPath string, opts streamOptions) {
	f, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "File not found"})
			return
		}
		s.Logger.Error("open for streaming failed", "path", absPath, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Server error accessing file"})
		return
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil || st.IsDir() {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "File not found"})
		return
	}
	size := st.Size()

	start, end := int64(0), size-1
	status := http.StatusOK

	rangeHeader := strings.TrimSpace(r.Header.Get("Range"))
	hasBytesRange := strings.HasPrefix(strings.ToLower(rangeHeader), "bytes=")

	switch {
	case size == 0:
		if hasBytesRange {
			writeRangeNotSatisfiable(w, size, "Range Not Satisfiable (file is empty)")
			return
		}
	case hasBytesRange:
		spec := strings.TrimSpace(rangeHeader[len("bytes="):])
		switch {
		case spec == "0-":
			// Whole file as a plain 200; some players probe with this.
		case spec == "":
			writeRangeNotSatisfiable(w, size, "Range Not Satisfiable (empty byte range specifier)")
			return
		default:
			if m := startEndRe.FindStringSubmatch(spec); m != nil {
				reqStart := parseRangeInt(m[1])
				if reqStart >= size {
					writeRangeNotSatisfiable(w, size, "Range Not Satisfiable (start >= file size)")
					return
				}
				start = reqStart
				if m[2] != "" {
					end = min(parseRangeInt(m[2]), size-1)
				}
				if end < start {
					writeRangeNotSatisfiable(w, size, "Range Not Satisfiable (end before start)")
					return
				}
			} else if m := suffixRe.FindStringSubmatch(spec); m != nil {
				n := parseRangeInt(m[1])
				if n == 0 {
					writeRangeNotSatisfiable(w, size, "Range Not Satisfiable (suffix length 0)")
					return
				}
				start = max(0, size-n)
			}
			// Anything unrecognized after "bytes=" degrades to a
			// partial response covering the whole file.
			status = http.StatusPartialContent
			w.Header().Set("Content-Range",
				fmt.Sprintf("bytes %d-%d/%d", start, end, size))
		}
	}

	length := int64(0)
	if size > 0 {
		length = end - start + 1
	}

	ctype := contentTypeForName(absPath)
	h := w.Header()
	h.Set("Content-Type", ctype)
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Length", strconv.FormatInt(length, 10))
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Content-Disposition", dispositionFor(ctype, filepath.Base(absPath), opts.forceAttachment))

	if start > 0 {
		if _, err := f.Seek(start, io.SeekStart); err != nil {
			s.Logger.Error("seek failed", "path", absPath, "err", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Server error serving file"})
			return
		}
	}
	w.WriteHeader(status)
	if length == 0 || r.Method == http.MethodHead {
		return
	}

	buf := make([]byte, streamChunkSize)
	if _, err := io.CopyBuffer(w, io.LimitReader(f, length), buf); err != nil {
		// Media players routinely drop the connection mid-stream.
		s.Logger.Debug("client stopped receiving stream",
			"path", absPath, "range", rangeHeader, "err", err)
	}
}

// writeRangeNotSatisfiable answers 416 with the size the client needs
// to retry sensibly.
func writeRangeNotSatisfiable(w http.ResponseWriter, size int64, msg string) {
	w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
	http.Error(w, msg, http.StatusRequestedRangeNotSatisfiable)
}

// parseRangeInt reads a digits-only value, saturating on overflow so
// absurd ranges fall out as unsatisfiable rather than erroring.
func parseRangeInt(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return math.MaxInt64
	}
	return v
}

// contentTypeForName guesses a Content-Type from the file extension.
func contentTypeForName(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// inlinePrefixes lists media types browsers should preview in place.
var inlinePrefixes = []string{"image/", "video/", "audio/", "application/pdf", "text/plain"}

// dispositionFor picks inline for previewable media and a named
// attachment for everything else.
func dispositionFor(ctype, name string, forceAttachment bool) string {
	if !forceAttachment {
		for _, p := range inlinePrefixes {
			if strings.HasPrefix(ctype, p) {
				return "inline"
			}
		}
	}
	return fmt.Sprintf("attachment; filename=%q", name)
}
