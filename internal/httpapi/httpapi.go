// Package httpapi exposes the Bingles HTTP API: login and session
// management, directory listings, range-capable downloads, uploads,
// public link issuance and fetch, and the admin surface.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"github.com/BingleP/BinglesHTTPServer/internal/auth"
	"github.com/BingleP/BinglesHTTPServer/internal/fsutil"
	"github.com/BingleP/BinglesHTTPServer/internal/linkstore"
	"github.com/BingleP/BinglesHTTPServer/internal/rootset"
	"github.com/BingleP/BinglesHTTPServer/internal/userstore"
	"github.com/BingleP/BinglesHTTPServer/internal/validate"
)

// Server wires the stores and the token authority into HTTP handlers.
type Server struct {
	Auth   *auth.Authority
	Users  *userstore.Store
	Roots  *rootset.Set
	Links  *linkstore.Store
	Logger *slog.Logger

	// MaxUploadBytes caps the request body on POST endpoints.
	// Zero means unlimited.
	MaxUploadBytes int64

	// Login throttling. Zero values select the defaults.
	LoginMaxAttempts int
	LoginWindow      time.Duration

	loginLimiter *fixedWindowLimiter
}

// Routes builds the full handler chain: panic recovery, request
// logging, security headers, CORS, then the endpoint mux.
func (s *Server) Routes() http.Handler {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	if s.loginLimiter == nil {
		attempts, win := s.LoginMaxAttempts, s.LoginWindow
		if attempts <= 0 {
			attempts = 20
		}
		if win <= 0 {
			win = time.Minute
		}
		s.loginLimiter = newFixedWindowLimiter(attempts, win)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.withToken(s.handleLogout))
	mux.HandleFunc("/change_creds", s.withToken(s.handleChangeCreds))
	mux.HandleFunc("/files", s.withToken(s.handleFiles))
	mux.HandleFunc("/download", s.withToken(s.handleDownload))
	mux.HandleFunc("/upload", s.withToken(s.handleUpload))
	mux.HandleFunc("/get_public_link", s.withToken(s.handleGetPublicLink))
	mux.HandleFunc("/public/", s.handlePublic)
	mux.HandleFunc("/get_current_root_dirs", s.withToken(s.handleGetRootDirs))
	mux.HandleFunc("/add_root_dir", s.withAdmin(s.handleAddRootDir))
	mux.HandleFunc("/remove_root_dir", s.withAdmin(s.handleRemoveRootDir))
	mux.HandleFunc("/set_root_dir", s.handleSetRootDir)
	mux.HandleFunc("/all_files", s.withAdmin(s.handleAllFiles))
	mux.HandleFunc("/admin/get_all_users", s.withAdmin(s.handleGetAllUsers))
	mux.HandleFunc("/admin/create_user", s.withAdmin(s.handleCreateUser))
	mux.HandleFunc("/admin/delete_user", s.withAdmin(s.handleDeleteUser))
	mux.HandleFunc("/admin/user_change_password", s.withAdmin(s.handleUserChangePassword))
	mux.HandleFunc("/admin/get_all_public_links", s.withAdmin(s.handleGetAllPublicLinks))
	mux.HandleFunc("/admin/delete_public_link", s.withAdmin(s.handleDeletePublicLink))
	mux.HandleFunc("/admin/clear_all_public_links", s.withAdmin(s.handleClearAllPublicLinks))
	mux.HandleFunc("/healthz", s.handleHealthz)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Range"},
		ExposedHeaders: []string{"Content-Range", "Content-Length", "Accept-Ranges", "Content-Disposition"},
	})

	var h http.Handler = mux
	h = c.Handler(h)
	h = withSecurityHeaders(h)
	h = s.withRequestLog(h)
	h = s.withRecover(h)
	return h
}

// clientIP extracts the remote IP without a port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

// tokenFromRequest reads the session token, accepted either as a
// query parameter or a form field named "token". Multipart bodies are
// parsed here so upload requests can carry the token as a field.
func tokenFromRequest(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if r.Method != http.MethodPost {
		return ""
	}
	return r.FormValue("token")
}

type ctxKey string

const (
	ctxToken    ctxKey = "token"
	ctxUsername ctxKey = "username"
	ctxRole     ctxKey = "role"
)

// ctxString reads a string value the auth middleware stored on the
// request context.
func ctxString(r *http.Request, key ctxKey) string {
	v, _ := r.Context().Value(key).(string)
	return v
}

// withToken rejects requests that do not carry a valid session token
// for the caller's IP. The token, username, and role ride the request
// context into the handler.
func (s *Server) withToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && s.MaxUploadBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadBytes)
		}
		token := tokenFromRequest(r)
		if token == "" || !s.Auth.Validate(token, clientIP(r)) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid or expired token"})
			return
		}
		ctx := context.WithValue(r.Context(), ctxToken, token)
		ctx = context.WithValue(ctx, ctxUsername, s.Auth.Username(token))
		ctx = context.WithValue(ctx, ctxRole, s.Auth.Role(token))
		next(w, r.WithContext(ctx))
	}
}

// withAdmin additionally requires the admin role.
func (s *Server) withAdmin(next http.HandlerFunc) http.HandlerFunc {
	return s.withToken(func(w http.ResponseWriter, r *http.Request) {
		if ctxString(r, ctxRole) != auth.RoleAdmin {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "Admin access required"})
			return
		}
		next(w, r)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	ip := clientIP(r)
	if ok, wait := s.loginLimiter.Allow(ip); !ok {
		w.Header().Set("Retry-After", retryAfterSeconds(wait))
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Too many login attempts"})
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")
	if username == "" || password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Username and password are required"})
		return
	}
	role, ok := s.Users.Verify(username, password)
	if !ok {
		s.Logger.Warn("login failed", "username", username, "remote_ip", ip)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		return
	}

	// Single session per user: a fresh login kills older ones.
	s.Auth.InvalidateUser(username)
	token, err := s.Auth.Issue(username, role, ip)
	if err != nil {
		s.Logger.Error("token issue failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
		return
	}
	s.Logger.Info("login", "username", username, "role", role, "remote_ip", ip)
	writeJSON(w, http.StatusOK, map[string]string{"token": token, "role": role})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	username := ctxString(r, ctxUsername)
	s.Auth.InvalidateUser(username)
	s.Logger.Info("logout", "username", username)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) handleChangeCreds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	current := ctxString(r, ctxUsername)
	newName := r.FormValue("new_username")
	newPass := r.FormValue("new_password")
	if newName == "" || newPass == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "New username and password are required"})
		return
	}
	if err := validate.Username(newName); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.Users.Rename(current, newName, newPass); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, userstore.ErrExists) || errors.Is(err, userstore.ErrNotFound) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	// Old tokens name the old account; force a fresh login.
	s.Auth.InvalidateUser(current)
	s.Logger.Info("credentials changed", "old_username", current, "new_username", newName)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Credentials updated, please log in again"})
}

// listItem is one row in a /files directory listing.
type listItem struct {
	Name        string `json:"name"`
	IsDirectory bool   `json:"is_directory"`
	Path        string `json:"path"`
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	root := r.URL.Query().Get("root_dir_path")
	if root == "" {
		root = s.Roots.Primary()
	}
	rel := r.URL.Query().Get("path")
	search := strings.ToLower(r.URL.Query().Get("search"))

	dir, err := fsutil.Resolve(s.Roots, root, rel, fsutil.Dir)
	if err != nil {
		s.writeResolveError(w, r, err, root, rel)
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.Logger.Error("read dir failed", "path", dir, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Error reading directory"})
		return
	}

	items := make([]listItem, 0, len(entries))
	for _, e := range entries {
		if search != "" && !strings.Contains(strings.ToLower(e.Name()), search) {
			continue
		}
		items = append(items, listItem{
			Name:        e.Name(),
			IsDirectory: e.IsDir(),
			Path:        path.Join(rel, e.Name()),
		})
	}
	// Directories first, then case-insensitive by name.
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].IsDirectory != items[j].IsDirectory {
			return items[i].IsDirectory
		}
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"root_dir_path": root,
		"path":          rel,
		"items":         items,
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	root := r.URL.Query().Get("root_dir_path")
	if root == "" {
		root = s.Roots.Primary()
	}
	rel := r.URL.Query().Get("file")
	if rel == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file parameter is required"})
		return
	}
	abs, err := fsutil.Resolve(s.Roots, root, rel, fsutil.File)
	if err != nil {
		s.writeResolveError(w, r, err, root, rel)
		return
	}

	token := ctxString(r, ctxToken)
	s.Auth.BeginTransfer(token)
	defer s.Auth.EndTransfer(token)

	s.serveFileRange(w, r, abs, streamOptions{forceAttachment: true})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	root := r.FormValue("root_dir_path")
	if root == "" {
		root = s.Roots.Primary()
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file part is required"})
		return
	}
	defer file.Close()

	dst, err := fsutil.ResolveNewFile(s.Roots, root, hdr.Filename)
	if err != nil {
		s.writeResolveError(w, r, err, root, hdr.Filename)
		return
	}

	token := ctxString(r, ctxToken)
	s.Auth.BeginTransfer(token)
	defer s.Auth.EndTransfer(token)

	if err := writeUpload(dst, file); err != nil {
		s.Logger.Error("upload failed", "path", dst, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Error saving file"})
		return
	}
	s.Logger.Info("upload complete",
		"username", ctxString(r, ctxUsername), "path", dst, "size", hdr.Size)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"filename": filepath.Base(dst),
	})
}

// writeUpload streams the part to a uniquely named temp file next to
// the destination, then renames it into place so a failed upload
// never leaves a truncated file under the final name.
func writeUpload(dst string, src io.Reader) error {
	dir := filepath.Dir(dst)
	tmp := filepath.Join(dir, "up-"+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (s *Server) handleGetPublicLink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	root := r.URL.Query().Get("root_dir_path")
	if root == "" {
		root = s.Roots.Primary()
	}
	rel := r.URL.Query().Get("file")
	if rel == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file parameter is required"})
		return
	}
	if _, err := fsutil.Resolve(s.Roots, root, rel, fsutil.File); err != nil {
		s.writeResolveError(w, r, err, root, rel)
		return
	}
	key, created, err := s.Links.GetOrCreate(root, rel)
	if err != nil {
		s.Logger.Error("public link create failed", "root", root, "file", rel, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Error saving public link"})
		return
	}
	if created {
		s.Logger.Info("public link created",
			"username", ctxString(r, ctxUsername), "root", root, "file", rel)
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"public_url": PublicURL(root, rel, key),
	})
}

// PublicURL renders the shareable path for a linked file. Root and
// relative path are each escaped as a single segment, so the root is
// always exactly one path element in the URL.
func PublicURL(root, rel, key string) string {
	return "/public/" + url.PathEscape(root) + "/" + url.PathEscape(rel) + "?key=" + key
}

// handlePublic serves a publicly linked file. No session is involved:
// the capability key in the query is the whole proof of access.
func (s *Server) handlePublic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	root, rel, ok := parsePublicPath(r.URL.EscapedPath())
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Malformed public link"})
		return
	}
	if !s.Roots.Contains(root) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "File not found"})
		return
	}
	if !s.Links.Verify(root, rel, r.URL.Query().Get("key")) {
		s.Logger.Warn("public link key rejected", "root", root, "file", rel, "remote_ip", clientIP(r))
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid link key"})
		return
	}
	abs, err := fsutil.Resolve(s.Roots, root, rel, fsutil.File)
	if err != nil {
		s.writeResolveError(w, r, err, root, rel)
		return
	}
	s.serveFileRange(w, r, abs, streamOptions{})
}

// parsePublicPath splits "/public/<root>/<rel...>" into its unescaped
// root and relative path. The first segment is the root; the rest,
// slashes included, is the relative path.
func parsePublicPath(escaped string) (root, rel string, ok bool) {
	rest := strings.TrimPrefix(escaped, "/public/")
	if rest == escaped || rest == "" {
		return "", "", false
	}
	seg, relEsc, found := strings.Cut(rest, "/")
	if !found || seg == "" || relEsc == "" {
		return "", "", false
	}
	root, err := url.PathUnescape(seg)
	if err != nil {
		return "", "", false
	}
	parts := strings.Split(relEsc, "/")
	for i, p := range parts {
		if parts[i], err = url.PathUnescape(p); err != nil {
			return "", "", false
		}
	}
	return root, strings.Join(parts, "/"), true
}

func (s *Server) handleGetRootDirs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"root_dirs": s.Roots.List()})
}

func (s *Server) handleAddRootDir(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	abs, err := validate.RootPath(r.FormValue("path"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.Roots.Add(abs); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, rootset.ErrExists) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	s.Logger.Info("root directory added", "path", abs, "username", ctxString(r, ctxUsername))
	writeJSON(w, http.StatusOK, map[string]any{"message": "Root directory added", "root_dirs": s.Roots.List()})
}

func (s *Server) handleRemoveRootDir(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	p := r.FormValue("path")
	if strings.TrimSpace(p) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "path is required"})
		return
	}
	if err := s.Roots.Remove(p); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, rootset.ErrLastRoot):
			status = http.StatusBadRequest
		case errors.Is(err, rootset.ErrNotFound):
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	s.Logger.Info("root directory removed", "path", p, "username", ctxString(r, ctxUsername))
	writeJSON(w, http.StatusOK, map[string]any{"message": "Root directory removed", "root_dirs": s.Roots.List()})
}

// handleSetRootDir answers the retired single-root endpoint.
func (s *Server) handleSetRootDir(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusGone, map[string]string{
		"error": "set_root_dir is no longer supported; use add_root_dir and remove_root_dir",
	})
}

func (s *Server) handleAllFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	primary := s.Roots.Primary()
	entries, err := os.ReadDir(primary)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Root directory missing"})
			return
		}
		s.Logger.Error("read dir failed", "path", primary, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Error reading directory"})
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	writeJSON(w, http.StatusOK, map[string]any{"files": names})
}

func (s *Server) handleGetAllUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": s.Users.List()})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	username := r.FormValue("new_username")
	password := r.FormValue("new_password")
	role := r.FormValue("role")
	if err := validate.Username(username); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password is required"})
		return
	}
	if err := validate.Role(role); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.Users.Create(username, password, role); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, userstore.ErrExists) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	s.Logger.Info("user created", "username", username, "role", role,
		"by", ctxString(r, ctxUsername))
	writeJSON(w, http.StatusOK, map[string]string{"message": "User created"})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	username := r.FormValue("username")
	if username == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username is required"})
		return
	}
	if username == ctxString(r, ctxUsername) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot delete your own account"})
		return
	}
	if err := s.Users.Delete(username); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, userstore.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, userstore.ErrLastAdmin):
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	s.Auth.InvalidateUser(username)
	s.Logger.Info("user deleted", "username", username, "by", ctxString(r, ctxUsername))
	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted"})
}

func (s *Server) handleUserChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	username := r.FormValue("username")
	password := r.FormValue("new_password")
	if username == "" || password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username and new_password are required"})
		return
	}
	if err := s.Users.SetPassword(username, password); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, userstore.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	s.Auth.InvalidateUser(username)
	s.Logger.Info("password reset", "username", username, "by", ctxString(r, ctxUsername))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}

func (s *Server) handleGetAllPublicLinks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"public_links": s.Links.All()})
}

func (s *Server) handleDeletePublicLink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	composite := r.FormValue("composite_key")
	if composite == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "composite_key is required"})
		return
	}
	existed, err := s.Links.Delete(composite)
	if err != nil {
		s.Logger.Error("public link delete failed", "key", composite, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Error saving public links"})
		return
	}
	if !existed {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Public link not found"})
		return
	}
	s.Logger.Info("public link deleted", "key", composite, "by", ctxString(r, ctxUsername))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Public link deleted"})
}

func (s *Server) handleClearAllPublicLinks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	n, err := s.Links.Clear()
	if err != nil {
		s.Logger.Error("public link clear failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Error saving public links"})
		return
	}
	s.Logger.Info("public links cleared", "count", n, "by", ctxString(r, ctxUsername))
	writeJSON(w, http.StatusOK, map[string]any{"cleared": n})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeResolveError maps fsutil rejections to HTTP statuses.
// Traversal attempts get their own log line so they stand out from
// ordinary missing files.
func (s *Server) writeResolveError(w http.ResponseWriter, r *http.Request, err error, root, rel string) {
	switch {
	case errors.Is(err, fsutil.ErrTraversal):
		s.Logger.Warn("path traversal rejected",
			"root", root, "path", rel, "remote_ip", clientIP(r), "url", r.URL.Path)
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Invalid path"})
	case errors.Is(err, fsutil.ErrRootNotServed):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Root directory is not served"})
	case errors.Is(err, fsutil.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "File not found"})
	case errors.Is(err, fsutil.ErrWrongKind), errors.Is(err, fsutil.ErrBadName):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid path"})
	default:
		s.Logger.Error("path resolution failed", "root", root, "path", rel, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}
