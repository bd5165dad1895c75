package auth

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultTokenTTL is the session lifetime when none is configured.
const DefaultTokenTTL = 5 * time.Hour

// Role names stored on sessions and user accounts.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// session is the server-side record behind an issued token.
type session struct {
	username  string
	role      string
	ip        string
	createdAt time.Time
}

// Authority issues and validates session tokens. Tokens are opaque hex
// strings bound to the client IP they were issued to. A token expires
// TTL after creation unless a transfer marker is active for it, in
// which case validation renews it in place so long uploads and
// downloads are not cut off mid-stream.
//
// The session table and the transfer-marker set are guarded by
// separate mutexes which are never held at the same time.
type Authority struct {
	ttl time.Duration
	log *slog.Logger
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*session

	transferMu sync.Mutex
	transfers  map[string]struct{}
}

// NewAuthority builds an Authority with the given session TTL.
// A zero or negative ttl selects DefaultTokenTTL.
func NewAuthority(ttl time.Duration, lg *slog.Logger) *Authority {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if lg == nil {
		lg = slog.Default()
	}
	return &Authority{
		ttl:       ttl,
		log:       lg,
		now:       time.Now,
		sessions:  make(map[string]*session),
		transfers: make(map[string]struct{}),
	}
}

// Issue creates a fresh token for username bound to ip.
// Callers enforcing single-session semantics should call
// InvalidateUser first.
func (a *Authority) Issue(username, role, ip string) (string, error) {
	token, err := NewSessionToken()
	if err != nil {
		return "", err
	}
	a.mu.Lock()
	a.sessions[token] = &session{
		username:  username,
		role:      role,
		ip:        ip,
		createdAt: a.now(),
	}
	a.mu.Unlock()
	return token, nil
}

// Validate reports whether token is usable from ip. Unknown tokens and
// IP mismatches fail. An expired token is renewed in place when a
// transfer marker is active for it, otherwise it is deleted.
func (a *Authority) Validate(token, ip string) bool {
	if token == "" {
		return false
	}
	a.mu.Lock()
	s, ok := a.sessions[token]
	if !ok {
		a.mu.Unlock()
		return false
	}
	if !sameClient(s.ip, ip) {
		bound := s.ip
		a.mu.Unlock()
		a.log.Warn("token rejected: client address mismatch",
			"bound_ip", bound, "remote_ip", ip)
		return false
	}
	expired := a.now().Sub(s.createdAt) > a.ttl
	a.mu.Unlock()
	if !expired {
		return true
	}

	a.transferMu.Lock()
	_, active := a.transfers[token]
	a.transferMu.Unlock()

	a.mu.Lock()
	s, ok = a.sessions[token]
	if !ok {
		a.mu.Unlock()
		return false
	}
	if a.now().Sub(s.createdAt) <= a.ttl {
		// Renewed by a concurrent request in the meantime.
		a.mu.Unlock()
		return true
	}
	if active {
		s.createdAt = a.now()
		user := s.username
		a.mu.Unlock()
		a.log.Debug("expired token renewed during transfer", "user", user)
		return true
	}
	delete(a.sessions, token)
	a.mu.Unlock()

	a.transferMu.Lock()
	delete(a.transfers, token)
	a.transferMu.Unlock()
	return false
}

// Username returns the account a token belongs to, or "" if unknown.
func (a *Authority) Username(token string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.sessions[token]; ok {
		return s.username
	}
	return ""
}

// Role returns the role recorded on a token, or "" if unknown.
func (a *Authority) Role(token string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.sessions[token]; ok {
		return s.role
	}
	return ""
}

// Invalidate drops a single token.
func (a *Authority) Invalidate(token string) {
	a.mu.Lock()
	delete(a.sessions, token)
	a.mu.Unlock()

	a.transferMu.Lock()
	delete(a.transfers, token)
	a.transferMu.Unlock()
}

// InvalidateUser drops every token belonging to username and returns
// how many were removed. Used on fresh login, logout, and credential
// changes.
func (a *Authority) InvalidateUser(username string) int {
	a.mu.Lock()
	var dropped []string
	for t, s := range a.sessions {
		if s.username == username {
			delete(a.sessions, t)
			dropped = append(dropped, t)
		}
	}
	a.mu.Unlock()

	if len(dropped) > 0 {
		a.transferMu.Lock()
		for _, t := range dropped {
			delete(a.transfers, t)
		}
		a.transferMu.Unlock()
	}
	return len(dropped)
}

// BeginTransfer marks an upload or download in flight for token.
func (a *Authority) BeginTransfer(token string) {
	a.transferMu.Lock()
	a.transfers[token] = struct{}{}
	a.transferMu.Unlock()
}

// EndTransfer clears the transfer marker for token. Callers defer this
// next to BeginTransfer so markers never outlive their transfer.
func (a *Authority) EndTransfer(token string) {
	a.transferMu.Lock()
	delete(a.transfers, token)
	a.transferMu.Unlock()
}

// TransferCount returns the number of transfers currently marked.
func (a *Authority) TransferCount() int {
	a.transferMu.Lock()
	defer a.transferMu.Unlock()
	return len(a.transfers)
}

// Sweep removes expired sessions with no transfer in flight and
// returns how many were dropped. The daemon runs this on a ticker.
func (a *Authority) Sweep() int {
	now := a.now()
	a.mu.Lock()
	var candidates []string
	for t, s := range a.sessions {
		if now.Sub(s.createdAt) > a.ttl {
			candidates = append(candidates, t)
		}
	}
	a.mu.Unlock()
	if len(candidates) == 0 {
		return 0
	}

	a.transferMu.Lock()
	active := make(map[string]bool, len(candidates))
	for _, t := range candidates {
		if _, ok := a.transfers[t]; ok {
			active[t] = true
		}
	}
	a.transferMu.Unlock()

	removed := 0
	a.mu.Lock()
	for _, t := range candidates {
		if active[t] {
			continue
		}
		s, ok := a.sessions[t]
		if !ok || a.now().Sub(s.createdAt) <= a.ttl {
			continue
		}
		delete(a.sessions, t)
		removed++
	}
	a.mu.Unlock()
	return removed
}

// isLoopbackName matches the spellings local clients present under.
func isLoopbackName(ip string) bool {
	switch ip {
	case "127.0.0.1", "::1", "localhost":
		return true
	}
	return false
}

// sameClient compares the bound and observed client addresses, treating
// all loopback spellings as one client.
func sameClient(bound, remote string) bool {
	if bound == remote {
		return true
	}
	return isLoopbackName(bound) && isLoopbackName(remote)
}
