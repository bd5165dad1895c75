// Package daemon opens the stores and runs the HTTP server until the
// context is cancelled.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/netutil"

	"github.com/BingleP/BinglesHTTPServer/internal/auth"
	"github.com/BingleP/BinglesHTTPServer/internal/config"
	"github.com/BingleP/BinglesHTTPServer/internal/httpapi"
	"github.com/BingleP/BinglesHTTPServer/internal/linkstore"
	"github.com/BingleP/BinglesHTTPServer/internal/rootset"
	"github.com/BingleP/BinglesHTTPServer/internal/userstore"
)

// sweepInterval is how often expired sessions are reaped.
const sweepInterval = 15 * time.Minute

// Options configures a daemon run.
type Options struct {
	Config config.Config
	Logger *slog.Logger
}

// Run serves the API until ctx is cancelled, then shuts down
// gracefully. Active transfers get a grace period to finish.
func Run(ctx context.Context, opt Options) error {
	lg := opt.Logger
	if lg == nil {
		lg = slog.Default()
	}
	cfg := opt.Config

	users, err := userstore.Open(cfg.UsersPath(), lg)
	if err != nil {
		return err
	}
	roots, err := rootset.Open(cfg.RootsPath(), lg)
	if err != nil {
		return err
	}
	if err := roots.EnsureExist(); err != nil {
		return err
	}
	links, err := linkstore.Open(cfg.LinksPath())
	if err != nil {
		return err
	}
	authority := auth.NewAuthority(cfg.TokenTTL(), lg)

	api := &httpapi.Server{
		Auth:             authority,
		Users:            users,
		Roots:            roots,
		Links:            links,
		Logger:           lg,
		MaxUploadBytes:   int64(cfg.HTTP.MaxUploadMB) << 20,
		LoginMaxAttempts: cfg.Auth.LoginMaxAttempts,
		LoginWindow:      cfg.LoginWindow(),
	}

	addr := net.JoinHostPort(cfg.HTTP.Bind, strconv.Itoa(cfg.HTTP.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if cfg.HTTP.MaxConns > 0 {
		ln = netutil.LimitListener(ln, cfg.HTTP.MaxConns)
	}

	srv := &http.Server{
		Handler:           api.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := authority.Sweep(); n > 0 {
					lg.Info("expired sessions removed", "count", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	lg.Info("listening", "addr", addr, "roots", roots.List())

	select {
	case err := <-errCh:
		<-sweepDone
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	lg.Info("shutting down")
	err = srv.Shutdown(shutdownCtx)
	<-sweepDone
	if errors.Is(err, context.DeadlineExceeded) {
		return srv.Close()
	}
	return err
}
