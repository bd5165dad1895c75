// Package setup implements first-run initialization and the admin
// password reset workflow.
package setup

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/BingleP/BinglesHTTPServer/internal/config"
	"github.com/BingleP/BinglesHTTPServer/internal/logging"
	"github.com/BingleP/BinglesHTTPServer/internal/rootset"
	"github.com/BingleP/BinglesHTTPServer/internal/userstore"
	"github.com/BingleP/BinglesHTTPServer/internal/validate"
)

// Options configures first-run setup.
type Options struct {
	DataDir   string
	AdminUser string
	// Force replaces an existing users file instead of refusing.
	Force bool
}

// Run creates the data files and the initial admin account. An
// existing users file is left alone unless Force is set.
func Run(opt Options) error {
	if opt.DataDir == "" {
		opt.DataDir = "."
	}
	if opt.AdminUser == "" {
		opt.AdminUser = userstore.DefaultAdminUser
	}
	if err := validate.Username(opt.AdminUser); err != nil {
		return err
	}
	if err := os.MkdirAll(opt.DataDir, 0o700); err != nil {
		return err
	}

	cfg := config.Default()
	cfg.Store.DataDir = opt.DataDir

	if _, err := os.Stat(cfg.UsersPath()); err == nil {
		if !opt.Force {
			return fmt.Errorf("%s already exists; re-run with -force to replace it", cfg.UsersPath())
		}
		if err := os.Remove(cfg.UsersPath()); err != nil {
			return err
		}
	}

	password := strings.TrimSpace(os.Getenv("BINGLE_ADMIN_PASSWORD"))
	if password == "" {
		p, err := PromptPassword("Set admin password")
		if err != nil {
			return err
		}
		password = p
	}

	lg, err := logging.New(logging.Options{Level: "error"})
	if err != nil {
		return err
	}
	users, err := userstore.Open(cfg.UsersPath(), lg)
	if err != nil {
		return err
	}
	// Open seeded the default account; move it onto the requested
	// name with the chosen password.
	if err := users.Rename(userstore.DefaultAdminUser, opt.AdminUser, password); err != nil {
		return err
	}

	roots, err := rootset.Open(cfg.RootsPath(), lg)
	if err != nil {
		return err
	}
	if err := roots.EnsureExist(); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "created admin account %q and root directory %q under %s\n",
		opt.AdminUser, roots.Primary(), opt.DataDir)
	return nil
}

// PromptPassword reads a password twice from the terminal with echo
// suppressed, falling back to plain line reads when stdin is piped.
func PromptPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		for {
			fmt.Fprintf(os.Stderr, "%s: ", label)
			p1b, err := term.ReadPassword(fd)
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return "", err
			}
			fmt.Fprint(os.Stderr, "Confirm password: ")
			p2b, err := term.ReadPassword(fd)
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return "", err
			}
			p1 := strings.TrimSpace(string(p1b))
			p2 := strings.TrimSpace(string(p2b))
			if p1 == "" {
				fmt.Fprintln(os.Stderr, "password cannot be empty")
				continue
			}
			if p1 != p2 {
				fmt.Fprintln(os.Stderr, "passwords do not match")
				continue
			}
			return p1, nil
		}
	}

	r := bufio.NewReader(os.Stdin)
	for {
		fmt.Fprintf(os.Stderr, "%s: ", label)
		p1, err := r.ReadString('\n')
		if err != nil {
			return "", err
		}
		fmt.Fprint(os.Stderr, "Confirm password: ")
		p2, err := r.ReadString('\n')
		if err != nil {
			return "", err
		}
		p1 = strings.TrimSpace(p1)
		p2 = strings.TrimSpace(p2)
		if p1 == "" {
			fmt.Fprintln(os.Stderr, "password cannot be empty")
			continue
		}
		if p1 != p2 {
			fmt.Fprintln(os.Stderr, "passwords do not match")
			continue
		}
		return p1, nil
	}
}

// ErrNotAdmin is returned when reset-admin targets a non-admin account.
var ErrNotAdmin = errors.New("account is not an admin")
