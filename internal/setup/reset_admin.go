package setup

import (
	"fmt"
	"os"
	"strings"

	"github.com/BingleP/BinglesHTTPServer/internal/auth"
	"github.com/BingleP/BinglesHTTPServer/internal/config"
	"github.com/BingleP/BinglesHTTPServer/internal/logging"
	"github.com/BingleP/BinglesHTTPServer/internal/userstore"
)

// ResetAdminOptions configures an admin password reset.
type ResetAdminOptions struct {
	DataDir  string
	Username string
	// PasswordEnv reads the new password from BINGLE_ADMIN_PASSWORD
	// instead of prompting.
	PasswordEnv bool
}

// ResetAdmin sets a new password on an existing admin account. It
// works directly on the users file; the server need not be running,
// and a running server's sessions for the account stay valid until
// they expire.
func ResetAdmin(opt ResetAdminOptions) error {
	if opt.DataDir == "" {
		opt.DataDir = "."
	}
	if opt.Username == "" {
		opt.Username = userstore.DefaultAdminUser
	}
	cfg := config.Default()
	cfg.Store.DataDir = opt.DataDir

	lg, err := logging.New(logging.Options{Level: "error"})
	if err != nil {
		return err
	}
	users, err := userstore.Open(cfg.UsersPath(), lg)
	if err != nil {
		return err
	}
	if !users.Exists(opt.Username) {
		return fmt.Errorf("account %q: %w", opt.Username, userstore.ErrNotFound)
	}
	if users.Role(opt.Username) != auth.RoleAdmin {
		return fmt.Errorf("account %q: %w", opt.Username, ErrNotAdmin)
	}

	var password string
	if opt.PasswordEnv {
		password = strings.TrimSpace(os.Getenv("BINGLE_ADMIN_PASSWORD"))
		if password == "" {
			return fmt.Errorf("BINGLE_ADMIN_PASSWORD is empty")
		}
	} else {
		password, err = PromptPassword(fmt.Sprintf("New password for %s", opt.Username))
		if err != nil {
			return err
		}
	}

	if err := users.SetPassword(opt.Username, password); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "password updated for %q\n", opt.Username)
	return nil
}
