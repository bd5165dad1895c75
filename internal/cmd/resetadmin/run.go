// Package resetadmin implements the "binglehttp reset-admin" CLI
// subcommand. It resets an admin account's password directly in the
// users file.
package resetadmin

import (
	"flag"

	isetup "github.com/BingleP/BinglesHTTPServer/internal/setup"
)

func Run(args []string) error {
	fs := flag.NewFlagSet("reset-admin", flag.ContinueOnError)
	var opt isetup.ResetAdminOptions
	fs.StringVar(&opt.DataDir, "data-dir", ".", "directory holding users.json")
	fs.StringVar(&opt.Username, "username", "Admin", "admin account to reset")
	fs.BoolVar(&opt.PasswordEnv, "password-env", false, "read the new password from BINGLE_ADMIN_PASSWORD")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return isetup.ResetAdmin(opt)
}
