// Package setup implements the "binglehttp setup" CLI subcommand.
package setup

import (
	"flag"

	isetup "github.com/BingleP/BinglesHTTPServer/internal/setup"
)

func Run(args []string) error {
	fs := flag.NewFlagSet("setup", flag.ContinueOnError)
	var opt isetup.Options
	fs.StringVar(&opt.DataDir, "data-dir", ".", "directory for users.json, root_dir.json, public_links.json")
	fs.StringVar(&opt.AdminUser, "admin-user", "Admin", "initial admin username")
	fs.BoolVar(&opt.Force, "force", false, "replace an existing users file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return isetup.Run(opt)
}
