// Package admin implements the "binglehttp admin" one-shot CLI for
// inspecting users and managing public links on a running server.
package admin

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/BingleP/BinglesHTTPServer/internal/adminapi"
	"github.com/BingleP/BinglesHTTPServer/internal/setup"
)

type Options struct {
	Addr     string
	Token    string
	Username string
}

func Run(args []string) error {
	fs := flag.NewFlagSet("admin", flag.ContinueOnError)
	var opt Options
	fs.StringVar(&opt.Addr, "addr", "http://127.0.0.1:6799", "server address")
	fs.StringVar(&opt.Token, "token", "", "admin session token (skip login)")
	fs.StringVar(&opt.Username, "username", "Admin", "admin account for login when no token is given")
	if err := fs.Parse(args); err != nil {
		return err
	}
	action := fs.Arg(0)
	if action == "" {
		return fmt.Errorf("usage: binglehttp admin [flags] <users|links|roots|delete-link|clear-links>")
	}

	c, err := adminapi.NewClient(adminapi.ClientOptions{Addr: opt.Addr, Token: opt.Token})
	if err != nil {
		return err
	}
	if opt.Token == "" {
		password, err := setup.PromptPassword(fmt.Sprintf("Password for %s", opt.Username))
		if err != nil {
			return err
		}
		if _, err := c.Login(opt.Username, password); err != nil {
			return fmt.Errorf("login: %w", err)
		}
	}

	switch action {
	case "users":
		users, err := c.ListUsers()
		if err != nil {
			return err
		}
		for _, u := range users {
			fmt.Printf("%s\t%s\n", u.Username, u.Role)
		}
	case "links":
		links, err := c.ListLinks()
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(links))
		for k := range links {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%s\t%s\n", k, links[k])
		}
	case "roots":
		roots, err := c.ListRoots()
		if err != nil {
			return err
		}
		for _, r := range roots {
			fmt.Println(r)
		}
	case "delete-link":
		key := fs.Arg(1)
		if key == "" {
			return fmt.Errorf("delete-link requires a composite key argument")
		}
		if err := c.DeleteLink(key); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "deleted")
	case "clear-links":
		n, err := c.ClearLinks()
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "cleared %d links\n", n)
	default:
		return fmt.Errorf("unknown action: %s", action)
	}
	return nil
}
