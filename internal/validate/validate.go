// Package validate contains simple input validation helpers.
package validate

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"
)

// usernameRe enforces a conservative username pattern.
var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,63}$`)

// Username validates a username for length and allowed characters.
func Username(s string) error {
	if !usernameRe.MatchString(s) {
		return errors.New("invalid username")
	}
	return nil
}

// Role validates an account role string.
func Role(s string) error {
	if s != "admin" && s != "user" {
		return errors.New("role must be admin or user")
	}
	return nil
}

// RootPath normalizes a share root path to its absolute form. Volume
// roots are rejected so a typo cannot share the whole filesystem.
func RootPath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", errors.New("root path is required")
	}
	abs, err := filepath.Abs(strings.TrimSpace(p))
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)
	if filepath.Dir(abs) == abs {
		return "", errors.New("root path cannot be filesystem root")
	}
	return strings.TrimRight(abs, string(filepath.Separator)), nil
}
