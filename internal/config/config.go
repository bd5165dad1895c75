// Package config loads and validates the binglehttp YAML configuration.
// Defaults are applied before validation so callers always see a fully
// populated Config.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file the server command looks for when no
// -config flag is given.
const DefaultPath = "binglehttp.yaml"

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// HTTPConfig holds HTTP listener settings.
type HTTPConfig struct {
	Bind        string `yaml:"bind"`
	Port        int    `yaml:"port"`
	MaxConns    int    `yaml:"max_conns"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// AuthConfig holds session and login throttling settings.
type AuthConfig struct {
	TokenTTLMinutes  int `yaml:"token_ttl_minutes"`
	LoginWindowSecs  int `yaml:"login_window_seconds"`
	LoginMaxAttempts int `yaml:"login_max_attempts"`
}

// StoreConfig holds the on-disk JSON store locations. File names are
// resolved relative to DataDir.
type StoreConfig struct {
	DataDir   string `yaml:"data_dir"`
	UsersFile string `yaml:"users_file"`
	LinksFile string `yaml:"links_file"`
	RootsFile string `yaml:"roots_file"`
}

// Config mirrors the binglehttp.yaml schema.
type Config struct {
	Log   LogConfig   `yaml:"log"`
	HTTP  HTTPConfig  `yaml:"http"`
	Auth  AuthConfig  `yaml:"auth"`
	Store StoreConfig `yaml:"store"`
}

// Default returns the configuration used when no config file is present.
func Default() Config {
	var c Config
	applyDefaults(&c)
	return c
}

// Load reads a YAML config file, applies defaults, and validates it.
func Load(path string) (Config, error) {
	var c Config
	if path == "" {
		return c, errors.New("config path is required")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, err
	}
	applyDefaults(&c)
	if err := validate(&c); err != nil {
		return Config{}, err
	}
	return c, nil
}

// TokenTTL returns the configured session lifetime as a duration.
func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}

// LoginWindow returns the login rate-limit window as a duration.
func (c Config) LoginWindow() time.Duration {
	return time.Duration(c.Auth.LoginWindowSecs) * time.Second
}

// UsersPath returns the users store location under the data dir.
func (c Config) UsersPath() string { return filepath.Join(c.Store.DataDir, c.Store.UsersFile) }

// LinksPath returns the public-link store location under the data dir.
func (c Config) LinksPath() string { return filepath.Join(c.Store.DataDir, c.Store.LinksFile) }

// RootsPath returns the root-set store location under the data dir.
func (c Config) RootsPath() string { return filepath.Join(c.Store.DataDir, c.Store.RootsFile) }

// applyDefaults populates zero values with the documented defaults.
// The listener defaults match the original deployment: all interfaces,
// port 6799, five hour sessions.
func applyDefaults(c *Config) {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.HTTP.Bind == "" {
		c.HTTP.Bind = "0.0.0.0"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 6799
	}
	if c.HTTP.MaxUploadMB == 0 {
		c.HTTP.MaxUploadMB = 1024
	}
	if c.Auth.TokenTTLMinutes == 0 {
		c.Auth.TokenTTLMinutes = 300
	}
	if c.Auth.LoginWindowSecs == 0 {
		c.Auth.LoginWindowSecs = 60
	}
	if c.Auth.LoginMaxAttempts == 0 {
		c.Auth.LoginMaxAttempts = 20
	}
	if c.Store.DataDir == "" {
		c.Store.DataDir = "."
	}
	if c.Store.UsersFile == "" {
		c.Store.UsersFile = "users.json"
	}
	if c.Store.LinksFile == "" {
		c.Store.LinksFile = "public_links.json"
	}
	if c.Store.RootsFile == "" {
		c.Store.RootsFile = "root_dir.json"
	}
}

// validate performs sanity checks on ranges and required fields.
func validate(c *Config) error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return errors.New("http.port is invalid")
	}
	if c.HTTP.MaxConns < 0 {
		return errors.New("http.max_conns is invalid")
	}
	if c.HTTP.MaxUploadMB < 1 || c.HTTP.MaxUploadMB > 102400 {
		return errors.New("http.max_upload_mb is invalid")
	}
	if c.Auth.TokenTTLMinutes < 1 {
		return errors.New("auth.token_ttl_minutes is invalid")
	}
	if c.Auth.LoginWindowSecs < 1 || c.Auth.LoginMaxAttempts < 1 {
		return errors.New("auth login throttle settings are invalid")
	}
	if c.Store.DataDir == "" || c.Store.UsersFile == "" || c.Store.LinksFile == "" || c.Store.RootsFile == "" {
		return errors.New("store paths are required")
	}
	return nil
}
