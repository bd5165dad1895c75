// Package server implements the "binglehttp server" subcommand.
package server

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/BingleP/BinglesHTTPServer/internal/config"
	"github.com/BingleP/BinglesHTTPServer/internal/daemon"
	"github.com/BingleP/BinglesHTTPServer/internal/logging"
	"github.com/BingleP/BinglesHTTPServer/internal/version"
)

// Options captures server flags. Precedence is flags over environment
// over config file.
type Options struct {
	ConfigPath string
	BindAddr   string
	Port       int
	LogLevel   string
	DataDir    string
}

func Run(args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	var opt Options
	var showVersion bool
	fs.StringVar(&opt.ConfigPath, "config", "", "path to binglehttp.yaml")
	fs.StringVar(&opt.BindAddr, "addr", "", "bind address (overrides config)")
	fs.IntVar(&opt.Port, "port", 0, "listen port (overrides config)")
	fs.StringVar(&opt.LogLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")
	fs.StringVar(&opt.DataDir, "data-dir", "", "directory for users.json, root_dir.json, public_links.json (overrides config)")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if showVersion {
		fmt.Printf("binglehttp server %s\n", version.Version)
		return nil
	}

	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	cfgPath := opt.ConfigPath
	if cfgPath == "" {
		cfgPath = os.Getenv("BINGLE_CONFIG")
	}

	var cfg config.Config
	switch {
	case cfgPath != "":
		c, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config %s: %w", cfgPath, err)
		}
		cfg = c
	default:
		if _, err := os.Stat(config.DefaultPath); err == nil {
			c, err := config.Load(config.DefaultPath)
			if err != nil {
				return fmt.Errorf("load config %s: %w", config.DefaultPath, err)
			}
			cfg = c
		} else {
			cfg = config.Default()
		}
	}

	if v := os.Getenv("BINGLE_PORT"); v != "" {
		p, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("BINGLE_PORT: %w", err)
		}
		cfg.HTTP.Port = p
	}
	if v := os.Getenv("BINGLE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if opt.BindAddr != "" {
		cfg.HTTP.Bind = opt.BindAddr
	}
	if opt.Port != 0 {
		cfg.HTTP.Port = opt.Port
	}
	if opt.LogLevel != "" {
		cfg.Log.Level = opt.LogLevel
	}
	if opt.DataDir != "" {
		cfg.Store.DataDir = opt.DataDir
	}

	lg, err := logging.New(logging.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return daemon.Run(ctx, daemon.Options{Config: cfg, Logger: lg})
}
