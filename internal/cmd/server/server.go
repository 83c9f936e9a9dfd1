// Package server parses tracker command flags and composes the process
// entrypoint.
package server

import (
	"context"
	"flag"
	"fmt"

	"github.com/veritest/veritest/internal/platform/config"
	app "github.com/veritest/veritest/internal/services/tracker/app"
)

// Config holds tracker command configuration.
type Config struct {
	HTTPAddr    string `env:"VERITEST_HTTP_ADDR"    envDefault:":8080"`
	StoragePath string `env:"VERITEST_STORAGE_PATH" envDefault:"tracker.db"`
	JWTSecret   string `env:"VERITEST_JWT_SECRET"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "tracker HTTP listen address")
	fs.StringVar(&cfg.StoragePath, "storage-path", cfg.StoragePath, "sqlite database path")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "bearer token signing secret")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the tracker app and serves until the context ends.
func Run(ctx context.Context, cfg Config) error {
	if err := app.Run(ctx, app.Config{
		HTTPAddr:    cfg.HTTPAddr,
		StoragePath: cfg.StoragePath,
		JWTSecret:   cfg.JWTSecret,
	}); err != nil {
		return fmt.Errorf("serve tracker: %w", err)
	}
	return nil
}
