// Package cmd provides shared flag and environment plumbing for command
// entry points.
package cmd

import (
	"errors"
	"flag"

	"github.com/epochforge/epochforge/internal/platform/config"
)

// Tool identifiers for CLI naming consistency.
const (
	ToolSeed         = "seed"
	ToolValidateEras = "validate-eras"
	ToolUpgradeKeys  = "upgrade-keys"
)

// ParseConfig loads environment defaults into cfg.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnv(cfg)
}

// ParseArgs parses command-line flags.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// ParseConfigFromArgs loads defaults from env and then parses flags.
func ParseConfigFromArgs[T any](cfg *T, fs *flag.FlagSet, args []string) error {
	if err := ParseConfig(cfg); err != nil {
		return err
	}
	return ParseArgs(fs, args)
}
