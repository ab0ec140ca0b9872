// Package main mints single-use pro upgrade keys.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/epochforge/epochforge/internal/cmd/upgradekeys"
	entrypoint "github.com/epochforge/epochforge/internal/platform/cmd"
	"github.com/epochforge/epochforge/internal/platform/config"
)

func main() {
	log.SetPrefix("[GAME] ")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fs := flag.NewFlagSet(entrypoint.ToolUpgradeKeys, flag.ExitOnError)
	cfg, err := upgradekeys.ParseConfig(fs, os.Args[1:])
	if err != nil {
		config.Exitf("upgrade-keys: %v", err)
	}
	if err := upgradekeys.Run(ctx, cfg, os.Stdout); err != nil {
		config.Exitf("upgrade-keys: %v", err)
	}
}
