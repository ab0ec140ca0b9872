// Package main seeds starter object definitions into the game database.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/epochforge/epochforge/internal/cmd/seed"
	entrypoint "github.com/epochforge/epochforge/internal/platform/cmd"
	"github.com/epochforge/epochforge/internal/platform/config"
)

func main() {
	log.SetPrefix("[GAME] ")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fs := flag.NewFlagSet(entrypoint.ToolSeed, flag.ExitOnError)
	cfg, err := seed.ParseConfig(fs, os.Args[1:])
	if err != nil {
		config.Exitf("seed: %v", err)
	}
	if err := seed.Run(ctx, cfg); err != nil {
		config.Exitf("seed: %v", err)
	}
}
