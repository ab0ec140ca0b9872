// Package main validates the embedded era definitions.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/epochforge/epochforge/internal/cmd/validateeras"
	entrypoint "github.com/epochforge/epochforge/internal/platform/cmd"
	"github.com/epochforge/epochforge/internal/platform/config"
)

func main() {
	log.SetPrefix("[GAME] ")

	fs := flag.NewFlagSet(entrypoint.ToolValidateEras, flag.ExitOnError)
	cfg, err := validateeras.ParseConfig(fs, os.Args[1:])
	if err != nil {
		config.Exitf("validate-eras: %v", err)
	}
	if err := validateeras.Run(context.Background(), cfg, os.Stdout); err != nil {
		config.Exitf("validate-eras: %v", err)
	}
}
