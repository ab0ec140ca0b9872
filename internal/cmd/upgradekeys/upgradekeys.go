// Package upgradekeys mints single-use pro upgrade keys.
package upgradekeys

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	entrypoint "github.com/epochforge/epochforge/internal/platform/cmd"
	"github.com/epochforge/epochforge/internal/platform/id"
	"github.com/epochforge/epochforge/internal/storage"
	"github.com/epochforge/epochforge/internal/storage/sqlite"
)

// Config holds upgrade-keys command configuration.
type Config struct {
	DBPath string `env:"EPOCHFORGE_DB_PATH" envDefault:"data/epochforge.db"`
	Count  int    `env:"EPOCHFORGE_KEY_COUNT" envDefault:"1"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to the sqlite database")
	fs.IntVar(&cfg.Count, "count", cfg.Count, "number of keys to mint")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run mints the requested number of keys and writes them to out, one per
// line.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	return Mint(ctx, store, cfg.Count, out)
}

// Mint creates count keys in the store and prints them.
func Mint(ctx context.Context, store storage.UpgradeKeyStore, count int, out io.Writer) error {
	if count < 1 {
		return fmt.Errorf("count must be at least 1, got %d", count)
	}
	now := time.Now().UTC()
	for i := 0; i < count; i++ {
		key, err := id.NewID()
		if err != nil {
			return fmt.Errorf("new key: %w", err)
		}
		if err := store.CreateUpgradeKey(ctx, storage.UpgradeKey{Key: key, CreatedAt: now}); err != nil {
			return fmt.Errorf("create key: %w", err)
		}
		fmt.Fprintln(out, key)
	}
	return nil
}
