// Package seed parses seeding flags and loads starter object definitions
// into the database. Keystones are not seeded; they enter the object table
// through crafting.
package seed

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/epochforge/epochforge/internal/era"
	entrypoint "github.com/epochforge/epochforge/internal/platform/cmd"
	"github.com/epochforge/epochforge/internal/platform/id"
	"github.com/epochforge/epochforge/internal/progression"
	"github.com/epochforge/epochforge/internal/storage"
	"github.com/epochforge/epochforge/internal/storage/sqlite"
)

// Config holds seed command configuration.
type Config struct {
	DBPath      string `env:"EPOCHFORGE_DB_PATH" envDefault:"data/epochforge.db"`
	AdminPlayer string `env:"EPOCHFORGE_ADMIN_PLAYER"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to the sqlite database")
	fs.StringVar(&cfg.AdminPlayer, "admin", cfg.AdminPlayer, "create a fee-exempt admin account with this player id")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run seeds every era's starter objects, idempotently, and optionally
// creates a fee-exempt admin account.
func Run(ctx context.Context, cfg Config) error {
	eras, err := era.Load()
	if err != nil {
		return fmt.Errorf("load eras: %w", err)
	}
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	if err := Starters(ctx, store, eras); err != nil {
		return err
	}
	if cfg.AdminPlayer != "" {
		if err := Admin(ctx, store, eras, cfg.AdminPlayer); err != nil {
			return err
		}
	}
	return nil
}

// Starters inserts each era's starter definitions, skipping names that
// already exist and re-flagging existing rows as starters.
func Starters(ctx context.Context, store storage.Store, eras *era.Table) error {
	now := time.Now().UTC()
	for _, def := range eras.All() {
		for _, spec := range def.Starters {
			existing, err := store.GetObjectByName(ctx, spec.Name)
			switch {
			case err == nil:
				if !existing.IsStarter {
					if err := store.SetObjectStarter(ctx, existing.ID, true); err != nil {
						return fmt.Errorf("flag starter %s: %w", spec.Name, err)
					}
				}
				continue
			case errors.Is(err, storage.ErrNotFound):
			default:
				return fmt.Errorf("lookup %s: %w", spec.Name, err)
			}

			objectID, err := id.NewID()
			if err != nil {
				return fmt.Errorf("new object id: %w", err)
			}
			if err := store.CreateObject(ctx, starterObject(objectID, def.Name, spec, now)); err != nil {
				return fmt.Errorf("create %s: %w", spec.Name, err)
			}
			log.Printf("seeded starter object=%s era=%s", spec.Name, def.Name)
		}
	}
	return nil
}

// Admin creates a fee-exempt account in the first era. An existing
// account keeps its balances and only has the era grant re-applied.
func Admin(ctx context.Context, store storage.Store, eras *era.Table, playerID string) error {
	now := time.Now().UTC()
	err := store.CreateProfile(ctx, storage.PlayerProfile{
		PlayerID:     playerID,
		Coins:        decimal.Zero,
		TimeCrystals: decimal.Zero,
		CurrentEra:   eras.First().Name,
		FeeExempt:    true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
		return fmt.Errorf("create admin profile: %w", err)
	}
	if err := progression.New(store, eras).Grant(ctx, playerID, eras.First().Name, now); err != nil {
		return fmt.Errorf("grant first era: %w", err)
	}
	log.Printf("seeded admin player=%s", playerID)
	return nil
}

func starterObject(objectID, eraName string, spec era.ObjectSpec, now time.Time) storage.GameObject {
	mods := make([]storage.Modifier, len(spec.GlobalModifiers))
	for i, mod := range spec.GlobalModifiers {
		mods[i] = storage.Modifier{
			ActiveWhen:         mod.ActiveWhen,
			AffectedCategories: mod.AffectedCategories,
			IncomeMultiplier:   mod.IncomeMultiplier,
			Stacking:           mod.Stacking,
		}
	}
	return storage.GameObject{
		ID:                    objectID,
		Name:                  spec.Name,
		Era:                   eraName,
		IsStarter:             true,
		Category:              spec.Category,
		QualityTier:           spec.QualityTier,
		Cost:                  decimal.NewFromFloat(spec.Cost),
		TimeCrystalCost:       decimal.NewFromFloat(spec.TimeCrystalCost),
		IncomePerSecond:       decimal.NewFromFloat(spec.IncomePerSecond),
		TimeCrystalGeneration: decimal.NewFromFloat(spec.TimeCrystalGeneration),
		BuildTimeSec:          spec.BuildTimeSec,
		OperationDurationSec:  spec.OperationDurationSec,
		RetirePayoutPct:       decimal.NewFromFloat(spec.RetirePayoutPct),
		SellbackPct:           decimal.NewFromFloat(spec.SellbackPct),
		CapPerOwner:           spec.CapPerOwner,
		FootprintW:            spec.FootprintW,
		FootprintH:            spec.FootprintH,
		Size:                  decimal.NewFromFloat(spec.Size),
		GlobalModifiers:       mods,
		FlavorText:            spec.FlavorText,
		CreatedAt:             now,
	}
}
