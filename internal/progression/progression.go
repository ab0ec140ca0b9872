// Package progression applies era unlocks: the paid path spends time
// crystals, the keystone path fires when a keystone build completes. Both
// grant the era's starter discoveries.
package progression

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/epochforge/epochforge/internal/era"
	"github.com/epochforge/epochforge/internal/gameerr"
	"github.com/epochforge/epochforge/internal/storage"
)

// Store is the persistence surface era progression needs.
type Store interface {
	storage.ObjectStore
	storage.ProfileStore
	storage.EraUnlockStore
}

// Controller applies unlock costs and side effects.
type Controller struct {
	store Store
	eras  *era.Table
}

// New builds an era progression controller.
func New(store Store, eras *era.Table) *Controller {
	return &Controller{store: store, eras: eras}
}

// Unlock spends time crystals to unlock an era. The debit, the unlock
// record, the current-era switch, and the starter discovery grants commit
// in one transaction.
func (c *Controller) Unlock(ctx context.Context, playerID, eraName string, now time.Time) (storage.EraUnlock, error) {
	if _, ok := c.eras.Definition(eraName); !ok {
		return storage.EraUnlock{}, gameerr.Newf(gameerr.CodeInvalidEra, "era %q does not exist", eraName)
	}
	unlocked, err := c.store.HasEraUnlock(ctx, playerID, eraName)
	if err != nil {
		return storage.EraUnlock{}, fmt.Errorf("check era unlock: %w", err)
	}
	if unlocked {
		return storage.EraUnlock{}, gameerr.Newf(gameerr.CodeAlreadyUnlocked, "era %q is already unlocked", eraName)
	}

	cost := c.eras.UnlockCost(eraName)
	profile, err := c.store.GetProfile(ctx, playerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.EraUnlock{}, gameerr.Newf(gameerr.CodeNotFound, "player %s not found", playerID)
		}
		return storage.EraUnlock{}, fmt.Errorf("load profile: %w", err)
	}
	if profile.TimeCrystals.LessThan(cost) {
		return storage.EraUnlock{}, gameerr.Newf(gameerr.CodeInsufficientFunds, "need %s crystals, have %s", cost, profile.TimeCrystals)
	}

	if err := c.apply(ctx, playerID, eraName, cost, now); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return storage.EraUnlock{}, gameerr.Newf(gameerr.CodeAlreadyUnlocked, "era %q is already unlocked", eraName)
		}
		return storage.EraUnlock{}, err
	}
	return storage.EraUnlock{PlayerID: playerID, Era: eraName, UnlockedAt: now}, nil
}

// UnlockFromKeystone unlocks the era a completed keystone declares, free of
// charge. A keystone whose era is already unlocked, or unknown to the era
// table, is a no-op.
func (c *Controller) UnlockFromKeystone(ctx context.Context, playerID string, keystone storage.GameObject, now time.Time) error {
	if _, ok := c.eras.Definition(keystone.Era); !ok {
		return nil
	}
	unlocked, err := c.store.HasEraUnlock(ctx, playerID, keystone.Era)
	if err != nil {
		return fmt.Errorf("check era unlock: %w", err)
	}
	if unlocked {
		return nil
	}
	if err := c.apply(ctx, playerID, keystone.Era, decimal.Zero, now); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil
		}
		return err
	}
	return nil
}

// Grant unlocks an era without charge or precondition checks beyond
// idempotence. Used when registering a player into the first era.
func (c *Controller) Grant(ctx context.Context, playerID, eraName string, now time.Time) error {
	if err := c.apply(ctx, playerID, eraName, decimal.Zero, now); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil
		}
		return err
	}
	return nil
}

func (c *Controller) apply(ctx context.Context, playerID, eraName string, cost decimal.Decimal, now time.Time) error {
	starters, err := c.store.ListStarterObjects(ctx, eraName)
	if err != nil {
		return fmt.Errorf("list starter objects: %w", err)
	}
	starterIDs := make([]string, len(starters))
	for i, starter := range starters {
		starterIDs[i] = starter.ID
	}
	if err := c.store.ApplyEraUnlock(ctx, playerID, eraName, cost, starterIDs, now); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("apply era unlock: %w", err)
	}
	return nil
}
