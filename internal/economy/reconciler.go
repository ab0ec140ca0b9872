// Package economy reconciles elapsed real time into game state: build
// completions, retirement payouts, and modifier-adjusted income accrual.
// There is no background scheduler; every player-facing operation runs the
// reconciler first, so the whole engine must be idempotent for a fixed
// "now".
package economy

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/epochforge/epochforge/internal/storage"
)

// Store is the persistence surface the reconciler needs.
type Store interface {
	storage.ProfileStore
	storage.PlacementStore
}

// KeystoneUnlocker applies the era unlock side effect of a completed
// keystone build.
type KeystoneUnlocker interface {
	UnlockFromKeystone(ctx context.Context, playerID string, keystone storage.GameObject, now time.Time) error
}

// Outcome summarizes what one reconciliation pass changed.
type Outcome struct {
	CompletedBuilds []storage.CanvasEntry
	Retired         []storage.CanvasEntry
	CoinsAccrued    decimal.Decimal
	CrystalsAccrued decimal.Decimal
	Elapsed         time.Duration
}

// Reconciler advances one player's temporal state to "now".
type Reconciler struct {
	store    Store
	unlocker KeystoneUnlocker
}

// New builds a reconciler.
func New(store Store, unlocker KeystoneUnlocker) *Reconciler {
	return &Reconciler{store: store, unlocker: unlocker}
}

// Reconcile runs the three phases in order, each with its own commit:
// build completion (with keystone era unlocks), retirement payouts, then
// accrual over the elapsed interval. Idempotent under repeated calls with
// the same now: the second call sees no due transitions and a zero
// elapsed interval.
//
// Keystone era unlocks commit before the build flip. If an unlock fails
// the build stays due, so the next pass retries the idempotent unlock
// instead of losing it behind an already-completed build.
//
// Placements retired in phase two earn for the whole interval rather than
// up to their retirement instant. The interval is not subdivided at the
// retirement boundary; this coarse approximation is intentional.
func (r *Reconciler) Reconcile(ctx context.Context, playerID string, now time.Time) (Outcome, error) {
	outcome := Outcome{
		CoinsAccrued:    decimal.Zero,
		CrystalsAccrued: decimal.Zero,
	}

	due, err := r.store.ListDueBuilds(ctx, playerID, now)
	if err != nil {
		return Outcome{}, fmt.Errorf("list due builds: %w", err)
	}
	for _, entry := range due {
		if !entry.Object.IsKeystone {
			continue
		}
		if err := r.unlocker.UnlockFromKeystone(ctx, playerID, entry.Object, now); err != nil {
			return Outcome{}, fmt.Errorf("keystone unlock %s: %w", entry.Object.Name, err)
		}
	}

	completed, err := r.store.CompleteBuilds(ctx, playerID, now)
	if err != nil {
		return Outcome{}, fmt.Errorf("complete builds: %w", err)
	}
	outcome.CompletedBuilds = completed

	retired, err := r.store.RetirePlacements(ctx, playerID, now)
	if err != nil {
		return Outcome{}, fmt.Errorf("retire placements: %w", err)
	}
	outcome.Retired = retired

	profile, err := r.store.GetProfile(ctx, playerID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load profile: %w", err)
	}

	var elapsed time.Duration
	if !profile.LastReconciledAt.IsZero() {
		elapsed = now.Sub(profile.LastReconciledAt)
		if elapsed < 0 {
			elapsed = 0
		}
	}
	outcome.Elapsed = elapsed

	if elapsed > 0 {
		canvas, err := r.store.ListCanvas(ctx, playerID)
		if err != nil {
			return Outcome{}, fmt.Errorf("list canvas: %w", err)
		}
		earning := earningEntries(canvas, now)
		multipliers := IncomeMultipliers(earning)

		income := decimal.Zero
		crystals := decimal.Zero
		for _, entry := range earning {
			multiplier, ok := multipliers[entry.Object.Category]
			if !ok {
				multiplier = decimal.NewFromInt(1)
			}
			income = income.Add(entry.Object.IncomePerSecond.Mul(multiplier))
			// crystal generation is never modifier-scaled
			crystals = crystals.Add(entry.Object.TimeCrystalGeneration)
		}

		seconds := decimal.New(elapsed.Milliseconds(), -3)
		outcome.CoinsAccrued = income.Mul(seconds)
		outcome.CrystalsAccrued = crystals.Mul(seconds)
	}

	if err := r.store.SettleAccrual(ctx, playerID, outcome.CoinsAccrued, outcome.CrystalsAccrued, now); err != nil {
		return Outcome{}, fmt.Errorf("settle accrual: %w", err)
	}
	return outcome, nil
}

// earningEntries filters the canvas down to placements still operational at
// now. Entries already soft-retired in this pass are excluded.
func earningEntries(canvas []storage.CanvasEntry, now time.Time) []storage.CanvasEntry {
	var earning []storage.CanvasEntry
	for _, entry := range canvas {
		if !entry.Placed.Operational {
			continue
		}
		if entry.Placed.RetireAt != nil && !entry.Placed.RetireAt.After(now) {
			continue
		}
		earning = append(earning, entry)
	}
	return earning
}
