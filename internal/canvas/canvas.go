// Package canvas validates and applies placements on a player's bounded
// build grid.
package canvas

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/epochforge/epochforge/internal/gameerr"
	"github.com/epochforge/epochforge/internal/platform/id"
	"github.com/epochforge/epochforge/internal/storage"
)

// Max is the canvas bound in grid units, both axes.
const Max = 1000

// Store is the persistence surface placement needs.
type Store interface {
	storage.ObjectStore
	storage.ProfileStore
	storage.DiscoveryStore
	storage.PlacementStore
}

// Validator enforces spatial, resource, and cap constraints before a
// placement is committed.
type Validator struct {
	store Store
	newID func() (string, error)
}

// New builds a placement validator.
func New(store Store) *Validator {
	return &Validator{store: store, newID: id.NewID}
}

// Place validates and commits one placement. Checks run in a fixed order
// and the first failure wins: discovery, funds, per-owner cap, overlap,
// bounds. On success both currencies are debited and the placement is
// persisted in one transaction.
func (v *Validator) Place(ctx context.Context, playerID, objectID string, x, y int, now time.Time) (storage.PlacedObject, error) {
	obj, err := v.store.GetObject(ctx, objectID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.PlacedObject{}, gameerr.Newf(gameerr.CodeNotFound, "object %s not found", objectID)
		}
		return storage.PlacedObject{}, fmt.Errorf("load object: %w", err)
	}

	discovered, err := v.store.HasDiscovery(ctx, playerID, objectID)
	if err != nil {
		return storage.PlacedObject{}, fmt.Errorf("check discovery: %w", err)
	}
	if !discovered {
		return storage.PlacedObject{}, gameerr.Newf(gameerr.CodeForbidden, "object %s is not discovered", obj.Name)
	}

	profile, err := v.store.GetProfile(ctx, playerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.PlacedObject{}, gameerr.Newf(gameerr.CodeNotFound, "player %s not found", playerID)
		}
		return storage.PlacedObject{}, fmt.Errorf("load profile: %w", err)
	}
	if !profile.FeeExempt && profile.Coins.LessThan(obj.Cost) {
		return storage.PlacedObject{}, gameerr.Newf(gameerr.CodeInsufficientFunds, "need %s coins, have %s", obj.Cost, profile.Coins)
	}
	if profile.TimeCrystals.LessThan(obj.TimeCrystalCost) {
		return storage.PlacedObject{}, gameerr.Newf(gameerr.CodeInsufficientFunds, "need %s crystals, have %s", obj.TimeCrystalCost, profile.TimeCrystals)
	}

	if obj.CapPerOwner != nil {
		count, err := v.store.CountPlacements(ctx, playerID, objectID)
		if err != nil {
			return storage.PlacedObject{}, fmt.Errorf("count placements: %w", err)
		}
		if count >= *obj.CapPerOwner {
			return storage.PlacedObject{}, gameerr.Newf(gameerr.CodeCapReached, "cap of %d reached for %s", *obj.CapPerOwner, obj.Name)
		}
	}

	existing, err := v.store.ListCanvas(ctx, playerID)
	if err != nil {
		return storage.PlacedObject{}, fmt.Errorf("list canvas: %w", err)
	}
	for _, entry := range existing {
		if overlaps(x, y, obj.FootprintW, obj.FootprintH,
			entry.Placed.X, entry.Placed.Y, entry.Object.FootprintW, entry.Object.FootprintH) {
			return storage.PlacedObject{}, gameerr.Newf(gameerr.CodeSpaceOccupied, "footprint overlaps placement %s", entry.Placed.ID)
		}
	}

	if x < 0 || y < 0 || x+obj.FootprintW > Max || y+obj.FootprintH > Max {
		return storage.PlacedObject{}, gameerr.Newf(gameerr.CodeOutOfBounds, "footprint exceeds the %dx%d canvas", Max, Max)
	}

	placedID, err := v.newID()
	if err != nil {
		return storage.PlacedObject{}, fmt.Errorf("new placement id: %w", err)
	}

	building := obj.BuildTimeSec > 0
	buildCompleteAt := now.Add(time.Duration(obj.BuildTimeSec) * time.Second)
	retireAt := buildCompleteAt.Add(time.Duration(obj.OperationDurationSec) * time.Second)
	placed := storage.PlacedObject{
		ID:              placedID,
		PlayerID:        playerID,
		ObjectID:        objectID,
		X:               x,
		Y:               y,
		PlacedAt:        now,
		BuildCompleteAt: buildCompleteAt,
		RetireAt:        &retireAt,
		Building:        building,
		Operational:     !building,
	}

	coinCost := obj.Cost
	if profile.FeeExempt {
		coinCost = decimal.Zero
	}
	if err := v.store.PlaceObject(ctx, placed, coinCost, obj.TimeCrystalCost); err != nil {
		return storage.PlacedObject{}, fmt.Errorf("place object: %w", err)
	}
	return placed, nil
}

// Remove deletes one placement and refunds the sellback fraction of the
// object's cost. Returns the refunded amount.
func (v *Validator) Remove(ctx context.Context, playerID, placedID string, now time.Time) (decimal.Decimal, error) {
	placed, err := v.store.GetPlacement(ctx, playerID, placedID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return decimal.Zero, gameerr.Newf(gameerr.CodeNotFound, "placement %s not found", placedID)
		}
		return decimal.Zero, fmt.Errorf("load placement: %w", err)
	}
	obj, err := v.store.GetObject(ctx, placed.ObjectID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load object: %w", err)
	}

	refund := obj.Cost.Mul(obj.SellbackPct)
	if err := v.store.RemovePlacement(ctx, playerID, placedID, refund, now); err != nil {
		return decimal.Zero, fmt.Errorf("remove placement: %w", err)
	}
	return refund, nil
}

// overlaps reports whether two axis-aligned footprint rectangles intersect.
// Rectangles are half-open: [x, x+w) by [y, y+h).
func overlaps(ax, ay, aw, ah, bx, by, bw, bh int) bool {
	return ax < bx+bw && bx < ax+aw && ay < by+bh && by < ay+ah
}
