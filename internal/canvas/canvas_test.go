package canvas

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/epochforge/epochforge/internal/gameerr"
	"github.com/epochforge/epochforge/internal/storage"
	"github.com/epochforge/epochforge/internal/storage/sqlite"
)

var baseTime = time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "game.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedPlayer(t *testing.T, store *sqlite.Store, playerID string, coins int64, feeExempt bool) {
	t.Helper()
	err := store.CreateProfile(context.Background(), storage.PlayerProfile{
		PlayerID:     playerID,
		Coins:        decimal.NewFromInt(coins),
		TimeCrystals: decimal.NewFromInt(10),
		CurrentEra:   "Hunter-Gatherer",
		FeeExempt:    feeExempt,
		CreatedAt:    baseTime,
		UpdatedAt:    baseTime,
	})
	if err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
}

func seedObject(t *testing.T, store *sqlite.Store, obj storage.GameObject) {
	t.Helper()
	if obj.Era == "" {
		obj.Era = "Hunter-Gatherer"
	}
	if obj.Category == "" {
		obj.Category = "gathering"
	}
	if obj.OperationDurationSec == 0 {
		obj.OperationDurationSec = 3600
	}
	if obj.Size.IsZero() {
		obj.Size = decimal.NewFromInt(1)
	}
	if err := store.CreateObject(context.Background(), obj); err != nil {
		t.Fatalf("CreateObject(%s): %v", obj.Name, err)
	}
}

func discover(t *testing.T, store *sqlite.Store, playerID, objectID string) {
	t.Helper()
	if _, err := store.GrantDiscovery(context.Background(), playerID, objectID, baseTime); err != nil {
		t.Fatalf("GrantDiscovery: %v", err)
	}
}

func twoByTwo(id, name string, cost int64) storage.GameObject {
	return storage.GameObject{
		ID: id, Name: name,
		Cost:            decimal.NewFromInt(cost),
		IncomePerSecond: decimal.NewFromInt(1),
		RetirePayoutPct: decimal.NewFromFloat(0.3),
		SellbackPct:     decimal.NewFromFloat(0.4),
		FootprintW:      2, FootprintH: 2,
	}
}

func TestPlaceSucceeds(t *testing.T) {
	store := newTestStore(t)
	seedPlayer(t, store, "player-1", 500, false)
	seedObject(t, store, twoByTwo("obj-1", "Hut", 100))
	discover(t, store, "player-1", "obj-1")
	v := New(store)

	placed, err := v.Place(context.Background(), "player-1", "obj-1", 10, 10, baseTime)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if !placed.Operational || placed.Building {
		t.Errorf("zero build time placement flags = building:%v operational:%v", placed.Building, placed.Operational)
	}
	if placed.RetireAt == nil || !placed.RetireAt.Equal(baseTime.Add(time.Hour)) {
		t.Errorf("retire at = %v, want %v", placed.RetireAt, baseTime.Add(time.Hour))
	}

	profile, err := store.GetProfile(context.Background(), "player-1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if !profile.Coins.Equal(decimal.NewFromInt(400)) {
		t.Errorf("coins = %s, want 400", profile.Coins)
	}
}

func TestPlaceStartsBuildingWhenBuildTimeSet(t *testing.T) {
	store := newTestStore(t)
	seedPlayer(t, store, "player-1", 500, false)
	obj := twoByTwo("obj-1", "Hut", 100)
	obj.BuildTimeSec = 60
	seedObject(t, store, obj)
	discover(t, store, "player-1", "obj-1")
	v := New(store)

	placed, err := v.Place(context.Background(), "player-1", "obj-1", 10, 10, baseTime)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if !placed.Building || placed.Operational {
		t.Errorf("flags = building:%v operational:%v, want building", placed.Building, placed.Operational)
	}
	if !placed.BuildCompleteAt.Equal(baseTime.Add(time.Minute)) {
		t.Errorf("build complete at = %v, want %v", placed.BuildCompleteAt, baseTime.Add(time.Minute))
	}
	if placed.RetireAt == nil || !placed.RetireAt.Equal(baseTime.Add(time.Minute + time.Hour)) {
		t.Errorf("retire at = %v, want build completion plus duration", placed.RetireAt)
	}
}

func TestPlaceRequiresDiscovery(t *testing.T) {
	store := newTestStore(t)
	seedPlayer(t, store, "player-1", 500, false)
	seedObject(t, store, twoByTwo("obj-1", "Hut", 100))
	v := New(store)

	_, err := v.Place(context.Background(), "player-1", "obj-1", 0, 0, baseTime)
	if !gameerr.IsCode(err, gameerr.CodeForbidden) {
		t.Fatalf("Place = %v, want Forbidden", err)
	}
}

func TestPlaceRequiresFunds(t *testing.T) {
	store := newTestStore(t)
	seedPlayer(t, store, "player-1", 50, false)
	seedObject(t, store, twoByTwo("obj-1", "Hut", 100))
	discover(t, store, "player-1", "obj-1")
	v := New(store)

	_, err := v.Place(context.Background(), "player-1", "obj-1", 0, 0, baseTime)
	if !gameerr.IsCode(err, gameerr.CodeInsufficientFunds) {
		t.Fatalf("Place = %v, want InsufficientFunds", err)
	}
}

func TestPlaceFeeExemptSkipsCoinCheck(t *testing.T) {
	store := newTestStore(t)
	seedPlayer(t, store, "player-1", 0, true)
	seedObject(t, store, twoByTwo("obj-1", "Hut", 100))
	discover(t, store, "player-1", "obj-1")
	v := New(store)

	if _, err := v.Place(context.Background(), "player-1", "obj-1", 0, 0, baseTime); err != nil {
		t.Fatalf("Place: %v", err)
	}

	profile, err := store.GetProfile(context.Background(), "player-1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if !profile.Coins.IsZero() {
		t.Errorf("fee-exempt player was charged: coins = %s", profile.Coins)
	}
}

func TestPlaceEnforcesCrystalCostForFeeExempt(t *testing.T) {
	store := newTestStore(t)
	seedPlayer(t, store, "player-1", 0, true)
	obj := twoByTwo("obj-1", "Shrine", 100)
	obj.TimeCrystalCost = decimal.NewFromInt(100)
	seedObject(t, store, obj)
	discover(t, store, "player-1", "obj-1")
	v := New(store)

	_, err := v.Place(context.Background(), "player-1", "obj-1", 0, 0, baseTime)
	if !gameerr.IsCode(err, gameerr.CodeInsufficientFunds) {
		t.Fatalf("Place = %v, want InsufficientFunds on crystals", err)
	}
}

func TestPlaceEnforcesCap(t *testing.T) {
	store := newTestStore(t)
	seedPlayer(t, store, "player-1", 5000, false)
	cap := 1
	obj := twoByTwo("obj-1", "Campfire", 100)
	obj.CapPerOwner = &cap
	seedObject(t, store, obj)
	discover(t, store, "player-1", "obj-1")
	v := New(store)

	if _, err := v.Place(context.Background(), "player-1", "obj-1", 0, 0, baseTime); err != nil {
		t.Fatalf("first Place: %v", err)
	}
	_, err := v.Place(context.Background(), "player-1", "obj-1", 10, 10, baseTime)
	if !gameerr.IsCode(err, gameerr.CodeCapReached) {
		t.Fatalf("second Place = %v, want CapReached", err)
	}
}

func TestPlaceRejectsOverlap(t *testing.T) {
	store := newTestStore(t)
	seedPlayer(t, store, "player-1", 5000, false)
	seedObject(t, store, twoByTwo("obj-1", "Hut", 100))
	discover(t, store, "player-1", "obj-1")
	v := New(store)

	if _, err := v.Place(context.Background(), "player-1", "obj-1", 0, 0, baseTime); err != nil {
		t.Fatalf("first Place: %v", err)
	}

	// [0,2)x[0,2) against [1,3)x[1,3) intersects
	_, err := v.Place(context.Background(), "player-1", "obj-1", 1, 1, baseTime)
	if !gameerr.IsCode(err, gameerr.CodeSpaceOccupied) {
		t.Fatalf("overlapping Place = %v, want SpaceOccupied", err)
	}

	// adjacent at (2,2) touches but does not intersect
	if _, err := v.Place(context.Background(), "player-1", "obj-1", 2, 2, baseTime); err != nil {
		t.Fatalf("adjacent Place: %v", err)
	}
}

func TestPlaceRejectsOutOfBounds(t *testing.T) {
	store := newTestStore(t)
	seedPlayer(t, store, "player-1", 5000, false)
	seedObject(t, store, twoByTwo("obj-1", "Hut", 100))
	discover(t, store, "player-1", "obj-1")
	v := New(store)

	for _, pos := range [][2]int{{-1, 0}, {0, -1}, {999, 0}, {0, 999}} {
		_, err := v.Place(context.Background(), "player-1", "obj-1", pos[0], pos[1], baseTime)
		if !gameerr.IsCode(err, gameerr.CodeOutOfBounds) {
			t.Errorf("Place(%d, %d) = %v, want OutOfBounds", pos[0], pos[1], err)
		}
	}

	// 998 is the last valid origin for a 2x2 footprint
	if _, err := v.Place(context.Background(), "player-1", "obj-1", 998, 998, baseTime); err != nil {
		t.Fatalf("Place(998, 998): %v", err)
	}
}

func TestRemoveRefundsSellback(t *testing.T) {
	store := newTestStore(t)
	seedPlayer(t, store, "player-1", 500, false)
	seedObject(t, store, twoByTwo("obj-1", "Hut", 100))
	discover(t, store, "player-1", "obj-1")
	v := New(store)

	placed, err := v.Place(context.Background(), "player-1", "obj-1", 0, 0, baseTime)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}

	refund, err := v.Remove(context.Background(), "player-1", placed.ID, baseTime)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !refund.Equal(decimal.NewFromInt(40)) {
		t.Errorf("refund = %s, want 40", refund)
	}

	profile, err := store.GetProfile(context.Background(), "player-1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	// 500 - 100 + 40
	if !profile.Coins.Equal(decimal.NewFromInt(440)) {
		t.Errorf("coins = %s, want 440", profile.Coins)
	}

	_, err = v.Remove(context.Background(), "player-1", placed.ID, baseTime)
	if !gameerr.IsCode(err, gameerr.CodeNotFound) {
		t.Errorf("second Remove = %v, want NotFound", err)
	}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name                           string
		ax, ay, aw, ah, bx, by, bw, bh int
		want                           bool
	}{
		{"identical", 0, 0, 2, 2, 0, 0, 2, 2, true},
		{"diagonal intersect", 0, 0, 2, 2, 1, 1, 2, 2, true},
		{"adjacent corner", 0, 0, 2, 2, 2, 2, 2, 2, false},
		{"adjacent edge", 0, 0, 2, 2, 2, 0, 2, 2, false},
		{"disjoint", 0, 0, 2, 2, 10, 10, 2, 2, false},
		{"contained", 0, 0, 10, 10, 3, 3, 2, 2, true},
	}
	for _, tt := range tests {
		if got := overlaps(tt.ax, tt.ay, tt.aw, tt.ah, tt.bx, tt.by, tt.bw, tt.bh); got != tt.want {
			t.Errorf("%s: overlaps = %v, want %v", tt.name, got, tt.want)
		}
	}
}
