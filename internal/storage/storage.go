// Package storage defines the persistence contract for the game engine:
// record types, the store interfaces the domain packages depend on, and
// the sentinel errors implementations must return.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a uniqueness constraint is violated.
	ErrAlreadyExists = errors.New("already exists")
)

// Modifier is a global income modifier carried by a game object. It takes
// effect only while the carrying placement is operational.
type Modifier struct {
	ActiveWhen         string   `json:"active_when"`
	AffectedCategories []string `json:"affected_categories"`
	IncomeMultiplier   float64  `json:"income_multiplier"`
	Stacking           string   `json:"stacking"`
}

// GameObject is an object definition. Immutable once created except for the
// starter flag and the image reference backfill.
type GameObject struct {
	ID                    string
	Name                  string
	Era                   string
	IsKeystone            bool
	IsStarter             bool
	Category              string
	QualityTier           string
	Cost                  decimal.Decimal
	TimeCrystalCost       decimal.Decimal
	IncomePerSecond       decimal.Decimal
	TimeCrystalGeneration decimal.Decimal
	BuildTimeSec          int
	OperationDurationSec  int
	RetirePayoutPct       decimal.Decimal
	SellbackPct           decimal.Decimal
	CapPerOwner           *int
	FootprintW            int
	FootprintH            int
	Size                  decimal.Decimal
	GlobalModifiers       []Modifier
	FlavorText            string
	ImageRef              string
	CreatedAt             time.Time
}

// PlayerProfile is a player account. Balances and the reconciliation
// timestamp are mutated by the reconciler; spend and refund paths touch
// balances only.
type PlayerProfile struct {
	PlayerID         string
	Coins            decimal.Decimal
	TimeCrystals     decimal.Decimal
	CurrentEra       string
	LastReconciledAt time.Time // zero value means never reconciled
	Pro              bool
	FeeExempt        bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PlacedObject is one placement on a player's canvas. Exactly one of
// building or operational is true, except in the soft-retired terminal
// state where both are false.
type PlacedObject struct {
	ID              string
	PlayerID        string
	ObjectID        string
	X               int
	Y               int
	PlacedAt        time.Time
	BuildCompleteAt time.Time
	RetireAt        *time.Time
	Building        bool
	Operational     bool
}

// CanvasEntry joins a placement with its object definition.
type CanvasEntry struct {
	Placed PlacedObject
	Object GameObject
}

// Recipe maps a canonical input pair (ascending object id) to its result.
type Recipe struct {
	InputAID     string
	InputBID     string
	ResultID     string
	DiscoveredBy string
	CreatedAt    time.Time
}

// Discovery records that a player knows an object.
type Discovery struct {
	PlayerID     string
	ObjectID     string
	DiscoveredAt time.Time
}

// EraUnlock records that a player has unlocked an era.
type EraUnlock struct {
	PlayerID   string
	Era        string
	UnlockedAt time.Time
}

// RateWindow is a persisted fixed-window rate limit counter.
type RateWindow struct {
	Scope       string
	Kind        string
	WindowStart time.Time
	Count       int64
}

// UpgradeKey is a single-use code that upgrades a player to the pro tier.
type UpgradeKey struct {
	Key        string
	CreatedAt  time.Time
	RedeemedBy string
	RedeemedAt *time.Time
}

// PlayerState bundles everything owned by one player, for export and
// wipe-and-rebuild import.
type PlayerState struct {
	Profile     PlayerProfile
	Discoveries []Discovery
	Placements  []PlacedObject
	Unlocks     []EraUnlock
}

// CraftCommit is the atomic persist of a successful craft: the generated
// object (nil when linking an existing one), the recipe, an optional
// discovery grant, and the coin debit, all in one transaction.
type CraftCommit struct {
	PlayerID       string
	Object         *GameObject
	Recipe         Recipe
	GrantDiscovery bool
	Cost           decimal.Decimal
	Now            time.Time
}

// ObjectStore persists game object definitions.
type ObjectStore interface {
	CreateObject(ctx context.Context, obj GameObject) error
	GetObject(ctx context.Context, id string) (GameObject, error)
	GetObjectByName(ctx context.Context, name string) (GameObject, error)
	ListObjects(ctx context.Context) ([]GameObject, error)
	ListStarterObjects(ctx context.Context, era string) ([]GameObject, error)
	DeleteObject(ctx context.Context, id string) error
	SetObjectImageRef(ctx context.Context, id, imageRef string) error
	SetObjectStarter(ctx context.Context, id string, starter bool) error
}

// ProfileStore persists player profiles and balance movements.
type ProfileStore interface {
	CreateProfile(ctx context.Context, profile PlayerProfile) error
	GetProfile(ctx context.Context, playerID string) (PlayerProfile, error)
	CreditBalances(ctx context.Context, playerID string, coins, crystals decimal.Decimal, now time.Time) error
	DebitBalances(ctx context.Context, playerID string, coins, crystals decimal.Decimal, now time.Time) error
	// SettleAccrual credits both balances and advances the reconciliation
	// timestamp in one transaction.
	SettleAccrual(ctx context.Context, playerID string, coins, crystals decimal.Decimal, reconciledAt time.Time) error
	SetPro(ctx context.Context, playerID string, pro bool, now time.Time) error
}

// DiscoveryStore persists a player's discovered objects.
type DiscoveryStore interface {
	// GrantDiscovery is idempotent; created reports whether the row was new.
	GrantDiscovery(ctx context.Context, playerID, objectID string, now time.Time) (created bool, err error)
	HasDiscovery(ctx context.Context, playerID, objectID string) (bool, error)
	ListDiscoveries(ctx context.Context, playerID string) ([]Discovery, error)
}

// PlacementStore persists canvas placements and their state transitions.
type PlacementStore interface {
	// PlaceObject inserts the placement and debits both currencies in one
	// transaction.
	PlaceObject(ctx context.Context, placed PlacedObject, coinCost, crystalCost decimal.Decimal) error
	GetPlacement(ctx context.Context, playerID, placedID string) (PlacedObject, error)
	ListCanvas(ctx context.Context, playerID string) ([]CanvasEntry, error)
	CountPlacements(ctx context.Context, playerID, objectID string) (int, error)
	// ListDueBuilds returns the building placements whose build completes
	// at or before now, without mutating them.
	ListDueBuilds(ctx context.Context, playerID string, now time.Time) ([]CanvasEntry, error)
	// CompleteBuilds flips every due building placement to operational in
	// one transaction and returns the completed entries.
	CompleteBuilds(ctx context.Context, playerID string, now time.Time) ([]CanvasEntry, error)
	// RetirePlacements soft-retires every operational placement whose
	// retire_at has passed, credits the retirement payouts, and returns the
	// retired entries, all in one transaction.
	RetirePlacements(ctx context.Context, playerID string, now time.Time) ([]CanvasEntry, error)
	// RemovePlacement deletes the placement and credits the refund in one
	// transaction.
	RemovePlacement(ctx context.Context, playerID, placedID string, refund decimal.Decimal, now time.Time) error
}

// RecipeStore persists crafting recipes and the atomic craft commit.
type RecipeStore interface {
	CreateRecipe(ctx context.Context, recipe Recipe) error
	// GetRecipe expects the canonical (ascending id) pair order.
	GetRecipe(ctx context.Context, inputAID, inputBID string) (Recipe, error)
	DeleteRecipe(ctx context.Context, inputAID, inputBID string) error
	ApplyCraft(ctx context.Context, commit CraftCommit) error
	// ApplyRecipeUse grants the result discovery if missing and debits the
	// crafting cost in one transaction. created reports whether the
	// discovery row was new.
	ApplyRecipeUse(ctx context.Context, playerID, resultID string, cost decimal.Decimal, now time.Time) (created bool, err error)
}

// EraUnlockStore persists era unlocks and the unlock side effects.
type EraUnlockStore interface {
	// ApplyEraUnlock inserts the unlock, debits the crystal cost, sets the
	// player's current era, and grants the starter discoveries, all in one
	// transaction. Returns ErrAlreadyExists when the era is already
	// unlocked.
	ApplyEraUnlock(ctx context.Context, playerID, era string, cost decimal.Decimal, starterObjectIDs []string, now time.Time) error
	HasEraUnlock(ctx context.Context, playerID, era string) (bool, error)
	ListEraUnlocks(ctx context.Context, playerID string) ([]EraUnlock, error)
}

// RateLimitStore persists fixed-window counters for the daily limits.
type RateLimitStore interface {
	GetWindow(ctx context.Context, scope, kind string) (RateWindow, error)
	UpsertWindow(ctx context.Context, window RateWindow) error
}

// UpgradeKeyStore persists pro upgrade keys.
type UpgradeKeyStore interface {
	CreateUpgradeKey(ctx context.Context, key UpgradeKey) error
	GetUpgradeKey(ctx context.Context, key string) (UpgradeKey, error)
	// RedeemUpgradeKey marks the key redeemed and flips the player to the
	// pro tier in one transaction. Returns ErrAlreadyExists when the key
	// was redeemed before.
	RedeemUpgradeKey(ctx context.Context, key, playerID string, now time.Time) error
}

// StateStore exports and imports whole player states.
type StateStore interface {
	GetPlayerState(ctx context.Context, playerID string) (PlayerState, error)
	// ReplacePlayerState wipes every row owned by the target player and
	// rebuilds it from state in one transaction.
	ReplacePlayerState(ctx context.Context, state PlayerState) error
}

// Store aggregates every persistence concern of the engine.
type Store interface {
	ObjectStore
	ProfileStore
	DiscoveryStore
	PlacementStore
	RecipeStore
	EraUnlockStore
	RateLimitStore
	UpgradeKeyStore
	StateStore
}
