// Package game is the orchestration facade of the engine. Every
// player-facing operation serializes on a per-player lock, reconciles
// elapsed time first, then applies its mutation. Crafting releases the
// lock around the slow generation call and re-acquires it to commit.
package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/epochforge/epochforge/internal/canvas"
	"github.com/epochforge/epochforge/internal/craft"
	"github.com/epochforge/epochforge/internal/economy"
	"github.com/epochforge/epochforge/internal/era"
	"github.com/epochforge/epochforge/internal/gameerr"
	"github.com/epochforge/epochforge/internal/progression"
	"github.com/epochforge/epochforge/internal/storage"
)

// StartingCoins is granted to every new player account.
var StartingCoins = decimal.NewFromInt(500)

// Service coordinates the engine components behind a per-player
// single-writer discipline.
type Service struct {
	store       storage.Store
	eras        *era.Table
	reconciler  *economy.Reconciler
	placer      *canvas.Validator
	progression *progression.Controller
	crafter     *craft.Orchestrator
	logger      *log.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	now func() time.Time
}

// New wires the engine components around one store. The crafter is built
// by the caller because it carries the generation client and limiter.
func New(store storage.Store, eras *era.Table, crafter *craft.Orchestrator, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	prog := progression.New(store, eras)
	return &Service{
		store:       store,
		eras:        eras,
		reconciler:  economy.New(store, prog),
		placer:      canvas.New(store),
		progression: prog,
		crafter:     crafter,
		logger:      logger,
		locks:       make(map[string]*sync.Mutex),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// playerLock returns the mutex serializing one player's operations.
func (s *Service) playerLock(playerID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[playerID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[playerID] = lock
	}
	return lock
}

// Register creates a player account with the starting balance, unlocks
// the first era, and grants its starter discoveries. Registering an
// existing player returns the current profile unchanged.
func (s *Service) Register(ctx context.Context, playerID string) (storage.PlayerProfile, error) {
	lock := s.playerLock(playerID)
	lock.Lock()
	defer lock.Unlock()

	now := s.now()
	first := s.eras.First()
	profile := storage.PlayerProfile{
		PlayerID:     playerID,
		Coins:        StartingCoins,
		TimeCrystals: decimal.Zero,
		CurrentEra:   first.Name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := s.store.CreateProfile(ctx, profile)
	switch {
	case err == nil:
		s.logger.Printf("player registered player=%s era=%s", playerID, first.Name)
	case errors.Is(err, storage.ErrAlreadyExists):
		existing, err := s.store.GetProfile(ctx, playerID)
		if err != nil {
			return storage.PlayerProfile{}, fmt.Errorf("load profile: %w", err)
		}
		profile = existing
	default:
		return storage.PlayerProfile{}, fmt.Errorf("create profile: %w", err)
	}

	if err := s.progression.Grant(ctx, playerID, first.Name, now); err != nil {
		return storage.PlayerProfile{}, fmt.Errorf("grant first era: %w", err)
	}
	return profile, nil
}

// View is the full reconciled state of one player.
type View struct {
	Profile     storage.PlayerProfile
	Discoveries []storage.Discovery
	Canvas      []storage.CanvasEntry
	Unlocks     []storage.EraUnlock
	Reconciled  economy.Outcome
}

// State reconciles the player and returns everything they own.
func (s *Service) State(ctx context.Context, playerID string) (View, error) {
	lock := s.playerLock(playerID)
	lock.Lock()
	defer lock.Unlock()

	outcome, err := s.reconcile(ctx, playerID)
	if err != nil {
		return View{}, err
	}
	profile, err := s.store.GetProfile(ctx, playerID)
	if err != nil {
		return View{}, fmt.Errorf("load profile: %w", err)
	}
	discoveries, err := s.store.ListDiscoveries(ctx, playerID)
	if err != nil {
		return View{}, fmt.Errorf("list discoveries: %w", err)
	}
	entries, err := s.store.ListCanvas(ctx, playerID)
	if err != nil {
		return View{}, fmt.Errorf("list canvas: %w", err)
	}
	unlocks, err := s.store.ListEraUnlocks(ctx, playerID)
	if err != nil {
		return View{}, fmt.Errorf("list era unlocks: %w", err)
	}
	return View{
		Profile:     profile,
		Discoveries: discoveries,
		Canvas:      entries,
		Unlocks:     unlocks,
		Reconciled:  outcome,
	}, nil
}

// Catalog returns every object definition. No lock is taken because the
// catalog is player-independent.
func (s *Service) Catalog(ctx context.Context) ([]storage.GameObject, error) {
	return s.store.ListObjects(ctx)
}

// Eras returns the era table in progression order.
func (s *Service) Eras() []era.Definition {
	return s.eras.All()
}

// Place reconciles, validates, and commits one placement. A keystone
// placed with no build time is operational immediately and unlocks its
// declared era on the spot.
func (s *Service) Place(ctx context.Context, playerID, objectID string, x, y int) (storage.PlacedObject, error) {
	lock := s.playerLock(playerID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.reconcile(ctx, playerID); err != nil {
		return storage.PlacedObject{}, err
	}
	now := s.now()
	placed, err := s.placer.Place(ctx, playerID, objectID, x, y, now)
	if err != nil {
		return storage.PlacedObject{}, err
	}
	if placed.Operational {
		obj, err := s.store.GetObject(ctx, objectID)
		if err != nil {
			return storage.PlacedObject{}, fmt.Errorf("load placed object: %w", err)
		}
		if obj.IsKeystone {
			if err := s.progression.UnlockFromKeystone(ctx, playerID, obj, now); err != nil {
				return storage.PlacedObject{}, fmt.Errorf("keystone unlock: %w", err)
			}
			s.logger.Printf("keystone placed player=%s object=%s era=%s", playerID, obj.Name, obj.Era)
		}
	}
	return placed, nil
}

// Remove reconciles, deletes one placement, and refunds the sellback
// fraction. Returns the refunded amount.
func (s *Service) Remove(ctx context.Context, playerID, placedID string) (decimal.Decimal, error) {
	lock := s.playerLock(playerID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.reconcile(ctx, playerID); err != nil {
		return decimal.Zero, err
	}
	return s.placer.Remove(ctx, playerID, placedID, s.now())
}

// Craft combines two discovered objects. The player lock is held for the
// resolve and commit phases only; the generation call runs unlocked.
func (s *Service) Craft(ctx context.Context, playerID, objectAID, objectBID string) (*craft.Result, error) {
	lock := s.playerLock(playerID)
	lock.Lock()

	if _, err := s.reconcile(ctx, playerID); err != nil {
		lock.Unlock()
		return nil, err
	}
	resolution, err := s.crafter.Resolve(ctx, playerID, objectAID, objectBID, s.now())
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	if resolution.Done != nil {
		lock.Unlock()
		return resolution.Done, nil
	}
	lock.Unlock()

	generated, err := s.crafter.Generate(ctx, resolution.Pending)
	if err != nil {
		return nil, err
	}

	lock.Lock()
	defer lock.Unlock()
	result, err := s.crafter.Commit(ctx, resolution.Pending, generated, s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Printf("craft committed player=%s object=%s created=%v", playerID, result.Object.Name, result.NewlyCreated)
	return result, nil
}

// UnlockEra reconciles then spends time crystals on an era unlock.
func (s *Service) UnlockEra(ctx context.Context, playerID, eraName string) (storage.EraUnlock, error) {
	lock := s.playerLock(playerID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.reconcile(ctx, playerID); err != nil {
		return storage.EraUnlock{}, err
	}
	return s.progression.Unlock(ctx, playerID, eraName, s.now())
}

// RedeemUpgradeKey redeems a single-use key and flips the player to the
// pro tier.
func (s *Service) RedeemUpgradeKey(ctx context.Context, key, playerID string) error {
	lock := s.playerLock(playerID)
	lock.Lock()
	defer lock.Unlock()

	err := s.store.RedeemUpgradeKey(ctx, key, playerID, s.now())
	switch {
	case err == nil:
		s.logger.Printf("upgrade key redeemed player=%s", playerID)
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return gameerr.New(gameerr.CodeNotFound, "upgrade key not found")
	case errors.Is(err, storage.ErrAlreadyExists):
		return gameerr.New(gameerr.CodeForbidden, "upgrade key already redeemed")
	default:
		return fmt.Errorf("redeem upgrade key: %w", err)
	}
}

// reconcile advances the locked player to now. Callers hold the lock.
func (s *Service) reconcile(ctx context.Context, playerID string) (economy.Outcome, error) {
	outcome, err := s.reconciler.Reconcile(ctx, playerID, s.now())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return economy.Outcome{}, gameerr.Newf(gameerr.CodeNotFound, "player %s not found", playerID)
		}
		return economy.Outcome{}, fmt.Errorf("reconcile: %w", err)
	}
	return outcome, nil
}
