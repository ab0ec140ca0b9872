// Package craft resolves two discovered objects into a result: an existing
// recipe, a predefined recipe override, or a delegated generative creation.
//
// The flow is split into three phases so the caller can scope its
// per-player lock correctly: Resolve and Commit run under the lock,
// Generate runs outside it because the upstream call is slow and
// network-bound. Rate limit increments happen in Resolve, before the
// generation call, so a failed generation still consumes quota.
package craft

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/epochforge/epochforge/internal/era"
	"github.com/epochforge/epochforge/internal/gameerr"
	"github.com/epochforge/epochforge/internal/platform/id"
	"github.com/epochforge/epochforge/internal/ratelimit"
	"github.com/epochforge/epochforge/internal/storage"
)

// Capsule is the compact description of one input object sent upstream.
type Capsule struct {
	Name            string  `json:"name"`
	Era             string  `json:"era"`
	Category        string  `json:"category"`
	IsKeystone      bool    `json:"is_keystone"`
	QualityTier     string  `json:"quality_tier"`
	Cost            float64 `json:"cost"`
	IncomePerSecond float64 `json:"income_per_second"`
	FlavorText      string  `json:"flavor_text"`
}

// GenerationRequest is the full context handed to the generation interface.
type GenerationRequest struct {
	ObjectA      Capsule
	ObjectB      Capsule
	UnlockedEras []string
	CurrentEra   string
	NextEraHint  string
	Overrides    map[string]any
	StatRanges   era.StatRanges
}

// GeneratedObject is the structured record the generation interface
// returns.
type GeneratedObject struct {
	Name                  string
	Era                   string
	Category              string
	IsKeystone            bool
	QualityTier           string
	Cost                  float64
	TimeCrystalCost       float64
	IncomePerSecond       float64
	TimeCrystalGeneration float64
	BuildTimeSec          int
	OperationDurationSec  int
	RetirePayoutPct       float64
	SellbackPct           float64
	CapPerOwner           *int
	FootprintW            int
	FootprintH            int
	Size                  float64
	GlobalModifiers       []storage.Modifier
	FlavorText            string
}

// Generator is the external generation interface.
type Generator interface {
	GenerateObject(ctx context.Context, req GenerationRequest) (GeneratedObject, error)
	GenerateImage(ctx context.Context, name string) ([]byte, error)
}

// Limiter is the quota contract the orchestrator checks before crafting.
type Limiter interface {
	Allow(ctx context.Context, scope string, kind ratelimit.Kind) (bool, int, error)
	Increment(ctx context.Context, scope string, kind ratelimit.Kind) error
}

// ImageSink stores generated image bytes and returns a stable reference.
type ImageSink interface {
	Save(objectName string, data []byte) (string, error)
}

// Store is the persistence surface crafting needs.
type Store interface {
	storage.ObjectStore
	storage.ProfileStore
	storage.DiscoveryStore
	storage.RecipeStore
	storage.EraUnlockStore
}

// Result is the outcome of one craft.
type Result struct {
	Object          storage.GameObject
	NewlyDiscovered bool
	NewlyCreated    bool
}

// Pending carries the state of a craft that needs a generation call.
type Pending struct {
	PlayerID   string
	InputA     storage.GameObject
	InputB     storage.GameObject
	Cost       decimal.Decimal
	Predefined *era.RecipeSpec
	Request    GenerationRequest
}

// Resolution is the outcome of the first phase: either a finished result
// or a pending generation.
type Resolution struct {
	Done    *Result
	Pending *Pending
}

// Generated carries the upstream output between Generate and Commit.
type Generated struct {
	Object    storage.GameObject
	ImageData []byte
}

// Orchestrator coordinates the craft flow.
type Orchestrator struct {
	store      Store
	eras       *era.Table
	gen        Generator
	limiter    Limiter
	images     ImageSink
	predefined map[string]era.RecipeSpec
	newID      func() (string, error)
	logger     *log.Logger
}

// New builds a craft orchestrator. The predefined recipe table is indexed
// once from the era definitions.
func New(store Store, eras *era.Table, gen Generator, limiter Limiter, images ImageSink, logger *log.Logger) *Orchestrator {
	predefined := make(map[string]era.RecipeSpec)
	for _, recipe := range eras.PredefinedRecipes() {
		predefined[pairKey(recipe.InputA, recipe.InputB)] = recipe
	}
	return &Orchestrator{
		store:      store,
		eras:       eras,
		gen:        gen,
		limiter:    limiter,
		images:     images,
		predefined: predefined,
		newID:      id.NewID,
		logger:     logger,
	}
}

// pairKey builds an order-independent lookup key for a name pair.
func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "\x00" + b
}

// Resolve runs every check and every branch that does not need the
// generation interface. Callers hold the per-player lock.
func (o *Orchestrator) Resolve(ctx context.Context, playerID, objectAID, objectBID string, now time.Time) (*Resolution, error) {
	profile, err := o.store.GetProfile(ctx, playerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, gameerr.Newf(gameerr.CodeNotFound, "player %s not found", playerID)
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}

	if err := o.checkLimits(ctx, profile); err != nil {
		return nil, err
	}

	objA, err := o.loadDiscovered(ctx, playerID, objectAID)
	if err != nil {
		return nil, err
	}
	objB, err := o.loadDiscovered(ctx, playerID, objectBID)
	if err != nil {
		return nil, err
	}
	if objA.Era != objB.Era {
		return nil, gameerr.Newf(gameerr.CodeEraMismatch, "%s is from %s, %s is from %s", objA.Name, objA.Era, objB.Name, objB.Era)
	}

	// canonical pair order: ascending object id
	if objB.ID < objA.ID {
		objA, objB = objB, objA
	}

	higherEra := o.eras.Higher(objA.Era, objB.Era)
	cost := o.eras.CraftingCost(higherEra)
	if profile.FeeExempt {
		cost = decimal.Zero
	} else if profile.Coins.LessThan(cost) {
		return nil, gameerr.Newf(gameerr.CodeInsufficientFunds, "crafting costs %s coins, have %s", cost, profile.Coins)
	}

	var predefined *era.RecipeSpec
	if spec, ok := o.predefined[pairKey(objA.Name, objB.Name)]; ok {
		predefined = &spec
	}

	recipe, err := o.store.GetRecipe(ctx, objA.ID, objB.ID)
	switch {
	case err == nil:
		result, err := o.store.GetObject(ctx, recipe.ResultID)
		if err != nil {
			return nil, fmt.Errorf("load recipe result: %w", err)
		}
		if predefined == nil || MatchesPredefined(result, predefined.Output) {
			return o.finishExisting(ctx, playerID, result, cost, now)
		}
		// the predefined spec diverged from the stored result: discard
		// both and regenerate
		if o.logger != nil {
			o.logger.Printf("craft drift pair=%s+%s stale_result=%s", objA.Name, objB.Name, result.Name)
		}
		if err := o.store.DeleteRecipe(ctx, objA.ID, objB.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("discard stale recipe: %w", err)
		}
		if err := o.store.DeleteObject(ctx, result.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("discard stale object: %w", err)
		}
	case errors.Is(err, storage.ErrNotFound):
		// fall through
	default:
		return nil, fmt.Errorf("lookup recipe: %w", err)
	}

	// name collision: a predefined result of the intended name may already
	// exist from an independent craft, in which case only the link is
	// missing
	if predefined != nil {
		if name, ok := predefined.Output["object_name"].(string); ok {
			existing, err := o.store.GetObjectByName(ctx, name)
			switch {
			case err == nil:
				return o.linkExisting(ctx, playerID, objA.ID, objB.ID, existing, cost, now)
			case errors.Is(err, storage.ErrNotFound):
			default:
				return nil, fmt.Errorf("lookup collision: %w", err)
			}
		}
	}

	pending, err := o.buildPending(ctx, playerID, profile, objA, objB, higherEra, cost, predefined)
	if err != nil {
		return nil, err
	}
	if err := o.incrementLimits(ctx, profile); err != nil {
		return nil, err
	}
	return &Resolution{Pending: pending}, nil
}

// Generate calls the generation interface and shapes its output into a
// storable object. Callers must NOT hold the per-player lock.
func (o *Orchestrator) Generate(ctx context.Context, pending *Pending) (*Generated, error) {
	gen, err := o.gen.GenerateObject(ctx, pending.Request)
	if err != nil {
		return nil, err
	}

	if pending.Predefined != nil {
		applyOverrides(&gen, pending.Predefined.Output)
	}

	higherEra := o.eras.Higher(pending.InputA.Era, pending.InputB.Era)
	if gen.IsKeystone {
		// a keystone ascends one era past its inputs
		if next, ok := o.eras.Next(higherEra); ok {
			gen.Era = next
		} else {
			gen.Era = higherEra
		}
	} else {
		gen.Era = higherEra
	}
	if ranges, ok := o.eras.StatRangesFor(gen.Era); ok {
		clampToRanges(&gen, ranges)
	}

	objectID, err := o.newID()
	if err != nil {
		return nil, fmt.Errorf("new object id: %w", err)
	}
	obj := toGameObject(objectID, gen)

	var imageData []byte
	if o.gen != nil {
		imageData, err = o.gen.GenerateImage(ctx, obj.Name)
		if err != nil {
			// the craft survives a failed illustration
			if o.logger != nil {
				o.logger.Printf("craft image failed object=%s err=%v", obj.Name, err)
			}
			imageData = nil
		}
	}
	return &Generated{Object: obj, ImageData: imageData}, nil
}

// Commit persists the generation outcome atomically. Callers hold the
// per-player lock again. If an object of the generated name appeared while
// the lock was released, the recipe links to it instead.
func (o *Orchestrator) Commit(ctx context.Context, pending *Pending, generated *Generated, now time.Time) (*Result, error) {
	existing, err := o.store.GetObjectByName(ctx, generated.Object.Name)
	switch {
	case err == nil:
		return o.linkExistingResult(ctx, pending, existing, now)
	case errors.Is(err, storage.ErrNotFound):
	default:
		return nil, fmt.Errorf("lookup collision: %w", err)
	}

	obj := generated.Object
	if len(generated.ImageData) > 0 && o.images != nil {
		ref, err := o.images.Save(obj.Name, generated.ImageData)
		if err != nil {
			if o.logger != nil {
				o.logger.Printf("craft image store failed object=%s err=%v", obj.Name, err)
			}
		} else {
			obj.ImageRef = ref
		}
	}
	obj.CreatedAt = now

	commit := storage.CraftCommit{
		PlayerID: pending.PlayerID,
		Object:   &obj,
		Recipe: storage.Recipe{
			InputAID:     pending.InputA.ID,
			InputBID:     pending.InputB.ID,
			ResultID:     obj.ID,
			DiscoveredBy: pending.PlayerID,
			CreatedAt:    now,
		},
		GrantDiscovery: true,
		Cost:           pending.Cost,
		Now:            now,
	}
	if err := o.store.ApplyCraft(ctx, commit); err != nil {
		return nil, fmt.Errorf("persist craft: %w", err)
	}
	return &Result{Object: obj, NewlyDiscovered: true, NewlyCreated: true}, nil
}

func (o *Orchestrator) loadDiscovered(ctx context.Context, playerID, objectID string) (storage.GameObject, error) {
	obj, err := o.store.GetObject(ctx, objectID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.GameObject{}, gameerr.Newf(gameerr.CodeNotFound, "object %s not found", objectID)
		}
		return storage.GameObject{}, fmt.Errorf("load object: %w", err)
	}
	discovered, err := o.store.HasDiscovery(ctx, playerID, objectID)
	if err != nil {
		return storage.GameObject{}, fmt.Errorf("check discovery: %w", err)
	}
	if !discovered {
		return storage.GameObject{}, gameerr.Newf(gameerr.CodeForbidden, "object %s is not discovered", obj.Name)
	}
	return obj, nil
}

func (o *Orchestrator) limitChecks(profile storage.PlayerProfile) []struct {
	scope string
	kind  ratelimit.Kind
} {
	return []struct {
		scope string
		kind  ratelimit.Kind
	}{
		{profile.PlayerID, ratelimit.KindMinuteUser},
		{ratelimit.GlobalScope, ratelimit.KindMinuteGlobal},
		{profile.PlayerID, ratelimit.DailyKindFor(profile)},
		{ratelimit.GlobalScope, ratelimit.KindDailyGlobal},
	}
}

func (o *Orchestrator) checkLimits(ctx context.Context, profile storage.PlayerProfile) error {
	for _, check := range o.limitChecks(profile) {
		ok, _, err := o.limiter.Allow(ctx, check.scope, check.kind)
		if err != nil {
			return fmt.Errorf("rate limit check: %w", err)
		}
		if !ok {
			return gameerr.Newf(gameerr.CodeRateLimited, "crafting limit reached (%s)", check.kind)
		}
	}
	return nil
}

func (o *Orchestrator) incrementLimits(ctx context.Context, profile storage.PlayerProfile) error {
	for _, check := range o.limitChecks(profile) {
		if err := o.limiter.Increment(ctx, check.scope, check.kind); err != nil {
			return fmt.Errorf("rate limit increment: %w", err)
		}
	}
	return nil
}

// finishExisting handles the existing-recipe branch: the discovery grant
// and the charge commit together.
func (o *Orchestrator) finishExisting(ctx context.Context, playerID string, result storage.GameObject, cost decimal.Decimal, now time.Time) (*Resolution, error) {
	created, err := o.store.ApplyRecipeUse(ctx, playerID, result.ID, cost, now)
	if err != nil {
		return nil, fmt.Errorf("apply recipe use: %w", err)
	}
	return &Resolution{Done: &Result{
		Object:          result,
		NewlyDiscovered: created,
		NewlyCreated:    false,
	}}, nil
}

// linkExisting handles the name-collision branch found during Resolve:
// only the recipe link (and possibly the discovery) is missing.
func (o *Orchestrator) linkExisting(ctx context.Context, playerID, inputAID, inputBID string, existing storage.GameObject, cost decimal.Decimal, now time.Time) (*Resolution, error) {
	discovered, err := o.store.HasDiscovery(ctx, playerID, existing.ID)
	if err != nil {
		return nil, fmt.Errorf("check discovery: %w", err)
	}
	commit := storage.CraftCommit{
		PlayerID: playerID,
		Recipe: storage.Recipe{
			InputAID:     inputAID,
			InputBID:     inputBID,
			ResultID:     existing.ID,
			DiscoveredBy: playerID,
			CreatedAt:    now,
		},
		GrantDiscovery: !discovered,
		Cost:           cost,
		Now:            now,
	}
	if err := o.store.ApplyCraft(ctx, commit); err != nil {
		return nil, fmt.Errorf("link existing object: %w", err)
	}
	return &Resolution{Done: &Result{
		Object:          existing,
		NewlyDiscovered: !discovered,
		NewlyCreated:    false,
	}}, nil
}

// linkExistingResult is the Commit-time collision path.
func (o *Orchestrator) linkExistingResult(ctx context.Context, pending *Pending, existing storage.GameObject, now time.Time) (*Result, error) {
	discovered, err := o.store.HasDiscovery(ctx, pending.PlayerID, existing.ID)
	if err != nil {
		return nil, fmt.Errorf("check discovery: %w", err)
	}
	commit := storage.CraftCommit{
		PlayerID: pending.PlayerID,
		Recipe: storage.Recipe{
			InputAID:     pending.InputA.ID,
			InputBID:     pending.InputB.ID,
			ResultID:     existing.ID,
			DiscoveredBy: pending.PlayerID,
			CreatedAt:    now,
		},
		GrantDiscovery: !discovered,
		Cost:           pending.Cost,
		Now:            now,
	}
	if err := o.store.ApplyCraft(ctx, commit); err != nil {
		return nil, fmt.Errorf("link generated collision: %w", err)
	}
	return &Result{
		Object:          existing,
		NewlyDiscovered: !discovered,
		NewlyCreated:    false,
	}, nil
}

func (o *Orchestrator) buildPending(ctx context.Context, playerID string, profile storage.PlayerProfile, objA, objB storage.GameObject, higherEra string, cost decimal.Decimal, predefined *era.RecipeSpec) (*Pending, error) {
	unlocks, err := o.store.ListEraUnlocks(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("list era unlocks: %w", err)
	}
	unlocked := make([]string, len(unlocks))
	for i, unlock := range unlocks {
		unlocked[i] = unlock.Era
	}
	nextEra, _ := o.eras.Next(higherEra)

	var overrides map[string]any
	if predefined != nil {
		overrides = predefined.Output
	}

	return &Pending{
		PlayerID:   playerID,
		InputA:     objA,
		InputB:     objB,
		Cost:       cost,
		Predefined: predefined,
		Request: GenerationRequest{
			ObjectA:      toCapsule(objA),
			ObjectB:      toCapsule(objB),
			UnlockedEras: unlocked,
			CurrentEra:   profile.CurrentEra,
			NextEraHint:  nextEra,
			Overrides:    overrides,
			StatRanges:   o.eras.CombinedStatRanges(objA.Era, objB.Era),
		},
	}, nil
}

func toCapsule(obj storage.GameObject) Capsule {
	return Capsule{
		Name:            obj.Name,
		Era:             obj.Era,
		Category:        obj.Category,
		IsKeystone:      obj.IsKeystone,
		QualityTier:     obj.QualityTier,
		Cost:            obj.Cost.InexactFloat64(),
		IncomePerSecond: obj.IncomePerSecond.InexactFloat64(),
		FlavorText:      obj.FlavorText,
	}
}

func toGameObject(objectID string, gen GeneratedObject) storage.GameObject {
	return storage.GameObject{
		ID:                    objectID,
		Name:                  gen.Name,
		Era:                   gen.Era,
		IsKeystone:            gen.IsKeystone,
		Category:              gen.Category,
		QualityTier:           gen.QualityTier,
		Cost:                  decimal.NewFromFloat(gen.Cost),
		TimeCrystalCost:       decimal.NewFromFloat(gen.TimeCrystalCost),
		IncomePerSecond:       decimal.NewFromFloat(gen.IncomePerSecond),
		TimeCrystalGeneration: decimal.NewFromFloat(gen.TimeCrystalGeneration),
		BuildTimeSec:          gen.BuildTimeSec,
		OperationDurationSec:  gen.OperationDurationSec,
		RetirePayoutPct:       decimal.NewFromFloat(gen.RetirePayoutPct),
		SellbackPct:           decimal.NewFromFloat(gen.SellbackPct),
		CapPerOwner:           gen.CapPerOwner,
		FootprintW:            gen.FootprintW,
		FootprintH:            gen.FootprintH,
		Size:                  decimal.NewFromFloat(gen.Size),
		GlobalModifiers:       gen.GlobalModifiers,
		FlavorText:            gen.FlavorText,
	}
}
