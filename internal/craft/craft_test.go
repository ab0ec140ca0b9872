package craft

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/epochforge/epochforge/internal/era"
	"github.com/epochforge/epochforge/internal/gameerr"
	"github.com/epochforge/epochforge/internal/ratelimit"
	"github.com/epochforge/epochforge/internal/storage"
	"github.com/epochforge/epochforge/internal/storage/sqlite"
)

var baseTime = time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

type fakeLimiter struct {
	denyKind   ratelimit.Kind
	increments int
}

func (f *fakeLimiter) Allow(ctx context.Context, scope string, kind ratelimit.Kind) (bool, int, error) {
	if f.denyKind != "" && kind == f.denyKind {
		return false, 0, nil
	}
	return true, 99, nil
}

func (f *fakeLimiter) Increment(ctx context.Context, scope string, kind ratelimit.Kind) error {
	f.increments++
	return nil
}

type fakeGenerator struct {
	calls      int
	imageCalls int
	result     GeneratedObject
	err        error
	imageErr   error
	lastReq    GenerationRequest
}

func (f *fakeGenerator) GenerateObject(ctx context.Context, req GenerationRequest) (GeneratedObject, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return GeneratedObject{}, f.err
	}
	return f.result, nil
}

func (f *fakeGenerator) GenerateImage(ctx context.Context, name string) ([]byte, error) {
	f.imageCalls++
	if f.imageErr != nil {
		return nil, f.imageErr
	}
	return []byte("png"), nil
}

type fakeSink struct {
	saved map[string][]byte
}

func (f *fakeSink) Save(objectName string, data []byte) (string, error) {
	if f.saved == nil {
		f.saved = make(map[string][]byte)
	}
	f.saved[objectName] = data
	return "images/" + objectName + ".png", nil
}

type fixture struct {
	orch    *Orchestrator
	store   *sqlite.Store
	gen     *fakeGenerator
	limiter *fakeLimiter
	sink    *fakeSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "game.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	eras, err := era.Load()
	if err != nil {
		t.Fatalf("era.Load: %v", err)
	}

	gen := &fakeGenerator{result: GeneratedObject{
		Name:                 "Stone Scraper",
		Era:                  "invented era",
		Category:             "tool",
		QualityTier:          "common",
		Cost:                 40,
		IncomePerSecond:      0.5,
		OperationDurationSec: 3600,
		RetirePayoutPct:      0.2,
		SellbackPct:          0.3,
		FootprintW:           1,
		FootprintH:           1,
		Size:                 1,
		FlavorText:           "Scrapes.",
	}}
	limiter := &fakeLimiter{}
	sink := &fakeSink{}
	return &fixture{
		orch:    New(store, eras, gen, limiter, sink, nil),
		store:   store,
		gen:     gen,
		limiter: limiter,
		sink:    sink,
	}
}

func (f *fixture) seedPlayer(t *testing.T, playerID string, coins int64, feeExempt bool) {
	t.Helper()
	err := f.store.CreateProfile(context.Background(), storage.PlayerProfile{
		PlayerID:   playerID,
		Coins:      decimal.NewFromInt(coins),
		CurrentEra: "Hunter-Gatherer",
		FeeExempt:  feeExempt,
		CreatedAt:  baseTime,
		UpdatedAt:  baseTime,
	})
	if err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
}

func (f *fixture) seedObject(t *testing.T, id, name, eraName string) {
	t.Helper()
	err := f.store.CreateObject(context.Background(), storage.GameObject{
		ID: id, Name: name, Era: eraName,
		Category:             "gathering",
		Cost:                 decimal.NewFromInt(10),
		IncomePerSecond:      decimal.NewFromFloat(0.1),
		OperationDurationSec: 3600,
		RetirePayoutPct:      decimal.NewFromFloat(0.2),
		SellbackPct:          decimal.NewFromFloat(0.3),
		FootprintW:           1, FootprintH: 1,
		Size: decimal.NewFromInt(1),
	})
	if err != nil {
		t.Fatalf("CreateObject(%s): %v", name, err)
	}
}

func (f *fixture) discover(t *testing.T, playerID, objectID string) {
	t.Helper()
	if _, err := f.store.GrantDiscovery(context.Background(), playerID, objectID, baseTime); err != nil {
		t.Fatalf("GrantDiscovery: %v", err)
	}
}

func (f *fixture) coins(t *testing.T, playerID string) decimal.Decimal {
	t.Helper()
	profile, err := f.store.GetProfile(context.Background(), playerID)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	return profile.Coins
}

func TestResolveExistingRecipeSkipsGeneration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPlayer(t, "player-1", 500, false)
	f.seedObject(t, "obj-a", "Pebble", "Hunter-Gatherer")
	f.seedObject(t, "obj-b", "Twine", "Hunter-Gatherer")
	f.seedObject(t, "obj-c", "Sling", "Hunter-Gatherer")
	f.discover(t, "player-1", "obj-a")
	f.discover(t, "player-1", "obj-b")
	err := f.store.CreateRecipe(ctx, storage.Recipe{InputAID: "obj-a", InputBID: "obj-b", ResultID: "obj-c"})
	if err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}

	res, err := f.orch.Resolve(ctx, "player-1", "obj-a", "obj-b", baseTime)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Done == nil {
		t.Fatal("Resolve did not finish on the existing recipe")
	}
	if res.Done.NewlyCreated {
		t.Error("existing recipe reported newly created")
	}
	if !res.Done.NewlyDiscovered {
		t.Error("result discovery not granted")
	}
	if res.Done.Object.Name != "Sling" {
		t.Errorf("result = %q, want Sling", res.Done.Object.Name)
	}
	if f.gen.calls != 0 {
		t.Errorf("generator called %d times, want 0", f.gen.calls)
	}
	if f.limiter.increments != 0 {
		t.Errorf("rate limits incremented %d times, want 0", f.limiter.increments)
	}
	// the Hunter-Gatherer crafting cost
	if !f.coins(t, "player-1").Equal(decimal.NewFromInt(450)) {
		t.Errorf("coins = %s, want 450", f.coins(t, "player-1"))
	}
}

func TestResolveUsesCanonicalPairOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPlayer(t, "player-1", 500, false)
	f.seedObject(t, "obj-a", "Pebble", "Hunter-Gatherer")
	f.seedObject(t, "obj-b", "Twine", "Hunter-Gatherer")
	f.seedObject(t, "obj-c", "Sling", "Hunter-Gatherer")
	f.discover(t, "player-1", "obj-a")
	f.discover(t, "player-1", "obj-b")
	err := f.store.CreateRecipe(ctx, storage.Recipe{InputAID: "obj-a", InputBID: "obj-b", ResultID: "obj-c"})
	if err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}

	// inputs in reverse order resolve to the same stored recipe
	res, err := f.orch.Resolve(ctx, "player-1", "obj-b", "obj-a", baseTime)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Done == nil || res.Done.Object.Name != "Sling" {
		t.Fatalf("reversed pair did not find the recipe: %+v", res)
	}
}

func TestResolveEraMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPlayer(t, "player-1", 500, false)
	f.seedObject(t, "obj-a", "Pebble", "Hunter-Gatherer")
	f.seedObject(t, "obj-b", "Wheat Field", "Agriculture")
	f.discover(t, "player-1", "obj-a")
	f.discover(t, "player-1", "obj-b")

	_, err := f.orch.Resolve(ctx, "player-1", "obj-a", "obj-b", baseTime)
	if !gameerr.IsCode(err, gameerr.CodeEraMismatch) {
		t.Fatalf("Resolve = %v, want EraMismatch", err)
	}
	if !f.coins(t, "player-1").Equal(decimal.NewFromInt(500)) {
		t.Errorf("coins = %s, want 500 untouched", f.coins(t, "player-1"))
	}
	if f.limiter.increments != 0 {
		t.Errorf("rate limits incremented %d times, want 0", f.limiter.increments)
	}
}

func TestResolveRequiresDiscovery(t *testing.T) {
	f := newFixture(t)
	f.seedPlayer(t, "player-1", 500, false)
	f.seedObject(t, "obj-a", "Pebble", "Hunter-Gatherer")
	f.seedObject(t, "obj-b", "Twine", "Hunter-Gatherer")
	f.discover(t, "player-1", "obj-a")

	_, err := f.orch.Resolve(context.Background(), "player-1", "obj-a", "obj-b", baseTime)
	if !gameerr.IsCode(err, gameerr.CodeForbidden) {
		t.Fatalf("Resolve = %v, want Forbidden", err)
	}
}

func TestResolveRateLimited(t *testing.T) {
	f := newFixture(t)
	f.seedPlayer(t, "player-1", 500, false)
	f.limiter.denyKind = ratelimit.KindDailyStandard

	_, err := f.orch.Resolve(context.Background(), "player-1", "obj-a", "obj-b", baseTime)
	if !gameerr.IsCode(err, gameerr.CodeRateLimited) {
		t.Fatalf("Resolve = %v, want RateLimited", err)
	}
}

func TestResolveInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	f.seedPlayer(t, "player-1", 10, false)
	f.seedObject(t, "obj-a", "Pebble", "Hunter-Gatherer")
	f.seedObject(t, "obj-b", "Twine", "Hunter-Gatherer")
	f.discover(t, "player-1", "obj-a")
	f.discover(t, "player-1", "obj-b")

	_, err := f.orch.Resolve(context.Background(), "player-1", "obj-a", "obj-b", baseTime)
	if !gameerr.IsCode(err, gameerr.CodeInsufficientFunds) {
		t.Fatalf("Resolve = %v, want InsufficientFunds", err)
	}
}

func TestGenerationFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPlayer(t, "player-1", 500, false)
	f.seedObject(t, "obj-a", "Pebble", "Hunter-Gatherer")
	f.seedObject(t, "obj-b", "Twine", "Hunter-Gatherer")
	f.discover(t, "player-1", "obj-a")
	f.discover(t, "player-1", "obj-b")

	res, err := f.orch.Resolve(ctx, "player-1", "obj-a", "obj-b", baseTime)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Pending == nil {
		t.Fatal("Resolve did not return a pending generation")
	}
	if f.limiter.increments != 4 {
		t.Errorf("rate limits incremented %d times, want 4", f.limiter.increments)
	}
	if res.Pending.Request.NextEraHint != "Agriculture" {
		t.Errorf("next era hint = %q, want Agriculture", res.Pending.Request.NextEraHint)
	}

	generated, err := f.orch.Generate(ctx, res.Pending)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if f.gen.calls != 1 {
		t.Errorf("generator called %d times, want 1", f.gen.calls)
	}
	// a non-keystone result lands in the higher input era, whatever the
	// generator claimed
	if generated.Object.Era != "Hunter-Gatherer" {
		t.Errorf("generated era = %q, want Hunter-Gatherer", generated.Object.Era)
	}

	result, err := f.orch.Commit(ctx, res.Pending, generated, baseTime)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !result.NewlyCreated || !result.NewlyDiscovered {
		t.Errorf("result flags = created:%v discovered:%v, want both true", result.NewlyCreated, result.NewlyDiscovered)
	}
	if result.Object.ImageRef != "images/Stone Scraper.png" {
		t.Errorf("image ref = %q", result.Object.ImageRef)
	}

	// persisted: object, recipe, discovery, and the coin debit
	if _, err := f.store.GetObjectByName(ctx, "Stone Scraper"); err != nil {
		t.Errorf("GetObjectByName: %v", err)
	}
	if _, err := f.store.GetRecipe(ctx, "obj-a", "obj-b"); err != nil {
		t.Errorf("GetRecipe: %v", err)
	}
	has, err := f.store.HasDiscovery(ctx, "player-1", result.Object.ID)
	if err != nil {
		t.Fatalf("HasDiscovery: %v", err)
	}
	if !has {
		t.Error("crafted object not discovered")
	}
	if !f.coins(t, "player-1").Equal(decimal.NewFromInt(450)) {
		t.Errorf("coins = %s, want 450", f.coins(t, "player-1"))
	}
}

func TestGenerateKeystoneAscendsEra(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPlayer(t, "player-1", 500, false)
	f.seedObject(t, "obj-a", "Hand Axe", "Hunter-Gatherer")
	f.seedObject(t, "obj-b", "Dry Grass", "Hunter-Gatherer")
	f.discover(t, "player-1", "obj-a")
	f.discover(t, "player-1", "obj-b")

	res, err := f.orch.Resolve(ctx, "player-1", "obj-a", "obj-b", baseTime)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Pending == nil {
		t.Fatal("Resolve did not return a pending generation")
	}
	if res.Pending.Predefined == nil {
		t.Fatal("predefined recipe not attached")
	}

	generated, err := f.orch.Generate(ctx, res.Pending)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// the Hand Axe + Dry Grass chain pins the Campfire keystone, which
	// ascends one era past its inputs
	if generated.Object.Name != "Campfire" {
		t.Errorf("name = %q, want Campfire override applied", generated.Object.Name)
	}
	if !generated.Object.IsKeystone {
		t.Error("keystone flag not applied")
	}
	if generated.Object.Era != "Agriculture" {
		t.Errorf("era = %q, want Agriculture", generated.Object.Era)
	}
}

func TestResolveLinksNameCollision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPlayer(t, "player-1", 500, false)
	f.seedObject(t, "obj-a", "Flint", "Hunter-Gatherer")
	f.seedObject(t, "obj-b", "Branch", "Hunter-Gatherer")
	// the predefined result already exists from an independent craft
	f.seedObject(t, "obj-c", "Hand Axe", "Hunter-Gatherer")
	f.discover(t, "player-1", "obj-a")
	f.discover(t, "player-1", "obj-b")

	res, err := f.orch.Resolve(ctx, "player-1", "obj-a", "obj-b", baseTime)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Done == nil {
		t.Fatal("collision did not resolve without generation")
	}
	if res.Done.Object.Name != "Hand Axe" || res.Done.NewlyCreated {
		t.Errorf("result = %+v, want linked Hand Axe", res.Done)
	}
	if !res.Done.NewlyDiscovered {
		t.Error("collision link did not grant the discovery")
	}
	if f.gen.calls != 0 {
		t.Errorf("generator called %d times, want 0", f.gen.calls)
	}
	if f.limiter.increments != 0 {
		t.Errorf("rate limits incremented %d times, want 0", f.limiter.increments)
	}
	if _, err := f.store.GetRecipe(ctx, "obj-a", "obj-b"); err != nil {
		t.Errorf("recipe link missing: %v", err)
	}
}

func TestResolveDriftDiscardsStaleRecipe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPlayer(t, "player-1", 500, false)
	f.seedObject(t, "obj-a", "Flint", "Hunter-Gatherer")
	f.seedObject(t, "obj-b", "Branch", "Hunter-Gatherer")
	// a stored result that no longer matches the predefined Hand Axe spec
	f.seedObject(t, "obj-stale", "Crooked Axe", "Hunter-Gatherer")
	f.discover(t, "player-1", "obj-a")
	f.discover(t, "player-1", "obj-b")
	err := f.store.CreateRecipe(ctx, storage.Recipe{InputAID: "obj-a", InputBID: "obj-b", ResultID: "obj-stale"})
	if err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}

	res, err := f.orch.Resolve(ctx, "player-1", "obj-a", "obj-b", baseTime)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Pending == nil {
		t.Fatal("drift did not fall through to generation")
	}

	if _, err := f.store.GetRecipe(ctx, "obj-a", "obj-b"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("stale recipe survived: %v", err)
	}
	if _, err := f.store.GetObject(ctx, "obj-stale"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("stale object survived: %v", err)
	}
}

func TestGenerateUpstreamFailurePropagates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPlayer(t, "player-1", 500, false)
	f.seedObject(t, "obj-a", "Pebble", "Hunter-Gatherer")
	f.seedObject(t, "obj-b", "Twine", "Hunter-Gatherer")
	f.discover(t, "player-1", "obj-a")
	f.discover(t, "player-1", "obj-b")

	res, err := f.orch.Resolve(ctx, "player-1", "obj-a", "obj-b", baseTime)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Pending == nil {
		t.Fatal("expected pending generation")
	}
	increments := f.limiter.increments

	f.gen.err = gameerr.New(gameerr.CodeUpstreamGenerationFailed, "boom")
	_, err = f.orch.Generate(ctx, res.Pending)
	if !gameerr.IsCode(err, gameerr.CodeUpstreamGenerationFailed) {
		t.Fatalf("Generate = %v, want UpstreamGenerationFailed", err)
	}

	// the quota stays consumed and the player stays uncharged
	if f.limiter.increments != increments {
		t.Errorf("increments moved from %d to %d after failure", increments, f.limiter.increments)
	}
	if !f.coins(t, "player-1").Equal(decimal.NewFromInt(500)) {
		t.Errorf("coins = %s, want 500 untouched", f.coins(t, "player-1"))
	}
}

func TestGenerateSurvivesImageFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPlayer(t, "player-1", 500, false)
	f.seedObject(t, "obj-a", "Pebble", "Hunter-Gatherer")
	f.seedObject(t, "obj-b", "Twine", "Hunter-Gatherer")
	f.discover(t, "player-1", "obj-a")
	f.discover(t, "player-1", "obj-b")

	res, err := f.orch.Resolve(ctx, "player-1", "obj-a", "obj-b", baseTime)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	f.gen.imageErr = errors.New("image service down")

	generated, err := f.orch.Generate(ctx, res.Pending)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	result, err := f.orch.Commit(ctx, res.Pending, generated, baseTime)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if result.Object.ImageRef != "" {
		t.Errorf("image ref = %q, want empty after image failure", result.Object.ImageRef)
	}
}

func TestMatchesPredefined(t *testing.T) {
	capOne := 1
	obj := storage.GameObject{
		Name:            "Campfire",
		Category:        "settlement",
		IsKeystone:      true,
		Cost:            decimal.NewFromInt(150),
		CapPerOwner:     &capOne,
		FootprintW:      2,
		FootprintH:      2,
		GlobalModifiers: []storage.Modifier{{ActiveWhen: "operational", AffectedCategories: []string{"gathering"}, IncomeMultiplier: 1.25, Stacking: "multiplicative"}},
	}

	ok := MatchesPredefined(obj, map[string]any{
		"object_name": "Campfire",
		"category":    "settlement",
		"is_keystone": true,
		"cost":        150,
	})
	if !ok {
		t.Error("matching object reported drift")
	}

	if MatchesPredefined(obj, map[string]any{"cost": 151}) {
		t.Error("cost drift not detected")
	}
	if MatchesPredefined(obj, map[string]any{"object_name": "Bonfire"}) {
		t.Error("name drift not detected")
	}
	if MatchesPredefined(obj, map[string]any{"footprint": map[string]any{"w": 2, "h": 3}}) {
		t.Error("footprint drift not detected")
	}
	if !MatchesPredefined(obj, map[string]any{"footprint": map[string]any{"w": 2, "h": 2}}) {
		t.Error("matching footprint reported drift")
	}
	if !MatchesPredefined(obj, map[string]any{"cap_per_owner": 1}) {
		t.Error("matching cap reported drift")
	}
	if !MatchesPredefined(obj, map[string]any{
		"global_modifiers": []any{map[string]any{
			"active_when":         "operational",
			"affected_categories": []any{"gathering"},
			"income_multiplier":   1.25,
			"stacking":            "multiplicative",
		}},
	}) {
		t.Error("matching modifiers reported drift")
	}
	if MatchesPredefined(obj, map[string]any{
		"global_modifiers": []any{map[string]any{"income_multiplier": 2.0}},
	}) {
		t.Error("modifier drift not detected")
	}
	if MatchesPredefined(obj, map[string]any{"unknown_field": 1}) {
		t.Error("unknown override key passed")
	}
}

func TestApplyOverrides(t *testing.T) {
	gen := GeneratedObject{Name: "Something", Cost: 10}
	applyOverrides(&gen, map[string]any{
		"object_name": "Campfire",
		"is_keystone": true,
		"cost":        150,
		"footprint":   map[string]any{"w": 2, "h": 2},
	})
	if gen.Name != "Campfire" || !gen.IsKeystone || gen.Cost != 150 {
		t.Errorf("overrides not applied: %+v", gen)
	}
	if gen.FootprintW != 2 || gen.FootprintH != 2 {
		t.Errorf("footprint override not applied: %dx%d", gen.FootprintW, gen.FootprintH)
	}
}

func TestClampToRanges(t *testing.T) {
	gen := GeneratedObject{
		Cost:                 10000,
		IncomePerSecond:      0.001,
		BuildTimeSec:         9999,
		OperationDurationSec: 10,
		RetirePayoutPct:      0.9,
		SellbackPct:          0.1,
		FootprintW:           40,
		FootprintH:           0,
		Size:                 100,
	}
	clampToRanges(&gen, era.StatRanges{
		Cost:                 era.Range{Min: 5, Max: 200},
		IncomePerSecond:      era.Range{Min: 0.05, Max: 2},
		BuildTimeSec:         era.Range{Min: 0, Max: 60},
		OperationDurationSec: era.Range{Min: 600, Max: 7200},
		RetirePayoutPct:      era.Range{Min: 0.1, Max: 0.4},
		SellbackPct:          era.Range{Min: 0.2, Max: 0.5},
		FootprintMin:         1,
		FootprintMax:         4,
		SizeMin:              0.5,
		SizeMax:              4,
	})
	if gen.Cost != 200 || gen.IncomePerSecond != 0.05 {
		t.Errorf("cost/income not clamped: %v, %v", gen.Cost, gen.IncomePerSecond)
	}
	if gen.BuildTimeSec != 60 || gen.OperationDurationSec != 600 {
		t.Errorf("durations not clamped: %d, %d", gen.BuildTimeSec, gen.OperationDurationSec)
	}
	if gen.RetirePayoutPct != 0.4 || gen.SellbackPct != 0.2 {
		t.Errorf("pcts not clamped: %v, %v", gen.RetirePayoutPct, gen.SellbackPct)
	}
	if gen.FootprintW != 4 || gen.FootprintH != 1 {
		t.Errorf("footprint not clamped: %dx%d", gen.FootprintW, gen.FootprintH)
	}
	if gen.Size != 4 {
		t.Errorf("size not clamped: %v", gen.Size)
	}
}
