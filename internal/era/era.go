// Package era provides the ordered, immutable era table that gates game
// progression. Definitions are loaded once at process start from embedded
// YAML files and injected into the components that need them; the table is
// read-only after Load returns.
package era

import (
	"github.com/shopspring/decimal"
)

// Fallback costs used when an era name is not present in the table.
var (
	defaultCraftingCost = decimal.NewFromInt(50)
	defaultUnlockCost   = decimal.Zero
)

// Range bounds a generated numeric stat.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// StatRanges bounds every generated stat for objects of one era.
type StatRanges struct {
	Cost                  Range   `yaml:"cost"`
	IncomePerSecond       Range   `yaml:"income_per_second"`
	TimeCrystalCost       Range   `yaml:"time_crystal_cost"`
	TimeCrystalGeneration Range   `yaml:"time_crystal_generation"`
	BuildTimeSec          Range   `yaml:"build_time_sec"`
	OperationDurationSec  Range   `yaml:"operation_duration_sec"`
	RetirePayoutPct       Range   `yaml:"retire_payout_pct"`
	SellbackPct           Range   `yaml:"sellback_pct"`
	FootprintMin          int     `yaml:"footprint_min"`
	FootprintMax          int     `yaml:"footprint_max"`
	SizeMin               float64 `yaml:"size_min"`
	SizeMax               float64 `yaml:"size_max"`
}

// ModifierSpec declares a global modifier carried by a seeded object.
type ModifierSpec struct {
	ActiveWhen         string   `yaml:"active_when"`
	AffectedCategories []string `yaml:"affected_categories"`
	IncomeMultiplier   float64  `yaml:"income_multiplier"`
	Stacking           string   `yaml:"stacking"`
}

// ObjectSpec declares a seeded object (starter or keystone) for an era.
type ObjectSpec struct {
	Name                  string         `yaml:"name"`
	Category              string         `yaml:"category"`
	QualityTier           string         `yaml:"quality_tier"`
	Cost                  float64        `yaml:"cost"`
	TimeCrystalCost       float64        `yaml:"time_crystal_cost"`
	IncomePerSecond       float64        `yaml:"income_per_second"`
	TimeCrystalGeneration float64        `yaml:"time_crystal_generation"`
	BuildTimeSec          int            `yaml:"build_time_sec"`
	OperationDurationSec  int            `yaml:"operation_duration_sec"`
	RetirePayoutPct       float64        `yaml:"retire_payout_pct"`
	SellbackPct           float64        `yaml:"sellback_pct"`
	CapPerOwner           *int           `yaml:"cap_per_owner"`
	FootprintW            int            `yaml:"footprint_w"`
	FootprintH            int            `yaml:"footprint_h"`
	Size                  float64        `yaml:"size"`
	GlobalModifiers       []ModifierSpec `yaml:"global_modifiers"`
	FlavorText            string         `yaml:"flavor_text"`
}

// RecipeSpec declares a predefined recipe: an unordered name pair and the
// field overrides the crafted result must respect.
type RecipeSpec struct {
	InputA string         `yaml:"input_a"`
	InputB string         `yaml:"input_b"`
	Output map[string]any `yaml:"output"`
}

// KeystoneSpec declares the era's keystone object and the recipe chain
// leading to it.
type KeystoneSpec struct {
	ObjectSpec  `yaml:",inline"`
	RecipeChain []RecipeSpec `yaml:"recipe_chain"`
}

// Definition is one era loaded from YAML. Immutable after load.
type Definition struct {
	Order             int          `yaml:"order"`
	Name              string       `yaml:"name"`
	CrystalUnlockCost float64      `yaml:"crystal_unlock_cost"`
	CraftingCost      float64      `yaml:"crafting_cost"`
	CanvasSize        int          `yaml:"canvas_size"`
	PromptDescription string       `yaml:"prompt_description"`
	StatRanges        StatRanges   `yaml:"stat_ranges"`
	Keystone          KeystoneSpec `yaml:"keystone"`
	Starters          []ObjectSpec `yaml:"starters"`
	Recipes           []RecipeSpec `yaml:"recipes"`
}

// Table is the ordered era lookup structure.
type Table struct {
	eras    []Definition
	byName  map[string]int
	byOrder map[int]int
}

// All returns every era in progression order.
func (t *Table) All() []Definition {
	out := make([]Definition, len(t.eras))
	copy(out, t.eras)
	return out
}

// Names returns every era name in progression order.
func (t *Table) Names() []string {
	names := make([]string, len(t.eras))
	for i, def := range t.eras {
		names[i] = def.Name
	}
	return names
}

// First returns the initial era every new player starts in.
func (t *Table) First() Definition {
	return t.eras[0]
}

// Definition returns the era with the given name.
func (t *Table) Definition(name string) (Definition, bool) {
	idx, ok := t.byName[name]
	if !ok {
		return Definition{}, false
	}
	return t.eras[idx], true
}

// ByOrder returns the era with the given 1-indexed order.
func (t *Table) ByOrder(order int) (Definition, bool) {
	idx, ok := t.byOrder[order]
	if !ok {
		return Definition{}, false
	}
	return t.eras[idx], true
}

// OrderOf returns the 1-indexed order of an era name.
func (t *Table) OrderOf(name string) (int, bool) {
	idx, ok := t.byName[name]
	if !ok {
		return 0, false
	}
	return t.eras[idx].Order, true
}

// Next returns the era following name, or false when name is the last era
// or unknown.
func (t *Table) Next(name string) (string, bool) {
	order, ok := t.OrderOf(name)
	if !ok {
		return "", false
	}
	next, ok := t.ByOrder(order + 1)
	if !ok {
		return "", false
	}
	return next.Name, true
}

// Higher returns the more advanced of two era names. Ties favor a, and an
// unknown side yields the other.
func (t *Table) Higher(a, b string) string {
	orderA, okA := t.OrderOf(a)
	orderB, okB := t.OrderOf(b)
	if !okA {
		return b
	}
	if !okB {
		return a
	}
	if orderA >= orderB {
		return a
	}
	return b
}

// UnlockCost returns the time-crystal cost to unlock an era, or the zero
// fallback for unknown names.
func (t *Table) UnlockCost(name string) decimal.Decimal {
	def, ok := t.Definition(name)
	if !ok {
		return defaultUnlockCost
	}
	return decimal.NewFromFloat(def.CrystalUnlockCost)
}

// CraftingCost returns the coin cost to craft within an era, or the
// fallback constant for unknown names.
func (t *Table) CraftingCost(name string) decimal.Decimal {
	def, ok := t.Definition(name)
	if !ok {
		return defaultCraftingCost
	}
	return decimal.NewFromFloat(def.CraftingCost)
}

// StatRangesFor returns the stat ranges declared for an era.
func (t *Table) StatRangesFor(name string) (StatRanges, bool) {
	def, ok := t.Definition(name)
	if !ok {
		return StatRanges{}, false
	}
	return def.StatRanges, true
}

// CombinedStatRanges returns the stat ranges of the higher of two eras,
// used when bounding generated crafting results.
func (t *Table) CombinedStatRanges(a, b string) StatRanges {
	ranges, _ := t.StatRangesFor(t.Higher(a, b))
	return ranges
}

// PredefinedRecipes returns every predefined recipe across all eras:
// keystone recipe chains first, then general era recipes, in era order.
func (t *Table) PredefinedRecipes() []RecipeSpec {
	var recipes []RecipeSpec
	for _, def := range t.eras {
		recipes = append(recipes, def.Keystone.RecipeChain...)
		recipes = append(recipes, def.Recipes...)
	}
	return recipes
}

// PromptDescriptions concatenates every era's prompt description in order,
// for injection into the crafting prompt template.
func (t *Table) PromptDescriptions() string {
	var out string
	for i, def := range t.eras {
		if i > 0 {
			out += "\n\n"
		}
		out += def.PromptDescription
	}
	return out
}
