package craft

import (
	"math"

	"github.com/epochforge/epochforge/internal/era"
	"github.com/epochforge/epochforge/internal/storage"
)

// floatTolerance bounds the numeric drift allowed between a predefined
// field and the persisted value before the recipe is considered stale.
const floatTolerance = 1e-9

func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case float32:
		return float64(v), true
	}
	return 0, false
}

func numbersClose(a, b float64) bool {
	return math.Abs(a-b) <= floatTolerance
}

// MatchesPredefined reports whether a persisted object still satisfies
// every field a predefined recipe pins. Numeric fields compare with a
// small tolerance, composite fields compare deeply. An unknown override
// key counts as a mismatch so a stale spec forces regeneration rather
// than silently passing.
func MatchesPredefined(obj storage.GameObject, output map[string]any) bool {
	for key, want := range output {
		if !fieldMatches(obj, key, want) {
			return false
		}
	}
	return true
}

func fieldMatches(obj storage.GameObject, key string, want any) bool {
	switch key {
	case "object_name":
		s, ok := want.(string)
		return ok && s == obj.Name
	case "era":
		s, ok := want.(string)
		return ok && s == obj.Era
	case "category":
		s, ok := want.(string)
		return ok && s == obj.Category
	case "quality_tier":
		s, ok := want.(string)
		return ok && s == obj.QualityTier
	case "flavor_text":
		s, ok := want.(string)
		return ok && s == obj.FlavorText
	case "is_keystone":
		b, ok := want.(bool)
		return ok && b == obj.IsKeystone
	case "cost":
		n, ok := toNumber(want)
		return ok && numbersClose(n, obj.Cost.InexactFloat64())
	case "time_crystal_cost":
		n, ok := toNumber(want)
		return ok && numbersClose(n, obj.TimeCrystalCost.InexactFloat64())
	case "income_per_second":
		n, ok := toNumber(want)
		return ok && numbersClose(n, obj.IncomePerSecond.InexactFloat64())
	case "time_crystal_generation":
		n, ok := toNumber(want)
		return ok && numbersClose(n, obj.TimeCrystalGeneration.InexactFloat64())
	case "build_time_sec":
		n, ok := toNumber(want)
		return ok && numbersClose(n, float64(obj.BuildTimeSec))
	case "operation_duration_sec":
		n, ok := toNumber(want)
		return ok && numbersClose(n, float64(obj.OperationDurationSec))
	case "retire_payout_pct":
		n, ok := toNumber(want)
		return ok && numbersClose(n, obj.RetirePayoutPct.InexactFloat64())
	case "sellback_pct":
		n, ok := toNumber(want)
		return ok && numbersClose(n, obj.SellbackPct.InexactFloat64())
	case "size":
		n, ok := toNumber(want)
		return ok && numbersClose(n, obj.Size.InexactFloat64())
	case "cap_per_owner":
		if want == nil {
			return obj.CapPerOwner == nil
		}
		n, ok := toNumber(want)
		return ok && obj.CapPerOwner != nil && numbersClose(n, float64(*obj.CapPerOwner))
	case "footprint":
		m, ok := want.(map[string]any)
		if !ok {
			return false
		}
		w, okW := toNumber(m["w"])
		h, okH := toNumber(m["h"])
		return okW && okH &&
			numbersClose(w, float64(obj.FootprintW)) &&
			numbersClose(h, float64(obj.FootprintH))
	case "global_modifiers":
		list, ok := want.([]any)
		return ok && modifiersMatch(obj.GlobalModifiers, list)
	}
	return false
}

func modifiersMatch(mods []storage.Modifier, want []any) bool {
	if len(mods) != len(want) {
		return false
	}
	for i, raw := range want {
		m, ok := raw.(map[string]any)
		if !ok {
			return false
		}
		mod := mods[i]
		if s, ok := m["active_when"].(string); ok {
			if s != mod.ActiveWhen {
				return false
			}
		}
		if s, ok := m["stacking"].(string); ok {
			if s != mod.Stacking {
				return false
			}
		}
		if n, ok := toNumber(m["income_multiplier"]); ok {
			if !numbersClose(n, mod.IncomeMultiplier) {
				return false
			}
		}
		if cats, ok := m["affected_categories"].([]any); ok {
			if len(cats) != len(mod.AffectedCategories) {
				return false
			}
			for j, cat := range cats {
				s, ok := cat.(string)
				if !ok || s != mod.AffectedCategories[j] {
					return false
				}
			}
		}
	}
	return true
}

// applyOverrides force-applies predefined fields onto a generated object,
// so pinned recipes stay deterministic regardless of what the generator
// returns.
func applyOverrides(gen *GeneratedObject, output map[string]any) {
	for key, value := range output {
		switch key {
		case "object_name":
			if s, ok := value.(string); ok {
				gen.Name = s
			}
		case "era":
			if s, ok := value.(string); ok {
				gen.Era = s
			}
		case "category":
			if s, ok := value.(string); ok {
				gen.Category = s
			}
		case "quality_tier":
			if s, ok := value.(string); ok {
				gen.QualityTier = s
			}
		case "flavor_text":
			if s, ok := value.(string); ok {
				gen.FlavorText = s
			}
		case "is_keystone":
			if b, ok := value.(bool); ok {
				gen.IsKeystone = b
			}
		case "cost":
			if n, ok := toNumber(value); ok {
				gen.Cost = n
			}
		case "time_crystal_cost":
			if n, ok := toNumber(value); ok {
				gen.TimeCrystalCost = n
			}
		case "income_per_second":
			if n, ok := toNumber(value); ok {
				gen.IncomePerSecond = n
			}
		case "time_crystal_generation":
			if n, ok := toNumber(value); ok {
				gen.TimeCrystalGeneration = n
			}
		case "build_time_sec":
			if n, ok := toNumber(value); ok {
				gen.BuildTimeSec = int(n)
			}
		case "operation_duration_sec":
			if n, ok := toNumber(value); ok {
				gen.OperationDurationSec = int(n)
			}
		case "retire_payout_pct":
			if n, ok := toNumber(value); ok {
				gen.RetirePayoutPct = n
			}
		case "sellback_pct":
			if n, ok := toNumber(value); ok {
				gen.SellbackPct = n
			}
		case "size":
			if n, ok := toNumber(value); ok {
				gen.Size = n
			}
		case "cap_per_owner":
			if value == nil {
				gen.CapPerOwner = nil
			} else if n, ok := toNumber(value); ok {
				cap := int(n)
				gen.CapPerOwner = &cap
			}
		case "footprint":
			if m, ok := value.(map[string]any); ok {
				if w, ok := toNumber(m["w"]); ok {
					gen.FootprintW = int(w)
				}
				if h, ok := toNumber(m["h"]); ok {
					gen.FootprintH = int(h)
				}
			}
		case "global_modifiers":
			if list, ok := value.([]any); ok {
				gen.GlobalModifiers = decodeOverrideModifiers(list)
			}
		}
	}
}

func decodeOverrideModifiers(list []any) []storage.Modifier {
	var mods []storage.Modifier
	for _, raw := range list {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		var mod storage.Modifier
		if s, ok := m["active_when"].(string); ok {
			mod.ActiveWhen = s
		}
		if s, ok := m["stacking"].(string); ok {
			mod.Stacking = s
		}
		if n, ok := toNumber(m["income_multiplier"]); ok {
			mod.IncomeMultiplier = n
		}
		if cats, ok := m["affected_categories"].([]any); ok {
			for _, cat := range cats {
				if s, ok := cat.(string); ok {
					mod.AffectedCategories = append(mod.AffectedCategories, s)
				}
			}
		}
		mods = append(mods, mod)
	}
	return mods
}

func clampFloat(value float64, r era.Range) float64 {
	if r.Min == 0 && r.Max == 0 {
		return value
	}
	if value < r.Min {
		return r.Min
	}
	if value > r.Max {
		return r.Max
	}
	return value
}

func clampInt(value, min, max int) int {
	if min == 0 && max == 0 {
		return value
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// clampToRanges bounds every generated stat to the target era's declared
// ranges. The generator is schema-constrained upstream, but era
// reassignment after the call can move the target ranges, so the clamp
// runs again here.
func clampToRanges(gen *GeneratedObject, ranges era.StatRanges) {
	gen.Cost = clampFloat(gen.Cost, ranges.Cost)
	gen.TimeCrystalCost = clampFloat(gen.TimeCrystalCost, ranges.TimeCrystalCost)
	gen.IncomePerSecond = clampFloat(gen.IncomePerSecond, ranges.IncomePerSecond)
	gen.TimeCrystalGeneration = clampFloat(gen.TimeCrystalGeneration, ranges.TimeCrystalGeneration)
	gen.BuildTimeSec = int(clampFloat(float64(gen.BuildTimeSec), ranges.BuildTimeSec))
	gen.OperationDurationSec = int(clampFloat(float64(gen.OperationDurationSec), ranges.OperationDurationSec))
	gen.RetirePayoutPct = clampFloat(gen.RetirePayoutPct, ranges.RetirePayoutPct)
	gen.SellbackPct = clampFloat(gen.SellbackPct, ranges.SellbackPct)
	gen.FootprintW = clampInt(gen.FootprintW, ranges.FootprintMin, ranges.FootprintMax)
	gen.FootprintH = clampInt(gen.FootprintH, ranges.FootprintMin, ranges.FootprintMax)
	if ranges.SizeMin != 0 || ranges.SizeMax != 0 {
		if gen.Size < ranges.SizeMin {
			gen.Size = ranges.SizeMin
		}
		if gen.Size > ranges.SizeMax {
			gen.Size = ranges.SizeMax
		}
	}
}
