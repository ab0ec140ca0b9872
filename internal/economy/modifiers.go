package economy

import (
	"github.com/shopspring/decimal"

	"github.com/epochforge/epochforge/internal/storage"
)

type modifierEntry struct {
	multiplier decimal.Decimal
	stacking   string
}

// IncomeMultipliers computes the effective income multiplier per category
// for a set of operational placements. One pass collects every active
// modifier into a category map, a fold per category collapses the entries
// into a single multiplier. Entries must arrive in a stable order
// (placement id ascending) so mixed multiplicative and additive stacking
// folds deterministically. A modifier applies to its own carrier too when
// the categories match.
func IncomeMultipliers(entries []storage.CanvasEntry) map[string]decimal.Decimal {
	byCategory := make(map[string][]modifierEntry)
	for _, entry := range entries {
		for _, mod := range entry.Object.GlobalModifiers {
			if mod.ActiveWhen != "operational" {
				continue
			}
			for _, category := range mod.AffectedCategories {
				byCategory[category] = append(byCategory[category], modifierEntry{
					multiplier: decimal.NewFromFloat(mod.IncomeMultiplier),
					stacking:   mod.Stacking,
				})
			}
		}
	}

	one := decimal.NewFromInt(1)
	multipliers := make(map[string]decimal.Decimal, len(byCategory))
	for category, mods := range byCategory {
		total := one
		for _, mod := range mods {
			if mod.stacking == "multiplicative" {
				total = total.Mul(mod.multiplier)
			} else {
				total = total.Add(mod.multiplier.Sub(one))
			}
		}
		multipliers[category] = total
	}
	return multipliers
}
