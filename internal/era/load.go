package era

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/epochforge/epochforge/internal/era/definitions"
)

// Load reads the embedded era definitions and builds the table.
func Load() (*Table, error) {
	return LoadFS(definitions.FS)
}

// LoadFS reads every *.yaml era definition from fsys and builds the table.
// Validation failures abort the load: orders must form a contiguous
// 1..N sequence, names must be unique, and every era must declare its
// keystone and starter data.
func LoadFS(fsys fs.FS) (*Table, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read era definitions dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".yaml") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("no era definition files found")
	}

	table := &Table{
		byName:  make(map[string]int),
		byOrder: make(map[int]int),
	}

	for _, file := range files {
		content, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read era definition %s: %w", file, err)
		}

		var def Definition
		if err := yaml.Unmarshal(content, &def); err != nil {
			return nil, fmt.Errorf("parse era definition %s: %w", file, err)
		}
		if err := validateDefinition(def); err != nil {
			return nil, fmt.Errorf("era definition %s: %w", file, err)
		}

		if _, dup := table.byName[def.Name]; dup {
			return nil, fmt.Errorf("era definition %s: duplicate era name %q", file, def.Name)
		}
		if _, dup := table.byOrder[def.Order]; dup {
			return nil, fmt.Errorf("era definition %s: duplicate era order %d", file, def.Order)
		}

		table.eras = append(table.eras, def)
		table.byName[def.Name] = len(table.eras) - 1
		table.byOrder[def.Order] = len(table.eras) - 1
	}

	sort.Slice(table.eras, func(i, j int) bool {
		return table.eras[i].Order < table.eras[j].Order
	})
	for idx, def := range table.eras {
		table.byName[def.Name] = idx
		table.byOrder[def.Order] = idx
	}

	for i, def := range table.eras {
		if def.Order != i+1 {
			return nil, fmt.Errorf("era orders are not contiguous: want %d, got %d (%s)", i+1, def.Order, def.Name)
		}
	}

	return table, nil
}

func validateDefinition(def Definition) error {
	if strings.TrimSpace(def.Name) == "" {
		return fmt.Errorf("era name is required")
	}
	if def.Order < 1 {
		return fmt.Errorf("era order must be >= 1, got %d", def.Order)
	}
	if def.CrystalUnlockCost < 0 {
		return fmt.Errorf("crystal unlock cost must be >= 0")
	}
	if def.CraftingCost < 0 {
		return fmt.Errorf("crafting cost must be >= 0")
	}
	if strings.TrimSpace(def.Keystone.Name) == "" {
		return fmt.Errorf("keystone definition is required")
	}
	if len(def.Starters) == 0 {
		return fmt.Errorf("at least one starter object is required")
	}
	if err := validateObjectSpec(def.Keystone.ObjectSpec); err != nil {
		return fmt.Errorf("keystone %q: %w", def.Keystone.Name, err)
	}
	for _, starter := range def.Starters {
		if err := validateObjectSpec(starter); err != nil {
			return fmt.Errorf("starter %q: %w", starter.Name, err)
		}
	}
	return nil
}

func validateObjectSpec(spec ObjectSpec) error {
	if strings.TrimSpace(spec.Name) == "" {
		return fmt.Errorf("object name is required")
	}
	if strings.TrimSpace(spec.Category) == "" {
		return fmt.Errorf("category is required")
	}
	if spec.Cost < 0 || spec.TimeCrystalCost < 0 || spec.IncomePerSecond < 0 || spec.TimeCrystalGeneration < 0 {
		return fmt.Errorf("costs and generation rates must be >= 0")
	}
	if spec.BuildTimeSec < 0 {
		return fmt.Errorf("build time must be >= 0")
	}
	if spec.OperationDurationSec <= 0 {
		return fmt.Errorf("operation duration must be > 0")
	}
	if spec.RetirePayoutPct < 0 || spec.RetirePayoutPct > 1 {
		return fmt.Errorf("retire payout pct must be within [0, 1]")
	}
	if spec.SellbackPct < 0 || spec.SellbackPct > 1 {
		return fmt.Errorf("sellback pct must be within [0, 1]")
	}
	if spec.FootprintW <= 0 || spec.FootprintH <= 0 {
		return fmt.Errorf("footprint must be > 0 in both axes")
	}
	if spec.Size <= 0 {
		return fmt.Errorf("size must be > 0")
	}
	for _, mod := range spec.GlobalModifiers {
		if mod.IncomeMultiplier <= 0 {
			return fmt.Errorf("modifier income multiplier must be > 0")
		}
		if len(mod.AffectedCategories) == 0 {
			return fmt.Errorf("modifier must affect at least one category")
		}
	}
	return nil
}
