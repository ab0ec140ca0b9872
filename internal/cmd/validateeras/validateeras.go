// Package validateeras checks the embedded era definitions beyond what
// loading enforces: recipe chains must be buildable from known objects and
// must end in the era's keystone.
package validateeras

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"

	"github.com/epochforge/epochforge/internal/era"
	entrypoint "github.com/epochforge/epochforge/internal/platform/cmd"
)

// Config holds validate-eras command configuration.
type Config struct {
	Verbose bool `env:"EPOCHFORGE_VALIDATE_VERBOSE"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "print per-era detail")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run loads and validates the embedded era table, writing a summary to
// out.
func Run(_ context.Context, cfg Config, out io.Writer) error {
	eras, err := era.Load()
	if err != nil {
		return fmt.Errorf("load eras: %w", err)
	}
	problems := Check(eras)
	for _, problem := range problems {
		log.Printf("era validation problem=%q", problem)
	}

	starters, recipes := 0, 0
	for _, def := range eras.All() {
		starters += len(def.Starters)
		recipes += len(def.Keystone.RecipeChain) + len(def.Recipes)
		if cfg.Verbose {
			fmt.Fprintf(out, "era %d %q: keystone=%s starters=%d chain=%d\n",
				def.Order, def.Name, def.Keystone.Name, len(def.Starters), len(def.Keystone.RecipeChain))
		}
	}
	fmt.Fprintf(out, "eras=%d starters=%d predefined_recipes=%d problems=%d\n",
		len(eras.All()), starters, recipes, len(problems))
	if len(problems) > 0 {
		return fmt.Errorf("era definitions have %d problems", len(problems))
	}
	return nil
}

// Check verifies recipe reachability across the whole table: every
// predefined recipe input must be a starter, a keystone, or the output of
// another predefined recipe, and every non-empty keystone chain must end
// in its era's keystone.
func Check(eras *era.Table) []string {
	known := make(map[string]bool)
	for _, def := range eras.All() {
		for _, starter := range def.Starters {
			known[starter.Name] = true
		}
		known[def.Keystone.Name] = true
	}
	for _, recipe := range eras.PredefinedRecipes() {
		if name, ok := recipe.Output["object_name"].(string); ok {
			known[name] = true
		}
	}

	var problems []string
	for _, recipe := range eras.PredefinedRecipes() {
		if !known[recipe.InputA] {
			problems = append(problems, fmt.Sprintf("recipe input %q is not reachable", recipe.InputA))
		}
		if !known[recipe.InputB] {
			problems = append(problems, fmt.Sprintf("recipe input %q is not reachable", recipe.InputB))
		}
		if _, ok := recipe.Output["object_name"].(string); !ok {
			problems = append(problems, fmt.Sprintf("recipe %q+%q has no output name", recipe.InputA, recipe.InputB))
		}
	}
	for _, def := range eras.All() {
		chain := def.Keystone.RecipeChain
		if len(chain) == 0 {
			continue
		}
		last := chain[len(chain)-1]
		if name, _ := last.Output["object_name"].(string); name != def.Keystone.Name {
			problems = append(problems, fmt.Sprintf("era %q chain ends in %q, not its keystone %q", def.Name, name, def.Keystone.Name))
		}
	}
	return problems
}
