package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/epochforge/epochforge/internal/storage"
)

func insertRecipeTx(ctx context.Context, tx *sql.Tx, recipe storage.Recipe) error {
	createdAt := recipe.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO recipes (input_a_id, input_b_id, result_id, discovered_by, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		recipe.InputAID,
		recipe.InputBID,
		recipe.ResultID,
		recipe.DiscoveredBy,
		toMillis(createdAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert recipe: %w", err)
	}
	return nil
}

// CreateRecipe inserts one recipe keyed by its canonical input pair.
func (s *Store) CreateRecipe(ctx context.Context, recipe storage.Recipe) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(recipe.InputAID) == "" || strings.TrimSpace(recipe.InputBID) == "" {
		return fmt.Errorf("recipe input ids are required")
	}
	if strings.TrimSpace(recipe.ResultID) == "" {
		return fmt.Errorf("recipe result id is required")
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return insertRecipeTx(ctx, tx, recipe)
	})
}

// GetRecipe returns the recipe for a canonical input pair.
func (s *Store) GetRecipe(ctx context.Context, inputAID, inputBID string) (storage.Recipe, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Recipe{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT input_a_id, input_b_id, result_id, discovered_by, created_at
		   FROM recipes
		  WHERE input_a_id = ? AND input_b_id = ?`,
		inputAID, inputBID,
	)
	var recipe storage.Recipe
	var createdAt int64
	err := row.Scan(
		&recipe.InputAID,
		&recipe.InputBID,
		&recipe.ResultID,
		&recipe.DiscoveredBy,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Recipe{}, storage.ErrNotFound
		}
		return storage.Recipe{}, fmt.Errorf("get recipe: %w", err)
	}
	recipe.CreatedAt = fromMillis(createdAt)
	return recipe, nil
}

// DeleteRecipe removes the recipe for a canonical input pair.
func (s *Store) DeleteRecipe(ctx context.Context, inputAID, inputBID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM recipes WHERE input_a_id = ? AND input_b_id = ?`,
		inputAID, inputBID,
	)
	if err != nil {
		return fmt.Errorf("delete recipe: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete recipe: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ApplyCraft persists a successful craft in one transaction: the generated
// object when present, the recipe, an optional discovery grant, and the
// coin debit.
func (s *Store) ApplyCraft(ctx context.Context, commit storage.CraftCommit) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(commit.PlayerID) == "" {
		return fmt.Errorf("player id is required")
	}
	now := commit.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if commit.Object != nil {
			if err := insertObjectTx(ctx, tx, *commit.Object); err != nil {
				return err
			}
		}
		if err := insertRecipeTx(ctx, tx, commit.Recipe); err != nil {
			return err
		}
		if commit.GrantDiscovery {
			_, err := tx.ExecContext(
				ctx,
				`INSERT OR IGNORE INTO discoveries (player_id, object_id, discovered_at)
				 VALUES (?, ?, ?)`,
				commit.PlayerID, commit.Recipe.ResultID, toMillis(now),
			)
			if err != nil {
				return fmt.Errorf("grant craft discovery: %w", err)
			}
		}
		if !commit.Cost.IsZero() {
			if err := adjustBalancesTx(ctx, tx, commit.PlayerID, commit.Cost.Neg(), decimal.Zero, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// ApplyRecipeUse grants the result discovery if missing and debits the
// crafting cost in one transaction.
func (s *Store) ApplyRecipeUse(ctx context.Context, playerID, resultID string, cost decimal.Decimal, now time.Time) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	if strings.TrimSpace(playerID) == "" {
		return false, fmt.Errorf("player id is required")
	}
	if strings.TrimSpace(resultID) == "" {
		return false, fmt.Errorf("result id is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	var created bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(
			ctx,
			`INSERT OR IGNORE INTO discoveries (player_id, object_id, discovered_at)
			 VALUES (?, ?, ?)`,
			playerID, resultID, toMillis(now),
		)
		if err != nil {
			return fmt.Errorf("grant recipe discovery: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("grant recipe discovery: %w", err)
		}
		created = affected > 0
		if !cost.IsZero() {
			if err := adjustBalancesTx(ctx, tx, playerID, cost.Neg(), decimal.Zero, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}
