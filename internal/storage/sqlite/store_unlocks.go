package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/epochforge/epochforge/internal/storage"
)

// ApplyEraUnlock inserts the unlock, debits the crystal cost, sets the
// player's current era, and grants the starter discoveries, all in one
// transaction.
func (s *Store) ApplyEraUnlock(ctx context.Context, playerID, era string, cost decimal.Decimal, starterObjectIDs []string, now time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(playerID) == "" {
		return fmt.Errorf("player id is required")
	}
	if strings.TrimSpace(era) == "" {
		return fmt.Errorf("era is required")
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO era_unlocks (player_id, era, unlocked_at) VALUES (?, ?, ?)`,
			playerID, era, toMillis(now),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return storage.ErrAlreadyExists
			}
			return fmt.Errorf("insert era unlock: %w", err)
		}
		if !cost.IsZero() {
			if err := adjustBalancesTx(ctx, tx, playerID, decimal.Zero, cost.Neg(), now); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(
			ctx,
			`UPDATE player_profiles SET current_era = ?, updated_at = ? WHERE player_id = ?`,
			era, toMillis(now), playerID,
		)
		if err != nil {
			return fmt.Errorf("set current era: %w", err)
		}
		for _, objectID := range starterObjectIDs {
			_, err := tx.ExecContext(
				ctx,
				`INSERT OR IGNORE INTO discoveries (player_id, object_id, discovered_at)
				 VALUES (?, ?, ?)`,
				playerID, objectID, toMillis(now),
			)
			if err != nil {
				return fmt.Errorf("grant starter discovery: %w", err)
			}
		}
		return nil
	})
}

// HasEraUnlock reports whether a player has unlocked an era.
func (s *Store) HasEraUnlock(ctx context.Context, playerID, era string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM era_unlocks WHERE player_id = ? AND era = ?`,
		playerID, era,
	)
	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("has era unlock: %w", err)
	}
	return count > 0, nil
}

// ListEraUnlocks returns a player's era unlocks ordered by unlock time.
func (s *Store) ListEraUnlocks(ctx context.Context, playerID string) ([]storage.EraUnlock, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT player_id, era, unlocked_at
		   FROM era_unlocks
		  WHERE player_id = ?
		  ORDER BY unlocked_at ASC, era ASC`,
		playerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list era unlocks: %w", err)
	}
	defer rows.Close()

	var unlocks []storage.EraUnlock
	for rows.Next() {
		var unlock storage.EraUnlock
		var unlockedAt int64
		if err := rows.Scan(&unlock.PlayerID, &unlock.Era, &unlockedAt); err != nil {
			return nil, fmt.Errorf("list era unlocks: %w", err)
		}
		unlock.UnlockedAt = fromMillis(unlockedAt)
		unlocks = append(unlocks, unlock)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list era unlocks: %w", err)
	}
	return unlocks, nil
}
