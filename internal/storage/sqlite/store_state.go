package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/epochforge/epochforge/internal/storage"
)

// GetPlayerState exports everything owned by one player.
func (s *Store) GetPlayerState(ctx context.Context, playerID string) (storage.PlayerState, error) {
	if err := s.ready(ctx); err != nil {
		return storage.PlayerState{}, err
	}
	profile, err := s.GetProfile(ctx, playerID)
	if err != nil {
		return storage.PlayerState{}, err
	}
	discoveries, err := s.ListDiscoveries(ctx, playerID)
	if err != nil {
		return storage.PlayerState{}, err
	}
	unlocks, err := s.ListEraUnlocks(ctx, playerID)
	if err != nil {
		return storage.PlayerState{}, err
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+placementColumns+`
		   FROM placed_objects p
		  WHERE p.player_id = ?
		  ORDER BY p.id ASC`,
		playerID,
	)
	if err != nil {
		return storage.PlayerState{}, fmt.Errorf("list placements: %w", err)
	}
	defer rows.Close()

	var placements []storage.PlacedObject
	for rows.Next() {
		var placed storage.PlacedObject
		if err := scanPlacementInto(&placed, rows); err != nil {
			return storage.PlayerState{}, fmt.Errorf("list placements: %w", err)
		}
		placements = append(placements, placed)
	}
	if err := rows.Err(); err != nil {
		return storage.PlayerState{}, fmt.Errorf("list placements: %w", err)
	}

	return storage.PlayerState{
		Profile:     profile,
		Discoveries: discoveries,
		Placements:  placements,
		Unlocks:     unlocks,
	}, nil
}

// ReplacePlayerState wipes every row owned by the target player and rebuilds
// it from state in one transaction.
func (s *Store) ReplacePlayerState(ctx context.Context, state storage.PlayerState) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	playerID := strings.TrimSpace(state.Profile.PlayerID)
	if playerID == "" {
		return fmt.Errorf("player id is required")
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM placed_objects WHERE player_id = ?`,
			`DELETE FROM discoveries WHERE player_id = ?`,
			`DELETE FROM era_unlocks WHERE player_id = ?`,
			`DELETE FROM player_profiles WHERE player_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, playerID); err != nil {
				return fmt.Errorf("wipe player state: %w", err)
			}
		}

		profile := state.Profile
		var lastReconciledAt sql.NullInt64
		if !profile.LastReconciledAt.IsZero() {
			lastReconciledAt = sql.NullInt64{Int64: toMillis(profile.LastReconciledAt), Valid: true}
		}
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO player_profiles (
			   player_id, coins, time_crystals, current_era,
			   last_reconciled_at, pro, fee_exempt, created_at, updated_at
			 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			playerID,
			profile.Coins.String(),
			profile.TimeCrystals.String(),
			profile.CurrentEra,
			lastReconciledAt,
			profile.Pro,
			profile.FeeExempt,
			toMillis(profile.CreatedAt),
			toMillis(profile.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("import player profile: %w", err)
		}

		for _, d := range state.Discoveries {
			_, err := tx.ExecContext(
				ctx,
				`INSERT OR IGNORE INTO discoveries (player_id, object_id, discovered_at)
				 VALUES (?, ?, ?)`,
				playerID, d.ObjectID, toMillis(d.DiscoveredAt),
			)
			if err != nil {
				return fmt.Errorf("import discovery: %w", err)
			}
		}

		for _, u := range state.Unlocks {
			_, err := tx.ExecContext(
				ctx,
				`INSERT OR IGNORE INTO era_unlocks (player_id, era, unlocked_at)
				 VALUES (?, ?, ?)`,
				playerID, u.Era, toMillis(u.UnlockedAt),
			)
			if err != nil {
				return fmt.Errorf("import era unlock: %w", err)
			}
		}

		for _, placed := range state.Placements {
			var retireAt sql.NullInt64
			if placed.RetireAt != nil {
				retireAt = sql.NullInt64{Int64: toMillis(*placed.RetireAt), Valid: true}
			}
			_, err := tx.ExecContext(
				ctx,
				`INSERT INTO placed_objects (
				   id, player_id, object_id, x, y,
				   placed_at, build_complete_at, retire_at, building, operational
				 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				placed.ID,
				playerID,
				placed.ObjectID,
				placed.X,
				placed.Y,
				toMillis(placed.PlacedAt),
				toMillis(placed.BuildCompleteAt),
				retireAt,
				placed.Building,
				placed.Operational,
			)
			if err != nil {
				return fmt.Errorf("import placement: %w", err)
			}
		}
		return nil
	})
}
