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

const placementColumns = `p.id, p.player_id, p.object_id, p.x, p.y,
       p.placed_at, p.build_complete_at, p.retire_at, p.building, p.operational`

const canvasColumns = placementColumns + `,
       o.id, o.name, o.era, o.is_keystone, o.is_starter, o.category, o.quality_tier,
       o.cost, o.time_crystal_cost, o.income_per_second, o.time_crystal_generation,
       o.build_time_sec, o.operation_duration_sec, o.retire_payout_pct, o.sellback_pct,
       o.cap_per_owner, o.footprint_w, o.footprint_h, o.size, o.global_modifiers,
       o.flavor_text, o.image_ref, o.created_at`

func scanPlacementInto(placed *storage.PlacedObject, row rowScanner, extra ...any) error {
	var placedAt, buildCompleteAt int64
	var retireAt sql.NullInt64
	dest := []any{
		&placed.ID,
		&placed.PlayerID,
		&placed.ObjectID,
		&placed.X,
		&placed.Y,
		&placedAt,
		&buildCompleteAt,
		&retireAt,
		&placed.Building,
		&placed.Operational,
	}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}
	placed.PlacedAt = fromMillis(placedAt)
	placed.BuildCompleteAt = fromMillis(buildCompleteAt)
	if retireAt.Valid {
		t := fromMillis(retireAt.Int64)
		placed.RetireAt = &t
	}
	return nil
}

func scanCanvasEntry(row rowScanner) (storage.CanvasEntry, error) {
	var entry storage.CanvasEntry
	var obj storage.GameObject
	var cost, crystalCost, income, generation, payoutPct, sellbackPct, size string
	var modifiers string
	var capPerOwner sql.NullInt64
	var objCreatedAt int64

	err := scanPlacementInto(&entry.Placed, row,
		&obj.ID,
		&obj.Name,
		&obj.Era,
		&obj.IsKeystone,
		&obj.IsStarter,
		&obj.Category,
		&obj.QualityTier,
		&cost,
		&crystalCost,
		&income,
		&generation,
		&obj.BuildTimeSec,
		&obj.OperationDurationSec,
		&payoutPct,
		&sellbackPct,
		&capPerOwner,
		&obj.FootprintW,
		&obj.FootprintH,
		&size,
		&modifiers,
		&obj.FlavorText,
		&obj.ImageRef,
		&objCreatedAt,
	)
	if err != nil {
		return storage.CanvasEntry{}, err
	}

	if obj.Cost, err = parseDecimal(cost, "cost"); err != nil {
		return storage.CanvasEntry{}, err
	}
	if obj.TimeCrystalCost, err = parseDecimal(crystalCost, "time_crystal_cost"); err != nil {
		return storage.CanvasEntry{}, err
	}
	if obj.IncomePerSecond, err = parseDecimal(income, "income_per_second"); err != nil {
		return storage.CanvasEntry{}, err
	}
	if obj.TimeCrystalGeneration, err = parseDecimal(generation, "time_crystal_generation"); err != nil {
		return storage.CanvasEntry{}, err
	}
	if obj.RetirePayoutPct, err = parseDecimal(payoutPct, "retire_payout_pct"); err != nil {
		return storage.CanvasEntry{}, err
	}
	if obj.SellbackPct, err = parseDecimal(sellbackPct, "sellback_pct"); err != nil {
		return storage.CanvasEntry{}, err
	}
	if obj.Size, err = parseDecimal(size, "size"); err != nil {
		return storage.CanvasEntry{}, err
	}
	if obj.GlobalModifiers, err = decodeModifiers(modifiers); err != nil {
		return storage.CanvasEntry{}, err
	}
	if capPerOwner.Valid {
		cap := int(capPerOwner.Int64)
		obj.CapPerOwner = &cap
	}
	obj.CreatedAt = fromMillis(objCreatedAt)
	entry.Object = obj
	return entry, nil
}

func queryCanvasEntries(ctx context.Context, q interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}, query string, args ...any) ([]storage.CanvasEntry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []storage.CanvasEntry
	for rows.Next() {
		entry, err := scanCanvasEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// PlaceObject inserts the placement and debits both currencies in one
// transaction.
func (s *Store) PlaceObject(ctx context.Context, placed storage.PlacedObject, coinCost, crystalCost decimal.Decimal) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(placed.ID) == "" {
		return fmt.Errorf("placement id is required")
	}
	if strings.TrimSpace(placed.PlayerID) == "" {
		return fmt.Errorf("player id is required")
	}
	if strings.TrimSpace(placed.ObjectID) == "" {
		return fmt.Errorf("object id is required")
	}
	var retireAt sql.NullInt64
	if placed.RetireAt != nil {
		retireAt = sql.NullInt64{Int64: toMillis(*placed.RetireAt), Valid: true}
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO placed_objects (
			   id, player_id, object_id, x, y,
			   placed_at, build_complete_at, retire_at, building, operational
			 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			placed.ID,
			placed.PlayerID,
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
			if isUniqueViolation(err) {
				return storage.ErrAlreadyExists
			}
			return fmt.Errorf("insert placement: %w", err)
		}
		if !coinCost.IsZero() || !crystalCost.IsZero() {
			if err := adjustBalancesTx(ctx, tx, placed.PlayerID, coinCost.Neg(), crystalCost.Neg(), placed.PlacedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetPlacement returns one placement owned by the player.
func (s *Store) GetPlacement(ctx context.Context, playerID, placedID string) (storage.PlacedObject, error) {
	if err := s.ready(ctx); err != nil {
		return storage.PlacedObject{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+placementColumns+`
		   FROM placed_objects p
		  WHERE p.player_id = ? AND p.id = ?`,
		playerID, placedID,
	)
	var placed storage.PlacedObject
	if err := scanPlacementInto(&placed, row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.PlacedObject{}, storage.ErrNotFound
		}
		return storage.PlacedObject{}, fmt.Errorf("get placement: %w", err)
	}
	return placed, nil
}

// ListCanvas returns every placement of one player joined with its object
// definition, ordered by placement id.
func (s *Store) ListCanvas(ctx context.Context, playerID string) ([]storage.CanvasEntry, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	entries, err := queryCanvasEntries(
		ctx,
		s.sqlDB,
		`SELECT `+canvasColumns+`
		   FROM placed_objects p
		   JOIN game_objects o ON o.id = p.object_id
		  WHERE p.player_id = ?
		  ORDER BY p.id ASC`,
		playerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list canvas: %w", err)
	}
	return entries, nil
}

// CountPlacements counts one player's placements of one object.
func (s *Store) CountPlacements(ctx context.Context, playerID, objectID string) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM placed_objects WHERE player_id = ? AND object_id = ?`,
		playerID, objectID,
	)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count placements: %w", err)
	}
	return count, nil
}

// ListDueBuilds returns the building placements due at or before now,
// ordered by placement id, without mutating them.
func (s *Store) ListDueBuilds(ctx context.Context, playerID string, now time.Time) ([]storage.CanvasEntry, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	entries, err := queryCanvasEntries(
		ctx,
		s.sqlDB,
		`SELECT `+canvasColumns+`
		   FROM placed_objects p
		   JOIN game_objects o ON o.id = p.object_id
		  WHERE p.player_id = ? AND p.building = 1 AND p.build_complete_at <= ?
		  ORDER BY p.id ASC`,
		playerID, toMillis(now),
	)
	if err != nil {
		return nil, fmt.Errorf("list due builds: %w", err)
	}
	return entries, nil
}

// CompleteBuilds flips every due building placement to operational in one
// transaction and returns the completed entries ordered by placement id.
func (s *Store) CompleteBuilds(ctx context.Context, playerID string, now time.Time) ([]storage.CanvasEntry, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	var completed []storage.CanvasEntry
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		entries, err := queryCanvasEntries(
			ctx,
			tx,
			`SELECT `+canvasColumns+`
			   FROM placed_objects p
			   JOIN game_objects o ON o.id = p.object_id
			  WHERE p.player_id = ? AND p.building = 1 AND p.build_complete_at <= ?
			  ORDER BY p.id ASC`,
			playerID, toMillis(now),
		)
		if err != nil {
			return fmt.Errorf("select due builds: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}
		_, err = tx.ExecContext(
			ctx,
			`UPDATE placed_objects SET building = 0, operational = 1
			  WHERE player_id = ? AND building = 1 AND build_complete_at <= ?`,
			playerID, toMillis(now),
		)
		if err != nil {
			return fmt.Errorf("complete builds: %w", err)
		}
		for i := range entries {
			entries[i].Placed.Building = false
			entries[i].Placed.Operational = true
		}
		completed = entries
		return nil
	})
	return completed, err
}

// RetirePlacements soft-retires every operational placement whose retire_at
// has passed, credits the retirement payouts, and returns the retired
// entries, all in one transaction.
func (s *Store) RetirePlacements(ctx context.Context, playerID string, now time.Time) ([]storage.CanvasEntry, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	var retired []storage.CanvasEntry
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		entries, err := queryCanvasEntries(
			ctx,
			tx,
			`SELECT `+canvasColumns+`
			   FROM placed_objects p
			   JOIN game_objects o ON o.id = p.object_id
			  WHERE p.player_id = ? AND p.operational = 1
			    AND p.retire_at IS NOT NULL AND p.retire_at <= ?
			  ORDER BY p.id ASC`,
			playerID, toMillis(now),
		)
		if err != nil {
			return fmt.Errorf("select due retirements: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}

		payout := decimal.Zero
		for _, entry := range entries {
			payout = payout.Add(entry.Object.Cost.Mul(entry.Object.RetirePayoutPct))
		}

		_, err = tx.ExecContext(
			ctx,
			`UPDATE placed_objects SET operational = 0
			  WHERE player_id = ? AND operational = 1
			    AND retire_at IS NOT NULL AND retire_at <= ?`,
			playerID, toMillis(now),
		)
		if err != nil {
			return fmt.Errorf("retire placements: %w", err)
		}
		if !payout.IsZero() {
			if err := adjustBalancesTx(ctx, tx, playerID, payout, decimal.Zero, now); err != nil {
				return err
			}
		}
		for i := range entries {
			entries[i].Placed.Operational = false
		}
		retired = entries
		return nil
	})
	return retired, err
}

// RemovePlacement deletes the placement and credits the refund in one
// transaction.
func (s *Store) RemovePlacement(ctx context.Context, playerID, placedID string, refund decimal.Decimal, now time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(
			ctx,
			`DELETE FROM placed_objects WHERE player_id = ? AND id = ?`,
			playerID, placedID,
		)
		if err != nil {
			return fmt.Errorf("remove placement: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("remove placement: %w", err)
		}
		if affected == 0 {
			return storage.ErrNotFound
		}
		if !refund.IsZero() {
			if err := adjustBalancesTx(ctx, tx, playerID, refund, decimal.Zero, now); err != nil {
				return err
			}
		}
		return nil
	})
}
