package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/epochforge/epochforge/internal/storage"
)

const objectColumns = `id, name, era, is_keystone, is_starter, category, quality_tier,
       cost, time_crystal_cost, income_per_second, time_crystal_generation,
       build_time_sec, operation_duration_sec, retire_payout_pct, sellback_pct,
       cap_per_owner, footprint_w, footprint_h, size, global_modifiers,
       flavor_text, image_ref, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObject(row rowScanner) (storage.GameObject, error) {
	var obj storage.GameObject
	var cost, crystalCost, income, generation, payoutPct, sellbackPct, size string
	var modifiers string
	var capPerOwner sql.NullInt64
	var createdAt int64
	err := row.Scan(
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
		&createdAt,
	)
	if err != nil {
		return storage.GameObject{}, err
	}

	if obj.Cost, err = parseDecimal(cost, "cost"); err != nil {
		return storage.GameObject{}, err
	}
	if obj.TimeCrystalCost, err = parseDecimal(crystalCost, "time_crystal_cost"); err != nil {
		return storage.GameObject{}, err
	}
	if obj.IncomePerSecond, err = parseDecimal(income, "income_per_second"); err != nil {
		return storage.GameObject{}, err
	}
	if obj.TimeCrystalGeneration, err = parseDecimal(generation, "time_crystal_generation"); err != nil {
		return storage.GameObject{}, err
	}
	if obj.RetirePayoutPct, err = parseDecimal(payoutPct, "retire_payout_pct"); err != nil {
		return storage.GameObject{}, err
	}
	if obj.SellbackPct, err = parseDecimal(sellbackPct, "sellback_pct"); err != nil {
		return storage.GameObject{}, err
	}
	if obj.Size, err = parseDecimal(size, "size"); err != nil {
		return storage.GameObject{}, err
	}
	if obj.GlobalModifiers, err = decodeModifiers(modifiers); err != nil {
		return storage.GameObject{}, err
	}
	if capPerOwner.Valid {
		cap := int(capPerOwner.Int64)
		obj.CapPerOwner = &cap
	}
	obj.CreatedAt = fromMillis(createdAt)
	return obj, nil
}

func insertObjectTx(ctx context.Context, tx *sql.Tx, obj storage.GameObject) error {
	modifiers, err := encodeModifiers(obj.GlobalModifiers)
	if err != nil {
		return err
	}
	var capPerOwner sql.NullInt64
	if obj.CapPerOwner != nil {
		capPerOwner = sql.NullInt64{Int64: int64(*obj.CapPerOwner), Valid: true}
	}
	createdAt := obj.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO game_objects (`+objectColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		obj.ID,
		obj.Name,
		obj.Era,
		obj.IsKeystone,
		obj.IsStarter,
		obj.Category,
		obj.QualityTier,
		obj.Cost.String(),
		obj.TimeCrystalCost.String(),
		obj.IncomePerSecond.String(),
		obj.TimeCrystalGeneration.String(),
		obj.BuildTimeSec,
		obj.OperationDurationSec,
		obj.RetirePayoutPct.String(),
		obj.SellbackPct.String(),
		capPerOwner,
		obj.FootprintW,
		obj.FootprintH,
		obj.Size.String(),
		modifiers,
		obj.FlavorText,
		obj.ImageRef,
		toMillis(createdAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert game object: %w", err)
	}
	return nil
}

// CreateObject inserts one object definition.
func (s *Store) CreateObject(ctx context.Context, obj storage.GameObject) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(obj.ID) == "" {
		return fmt.Errorf("object id is required")
	}
	if strings.TrimSpace(obj.Name) == "" {
		return fmt.Errorf("object name is required")
	}
	if strings.TrimSpace(obj.Era) == "" {
		return fmt.Errorf("object era is required")
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return insertObjectTx(ctx, tx, obj)
	})
}

// GetObject returns one object by id.
func (s *Store) GetObject(ctx context.Context, id string) (storage.GameObject, error) {
	if err := s.ready(ctx); err != nil {
		return storage.GameObject{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+objectColumns+` FROM game_objects WHERE id = ?`,
		id,
	)
	obj, err := scanObject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.GameObject{}, storage.ErrNotFound
		}
		return storage.GameObject{}, fmt.Errorf("get game object: %w", err)
	}
	return obj, nil
}

// GetObjectByName returns one object by its unique name.
func (s *Store) GetObjectByName(ctx context.Context, name string) (storage.GameObject, error) {
	if err := s.ready(ctx); err != nil {
		return storage.GameObject{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+objectColumns+` FROM game_objects WHERE name = ?`,
		name,
	)
	obj, err := scanObject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.GameObject{}, storage.ErrNotFound
		}
		return storage.GameObject{}, fmt.Errorf("get game object by name: %w", err)
	}
	return obj, nil
}

// ListObjects returns every object definition ordered by id.
func (s *Store) ListObjects(ctx context.Context) ([]storage.GameObject, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+objectColumns+` FROM game_objects ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list game objects: %w", err)
	}
	defer rows.Close()

	var objects []storage.GameObject
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, fmt.Errorf("list game objects: %w", err)
		}
		objects = append(objects, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list game objects: %w", err)
	}
	return objects, nil
}

// ListStarterObjects returns the starter objects of one era ordered by id.
func (s *Store) ListStarterObjects(ctx context.Context, era string) ([]storage.GameObject, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+objectColumns+` FROM game_objects
		  WHERE era = ? AND is_starter = 1
		  ORDER BY id ASC`,
		era,
	)
	if err != nil {
		return nil, fmt.Errorf("list starter objects: %w", err)
	}
	defer rows.Close()

	var objects []storage.GameObject
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, fmt.Errorf("list starter objects: %w", err)
		}
		objects = append(objects, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list starter objects: %w", err)
	}
	return objects, nil
}

// DeleteObject removes one object definition.
func (s *Store) DeleteObject(ctx context.Context, id string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM game_objects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete game object: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete game object: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SetObjectImageRef backfills the image reference of one object.
func (s *Store) SetObjectImageRef(ctx context.Context, id, imageRef string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE game_objects SET image_ref = ? WHERE id = ?`,
		imageRef, id,
	)
	if err != nil {
		return fmt.Errorf("set object image ref: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set object image ref: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SetObjectStarter flips the starter flag of one object.
func (s *Store) SetObjectStarter(ctx context.Context, id string, starter bool) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE game_objects SET is_starter = ? WHERE id = ?`,
		starter, id,
	)
	if err != nil {
		return fmt.Errorf("set object starter: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set object starter: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
