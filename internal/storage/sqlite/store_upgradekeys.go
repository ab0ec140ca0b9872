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

// CreateUpgradeKey inserts one unredeemed pro upgrade key.
func (s *Store) CreateUpgradeKey(ctx context.Context, key storage.UpgradeKey) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(key.Key) == "" {
		return fmt.Errorf("upgrade key is required")
	}
	createdAt := key.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO upgrade_keys (key, created_at) VALUES (?, ?)`,
		key.Key, toMillis(createdAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create upgrade key: %w", err)
	}
	return nil
}

// GetUpgradeKey returns one upgrade key.
func (s *Store) GetUpgradeKey(ctx context.Context, key string) (storage.UpgradeKey, error) {
	if err := s.ready(ctx); err != nil {
		return storage.UpgradeKey{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT key, created_at, redeemed_by, redeemed_at
		   FROM upgrade_keys
		  WHERE key = ?`,
		key,
	)
	var record storage.UpgradeKey
	var createdAt int64
	var redeemedAt sql.NullInt64
	err := row.Scan(&record.Key, &createdAt, &record.RedeemedBy, &redeemedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.UpgradeKey{}, storage.ErrNotFound
		}
		return storage.UpgradeKey{}, fmt.Errorf("get upgrade key: %w", err)
	}
	record.CreatedAt = fromMillis(createdAt)
	if redeemedAt.Valid {
		t := fromMillis(redeemedAt.Int64)
		record.RedeemedAt = &t
	}
	return record, nil
}

// RedeemUpgradeKey marks the key redeemed and flips the player to the pro
// tier in one transaction.
func (s *Store) RedeemUpgradeKey(ctx context.Context, key, playerID string, now time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(
			ctx,
			`SELECT redeemed_by FROM upgrade_keys WHERE key = ?`,
			key,
		)
		var redeemedBy string
		if err := row.Scan(&redeemedBy); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.ErrNotFound
			}
			return fmt.Errorf("read upgrade key: %w", err)
		}
		if redeemedBy != "" {
			return storage.ErrAlreadyExists
		}

		_, err := tx.ExecContext(
			ctx,
			`UPDATE upgrade_keys SET redeemed_by = ?, redeemed_at = ? WHERE key = ?`,
			playerID, toMillis(now), key,
		)
		if err != nil {
			return fmt.Errorf("redeem upgrade key: %w", err)
		}

		res, err := tx.ExecContext(
			ctx,
			`UPDATE player_profiles SET pro = 1, updated_at = ? WHERE player_id = ?`,
			toMillis(now), playerID,
		)
		if err != nil {
			return fmt.Errorf("upgrade player tier: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("upgrade player tier: %w", err)
		}
		if affected == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
}
