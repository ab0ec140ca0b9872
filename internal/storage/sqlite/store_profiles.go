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

func scanProfile(row rowScanner) (storage.PlayerProfile, error) {
	var profile storage.PlayerProfile
	var coins, crystals string
	var lastReconciledAt sql.NullInt64
	var createdAt, updatedAt int64
	err := row.Scan(
		&profile.PlayerID,
		&coins,
		&crystals,
		&profile.CurrentEra,
		&lastReconciledAt,
		&profile.Pro,
		&profile.FeeExempt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return storage.PlayerProfile{}, err
	}
	if profile.Coins, err = parseDecimal(coins, "coins"); err != nil {
		return storage.PlayerProfile{}, err
	}
	if profile.TimeCrystals, err = parseDecimal(crystals, "time_crystals"); err != nil {
		return storage.PlayerProfile{}, err
	}
	if lastReconciledAt.Valid {
		profile.LastReconciledAt = fromMillis(lastReconciledAt.Int64)
	}
	profile.CreatedAt = fromMillis(createdAt)
	profile.UpdatedAt = fromMillis(updatedAt)
	return profile, nil
}

// CreateProfile inserts one player profile.
func (s *Store) CreateProfile(ctx context.Context, profile storage.PlayerProfile) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(profile.PlayerID) == "" {
		return fmt.Errorf("player id is required")
	}
	if strings.TrimSpace(profile.CurrentEra) == "" {
		return fmt.Errorf("current era is required")
	}
	createdAt := profile.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := profile.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	var lastReconciledAt sql.NullInt64
	if !profile.LastReconciledAt.IsZero() {
		lastReconciledAt = sql.NullInt64{Int64: toMillis(profile.LastReconciledAt), Valid: true}
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO player_profiles (
		   player_id, coins, time_crystals, current_era,
		   last_reconciled_at, pro, fee_exempt, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		profile.PlayerID,
		profile.Coins.String(),
		profile.TimeCrystals.String(),
		profile.CurrentEra,
		lastReconciledAt,
		profile.Pro,
		profile.FeeExempt,
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create player profile: %w", err)
	}
	return nil
}

// GetProfile returns one player profile.
func (s *Store) GetProfile(ctx context.Context, playerID string) (storage.PlayerProfile, error) {
	if err := s.ready(ctx); err != nil {
		return storage.PlayerProfile{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT player_id, coins, time_crystals, current_era,
		        last_reconciled_at, pro, fee_exempt, created_at, updated_at
		   FROM player_profiles
		  WHERE player_id = ?`,
		playerID,
	)
	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.PlayerProfile{}, storage.ErrNotFound
		}
		return storage.PlayerProfile{}, fmt.Errorf("get player profile: %w", err)
	}
	return profile, nil
}

// adjustBalancesTx applies signed deltas to both balances inside tx. The
// caller decides the sign; balances may not go negative.
func adjustBalancesTx(ctx context.Context, tx *sql.Tx, playerID string, coins, crystals decimal.Decimal, now time.Time) error {
	row := tx.QueryRowContext(
		ctx,
		`SELECT coins, time_crystals FROM player_profiles WHERE player_id = ?`,
		playerID,
	)
	var coinsRaw, crystalsRaw string
	if err := row.Scan(&coinsRaw, &crystalsRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("read balances: %w", err)
	}
	current, err := parseDecimal(coinsRaw, "coins")
	if err != nil {
		return err
	}
	currentCrystals, err := parseDecimal(crystalsRaw, "time_crystals")
	if err != nil {
		return err
	}

	newCoins := current.Add(coins)
	newCrystals := currentCrystals.Add(crystals)
	if newCoins.IsNegative() || newCrystals.IsNegative() {
		return fmt.Errorf("balance would go negative")
	}

	_, err = tx.ExecContext(
		ctx,
		`UPDATE player_profiles SET coins = ?, time_crystals = ?, updated_at = ? WHERE player_id = ?`,
		newCoins.String(),
		newCrystals.String(),
		toMillis(now),
		playerID,
	)
	if err != nil {
		return fmt.Errorf("update balances: %w", err)
	}
	return nil
}

// CreditBalances adds to both balances.
func (s *Store) CreditBalances(ctx context.Context, playerID string, coins, crystals decimal.Decimal, now time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return adjustBalancesTx(ctx, tx, playerID, coins, crystals, now)
	})
}

// DebitBalances subtracts from both balances.
func (s *Store) DebitBalances(ctx context.Context, playerID string, coins, crystals decimal.Decimal, now time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return adjustBalancesTx(ctx, tx, playerID, coins.Neg(), crystals.Neg(), now)
	})
}

// SettleAccrual credits both balances and advances the reconciliation
// timestamp in one transaction.
func (s *Store) SettleAccrual(ctx context.Context, playerID string, coins, crystals decimal.Decimal, reconciledAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := adjustBalancesTx(ctx, tx, playerID, coins, crystals, reconciledAt); err != nil {
			return err
		}
		_, err := tx.ExecContext(
			ctx,
			`UPDATE player_profiles SET last_reconciled_at = ? WHERE player_id = ?`,
			toMillis(reconciledAt),
			playerID,
		)
		if err != nil {
			return fmt.Errorf("advance reconciliation timestamp: %w", err)
		}
		return nil
	})
}

// SetPro flips the pro tier flag.
func (s *Store) SetPro(ctx context.Context, playerID string, pro bool, now time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE player_profiles SET pro = ?, updated_at = ? WHERE player_id = ?`,
		pro, toMillis(now), playerID,
	)
	if err != nil {
		return fmt.Errorf("set pro tier: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set pro tier: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
