package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/epochforge/epochforge/internal/storage"
)

// GrantDiscovery records that a player knows an object. Idempotent; created
// reports whether the row was new.
func (s *Store) GrantDiscovery(ctx context.Context, playerID, objectID string, now time.Time) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	res, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO discoveries (player_id, object_id, discovered_at)
		 VALUES (?, ?, ?)`,
		playerID, objectID, toMillis(now),
	)
	if err != nil {
		return false, fmt.Errorf("grant discovery: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("grant discovery: %w", err)
	}
	return affected > 0, nil
}

// HasDiscovery reports whether a player knows an object.
func (s *Store) HasDiscovery(ctx context.Context, playerID, objectID string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM discoveries WHERE player_id = ? AND object_id = ?`,
		playerID, objectID,
	)
	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("has discovery: %w", err)
	}
	return count > 0, nil
}

// ListDiscoveries returns a player's discoveries ordered by object id.
func (s *Store) ListDiscoveries(ctx context.Context, playerID string) ([]storage.Discovery, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT player_id, object_id, discovered_at
		   FROM discoveries
		  WHERE player_id = ?
		  ORDER BY object_id ASC`,
		playerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list discoveries: %w", err)
	}
	defer rows.Close()

	var discoveries []storage.Discovery
	for rows.Next() {
		var d storage.Discovery
		var discoveredAt int64
		if err := rows.Scan(&d.PlayerID, &d.ObjectID, &discoveredAt); err != nil {
			return nil, fmt.Errorf("list discoveries: %w", err)
		}
		d.DiscoveredAt = fromMillis(discoveredAt)
		discoveries = append(discoveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list discoveries: %w", err)
	}
	return discoveries, nil
}
