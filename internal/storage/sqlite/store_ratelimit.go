package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/epochforge/epochforge/internal/storage"
)

// GetWindow returns one persisted rate limit window.
func (s *Store) GetWindow(ctx context.Context, scope, kind string) (storage.RateWindow, error) {
	if err := s.ready(ctx); err != nil {
		return storage.RateWindow{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT scope, kind, window_start, count
		   FROM rate_windows
		  WHERE scope = ? AND kind = ?`,
		scope, kind,
	)
	var window storage.RateWindow
	var windowStart int64
	err := row.Scan(&window.Scope, &window.Kind, &windowStart, &window.Count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.RateWindow{}, storage.ErrNotFound
		}
		return storage.RateWindow{}, fmt.Errorf("get rate window: %w", err)
	}
	window.WindowStart = fromMillis(windowStart)
	return window, nil
}

// UpsertWindow writes one rate limit window, replacing any existing row.
func (s *Store) UpsertWindow(ctx context.Context, window storage.RateWindow) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO rate_windows (scope, kind, window_start, count)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (scope, kind) DO UPDATE SET
		   window_start = excluded.window_start,
		   count = excluded.count`,
		window.Scope,
		window.Kind,
		toMillis(window.WindowStart),
		window.Count,
	)
	if err != nil {
		return fmt.Errorf("upsert rate window: %w", err)
	}
	return nil
}
