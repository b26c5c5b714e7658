package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DefaultHistoryLimit is the number of entries History returns when
// limit is not positive.
const DefaultHistoryLimit = 50

// RecordFragment appends fragment to the history unless it equals the
// most recent entry. It reports whether a row was written.
func (s *SQLiteStore) RecordFragment(ctx context.Context, origin Origin, fragment string) (bool, error) {
	if s.db == nil {
		return false, ErrNotOpen
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var last string
	err = tx.QueryRowContext(ctx,
		`SELECT fragment FROM fragment_history ORDER BY id DESC LIMIT 1`).Scan(&last)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return false, fmt.Errorf("failed to read history: %w", err)
	case last == fragment:
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO fragment_history (origin, fragment, created_at) VALUES (?, ?, ?)`,
		string(origin), fragment, toMillis(s.now()),
	); err != nil {
		return false, fmt.Errorf("failed to record fragment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}
	return true, nil
}

// History returns the most recent entries, newest first.
func (s *SQLiteStore) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, origin, fragment, created_at FROM fragment_history ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var origin string
		var created int64
		if err := rows.Scan(&e.ID, &origin, &e.Fragment, &created); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		e.Origin = Origin(origin)
		e.CreatedAt = fromMillis(created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PruneHistory keeps the newest keep entries and returns how many were
// deleted.
func (s *SQLiteStore) PruneHistory(ctx context.Context, keep int) (int64, error) {
	if s.db == nil {
		return 0, ErrNotOpen
	}
	if keep < 0 {
		keep = 0
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM fragment_history WHERE id NOT IN (
		   SELECT id FROM fragment_history ORDER BY id DESC LIMIT ?
		 )`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return result.RowsAffected()
}
