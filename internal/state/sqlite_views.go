package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// SaveView stores fragment under name, replacing an existing view of the
// same name but keeping its id and creation time.
func (s *SQLiteStore) SaveView(ctx context.Context, name, fragment, note string) (*View, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("view name is required")
	}

	now := toMillis(s.now())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO views (id, name, fragment, note, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   fragment = excluded.fragment,
		   note = excluded.note,
		   updated_at = excluded.updated_at`,
		generateID(), name, fragment, note, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save view %s: %w", name, err)
	}
	return s.GetView(ctx, name)
}

// GetView returns the named view or ErrNotFound.
func (s *SQLiteStore) GetView(ctx context.Context, name string) (*View, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}

	var v View
	var created, updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, fragment, note, created_at, updated_at FROM views WHERE name = ?`,
		name,
	).Scan(&v.ID, &v.Name, &v.Fragment, &v.Note, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("view %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get view: %w", err)
	}
	v.CreatedAt = fromMillis(created)
	v.UpdatedAt = fromMillis(updated)
	return &v, nil
}

// ListViews returns all views ordered by name.
func (s *SQLiteStore) ListViews(ctx context.Context) ([]View, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, fragment, note, created_at, updated_at FROM views ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list views: %w", err)
	}
	defer rows.Close()

	var views []View
	for rows.Next() {
		var v View
		var created, updated int64
		if err := rows.Scan(&v.ID, &v.Name, &v.Fragment, &v.Note, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan view: %w", err)
		}
		v.CreatedAt = fromMillis(created)
		v.UpdatedAt = fromMillis(updated)
		views = append(views, v)
	}
	return views, rows.Err()
}

// DeleteView removes the named view.
func (s *SQLiteStore) DeleteView(ctx context.Context, name string) error {
	if s.db == nil {
		return ErrNotOpen
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM views WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete view: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("view %s: %w", name, ErrNotFound)
	}
	return nil
}
