package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/datagrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(":memory:"))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// stepClock returns a clock advancing one minute per call.
func stepClock(start time.Time) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(time.Minute)
		return now
	}
}

func TestSQLiteStore_Migrate(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.GetMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	// re-running is a no-op
	require.NoError(t, store.Migrate())
}

func TestSQLiteStore_Views(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	store.now = stepClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	first, err := store.SaveView(ctx, "big-orders", "orders/big", "")
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "orders/big", first.Fragment)
	assert.Equal(t, first.CreatedAt, first.UpdatedAt)

	updated, err := store.SaveView(ctx, "big-orders", "orders/big/page:2", "second page")
	require.NoError(t, err)
	assert.Equal(t, first.ID, updated.ID)
	assert.Equal(t, first.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(first.UpdatedAt))
	assert.Equal(t, "second page", updated.Note)

	_, err = store.SaveView(ctx, "admins", "users/admins", "")
	require.NoError(t, err)

	views, err := store.ListViews(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "admins", views[0].Name)
	assert.Equal(t, "big-orders", views[1].Name)

	require.NoError(t, store.DeleteView(ctx, "admins"))
	_, err = store.GetView(ctx, "admins")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, store.DeleteView(ctx, "admins"), ErrNotFound)

	_, err = store.SaveView(ctx, "  ", "x", "")
	require.Error(t, err)
}

func TestSQLiteStore_History(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	store.now = stepClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	for _, f := range []string{"big", "big", "big/page:2", "status:open", "status:open"} {
		_, err := store.RecordFragment(ctx, OriginCLI, f)
		require.NoError(t, err)
	}

	entries, err := store.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3, "consecutive duplicates are skipped")
	assert.Equal(t, "status:open", entries[0].Fragment)
	assert.Equal(t, "big", entries[2].Fragment)
	assert.Equal(t, OriginCLI, entries[0].Origin)
	assert.True(t, entries[0].CreatedAt.After(entries[2].CreatedAt))

	wrote, err := store.RecordFragment(ctx, OriginUI, "big")
	require.NoError(t, err)
	assert.True(t, wrote, "a fragment may reappear after another one")

	limited, err := store.History(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	deleted, err := store.PruneHistory(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	entries, err = store.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, OriginUI, entries[0].Origin)
}

func TestSQLiteStore_FileDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.db")

	store := NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(path))
	_, err := store.SaveView(ctx, "home", "orders/big", "")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = os.Stat(path + ".lock")
	require.NoError(t, err)

	reopened := NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, reopened.Open(path))
	defer reopened.Close()

	v, err := reopened.GetView(ctx, "home")
	require.NoError(t, err)
	assert.Equal(t, "orders/big", v.Fragment)
	assert.Equal(t, path, reopened.Path())
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteStore(nil)

	_, err := store.SaveView(ctx, "a", "b", "")
	assert.ErrorIs(t, err, ErrNotOpen)
	_, err = store.ListViews(ctx)
	assert.ErrorIs(t, err, ErrNotOpen)
	_, err = store.RecordFragment(ctx, OriginCLI, "a")
	assert.ErrorIs(t, err, ErrNotOpen)
	_, err = store.History(ctx, 1)
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.ErrorIs(t, store.Migrate(), ErrNotOpen)
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_DatabaseErrors(t *testing.T) {
	boom := errors.New("disk I/O error")

	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		run       func(s *SQLiteStore) error
		errMsg    string
	}{
		{
			name: "save view",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO views").WillReturnError(boom)
			},
			run: func(s *SQLiteStore) error {
				_, err := s.SaveView(context.Background(), "a", "b", "")
				return err
			},
			errMsg: "failed to save view a",
		},
		{
			name: "list views",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT id, name, fragment, note").WillReturnError(boom)
			},
			run: func(s *SQLiteStore) error {
				_, err := s.ListViews(context.Background())
				return err
			},
			errMsg: "failed to list views",
		},
		{
			name: "delete view",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("DELETE FROM views").WillReturnError(boom)
			},
			run: func(s *SQLiteStore) error {
				return s.DeleteView(context.Background(), "a")
			},
			errMsg: "failed to delete view",
		},
		{
			name: "record fragment rolls back",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery("SELECT fragment FROM fragment_history").WillReturnError(boom)
				mock.ExpectRollback()
			},
			run: func(s *SQLiteStore) error {
				_, err := s.RecordFragment(context.Background(), OriginCLI, "big")
				return err
			},
			errMsg: "failed to read history",
		},
		{
			name: "record fragment insert",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery("SELECT fragment FROM fragment_history").
					WillReturnRows(sqlmock.NewRows([]string{"fragment"}).AddRow("other"))
				mock.ExpectExec("INSERT INTO fragment_history").WillReturnError(boom)
				mock.ExpectRollback()
			},
			run: func(s *SQLiteStore) error {
				_, err := s.RecordFragment(context.Background(), OriginCLI, "big")
				return err
			},
			errMsg: "failed to record fragment",
		},
		{
			name: "prune",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("DELETE FROM fragment_history").WillReturnError(boom)
			},
			run: func(s *SQLiteStore) error {
				_, err := s.PruneHistory(context.Background(), 5)
				return err
			},
			errMsg: "failed to prune history",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			tt.setupMock(mock)

			err = tt.run(NewWithDB(db, testutil.NewTestLogger(t)))

			require.ErrorIs(t, err, boom)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
