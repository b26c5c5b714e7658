// Package state persists saved grid views and the history of URL
// fragments in SQLite.
package state

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a view does not exist.
var ErrNotFound = errors.New("not found")

// ErrNotOpen is returned when the store is used before Open.
var ErrNotOpen = errors.New("database not opened")

// View is a named fragment that can be restored later.
type View struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Fragment  string    `json:"fragment" yaml:"fragment"`
	Note      string    `json:"note,omitempty" yaml:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt" yaml:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updated_at"`
}

// Origin names what wrote a fragment.
type Origin string

// Fragment origins.
const (
	OriginCLI  Origin = "cli"
	OriginREPL Origin = "repl"
	OriginTUI  Origin = "tui"
	OriginUI   Origin = "ui"
)

// HistoryEntry is one recorded fragment.
type HistoryEntry struct {
	ID        int64     `json:"id" yaml:"id"`
	Origin    Origin    `json:"origin" yaml:"origin"`
	Fragment  string    `json:"fragment" yaml:"fragment"`
	CreatedAt time.Time `json:"createdAt" yaml:"created_at"`
}

// Store is the persistence surface used by the CLI and the UI server.
type Store interface {
	SaveView(ctx context.Context, name, fragment, note string) (*View, error)
	GetView(ctx context.Context, name string) (*View, error)
	ListViews(ctx context.Context) ([]View, error)
	DeleteView(ctx context.Context, name string) error

	RecordFragment(ctx context.Context, origin Origin, fragment string) (bool, error)
	History(ctx context.Context, limit int) ([]HistoryEntry, error)
	PruneHistory(ctx context.Context, keep int) (int64, error)

	Close() error
}

var _ Store = (*SQLiteStore)(nil)
