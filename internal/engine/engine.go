// Package engine wires a markup document, the grid configuration and the
// state store into a running grid manager. The CLI commands and the UI
// server each drive grids through an Engine.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	intconfig "github.com/leapstack-labs/datagrid/internal/config"
	"github.com/leapstack-labs/datagrid/internal/state"
	"github.com/leapstack-labs/datagrid/pkg/datagrid"
	"github.com/leapstack-labs/datagrid/pkg/markup"
)

// ErrUnknownGrid is returned when a grid name is not declared in markup.
var ErrUnknownGrid = errors.New("unknown grid")

// ErrUnknownFilter is returned when a filter is not declared in markup.
var ErrUnknownFilter = errors.New("unknown filter")

// DefaultFetchTimeout bounds one data request.
const DefaultFetchTimeout = 30 * time.Second

// Config holds engine configuration.
type Config struct {
	// Project is the markup path, URL options and per-grid settings.
	Project intconfig.ProjectConfig
	// Document is used instead of parsing Project.Markup when set.
	Document *markup.Document
	// Endpoint is the base URL relative grid sources resolve against.
	Endpoint string
	// Store records fragments and saved views (optional).
	Store state.Store
	// Origin tags the fragments written to the store.
	Origin state.Origin
	// Router defaults to a MemoryRouter at the configured base.
	Router datagrid.Router
	// Renderer defaults to a MemoryRenderer.
	Renderer datagrid.Renderer
	// Fetcher defaults to an HTTPFetcher resolving against Endpoint.
	Fetcher datagrid.Fetcher
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Engine is a grid manager bound to one markup document.
type Engine struct {
	doc      *markup.Document
	manager  *datagrid.Manager
	router   datagrid.Router
	renderer datagrid.Renderer
	store    state.Store
	logger   *slog.Logger
}

// New parses the markup, creates a grid for every declared grid and
// returns the engine. Call Start to route the current fragment.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	doc := cfg.Document
	if doc == nil {
		var err error
		doc, err = markup.ParseFile(cfg.Project.Markup)
		if err != nil {
			return nil, err
		}
	}
	if len(doc.Grids()) == 0 {
		return nil, fmt.Errorf("markup declares no grids")
	}

	url := cfg.Project.URL.ToURLOptions()

	router := cfg.Router
	if router == nil {
		router = datagrid.NewMemoryRouter(url.Base, "")
	}
	if cfg.Store != nil {
		origin := cfg.Origin
		if origin == "" {
			origin = state.OriginCLI
		}
		router = &recordingRouter{Router: router, store: cfg.Store, origin: origin, logger: logger}
	}

	renderer := cfg.Renderer
	if renderer == nil {
		renderer = datagrid.NewMemoryRenderer()
	}

	fetcher := cfg.Fetcher
	if fetcher == nil {
		f := datagrid.NewHTTPFetcher(&http.Client{Timeout: DefaultFetchTimeout})
		if cfg.Endpoint != "" {
			var err error
			if f, err = f.WithBase(cfg.Endpoint); err != nil {
				return nil, err
			}
		}
		fetcher = f
	}

	m, err := datagrid.NewManager(router, doc, datagrid.ManagerOptions{
		URL:      &url,
		Fetcher:  fetcher,
		Renderer: renderer,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	for _, name := range doc.Grids() {
		opts, err := cfg.Project.Grid(name).ToOptions()
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("grid %s: %w", name, err)
		}
		if _, err := m.Create(name, opts); err != nil {
			m.Close()
			return nil, err
		}
	}
	for name := range cfg.Project.Grids {
		if !slices.Contains(doc.Grids(), name) {
			logger.Warn("configured grid is not declared in markup", "grid", name)
		}
	}

	logger.Debug("engine ready", "grids", doc.Grids())
	return &Engine{
		doc:      doc,
		manager:  m,
		router:   router,
		renderer: renderer,
		store:    cfg.Store,
		logger:   logger,
	}, nil
}

// Document returns the parsed markup.
func (e *Engine) Document() *markup.Document { return e.doc }

// Manager returns the grid manager.
func (e *Engine) Manager() *datagrid.Manager { return e.manager }

// Router returns the router the manager writes to.
func (e *Engine) Router() datagrid.Router { return e.router }

// Renderer returns the layout renderer.
func (e *Engine) Renderer() datagrid.Renderer { return e.renderer }

// Store returns the state store, or nil.
func (e *Engine) Store() state.Store { return e.store }

// Grid returns the named grid. An empty name selects the first grid.
func (e *Engine) Grid(name string) (*datagrid.Grid, error) {
	if name == "" {
		return e.manager.Grids()[0], nil
	}
	g, ok := e.manager.Grid(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGrid, name)
	}
	return g, nil
}

// Start subscribes the manager to its router and renders the current
// fragment.
func (e *Engine) Start(ctx context.Context) error {
	return e.manager.Start(ctx)
}

// Navigate routes fragment into every grid and refreshes them.
func (e *Engine) Navigate(ctx context.Context, fragment string) error {
	return e.manager.Dispatch(ctx, fragment)
}

// Apply routes fragment into every grid without fetching.
func (e *Engine) Apply(fragment string) {
	e.manager.Apply(fragment)
}

// Hash returns the combined fragment of all grids.
func (e *Engine) Hash() string { return e.manager.Hash() }

// Views returns a snapshot of every grid.
func (e *Engine) Views() []datagrid.View {
	grids := e.manager.Grids()
	views := make([]datagrid.View, len(grids))
	for i, g := range grids {
		views[i] = g.View()
	}
	return views
}

// Close stops the manager and closes the store.
func (e *Engine) Close() error {
	e.manager.Close()
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}
