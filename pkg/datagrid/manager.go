package datagrid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

// URLOptions controls how grid state is written to the router.
type URLOptions struct {
	// Hash enables fragment writes.
	Hash bool
	// Semantic asks path-based routers to use history paths instead of a
	// hash. MemoryRouter ignores it.
	Semantic bool
	// Base is the path prefix routers strip.
	Base string
}

// DefaultURLOptions enables fragment writes.
func DefaultURLOptions() URLOptions {
	return URLOptions{Hash: true}
}

// ManagerOptions configures a Manager. Nil collaborators get defaults:
// an HTTPFetcher, a MemoryRenderer, and a discarding logger.
type ManagerOptions struct {
	URL      *URLOptions
	Fetcher  Fetcher
	Renderer Renderer
	Logger   *slog.Logger
}

// Manager owns a set of grids sharing one router, and keeps the router's
// fragment and the grids' state in sync.
type Manager struct {
	router   Router
	markup   Markup
	fetcher  Fetcher
	renderer Renderer
	logger   *slog.Logger
	url      URLOptions

	mu    sync.RWMutex
	grids []*Grid
	count atomic.Int32

	hashMu      sync.Mutex
	currentHash string

	unsubscribe func()
}

// NewManager returns a manager bound to router and markup. Both are
// required.
func NewManager(router Router, markup Markup, opts ManagerOptions) (*Manager, error) {
	if router == nil {
		return nil, fmt.Errorf("%w: router", ErrMissingDependency)
	}
	if markup == nil {
		return nil, fmt.Errorf("%w: markup", ErrMissingDependency)
	}

	m := &Manager{
		router:   router,
		markup:   markup,
		fetcher:  opts.Fetcher,
		renderer: opts.Renderer,
		logger:   opts.Logger,
		url:      DefaultURLOptions(),
	}
	if opts.URL != nil {
		m.url = *opts.URL
	}
	if m.fetcher == nil {
		m.fetcher = NewHTTPFetcher(nil)
	}
	if m.renderer == nil {
		m.renderer = NewMemoryRenderer()
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	return m, nil
}

// Create registers a new grid.
func (m *Manager) Create(name string, opts Options) (*Grid, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("grid name is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.ContainsFunc(m.grids, func(g *Grid) bool { return g.name == name }) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateGrid, name)
	}

	g, err := newGrid(m, name, opts)
	if err != nil {
		return nil, err
	}
	g.On(EventStateChanged, func(Event) { m.updateHash() })

	m.grids = append(m.grids, g)
	m.count.Store(int32(len(m.grids)))
	return g, nil
}

// Grid returns a registered grid by name.
func (m *Manager) Grid(name string) (*Grid, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, g := range m.grids {
		if g.name == name {
			return g, true
		}
	}
	return nil, false
}

// Grids returns the registered grids in creation order.
func (m *Manager) Grids() []*Grid {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.grids)
}

// Start subscribes to the router and dispatches its current fragment.
// Router notifications are dispatched with ctx.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.unsubscribe == nil {
		m.unsubscribe = m.router.Subscribe(func(fragment string) {
			if err := m.Dispatch(ctx, fragment); err != nil {
				m.logger.Warn("dispatch failed", "fragment", fragment, "error", err)
			}
		})
	}
	m.mu.Unlock()

	return m.Dispatch(ctx, m.router.Fragment())
}

// Close unsubscribes from the router and stops pending live searches.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	grids := slices.Clone(m.grids)
	m.mu.Unlock()

	for _, g := range grids {
		g.Close()
	}
}

// Split assigns the segments of a fragment to grids. With one grid the
// whole fragment is its route. With several, a segment equal to a grid
// name starts that grid's route. Grids absent from the result have no
// route.
func (m *Manager) Split(fragment string) map[string][]string {
	grids := m.Grids()
	segs := SplitFragment(fragment)
	out := make(map[string][]string)

	if len(grids) == 1 {
		if len(segs) > 0 {
			out[grids[0].name] = segs
		}
		return out
	}

	names := make(map[string]bool, len(grids))
	for _, g := range grids {
		names[g.name] = true
	}

	current := ""
	for _, s := range segs {
		if names[s] {
			current = s
			if _, ok := out[s]; !ok {
				out[s] = []string{}
			}
			continue
		}
		if current != "" {
			out[current] = append(out[current], s)
		}
	}
	return out
}

// Apply routes a fragment into every grid without fetching.
func (m *Manager) Apply(fragment string) {
	routes := m.Split(fragment)
	for _, g := range m.Grids() {
		g.Reset()
		if segs, ok := routes[g.name]; ok {
			g.ApplyFromRoute(segs)
		} else {
			g.ApplyDefaults()
		}
	}
}

// Dispatch routes a fragment into every grid and refreshes them
// concurrently. Failures of individual grids are joined.
func (m *Manager) Dispatch(ctx context.Context, fragment string) error {
	m.Apply(fragment)

	grids := m.Grids()
	errs := make([]error, len(grids))
	var wg sync.WaitGroup
	for i, g := range grids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = g.Refresh(ctx, false)
		}()
	}
	wg.Wait()

	err := errors.Join(errs...)
	if err != nil {
		m.logger.Error("refresh failed", "fragment", fragment, "error", err)
	}
	return err
}

// Hash returns the combined fragment of every grid not in its default
// state.
func (m *Manager) Hash() string {
	var parts []string
	for _, g := range m.Grids() {
		if h := g.BuildHash(); h != g.baseHash() {
			parts = append(parts, h)
		}
	}
	return strings.Join(parts, "/")
}

// updateHash writes the combined fragment to the router without
// triggering a dispatch.
func (m *Manager) updateHash() {
	if !m.url.Hash {
		return
	}
	m.hashMu.Lock()
	defer m.hashMu.Unlock()

	h := m.Hash()
	if h != m.currentHash {
		m.router.Navigate(h, false)
	}
	m.currentHash = h
}

// URL returns the URL options.
func (m *Manager) URL() URLOptions { return m.url }
