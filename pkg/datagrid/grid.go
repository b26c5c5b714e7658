package datagrid

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Grid is one data grid: its filters, sorts, paging, and layouts, and
// the fetch and render cycle that follows from them. A Grid is safe for
// concurrent use.
type Grid struct {
	name       string
	manager    *Manager
	markup     Markup
	fetcher    Fetcher
	renderer   Renderer
	logger     *slog.Logger
	events     *emitter
	strategies []FilterStrategy
	template   Options
	scroll     *rate.Sometimes

	// renderMu orders renders; mu guards everything below.
	renderMu sync.Mutex
	mu       sync.Mutex

	opt          Options
	filters      []Filter
	sorts        []Sort
	page         int
	baseThrottle int

	declared    []LayoutDecl
	baseLayouts map[string]string
	layouts     map[string]string
	templates   map[string]*template.Template
	clearNext   bool

	state         FetchState
	response      *Response
	lastSignature string
	generation    uint64
	searchActive  bool

	liveTimer *time.Timer
	liveOld   string

	pending []Event
}

func newGrid(m *Manager, name string, opts Options) (*Grid, error) {
	opts = opts.withDefaults()
	if src := m.markup.Source(name); src != "" {
		opts.Source = src
	}
	tmpl, err := opts.clone()
	if err != nil {
		return nil, fmt.Errorf("grid %s: %w", name, err)
	}

	g := &Grid{
		name:     name,
		manager:  m,
		markup:   m.markup,
		fetcher:  m.fetcher,
		renderer: m.renderer,
		logger:   m.logger.With("grid", name),
		events:   newEmitter(),
		template: tmpl,
		scroll:   &rate.Sometimes{Interval: opts.Pagination.ScrollInterval},
		page:     1,
	}
	g.strategies = newStrategies(g)
	g.mutate(g.resetLocked)
	return g, nil
}

// Name returns the grid's registered name.
func (g *Grid) Name() string { return g.name }

// On registers a handler for an event and returns a function removing it.
func (g *Grid) On(name EventName, h Handler) func() {
	return g.events.on(name, h)
}

// mutate runs fn under the lock and delivers the events it queued once
// the lock is released, so handlers may call back into the grid.
func (g *Grid) mutate(fn func()) {
	g.mu.Lock()
	fn()
	evs := g.pending
	g.pending = nil
	g.mu.Unlock()

	for _, ev := range evs {
		g.events.emit(ev)
	}
}

func (g *Grid) queue(ev Event) {
	ev.Grid = g
	g.pending = append(g.pending, ev)
}

// Reset restores the template options, clears filters and sorts, applies
// the configured default sort, and re-reads the layout declarations.
func (g *Grid) Reset() *Grid {
	g.mutate(g.resetLocked)
	return g
}

func (g *Grid) resetLocked() {
	g.queue(Event{Name: EventResetting})

	opt, err := g.template.clone()
	if err != nil {
		g.logger.Error("failed to restore options", "error", err)
		opt = g.template
		opt.Pagination = g.template.Pagination.clonePagination()
	}
	g.opt = opt

	g.filters = nil
	g.sorts = nil
	if g.opt.Sorting.Column != "" {
		g.sorts = []Sort{{Column: g.opt.Sorting.Column, Direction: g.opt.Sorting.Direction}}
	}

	g.initLayoutsLocked()
	if g.opt.Pagination.Method == MethodInfinite {
		g.clearNext = true
	}

	g.page = 1
	g.baseThrottle = g.opt.Pagination.Throttle

	g.queue(Event{Name: EventReset})
}

func (g *Grid) initLayoutsLocked() {
	g.declared = g.markup.Layouts(g.name)
	g.baseLayouts = make(map[string]string, len(g.declared))
	for _, d := range g.declared {
		tpl := orDefault(d.Template, d.Name)
		if o, ok := g.opt.Layouts[d.Name]; ok && o != "" {
			tpl = o
		}
		g.baseLayouts[d.Name] = tpl
	}
	g.layouts = maps.Clone(g.baseLayouts)
	g.templates = make(map[string]*template.Template)
}

// ApplyDefaults applies the filters marked default in markup or in the
// presets, and the markup default sort.
func (g *Grid) ApplyDefaults() {
	g.mutate(g.applyDefaultsLocked)
}

func (g *Grid) applyDefaultsLocked() {
	for _, el := range g.markup.DefaultFilters(g.name) {
		if s := g.strategy(elementType(el, FilterTerm)); s != nil {
			s.ExtractFromElement(el)
		}
	}

	for _, name := range slices.Sorted(maps.Keys(g.opt.Filters)) {
		preset := g.opt.Filters[name]
		if !preset.Default {
			continue
		}
		if el, ok := g.markup.Filter(g.name, name); ok {
			if s := g.strategy(FilterType(orDefault(string(preset.Type), string(FilterTerm)))); s != nil {
				s.ExtractFromElement(el)
			}
			continue
		}
		g.applyFilterLocked(presetFilter(name, preset))
	}

	if el, ok := g.markup.DefaultSort(g.name); ok {
		parts := strings.SplitN(el.Data("sort-default"), g.opt.Delimiter.Expression, 2)
		if col := strings.TrimSpace(parts[0]); col != "" {
			dir := Asc
			if len(parts) == 2 {
				dir = ParseDirection(parts[1])
			}
			g.sorts = append(removeSort(g.sorts, col), Sort{Column: col, Direction: dir})
		}
	}
}

// ApplyFilter adds f unless a filter with the same name is applied, in
// which case it reports false and the existing filter is kept.
func (g *Grid) ApplyFilter(f Filter) bool {
	var ok bool
	g.mutate(func() { ok = g.applyFilterLocked(f) })
	return ok
}

func (g *Grid) applyFilterLocked(f Filter) bool {
	if f.Type == "" {
		f.Type = FilterTerm
	}
	if g.filterIndex(f.Name) >= 0 {
		return false
	}
	g.queue(Event{Name: EventApplying, Filter: &f})
	g.filters = append(g.filters, f)
	g.page = 1
	g.queue(Event{Name: EventApplied, Filter: &f})
	return true
}

func (g *Grid) filterIndex(name string) int {
	return slices.IndexFunc(g.filters, func(f Filter) bool { return f.Name == name })
}

// RemoveFilter removes the named filter, if applied.
func (g *Grid) RemoveFilter(name string) {
	g.mutate(func() { g.removeFilterLocked(name) })
}

func (g *Grid) removeFilterLocked(name string) {
	i := g.filterIndex(name)
	if i < 0 {
		return
	}
	f := g.filters[i]
	g.queue(Event{Name: EventRemoving, Filter: &f})
	g.filters = slices.Delete(slices.Clone(g.filters), i, i+1)
	if g.opt.Pagination.Method == MethodInfinite {
		g.clearNext = true
	}
	g.page = 1
	g.queue(Event{Name: EventRemoved, Filter: &f})
}

func (g *Grid) removeFiltersOfType(t FilterType, events bool) {
	for _, f := range slices.Clone(g.filters) {
		if f.Type != t {
			continue
		}
		if events {
			g.removeFilterLocked(f.Name)
			continue
		}
		g.filters = slices.DeleteFunc(g.filters, func(x Filter) bool { return x.Name == f.Name })
	}
}

func (g *Grid) removeGroupLocked(group string) {
	names, ok := g.markup.GroupFilters(g.name, group)
	if !ok {
		return
	}
	g.queue(Event{Name: EventRemovingGroup, Group: group})
	for _, n := range names {
		g.removeFilterLocked(n)
	}
	g.queue(Event{Name: EventRemovedGroup, Group: group})
}

// resetBeforeApplyLocked honors the reset declarations on and around a
// control before its filter is applied.
func (g *Grid) resetBeforeApplyLocked(el Element) {
	if g.opt.Pagination.Method == MethodInfinite {
		g.clearNext = true
	}

	if _, ok := el.Closest("reset"); ok {
		g.resetLocked()
		return
	}

	if name := el.Data("reset-filter"); name != "" {
		g.removeFilterLocked(name)
	} else if el.Has("reset-filter") && el.Has("search") {
		g.removeFiltersOfType(FilterSearch, true)
	}

	if group := el.Data("reset-group"); group != "" {
		g.removeGroupLocked(group)
	}

	if p, ok := el.Parent("reset-filter"); ok && p.Data("reset-filter") != "" {
		g.removeFilterLocked(p.Data("reset-filter"))
	}

	if p, ok := el.Parent("reset-group"); ok {
		if group := p.Data("reset-group"); group != "" {
			g.removeGroupLocked(group)
		} else if gr, ok := el.Closest("group"); ok {
			g.removeGroupLocked(gr.Data("group"))
		}
	}
}

// SetSort replaces the sort set.
func (g *Grid) SetSort(sorts []Sort) {
	g.mutate(func() { g.setSortLocked(sorts) })
}

func (g *Grid) setSortLocked(sorts []Sort) {
	g.queue(Event{Name: EventSorting, Sorts: g.sorts})
	g.sorts = nil
	for _, s := range sorts {
		if s.Direction == "" {
			s.Direction = Asc
		}
		g.sorts = append(removeSort(g.sorts, s.Column), s)
	}
	if g.opt.Sorting.SingleColumn && len(g.sorts) > 1 {
		g.sorts = g.sorts[len(g.sorts)-1:]
	}
	g.page = 1
	g.queue(Event{Name: EventSorted, Sorts: slices.Clone(g.sorts)})
}

// ToggleSort applies a click on a sort control. A new column is added
// (or replaces the set unless multi); clicking the active direction flips
// it; clicking a column sorted the other way removes it.
func (g *Grid) ToggleSort(column string, direction Direction, multi bool) {
	column = strings.TrimSpace(column)
	if column == "" {
		return
	}
	if direction == "" {
		direction = Asc
	}
	g.mutate(func() {
		isMulti := multi && !g.opt.Sorting.SingleColumn
		if g.opt.Pagination.Method == MethodInfinite {
			g.clearNext = true
		}

		i := slices.IndexFunc(g.sorts, func(s Sort) bool { return s.Column == column })
		g.queue(Event{Name: EventSorting, Sorts: slices.Clone(g.sorts)})

		switch {
		case i < 0:
			s := Sort{Column: column, Direction: direction}
			if isMulti {
				g.sorts = append(g.sorts, s)
			} else {
				g.sorts = []Sort{s}
			}
		case (g.opt.Sorting.Column == column && g.sorts[i].Direction == g.opt.Sorting.Direction) ||
			g.sorts[i].Direction == direction:
			s := Sort{Column: column, Direction: g.sorts[i].Direction.Opposite()}
			if isMulti {
				g.sorts = slices.Clone(g.sorts)
				g.sorts[i] = s
			} else {
				g.sorts = []Sort{s}
			}
		default:
			g.sorts = removeSort(g.sorts, column)
		}

		g.page = 1
		g.queue(Event{Name: EventSorted, Sorts: slices.Clone(g.sorts)})
	})
}

// GoToPage sets the page index; values below 1 select the first page.
func (g *Grid) GoToPage(page int) *Grid {
	g.mutate(func() { g.page = max(page, 1) })
	return g
}

// GoToPageString parses a page number, selecting the first page when s
// is not numeric.
func (g *Grid) GoToPageString(s string) *Grid {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		n = 1
	}
	return g.GoToPage(n)
}

// SetThrottle sets the page size. Invalid input leaves state unchanged.
func (g *Grid) SetThrottle(v string) error {
	var err error
	g.mutate(func() { err = g.setThrottleLocked(v) })
	return err
}

func (g *Grid) setThrottleLocked(v string) error {
	n, err := parseCount(v)
	if err != nil {
		return fmt.Errorf("throttle: %w", err)
	}
	g.opt.Pagination.Throttle = n
	g.page = 1
	return nil
}

// SetThreshold sets the filtered-count cap. Invalid input leaves state
// unchanged.
func (g *Grid) SetThreshold(v string) error {
	var err error
	g.mutate(func() { err = g.setThresholdLocked(v) })
	return err
}

func (g *Grid) setThresholdLocked(v string) error {
	n, err := parseCount(v)
	if err != nil {
		return fmt.Errorf("threshold: %w", err)
	}
	g.opt.Pagination.Threshold = n
	return nil
}

func parseCount(v string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, v)
	}
	return n, nil
}

// IncreaseThrottle grows the page size by the initial page size.
func (g *Grid) IncreaseThrottle() {
	g.mutate(func() {
		g.opt.Pagination.Throttle += g.baseThrottle
		g.page = 1
	})
}

// SetLayout binds a layout to a template. The change is rendered on the
// next refresh, which reuses the cached response.
func (g *Grid) SetLayout(name, tmpl string) {
	g.mutate(func() {
		if tmpl == "" {
			delete(g.layouts, name)
			return
		}
		g.layouts[name] = tmpl
	})
}

// Refresh fetches and renders the current state. When the request has
// not changed since the last successful fetch and force is false, the
// cached response is rendered again without a network call. A refresh
// superseded by a later one returns nil without rendering.
func (g *Grid) Refresh(ctx context.Context, force bool) error {
	return g.refresh(ctx, force, false)
}

func (g *Grid) refresh(ctx context.Context, force, clamped bool) error {
	var (
		gen    uint64
		params Params
		sig    string
		source string
		cached bool
		err    error
	)
	g.mutate(func() {
		params = g.paramsLocked("")
		sig = params.signature()
		source = g.opt.Source
		g.generation++
		gen = g.generation

		if !force && g.response != nil && sig == g.lastSignature {
			cached = true
			return
		}
		if source == "" {
			err = fmt.Errorf("grid %s: %w", g.name, ErrNoSource)
			return
		}
		g.state = StateFetching
		g.queue(Event{Name: EventFetching})
	})
	if err != nil {
		return err
	}

	if cached {
		return g.render(ctx, gen, clamped)
	}

	g.logger.Debug("fetching", "source", source, "query", params.Encode())
	resp, ferr := g.fetcher.Fetch(ctx, source, params.Encode())

	var stale bool
	g.mutate(func() {
		if gen != g.generation {
			stale = true
			return
		}
		if ferr != nil {
			g.state = StateFailed
			g.searchActive = false
			fe := &FetchError{Grid: g.name, Err: ferr}
			var inner *FetchError
			if errors.As(ferr, &inner) {
				fe.Status = inner.Status
				fe.Err = inner.Err
			}
			err = fe
			g.queue(Event{Name: EventFetchFailed, Err: err})
			return
		}
		g.response = resp
		g.lastSignature = sig
	})
	if stale {
		g.logger.Debug("discarding superseded response", "generation", gen)
		return nil
	}
	if err != nil {
		g.logger.Error("fetch failed", "error", err)
		return err
	}

	return g.render(ctx, gen, clamped)
}

// render executes every enabled layout against the cached response.
func (g *Grid) render(ctx context.Context, gen uint64, clamped bool) error {
	g.renderMu.Lock()

	type output struct {
		target string
		html   string
		action Action
		layout string
	}
	var (
		outs     []output
		clears   []string
		stale    bool
		refetch  bool
		renderEr error
	)

	g.mu.Lock()
	switch {
	case gen != g.generation:
		stale = true
	case !clamped && g.response.Pages > 0 && g.page > g.response.Pages:
		g.page = g.response.Pages
		refetch = true
	default:
		resp := g.response
		data := RenderData{
			Grid:     g.viewLocked(),
			Response: resp,
			Pagination: BuildPagination(g.opt.Pagination.Method, *resp, g.page,
				g.opt.Pagination.Throttle, g.opt.Pagination.Threshold, g.template.Pagination.Throttle),
		}
		if g.clearNext {
			for _, d := range g.declared {
				clears = append(clears, d.Target)
			}
			g.clearNext = false
		}
		for _, d := range g.declared {
			id, ok := g.layouts[d.Name]
			if !ok || d.Disabled {
				continue
			}
			cl, err := g.compileLayout(d, id)
			if err != nil {
				renderEr = errors.Join(renderEr, err)
				continue
			}
			var buf bytes.Buffer
			if err := cl.tmpl.Execute(&buf, data); err != nil {
				renderEr = errors.Join(renderEr, fmt.Errorf("execute template %s: %w", id, err))
				continue
			}
			outs = append(outs, output{target: d.Target, html: buf.String(), action: cl.action, layout: d.Name})
		}
	}
	g.mu.Unlock()

	if stale {
		g.renderMu.Unlock()
		return nil
	}
	if refetch {
		g.renderMu.Unlock()
		g.logger.Debug("page out of range, clamping")
		return g.refresh(ctx, false, true)
	}

	for _, t := range clears {
		if err := g.renderer.Clear(ctx, t); err != nil {
			renderEr = errors.Join(renderEr, err)
		}
	}
	for _, o := range outs {
		if err := g.renderer.Render(ctx, o.target, o.html, o.action); err != nil {
			renderEr = errors.Join(renderEr, fmt.Errorf("render %s: %w", o.layout, err))
		}
	}

	g.mu.Lock()
	for _, o := range outs {
		g.queue(Event{Name: EventLayoutRendered, Layout: o.layout})
	}
	g.searchActive = false
	g.state = StateRendered
	resp := g.response
	cb := g.opt.Callback
	g.queue(Event{Name: EventStateChanged})
	evs := g.pending
	g.pending = nil
	g.mu.Unlock()

	// Handlers and the callback may refresh the grid again.
	g.renderMu.Unlock()

	for _, ev := range evs {
		g.events.emit(ev)
	}
	if cb != nil {
		cb(g)
	}
	g.events.emit(Event{Name: EventFetched, Grid: g, Response: resp})

	if renderEr != nil {
		g.logger.Error("render failed", "error", renderEr)
	}
	return renderEr
}

// State returns the fetch state. Rendered and Failed persist until the
// next refresh starts.
func (g *Grid) State() FetchState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Response returns the last successful response, or nil.
func (g *Grid) Response() *Response {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.response
}

// Pagination returns the page window of the last response, or nil.
func (g *Grid) Pagination() *PaginationView {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.response == nil {
		return nil
	}
	return BuildPagination(g.opt.Pagination.Method, *g.response, g.page,
		g.opt.Pagination.Throttle, g.opt.Pagination.Threshold, g.template.Pagination.Throttle)
}

// View is a read-only snapshot of a grid.
type View struct {
	Name         string            `json:"name"`
	Source       string            `json:"source"`
	Filters      []Filter          `json:"filters"`
	Sorts        []Sort            `json:"sorts"`
	Page         int               `json:"page"`
	Method       Method            `json:"method"`
	Throttle     int               `json:"throttle"`
	Threshold    int               `json:"threshold"`
	Layouts      map[string]string `json:"layouts"`
	State        string            `json:"state"`
	SearchActive bool              `json:"searchActive"`
	Hash         string            `json:"hash"`
}

// View returns a snapshot of the grid's state.
func (g *Grid) View() View {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.viewLocked()
}

func (g *Grid) viewLocked() View {
	return View{
		Name:         g.name,
		Source:       g.opt.Source,
		Filters:      slices.Clone(g.filters),
		Sorts:        slices.Clone(g.sorts),
		Page:         g.page,
		Method:       g.opt.Pagination.Method,
		Throttle:     g.opt.Pagination.Throttle,
		Threshold:    g.opt.Pagination.Threshold,
		Layouts:      maps.Clone(g.layouts),
		State:        g.state.String(),
		SearchActive: g.searchActive,
		Hash:         g.buildHashLocked(),
	}
}

// Filters returns the applied filters in application order.
func (g *Grid) Filters() []Filter {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.filters)
}

// Sorts returns the current sort set.
func (g *Grid) Sorts() []Sort {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.sorts)
}

// Page returns the page index.
func (g *Grid) Page() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.page
}

// Close stops a pending live search.
func (g *Grid) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.liveTimer != nil {
		g.liveTimer.Stop()
		g.liveTimer = nil
	}
}
