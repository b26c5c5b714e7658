package datagrid

import (
	"context"
	"strings"
	"time"
)

// ApplyElement applies the filter declared by a clicked control or a
// selected option, then refreshes from the first page.
func (g *Grid) ApplyElement(ctx context.Context, el Element) error {
	var applied bool
	g.mutate(func() {
		s := g.strategy(elementType(el, FilterTerm))
		if s == nil {
			return
		}
		if applied = s.ExtractFromElement(el); applied {
			g.page = 1
		}
	})
	if !applied {
		return nil
	}
	return g.Refresh(ctx, false)
}

// Search applies a submitted search form. It suspends live search until
// the resulting render completes.
func (g *Grid) Search(ctx context.Context, form Element, in SearchInput) error {
	var apply bool
	g.mutate(func() {
		g.searchActive = true
		g.stopLiveLocked()

		value := strings.TrimSpace(in.Value)
		if value == "" {
			return
		}
		apply = true

		column := orDefault(in.Column, AllColumns)
		op := orDefault(in.Operator, form.Data("operator"))

		g.removeFiltersOfType(FilterLive, false)
		g.liveOld = ""
		g.resetBeforeApplyLocked(form)
		if sort := form.Data("sort"); sort != "" {
			g.setSortLocked(g.parseSort(sort))
		}
		g.applyFilterLocked(Filter{
			Name:  searchName(column, value),
			Type:  FilterSearch,
			Label: form.Data("label"),
			Match: &Condition{Column: column, Value: value, Operator: op},
		})
		g.page = 1
	})
	if !apply {
		return nil
	}
	return g.Refresh(ctx, false)
}

// LiveSearch schedules a live filter for the input. Each call replaces
// the pending one, so only the last input within the search timeout is
// applied. Calls are ignored while a submitted search is in flight.
func (g *Grid) LiveSearch(ctx context.Context, form Element, in SearchInput) {
	ctx = context.WithoutCancel(ctx)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.searchActive || g.opt.Search.DisableLive {
		return
	}
	g.stopLiveLocked()

	var t *time.Timer
	t = time.AfterFunc(g.opt.Search.Timeout, func() {
		g.applyLive(ctx, t, form, in)
	})
	g.liveTimer = t
}

func (g *Grid) stopLiveLocked() {
	if g.liveTimer != nil {
		g.liveTimer.Stop()
		g.liveTimer = nil
	}
}

func (g *Grid) applyLive(ctx context.Context, t *time.Timer, form Element, in SearchInput) {
	var refresh bool
	g.mutate(func() {
		// A later keystroke or a submit replaced this timer.
		if g.liveTimer != t {
			return
		}
		g.liveTimer = nil

		if g.opt.Pagination.Method == MethodInfinite {
			g.clearNext = true
		}

		value := strings.TrimSpace(in.Value)
		if g.liveOld != "" {
			g.removeFiltersOfType(FilterLive, false)
			if value == "" {
				g.liveOld = ""
				g.page = 1
				refresh = true
				return
			}
		}
		if value == "" {
			return
		}

		g.liveOld = value
		g.applyFilterLocked(Filter{
			Name: string(FilterLive),
			Type: FilterLive,
			Match: &Condition{
				Column:   orDefault(in.Column, AllColumns),
				Value:    value,
				Operator: orDefault(in.Operator, form.Data("operator")),
			},
		})
		g.page = 1
		refresh = true
	})
	if !refresh {
		return
	}
	if err := g.Refresh(ctx, false); err != nil {
		g.logger.Warn("live search refresh failed", "error", err)
	}
}

// RemoveGroup removes every filter declared in a group and refreshes.
func (g *Grid) RemoveGroup(ctx context.Context, group string) error {
	g.mutate(func() {
		g.removeGroupLocked(group)
		g.clearNext = true
	})
	return g.Refresh(ctx, false)
}

// ResetFilter removes one filter and refreshes.
func (g *Grid) ResetFilter(ctx context.Context, name string) error {
	g.RemoveFilter(name)
	return g.Refresh(ctx, false)
}

// GlobalReset restores the defaults and refreshes.
func (g *Grid) GlobalReset(ctx context.Context) error {
	g.Reset()
	return g.Refresh(ctx, false)
}

// Paginate handles a page control. In infinite mode the control always
// advances to the page after the current one.
func (g *Grid) Paginate(ctx context.Context, page string) error {
	var target int
	g.mutate(func() {
		target = parsePage(page)
		if g.opt.Pagination.Method == MethodInfinite {
			target = g.page + 1
		}
		g.queue(Event{Name: EventSwitching, Page: target})
		g.page = target
	})

	err := g.Refresh(ctx, false)
	g.events.emit(Event{Name: EventSwitched, Grid: g, Page: target})
	return err
}

func parsePage(s string) int {
	n, err := parseCount(s)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// LoadMore grows the page size by its initial value and refreshes.
func (g *Grid) LoadMore(ctx context.Context) error {
	g.IncreaseThrottle()
	return g.Refresh(ctx, false)
}

// Scroll samples a viewport position for infinite scrolling. Samples are
// rate limited; a sample near the bottom advances one page while pages
// remain.
func (g *Grid) Scroll(ctx context.Context, pos ScrollPosition) error {
	g.mu.Lock()
	enabled := g.opt.Pagination.InfiniteScroll && g.opt.Pagination.Method == MethodInfinite
	g.mu.Unlock()
	if !enabled {
		return nil
	}

	var err error
	g.scroll.Do(func() {
		var advance bool
		g.mutate(func() {
			offset := g.opt.Pagination.ScrollOffset
			if pos.Top < pos.DocumentHeight-pos.WindowHeight-offset {
				return
			}
			next := g.page + 1
			if g.response == nil || next > g.response.Pages {
				return
			}
			g.page = next
			advance = true
		})
		if advance {
			err = g.Refresh(ctx, false)
		}
	})
	return err
}

// SwitchLayout applies a "layout:template" switch and re-renders. The
// two parts are separated by the expression delimiter.
func (g *Grid) SwitchLayout(ctx context.Context, spec string) error {
	var name string
	g.mutate(func() {
		var tmpl string
		name, tmpl, _ = strings.Cut(spec, g.opt.Delimiter.Expression)
		if name == "" {
			return
		}
		g.queue(Event{Name: EventSwitching, Layout: name})
		if tmpl == "" {
			delete(g.layouts, name)
		} else {
			g.layouts[name] = tmpl
		}
	})
	if name == "" {
		return nil
	}
	err := g.Refresh(ctx, false)
	g.events.emit(Event{Name: EventSwitched, Grid: g, Layout: name})
	return err
}
