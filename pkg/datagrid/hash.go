package datagrid

import (
	"strconv"
	"strings"
)

// BuildHash serializes the grid's state into its route fragment.
func (g *Grid) BuildHash() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.buildHashLocked()
}

func (g *Grid) buildHashLocked() string {
	expr := g.opt.Delimiter.Expression
	var parts []string

	for _, f := range g.filters {
		if s := g.strategy(f.Type); s != nil {
			if frag := s.BuildFragment(f); frag != "" {
				parts = append(parts, frag)
			}
		}
	}

	var sorts []string
	for _, s := range g.sorts {
		if s.Column == g.opt.Sorting.Column && s.Direction == g.opt.Sorting.Direction {
			continue
		}
		sorts = append(sorts, g.escape(s.Column)+expr+string(s.Direction))
	}
	if len(sorts) > 0 {
		parts = append(parts, strings.Join(sorts, g.opt.Sorting.Delimiter))
	}

	infinite := g.opt.Pagination.Method == MethodInfinite
	if g.page > 1 && !infinite {
		parts = append(parts, tokenPage+expr+strconv.Itoa(g.page))
	}

	if !infinite {
		var changed []string
		for _, d := range g.declared {
			if cur, ok := g.layouts[d.Name]; ok && cur != g.baseLayouts[d.Name] {
				changed = append(changed, g.escape(d.Name)+expr+g.escape(cur))
			}
		}
		if len(changed) > 0 {
			parts = append(parts, tokenLayout+expr+strings.Join(changed, ","))
		}
	}

	p, base := g.opt.Pagination, g.template.Pagination
	if p.Throttle != 0 && p.Throttle != base.Throttle {
		parts = append(parts, tokenThrottle+expr+strconv.Itoa(p.Throttle))
	}
	if p.Threshold != 0 && p.Threshold != base.Threshold {
		parts = append(parts, tokenThreshold+expr+strconv.Itoa(p.Threshold))
	}

	return g.baseHash() + strings.Join(parts, "/")
}

// baseHash is the prefix every fragment of this grid starts with. It is
// also the whole fragment of a grid in its default state.
func (g *Grid) baseHash() string {
	if g.manager != nil && g.manager.count.Load() > 1 {
		return g.name + "/"
	}
	return ""
}

// Params returns the request for the current state. A non-empty download
// format marks an export request.
func (g *Grid) Params(download string) Params {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paramsLocked(download)
}

func (g *Grid) paramsLocked(download string) Params {
	p := Params{
		Page:      g.page,
		Method:    g.opt.Pagination.Method,
		Threshold: g.opt.Pagination.Threshold,
		Throttle:  g.opt.Pagination.Throttle,
		Download:  download,
	}
	for _, f := range g.filters {
		if s := g.strategy(f.Type); s != nil {
			p.Filters = append(p.Filters, s.BuildParams(f)...)
		}
	}
	if len(g.sorts) > 0 {
		p.Sort = append([]Sort(nil), g.sorts...)
	}
	return p
}

// DownloadURL returns the navigation URL for an export in format.
// Exports are never fetched by the grid.
func (g *Grid) DownloadURL(format string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return joinQuery(g.opt.Source, g.paramsLocked(format).Encode())
}
