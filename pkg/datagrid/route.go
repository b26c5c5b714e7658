package datagrid

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Special route token prefixes.
const (
	tokenThreshold = "threshold"
	tokenThrottle  = "throttle"
	tokenLayout    = "layout"
	tokenPage      = "page"
)

// SplitFragment splits a fragment into its non-empty segments.
func SplitFragment(fragment string) []string {
	fragment = strings.Trim(fragment, "/")
	var out []string
	for _, s := range strings.Split(fragment, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ApplyFromRoute replaces the grid's filters, sorts, layouts, and paging
// with what the route segments describe. Trailing threshold, throttle,
// layout and page tokens are consumed from the right in any order, each
// kind at most once; then an optional sort token; the rest are offered to
// the filter strategies. The page the route names survives the filter
// and sort mutations it triggers.
func (g *Grid) ApplyFromRoute(segments []string) *Grid {
	g.mutate(func() { g.applyFromRouteLocked(segments) })
	return g
}

func (g *Grid) applyFromRouteLocked(segments []string) {
	segs := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			segs = append(segs, s)
		}
	}
	expr := g.opt.Delimiter.Expression

	page := 1
	seen := map[string]bool{}
	for len(segs) > 0 {
		kind, v, ok := strings.Cut(segs[len(segs)-1], expr)
		if !ok || seen[kind] || !g.applySpecialLocked(kind, v, &page) {
			break
		}
		seen[kind] = true
		segs = segs[:len(segs)-1]
	}

	if n := len(segs); n > 0 && isSortToken(segs[n-1], expr) {
		g.extractSortsLocked(segs[n-1])
		segs = segs[:n-1]
	} else if g.opt.Sorting.Column != "" && g.opt.Sorting.Direction != "" {
		g.extractSortsLocked(g.escape(g.opt.Sorting.Column) + expr + string(g.opt.Sorting.Direction))
	}

	g.filters = nil
	for _, seg := range segs {
		claimed := false
		for _, s := range g.strategies {
			if s.ExtractFromRoute(seg) {
				claimed = true
				break
			}
		}
		if !claimed {
			g.logger.Debug("unmatched route segment", "grid", g.name, "segment", seg)
		}
	}

	g.page = page
}

// applySpecialLocked applies one special route token and reports whether
// kind names one.
func (g *Grid) applySpecialLocked(kind, v string, page *int) bool {
	expr := g.opt.Delimiter.Expression
	switch kind {
	case tokenThreshold:
		if err := g.setThresholdLocked(v); err != nil {
			g.logger.Debug("ignoring route threshold", "grid", g.name, "value", v, "error", err)
		}
	case tokenThrottle:
		if err := g.setThrottleLocked(v); err != nil {
			g.logger.Debug("ignoring route throttle", "grid", g.name, "value", v, "error", err)
		}
	case tokenLayout:
		for _, pair := range strings.Split(v, ",") {
			parts := strings.SplitN(pair, expr, 2)
			if len(parts) != 2 {
				continue
			}
			g.layouts[g.unescape(parts[0])] = g.unescape(parts[1])
		}
	case tokenPage:
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*page = n
		}
	default:
		return false
	}
	return true
}

func isSortToken(seg, expr string) bool {
	i := strings.LastIndex(seg, expr)
	if i < 0 {
		return false
	}
	dir := seg[i+len(expr):]
	return dir == string(Asc) || dir == string(Desc)
}

// extractSortsLocked merges "col:dir,col:dir" into the sort set, a column
// replacing its previous entry.
func (g *Grid) extractSortsLocked(token string) {
	for _, s := range strings.Split(token, g.opt.Sorting.Delimiter) {
		parts := strings.SplitN(s, g.opt.Delimiter.Expression, 2)
		col := strings.TrimSpace(g.unescape(parts[0]))
		if col == "" {
			continue
		}
		dir := Asc
		if len(parts) == 2 {
			dir = ParseDirection(parts[1])
		}
		g.sorts = removeSort(g.sorts, col)
		g.sorts = append(g.sorts, Sort{Column: col, Direction: dir})
	}
}

// parseSort reads a markup sort declaration "col:dir;col:dir".
func (g *Grid) parseSort(raw string) []Sort {
	var out []Sort
	for _, expr := range strings.Split(raw, g.opt.Delimiter.Query) {
		parts := strings.SplitN(expr, g.opt.Delimiter.Expression, 2)
		col := strings.TrimSpace(parts[0])
		if col == "" {
			continue
		}
		dir := Asc
		if len(parts) == 2 && strings.TrimSpace(parts[1]) != "" {
			dir = ParseDirection(parts[1])
		}
		out = append(out, Sort{Column: col, Direction: dir})
	}
	return out
}

func removeSort(sorts []Sort, column string) []Sort {
	out := sorts[:0:0]
	for _, s := range sorts {
		if s.Column != column {
			out = append(out, s)
		}
	}
	return out
}

// escape percent-encodes the characters that carry structure in a route
// token so that arbitrary values round-trip.
func (g *Grid) escape(s string) string {
	reserved := "%/," + g.opt.Delimiter.Query + g.opt.Delimiter.Expression + g.opt.Sorting.Delimiter
	if !strings.ContainsAny(s, reserved) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if r < 0x80 && strings.ContainsRune(reserved, r) {
			fmt.Fprintf(&b, "%%%02X", r)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// unescape reverses escape. Malformed sequences are kept verbatim.
func (g *Grid) unescape(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	u, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return u
}
