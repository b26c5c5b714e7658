package datagrid

import (
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
)

type rangeStrategy struct {
	g *Grid
}

func (s *rangeStrategy) Type() FilterType { return FilterRange }

// ExtractFromRoute claims "name:from:to" when name is a range filter
// declared in markup or as a preset. Route values are already in server
// format.
func (s *rangeStrategy) ExtractFromRoute(fragment string) bool {
	g := s.g
	parts := strings.Split(fragment, g.opt.Delimiter.Expression)
	if len(parts) != 3 {
		return false
	}
	name := g.unescape(parts[0])
	el, ok := g.markup.Filter(g.name, name)
	if !ok {
		return s.applyPreset(name, g.unescape(parts[1]), g.unescape(parts[2]))
	}
	if el.Data("type") != string(FilterRange) {
		return false
	}

	column := name
	if el.Has("range") {
		if start, _, ok := g.markup.RangeInputs(g.name, name); ok {
			column = firstPart(start.Data("query"), g.opt.Delimiter.Expression, name)
		}
	} else {
		column = firstPart(el.Data("query"), g.opt.Delimiter.Expression, name)
	}

	return s.apply(el, name, column, g.unescape(parts[1]), g.unescape(parts[2]))
}

func (s *rangeStrategy) applyPreset(name, from, to string) bool {
	g := s.g
	preset, ok := g.opt.Filters[name]
	if !ok || preset.Type != FilterRange || from == "" || to == "" {
		return false
	}
	f := presetFilter(name, preset)
	column := name
	if preset.Range != nil && preset.Range.Column != "" {
		column = preset.Range.Column
	}
	f.Range = &Range{Column: column, From: from, To: to}

	g.removeFilterLocked(name)
	g.applyFilterLocked(f)
	return true
}

func (s *rangeStrategy) BuildFragment(f Filter) string {
	if f.Range == nil {
		return ""
	}
	g := s.g
	d := g.opt.Delimiter.Expression
	return g.escape(f.Name) + d + g.escape(f.Range.From) + d + g.escape(f.Range.To)
}

func (s *rangeStrategy) BuildParams(f Filter) []FilterParam {
	if f.Range == nil {
		return nil
	}
	return []FilterParam{{
		Column: f.Range.Column,
		Value:  "|>=" + f.Range.From + "|<=" + f.Range.To + "|",
	}}
}

// ExtractFromElement reads either a static "column:from:to" query or a
// pair of start/end inputs, converting client dates to server format.
func (s *rangeStrategy) ExtractFromElement(el Element) bool {
	g := s.g
	d := g.opt.Delimiter.Expression
	name := el.Data("filter")

	var column, from, to string
	if !el.Has("range") {
		parts := strings.Split(el.Data("query"), d)
		if len(parts) < 3 {
			return false
		}
		column, from, to = parts[0], parts[1], parts[2]
	} else {
		start, end, ok := g.markup.RangeInputs(g.name, name)
		if !ok {
			return false
		}
		column = firstPart(start.Data("query"), d, name)
		from = inputValue(start, d)
		to = inputValue(end, d)
	}

	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" || to == "" {
		return false
	}

	if el.Has("date") {
		server := orDefault(el.Data("server-date-format"), g.opt.Formats.ServerDate)
		client := orDefault(el.Data("client-date-format"), g.opt.Formats.ClientDate)
		if server != "" {
			from = convertDate(from, client, server)
			to = convertDate(to, client, server)
		}
	}

	return s.apply(el, name, column, from, to)
}

func (s *rangeStrategy) apply(el Element, name, column, from, to string) bool {
	g := s.g
	if from == "" || to == "" {
		return false
	}

	g.removeFilterLocked(name)
	g.resetBeforeApplyLocked(el)
	if sort := el.Data("sort"); sort != "" {
		g.setSortLocked(g.parseSort(sort))
	}

	g.applyFilterLocked(Filter{
		Name:  name,
		Type:  FilterRange,
		Label: el.Data("label"),
		Range: &Range{Column: column, From: from, To: to},
	})
	return true
}

// inputValue prefers the live control value and falls back to the
// value part of the declared query.
func inputValue(el Element, delim string) string {
	if el.Value != "" {
		return el.Value
	}
	parts := strings.Split(el.Data("query"), delim)
	if len(parts) > 1 {
		return parts[1]
	}
	return ""
}

// convertDate reformats v from one strftime pattern to another. Values
// that do not parse are passed through.
func convertDate(v, from, to string) string {
	layout, err := strftime.Layout(from)
	if err != nil {
		return v
	}
	t, err := time.Parse(layout, v)
	if err != nil {
		return v
	}
	return strftime.Format(to, t)
}

func firstPart(s, delim, fallback string) string {
	if s == "" {
		return fallback
	}
	if p := strings.Split(s, delim)[0]; p != "" {
		return p
	}
	return fallback
}

func orDefault(v, d string) string {
	if v != "" {
		return v
	}
	return d
}
