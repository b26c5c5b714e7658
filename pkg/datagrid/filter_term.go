package datagrid

import (
	"slices"
	"strings"
)

type termStrategy struct {
	g *Grid
}

func (s *termStrategy) Type() FilterType { return FilterTerm }

func (s *termStrategy) ExtractFromRoute(fragment string) bool {
	g := s.g
	name := g.unescape(fragment)

	if el, ok := g.markup.Filter(g.name, name); ok {
		if elementType(el, FilterTerm) != FilterTerm {
			return false
		}
		return s.ExtractFromElement(el)
	}

	preset, ok := g.opt.Filters[name]
	if !ok || (preset.Type != "" && preset.Type != FilterTerm) {
		return false
	}
	g.applyFilterLocked(presetFilter(name, preset))
	return true
}

func (s *termStrategy) BuildFragment(f Filter) string {
	return s.g.escape(f.Name)
}

func (s *termStrategy) BuildParams(f Filter) []FilterParam {
	params := make([]FilterParam, 0, len(f.Terms))
	for _, c := range f.Terms {
		params = append(params, FilterParam{Column: c.Column, Value: operand(c.Operator, c.Value)})
	}
	return params
}

func (s *termStrategy) ExtractFromElement(el Element) bool {
	g := s.g

	if sort := el.Data("sort"); sort != "" {
		g.setSortLocked(g.parseSort(sort))
	}

	name := el.Data("filter")
	switch {
	case name != "":
		g.removeFilterLocked(name)
		g.resetBeforeApplyLocked(el)
		s.apply(el, name)
	case el.Has("reset-group"):
		g.resetBeforeApplyLocked(el)
	}
	return true
}

func (s *termStrategy) apply(el Element, name string) {
	g := s.g
	f := Filter{Name: name, Type: FilterTerm, Label: el.Data("label")}

	if preset, ok := g.opt.Filters[name]; ok {
		f = presetFilter(name, preset)
		if f.Label == "" {
			f.Label = el.Data("label")
		}
	} else if q := el.Data("query"); q != "" {
		f.Terms = g.parseQuery(q)
	}
	g.applyFilterLocked(f)
}

// parseQuery reads "col:op:value;col:value" expressions. An operator
// outside the comparison set is dropped and the value kept.
func (g *Grid) parseQuery(raw string) []Condition {
	var out []Condition
	for _, expr := range strings.Split(raw, g.opt.Delimiter.Query) {
		expr = strings.TrimSpace(expr)
		if expr == "" {
			continue
		}
		parts := strings.Split(expr, g.opt.Delimiter.Expression)
		switch len(parts) {
		case 3:
			c := Condition{Column: parts[0], Value: strings.TrimSpace(parts[2])}
			if isOperator(parts[1]) {
				c.Operator = parts[1]
			}
			out = append(out, c)
		case 2:
			out = append(out, Condition{Column: parts[0], Value: strings.TrimSpace(parts[1])})
		}
	}
	return out
}

func presetFilter(name string, p FilterPreset) Filter {
	f := Filter{
		Name:  name,
		Type:  p.Type,
		Label: p.Label,
		Terms: slices.Clone(p.Terms),
	}
	if f.Type == "" {
		f.Type = FilterTerm
	}
	if p.Range != nil {
		r := *p.Range
		f.Range = &r
	}
	if p.Match != nil {
		m := *p.Match
		f.Match = &m
	}
	return f
}
