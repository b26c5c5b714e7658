package datagrid

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// AllColumns is the search pseudo-column matching every column.
const AllColumns = "all"

var lower = cases.Lower(language.Und)

// searchName keys search filters by column and folded value so that
// distinct searches on one column coexist.
func searchName(column, value string) string {
	return "search:" + column + ":" + lower.String(value)
}

type searchStrategy struct {
	g *Grid
}

func (s *searchStrategy) Type() FilterType { return FilterSearch }

func (s *searchStrategy) ExtractFromRoute(fragment string) bool {
	g := s.g
	parts := strings.Split(fragment, g.opt.Delimiter.Expression)
	if len(parts) != 2 && len(parts) != 3 {
		return false
	}
	column := g.unescape(parts[0])
	if column != AllColumns && !g.markup.SearchColumn(g.name, column) {
		return false
	}

	m := Condition{Column: column}
	if len(parts) == 3 {
		m.Operator = g.unescape(parts[1])
		m.Value = strings.TrimSpace(g.unescape(parts[2]))
	} else {
		m.Value = strings.TrimSpace(g.unescape(parts[1]))
	}

	g.applyFilterLocked(Filter{
		Name:  searchName(column, m.Value),
		Type:  FilterSearch,
		Match: &m,
	})
	return true
}

func (s *searchStrategy) BuildFragment(f Filter) string {
	if f.Match == nil {
		return ""
	}
	g := s.g
	d := g.opt.Delimiter.Expression
	if f.Match.Operator != "" {
		return g.escape(f.Match.Column) + d + g.escape(f.Match.Operator) + d + g.escape(f.Match.Value)
	}
	return g.escape(f.Match.Column) + d + g.escape(f.Match.Value)
}

func (s *searchStrategy) BuildParams(f Filter) []FilterParam {
	if f.Match == nil {
		return nil
	}
	p := FilterParam{Value: operand(f.Match.Operator, f.Match.Value)}
	if f.Match.Column != AllColumns {
		p.Column = f.Match.Column
	}
	return []FilterParam{p}
}

// ExtractFromElement applies a default search declared in markup: the
// control value is the term and data-grid-search names the column.
func (s *searchStrategy) ExtractFromElement(el Element) bool {
	g := s.g
	value := strings.TrimSpace(el.Value)
	if value == "" {
		return false
	}
	column := orDefault(el.Data("search"), AllColumns)
	g.applyFilterLocked(Filter{
		Name:  searchName(column, value),
		Type:  FilterSearch,
		Label: el.Data("label"),
		Match: &Condition{Column: column, Value: value, Operator: el.Data("operator")},
	})
	return true
}

// liveStrategy shares the search wire format but never appears in the
// route.
type liveStrategy struct {
	g *Grid
}

func (s *liveStrategy) Type() FilterType { return FilterLive }

func (s *liveStrategy) ExtractFromRoute(string) bool { return false }

func (s *liveStrategy) BuildFragment(Filter) string { return "" }

func (s *liveStrategy) BuildParams(f Filter) []FilterParam {
	return (&searchStrategy{g: s.g}).BuildParams(f)
}

// ExtractFromElement is a no-op; live filters are only applied by the
// debounced LiveSearch entry point.
func (s *liveStrategy) ExtractFromElement(Element) bool { return false }
