package datagrid

import (
	"regexp"
	"strings"
)

// FilterParam is one entry of the filters request parameter. An empty
// Column encodes a bare value that applies to every column.
type FilterParam struct {
	Column string
	Value  string
}

// FilterStrategy converts one kind of filter between its markup, route,
// and request representations. Strategies run with the grid lock held.
type FilterStrategy interface {
	Type() FilterType
	// ExtractFromRoute claims a route segment and applies the filter it
	// describes.
	ExtractFromRoute(fragment string) bool
	// BuildFragment returns the route token, or "" when the filter has no
	// route form.
	BuildFragment(f Filter) string
	BuildParams(f Filter) []FilterParam
	// ExtractFromElement reads a control and applies its filter without
	// refreshing.
	ExtractFromElement(el Element) bool
}

var operatorPattern = regexp.MustCompile(`>|<|!=|=|<=|>=|<>`)

func isOperator(s string) bool {
	return operatorPattern.MatchString(s)
}

// operand renders a request value, wrapping it as |op value| when an
// operator is present.
func operand(op, value string) string {
	value = strings.TrimSpace(value)
	if op == "" {
		return value
	}
	return "|" + op + value + "|"
}

// newStrategies returns the strategies in the order route segments are
// offered to them.
func newStrategies(g *Grid) []FilterStrategy {
	return []FilterStrategy{
		&termStrategy{g: g},
		&rangeStrategy{g: g},
		&searchStrategy{g: g},
		&liveStrategy{g: g},
	}
}

func (g *Grid) strategy(t FilterType) FilterStrategy {
	if t == "" {
		t = FilterTerm
	}
	for _, s := range g.strategies {
		if s.Type() == t {
			return s
		}
	}
	return nil
}

func elementType(el Element, fallback FilterType) FilterType {
	if t := el.Data("type"); t != "" {
		return FilterType(t)
	}
	return fallback
}
