package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/leapstack-labs/datagrid/pkg/datagrid"
)

// ToOptions converts a grid configuration into engine options. Unset
// fields are left for the engine's defaults.
func (g GridConfig) ToOptions() (datagrid.Options, error) {
	var opts datagrid.Options

	if g.Pagination.Method != "" {
		m, err := datagrid.ParseMethod(g.Pagination.Method)
		if err != nil {
			return opts, fmt.Errorf("pagination.method: %w", err)
		}
		opts.Pagination.Method = m
	}
	if g.Pagination.Throttle < 0 || g.Pagination.Threshold < 0 {
		return opts, fmt.Errorf("pagination: %w", datagrid.ErrInvalidNumber)
	}

	opts.Source = g.Source
	opts.Pagination.Threshold = g.Pagination.Threshold
	opts.Pagination.Throttle = g.Pagination.Throttle
	opts.Pagination.InfiniteScroll = g.Pagination.InfiniteScroll
	opts.Pagination.ScrollOffset = g.Pagination.ScrollOffset
	opts.Pagination.ScrollInterval = g.Pagination.ScrollInterval

	opts.Sorting = datagrid.SortingOptions{
		Column:       g.Sorting.Column,
		SingleColumn: !boolOr(g.Sorting.Multicolumn, true),
		Delimiter:    g.Sorting.Delimiter,
	}
	if g.Sorting.Direction != "" {
		opts.Sorting.Direction = datagrid.ParseDirection(g.Sorting.Direction)
	}

	opts.Delimiter = datagrid.Delimiters{Query: g.Delimiter.Query, Expression: g.Delimiter.Expression}
	opts.Search = datagrid.SearchOptions{DisableLive: !boolOr(g.Search.Live, true), Timeout: g.Search.Timeout}
	opts.Formats = datagrid.Formats{
		Timestamp:  g.Formats.Timestamp,
		ServerDate: g.Formats.ServerDate,
		ClientDate: g.Formats.ClientDate,
	}

	switch len(g.TemplateDelims) {
	case 0:
	case 2:
		opts.TemplateDelims = [2]string{g.TemplateDelims[0], g.TemplateDelims[1]}
	default:
		return opts, fmt.Errorf("template_delims: want 2 values, got %d", len(g.TemplateDelims))
	}

	if len(g.Layouts) > 0 {
		opts.Layouts = maps.Clone(g.Layouts)
	}

	opts.Filters = make(map[string]datagrid.FilterPreset, len(g.Filters))
	for _, name := range slices.Sorted(maps.Keys(g.Filters)) {
		p, err := g.Filters[name].toPreset()
		if err != nil {
			return opts, fmt.Errorf("filters.%s: %w", name, err)
		}
		opts.Filters[name] = p
	}

	return opts, nil
}

func (f FilterConfig) toPreset() (datagrid.FilterPreset, error) {
	p := datagrid.FilterPreset{Default: f.Default, Label: f.Label}

	switch t := datagrid.FilterType(strings.ToLower(f.Type)); t {
	case "", datagrid.FilterTerm, datagrid.FilterRange, datagrid.FilterSearch:
		p.Type = t
	default:
		return p, fmt.Errorf("unknown filter type %q", f.Type)
	}

	for _, c := range f.Terms {
		p.Terms = append(p.Terms, c.toCondition())
	}
	if f.Range != nil {
		p.Range = &datagrid.Range{Column: f.Range.Column, From: f.Range.From, To: f.Range.To}
	}
	if f.Match != nil {
		m := f.Match.toCondition()
		p.Match = &m
	}

	switch {
	case p.Type == datagrid.FilterRange && p.Range == nil:
		return p, fmt.Errorf("range filter needs range bounds")
	case p.Type == datagrid.FilterSearch && p.Match == nil:
		return p, fmt.Errorf("search filter needs a match")
	}
	return p, nil
}

func (c ConditionConfig) toCondition() datagrid.Condition {
	return datagrid.Condition{Column: c.Column, Operator: c.Operator, Value: c.Value}
}

// ToURLOptions converts the URL block.
func (u URLConfig) ToURLOptions() datagrid.URLOptions {
	return datagrid.URLOptions{Hash: u.Hash, Semantic: u.Semantic, Base: u.Base}
}

func boolOr(v *bool, d bool) bool {
	if v == nil {
		return d
	}
	return *v
}
