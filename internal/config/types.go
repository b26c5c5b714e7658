// Package config provides shared configuration types for datagrid.
// This package is decoupled from CLI concerns and can be used by the UI
// server and other tools that need to load grid configuration.
package config

import "time"

// ConditionConfig is one column condition of a preset.
type ConditionConfig struct {
	Column   string `koanf:"column" yaml:"column"`
	Operator string `koanf:"operator" yaml:"operator,omitempty"`
	Value    string `koanf:"value" yaml:"value"`
}

// RangeConfig is the bounds of a range preset.
type RangeConfig struct {
	Column string `koanf:"column" yaml:"column"`
	From   string `koanf:"from" yaml:"from"`
	To     string `koanf:"to" yaml:"to"`
}

// FilterConfig declares a filter preset.
type FilterConfig struct {
	Type    string            `koanf:"type" yaml:"type,omitempty"` // term, range, search
	Default bool              `koanf:"default" yaml:"default,omitempty"`
	Label   string            `koanf:"label" yaml:"label,omitempty"`
	Terms   []ConditionConfig `koanf:"terms" yaml:"terms,omitempty"`
	Range   *RangeConfig      `koanf:"range" yaml:"range,omitempty"`
	Match   *ConditionConfig  `koanf:"match" yaml:"match,omitempty"`
}

// PaginationConfig configures paging.
type PaginationConfig struct {
	Method         string        `koanf:"method" yaml:"method,omitempty"` // single, group, infinite
	Threshold      int           `koanf:"threshold" yaml:"threshold,omitempty"`
	Throttle       int           `koanf:"throttle" yaml:"throttle,omitempty"`
	InfiniteScroll bool          `koanf:"infinite_scroll" yaml:"infinite_scroll,omitempty"`
	ScrollOffset   int           `koanf:"scroll_offset" yaml:"scroll_offset,omitempty"`
	ScrollInterval time.Duration `koanf:"scroll_interval" yaml:"scroll_interval,omitempty"`
}

// SortingConfig configures the default sort.
type SortingConfig struct {
	Column      string `koanf:"column" yaml:"column,omitempty"`
	Direction   string `koanf:"direction" yaml:"direction,omitempty"`
	Multicolumn *bool  `koanf:"multicolumn" yaml:"multicolumn,omitempty"`
	Delimiter   string `koanf:"delimiter" yaml:"delimiter,omitempty"`
}

// DelimiterConfig holds the route token delimiters.
type DelimiterConfig struct {
	Query      string `koanf:"query" yaml:"query,omitempty"`
	Expression string `koanf:"expression" yaml:"expression,omitempty"`
}

// SearchConfig configures live search.
type SearchConfig struct {
	Live    *bool         `koanf:"live" yaml:"live,omitempty"`
	Timeout time.Duration `koanf:"timeout" yaml:"timeout,omitempty"`
}

// FormatsConfig holds strftime patterns for date ranges.
type FormatsConfig struct {
	Timestamp  string `koanf:"timestamp" yaml:"timestamp,omitempty"`
	ServerDate string `koanf:"server_date" yaml:"server_date,omitempty"`
	ClientDate string `koanf:"client_date" yaml:"client_date,omitempty"`
}

// GridConfig is the configuration of one grid.
type GridConfig struct {
	Source         string                  `koanf:"source" yaml:"source,omitempty"`
	Pagination     PaginationConfig        `koanf:"pagination" yaml:"pagination,omitempty"`
	Sorting        SortingConfig           `koanf:"sorting" yaml:"sorting,omitempty"`
	Delimiter      DelimiterConfig         `koanf:"delimiter" yaml:"delimiter,omitempty"`
	Filters        map[string]FilterConfig `koanf:"filters" yaml:"filters,omitempty"`
	Search         SearchConfig            `koanf:"search" yaml:"search,omitempty"`
	Formats        FormatsConfig           `koanf:"formats" yaml:"formats,omitempty"`
	TemplateDelims []string                `koanf:"template_delims" yaml:"template_delims,omitempty"`
	Layouts        map[string]string       `koanf:"layouts" yaml:"layouts,omitempty"`
}

// URLConfig controls how grid state is written to the URL.
type URLConfig struct {
	Hash     bool   `koanf:"hash" yaml:"hash"`
	Semantic bool   `koanf:"semantic" yaml:"semantic,omitempty"`
	Base     string `koanf:"base" yaml:"base,omitempty"`
}

// ProjectConfig is the grid configuration shared by the CLI and the UI
// server.
type ProjectConfig struct {
	Markup string                `koanf:"markup" yaml:"markup"`
	URL    URLConfig             `koanf:"url" yaml:"url"`
	Grids  map[string]GridConfig `koanf:"grids" yaml:"grids,omitempty"`
}
