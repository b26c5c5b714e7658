package datagrid

import (
	"fmt"
	"time"

	"github.com/mitchellh/copystructure"
)

// Default option values.
const (
	DefaultQueryDelimiter      = ";"
	DefaultExpressionDelimiter = ":"
	DefaultSortDelimiter       = ","
	DefaultSearchTimeout       = 600 * time.Millisecond
	DefaultScrollOffset        = 400
	DefaultScrollInterval      = 800 * time.Millisecond
	DefaultTimestampFormat     = "%Y-%m-%d %H:%M:%S"
	DefaultServerDateFormat    = "%Y-%m-%d"
	DefaultClientDateFormat    = "%b %d, %Y"
)

// PaginationOptions configures paging. Throttle is the page size and
// Threshold caps the filtered count used by the pagination math; zero
// means unset for both.
type PaginationOptions struct {
	Method         Method
	Threshold      int
	Throttle       int
	InfiniteScroll bool
	ScrollOffset   int
	ScrollInterval time.Duration
}

// SortingOptions configures the default sort and multi-column behavior.
// Grids sort by several columns unless SingleColumn is set.
type SortingOptions struct {
	Column       string
	Direction    Direction
	SingleColumn bool
	Delimiter    string
}

// Delimiters separate values inside one route token.
type Delimiters struct {
	Query      string
	Expression string
}

// FilterPreset declares a filter in configuration rather than markup.
type FilterPreset struct {
	Type    FilterType
	Default bool
	Label   string
	Terms   []Condition
	Range   *Range
	Match   *Condition
}

// SearchOptions configures live search. Search inputs filter while
// typing unless DisableLive is set.
type SearchOptions struct {
	DisableLive bool
	Timeout     time.Duration
}

// Formats are strftime patterns used by date range filters.
type Formats struct {
	Timestamp  string
	ServerDate string
	ClientDate string
}

// Options is the configuration of one grid.
type Options struct {
	Source         string
	Pagination     PaginationOptions
	Sorting        SortingOptions
	Delimiter      Delimiters
	Filters        map[string]FilterPreset
	Search         SearchOptions
	Formats        Formats
	TemplateDelims [2]string
	// Layouts overrides the template bound to a declared layout.
	Layouts map[string]string
	// Callback runs after every successful render.
	Callback func(*Grid)
}

// DefaultOptions returns the options a grid starts from.
func DefaultOptions() Options {
	return Options{
		Pagination: PaginationOptions{
			Method:         MethodSingle,
			ScrollOffset:   DefaultScrollOffset,
			ScrollInterval: DefaultScrollInterval,
		},
		Sorting: SortingOptions{
			Delimiter: DefaultSortDelimiter,
		},
		Delimiter: Delimiters{
			Query:      DefaultQueryDelimiter,
			Expression: DefaultExpressionDelimiter,
		},
		Filters: map[string]FilterPreset{},
		Search: SearchOptions{
			Timeout: DefaultSearchTimeout,
		},
		Formats: Formats{
			Timestamp:  DefaultTimestampFormat,
			ServerDate: DefaultServerDateFormat,
			ClientDate: DefaultClientDateFormat,
		},
		TemplateDelims: [2]string{"{{", "}}"},
	}
}

// withDefaults fills every unset field from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Pagination.Method == "" {
		o.Pagination.Method = d.Pagination.Method
	}
	if o.Pagination.ScrollOffset == 0 {
		o.Pagination.ScrollOffset = d.Pagination.ScrollOffset
	}
	if o.Pagination.ScrollInterval == 0 {
		o.Pagination.ScrollInterval = d.Pagination.ScrollInterval
	}
	if o.Sorting.Delimiter == "" {
		o.Sorting.Delimiter = d.Sorting.Delimiter
	}
	if o.Sorting.Column != "" && o.Sorting.Direction == "" {
		o.Sorting.Direction = Asc
	}
	if o.Delimiter.Query == "" {
		o.Delimiter.Query = d.Delimiter.Query
	}
	if o.Delimiter.Expression == "" {
		o.Delimiter.Expression = d.Delimiter.Expression
	}
	if o.Filters == nil {
		o.Filters = map[string]FilterPreset{}
	}
	if o.Search.Timeout == 0 {
		o.Search.Timeout = d.Search.Timeout
	}
	if o.Formats.Timestamp == "" {
		o.Formats.Timestamp = d.Formats.Timestamp
	}
	if o.Formats.ServerDate == "" {
		o.Formats.ServerDate = d.Formats.ServerDate
	}
	if o.Formats.ClientDate == "" {
		o.Formats.ClientDate = d.Formats.ClientDate
	}
	if o.TemplateDelims[0] == "" || o.TemplateDelims[1] == "" {
		o.TemplateDelims = d.TemplateDelims
	}
	return o
}

// clone returns a deep copy. The callback is shared, not copied.
func (o Options) clone() (Options, error) {
	cb := o.Callback
	o.Callback = nil
	c, err := copystructure.Copy(o)
	if err != nil {
		return Options{}, fmt.Errorf("copy options: %w", err)
	}
	out, ok := c.(Options)
	if !ok {
		return Options{}, fmt.Errorf("copy options: unexpected %T", c)
	}
	out.Callback = cb
	return out, nil
}

// clonePagination deep copies only the pagination block, which is the
// part of the working copy that is mutated at runtime.
func (p PaginationOptions) clonePagination() PaginationOptions {
	c, err := copystructure.Copy(p)
	if err != nil {
		return p
	}
	return c.(PaginationOptions)
}
