package datagrid

import (
	"fmt"
	"strings"
)

// Method is the pagination method of a grid.
type Method string

// Pagination methods.
const (
	MethodSingle   Method = "single"
	MethodGroup    Method = "group"
	MethodInfinite Method = "infinite"
)

// ParseMethod converts a configuration value into a Method.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodSingle, MethodGroup, MethodInfinite:
		return m, nil
	case "":
		return MethodSingle, nil
	default:
		return "", fmt.Errorf("unknown pagination method %q (expected single, group or infinite)", s)
	}
}

// Direction is a sort direction.
type Direction string

// Sort directions.
const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection returns the direction named by s, defaulting to Asc.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), string(Desc)) {
		return Desc
	}
	return Asc
}

// Opposite returns the reversed direction.
func (d Direction) Opposite() Direction {
	if d == Asc {
		return Desc
	}
	return Asc
}

// Sort orders results by a column.
type Sort struct {
	Column    string    `json:"column" yaml:"column"`
	Direction Direction `json:"direction" yaml:"direction"`
}

// FilterType discriminates the strategy that owns a filter.
type FilterType string

// Filter types in registration order.
const (
	FilterTerm   FilterType = "term"
	FilterRange  FilterType = "range"
	FilterSearch FilterType = "search"
	FilterLive   FilterType = "live"
)

// Condition is a single column predicate. Operator is optional.
type Condition struct {
	Column   string `json:"column" yaml:"column"`
	Value    string `json:"value" yaml:"value"`
	Operator string `json:"operator,omitempty" yaml:"operator,omitempty"`
}

// Range is an inclusive column range.
type Range struct {
	Column string `json:"column" yaml:"column"`
	From   string `json:"from" yaml:"from"`
	To     string `json:"to" yaml:"to"`
}

// Filter is an applied filter. Exactly one payload field is used,
// selected by Type: Terms for term, Range for range, Match for search and live.
type Filter struct {
	Name  string      `json:"name" yaml:"name"`
	Type  FilterType  `json:"type" yaml:"type"`
	Label string      `json:"label,omitempty" yaml:"label,omitempty"`
	Terms []Condition `json:"terms,omitempty" yaml:"terms,omitempty"`
	Range *Range      `json:"range,omitempty" yaml:"range,omitempty"`
	Match *Condition  `json:"match,omitempty" yaml:"match,omitempty"`
}

// Action is how a rendered layout is applied to its target.
type Action string

// Render actions.
const (
	ActionReplace Action = "replace"
	ActionAppend  Action = "append"
	ActionUpdate  Action = "update"
)

// ParseAction maps a data-grid-action value onto an Action.
// The original markup used jQuery method names, so "html" means replace.
func ParseAction(s string) Action {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "append":
		return ActionAppend
	case "update":
		return ActionUpdate
	default:
		return ActionReplace
	}
}

// FetchState is the grid's position in the fetch state machine.
type FetchState int

// Fetch states.
const (
	StateIdle FetchState = iota
	StateFetching
	StateRendered
	StateFailed
)

func (s FetchState) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateRendered:
		return "rendered"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Response is the data endpoint's reply. Data holds the full decoded
// document so templates can reach payload fields such as results.
type Response struct {
	Page         int            `json:"page"`
	Pages        int            `json:"pages"`
	NextPage     *int           `json:"nextPage"`
	PreviousPage *int           `json:"previousPage"`
	Total        int            `json:"total"`
	Filtered     int            `json:"filtered"`
	Threshold    int            `json:"threshold"`
	Throttle     int            `json:"throttle"`
	Method       Method         `json:"method"`
	Sort         []Sort         `json:"sort"`
	Data         map[string]any `json:"-"`
}

// ScrollPosition is a viewport sample used by infinite scrolling.
type ScrollPosition struct {
	Top            int
	DocumentHeight int
	WindowHeight   int
}

// SearchInput is the state of a search form at submit or keystroke time.
type SearchInput struct {
	Column   string
	Value    string
	Operator string
}
