package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/datagrid/internal/cli/output"
	"github.com/leapstack-labs/datagrid/internal/engine"
	"github.com/leapstack-labs/datagrid/pkg/datagrid"
)

// gridReport is the structured form of the grid state printed by hash,
// render and views open.
type gridReport struct {
	Hash    string                  `json:"hash" yaml:"hash"`
	Grids   []gridSummary           `json:"grids" yaml:"grids"`
	Params  map[string]string       `json:"params,omitempty" yaml:"params,omitempty"`
	Pages   map[string]*pageSummary `json:"pages,omitempty" yaml:"pages,omitempty"`
	Layouts []layoutOutput          `json:"layouts,omitempty" yaml:"layouts,omitempty"`
}

type layoutOutput struct {
	Target  string `json:"target" yaml:"target"`
	Content string `json:"content" yaml:"content"`
}

type gridSummary struct {
	Name    string            `json:"name" yaml:"name"`
	Hash    string            `json:"hash" yaml:"hash"`
	Page    int               `json:"page" yaml:"page"`
	Filters []datagrid.Filter `json:"filters" yaml:"filters"`
	Sorts   []datagrid.Sort   `json:"sorts" yaml:"sorts"`
	State   string            `json:"state" yaml:"state"`
}

type pageSummary struct {
	Page     int `json:"page" yaml:"page"`
	Pages    int `json:"pages" yaml:"pages"`
	Total    int `json:"total" yaml:"total"`
	Filtered int `json:"filtered" yaml:"filtered"`
}

func buildReport(eng *engine.Engine) *gridReport {
	rep := &gridReport{Hash: eng.Hash()}
	for _, v := range eng.Views() {
		rep.Grids = append(rep.Grids, gridSummary{
			Name:    v.Name,
			Hash:    v.Hash,
			Page:    v.Page,
			Filters: v.Filters,
			Sorts:   v.Sorts,
			State:   v.State,
		})
	}
	return rep
}

func (rep *gridReport) addPages(eng *engine.Engine) {
	rep.Pages = make(map[string]*pageSummary)
	for _, g := range eng.Manager().Grids() {
		if p := g.Pagination(); p != nil {
			rep.Pages[g.Name()] = &pageSummary{Page: p.Page, Pages: p.Pages, Total: p.Total, Filtered: p.Filtered}
		}
	}
}

// printReport writes rep as JSON or YAML when the output mode asks for
// data, and as headers, status lines and tables otherwise.
func printReport(r *output.Renderer, rep *gridReport) error {
	if ok, err := r.Data(rep); ok || err != nil {
		return err
	}

	r.StatusLine("Hash", orEmpty(rep.Hash))
	for _, g := range rep.Grids {
		r.Println()
		r.Header(2, g.Name)
		r.StatusLine("Hash", orEmpty(g.Hash))
		if p, ok := rep.Pages[g.Name]; ok {
			r.StatusLine("Page", fmt.Sprintf("%d of %d (%d of %d rows)", p.Page, p.Pages, p.Filtered, p.Total))
		} else {
			r.StatusLine("Page", fmt.Sprint(g.Page))
		}
		if len(g.Sorts) > 0 {
			r.StatusLine("Sort", formatSorts(g.Sorts))
		}
		if g.State != "" && g.State != "idle" {
			r.StatusLine("State", g.State)
		}
		if len(g.Filters) > 0 {
			r.Println()
			r.Table([]string{"Filter", "Type", "Label", "Condition"}, filterRows(g.Filters))
		}
		if q, ok := rep.Params[g.Name]; ok {
			r.StatusLine("Request", q)
		}
	}

	for _, l := range rep.Layouts {
		r.Println()
		r.Header(3, l.Target)
		r.Println(l.Content)
	}
	return nil
}

func isStructured(r *output.Renderer) bool {
	m := r.EffectiveMode()
	return m == output.ModeJSON || m == output.ModeYAML
}

func filterRows(filters []datagrid.Filter) [][]string {
	rows := make([][]string, 0, len(filters))
	for _, f := range filters {
		rows = append(rows, []string{f.Name, string(f.Type), f.Label, describeFilter(f)})
	}
	return rows
}

func describeFilter(f datagrid.Filter) string {
	switch {
	case f.Range != nil:
		return fmt.Sprintf("%s between %s and %s", f.Range.Column, f.Range.From, f.Range.To)
	case f.Match != nil:
		return describeCondition(*f.Match)
	default:
		parts := make([]string, 0, len(f.Terms))
		for _, c := range f.Terms {
			parts = append(parts, describeCondition(c))
		}
		return strings.Join(parts, " and ")
	}
}

func describeCondition(c datagrid.Condition) string {
	col := c.Column
	if col == "" {
		col = "any column"
	}
	op := c.Operator
	if op == "" {
		op = "="
	}
	return fmt.Sprintf("%s %s %s", col, op, c.Value)
}

func formatSorts(sorts []datagrid.Sort) string {
	parts := make([]string, 0, len(sorts))
	for _, s := range sorts {
		parts = append(parts, s.Column+" "+string(s.Direction))
	}
	return strings.Join(parts, ", ")
}

func orEmpty(s string) string {
	if s == "" {
		return "(empty)"
	}
	return s
}
