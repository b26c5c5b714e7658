package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/leapstack-labs/datagrid/internal/state"
	"github.com/leapstack-labs/datagrid/pkg/datagrid"
)

// Filter applies the filter declared as name in the grid's markup.
func (e *Engine) Filter(ctx context.Context, grid, name string) error {
	g, err := e.Grid(grid)
	if err != nil {
		return err
	}
	el, ok := e.doc.Filter(g.Name(), name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFilter, name)
	}
	return g.ApplyElement(ctx, el)
}

// Toggle removes the filter when it is applied and applies it otherwise.
func (e *Engine) Toggle(ctx context.Context, grid, name string) error {
	g, err := e.Grid(grid)
	if err != nil {
		return err
	}
	if slices.ContainsFunc(g.Filters(), func(f datagrid.Filter) bool { return f.Name == name }) {
		return g.ResetFilter(ctx, name)
	}
	return e.Filter(ctx, g.Name(), name)
}

// Range applies a range filter with the values entered into its start
// and end controls.
func (e *Engine) Range(ctx context.Context, grid, name, start, end string) error {
	g, err := e.Grid(grid)
	if err != nil {
		return err
	}
	el, ok := e.doc.Filter(g.Name(), name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFilter, name)
	}
	e.doc.SetRangeValue(g.Name(), name, "start", start)
	e.doc.SetRangeValue(g.Name(), name, "end", end)
	return g.ApplyElement(ctx, el)
}

// Search submits the grid's search form.
func (e *Engine) Search(ctx context.Context, grid string, in datagrid.SearchInput) error {
	g, err := e.Grid(grid)
	if err != nil {
		return err
	}
	form, _ := e.doc.SearchForm(g.Name())
	return g.Search(ctx, form, in)
}

// Sort clicks the sort control of column.
func (e *Engine) Sort(ctx context.Context, grid, column string, dir datagrid.Direction, multi bool) error {
	g, err := e.Grid(grid)
	if err != nil {
		return err
	}
	g.ToggleSort(column, dir, multi)
	return g.Refresh(ctx, false)
}

// Page switches the grid to page.
func (e *Engine) Page(ctx context.Context, grid, page string) error {
	g, err := e.Grid(grid)
	if err != nil {
		return err
	}
	return g.Paginate(ctx, page)
}

// Reset restores the grid's defaults.
func (e *Engine) Reset(ctx context.Context, grid string) error {
	g, err := e.Grid(grid)
	if err != nil {
		return err
	}
	return g.GlobalReset(ctx)
}

// Filters returns the filters declared for the grid in document order,
// one element per filter name.
func (e *Engine) Filters(grid string) ([]datagrid.Element, error) {
	g, err := e.Grid(grid)
	if err != nil {
		return nil, err
	}
	var out []datagrid.Element
	seen := map[string]bool{}
	for _, el := range e.doc.Controls(g.Name(), "filter") {
		name := el.Data("filter")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, el)
	}
	return out, nil
}

// Params returns the request each grid would send, keyed by grid name.
func (e *Engine) Params(download string) map[string]string {
	out := make(map[string]string)
	for _, g := range e.manager.Grids() {
		out[g.Name()] = g.Params(download).Encode()
	}
	return out
}

// SaveView stores the current fragment under name.
func (e *Engine) SaveView(ctx context.Context, name, note string) (*state.View, error) {
	if e.store == nil {
		return nil, fmt.Errorf("save view: no state store")
	}
	return e.store.SaveView(ctx, name, e.Hash(), note)
}

// OpenView navigates to a saved view.
func (e *Engine) OpenView(ctx context.Context, name string) (*state.View, error) {
	if e.store == nil {
		return nil, fmt.Errorf("open view: no state store")
	}
	v, err := e.store.GetView(ctx, name)
	if err != nil {
		return nil, err
	}
	return v, e.Navigate(ctx, v.Fragment)
}
