package engine

import (
	"context"
	"strings"
	"testing"

	intconfig "github.com/leapstack-labs/datagrid/internal/config"
	"github.com/leapstack-labs/datagrid/internal/state"
	"github.com/leapstack-labs/datagrid/internal/testutil"
	"github.com/leapstack-labs/datagrid/pkg/datagrid"
	"github.com/leapstack-labs/datagrid/pkg/markup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ordersMarkup = `<section data-grid="orders" data-grid-source="/api/orders">
  <form data-grid-search><select><option value="name">Name</option></select></form>
  <a data-grid-filter="open" data-grid-query="status:open" data-grid-label="Open">Open</a>
  <a data-grid-filter="closed" data-grid-query="status:closed">Closed</a>
  <a data-grid-filter="open" data-grid-query="status:open">Open again</a>
  <table><tbody id="rows" data-grid-layout="rows" data-grid-template="rows"></tbody></table>
</section>
<script type="text/template" data-grid-template="rows">{{range .Response.Data.results}}<tr><td>{{.name}}</td></tr>{{end}}</script>`

type testEngine struct {
	*Engine
	data     *testutil.DataServer
	store    *state.SQLiteStore
	renderer *datagrid.MemoryRenderer
}

func newTestEngine(t *testing.T, project intconfig.ProjectConfig) *testEngine {
	t.Helper()
	doc, err := markup.ParseString(ordersMarkup)
	require.NoError(t, err)

	store := state.NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(":memory:"))

	data := testutil.NewDataServer(t, testutil.Orders(25))
	renderer := datagrid.NewMemoryRenderer()
	project.URL.Hash = true

	e, err := New(Config{
		Project:  project,
		Document: doc,
		Endpoint: data.URL,
		Store:    store,
		Renderer: renderer,
		Logger:   testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	return &testEngine{Engine: e, data: data, store: store, renderer: renderer}
}

func TestNewRequiresGrids(t *testing.T) {
	doc, err := markup.ParseString(`<p>nothing here</p>`)
	require.NoError(t, err)

	_, err = New(Config{Document: doc})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no grids")
}

func TestNewRejectsInvalidGridConfig(t *testing.T) {
	doc, err := markup.ParseString(ordersMarkup)
	require.NoError(t, err)

	_, err = New(Config{
		Document: doc,
		Project: intconfig.ProjectConfig{Grids: map[string]intconfig.GridConfig{
			"orders": {Pagination: intconfig.PaginationConfig{Method: "sideways"}},
		}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grid orders")
}

func TestStartRendersFirstPage(t *testing.T) {
	e := newTestEngine(t, intconfig.ProjectConfig{})

	require.NoError(t, e.Start(context.Background()))

	rows := e.renderer.Content("#rows")
	assert.Equal(t, 10, strings.Count(rows, "<tr>"))
	assert.Contains(t, rows, "<td>Order 01</td>")
	assert.Equal(t, []string{"page=1&method=single"}, e.data.Queries())

	g, err := e.Grid("")
	require.NoError(t, err)
	p := g.Pagination()
	require.NotNil(t, p)
	assert.Equal(t, 3, p.Pages)
	assert.Equal(t, 25, p.Filtered)
}

func TestFilterToggleRecordsHistory(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, intconfig.ProjectConfig{})
	require.NoError(t, e.Start(ctx))

	require.NoError(t, e.Toggle(ctx, "orders", "open"))
	assert.Equal(t, "open", e.Hash())
	assert.Equal(t, 10, strings.Count(e.renderer.Content("#rows"), "<tr>"))
	assert.NotContains(t, e.renderer.Content("#rows"), "Order 02")

	require.NoError(t, e.Page(ctx, "orders", "2"))
	assert.Equal(t, "open/page:2", e.Hash())
	assert.Equal(t, 3, strings.Count(e.renderer.Content("#rows"), "<tr>"))

	require.NoError(t, e.Toggle(ctx, "orders", "open"))
	assert.Equal(t, "", e.Hash())

	history, err := e.store.History(ctx, 10)
	require.NoError(t, err)
	var fragments []string
	for _, h := range history {
		fragments = append(fragments, h.Fragment)
		assert.Equal(t, state.OriginCLI, h.Origin)
	}
	assert.Equal(t, []string{"", "open/page:2", "open"}, fragments)
}

func TestSearchAndSort(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, intconfig.ProjectConfig{})
	require.NoError(t, e.Start(ctx))

	require.NoError(t, e.Search(ctx, "", datagrid.SearchInput{Value: "Order 2"}))
	assert.Equal(t, "all:Order 2", e.Hash())
	assert.Equal(t, 6, strings.Count(e.renderer.Content("#rows"), "<tr>"), "Order 20 to Order 25")

	require.NoError(t, e.Sort(ctx, "", "name", datagrid.Desc, false))
	assert.Equal(t, "all:Order 2/name:desc", e.Hash())
	assert.True(t, strings.HasPrefix(e.renderer.Content("#rows"), "<tr><td>Order 25</td>"))

	require.NoError(t, e.Reset(ctx, ""))
	assert.Equal(t, "", e.Hash())
}

func TestFiltersAreDeduplicated(t *testing.T) {
	e := newTestEngine(t, intconfig.ProjectConfig{})

	filters, err := e.Filters("orders")
	require.NoError(t, err)
	require.Len(t, filters, 2)
	assert.Equal(t, "open", filters[0].Data("filter"))
	assert.Equal(t, "closed", filters[1].Data("filter"))
}

func TestUnknownNames(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, intconfig.ProjectConfig{})

	require.ErrorIs(t, e.Filter(ctx, "orders", "missing"), ErrUnknownFilter)
	require.ErrorIs(t, e.Filter(ctx, "users", "open"), ErrUnknownGrid)
	_, err := e.Filters("users")
	require.ErrorIs(t, err, ErrUnknownGrid)
}

func TestNavigateAndParams(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, intconfig.ProjectConfig{})

	require.NoError(t, e.Navigate(ctx, "closed/name:desc/page:2"))

	assert.Equal(t, "closed/name:desc/page:2", e.Hash())
	params := e.Params("csv")
	assert.Equal(t,
		"filters%5B0%5D%5Bstatus%5D=closed&page=2&method=single&sort%5B0%5D%5Bcolumn%5D=name&sort%5B0%5D%5Bdirection%5D=desc&download=csv",
		params["orders"])

	views := e.Views()
	require.Len(t, views, 1)
	assert.Equal(t, 2, views[0].Page)
	assert.Equal(t, "rendered", views[0].State)
}

func TestApplyDoesNotFetch(t *testing.T) {
	e := newTestEngine(t, intconfig.ProjectConfig{})

	e.Apply("open")

	assert.Equal(t, "open", e.Hash())
	assert.Empty(t, e.data.Queries())
}

func TestSavedViews(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, intconfig.ProjectConfig{})
	require.NoError(t, e.Navigate(ctx, "open/page:2"))

	v, err := e.SaveView(ctx, "open-p2", "second page of open orders")
	require.NoError(t, err)
	assert.Equal(t, "open/page:2", v.Fragment)

	require.NoError(t, e.Navigate(ctx, ""))
	assert.Equal(t, "", e.Hash())

	_, err = e.OpenView(ctx, "open-p2")
	require.NoError(t, err)
	assert.Equal(t, "open/page:2", e.Hash())

	_, err = e.OpenView(ctx, "nope")
	require.ErrorIs(t, err, state.ErrNotFound)
}

func TestConfiguredPresets(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, intconfig.ProjectConfig{Grids: map[string]intconfig.GridConfig{
		"orders": {
			Pagination: intconfig.PaginationConfig{Throttle: 5},
			Filters: map[string]intconfig.FilterConfig{
				"big": {Terms: []intconfig.ConditionConfig{{Column: "total", Value: "250"}}},
			},
		},
	}})

	require.NoError(t, e.Navigate(ctx, "big"))

	assert.Equal(t, "big", e.Hash())
	assert.Equal(t, 1, strings.Count(e.renderer.Content("#rows"), "<tr>"))
	assert.Contains(t, e.data.Queries()[0], "throttle=5")
}

func TestRangeUsesEnteredValues(t *testing.T) {
	doc, err := markup.ParseString(`<div data-grid="orders" data-grid-source="/api/orders">
  <input data-grid-filter="amount" data-grid-type="range" data-grid-range="start" data-grid-query="total">
  <input data-grid-filter="amount" data-grid-type="range" data-grid-range="end" data-grid-query="total">
</div>`)
	require.NoError(t, err)
	data := testutil.NewDataServer(t, testutil.Orders(5))

	e, err := New(Config{Document: doc, Endpoint: data.URL, Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	ctx := context.Background()
	require.NoError(t, e.Range(ctx, "orders", "amount", "100", "200"))

	assert.Equal(t, "amount:100:200", e.Hash())
	require.Len(t, data.Queries(), 1)
	assert.Contains(t, data.Queries()[0], "filters%5B0%5D%5Btotal%5D=%7C%3E%3D100%7C%3C%3D200%7C")

	require.ErrorIs(t, e.Range(ctx, "orders", "missing", "1", "2"), ErrUnknownFilter)
}
