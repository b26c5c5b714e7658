package markup

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/leapstack-labs/datagrid/internal/testutil"
	"github.com/leapstack-labs/datagrid/pkg/datagrid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadDocument(t *testing.T) *Document {
	t.Helper()
	f, err := os.Open("testdata/orders.html")
	require.NoError(t, err)
	defer f.Close()

	doc, err := Parse(f)
	require.NoError(t, err)
	return doc
}

func TestParseFile(t *testing.T) {
	doc, err := ParseFile("testdata/orders.html")
	require.NoError(t, err)
	assert.Len(t, doc.Grids(), 2)

	_, err = ParseFile("testdata/missing.html")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestGridsAndSources(t *testing.T) {
	doc := loadDocument(t)

	assert.Equal(t, []string{"orders", "users"}, doc.Grids())
	assert.Equal(t, "/api/orders", doc.Source("orders"))
	assert.Equal(t, "/api/users", doc.Source("users"))
	assert.Equal(t, "", doc.Source("missing"))
}

func TestLayouts(t *testing.T) {
	doc := loadDocument(t)

	assert.Equal(t, []datagrid.LayoutDecl{
		{Name: "results", Target: "#results"},
		{Name: "pagination", Target: `[data-grid="orders"] [data-grid-layout="pagination"]`, Disabled: true},
	}, doc.Layouts("orders"))
	assert.Len(t, doc.Layouts("users"), 1)
}

func TestTemplates(t *testing.T) {
	doc := loadDocument(t)

	results, ok := doc.Template("orders", "results")
	require.True(t, ok)
	assert.Equal(t, datagrid.ActionReplace, results.Action)
	assert.Contains(t, results.Source, "{{range .Response.Data.results}}<tr>")

	pagination, ok := doc.Template("users", "pagination")
	require.True(t, ok)
	assert.Equal(t, datagrid.ActionAppend, pagination.Action)
	assert.Equal(t, "<p>{{.Response.Page}}</p>", pagination.Source)

	_, ok = doc.Template("orders", "missing")
	assert.False(t, ok)
}

func TestFilterScopes(t *testing.T) {
	doc := loadDocument(t)

	el, ok := doc.Filter("orders", "status:open")
	require.True(t, ok)
	assert.Equal(t, "status:open", el.Data("query"))
	assert.Equal(t, "Open", el.Data("label"))

	group, ok := el.Parent("group")
	require.True(t, ok)
	assert.Equal(t, "status", group.Data("group"))
	assert.True(t, group.Has("reset-group"))

	grid, ok := el.Closest("grid")
	require.True(t, ok)
	assert.Equal(t, "orders", grid.Data("grid"))

	_, ok = doc.Filter("users", "status:open")
	assert.False(t, ok)
	_, ok = doc.Filter("orders", "admins")
	assert.False(t, ok)
}

func TestDefaults(t *testing.T) {
	doc := loadDocument(t)

	defaults := doc.DefaultFilters("orders")
	require.Len(t, defaults, 1)
	assert.Equal(t, "big", defaults[0].Data("filter"))

	sort, ok := doc.DefaultSort("orders")
	require.True(t, ok)
	assert.Equal(t, "created_at:desc", sort.Data("sort-default"))

	_, ok = doc.DefaultSort("users")
	assert.False(t, ok)
}

func TestRangeInputs(t *testing.T) {
	doc := loadDocument(t)

	start, end, ok := doc.RangeInputs("orders", "created")
	require.True(t, ok)
	assert.Equal(t, "Jan 05, 2024", start.Value)
	assert.Equal(t, "Feb 10, 2024", end.Value)

	doc.SetRangeValue("orders", "created", "end", "Mar 01, 2024")
	_, end, _ = doc.RangeInputs("orders", "created")
	assert.Equal(t, "Mar 01, 2024", end.Value)

	_, _, ok = doc.RangeInputs("orders", "big")
	assert.False(t, ok)
}

func TestSearchAndGroups(t *testing.T) {
	doc := loadDocument(t)

	assert.True(t, doc.SearchColumn("orders", "name"))
	assert.True(t, doc.SearchColumn("orders", "email"))
	assert.False(t, doc.SearchColumn("orders", "total"))
	assert.False(t, doc.SearchColumn("users", "name"))

	form, ok := doc.SearchForm("orders")
	require.True(t, ok)
	assert.Equal(t, "form", form.Tag)

	names, ok := doc.GroupFilters("orders", "status")
	require.True(t, ok)
	assert.Equal(t, []string{"status:open", "status:closed"}, names)

	_, ok = doc.GroupFilters("orders", "missing")
	assert.False(t, ok)
}

func TestSelectValue(t *testing.T) {
	doc, err := ParseString(`<div data-grid="g">
		<select data-grid-group="size"><option value="s">S</option><option selected>M</option></select>
		<select data-grid-group="color"><option>red</option></select>
	</div>`)
	require.NoError(t, err)

	controls := doc.Controls("g", "group")
	require.Len(t, controls, 2)
	assert.Equal(t, "M", controls[0].Value)
	assert.Equal(t, "red", controls[1].Value)
}

type staticFetcher struct {
	mu      sync.Mutex
	queries []string
}

func (f *staticFetcher) Fetch(_ context.Context, _, query string) (*datagrid.Response, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	return datagrid.DecodeResponse([]byte(`{"page":1,"pages":1,"total":1,"filtered":1,"throttle":10,` +
		`"method":"single","results":[{"name":"Ada &amp; Bob"}]}`))
}

func TestDocumentDrivesGrid(t *testing.T) {
	doc := loadDocument(t)
	fetcher := &staticFetcher{}
	renderer := datagrid.NewMemoryRenderer()

	m, err := datagrid.NewManager(datagrid.NewMemoryRouter("", ""), doc, datagrid.ManagerOptions{
		Fetcher:  fetcher,
		Renderer: renderer,
		Logger:   testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	defer m.Close()

	orders, err := m.Create("orders", datagrid.Options{})
	require.NoError(t, err)
	_, err = m.Create("users", datagrid.Options{})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	assert.Equal(t, []datagrid.Sort{{Column: "created_at", Direction: datagrid.Desc}}, orders.Sorts())

	el, _ := doc.Filter("orders", "created")
	require.NoError(t, orders.ApplyElement(ctx, el))

	assert.Equal(t, "orders/big/created:2024-01-05:2024-02-10/created_at:desc", orders.BuildHash())
	assert.Contains(t, renderer.Content("#results"), "<td>Ada &amp;amp; Bob</td>")
	assert.Empty(t, renderer.Content(`[data-grid="orders"] [data-grid-layout="pagination"]`))
	assert.True(t, strings.HasPrefix(fetcher.queries[len(fetcher.queries)-1], "filters%5B0%5D%5Btotal%5D="))
}
