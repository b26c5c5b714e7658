package datagrid

import (
	"context"
	"sync"
	"testing"

	"github.com/leapstack-labs/datagrid/internal/testutil"
	"github.com/stretchr/testify/require"
)

// fakeMarkup declares the same document for every grid.
type fakeMarkup struct {
	source      string
	layouts     []LayoutDecl
	templates   map[string]TemplateDecl
	filters     map[string]Element
	defaults    []Element
	defaultSort *Element
	ranges      map[string][2]Element
	searchCols  map[string]bool
	groups      map[string][]string
}

func (m *fakeMarkup) Source(string) string { return m.source }
func (m *fakeMarkup) Layouts(string) []LayoutDecl { return m.layouts }
func (m *fakeMarkup) DefaultFilters(string) []Element { return m.defaults }

func (m *fakeMarkup) Template(_, id string) (TemplateDecl, bool) {
	t, ok := m.templates[id]
	return t, ok
}

func (m *fakeMarkup) Filter(_, name string) (Element, bool) {
	el, ok := m.filters[name]
	return el, ok
}

func (m *fakeMarkup) DefaultSort(string) (Element, bool) {
	if m.defaultSort == nil {
		return Element{}, false
	}
	return *m.defaultSort, true
}

func (m *fakeMarkup) RangeInputs(_, name string) (Element, Element, bool) {
	r, ok := m.ranges[name]
	return r[0], r[1], ok
}

func (m *fakeMarkup) SearchColumn(_, column string) bool { return m.searchCols[column] }

func (m *fakeMarkup) GroupFilters(_, group string) ([]string, bool) {
	names, ok := m.groups[group]
	return names, ok
}

func el(attrs map[string]string, ancestors ...Element) Element {
	return Element{Tag: "a", Attrs: attrs, Ancestors: ancestors}
}

// newTestMarkup declares a results layout, a status filter group, a
// created range, and a searchable name column.
func newTestMarkup() *fakeMarkup {
	return &fakeMarkup{
		source: "/api/orders",
		layouts: []LayoutDecl{
			{Name: "results", Target: "#results", Template: "results"},
			{Name: "pagination", Target: "#pagination", Template: "pagination"},
		},
		templates: map[string]TemplateDecl{
			"results":    {ID: "results", Source: `{{range .Response.Data.results}}<tr><td>{{.name}}</td></tr>{{end}}`, Action: ActionReplace},
			"cards":      {ID: "cards", Source: `{{range .Response.Data.results}}<div>{{.name}}</div>{{end}}`, Action: ActionReplace},
			"pagination": {ID: "pagination", Source: `{{with .Pagination}}{{.PageStart}}-{{.PageLimit}} of {{.Filtered}}{{end}}`, Action: ActionReplace},
		},
		filters: map[string]Element{
			"status:open":   el(map[string]string{"filter": "status:open", "query": "status:open"}, el(map[string]string{"group": "status"})),
			"status:closed": el(map[string]string{"filter": "status:closed", "query": "status:closed"}, el(map[string]string{"group": "status"})),
			"big":           el(map[string]string{"filter": "big", "query": "total:>=:100", "label": "Big orders"}),
			"created":       el(map[string]string{"filter": "created", "type": "range", "query": "created_at:2024-01-01:2024-02-01"}),
		},
		searchCols: map[string]bool{"name": true},
		groups:     map[string][]string{"status": {"status:open", "status:closed"}},
	}
}

// fakeFetcher records queries and answers with fn or a fixed response.
type fakeFetcher struct {
	mu      sync.Mutex
	queries []string
	fn      func(ctx context.Context, query string) (*Response, error)
}

func (f *fakeFetcher) Fetch(ctx context.Context, _, query string) (*Response, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, query)
	}
	return testResponse(1, 3), nil
}

func (f *fakeFetcher) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func intp(v int) *int { return &v }

func testResponse(page, pages int) *Response {
	r := &Response{
		Page:     page,
		Pages:    pages,
		Total:    25,
		Filtered: 25,
		Throttle: 10,
		Method:   MethodSingle,
		Data: map[string]any{
			"results": []any{
				map[string]any{"name": "alpha"},
				map[string]any{"name": "beta"},
			},
		},
	}
	if page < pages {
		r.NextPage = intp(page + 1)
	}
	if page > 1 {
		r.PreviousPage = intp(page - 1)
	}
	return r
}

type testEnv struct {
	manager  *Manager
	router   *MemoryRouter
	markup   *fakeMarkup
	fetcher  *fakeFetcher
	renderer *MemoryRenderer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		router:   NewMemoryRouter("", ""),
		markup:   newTestMarkup(),
		fetcher:  &fakeFetcher{},
		renderer: NewMemoryRenderer(),
	}
	m, err := NewManager(env.router, env.markup, ManagerOptions{
		Fetcher:  env.fetcher,
		Renderer: env.renderer,
		Logger:   testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(m.Close)
	env.manager = m
	return env
}

func (e *testEnv) grid(t *testing.T, name string, opts Options) *Grid {
	t.Helper()
	g, err := e.manager.Create(name, opts)
	require.NoError(t, err)
	return g
}

func filterNames(fs []Filter) []string {
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.Name)
	}
	return out
}
