package datagrid

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestApplyElementTerm(t *testing.T) {
	env := newTestEnv(t)
	g := env.grid(t, "orders", Options{})

	require.NoError(t, g.ApplyElement(context.Background(), env.markup.filters["big"]))

	fs := g.Filters()
	require.Len(t, fs, 1)
	assert.Equal(t, "Big orders", fs[0].Label)
	assert.Equal(t, []Condition{{Column: "total", Operator: ">=", Value: "100"}}, fs[0].Terms)
	assert.Equal(t, []string{"filters%5B0%5D%5Btotal%5D=%7C%3E%3D100%7C&page=1&method=single"}, env.fetcher.Queries())
}

func TestApplyElementResetGroup(t *testing.T) {
	env := newTestEnv(t)
	group := el(map[string]string{"group": "status", "reset-group": ""})
	env.markup.filters["status:open"] = el(map[string]string{"filter": "status:open", "query": "status:open"}, group)
	env.markup.filters["status:closed"] = el(map[string]string{"filter": "status:closed", "query": "status:closed"}, group)
	g := env.grid(t, "orders", Options{})
	ctx := context.Background()

	var groups []string
	g.On(EventRemovingGroup, func(ev Event) { groups = append(groups, ev.Group) })

	require.NoError(t, g.ApplyElement(ctx, env.markup.filters["big"]))
	require.NoError(t, g.ApplyElement(ctx, env.markup.filters["status:open"]))
	require.NoError(t, g.ApplyElement(ctx, env.markup.filters["status:closed"]))

	assert.Equal(t, []string{"big", "status:closed"}, filterNames(g.Filters()))
	assert.Equal(t, []string{"status", "status"}, groups)
}

func TestApplyElementResetAncestor(t *testing.T) {
	env := newTestEnv(t)
	g := env.grid(t, "orders", Options{})
	g.ApplyFilter(Filter{Name: "other"})

	reset := el(map[string]string{"filter": "status:open", "query": "status:open"}, el(map[string]string{"reset": ""}))
	require.NoError(t, g.ApplyElement(context.Background(), reset))

	assert.Equal(t, []string{"status:open"}, filterNames(g.Filters()))
}

func TestApplyElementElementReplacesSameName(t *testing.T) {
	env := newTestEnv(t)
	g := env.grid(t, "orders", Options{})
	g.ApplyFilter(Filter{Name: "big", Terms: []Condition{{Column: "total", Value: "1"}}})

	require.NoError(t, g.ApplyElement(context.Background(), env.markup.filters["big"]))

	fs := g.Filters()
	require.Len(t, fs, 1)
	assert.Equal(t, "100", fs[0].Terms[0].Value)
}

func TestApplyElementRangeInputs(t *testing.T) {
	env := newTestEnv(t)
	env.markup.filters["shipped"] = el(map[string]string{"filter": "shipped", "type": "range", "range": "", "date": ""})
	env.markup.ranges = map[string][2]Element{
		"shipped": {
			{Attrs: map[string]string{"range": "start", "query": "shipped_at"}, Value: "Jan 05, 2024"},
			{Attrs: map[string]string{"range": "end", "query": "shipped_at"}, Value: "Feb 10, 2024"},
		},
	}
	g := env.grid(t, "orders", Options{})

	require.NoError(t, g.ApplyElement(context.Background(), env.markup.filters["shipped"]))

	fs := g.Filters()
	require.Len(t, fs, 1)
	assert.Equal(t, &Range{Column: "shipped_at", From: "2024-01-05", To: "2024-02-10"}, fs[0].Range)
	assert.Equal(t, "shipped:2024-01-05:2024-02-10", g.BuildHash())
}

func TestApplyElementRangeMissingBound(t *testing.T) {
	env := newTestEnv(t)
	env.markup.filters["shipped"] = el(map[string]string{"filter": "shipped", "type": "range", "range": ""})
	env.markup.ranges = map[string][2]Element{
		"shipped": {
			{Attrs: map[string]string{"query": "shipped_at"}, Value: "2024-01-05"},
			{Attrs: map[string]string{"query": "shipped_at"}},
		},
	}
	g := env.grid(t, "orders", Options{})

	require.NoError(t, g.ApplyElement(context.Background(), env.markup.filters["shipped"]))

	assert.Empty(t, g.Filters())
	assert.Empty(t, env.fetcher.Queries())
}

func TestRemoveGroup(t *testing.T) {
	env := newTestEnv(t)
	g := env.grid(t, "orders", Options{})
	g.ApplyFilter(Filter{Name: "status:open"})
	g.ApplyFilter(Filter{Name: "big"})

	var got []EventName
	g.On(EventRemovingGroup, func(ev Event) { got = append(got, ev.Name) })
	g.On(EventRemoved, func(ev Event) { got = append(got, ev.Name) })
	g.On(EventRemovedGroup, func(ev Event) { got = append(got, ev.Name) })

	require.NoError(t, g.RemoveGroup(context.Background(), "status"))

	assert.Equal(t, []string{"big"}, filterNames(g.Filters()))
	assert.Equal(t, []EventName{EventRemovingGroup, EventRemoved, EventRemovedGroup}, got)
}

func TestSearchSubmit(t *testing.T) {
	env := newTestEnv(t)
	g := env.grid(t, "orders", Options{})
	g.ApplyFilter(Filter{Name: "live", Type: FilterLive, Match: &Condition{Column: AllColumns, Value: "ad"}})

	form := Element{Tag: "form", Attrs: map[string]string{"search": ""}}
	require.NoError(t, g.Search(context.Background(), form, SearchInput{Column: "name", Value: "  Ada "}))

	fs := g.Filters()
	require.Len(t, fs, 1)
	assert.Equal(t, "search:name:ada", fs[0].Name)
	assert.Equal(t, &Condition{Column: "name", Value: "Ada"}, fs[0].Match)
	assert.False(t, g.View().SearchActive, "render clears the active search")
	assert.Equal(t, "name:Ada", g.BuildHash())
}

func TestSearchAllColumnsParam(t *testing.T) {
	env := newTestEnv(t)
	g := env.grid(t, "orders", Options{})

	require.NoError(t, g.Search(context.Background(), Element{}, SearchInput{Value: "foo"}))

	assert.Equal(t, []string{"filters%5B0%5D=foo&page=1&method=single"}, env.fetcher.Queries())
}

func TestSearchEmptyValueDoesNothing(t *testing.T) {
	env := newTestEnv(t)
	g := env.grid(t, "orders", Options{})

	require.NoError(t, g.Search(context.Background(), Element{}, SearchInput{Value: "   "}))

	assert.Empty(t, env.fetcher.Queries())
	assert.Empty(t, g.Filters())
}

func TestLiveSearchDebounce(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newTestEnv(t)
	g := env.grid(t, "orders", Options{Search: SearchOptions{Timeout: 30 * time.Millisecond}})
	ctx := context.Background()
	form := Element{Tag: "form", Attrs: map[string]string{"search": ""}}

	for _, v := range []string{"a", "ad", "ada"} {
		g.LiveSearch(ctx, form, SearchInput{Value: v})
	}

	require.Eventually(t, func() bool { return g.State() == StateRendered }, 2*time.Second, 5*time.Millisecond)

	fs := g.Filters()
	require.Len(t, fs, 1)
	assert.Equal(t, "live", fs[0].Name)
	assert.Equal(t, "ada", fs[0].Match.Value)
	assert.Len(t, env.fetcher.Queries(), 1)
	assert.Equal(t, "", g.BuildHash(), "live filters are not routed")
}

func TestLiveSearchReplacesPreviousValue(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newTestEnv(t)
	g := env.grid(t, "orders", Options{Search: SearchOptions{Timeout: 10 * time.Millisecond}})
	ctx := context.Background()

	g.LiveSearch(ctx, Element{}, SearchInput{Value: "ada"})
	require.Eventually(t, func() bool { return len(env.fetcher.Queries()) == 1 }, 2*time.Second, 5*time.Millisecond)

	g.LiveSearch(ctx, Element{}, SearchInput{Value: "bob"})
	require.Eventually(t, func() bool { return len(env.fetcher.Queries()) == 2 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return g.State() == StateRendered }, 2*time.Second, 5*time.Millisecond)

	fs := g.Filters()
	require.Len(t, fs, 1)
	assert.Equal(t, "bob", fs[0].Match.Value)

	g.LiveSearch(ctx, Element{}, SearchInput{Value: ""})
	require.Eventually(t, func() bool { return len(env.fetcher.Queries()) == 3 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(g.Filters()) == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestLiveSearchSuppressedWhileSearchActive(t *testing.T) {
	env := newTestEnv(t)
	g := env.grid(t, "orders", Options{Search: SearchOptions{Timeout: 5 * time.Millisecond}})
	g.mu.Lock()
	g.searchActive = true
	g.mu.Unlock()

	g.LiveSearch(context.Background(), Element{}, SearchInput{Value: "ada"})
	time.Sleep(30 * time.Millisecond)

	assert.Empty(t, g.Filters())
	assert.Empty(t, env.fetcher.Queries())
}

func TestSearchCancelsPendingLive(t *testing.T) {
	env := newTestEnv(t)
	g := env.grid(t, "orders", Options{Search: SearchOptions{Timeout: 20 * time.Millisecond}})
	ctx := context.Background()

	g.LiveSearch(ctx, Element{}, SearchInput{Value: "ad"})
	require.NoError(t, g.Search(ctx, Element{}, SearchInput{Value: "ada"}))
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, []string{"search:all:ada"}, filterNames(g.Filters()))
	assert.Len(t, env.fetcher.Queries(), 1)
}

func TestPaginate(t *testing.T) {
	env := newTestEnv(t)
	g := env.grid(t, "orders", Options{})

	var switched []int
	g.On(EventSwitched, func(ev Event) { switched = append(switched, ev.Page) })

	require.NoError(t, g.Paginate(context.Background(), "2"))
	require.NoError(t, g.Paginate(context.Background(), "nope"))

	assert.Equal(t, []int{2, 1}, switched)
}

func TestPaginateInfiniteAdvances(t *testing.T) {
	env := newTestEnv(t)
	g := env.grid(t, "orders", Options{Pagination: PaginationOptions{Method: MethodInfinite}})
	ctx := context.Background()

	require.NoError(t, g.Refresh(ctx, false))
	require.NoError(t, g.Paginate(ctx, "1"))
	require.NoError(t, g.Paginate(ctx, "1"))

	assert.Equal(t, 3, g.Page())
}

func TestScrollAdvancesOncePerInterval(t *testing.T) {
	env := newTestEnv(t)
	g := env.grid(t, "orders", Options{Pagination: PaginationOptions{
		Method:         MethodInfinite,
		InfiniteScroll: true,
		ScrollInterval: time.Hour,
	}})
	ctx := context.Background()
	require.NoError(t, g.Refresh(ctx, false))

	bottom := ScrollPosition{Top: 1700, DocumentHeight: 2000, WindowHeight: 600}
	require.NoError(t, g.Scroll(ctx, bottom))
	require.NoError(t, g.Scroll(ctx, bottom))

	assert.Equal(t, 2, g.Page())
	assert.Len(t, env.fetcher.Queries(), 2)
}

func TestScrollStopsAtLastPage(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.fn = func(context.Context, string) (*Response, error) { return testResponse(1, 1), nil }
	g := env.grid(t, "orders", Options{Pagination: PaginationOptions{
		Method:         MethodInfinite,
		InfiniteScroll: true,
		ScrollInterval: time.Nanosecond,
	}})
	ctx := context.Background()
	require.NoError(t, g.Refresh(ctx, false))

	require.NoError(t, g.Scroll(ctx, ScrollPosition{Top: 2000, DocumentHeight: 2000, WindowHeight: 600}))

	assert.Equal(t, 1, g.Page())
}

func TestScrollAboveOffset(t *testing.T) {
	env := newTestEnv(t)
	g := env.grid(t, "orders", Options{Pagination: PaginationOptions{
		Method:         MethodInfinite,
		InfiniteScroll: true,
	}})
	ctx := context.Background()
	require.NoError(t, g.Refresh(ctx, false))

	require.NoError(t, g.Scroll(ctx, ScrollPosition{Top: 100, DocumentHeight: 2000, WindowHeight: 600}))

	assert.Equal(t, 1, g.Page())
}

func TestInfiniteClearsTargetsAfterFilterChange(t *testing.T) {
	env := newTestEnv(t)
	g := env.grid(t, "orders", Options{Pagination: PaginationOptions{Method: MethodInfinite}})
	env.markup.templates["results"] = TemplateDecl{ID: "results", Source: `<p>{{.Response.Page}}</p>`, Action: ActionAppend}
	ctx := context.Background()

	require.NoError(t, g.Refresh(ctx, false))
	require.NoError(t, g.Paginate(ctx, ""))
	assert.Equal(t, "<p>1</p><p>1</p>", env.renderer.Content("#results"))

	require.NoError(t, g.ApplyElement(ctx, env.markup.filters["big"]))
	assert.Equal(t, "<p>1</p>", env.renderer.Content("#results"))
}

func TestSwitchLayout(t *testing.T) {
	env := newTestEnv(t)
	g := env.grid(t, "orders", Options{})
	ctx := context.Background()
	require.NoError(t, g.Refresh(ctx, false))

	require.NoError(t, g.SwitchLayout(ctx, "results:cards"))

	assert.Equal(t, "<div>alpha</div><div>beta</div>", env.renderer.Content("#results"))
	assert.Len(t, env.fetcher.Queries(), 1)
	assert.Equal(t, "layout:results:cards", g.BuildHash())
}

func TestSwitchLayoutCustomDelimiter(t *testing.T) {
	env := newTestEnv(t)
	g := env.grid(t, "orders", Options{Delimiter: Delimiters{Expression: "="}})
	ctx := context.Background()
	require.NoError(t, g.Refresh(ctx, false))

	require.NoError(t, g.SwitchLayout(ctx, "results=cards"))

	assert.Equal(t, "<div>alpha</div><div>beta</div>", env.renderer.Content("#results"))
	assert.Equal(t, "cards", g.View().Layouts["results"])
}

func TestApplyDefaults(t *testing.T) {
	env := newTestEnv(t)
	env.markup.defaults = []Element{env.markup.filters["big"]}
	env.markup.defaultSort = &Element{Attrs: map[string]string{"sort-default": "name:desc"}}
	g := env.grid(t, "orders", Options{Filters: map[string]FilterPreset{
		"recent": {Default: true, Label: "Recent", Terms: []Condition{{Column: "age", Operator: "<", Value: "7"}}},
		"unused": {Terms: []Condition{{Column: "x", Value: "y"}}},
	}})

	g.ApplyDefaults()

	assert.Equal(t, []string{"big", "recent"}, filterNames(g.Filters()))
	assert.Equal(t, []Sort{{Column: "name", Direction: Desc}}, g.Sorts())
	assert.Equal(t, "big/recent/name:desc", g.BuildHash())
}

func TestApplyDefaultsPresetWithMarkup(t *testing.T) {
	env := newTestEnv(t)
	g := env.grid(t, "orders", Options{Filters: map[string]FilterPreset{
		"created": {Type: FilterRange, Default: true},
		"big":     {Default: true},
	}})

	g.ApplyDefaults()

	fs := g.Filters()
	require.Len(t, fs, 2)
	byName := map[string]Filter{}
	for _, f := range fs {
		byName[f.Name] = f
	}
	assert.Equal(t, &Range{Column: "created_at", From: "2024-01-01", To: "2024-02-01"}, byName["created"].Range)
	assert.Equal(t, "Big orders", byName["big"].Label)
}

func TestPresetRoute(t *testing.T) {
	env := newTestEnv(t)
	g := env.grid(t, "orders", Options{Filters: map[string]FilterPreset{
		"recent": {Terms: []Condition{{Column: "age", Operator: "<", Value: "7"}}},
	}})

	g.ApplyFromRoute([]string{"recent"})

	fs := g.Filters()
	require.Len(t, fs, 1)
	assert.Equal(t, FilterTerm, fs[0].Type)
	assert.Equal(t, "filters%5B0%5D%5Bage%5D=%7C%3C7%7C&page=1&method=single", g.Params("").Encode())
}
