package datagrid

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/leapstack-labs/datagrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerRequiresDependencies(t *testing.T) {
	_, err := NewManager(nil, newTestMarkup(), ManagerOptions{})
	require.ErrorIs(t, err, ErrMissingDependency)

	_, err = NewManager(NewMemoryRouter("", ""), nil, ManagerOptions{})
	require.ErrorIs(t, err, ErrMissingDependency)

	m, err := NewManager(NewMemoryRouter("", ""), newTestMarkup(), ManagerOptions{})
	require.NoError(t, err)
	assert.Equal(t, URLOptions{Hash: true}, m.URL())
}

func TestCreateRejectsDuplicates(t *testing.T) {
	env := newTestEnv(t)
	env.grid(t, "orders", Options{})

	_, err := env.manager.Create("orders", Options{})
	require.ErrorIs(t, err, ErrDuplicateGrid)

	_, err = env.manager.Create("  ", Options{})
	require.Error(t, err)

	g, ok := env.manager.Grid("orders")
	require.True(t, ok)
	assert.Equal(t, "orders", g.Name())
	assert.Len(t, env.manager.Grids(), 1)
}

func newStartedEnv(t *testing.T, fragment string) *testEnv {
	t.Helper()
	env := &testEnv{
		router:   NewMemoryRouter("/shop", fragment),
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

func TestStartDispatchesCurrentFragment(t *testing.T) {
	env := newStartedEnv(t, "#/shop/big/page:2")
	g := env.grid(t, "orders", Options{})

	require.NoError(t, env.manager.Start(context.Background()))

	assert.Equal(t, []string{"big"}, filterNames(g.Filters()))
	assert.Equal(t, 2, g.Page())
	assert.Len(t, env.fetcher.Queries(), 1)
	assert.Equal(t, []string{"big/page:2"}, env.router.History())
}

func TestRouterNavigationDispatches(t *testing.T) {
	env := newStartedEnv(t, "")
	g := env.grid(t, "orders", Options{})
	require.NoError(t, env.manager.Start(context.Background()))

	env.router.Navigate("status%3Aopen", true)

	assert.Equal(t, []string{"status:open"}, filterNames(g.Filters()))
	assert.Len(t, env.fetcher.Queries(), 2)
}

func TestStateChangesWriteFragmentWithoutDispatch(t *testing.T) {
	env := newStartedEnv(t, "")
	g := env.grid(t, "orders", Options{})
	ctx := context.Background()
	require.NoError(t, env.manager.Start(ctx))

	require.NoError(t, g.ApplyElement(ctx, env.markup.filters["big"]))
	require.NoError(t, g.Paginate(ctx, "3"))
	require.NoError(t, g.Refresh(ctx, false))

	assert.Equal(t, "big/page:3", env.router.Fragment())
	assert.Equal(t, []string{"big", "big/page:3"}, env.router.History(), "unchanged hashes are not written")
	assert.Len(t, env.fetcher.Queries(), 3)
}

func TestHashWritesDisabled(t *testing.T) {
	router := NewMemoryRouter("", "")
	m, err := NewManager(router, newTestMarkup(), ManagerOptions{
		URL:     &URLOptions{},
		Fetcher: &fakeFetcher{},
		Logger:  testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	g, err := m.Create("orders", Options{})
	require.NoError(t, err)

	g.GoToPage(2)
	require.NoError(t, g.Refresh(context.Background(), false))

	assert.Empty(t, router.History())
}

func TestDispatchMultipleGrids(t *testing.T) {
	env := newTestEnv(t)
	env.markup.defaults = []Element{env.markup.filters["big"]}
	orders := env.grid(t, "orders", Options{})
	users := env.grid(t, "users", Options{})

	require.NoError(t, env.manager.Dispatch(context.Background(), "users/name:desc/page:2"))

	assert.Equal(t, []string{"big"}, filterNames(orders.Filters()), "grid without a route gets defaults")
	assert.Equal(t, 1, orders.Page())
	assert.Empty(t, users.Filters())
	assert.Equal(t, 2, users.Page())
	assert.Equal(t, []Sort{{Column: "name", Direction: Desc}}, users.Sorts())
	assert.Equal(t, "orders/big/users/name:desc/page:2", env.manager.Hash())
	assert.Equal(t, "orders/big/users/name:desc/page:2", env.router.Fragment())
}

func TestDispatchJoinsGridErrors(t *testing.T) {
	env := newTestEnv(t)
	boom := errors.New("boom")
	env.fetcher.fn = func(_ context.Context, q string) (*Response, error) {
		if strings.Contains(q, "page=1") {
			return nil, boom
		}
		return testResponse(2, 3), nil
	}
	orders := env.grid(t, "orders", Options{})
	users := env.grid(t, "users", Options{})

	err := env.manager.Dispatch(context.Background(), "users/page:2")

	require.ErrorIs(t, err, boom)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "orders", fe.Grid)
	assert.Equal(t, StateFailed, orders.State())
	assert.Equal(t, StateRendered, users.State())
}

func TestApplyResetsBeforeRouting(t *testing.T) {
	env := newTestEnv(t)
	g := env.grid(t, "orders", Options{})
	g.ApplyFilter(Filter{Name: "stale"})
	g.SetSort([]Sort{{Column: "total", Direction: Asc}})

	env.manager.Apply("big")

	assert.Equal(t, []string{"big"}, filterNames(g.Filters()))
	assert.Empty(t, g.Sorts())
	assert.Empty(t, env.fetcher.Queries())
}

func TestMemoryRouterStripsBase(t *testing.T) {
	r := NewMemoryRouter("/app/", "#/app/orders/page:2/")
	assert.Equal(t, "orders/page:2", r.Fragment())

	var got []string
	unsubscribe := r.Subscribe(func(f string) { got = append(got, f) })

	r.Navigate("/app/big", false)
	r.Navigate("#/app/users", true)
	unsubscribe()
	r.Navigate("other", true)

	assert.Equal(t, []string{"users"}, got)
	assert.Equal(t, []string{"big", "users", "other"}, r.History())
}
