package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/datagrid/pkg/datagrid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `markup: pages/orders.html
url:
  base: /shop
grids:
  orders:
    source: /api/orders
    pagination:
      method: infinite
      throttle: 20
      infinite_scroll: true
      scroll_interval: 1s
    sorting:
      column: created_at
      direction: desc
      multicolumn: false
    search:
      timeout: 250ms
    template_delims: ["[[", "]]"]
    layouts:
      results: cards
    filters:
      recent:
        default: true
        label: Recent
        terms:
          - column: age
            operator: "<"
            value: "7"
      q1:
        type: range
        range:
          column: created_at
          from: "2024-01-01"
          to: "2024-03-31"
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	return dir
}

func TestLoadFromDir(t *testing.T) {
	dir := writeConfig(t, ConfigFileName, sampleConfig)

	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, filepath.Join(dir, "pages/orders.html"), cfg.Markup)
	assert.True(t, cfg.URL.Hash, "hash writes default on")
	assert.Equal(t, "/shop", cfg.URL.Base)

	orders := cfg.Grid("orders")
	assert.Equal(t, "/api/orders", orders.Source)
	assert.Equal(t, time.Second, orders.Pagination.ScrollInterval)
	assert.Equal(t, 250*time.Millisecond, orders.Search.Timeout)
	assert.Equal(t, []string{"[[", "]]"}, orders.TemplateDelims)
	assert.Len(t, orders.Filters, 2)

	assert.Equal(t, GridConfig{}, cfg.Grid("missing"))
}

func TestLoadFromDirAltName(t *testing.T) {
	dir := writeConfig(t, ConfigFileNameAlt, "grids: {}\n")

	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DefaultMarkup), cfg.Markup)
}

func TestLoadFromDirMissing(t *testing.T) {
	cfg, err := LoadFromDir(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestFindProjectRoot(t *testing.T) {
	root := writeConfig(t, ConfigFileName, "grids: {}\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	assert.Equal(t, root, FindProjectRoot(nested))
}

func TestToOptions(t *testing.T) {
	dir := writeConfig(t, ConfigFileName, sampleConfig)
	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)

	opts, err := cfg.Grid("orders").ToOptions()
	require.NoError(t, err)

	assert.Equal(t, "/api/orders", opts.Source)
	assert.Equal(t, datagrid.MethodInfinite, opts.Pagination.Method)
	assert.Equal(t, 20, opts.Pagination.Throttle)
	assert.True(t, opts.Pagination.InfiniteScroll)
	assert.Equal(t, datagrid.SortingOptions{Column: "created_at", Direction: datagrid.Desc, SingleColumn: true}, opts.Sorting)
	assert.False(t, opts.Search.DisableLive, "live search defaults on")
	assert.Equal(t, [2]string{"[[", "]]"}, opts.TemplateDelims)
	assert.Equal(t, map[string]string{"results": "cards"}, opts.Layouts)

	assert.Equal(t, datagrid.FilterPreset{
		Default: true,
		Label:   "Recent",
		Terms:   []datagrid.Condition{{Column: "age", Operator: "<", Value: "7"}},
	}, opts.Filters["recent"])
	assert.Equal(t, &datagrid.Range{Column: "created_at", From: "2024-01-01", To: "2024-03-31"}, opts.Filters["q1"].Range)
}

func TestToOptionsErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  GridConfig
	}{
		{"unknown method", GridConfig{Pagination: PaginationConfig{Method: "pages"}}},
		{"negative throttle", GridConfig{Pagination: PaginationConfig{Throttle: -1}}},
		{"one delimiter", GridConfig{TemplateDelims: []string{"<%"}}},
		{"unknown filter type", GridConfig{Filters: map[string]FilterConfig{"x": {Type: "fuzzy"}}}},
		{"range without bounds", GridConfig{Filters: map[string]FilterConfig{"x": {Type: "range"}}}},
		{"search without match", GridConfig{Filters: map[string]FilterConfig{"x": {Type: "search"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.ToOptions()
			require.Error(t, err)
		})
	}
}
