package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `markup: web/grid.html
state_path: from_file.db
output: json
url:
  base: shop
endpoint: https://shop.example.com
ui:
  port: 9000
grids:
  orders:
    source: /api/orders
    pagination:
      method: group
      threshold: 5
    search:
      timeout: 300ms
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "datagrid.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func newFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("markup", "", "markup file")
	flags.String("state", "", "state database")
	flags.BoolP("verbose", "v", false, "verbose")
	flags.StringP("output", "o", "", "output format")
	return flags
}

func TestLoadConfig_File(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, sampleConfig)
	dir := filepath.Dir(path)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, path, GetConfigFileUsed())
	assert.Equal(t, dir, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(dir, "web", "grid.html"), cfg.Markup)
	assert.Equal(t, filepath.Join(dir, "from_file.db"), cfg.StatePath)
	assert.Equal(t, "https://shop.example.com", cfg.Endpoint)
	assert.Same(t, cfg, GetCurrentConfig())
	assert.Equal(t, "json", cfg.OutputFormat)
	assert.True(t, cfg.URL.Hash, "url.hash defaults to true")
	assert.Equal(t, "shop", cfg.URL.Base)
	assert.Equal(t, 9000, cfg.UI.Port)
	assert.True(t, cfg.UI.Watch)

	orders := cfg.Grid("orders")
	assert.Equal(t, "/api/orders", orders.Source)
	assert.Equal(t, "group", orders.Pagination.Method)
	assert.Equal(t, "300ms", orders.Search.Timeout.String())
}

func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, "grids: {}\n")
	dir := filepath.Dir(path)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "grid.html"), cfg.Markup)
	assert.Equal(t, filepath.Join(dir, DefaultStateFile), cfg.StatePath)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.Equal(t, DefaultPort, cfg.UI.Port)
	assert.Equal(t, DefaultEndpoint, cfg.Endpoint)
	assert.False(t, cfg.Verbose)
}

// TestLoadConfig_FlagPrecedence tests that flags override env vars and config file.
func TestLoadConfig_FlagPrecedence(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, sampleConfig)
	t.Setenv("DATAGRID_STATE_PATH", "from_env.db")

	flags := newFlags()
	require.NoError(t, flags.Set("state", "from_flag.db"))
	require.NoError(t, flags.Set("verbose", "true"))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)

	want, err := filepath.Abs("from_flag.db")
	require.NoError(t, err)
	assert.Equal(t, want, cfg.StatePath, "flag value should override config file and env var")
	assert.True(t, cfg.Verbose)
}

// TestLoadConfig_EnvPrecedenceOverFile tests that env vars override config file.
func TestLoadConfig_EnvPrecedenceOverFile(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, sampleConfig)
	t.Setenv("DATAGRID_OUTPUT", "yaml")
	t.Setenv("DATAGRID_UI__PORT", "9100")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "yaml", cfg.OutputFormat)
	assert.Equal(t, 9100, cfg.UI.Port)
}

// TestLoadConfig_FlagNotSetUsesEnv tests that unset flags fall back to env vars.
func TestLoadConfig_FlagNotSetUsesEnv(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, sampleConfig)
	t.Setenv("DATAGRID_OUTPUT", "markdown")

	cfg, err := LoadConfig(path, newFlags())
	require.NoError(t, err)

	assert.Equal(t, "markdown", cfg.OutputFormat, "env var should be used when flag is not set")
}

func TestLoadConfig_InvalidGrid(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, `grids:
  orders:
    pagination:
      method: sideways
  users:
    template_delims: ["[["]
`)

	_, err := LoadConfig(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grids.orders: pagination.method")
	assert.Contains(t, err.Error(), "grids.users: template_delims")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	ResetConfig()
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestConfig_Validate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := &Config{ProjectConfig: ProjectConfig{Markup: "grid.html"}}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("empty markup", func(t *testing.T) {
		cfg := &Config{}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "markup is required")
	})

	t.Run("relative endpoint", func(t *testing.T) {
		cfg := &Config{ProjectConfig: ProjectConfig{Markup: "grid.html"}, Endpoint: "/api"}
		assert.Error(t, cfg.Validate())
	})

	t.Run("port out of range", func(t *testing.T) {
		cfg := &Config{ProjectConfig: ProjectConfig{Markup: "grid.html"}, UI: UIConfig{Port: 70000}}
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing markup file", func(t *testing.T) {
		cfg := &Config{ProjectConfig: ProjectConfig{Markup: filepath.Join(t.TempDir(), "grid.html")}}
		err := cfg.ValidateMarkup()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "markup file does not exist")
	})
}

func TestGetLoggerFallback(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))
}
