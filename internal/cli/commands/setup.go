package commands

import (
	"log/slog"
	"os"

	"github.com/leapstack-labs/datagrid/internal/cli/config"
	"github.com/leapstack-labs/datagrid/internal/cli/output"
	"github.com/leapstack-labs/datagrid/internal/engine"
	"github.com/leapstack-labs/datagrid/internal/state"
	"github.com/leapstack-labs/datagrid/pkg/datagrid"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
	// Layouts receives the engine's rendered layouts.
	Layouts *datagrid.MemoryRenderer
}

// NewCommandContext creates a CommandContext with engine and renderer.
// Fragments the engine writes are recorded in history under origin.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command, origin state.Origin) (*CommandContext, func(), error) {
	cc := NewCommandContextWithoutEngine(cmd)

	store, err := openStore(cc.Cfg, cc.Logger)
	if err != nil {
		return nil, nil, err
	}

	cc.Layouts = datagrid.NewMemoryRenderer()
	eng, err := engine.New(engine.Config{
		Project:  cc.Cfg.ProjectConfig,
		Endpoint: cc.Cfg.Endpoint,
		Store:    store,
		Origin:   origin,
		Renderer: cc.Layouts,
		Logger:   cc.Logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	cc.Engine = eng

	cleanup := func() {
		_ = eng.Close()
	}
	return cc, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that only read the state store.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.ParseMode(cfg.OutputFormat))

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to environment variables.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	cfg := &config.Config{
		Endpoint:     getEnvOrDefault("DATAGRID_ENDPOINT", config.DefaultEndpoint),
		StatePath:    getEnvOrDefault("DATAGRID_STATE_PATH", config.DefaultStateFile),
		Verbose:      os.Getenv("DATAGRID_VERBOSE") == "true",
		OutputFormat: getEnvOrDefault("DATAGRID_OUTPUT", config.DefaultOutput),
	}
	cfg.Markup = os.Getenv("DATAGRID_MARKUP")
	return cfg
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func openStore(cfg *config.Config, logger *slog.Logger) (*state.SQLiteStore, error) {
	store := state.NewSQLiteStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, err
	}
	return store, nil
}
