package commands

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/google/uuid"
	"github.com/leapstack-labs/datagrid/internal/cli/config"
	"github.com/leapstack-labs/datagrid/internal/ui"
	"github.com/spf13/cobra"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Port      int
	NoBrowser bool
	Watch     bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"ui"},
		Short:   "Serve the markup document with live grids",
		Long: `Start a local web server that serves the markup document and drives
its grids from the server.

Each browser session gets its own grids. Filters, searches, sorting and
paging are sent to the server, which fetches the data endpoint and pushes
the rendered layouts and the new URL fragment back to the page.`,
		Example: `  # Serve on the default port
  datagrid serve

  # Serve on a custom port without opening a browser
  datagrid serve --port 3000 --no-browser`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 0, "Port to serve on (default: 8765)")
	cmd.Flags().BoolVar(&opts.NoBrowser, "no-browser", false, "Don't auto-open browser")
	cmd.Flags().BoolVar(&opts.Watch, "watch", true, "Reload pages when the markup changes")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	// CLI flags override config file
	port := cfg.UI.Port
	if opts.Port != 0 {
		port = opts.Port
	}

	autoOpen := cfg.UI.AutoOpen
	if opts.NoBrowser {
		autoOpen = false
	}

	watch := cfg.UI.Watch
	if cmd.Flags().Changed("watch") {
		watch = opts.Watch
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	server, err := ui.NewServer(ui.Config{
		Project:       cfg.ProjectConfig,
		Endpoint:      cfg.Endpoint,
		Store:         store,
		Port:          port,
		Watch:         watch,
		SessionSecret: sessionSecret(cfg),
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://localhost:%d", port)
	if autoOpen {
		go openBrowser(url)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Serving %s on %s\n", cfg.Markup, url)
	_, _ = fmt.Fprintln(out, "Press Ctrl+C to stop")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	return server.Serve(ctx)
}

// sessionSecret returns the configured cookie secret. Without one, a
// random secret is used and sessions end when the server stops.
func sessionSecret(cfg *config.Config) string {
	if cfg.UI.SessionSecret != "" {
		return cfg.UI.SessionSecret
	}
	if secret := os.Getenv("DATAGRID_SESSION_SECRET"); secret != "" {
		return secret
	}
	return uuid.NewString()
}

// openBrowser opens the default browser to the specified URL.
func openBrowser(url string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url) //nolint:noctx
	case "linux":
		cmd = exec.Command("xdg-open", url) //nolint:noctx
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url) //nolint:noctx
	default:
		return
	}

	_ = cmd.Start()
}
