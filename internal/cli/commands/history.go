package commands

import (
	"fmt"

	"github.com/leapstack-labs/datagrid/internal/state"
	"github.com/spf13/cobra"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit int
	Prune int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently visited fragments",
		Long: `Show the fragments the grids wrote while being driven from the CLI,
the REPL, the browser and the UI server, newest first.`,
		Example: `  # Last 10 fragments
  datagrid history --limit 10

  # Keep only the 100 newest entries
  datagrid history --prune 100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", state.DefaultHistoryLimit, "Number of entries to show")
	cmd.Flags().IntVar(&opts.Prune, "prune", -1, "Delete all but the newest N entries")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	cc := NewCommandContextWithoutEngine(cmd)
	store, err := openStore(cc.Cfg, cc.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if opts.Prune >= 0 {
		n, err := store.PruneHistory(cmd.Context(), opts.Prune)
		if err != nil {
			return err
		}
		cc.Renderer.Success(fmt.Sprintf("Pruned %d history entries", n))
		return nil
	}

	entries, err := store.History(cmd.Context(), opts.Limit)
	if err != nil {
		return err
	}
	if ok, err := cc.Renderer.Data(entries); ok || err != nil {
		return err
	}
	if len(entries) == 0 {
		cc.Renderer.Println(cc.Renderer.Muted("No history yet."))
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{fmt.Sprint(e.ID), string(e.Origin), orEmpty(e.Fragment), formatTime(e.CreatedAt)})
	}
	cc.Renderer.Table([]string{"ID", "Origin", "Fragment", "Time"}, rows)
	return nil
}
