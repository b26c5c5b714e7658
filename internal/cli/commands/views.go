package commands

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/datagrid/internal/state"
	"github.com/spf13/cobra"
)

// NewViewsCommand creates the views command and its subcommands.
func NewViewsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "views",
		Short: "Manage saved views",
		Long: `Saved views are named URL fragments kept in the state database.
Opening a view routes its fragment into the grids and renders them.`,
	}

	cmd.AddCommand(newViewsListCommand())
	cmd.AddCommand(newViewsSaveCommand())
	cmd.AddCommand(newViewsShowCommand())
	cmd.AddCommand(newViewsOpenCommand())
	cmd.AddCommand(newViewsDeleteCommand())

	return cmd
}

func newViewsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved views",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContextWithoutEngine(cmd)
			store, err := openStore(cc.Cfg, cc.Logger)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			views, err := store.ListViews(cmd.Context())
			if err != nil {
				return err
			}
			if ok, err := cc.Renderer.Data(views); ok || err != nil {
				return err
			}
			if len(views) == 0 {
				cc.Renderer.Println(cc.Renderer.Muted("No saved views."))
				return nil
			}

			rows := make([][]string, 0, len(views))
			for _, v := range views {
				rows = append(rows, []string{v.Name, orEmpty(v.Fragment), v.Note, formatTime(v.UpdatedAt)})
			}
			cc.Renderer.Table([]string{"Name", "Fragment", "Note", "Updated"}, rows)
			return nil
		},
	}
}

func newViewsSaveCommand() *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "save <name> [fragment]",
		Short: "Save a fragment as a named view",
		Long: `Save a fragment under a name. The fragment is routed into the grids
first, so the canonical form is stored. An existing view of the same
name is replaced.`,
		Example: `  datagrid views save open-orders 'open/name:desc' --note "Open orders by name"`,
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd, state.OriginCLI)
			if err != nil {
				return err
			}
			defer cleanup()

			if len(args) > 1 {
				cc.Engine.Apply(args[1])
			}
			v, err := cc.Engine.SaveView(cmd.Context(), args[0], note)
			if err != nil {
				return err
			}
			if ok, err := cc.Renderer.Data(v); ok || err != nil {
				return err
			}
			cc.Renderer.Success(fmt.Sprintf("Saved view %s (%s)", v.Name, orEmpty(v.Fragment)))
			return nil
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "Description stored with the view")

	return cmd
}

func newViewsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show the state a saved view encodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd, state.OriginCLI)
			if err != nil {
				return err
			}
			defer cleanup()

			v, err := cc.Engine.Store().GetView(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			cc.Engine.Apply(v.Fragment)

			if !isStructured(cc.Renderer) {
				cc.Renderer.Header(1, v.Name)
				if v.Note != "" {
					cc.Renderer.Println(v.Note)
				}
				cc.Renderer.Println()
			}
			return printReport(cc.Renderer, buildReport(cc.Engine))
		},
	}
}

func newViewsOpenCommand() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "open <name>",
		Short: "Fetch and render a saved view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd, state.OriginCLI)
			if err != nil {
				return err
			}
			defer cleanup()

			if _, err := cc.Engine.OpenView(cmd.Context(), args[0]); err != nil {
				return err
			}
			return printRendered(cc, raw)
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print layout HTML without conversion")

	return cmd
}

func newViewsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved view",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := NewCommandContextWithoutEngine(cmd)
			store, err := openStore(cc.Cfg, cc.Logger)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.DeleteView(cmd.Context(), args[0]); err != nil {
				return err
			}
			cc.Renderer.Success("Deleted view " + args[0])
			return nil
		},
	}
}

func formatTime(t time.Time) string {
	return t.Local().Format(time.DateTime)
}
