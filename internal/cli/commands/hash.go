package commands

import (
	"github.com/leapstack-labs/datagrid/internal/state"
	"github.com/spf13/cobra"
)

// HashOptions holds options for the hash command.
type HashOptions struct {
	Fetch bool
}

// NewHashCommand creates the hash command.
func NewHashCommand() *cobra.Command {
	opts := &HashOptions{}

	cmd := &cobra.Command{
		Use:   "hash [fragment]",
		Short: "Parse a URL fragment into grid state",
		Long: `Route a URL fragment into every grid declared in the markup and print
the resulting state: the canonical fragment, filters, sort and page of each grid.

The data endpoint is not contacted unless --fetch is given.`,
		Example: `  # Show the state encoded by a fragment
  datagrid hash 'orders/open/name:desc/page:2'

  # Canonicalize and fetch, printing the page counts
  datagrid hash 'page:2/open' --fetch -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fragment := ""
			if len(args) > 0 {
				fragment = args[0]
			}
			return runHash(cmd, fragment, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Fetch, "fetch", false, "Fetch the grids from the data endpoint")

	return cmd
}

func runHash(cmd *cobra.Command, fragment string, opts *HashOptions) error {
	cc, cleanup, err := NewCommandContext(cmd, state.OriginCLI)
	if err != nil {
		return err
	}
	defer cleanup()

	if !opts.Fetch {
		cc.Engine.Apply(fragment)
		return printReport(cc.Renderer, buildReport(cc.Engine))
	}

	if err := cc.Engine.Navigate(cmd.Context(), fragment); err != nil {
		return err
	}
	rep := buildReport(cc.Engine)
	rep.addPages(cc.Engine)
	return printReport(cc.Renderer, rep)
}
