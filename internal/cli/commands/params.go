package commands

import (
	"github.com/leapstack-labs/datagrid/internal/state"
	"github.com/spf13/cobra"
)

// ParamsOptions holds options for the params command.
type ParamsOptions struct {
	Download string
}

// NewParamsCommand creates the params command.
func NewParamsCommand() *cobra.Command {
	opts := &ParamsOptions{}

	cmd := &cobra.Command{
		Use:   "params [fragment]",
		Short: "Show the request each grid would send",
		Long: `Route a URL fragment into the grids and print the query string each grid
sends to its data source. With --download the export URL is printed
instead; exports are never fetched.`,
		Example: `  # Request parameters for page 2 of the open orders
  datagrid params 'open/page:2'

  # Export URL for the same view
  datagrid params 'open/page:2' --download csv`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fragment := ""
			if len(args) > 0 {
				fragment = args[0]
			}
			return runParams(cmd, fragment, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Download, "download", "", "Export format (e.g. csv, xlsx)")

	return cmd
}

func runParams(cmd *cobra.Command, fragment string, opts *ParamsOptions) error {
	cc, cleanup, err := NewCommandContext(cmd, state.OriginCLI)
	if err != nil {
		return err
	}
	defer cleanup()

	cc.Engine.Apply(fragment)

	rep := buildReport(cc.Engine)
	rep.Params = make(map[string]string)
	if opts.Download != "" {
		for _, g := range cc.Engine.Manager().Grids() {
			rep.Params[g.Name()] = g.DownloadURL(opts.Download)
		}
	} else {
		rep.Params = cc.Engine.Params("")
	}

	if ok, err := cc.Renderer.Data(rep); ok || err != nil {
		return err
	}

	header := "Request"
	if opts.Download != "" {
		header = "Download"
	}
	rows := make([][]string, 0, len(rep.Grids))
	for _, g := range rep.Grids {
		rows = append(rows, []string{g.Name, rep.Params[g.Name]})
	}
	cc.Renderer.Table([]string{"Grid", header}, rows)
	return nil
}
