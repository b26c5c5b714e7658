package commands

import (
	"fmt"

	"github.com/leapstack-labs/datagrid/internal/cli/output"
	"github.com/leapstack-labs/datagrid/internal/state"
	"github.com/spf13/cobra"
)

// RenderOptions holds options for the render command.
type RenderOptions struct {
	Raw bool
}

// NewRenderCommand creates the render command.
func NewRenderCommand() *cobra.Command {
	opts := &RenderOptions{}

	cmd := &cobra.Command{
		Use:   "render [fragment]",
		Short: "Fetch the grids and print their rendered layouts",
		Long: `Route a URL fragment into the grids, fetch every grid from the data
endpoint and print each rendered layout target.

Layout HTML is converted to markdown unless --raw is given.`,
		Example: `  # Render the first page of every grid
  datagrid render

  # Render the open orders sorted by name, as HTML
  datagrid render 'open/name:desc' --raw`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fragment := ""
			if len(args) > 0 {
				fragment = args[0]
			}
			return runRender(cmd, fragment, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Raw, "raw", false, "Print layout HTML without conversion")

	return cmd
}

func runRender(cmd *cobra.Command, fragment string, opts *RenderOptions) error {
	cc, cleanup, err := NewCommandContext(cmd, state.OriginCLI)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := cc.Engine.Navigate(cmd.Context(), fragment); err != nil {
		return err
	}
	return printRendered(cc, opts.Raw)
}

// printRendered prints the grid state followed by every rendered layout.
func printRendered(cc *CommandContext, raw bool) error {
	rep := buildReport(cc.Engine)
	rep.addPages(cc.Engine)

	structured := isStructured(cc.Renderer)
	for _, target := range cc.Layouts.Targets() {
		content := cc.Layouts.Content(target)
		if !raw && !structured {
			md, err := output.HTMLToMarkdown(content)
			if err != nil {
				return fmt.Errorf("convert %s: %w", target, err)
			}
			content = md
		}
		rep.Layouts = append(rep.Layouts, layoutOutput{Target: target, Content: content})
	}
	return printReport(cc.Renderer, rep)
}
