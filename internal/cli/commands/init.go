package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/datagrid/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new datagrid project",
		Long: `Initialize a new datagrid project with a configuration file and a
markup document declaring one grid.

This creates:
  - datagrid.yaml configuration file
  - grid.html markup document
  - .gitignore excluding the state directory

Use --example to create an orders page with search, status filters, a
range filter, sortable columns, paging and a CSV download.`,
		Example: `  # Initialize in current directory
  datagrid init

  # Initialize with the orders example
  datagrid init --example

  # Initialize in a new directory
  datagrid init my-grids --example

  # Force overwrite existing config
  datagrid init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			cfg := getConfig()
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.ParseMode(cfg.OutputFormat))

			template := "minimal"
			if example {
				template = "example"
			}
			return runInit(r, dir, template, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().BoolVar(&example, "example", false, "Create the orders example page")

	return cmd
}

func runInit(r *output.Renderer, dir, template string, force bool) error {
	// Create directory if specified and doesn't exist
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	// Check if config already exists
	configPath := filepath.Join(dir, "datagrid.yaml")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("datagrid.yaml already exists. Use --force to overwrite")
	}

	s, err := loadScaffold(template)
	if err != nil {
		return err
	}
	if err := s.write(dir, force); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	first := true
	for _, role := range scaffoldRoles {
		files := s.byRole(role)
		if len(files) == 0 {
			continue
		}
		if !first {
			r.Println("")
		}
		first = false
		r.Header(2, role)
		for _, f := range files {
			status := "created"
			if f.Kept {
				status = "kept"
			}
			r.StatusLine(f.Path, status)
		}
	}

	r.Println("")
	r.Success("datagrid project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  1. Point endpoint in datagrid.yaml at your data API")
	r.Println("  2. Run 'datagrid doctor' to check the project")
	r.Println("  3. Run 'datagrid render' to see the first page")
	r.Println("  4. Run 'datagrid serve' to open it in a browser")

	return nil
}
