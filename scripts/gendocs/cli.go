package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/datagrid/internal/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// commandGroups orders the index by what a command works on. Commands
// missing here land in "Other".
var commandGroups = []struct {
	title    string
	commands []string
}{
	{"Fragments", []string{"hash", "params", "render"}},
	{"Saved state", []string{"views", "history"}},
	{"Interactive", []string{"repl", "browse", "serve"}},
	{"Project", []string{"init", "doctor", "version", "completion"}},
}

// fragmentTokens documents the trailing route tokens of a fragment.
var fragmentTokens = [][]string{
	{"`page:N`", "Page to show; omitted on page 1"},
	{"`layout:name:template`", "Template bound to a declared layout; pairs joined with `,`"},
	{"`throttle:N`", "Rows per page when it differs from the configured one"},
	{"`threshold:N`", "Pages shown around the current one in group pagination"},
	{"`col:dir,col:dir`", "Sort columns, `asc` or `desc`"},
}

func documented(cmd *cobra.Command) bool {
	return !cmd.Hidden && cmd.Name() != "help" && cmd.Name() != "__complete"
}

// generateCLIDocs writes index.md plus one page per command and nested
// subcommand.
func generateCLIDocs(outDir string) error {
	log.Printf("Generating CLI docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	root := cli.NewRootCmd()
	if err := generateCLIIndex(root, outDir); err != nil {
		return fmt.Errorf("failed to generate index: %w", err)
	}
	log.Printf("  Generated index.md")

	return walkCommands(root, func(cmd *cobra.Command) error {
		name := pageName(cmd)
		if err := generateCommandPage(cmd, outDir); err != nil {
			return fmt.Errorf("failed to generate page for %s: %w", name, err)
		}
		log.Printf("  Generated %s.md", name)
		return nil
	})
}

func walkCommands(parent *cobra.Command, fn func(*cobra.Command) error) error {
	for _, cmd := range parent.Commands() {
		if !documented(cmd) {
			continue
		}
		if err := fn(cmd); err != nil {
			return err
		}
		if err := walkCommands(cmd, fn); err != nil {
			return err
		}
	}
	return nil
}

// pageName is the command path without the binary, joined by dashes:
// "views save" becomes views-save.
func pageName(cmd *cobra.Command) string {
	path := strings.Fields(cmd.CommandPath())
	if len(path) > 1 {
		path = path[1:]
	}
	return strings.Join(path, "-")
}

func commandLink(cmd *cobra.Command) string {
	return fmt.Sprintf("[%s](/cli/%s)", InlineCode(strings.ReplaceAll(pageName(cmd), "-", " ")), pageName(cmd))
}

func generateCLIIndex(root *cobra.Command, outDir string) error {
	w := NewMarkdownWriter()
	w.Frontmatter("CLI Reference", "Command-line reference for datagrid")
	w.GeneratedMarker()

	w.Header(1, "CLI Reference")
	w.Paragraph("datagrid routes URL fragments into the grids of an HTML document. The CLI parses and fetches fragments, renders layouts, keeps saved views and serves the grids to a browser.")
	w.CodeBlock("bash", "go install github.com/leapstack-labs/datagrid/cmd/datagrid@latest\ndatagrid <command> [fragment] [options]")

	byName := map[string]*cobra.Command{}
	for _, cmd := range root.Commands() {
		if documented(cmd) {
			byName[cmd.Name()] = cmd
		}
	}
	for _, group := range commandGroups {
		rows := groupRows(group.commands, byName)
		if len(rows) == 0 {
			continue
		}
		w.Header(2, group.title)
		w.Table([]string{"Command", "Description"}, rows)
	}
	if len(byName) > 0 {
		var rest []string
		for _, cmd := range root.Commands() {
			if _, ok := byName[cmd.Name()]; ok {
				rest = append(rest, cmd.Name())
			}
		}
		w.Header(2, "Other")
		w.Table([]string{"Command", "Description"}, groupRows(rest, byName))
	}

	w.Header(2, "Fragments")
	w.Paragraph("A fragment is a slash separated list of filter tokens followed by the tokens below, read from the right. With more than one grid in the document each grid's part starts with the grid name.")
	w.Table([]string{"Token", "Meaning"}, fragmentTokens)
	w.CodeBlock("bash", "datagrid hash 'status:open/name:desc/page:2'\ndatagrid render 'closed' --output markdown")

	w.Header(2, "Global Options")
	writeFlagsTable(w, root.PersistentFlags())

	w.Header(2, "Environment")
	w.Paragraph("Every key of datagrid.yaml can be set with the DATAGRID_ prefix; a double underscore separates nested keys. Flags win over the environment, which wins over the file.")
	w.Table([]string{"Variable", "Description"}, [][]string{
		{InlineCode("DATAGRID_MARKUP"), "HTML document declaring the grids"},
		{InlineCode("DATAGRID_ENDPOINT"), "Base URL grid sources resolve against"},
		{InlineCode("DATAGRID_STATE_PATH"), "State database path"},
		{InlineCode("DATAGRID_OUTPUT"), "Output format"},
		{InlineCode("DATAGRID_UI__PORT"), "Port of the UI server"},
		{InlineCode("DATAGRID_SESSION_SECRET"), "Cookie secret of the UI server"},
	})

	w.Paragraph("Commands exit with 1 when a fetch, render or state operation fails.")

	return os.WriteFile(filepath.Join(outDir, "index.md"), w.Bytes(), 0600)
}

// groupRows removes each listed command from byName as it is emitted.
func groupRows(names []string, byName map[string]*cobra.Command) [][]string {
	var rows [][]string
	for _, name := range names {
		cmd, ok := byName[name]
		if !ok {
			continue
		}
		delete(byName, name)
		rows = append(rows, []string{commandLink(cmd), cleanDescription(cmd.Short)})
	}
	return rows
}

func generateCommandPage(cmd *cobra.Command, outDir string) error {
	w := NewMarkdownWriter()
	title := strings.ReplaceAll(pageName(cmd), "-", " ")
	w.Frontmatter(title, cmd.Short)
	w.GeneratedMarker()

	w.Header(1, title)
	desc := cmd.Long
	if desc == "" {
		desc = cmd.Short
	}
	w.Paragraph(desc)

	use := cmd.UseLine()
	if cmd.HasAvailableSubCommands() {
		use = cmd.CommandPath() + " <subcommand> [options]"
	}
	w.Header(2, "Usage")
	w.CodeBlock("bash", use)

	if len(cmd.Aliases) > 0 {
		aliases := make([]string, 0, len(cmd.Aliases))
		for _, a := range cmd.Aliases {
			aliases = append(aliases, InlineCode(a))
		}
		w.Paragraph("Aliases: " + strings.Join(aliases, ", "))
	}

	if cmd.HasAvailableSubCommands() {
		var rows [][]string
		for _, sub := range cmd.Commands() {
			if documented(sub) {
				rows = append(rows, []string{commandLink(sub), cleanDescription(sub.Short)})
			}
		}
		w.Header(2, "Subcommands")
		w.Table([]string{"Subcommand", "Description"}, rows)
	}

	if cmd.HasAvailableLocalFlags() {
		w.Header(2, "Options")
		writeFlagsTable(w, cmd.LocalFlags())
	}
	if cmd.HasAvailableInheritedFlags() {
		w.Paragraph("Global options are listed on the [CLI reference](/cli/index).")
	}

	if cmd.Example != "" {
		w.Header(2, "Examples")
		w.CodeBlock("bash", cleanExample(cmd.Example))
	}

	if parent := cmd.Parent(); parent != nil && parent.HasParent() {
		w.Paragraph("See also " + commandLink(parent) + ".")
	}

	return os.WriteFile(filepath.Join(outDir, pageName(cmd)+".md"), w.Bytes(), 0600)
}

func writeFlagsTable(w *MarkdownWriter, flags *pflag.FlagSet) {
	var rows [][]string
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		name := InlineCode("--" + f.Name)
		if f.Shorthand != "" {
			name = InlineCode("-"+f.Shorthand) + ", " + name
		}
		def := f.DefValue
		switch f.Value.Type() {
		case "bool":
			if def == "false" {
				def = ""
			}
		case "stringSlice", "stringArray":
			if def == "[]" {
				def = ""
			}
		}
		if def != "" {
			def = InlineCode(def)
		}
		rows = append(rows, []string{name, f.Value.Type(), def, cleanDescription(f.Usage)})
	})
	w.Table([]string{"Flag", "Type", "Default", "Description"}, rows)
}

// cleanExample strips the indentation shared by every non-blank line.
func cleanExample(example string) string {
	lines := strings.Split(strings.Trim(example, "\n"), "\n")
	indent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	for i, line := range lines {
		if len(line) >= indent && indent > 0 {
			lines[i] = line[indent:]
		} else {
			lines[i] = strings.TrimLeft(line, " \t")
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
