package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/datagrid/internal/engine"
	"github.com/leapstack-labs/datagrid/internal/state"
	"github.com/leapstack-labs/datagrid/pkg/datagrid"
	"github.com/spf13/cobra"
)

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	var fragment string

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Drive the grids interactively",
		Long: `Start an interactive session over the grids declared in the markup.

Each command changes the state of the current grid, fetches it and prints
the new fragment and page counts. Type .help for the command list.`,
		Example: `  datagrid repl
  datagrid repl --fragment 'open/page:2'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runREPL(cmd, fragment)
		},
	}

	cmd.Flags().StringVar(&fragment, "fragment", "", "Fragment to start from")

	return cmd
}

func runREPL(cmd *cobra.Command, fragment string) error {
	cc, cleanup, err := NewCommandContext(cmd, state.OriginREPL)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	if err := cc.Engine.Navigate(ctx, fragment); err != nil {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	}

	session := newREPLSession(cc, cmd.OutOrStdout())

	// Setup history file (project-local)
	historyFile := filepath.Join(filepath.Dir(cc.Cfg.StatePath), "repl_history")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          session.prompt(),
		HistoryFile:     historyFile,
		AutoComplete:    session.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdin:           io.NopCloser(cmd.InOrStdin()),
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "datagrid REPL (grids: %s)\n", strings.Join(session.gridNames(), ", "))
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())
	session.status()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		quit, err := session.exec(ctx, line)
		if err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		if quit {
			break
		}
		rl.SetPrompt(session.prompt())
	}

	return nil
}

// replSession executes REPL lines against an engine.
type replSession struct {
	cc   *CommandContext
	eng  *engine.Engine
	grid string
	out  io.Writer
}

func newREPLSession(cc *CommandContext, out io.Writer) *replSession {
	first, _ := cc.Engine.Grid("")
	return &replSession{cc: cc, eng: cc.Engine, grid: first.Name(), out: out}
}

func (s *replSession) prompt() string {
	return s.grid + "> "
}

func (s *replSession) gridNames() []string {
	return s.eng.Document().Grids()
}

// exec runs one line and reports whether the session should end.
func (s *replSession) exec(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if strings.HasPrefix(line, ".") {
		return s.dotCommand(ctx, line)
	}

	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)

	var err error
	switch strings.ToLower(verb) {
	case "filter":
		if len(args) == 0 {
			return false, errors.New("usage: filter <name>")
		}
		err = s.eng.Filter(ctx, s.grid, args[0])
	case "toggle":
		if len(args) == 0 {
			return false, errors.New("usage: toggle <name>")
		}
		err = s.eng.Toggle(ctx, s.grid, args[0])
	case "unfilter":
		if len(args) == 0 {
			return false, errors.New("usage: unfilter <name>")
		}
		err = s.withGrid(func(g *datagrid.Grid) error { return g.ResetFilter(ctx, args[0]) })
	case "group":
		if len(args) == 0 {
			return false, errors.New("usage: group <name>")
		}
		err = s.withGrid(func(g *datagrid.Grid) error { return g.RemoveGroup(ctx, args[0]) })
	case "search":
		err = s.eng.Search(ctx, s.grid, parseSearch(rest))
	case "sort":
		if len(args) == 0 {
			return false, errors.New("usage: sort <column> [asc|desc] [multi]")
		}
		dir := datagrid.Asc
		if len(args) > 1 {
			dir = datagrid.ParseDirection(args[1])
		}
		multi := len(args) > 2 && args[2] == "multi"
		err = s.eng.Sort(ctx, s.grid, args[0], dir, multi)
	case "page":
		if len(args) == 0 {
			return false, errors.New("usage: page <n|next|prev>")
		}
		err = s.page(ctx, args[0])
	case "more":
		err = s.withGrid(func(g *datagrid.Grid) error { return g.LoadMore(ctx) })
	case "layout":
		if len(args) == 0 {
			return false, errors.New("usage: layout <name>:<template>")
		}
		err = s.withGrid(func(g *datagrid.Grid) error { return g.SwitchLayout(ctx, args[0]) })
	case "reset":
		err = s.eng.Reset(ctx, s.grid)
	case "go":
		err = s.eng.Navigate(ctx, rest)
	default:
		return false, fmt.Errorf("unknown command: %s (type .help for commands)", verb)
	}
	if err != nil {
		return false, err
	}
	s.status()
	return false, nil
}

func (s *replSession) dotCommand(ctx context.Context, line string) (bool, error) {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case ".quit", ".exit":
		return true, nil

	case ".help":
		printREPLHelp(s.out)

	case ".grid":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(s.out, strings.Join(s.gridNames(), "\n"))
			return false, nil
		}
		g, err := s.eng.Grid(parts[1])
		if err != nil {
			return false, err
		}
		s.grid = g.Name()

	case ".hash":
		_, _ = fmt.Fprintln(s.out, orEmpty(s.eng.Hash()))

	case ".params":
		g, err := s.eng.Grid(s.grid)
		if err != nil {
			return false, err
		}
		_, _ = fmt.Fprintln(s.out, g.Params("").Encode())

	case ".download":
		if len(parts) < 2 {
			return false, errors.New("usage: .download <format>")
		}
		g, err := s.eng.Grid(s.grid)
		if err != nil {
			return false, err
		}
		_, _ = fmt.Fprintln(s.out, g.DownloadURL(parts[1]))

	case ".show":
		return false, printRendered(s.cc, len(parts) > 1 && parts[1] == "raw")

	case ".save":
		if len(parts) < 2 {
			return false, errors.New("usage: .save <name> [note]")
		}
		note := strings.Join(parts[2:], " ")
		v, err := s.eng.SaveView(ctx, parts[1], note)
		if err != nil {
			return false, err
		}
		_, _ = fmt.Fprintf(s.out, "saved %s (%s)\n", v.Name, orEmpty(v.Fragment))

	case ".open":
		if len(parts) < 2 {
			return false, errors.New("usage: .open <name>")
		}
		if _, err := s.eng.OpenView(ctx, parts[1]); err != nil {
			return false, err
		}
		s.status()

	case ".views":
		views, err := s.eng.Store().ListViews(ctx)
		if err != nil {
			return false, err
		}
		for _, v := range views {
			_, _ = fmt.Fprintf(s.out, "%s\t%s\n", v.Name, orEmpty(v.Fragment))
		}

	default:
		return false, fmt.Errorf("unknown command: %s (type .help for commands)", command)
	}
	return false, nil
}

func (s *replSession) withGrid(fn func(*datagrid.Grid) error) error {
	g, err := s.eng.Grid(s.grid)
	if err != nil {
		return err
	}
	return fn(g)
}

// page resolves next and prev against the last response.
func (s *replSession) page(ctx context.Context, arg string) error {
	g, err := s.eng.Grid(s.grid)
	if err != nil {
		return err
	}
	switch arg {
	case "next", "prev":
		p := g.Pagination()
		if p == nil {
			return errors.New("grid has not been fetched")
		}
		target := p.NextPage
		if arg == "prev" {
			target = p.PreviousPage
		}
		if target == nil {
			return fmt.Errorf("no %s page", arg)
		}
		arg = fmt.Sprint(*target)
	}
	return g.Paginate(ctx, arg)
}

// status prints the fragment and the page counts of the current grid.
func (s *replSession) status() {
	g, err := s.eng.Grid(s.grid)
	if err != nil {
		return
	}
	line := orEmpty(s.eng.Hash())
	if p := g.Pagination(); p != nil {
		line += fmt.Sprintf("  (page %d of %d, %d rows)", p.Page, p.Pages, p.Filtered)
	}
	_, _ = fmt.Fprintln(s.out, line)
}

// parseSearch reads "value", "column=value" or "column op value".
func parseSearch(s string) datagrid.SearchInput {
	if col, val, ok := strings.Cut(s, "="); ok && !strings.Contains(col, " ") {
		return datagrid.SearchInput{Column: col, Value: val}
	}
	if f := strings.Fields(s); len(f) >= 3 && isOperator(f[1]) {
		return datagrid.SearchInput{Column: f[0], Operator: f[1], Value: strings.Join(f[2:], " ")}
	}
	return datagrid.SearchInput{Value: s}
}

func isOperator(s string) bool {
	switch s {
	case "=", "!=", "<>", "<", "<=", ">", ">=":
		return true
	}
	return false
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  filter <name>            Apply a declared filter
  toggle <name>            Apply or remove a declared filter
  unfilter <name>          Remove an applied filter
  group <name>             Remove every filter of a group
  search [col=]<value>     Submit the search form
  search <col> <op> <value>
  sort <col> [asc|desc] [multi]
  page <n|next|prev>       Switch page
  more                     Load more rows (throttle pagination)
  layout <name>:<tmpl>     Switch a layout template
  reset                    Restore the grid defaults
  go <fragment>            Route a fragment into every grid

Dot commands:
  .grid [name]             List grids or switch the current grid
  .hash                    Print the current fragment
  .params                  Print the request of the current grid
  .download <format>       Print the export URL of the current grid
  .show [raw]              Print the rendered layouts
  .save <name> [note]      Save the current fragment as a view
  .open <name>             Route a saved view
  .views                   List saved views
  .quit / .exit            Exit the REPL
`
	_, _ = fmt.Fprintln(w, help)
}

// completer creates a readline completer for commands and filter names.
func (s *replSession) completer() *readline.PrefixCompleter {
	var filters []readline.PrefixCompleterInterface
	for _, name := range s.gridNames() {
		els, err := s.eng.Filters(name)
		if err != nil {
			continue
		}
		for _, el := range els {
			filters = append(filters, readline.PcItem(el.Data("filter")))
		}
	}

	var grids []readline.PrefixCompleterInterface
	for _, name := range s.gridNames() {
		grids = append(grids, readline.PcItem(name))
	}

	return readline.NewPrefixCompleter(
		readline.PcItem("filter", filters...),
		readline.PcItem("toggle", filters...),
		readline.PcItem("unfilter", filters...),
		readline.PcItem("group"),
		readline.PcItem("search"),
		readline.PcItem("sort"),
		readline.PcItem("page", readline.PcItem("next"), readline.PcItem("prev")),
		readline.PcItem("more"),
		readline.PcItem("layout"),
		readline.PcItem("reset"),
		readline.PcItem("go"),
		readline.PcItem(".grid", grids...),
		readline.PcItem(".hash"),
		readline.PcItem(".params"),
		readline.PcItem(".download"),
		readline.PcItem(".show"),
		readline.PcItem(".save"),
		readline.PcItem(".open"),
		readline.PcItem(".views"),
		readline.PcItem(".help"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}
