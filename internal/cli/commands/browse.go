package commands

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/leapstack-labs/datagrid/internal/cli/output"
	"github.com/leapstack-labs/datagrid/internal/engine"
	"github.com/leapstack-labs/datagrid/internal/state"
	"github.com/leapstack-labs/datagrid/pkg/datagrid"
	"github.com/spf13/cobra"
)

// NewBrowseCommand creates the browse command.
func NewBrowseCommand() *cobra.Command {
	var fragment string

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse the grids in a terminal UI",
		Long: `Open a full-screen terminal UI over the grids declared in the markup.

Keys:
  up/down    select a filter        enter  toggle the selected filter
  /          search                 n / p  next / previous page
  tab        switch grid            r      reset the grid
  q          quit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBrowse(cmd, fragment)
		},
	}

	cmd.Flags().StringVar(&fragment, "fragment", "", "Fragment to start from")

	return cmd
}

func runBrowse(cmd *cobra.Command, fragment string) error {
	cc, cleanup, err := NewCommandContext(cmd, state.OriginTUI)
	if err != nil {
		return err
	}
	defer cleanup()

	m := newBrowseModel(cmd.Context(), cc.Engine, cc.Layouts, fragment)
	p := tea.NewProgram(m,
		tea.WithContext(cmd.Context()),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
		tea.WithAltScreen(),
	)
	_, err = p.Run()
	return err
}

// refreshedMsg reports the end of an engine action.
type refreshedMsg struct {
	err error
}

type browseStyles struct {
	title  lipgloss.Style
	muted  lipgloss.Style
	errMsg lipgloss.Style
	pane   lipgloss.Style
}

func defaultBrowseStyles() browseStyles {
	return browseStyles{
		title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		muted:  lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		errMsg: lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		pane:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
	}
}

// browseModel is the bubbletea model of the browse command.
type browseModel struct {
	ctx     context.Context
	eng     *engine.Engine
	layouts *datagrid.MemoryRenderer
	start   string

	grid      string
	filters   table.Model
	search    textinput.Model
	searching bool
	preview   viewport.Model
	busy      bool
	err       error

	styles browseStyles
}

func newBrowseModel(ctx context.Context, eng *engine.Engine, layouts *datagrid.MemoryRenderer, fragment string) browseModel {
	first, _ := eng.Grid("")

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Filter", Width: 20},
			{Title: "Label", Width: 20},
			{Title: "On", Width: 3},
		}),
		table.WithFocused(true),
		table.WithHeight(8),
	)

	si := textinput.New()
	si.Placeholder = "Search all columns, or column=value"
	si.CharLimit = 120
	si.Width = 50

	m := browseModel{
		ctx:     ctx,
		eng:     eng,
		layouts: layouts,
		start:   fragment,
		grid:    first.Name(),
		filters: t,
		search:  si,
		preview: viewport.New(80, 15),
		styles:  defaultBrowseStyles(),
	}
	m.updateRows()
	return m
}

// Init fetches the starting fragment.
func (m browseModel) Init() tea.Cmd {
	start := m.start
	return m.action(func(ctx context.Context) error {
		return m.eng.Navigate(ctx, start)
	})
}

// action runs fn off the update loop and reports back with refreshedMsg.
func (m browseModel) action(fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return refreshedMsg{err: fn(ctx)}
	}
}

// Update handles messages.
func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.preview.Width = max(msg.Width-4, 20)
		m.preview.Height = max(msg.Height-18, 5)
		return m, nil

	case refreshedMsg:
		m.busy = false
		m.err = msg.err
		m.updateRows()
		m.updatePreview()
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "/":
			m.searching = true
			m.search.Focus()
			return m, textinput.Blink
		case "tab":
			m.nextGrid()
			return m, nil
		case "enter", " ":
			row := m.filters.SelectedRow()
			if row == nil {
				return m, nil
			}
			name, grid := row[0], m.grid
			m.busy = true
			return m, m.action(func(ctx context.Context) error {
				return m.eng.Toggle(ctx, grid, name)
			})
		case "n", "p":
			return m.turnPage(msg.String() == "n")
		case "r":
			grid := m.grid
			m.busy = true
			return m, m.action(func(ctx context.Context) error {
				return m.eng.Reset(ctx, grid)
			})
		case "pgdown", "pgup":
			m.preview, cmd = m.preview.Update(msg)
			return m, cmd
		}
	}

	m.filters, cmd = m.filters.Update(msg)
	return m, cmd
}

func (m browseModel) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.searching = false
		m.search.Blur()
		return m, nil
	case tea.KeyEnter:
		m.searching = false
		m.search.Blur()
		in := parseSearch(m.search.Value())
		grid := m.grid
		m.busy = true
		return m, m.action(func(ctx context.Context) error {
			return m.eng.Search(ctx, grid, in)
		})
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m browseModel) turnPage(next bool) (tea.Model, tea.Cmd) {
	g, err := m.eng.Grid(m.grid)
	if err != nil {
		m.err = err
		return m, nil
	}
	p := g.Pagination()
	if p == nil {
		return m, nil
	}
	target := p.PreviousPage
	if next {
		target = p.NextPage
	}
	if target == nil {
		return m, nil
	}
	page := fmt.Sprint(*target)
	m.busy = true
	return m, m.action(func(ctx context.Context) error {
		return g.Paginate(ctx, page)
	})
}

func (m *browseModel) nextGrid() {
	names := m.eng.Document().Grids()
	i := slices.Index(names, m.grid)
	m.grid = names[(i+1)%len(names)]
	m.filters.SetCursor(0)
	m.updateRows()
	m.updatePreview()
}

// updateRows lists the declared filters of the grid and marks the
// applied ones.
func (m *browseModel) updateRows() {
	els, err := m.eng.Filters(m.grid)
	if err != nil {
		m.err = err
		return
	}
	applied := map[string]bool{}
	if g, err := m.eng.Grid(m.grid); err == nil {
		for _, f := range g.Filters() {
			applied[f.Name] = true
		}
	}

	rows := make([]table.Row, 0, len(els))
	for _, el := range els {
		name := el.Data("filter")
		on := ""
		if applied[name] {
			on = "✓"
		}
		rows = append(rows, table.Row{name, el.Data("label"), on})
	}
	m.filters.SetRows(rows)
}

// updatePreview shows the grid's rendered layouts as markdown.
func (m *browseModel) updatePreview() {
	var b strings.Builder
	for _, l := range m.eng.Document().Layouts(m.grid) {
		html := m.layouts.Content(l.Target)
		if html == "" {
			continue
		}
		md, err := output.HTMLToMarkdown(html)
		if err != nil {
			md = html
		}
		b.WriteString(md)
		b.WriteString("\n")
	}
	m.preview.SetContent(b.String())
}

// View renders the model.
func (m browseModel) View() string {
	var sections []string

	title := m.styles.title.Render(m.grid) + "  " + m.styles.muted.Render("#"+m.eng.Hash())
	if g, err := m.eng.Grid(m.grid); err == nil {
		if p := g.Pagination(); p != nil {
			title += m.styles.muted.Render(fmt.Sprintf("  page %d of %d, %d rows", p.Page, p.Pages, p.Filtered))
		}
	}
	sections = append(sections, title, m.filters.View())

	if m.searching {
		sections = append(sections, m.search.View())
	}

	sections = append(sections, m.styles.pane.Render(m.preview.View()))

	switch {
	case m.err != nil:
		sections = append(sections, m.styles.errMsg.Render("Error: "+m.err.Error()))
	case m.busy:
		sections = append(sections, m.styles.muted.Render("loading..."))
	}
	sections = append(sections, m.styles.muted.Render("enter toggle • / search • n/p page • tab grid • r reset • q quit"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
