package commands

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/datagrid/internal/cli/config"
	"github.com/leapstack-labs/datagrid/internal/cli/output"
	"github.com/leapstack-labs/datagrid/internal/engine"
	"github.com/leapstack-labs/datagrid/internal/state"
	"github.com/leapstack-labs/datagrid/pkg/datagrid"
	"github.com/leapstack-labs/datagrid/pkg/markup"
	"github.com/spf13/cobra"
)

// DoctorOptions holds options for the doctor command.
type DoctorOptions struct {
	Format  string // Output format: text, markdown, json, yaml
	Offline bool   // Skip requests to the data endpoint
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	opts := &DoctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the project for problems",
		Long: `Check the configuration, the markup document, the data endpoint and
the state database, and report what needs fixing.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON/YAML: Machine-readable format`,
		Example: `  # Run every check
  datagrid doctor

  # Skip the data endpoint
  datagrid doctor --offline --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: text, markdown, json, yaml")
	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "Skip requests to the data endpoint")

	return cmd
}

// DoctorOutput is the structured output of the doctor command.
type DoctorOutput struct {
	Summary         ProjectSummary `json:"summary" yaml:"summary"`
	HealthChecks    []HealthCheck  `json:"health_checks" yaml:"health_checks"`
	Score           int            `json:"score" yaml:"score"`
	Recommendations []string       `json:"recommendations" yaml:"recommendations"`
	IssueCount      int            `json:"issue_count" yaml:"issue_count"`
}

// ProjectSummary contains project-level counts.
type ProjectSummary struct {
	Markup  string `json:"markup" yaml:"markup"`
	Grids   int    `json:"grids" yaml:"grids"`
	Filters int    `json:"filters" yaml:"filters"`
	Layouts int    `json:"layouts" yaml:"layouts"`
	Views   int    `json:"views" yaml:"views"`
	History int    `json:"history" yaml:"history"`
}

// HealthCheck is the result of one check.
type HealthCheck struct {
	ID      string   `json:"id" yaml:"id"`
	Name    string   `json:"name" yaml:"name"`
	Group   string   `json:"group" yaml:"group"`
	Status  string   `json:"status" yaml:"status"` // "pass", "warn", "error", "skip"
	Details []string `json:"details,omitempty" yaml:"details,omitempty"`
}

// Check statuses.
const (
	statusPass  = "pass"
	statusWarn  = "warn"
	statusError = "error"
	statusSkip  = "skip"
)

// doctor collects checks as they run.
type doctor struct {
	cfg     *config.Config
	checks  []HealthCheck
	summary ProjectSummary
}

func (d *doctor) add(id, name, group, status string, details ...string) {
	d.checks = append(d.checks, HealthCheck{ID: id, Name: name, Group: group, Status: status, Details: details})
}

// addIssues records a check that fails with severity when issues is not
// empty.
func (d *doctor) addIssues(id, name, group, severity string, issues []string) {
	status := statusPass
	if len(issues) > 0 {
		status = severity
	}
	d.add(id, name, group, status, issues...)
}

func runDoctor(cmd *cobra.Command, opts *DoctorOptions) error {
	cc := NewCommandContextWithoutEngine(cmd)
	r := cc.Renderer

	// Override renderer if format flag is set
	if opts.Format != "" {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.ParseMode(opts.Format))
	}

	d := &doctor{cfg: cc.Cfg, summary: ProjectSummary{Markup: cc.Cfg.Markup}}
	d.checkConfig()
	doc := d.checkMarkup()
	d.checkEndpoint(cmd.Context(), cc, doc, opts.Offline)
	d.checkState(cmd.Context(), cc)

	out := buildDoctorOutput(d)

	if ok, err := r.Data(out); ok {
		return err
	}
	if r.EffectiveMode() == output.ModeMarkdown {
		return renderDoctorMarkdown(r, out)
	}
	return renderDoctorText(r, out)
}

func (d *doctor) checkConfig() {
	if file := config.GetConfigFileUsed(); file != "" {
		d.add("CF01", "Config file", "config", statusPass, file)
	} else {
		d.add("CF01", "Config file", "config", statusWarn, "no datagrid.yaml found, using defaults")
	}
	if err := d.cfg.Validate(); err != nil {
		d.add("CF02", "Grid settings", "config", statusError, strings.Split(err.Error(), "\n")...)
	} else {
		d.add("CF02", "Grid settings", "config", statusPass)
	}
}

// checkMarkup parses the document and returns it, or nil when it cannot
// be read.
func (d *doctor) checkMarkup() *markup.Document {
	if err := d.cfg.ValidateMarkup(); err != nil {
		d.add("MK01", "Markup declares grids", "markup", statusError, err.Error())
		return nil
	}
	doc, err := markup.ParseFile(d.cfg.Markup)
	if err != nil {
		d.add("MK01", "Markup declares grids", "markup", statusError, err.Error())
		return nil
	}

	grids := doc.Grids()
	d.summary.Grids = len(grids)
	if len(grids) == 0 {
		d.add("MK01", "Markup declares grids", "markup", statusError, "no element carries data-grid")
		return nil
	}
	d.add("MK01", "Markup declares grids", "markup", statusPass, strings.Join(grids, ", "))

	var noSource, missing, broken, undeclared []string
	for _, grid := range grids {
		if doc.Source(grid) == "" && d.cfg.Grid(grid).Source == "" {
			noSource = append(noSource, grid)
		}
		d.summary.Filters += countFilters(doc, grid)

		delims := d.templateDelims(grid)
		for _, l := range doc.Layouts(grid) {
			d.summary.Layouts++
			if l.Template == "" {
				continue
			}
			td, ok := doc.Template(grid, l.Template)
			if !ok {
				missing = append(missing, fmt.Sprintf("%s: layout %s uses undeclared template %q", grid, l.Name, l.Template))
				continue
			}
			if _, err := datagrid.ParseTemplate(td.ID, td.Source, delims); err != nil {
				broken = append(broken, fmt.Sprintf("%s: %v", grid, err))
			}
		}
	}
	for name := range d.cfg.Grids {
		if !slices.Contains(grids, name) {
			undeclared = append(undeclared, fmt.Sprintf("grids.%s is configured but not declared in markup", name))
		}
	}
	slices.Sort(undeclared)

	d.addIssues("MK02", "Grids have a data source", "markup", statusError, noSource)
	d.addIssues("MK03", "Layout templates are declared", "markup", statusError, missing)
	d.addIssues("MK04", "Layout templates parse", "markup", statusError, broken)
	d.addIssues("MK05", "Configured grids exist", "markup", statusWarn, undeclared)
	return doc
}

func (d *doctor) templateDelims(grid string) [2]string {
	opts, err := d.cfg.Grid(grid).ToOptions()
	if err != nil {
		return [2]string{}
	}
	return opts.TemplateDelims
}

func countFilters(doc *markup.Document, grid string) int {
	seen := map[string]bool{}
	for _, el := range doc.Controls(grid, "filter") {
		if name := el.Data("filter"); name != "" {
			seen[name] = true
		}
	}
	return len(seen)
}

// checkEndpoint requests the first page of every grid.
func (d *doctor) checkEndpoint(ctx context.Context, cc *CommandContext, doc *markup.Document, offline bool) {
	const id, name, group = "EP01", "Data endpoint answers", "endpoint"
	switch {
	case offline:
		d.add(id, name, group, statusSkip, "--offline")
		return
	case doc == nil:
		d.add(id, name, group, statusSkip, "markup did not load")
		return
	}

	eng, err := engine.New(engine.Config{
		Project:  d.cfg.ProjectConfig,
		Document: doc,
		Endpoint: d.cfg.Endpoint,
		Logger:   cc.Logger,
	})
	if err != nil {
		d.add(id, name, group, statusError, err.Error())
		return
	}
	defer func() { _ = eng.Close() }()

	var issues []string
	if err := eng.Navigate(ctx, ""); err != nil {
		issues = append(issues, err.Error())
	}
	for _, g := range eng.Manager().Grids() {
		if g.State() == datagrid.StateFailed && len(issues) == 0 {
			issues = append(issues, fmt.Sprintf("%s: request failed", g.Name()))
		}
	}
	if len(issues) > 0 {
		d.add(id, name, group, statusError, issues...)
		return
	}
	d.add(id, name, group, statusPass, d.cfg.Endpoint)
}

func (d *doctor) checkState(ctx context.Context, cc *CommandContext) {
	const id, name, group = "ST01", "State database opens", "state"
	store, err := openStore(d.cfg, cc.Logger)
	if err != nil {
		d.add(id, name, group, statusError, err.Error())
		return
	}
	defer func() { _ = store.Close() }()

	views, err := store.ListViews(ctx)
	if err != nil {
		d.add(id, name, group, statusError, err.Error())
		return
	}
	history, err := store.History(ctx, state.DefaultHistoryLimit)
	if err != nil {
		d.add(id, name, group, statusError, err.Error())
		return
	}
	d.summary.Views = len(views)
	d.summary.History = len(history)
	d.add(id, name, group, statusPass, d.cfg.StatePath)
}

func buildDoctorOutput(d *doctor) *DoctorOutput {
	checks := slices.Clone(d.checks)

	// Sort health checks by group then by ID
	groupOrder := []string{"config", "markup", "endpoint", "state"}
	slices.SortStableFunc(checks, func(a, b HealthCheck) int {
		if ga, gb := slices.Index(groupOrder, a.Group), slices.Index(groupOrder, b.Group); ga != gb {
			return ga - gb
		}
		return strings.Compare(a.ID, b.ID)
	})

	issues := 0
	for _, c := range checks {
		if c.Status == statusWarn || c.Status == statusError {
			issues += max(len(c.Details), 1)
		}
	}

	return &DoctorOutput{
		Summary:         d.summary,
		HealthChecks:    checks,
		Score:           calculateHealthScore(checks),
		Recommendations: generateRecommendations(checks),
		IssueCount:      issues,
	}
}

// calculateHealthScore computes a health score from 0-100. Every issue
// costs points; errors count double.
func calculateHealthScore(checks []HealthCheck) int {
	const penalty = 10.0

	score := 100.0
	for _, check := range checks {
		n := float64(max(len(check.Details), 1))
		switch check.Status {
		case statusError:
			score -= n * penalty * 2
		case statusWarn:
			score -= n * penalty / 2
		}
	}

	// Clamp to 0-100
	return int(min(max(score, 0), 100))
}

// generateRecommendations creates actionable recommendations based on findings.
func generateRecommendations(checks []HealthCheck) []string {
	var recommendations []string
	for _, check := range checks {
		if check.Status != statusWarn && check.Status != statusError {
			continue
		}
		if rec := getRecommendation(check.ID); rec != "" && !slices.Contains(recommendations, rec) {
			recommendations = append(recommendations, rec)
		}
	}
	return recommendations
}

// getRecommendation returns a recommendation for a specific check.
func getRecommendation(id string) string {
	switch id {
	case "CF01":
		return "Create a datagrid.yaml next to the markup to pin the endpoint and grid settings"
	case "CF02":
		return "Fix the grid settings listed under Grid settings in datagrid.yaml"
	case "MK01":
		return "Point markup at an HTML document with at least one data-grid element"
	case "MK02":
		return "Add data-grid-source to every grid"
	case "MK03":
		return "Declare a data-grid-template element for every template a layout names"
	case "MK04":
		return "Fix the template syntax, or set template_delims if the page uses {{ }} itself"
	case "MK05":
		return "Remove settings for grids the markup no longer declares"
	case "EP01":
		return "Check that the endpoint is running and answers the grid sources"
	case "ST01":
		return "Check that the state path is writable"
	default:
		return ""
	}
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) error {
	styles := r.Styles()

	// Header
	r.Println("")
	r.Println(styles.Header1.Render("datagrid Project Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println("")

	// Project Summary
	r.Println(styles.Header2.Render("Project Summary"))
	r.Printf("   Markup: %s\n", out.Summary.Markup)
	r.Printf("   Grids: %d | Filters: %d | Layouts: %d\n", out.Summary.Grids, out.Summary.Filters, out.Summary.Layouts)
	r.Printf("   Saved views: %d | History entries: %d\n", out.Summary.Views, out.Summary.History)
	r.Println("")

	// Health Checks grouped by category
	r.Println(styles.Header2.Render("Health Checks"))
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Bold.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := styles.Success.Render("✓")
		switch check.Status {
		case statusWarn:
			icon = styles.Warning.Render("!")
		case statusError:
			icon = styles.Error.Render("✗")
		case statusSkip:
			icon = styles.Muted.Render("-")
		}
		r.Printf("   %s %s: %s\n", icon, check.ID, check.Name)

		// Show first 3 details
		for i, detail := range check.Details {
			if i >= 3 {
				r.Println(styles.Muted.Render(fmt.Sprintf("       ... and %d more", len(check.Details)-3)))
				break
			}
			r.Println(styles.Muted.Render("       - " + detail))
		}
	}
	r.Println("")

	// Health Score
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	scoreStyle := styles.Success
	if out.Score < 70 {
		scoreStyle = styles.Warning
	}
	if out.Score < 50 {
		scoreStyle = styles.Error
	}
	r.Printf("   Health Score: %s\n", scoreStyle.Render(fmt.Sprintf("%d/100", out.Score)))
	r.Println("")

	// Recommendations
	if len(out.Recommendations) > 0 {
		r.Println(styles.Header2.Render("Recommendations"))
		for i, rec := range out.Recommendations {
			r.Printf("   %d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) error {
	r.Println("# datagrid Project Health Report")
	r.Println("")

	// Project Summary
	r.Println("## Project Summary")
	r.Println("")
	r.Printf("- **Markup**: %s\n", out.Summary.Markup)
	r.Printf("- **Grids**: %d\n", out.Summary.Grids)
	r.Printf("- **Filters**: %d\n", out.Summary.Filters)
	r.Printf("- **Layouts**: %d\n", out.Summary.Layouts)
	r.Printf("- **Saved views**: %d\n", out.Summary.Views)
	r.Printf("- **History entries**: %d\n", out.Summary.History)
	r.Println("")

	// Health Checks
	r.Println("## Health Checks")
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println("### " + titleCaser.String(currentGroup))
			r.Println("")
		}

		r.Printf("- **[%s]** %s: %s\n", strings.ToUpper(check.Status), check.ID, check.Name)
		for _, detail := range check.Details {
			r.Printf("  - %s\n", detail)
		}
	}
	r.Println("")

	// Health Score
	r.Println("## Health Score")
	r.Println("")
	r.Printf("**%d/100**\n", out.Score)
	r.Println("")

	// Recommendations
	if len(out.Recommendations) > 0 {
		r.Println("## Recommendations")
		r.Println("")
		for i, rec := range out.Recommendations {
			r.Printf("%d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}
