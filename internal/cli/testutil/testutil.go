// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/datagrid/internal/cli/output"
)

// OrdersMarkup declares one grid over the orders endpoint with a search
// form, two status filters in a group and a results layout.
const OrdersMarkup = `<!doctype html>
<html><body>
<div data-grid="orders" data-grid-source="/api/orders">
  <form data-grid-search>
    <select name="column"><option value="name">Name</option></select>
    <input name="value">
  </form>
  <ul data-grid-group="status">
    <li data-grid-filter="open" data-grid-query="status:open" data-grid-label="Open">Open</li>
    <li data-grid-filter="closed" data-grid-query="status:closed" data-grid-label="Closed">Closed</li>
  </ul>
  <table><tbody id="rows" data-grid-layout="rows" data-grid-template="rows"></tbody></table>
  <script type="text/template" data-grid-template="rows">{{range .Response.Data.results}}<tr><td>{{.name}}</td></tr>{{end}}</script>
</div>
</body></html>
`

// SetupTestProject creates a temporary project with a datagrid.yaml, the
// orders markup and a state path inside the project. endpoint is written
// as the data endpoint; pass "" to keep the default.
func SetupTestProject(t *testing.T, endpoint string) string {
	t.Helper()

	tmpDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(tmpDir, "grid.html"), []byte(OrdersMarkup), 0644); err != nil {
		t.Fatalf("failed to create grid.html: %v", err)
	}

	cfg := "markup: grid.html\nstate_path: .datagrid/state.db\n"
	if endpoint != "" {
		cfg += fmt.Sprintf("endpoint: %s\n", endpoint)
	}
	cfg += `grids:
  orders:
    pagination:
      throttle: 10
`
	if err := os.WriteFile(filepath.Join(tmpDir, "datagrid.yaml"), []byte(cfg), 0644); err != nil {
		t.Fatalf("failed to create datagrid.yaml: %v", err)
	}

	return tmpDir
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// NewTestRendererText creates a new test renderer in text mode (simulated TTY).
func NewTestRendererText() *TestRenderer {
	return NewTestRenderer(output.ModeText, true)
}

// NewTestRendererMarkdown creates a new test renderer in markdown mode.
func NewTestRendererMarkdown() *TestRenderer {
	return NewTestRenderer(output.ModeMarkdown, false)
}

// NewTestRendererJSON creates a new test renderer in JSON mode.
func NewTestRendererJSON() *TestRenderer {
	return NewTestRenderer(output.ModeJSON, false)
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// Reset clears both output buffers.
func (tr *TestRenderer) Reset() {
	tr.Out.Reset()
	tr.ErrOut.Reset()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and empty headers.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	fenceCount := strings.Count(md, "```")
	if fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}

	lines := strings.Split(md, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}

// Chdir switches the working directory for the duration of the test.
func Chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to chdir to %s: %v", dir, err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
