package main

import (
	"fmt"
	"log"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"github.com/leapstack-labs/datagrid/internal/cli/config"
	intconfig "github.com/leapstack-labs/datagrid/internal/config"
)

// ConfigField is one key of datagrid.yaml.
type ConfigField struct {
	Key     string
	Type    string
	Default string
}

// fieldDescriptions documents the keys; keys missing here are listed
// without a description.
var fieldDescriptions = map[string]string{
	"markup":       "HTML document declaring the grids",
	"endpoint":     "Base URL grid sources resolve against",
	"state_path":   "SQLite database holding saved views and fragment history",
	"verbose":      "Log debug output to stderr",
	"output":       "Output format: auto, text, markdown, json, yaml",
	"url.hash":     "Write grid state to the URL fragment",
	"url.semantic": "Write history paths instead of a hash",
	"url.base":     "Path prefix of every fragment",

	"ui.port":           "Port of the UI server",
	"ui.watch":          "Reload pages when the markup changes",
	"ui.auto_open":      "Open a browser when the server starts",
	"ui.session_secret": "Cookie secret; random per run when empty",

	"grids.<name>.source":                     "Data endpoint of the grid, relative to endpoint",
	"grids.<name>.pagination.method":          "single, group or infinite",
	"grids.<name>.pagination.throttle":        "Rows per page",
	"grids.<name>.pagination.threshold":       "Pages shown around the current one in group mode",
	"grids.<name>.pagination.infinite_scroll": "Load the next page when the window nears the bottom",
	"grids.<name>.pagination.scroll_offset":   "Distance from the bottom that triggers the next page",
	"grids.<name>.pagination.scroll_interval": "Minimum time between scroll loads",
	"grids.<name>.sorting.column":             "Default sort column",
	"grids.<name>.sorting.direction":          "Default sort direction: asc or desc",
	"grids.<name>.sorting.multicolumn":        "Allow sorting by more than one column",
	"grids.<name>.sorting.delimiter":          "Separator between sort column and direction",
	"grids.<name>.delimiter.query":            "Separator between query tokens",
	"grids.<name>.delimiter.expression":       "Separator inside a query token",
	"grids.<name>.filters":                    "Filter presets available without markup",
	"grids.<name>.search.live":                "Search while typing",
	"grids.<name>.search.timeout":             "Typing pause before a live search runs",
	"grids.<name>.formats.timestamp":          "strftime pattern of timestamps sent to the endpoint",
	"grids.<name>.formats.server_date":        "strftime pattern of dates sent to the endpoint",
	"grids.<name>.formats.client_date":        "strftime pattern of dates shown in range labels",
	"grids.<name>.template_delims":            "Left and right template delimiters",
	"grids.<name>.layouts":                    "Template per layout, overriding the markup",
}

// getConfigSchema walks the koanf tags of the CLI config.
func getConfigSchema() []ConfigField {
	defaults := map[string]any{
		"endpoint":     config.DefaultEndpoint,
		"state_path":   config.DefaultStateFile,
		"output":       config.DefaultOutput,
		"ui.port":      config.DefaultPort,
		"ui.watch":     true,
		"ui.auto_open": true,
	}
	maps.Copy(defaults, intconfig.Defaults())

	var fields []ConfigField
	walkConfig(reflect.TypeOf(config.Config{}), "", defaults, &fields)
	slices.SortStableFunc(fields, func(a, b ConfigField) int {
		return strings.Compare(a.Key, b.Key)
	})
	return fields
}

func walkConfig(t reflect.Type, prefix string, defaults map[string]any, out *[]ConfigField) {
	for i := range t.NumField() {
		f := t.Field(i)
		tag := f.Tag.Get("koanf")
		if tag == "-" || !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if opts == "squash" {
			walkConfig(f.Type, prefix, defaults, out)
			continue
		}
		key := prefix + name

		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		switch {
		case ft.Kind() == reflect.Struct && ft.PkgPath() != "time":
			walkConfig(ft, key+".", defaults, out)
			continue
		case ft.Kind() == reflect.Map && key == "grids":
			walkConfig(ft.Elem(), key+".<name>.", defaults, out)
			continue
		}

		field := ConfigField{Key: key, Type: typeName(ft)}
		if v, ok := defaults[key]; ok {
			field.Default = fmt.Sprint(v)
		}
		*out = append(*out, field)
	}
}

func typeName(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Slice:
		return "list of " + typeName(t.Elem())
	case reflect.Map:
		return "map of " + typeName(t.Elem())
	case reflect.Struct:
		return "object"
	}
	if t.PkgPath() == "time" {
		return "duration"
	}
	return t.Kind().String()
}

// generateConfigDocs writes the datagrid.yaml reference.
func generateConfigDocs(outDir string) error {
	log.Printf("Generating config docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	w := NewMarkdownWriter()
	w.Frontmatter("Configuration", "datagrid.yaml reference")
	w.GeneratedMarker()

	w.Header(1, "Configuration")
	w.Paragraph("datagrid reads datagrid.yaml from the working directory or the path given with --config. Paths in the file are relative to the file.")
	w.CodeBlock("yaml", `markup: index.html
endpoint: http://localhost:8080
grids:
  orders:
    source: /api/orders
    pagination:
      throttle: 25
    sorting:
      column: name`)

	w.Header(2, "Keys")
	var rows [][]string
	for _, f := range getConfigSchema() {
		def := f.Default
		if def != "" {
			def = InlineCode(def)
		}
		rows = append(rows, []string{InlineCode(f.Key), f.Type, def, fieldDescriptions[f.Key]})
	}
	w.Table([]string{"Key", "Type", "Default", "Description"}, rows)

	filename := filepath.Join(outDir, "configuration.md")
	if err := os.WriteFile(filename, w.Bytes(), 0600); err != nil {
		return err
	}
	log.Printf("  Generated configuration.md")
	return nil
}
