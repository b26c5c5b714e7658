package output

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Renderer writes command output in one mode.
type Renderer struct {
	w      io.Writer
	errW   io.Writer
	mode   Mode
	tty    bool
	styles Styles
}

// NewRenderer returns a renderer for w. Terminal detection only succeeds
// when w is an *os.File attached to a terminal.
func NewRenderer(w, errW io.Writer, mode Mode) *Renderer {
	return NewRendererWithTTY(w, errW, isTerminal(w), mode)
}

// NewRendererWithTTY returns a renderer with terminal detection
// overridden.
func NewRendererWithTTY(w, errW io.Writer, tty bool, mode Mode) *Renderer {
	return &Renderer{
		w:      w,
		errW:   errW,
		mode:   ParseMode(string(mode)),
		tty:    tty,
		styles: newStyles(w, tty),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// EffectiveMode resolves ModeAuto.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode != ModeAuto {
		return r.mode
	}
	if r.tty {
		return ModeText
	}
	return ModeMarkdown
}

// IsTTY reports whether output goes to a terminal.
func (r *Renderer) IsTTY() bool { return r.tty }

// Styles returns the text styles.
func (r *Renderer) Styles() Styles { return r.styles }

// Writer returns the output writer.
func (r *Renderer) Writer() io.Writer { return r.w }

func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.w, a...)
}

func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.w, format, a...)
}

// Header writes a heading styled for the mode.
func (r *Renderer) Header(level int, text string) {
	switch r.EffectiveMode() {
	case ModeText:
		if level <= 1 {
			r.Println(r.styles.Header1.Render(text))
		} else {
			r.Println(r.styles.Header2.Render(text))
		}
	default:
		r.Println(FormatHeader(level, text))
	}
}

// Success writes a confirmation to the error stream.
func (r *Renderer) Success(msg string) {
	_, _ = fmt.Fprintln(r.errW, r.styles.Success.Render("✓ "+msg))
}

// Warning writes a warning to the error stream.
func (r *Renderer) Warning(msg string) {
	_, _ = fmt.Fprintln(r.errW, r.styles.Warning.Render("! "+msg))
}

// Muted renders secondary text.
func (r *Renderer) Muted(s string) string { return r.styles.Muted.Render(s) }

// ID renders an identifier.
func (r *Renderer) ID(s string) string { return r.styles.ID.Render(s) }

// StatusLine writes "key: value" in text mode and a list item otherwise.
func (r *Renderer) StatusLine(key, value string) {
	if r.EffectiveMode() == ModeText {
		r.Printf("%s %s\n", r.styles.Key.Render(key+":"), value)
		return
	}
	r.Println(FormatKeyValue(key, value))
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	r.Println(string(b))
	return nil
}

// YAML writes v as YAML.
func (r *Renderer) YAML(v any) error {
	enc := yaml.NewEncoder(r.w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

// Data writes v in the structured modes and reports whether it did.
// Text and markdown are left to the caller.
func (r *Renderer) Data(v any) (bool, error) {
	switch r.EffectiveMode() {
	case ModeJSON:
		return true, r.JSON(v)
	case ModeYAML:
		return true, r.YAML(v)
	}
	return false, nil
}

// Table writes rows as a light box table in text mode and a markdown
// table otherwise.
func (r *Renderer) Table(header []string, rows [][]string) {
	t := table.NewWriter()
	t.SetOutputMirror(r.w)

	h := make(table.Row, len(header))
	for i, c := range header {
		h[i] = c
	}
	t.AppendHeader(h)
	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, c := range row {
			tr[i] = c
		}
		t.AppendRow(tr)
	}

	if r.EffectiveMode() == ModeText {
		t.SetStyle(table.StyleLight)
		t.Render()
		return
	}
	t.RenderMarkdown()
}
