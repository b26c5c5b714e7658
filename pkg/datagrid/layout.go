package datagrid

import (
	"context"
	"fmt"
	"html/template"
	"strings"
	"sync"
)

// Renderer applies rendered layouts to their targets.
type Renderer interface {
	Render(ctx context.Context, target, html string, action Action) error
	Clear(ctx context.Context, target string) error
}

// RenderData is the value layout templates execute against.
type RenderData struct {
	Grid       View
	Response   *Response
	Pagination *PaginationView
}

var templateFuncs = template.FuncMap{
	"add": func(a, b int) int { return a + b },
	"sub": func(a, b int) int { return a - b },
	"seq": func(from, to int) []int {
		if to < from {
			return nil
		}
		out := make([]int, 0, to-from+1)
		for i := from; i <= to; i++ {
			out = append(out, i)
		}
		return out
	},
	"deref": func(p *int) int {
		if p == nil {
			return 0
		}
		return *p
	},
}

// ParseTemplate parses a layout template with the functions layouts can
// call. Empty delimiters select the defaults.
func ParseTemplate(id, src string, delims [2]string) (*template.Template, error) {
	return template.New(id).Delims(delims[0], delims[1]).Funcs(templateFuncs).Parse(src)
}

// compiledLayout is a layout bound to its parsed template.
type compiledLayout struct {
	decl   LayoutDecl
	tmpl   *template.Template
	action Action
}

// compileLayout resolves the template currently bound to a layout.
// Templates are cached per id until the next reset.
func (g *Grid) compileLayout(decl LayoutDecl, id string) (compiledLayout, error) {
	td, ok := g.markup.Template(g.name, id)
	if !ok {
		return compiledLayout{}, fmt.Errorf("layout %s: template %q not declared", decl.Name, id)
	}
	t, ok := g.templates[id]
	if !ok {
		var err error
		t, err = ParseTemplate(id, td.Source, g.opt.TemplateDelims)
		if err != nil {
			return compiledLayout{}, fmt.Errorf("parse template %s: %w", id, err)
		}
		g.templates[id] = t
	}
	return compiledLayout{decl: decl, tmpl: t, action: td.Action}, nil
}

// MemoryRenderer keeps rendered output per target. It backs the CLI and
// tests.
type MemoryRenderer struct {
	mu      sync.Mutex
	targets map[string]string
	order   []string
}

// NewMemoryRenderer returns an empty renderer.
func NewMemoryRenderer() *MemoryRenderer {
	return &MemoryRenderer{targets: make(map[string]string)}
}

func (r *MemoryRenderer) Render(_ context.Context, target, html string, action Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.targets[target]; !ok {
		r.order = append(r.order, target)
	}
	if action == ActionAppend {
		r.targets[target] += html
	} else {
		r.targets[target] = html
	}
	return nil
}

func (r *MemoryRenderer) Clear(_ context.Context, target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.targets[target]; ok {
		r.targets[target] = ""
	}
	return nil
}

// Content returns the output of one target.
func (r *MemoryRenderer) Content(target string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.targets[target]
}

// Targets returns the rendered targets in first-render order.
func (r *MemoryRenderer) Targets() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// String concatenates every target.
func (r *MemoryRenderer) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var b strings.Builder
	for _, t := range r.order {
		b.WriteString(r.targets[t])
	}
	return b.String()
}
