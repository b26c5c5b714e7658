// Package markup reads data-grid declarations from an HTML document.
//
// A declaration belongs to a grid when it carries data-grid="name" itself
// or is nested inside an element that does. Templates are declared with
// <script type="text/template" data-grid-template="id"> or <template>.
package markup

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/leapstack-labs/datagrid/pkg/datagrid"
	"golang.org/x/net/html"
)

const attrPrefix = "data-grid"

// node is one element carrying data-grid attributes.
type node struct {
	el    datagrid.Element
	grids []string
	html  *html.Node
}

func (n *node) in(grid string) bool { return slices.Contains(n.grids, grid) }

// Document is a parsed declaration document. It is safe for concurrent
// use; control values may be updated after parsing.
type Document struct {
	nodes []*node
	names []string

	mu     sync.RWMutex
	values map[valueKey]string
}

type valueKey struct {
	grid, filter, part string
}

var _ datagrid.Markup = (*Document)(nil)

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}
	d := &Document{values: make(map[valueKey]string)}
	d.walk(root, nil, nil)
	return d, nil
}

// ParseFile parses the document at path.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open markup: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// ParseString is Parse for a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

func (d *Document) walk(n *html.Node, ancestors []datagrid.Element, grids []string) {
	if n.Type == html.ElementNode {
		if attrs := gridAttrs(n); attrs != nil {
			if g, ok := attrs["grid"]; ok && g != "" {
				grids = append(slices.Clone(grids), g)
				if !slices.Contains(d.names, g) {
					d.names = append(d.names, g)
				}
			}
			el := datagrid.Element{
				Tag:       n.Data,
				Attrs:     attrs,
				Value:     controlValue(n),
				Ancestors: ancestors,
			}
			d.nodes = append(d.nodes, &node{el: el, grids: grids, html: n})
			ancestors = append([]datagrid.Element{el}, ancestors...)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		d.walk(c, ancestors, grids)
	}
}

// gridAttrs returns the data-grid attributes of n with the prefix
// stripped, or nil when there are none.
func gridAttrs(n *html.Node) map[string]string {
	var out map[string]string
	for _, a := range n.Attr {
		key := strings.ToLower(a.Key)
		if !strings.HasPrefix(key, attrPrefix) {
			continue
		}
		rest := strings.TrimPrefix(key, attrPrefix)
		switch {
		case rest == "":
			rest = "grid"
		case strings.HasPrefix(rest, "-"):
			rest = rest[1:]
		default:
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[rest] = a.Val
	}
	return out
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// controlValue is the current value of a form control. For a select it
// is the selected option, or the first one.
func controlValue(n *html.Node) string {
	switch n.Data {
	case "input", "option":
		v, _ := attr(n, "value")
		return v
	case "textarea":
		return textContent(n)
	case "select":
		var first *html.Node
		for _, o := range findAll(n, "option") {
			if first == nil {
				first = o
			}
			if _, ok := attr(o, "selected"); ok {
				return optionValue(o)
			}
		}
		if first != nil {
			return optionValue(first)
		}
	}
	return ""
}

func optionValue(o *html.Node) string {
	if v, ok := attr(o, "value"); ok {
		return v
	}
	return strings.TrimSpace(textContent(o))
}

// firstControlValue returns the value of n when it is a control, or of
// its first descendant control.
func firstControlValue(n *html.Node) string {
	switch n.Data {
	case "input", "select", "textarea":
		return controlValue(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if v := firstControlValue(c); v != "" {
			return v
		}
	}
	return ""
}

func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == tag {
				out = append(out, c)
			}
			visit(c)
		}
	}
	visit(n)
	return out
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return b.String()
}

// innerHTML renders the children of n.
func innerHTML(n *html.Node) (string, error) {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// Grids returns the grid names in document order.
func (d *Document) Grids() []string {
	return slices.Clone(d.names)
}

func (d *Document) find(grid string, match func(*node) bool) (*node, bool) {
	for _, n := range d.nodes {
		if n.in(grid) && match(n) {
			return n, true
		}
	}
	return nil, false
}

func (d *Document) findAll(grid string, match func(*node) bool) []*node {
	var out []*node
	for _, n := range d.nodes {
		if n.in(grid) && match(n) {
			out = append(out, n)
		}
	}
	return out
}

func has(key string) func(*node) bool {
	return func(n *node) bool { return n.el.Has(key) }
}

func is(key, value string) func(*node) bool {
	return func(n *node) bool { return n.el.Has(key) && n.el.Data(key) == value }
}

func (d *Document) Source(grid string) string {
	n, ok := d.find(grid, func(n *node) bool { return n.el.Data("source") != "" })
	if !ok {
		return ""
	}
	return n.el.Data("source")
}

// Layouts returns the declared layouts. The render target is the
// element's id selector when it has one.
func (d *Document) Layouts(grid string) []datagrid.LayoutDecl {
	var out []datagrid.LayoutDecl
	for _, n := range d.findAll(grid, has("layout")) {
		name := n.el.Data("layout")
		if name == "" {
			continue
		}
		target := fmt.Sprintf(`[data-grid="%s"] [data-grid-layout="%s"]`, grid, name)
		if id, ok := attr(n.html, "id"); ok && id != "" {
			target = "#" + id
		}
		out = append(out, datagrid.LayoutDecl{
			Name:     name,
			Target:   target,
			Template: n.el.Data("template"),
			Disabled: n.el.Has("layout-disabled"),
		})
	}
	return out
}

// Template returns a template declared for the grid, or one declared
// outside any grid.
func (d *Document) Template(grid, id string) (datagrid.TemplateDecl, bool) {
	if id == "" {
		return datagrid.TemplateDecl{}, false
	}
	for _, n := range d.nodes {
		if n.el.Data("template") != id || n.el.Has("layout") {
			continue
		}
		if len(n.grids) > 0 && !n.in(grid) {
			continue
		}
		src, err := templateSource(n.html)
		if err != nil {
			return datagrid.TemplateDecl{}, false
		}
		return datagrid.TemplateDecl{
			ID:     id,
			Source: src,
			Action: datagrid.ParseAction(n.el.Data("action")),
		}, true
	}
	return datagrid.TemplateDecl{}, false
}

func templateSource(n *html.Node) (string, error) {
	if n.Data == "script" {
		return textContent(n), nil
	}
	return innerHTML(n)
}

// Filter returns the first control declaring the named filter. For range
// filters declared as a start/end pair the start control is returned.
func (d *Document) Filter(grid, name string) (datagrid.Element, bool) {
	n, ok := d.find(grid, is("filter", name))
	if !ok {
		return datagrid.Element{}, false
	}
	return n.el, true
}

func (d *Document) DefaultFilters(grid string) []datagrid.Element {
	var out []datagrid.Element
	for _, n := range d.findAll(grid, has("filter-default")) {
		out = append(out, n.el)
	}
	return out
}

func (d *Document) DefaultSort(grid string) (datagrid.Element, bool) {
	n, ok := d.find(grid, func(n *node) bool { return n.el.Data("sort-default") != "" })
	if !ok {
		return datagrid.Element{}, false
	}
	return n.el, true
}

// RangeInputs returns the start and end controls of a range filter with
// their current values.
func (d *Document) RangeInputs(grid, name string) (start, end datagrid.Element, ok bool) {
	s, ok1 := d.find(grid, func(n *node) bool { return is("filter", name)(n) && n.el.Data("range") == "start" })
	e, ok2 := d.find(grid, func(n *node) bool { return is("filter", name)(n) && n.el.Data("range") == "end" })
	if !ok1 || !ok2 {
		return datagrid.Element{}, datagrid.Element{}, false
	}
	return d.withValue(grid, name, "start", s), d.withValue(grid, name, "end", e), true
}

func (d *Document) withValue(grid, name, part string, n *node) datagrid.Element {
	el := n.el
	d.mu.RLock()
	v, ok := d.values[valueKey{grid, name, part}]
	d.mu.RUnlock()
	if ok {
		el.Value = v
	} else if el.Value == "" {
		el.Value = firstControlValue(n.html)
	}
	return el
}

// SetRangeValue records the value a user entered into the start or end
// control of a range filter.
func (d *Document) SetRangeValue(grid, name, part, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.values[valueKey{grid, name, part}] = value
}

// SearchColumn reports whether a search form of the grid offers column.
func (d *Document) SearchColumn(grid, column string) bool {
	for _, n := range d.findAll(grid, has("search")) {
		for _, o := range findAll(n.html, "option") {
			if optionValue(o) == column {
				return true
			}
		}
	}
	return false
}

// SearchForm returns the grid's search form.
func (d *Document) SearchForm(grid string) (datagrid.Element, bool) {
	n, ok := d.find(grid, has("search"))
	if !ok {
		return datagrid.Element{}, false
	}
	return n.el, true
}

func (d *Document) GroupFilters(grid, group string) ([]string, bool) {
	groups := d.findAll(grid, is("group", group))
	if len(groups) == 0 {
		return nil, false
	}
	var names []string
	for _, n := range d.findAll(grid, has("filter")) {
		name := n.el.Data("filter")
		if name == "" || slices.Contains(names, name) {
			continue
		}
		if gr, ok := n.el.Closest("group"); ok && gr.Data("group") == group {
			names = append(names, name)
		}
	}
	return names, true
}

// Controls returns every element of the grid carrying key, in document
// order.
func (d *Document) Controls(grid, key string) []datagrid.Element {
	var out []datagrid.Element
	for _, n := range d.findAll(grid, has(key)) {
		out = append(out, n.el)
	}
	return out
}
