package datagrid

// Element is a declaration read from markup. Attrs holds the data-grid
// attributes with the "data-grid-" prefix removed; the bare data-grid
// attribute is stored under "grid".
type Element struct {
	Tag   string
	Attrs map[string]string
	// Value is the current value of a form control, or the value of the
	// selected option for a select.
	Value string
	// Ancestors are the enclosing elements carrying data-grid attributes,
	// nearest first.
	Ancestors []Element
}

// Data returns the attribute value or "".
func (e Element) Data(key string) string {
	return e.Attrs[key]
}

// Has reports whether the attribute is present, even when empty.
func (e Element) Has(key string) bool {
	_, ok := e.Attrs[key]
	return ok
}

// Closest returns the element itself or its nearest ancestor carrying key.
func (e Element) Closest(key string) (Element, bool) {
	if e.Has(key) {
		return e, true
	}
	return e.Parent(key)
}

// Parent returns the nearest ancestor carrying key.
func (e Element) Parent(key string) (Element, bool) {
	for _, a := range e.Ancestors {
		if a.Has(key) {
			return a, true
		}
	}
	return Element{}, false
}

// LayoutDecl is a declared render target.
type LayoutDecl struct {
	Name     string
	Target   string
	Template string
	Disabled bool
}

// TemplateDecl is a declared layout template.
type TemplateDecl struct {
	ID     string
	Source string
	Action Action
}

// Markup is the read side of the declaration document. Every lookup is
// scoped to one grid.
type Markup interface {
	Source(grid string) string
	Layouts(grid string) []LayoutDecl
	Template(grid, id string) (TemplateDecl, bool)
	Filter(grid, name string) (Element, bool)
	DefaultFilters(grid string) []Element
	DefaultSort(grid string) (Element, bool)
	RangeInputs(grid, name string) (start, end Element, ok bool)
	SearchColumn(grid, column string) bool
	// GroupFilters returns the filter names declared inside a group; ok
	// is false when the group is not declared.
	GroupFilters(grid, group string) (names []string, ok bool)
}
