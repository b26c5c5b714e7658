package datagrid

import (
	"net/url"
	"strconv"
	"strings"
)

// Params is the request a grid sends to its data source.
type Params struct {
	Filters   []FilterParam
	Page      int
	Method    Method
	Threshold int
	Throttle  int
	Sort      []Sort
	Download  string
}

// Encode writes the params with bracketed keys, in the order
// filters, page, method, threshold, throttle, sort, download.
func (p Params) Encode() string {
	var b strings.Builder
	add := func(k, v string) {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(v))
	}

	for i, f := range p.Filters {
		key := "filters[" + strconv.Itoa(i) + "]"
		if f.Column != "" {
			key += "[" + f.Column + "]"
		}
		add(key, f.Value)
	}
	add("page", strconv.Itoa(p.Page))
	add("method", string(p.Method))
	if p.Threshold != 0 {
		add("threshold", strconv.Itoa(p.Threshold))
	}
	if p.Throttle != 0 {
		add("throttle", strconv.Itoa(p.Throttle))
	}
	for i, s := range p.Sort {
		add("sort["+strconv.Itoa(i)+"][column]", s.Column)
		add("sort["+strconv.Itoa(i)+"][direction]", string(s.Direction))
	}
	if p.Download != "" {
		add("download", p.Download)
	}
	return b.String()
}

// signature identifies a request for the cached-render check; download
// never takes part in it.
func (p Params) signature() string {
	p.Download = ""
	return p.Encode()
}

// joinQuery appends an encoded query to a source URL.
func joinQuery(source, query string) string {
	if query == "" {
		return source
	}
	if strings.Contains(source, "?") {
		return source + "&" + query
	}
	return source + "?" + query
}
