package testutil

import (
	"cmp"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
)

// DataServer is a fake grid data endpoint. It pages, filters and sorts
// Rows the way a real endpoint would and records every query it gets.
type DataServer struct {
	*httptest.Server
	Rows []map[string]any

	mu      sync.Mutex
	queries []string
}

var filterKey = regexp.MustCompile(`^filters\[(\d+)\](?:\[(.+)\])?$`)

// NewDataServer starts a server for rows. It is closed with the test.
func NewDataServer(t testing.TB, rows []map[string]any) *DataServer {
	t.Helper()
	s := &DataServer{Rows: rows}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Queries returns the raw query strings received, oldest first.
func (s *DataServer) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.queries)
}

func (s *DataServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.queries = append(s.queries, r.URL.RawQuery)
	s.mu.Unlock()

	q := r.URL.Query()
	rows := s.filter(q)

	if col := q.Get("sort[0][column]"); col != "" {
		desc := q.Get("sort[0][direction]") == "desc"
		slices.SortStableFunc(rows, func(a, b map[string]any) int {
			c := cmp.Compare(fmt.Sprint(a[col]), fmt.Sprint(b[col]))
			if desc {
				return -c
			}
			return c
		})
	}

	throttle := atoi(q.Get("throttle"), 10)
	pages := max((len(rows)+throttle-1)/throttle, 1)
	page := min(max(atoi(q.Get("page"), 1), 1), pages)
	from := min((page-1)*throttle, len(rows))
	to := min(from+throttle, len(rows))

	body := map[string]any{
		"page":     page,
		"pages":    pages,
		"total":    len(s.Rows),
		"filtered": len(rows),
		"throttle": throttle,
		"method":   cmp.Or(q.Get("method"), "single"),
		"results":  rows[from:to],
	}
	if page < pages {
		body["nextPage"] = page + 1
	}
	if page > 1 {
		body["previousPage"] = page - 1
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

// filter keeps rows matching every filters[i][column]=value exactly and
// every bare filters[i]=value as a case-insensitive substring of any
// column.
func (s *DataServer) filter(q url.Values) []map[string]any {
	rows := slices.Clone(s.Rows)
	for key, values := range q {
		m := filterKey.FindStringSubmatch(key)
		if m == nil || len(values) == 0 {
			continue
		}
		column, value := m[2], values[0]
		rows = slices.DeleteFunc(rows, func(row map[string]any) bool {
			if column != "" {
				return fmt.Sprint(row[column]) != value
			}
			for _, v := range row {
				if strings.Contains(strings.ToLower(fmt.Sprint(v)), strings.ToLower(value)) {
					return false
				}
			}
			return true
		})
	}
	return rows
}

func atoi(s string, d int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return d
	}
	return n
}

// Orders returns n order rows. Odd ids are open, even ids closed.
func Orders(n int) []map[string]any {
	rows := make([]map[string]any, n)
	for i := range rows {
		id := i + 1
		status := "closed"
		if id%2 == 1 {
			status = "open"
		}
		rows[i] = map[string]any{
			"id":     id,
			"name":   fmt.Sprintf("Order %02d", id),
			"status": status,
			"total":  id * 10,
		}
	}
	return rows
}
