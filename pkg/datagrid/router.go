package datagrid

import (
	"slices"
	"strings"
	"sync"
)

// Router is the shared URL fragment surface.
type Router interface {
	// Fragment returns the current fragment without its base.
	Fragment() string
	// Navigate replaces the fragment. Subscribers are only notified when
	// trigger is true.
	Navigate(fragment string, trigger bool)
	Subscribe(fn func(fragment string)) (unsubscribe func())
}

// MemoryRouter is an in-process Router that records its history.
type MemoryRouter struct {
	mu       sync.Mutex
	base     string
	fragment string
	history  []string
	next     int
	subs     map[int]func(string)
}

// NewMemoryRouter returns a router positioned at fragment. A base prefix
// is stripped from fragments passed to Navigate.
func NewMemoryRouter(base, fragment string) *MemoryRouter {
	r := &MemoryRouter{base: strings.Trim(base, "/"), subs: make(map[int]func(string))}
	r.fragment = r.strip(fragment)
	return r
}

func (r *MemoryRouter) strip(f string) string {
	f = strings.TrimPrefix(f, "#")
	f = strings.Trim(f, "/")
	if r.base != "" && (f == r.base || strings.HasPrefix(f, r.base+"/")) {
		f = strings.TrimPrefix(strings.TrimPrefix(f, r.base), "/")
	}
	return f
}

func (r *MemoryRouter) Fragment() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fragment
}

func (r *MemoryRouter) Navigate(fragment string, trigger bool) {
	r.mu.Lock()
	r.fragment = r.strip(fragment)
	r.history = append(r.history, r.fragment)
	f := r.fragment
	var subs []func(string)
	if trigger {
		ids := make([]int, 0, len(r.subs))
		for id := range r.subs {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		for _, id := range ids {
			subs = append(subs, r.subs[id])
		}
	}
	r.mu.Unlock()

	for _, fn := range subs {
		fn(f)
	}
}

func (r *MemoryRouter) Subscribe(fn func(string)) func() {
	r.mu.Lock()
	id := r.next
	r.next++
	r.subs[id] = fn
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

// History returns every fragment written, oldest first.
func (r *MemoryRouter) History() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.history)
}
