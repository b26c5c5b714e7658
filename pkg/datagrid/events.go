package datagrid

import (
	"slices"
	"sync"
)

// EventName identifies a grid notification.
type EventName string

// Grid events. External adapters subscribe to these by name, so the
// values are a stable contract.
const (
	EventApplying       EventName = "applying"
	EventApplied        EventName = "applied"
	EventRemoving       EventName = "removing"
	EventRemoved        EventName = "removed"
	EventRemovingGroup  EventName = "removing_group"
	EventRemovedGroup   EventName = "removed_group"
	EventSorting        EventName = "sorting"
	EventSorted         EventName = "sorted"
	EventFetching       EventName = "fetching"
	EventFetched        EventName = "fetched"
	EventFetchFailed    EventName = "fetch_failed"
	EventResetting      EventName = "resetting"
	EventReset          EventName = "reset"
	EventSwitching      EventName = "switching"
	EventSwitched       EventName = "switched"
	EventLayoutRendered EventName = "layout_rendered"
	EventStateChanged   EventName = "hashchange"
)

// Event carries the payload of a notification. Only the fields that
// make sense for Name are set.
type Event struct {
	Name     EventName
	Grid     *Grid
	Filter   *Filter
	Sorts    []Sort
	Group    string
	Layout   string
	Page     int
	Response *Response
	Err      error
}

// Handler receives grid events.
type Handler func(Event)

// emitter fans events out to handlers registered per name.
type emitter struct {
	mu       sync.RWMutex
	next     int
	handlers map[EventName]map[int]Handler
}

func newEmitter() *emitter {
	return &emitter{handlers: make(map[EventName]map[int]Handler)}
}

// on registers h and returns a function that removes it.
func (e *emitter) on(name EventName, h Handler) func() {
	e.mu.Lock()
	id := e.next
	e.next++
	if e.handlers[name] == nil {
		e.handlers[name] = make(map[int]Handler)
	}
	e.handlers[name][id] = h
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.handlers[name], id)
		e.mu.Unlock()
	}
}

func (e *emitter) emit(ev Event) {
	e.mu.RLock()
	hs := make([]int, 0, len(e.handlers[ev.Name]))
	for id := range e.handlers[ev.Name] {
		hs = append(hs, id)
	}
	e.mu.RUnlock()

	// Registration order.
	slices.Sort(hs)
	for _, id := range hs {
		e.mu.RLock()
		h, ok := e.handlers[ev.Name][id]
		e.mu.RUnlock()
		if ok {
			h(ev)
		}
	}
}
