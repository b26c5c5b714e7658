package notifier

import "sync"

// DefaultOutboxSize bounds an outbox. The oldest items are dropped once
// it is full.
const DefaultOutboxSize = 256

// Outbox queues items for a single consumer. Producers never block;
// the consumer waits on Ready and then takes everything with Drain.
type Outbox[T any] struct {
	mu    sync.Mutex
	items []T
	max   int
	ready chan struct{}
}

// NewOutbox creates an outbox holding at most size items. A size below
// one uses DefaultOutboxSize.
func NewOutbox[T any](size int) *Outbox[T] {
	if size < 1 {
		size = DefaultOutboxSize
	}
	return &Outbox[T]{max: size, ready: make(chan struct{}, 1)}
}

// Push appends v and wakes the consumer.
func (o *Outbox[T]) Push(v T) {
	o.mu.Lock()
	if len(o.items) == o.max {
		o.items = o.items[1:]
	}
	o.items = append(o.items, v)
	o.mu.Unlock()

	select {
	case o.ready <- struct{}{}:
	default:
	}
}

// Ready receives a value after items were pushed.
func (o *Outbox[T]) Ready() <-chan struct{} {
	return o.ready
}

// Drain returns the queued items in push order and empties the outbox.
func (o *Outbox[T]) Drain() []T {
	o.mu.Lock()
	defer o.mu.Unlock()
	items := o.items
	o.items = nil
	return items
}

// Len returns the number of queued items.
func (o *Outbox[T]) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}
