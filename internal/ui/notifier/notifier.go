// Package notifier provides the broadcast and queueing primitives behind
// the UI server's event streams.
package notifier

import "sync"

// Kind names a server-wide event.
type Kind string

// Event kinds.
const (
	// KindReload means the markup changed and pages must reload.
	KindReload Kind = "reload"
	// KindShutdown means the server is stopping.
	KindShutdown Kind = "shutdown"
)

// Event is a server-wide notification.
type Event struct {
	Kind Kind
	// Path is the file that triggered a reload.
	Path string
}

// Notifier broadcasts events to every subscribed stream.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan Event]struct{}
}

// New creates a new Notifier instance.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[chan Event]struct{}),
	}
}

// Subscribe returns a channel that receives broadcast events.
// The caller must call Unsubscribe when done.
func (n *Notifier) Subscribe() chan Event {
	ch := make(chan Event, 1)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan Event) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// Broadcast sends ev to all listeners. A listener whose buffer is full
// misses the event.
func (n *Notifier) Broadcast(ev Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Len returns the number of listeners.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}
