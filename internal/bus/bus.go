package bus

import (
	"strings"
	"sync"
)

// Bus is an in-process publish/subscribe event bus with namespace filtering.
// Delivery never blocks the publisher: a subscriber whose buffer is full
// misses the event. Live queries rely on this to coalesce bursts of writes
// into a single re-query.
type Bus struct {
	mu   sync.RWMutex
	subs map[uint64]*subscription
	next uint64
}

type subscription struct {
	namespace string
	ch        chan Event
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		subs: make(map[uint64]*subscription),
	}
}

// Publish sends evt to every subscriber whose namespace is a prefix of evt.Kind.
// Safe to call on a nil Bus.
func (b *Bus) Publish(evt Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !strings.HasPrefix(evt.Kind, sub.namespace) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
		}
	}
}

// Subscribe returns a channel that receives events matching the namespace
// prefix, and a function that cancels the subscription. The cancel function
// is idempotent and does not close the channel. A nil Bus returns a channel
// that never delivers.
func (b *Bus) Subscribe(namespace string, bufSize int) (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	if bufSize < 1 {
		bufSize = 1
	}
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscription{namespace: namespace, ch: ch}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
