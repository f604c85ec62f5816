package event

import (
	"sync"
	"sync/atomic"
)

// Subscriber receives events on C until it is unsubscribed or the bus closes.
type Subscriber struct {
	ID    string
	C     chan Event
	types map[Type]bool
}

func (s *Subscriber) wants(t Type) bool {
	return len(s.types) == 0 || s.types[t]
}

// Bus fans events out to subscribers. Publish never blocks: a subscriber whose
// buffer is full misses the event.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	closed      bool

	seq     atomic.Uint64
	dropped atomic.Uint64
}

func NewBus() *Bus {
	return &Bus{subscribers: make(map[string]*Subscriber)}
}

// Subscribe registers a subscriber. With no types every event is delivered.
// Subscribing again with the same id replaces (and closes) the previous one.
func (b *Bus) Subscribe(id string, buffer int, types ...Type) *Subscriber {
	if buffer <= 0 {
		buffer = 64
	}
	sub := &Subscriber{ID: id, C: make(chan Event, buffer), types: make(map[Type]bool, len(types))}
	for _, t := range types {
		sub.types[t] = true
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.C)
		return sub
	}
	if existing, ok := b.subscribers[id]; ok {
		close(existing.C)
	}
	b.subscribers[id] = sub
	return sub
}

func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subscribers[id]; ok {
		close(sub.C)
		delete(b.subscribers, id)
	}
}

// Publish stamps the event with the next sequence number and delivers it.
func (b *Bus) Publish(ev Event) {
	ev.Seq = b.seq.Add(1)

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subscribers {
		if !sub.wants(ev.Type) {
			continue
		}
		select {
		case sub.C <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped returns how many deliveries were skipped on full buffers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes every subscriber channel. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subscribers {
		close(sub.C)
		delete(b.subscribers, id)
	}
}
