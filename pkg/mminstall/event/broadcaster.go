package event

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 256

// ErrDropped is returned by Broadcaster.Emit when a subscriber's buffer was
// full and the event was not delivered to it.
var ErrDropped = errors.New("event dropped: subscriber buffer full")

// Subscription receives events from a Broadcaster until it is removed or
// the broadcaster is closed, at which point Events is closed.
type Subscription struct {
	ID     string
	Events <-chan Event

	ch chan Event
}

// Broadcaster fans events out to subscribers without ever blocking the
// emitting run.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[string]*Subscription)}
}

// Subscribe registers a subscriber with the given buffer size (DefaultBuffer
// when not positive). It returns nil after Close.
func (b *Broadcaster) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}

	ch := make(chan Event, buffer)
	sub := &Subscription{ID: uuid.NewString(), Events: ch, ch: ch}
	b.subs[sub.ID] = sub
	return sub
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		close(sub.ch)
		delete(b.subs, id)
	}
}

// Emit delivers e to every subscriber whose buffer has room.
func (b *Broadcaster) Emit(e Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}

	var dropped []string
	for id, sub := range b.subs {
		select {
		case sub.ch <- e:
		default:
			dropped = append(dropped, id)
		}
	}
	if len(dropped) > 0 {
		return fmt.Errorf("%w: %s for %v", ErrDropped, e, dropped)
	}
	return nil
}

// Close closes every subscription. Later emits are ignored.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}

// Len returns the number of active subscribers.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
