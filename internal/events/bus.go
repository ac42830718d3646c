// Package events carries store change notifications to the views that render them.
package events

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	Inserted Kind = "inserted"
	Updated  Kind = "updated"
	Deleted  Kind = "deleted"
)

type Entity string

const (
	DestinationEntity Entity = "destination"
	PlacemarkEntity   Entity = "placemark"
)

// Event describes one committed store mutation. DestinationID is the destination a
// placemark belonged to before or after the change, nil for transient placemarks.
type Event struct {
	Kind          Kind       `json:"kind"`
	Entity        Entity     `json:"entity"`
	ID            uuid.UUID  `json:"id"`
	DestinationID *uuid.UUID `json:"destination_id,omitempty"`
	At            time.Time  `json:"at"`
}

// Touches reports whether the event concerns the given destination or transient placemarks.
func (e Event) Touches(destinationID uuid.UUID) bool {
	if e.Entity == DestinationEntity {
		return e.ID == destinationID
	}
	return e.DestinationID == nil || *e.DestinationID == destinationID
}

// Publisher is what the store needs from the bus.
type Publisher interface {
	Publish(e Event)
}

// Bus is a synchronous observer list. Handlers run on the publisher's goroutine, in
// subscription order, and must not block.
type Bus struct {
	mu       sync.RWMutex
	next     int
	handlers map[int]func(Event)
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[int]func(Event))}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.handlers[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	b.mu.RLock()
	ids := make([]int, 0, len(b.handlers))
	for id := range b.handlers {
		ids = append(ids, id)
	}
	handlers := make([]func(Event), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		handlers = append(handlers, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}

func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}
