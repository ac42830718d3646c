package store

import (
	"context"
	"sync"
	"time"

	"github.com/bwise1/lookaround/internal/events"
)

const liveFetchTimeout = 5 * time.Second

// LiveQuery keeps the result of a fetch current by re-running it whenever a matching
// event is published. Listeners run on the publishing goroutine and must not block.
type LiveQuery[T any] struct {
	fetch func(ctx context.Context) (T, error)
	match func(events.Event) bool
	unsub func()

	mu        sync.RWMutex
	value     T
	err       error
	version   uint64
	listeners map[int]func(T)
	nextID    int
	closed    bool
}

// NewLiveQuery runs fetch once and subscribes to bus. match may be nil to refresh on every event.
func NewLiveQuery[T any](ctx context.Context, bus *events.Bus, match func(events.Event) bool, fetch func(ctx context.Context) (T, error)) (*LiveQuery[T], error) {
	value, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	q := &LiveQuery[T]{
		fetch:     fetch,
		match:     match,
		value:     value,
		listeners: make(map[int]func(T)),
	}
	q.unsub = bus.Subscribe(q.handle)
	return q, nil
}

func (q *LiveQuery[T]) handle(e events.Event) {
	if q.match != nil && !q.match(e) {
		return
	}
	q.Refresh()
}

// Refresh re-runs the fetch and notifies listeners. A failed fetch keeps the last value.
func (q *LiveQuery[T]) Refresh() {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), liveFetchTimeout)
	value, err := q.fetch(ctx)
	cancel()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.err = err
	if err != nil {
		q.mu.Unlock()
		return
	}
	q.value = value
	q.version++
	listeners := make([]func(T), 0, len(q.listeners))
	for _, fn := range q.listeners {
		listeners = append(listeners, fn)
	}
	q.mu.Unlock()

	for _, fn := range listeners {
		fn(value)
	}
}

// Snapshot returns the current value and how many refreshes have landed.
func (q *LiveQuery[T]) Snapshot() (T, uint64) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.value, q.version
}

// Err returns the error of the most recent refresh, if any.
func (q *LiveQuery[T]) Err() error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.err
}

// OnChange registers fn for every successful refresh and returns a function that removes it.
func (q *LiveQuery[T]) OnChange(fn func(T)) func() {
	q.mu.Lock()
	id := q.nextID
	q.nextID++
	q.listeners[id] = fn
	q.mu.Unlock()

	return func() {
		q.mu.Lock()
		delete(q.listeners, id)
		q.mu.Unlock()
	}
}

func (q *LiveQuery[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.listeners = map[int]func(T){}
	q.mu.Unlock()
	q.unsub()
}
