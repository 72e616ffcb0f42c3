package cache

import (
	"context"
	"sync"

	"example.com/blocus/internal/observability"
)

// Query is a long-lived observer of one key. Observed keys are never evicted.
type Query[T any] struct {
	cache    *Cache[T]
	key      string
	producer Producer[T]

	// deliverMu serialises deliveries; mu guards closed and listeners.
	deliverMu sync.Mutex
	mu        sync.Mutex
	closed    bool
	listeners []func(State[T])
}

// Observe attaches a Query to key and starts a fetch unless the cached value
// is fresh.
func (c *Cache[T]) Observe(key string, producer Producer[T]) *Query[T] {
	q := &Query[T]{cache: c, key: key, producer: producer}

	c.mu.Lock()
	e := c.entryLocked(key)
	now := c.now()
	if c.expiredLocked(e, now) {
		c.resetLocked(e)
	}
	e.observers[q] = struct{}{}
	e.producer = producer
	if !c.freshLocked(e, now) {
		c.startLocked(context.Background(), key, producer)
	}
	c.mu.Unlock()
	return q
}

// Key returns the observed key.
func (q *Query[T]) Key() string { return q.key }

// State returns the current snapshot.
func (q *Query[T]) State() State[T] { return q.cache.State(q.key) }

// Revalidate starts a background refetch when the cached value is stale or
// was never fetched. A terminal error without data is left for Refetch.
func (q *Query[T]) Revalidate() {
	c := q.cache
	c.mu.Lock()
	e := c.entryLocked(q.key)
	now := c.now()
	outcome := observability.ReadFresh
	switch {
	case c.freshLocked(e, now):
	case e.hasData:
		outcome = observability.ReadStale
		c.startLocked(context.Background(), q.key, q.producer)
	case e.err == nil && !e.fetching:
		outcome = observability.ReadMiss
		c.startLocked(context.Background(), q.key, q.producer)
	default:
		outcome = observability.ReadMiss
	}
	c.mu.Unlock()
	observability.RecordCacheRead(q.key, outcome)
}

// Refetch forces a fetch and waits for it.
func (q *Query[T]) Refetch(ctx context.Context) (T, error) {
	return q.cache.Refetch(ctx, q.key, q.producer)
}

// OnChange registers fn to receive every state transition. fn may register
// further listeners, which take effect from the next transition, but must not
// call Close on the same Query.
func (q *Query[T]) OnChange(fn func(State[T])) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.listeners = append(q.listeners, fn)
}

// Close detaches the Query. Once Close returns no listener is invoked again;
// a fetch in flight still completes and populates the cache.
func (q *Query[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.listeners = nil
	q.mu.Unlock()

	// Wait out a delivery already in progress.
	q.deliverMu.Lock()
	q.deliverMu.Unlock()

	c := q.cache
	c.mu.Lock()
	if e, ok := c.entries[q.key]; ok {
		delete(e.observers, q)
	}
	c.mu.Unlock()
}

// deliver reads the latest state at delivery time so listeners never observe
// transitions out of order.
func (q *Query[T]) deliver() {
	q.deliverMu.Lock()
	defer q.deliverMu.Unlock()

	q.mu.Lock()
	if q.closed || len(q.listeners) == 0 {
		q.mu.Unlock()
		return
	}
	listeners := append([]func(State[T]){}, q.listeners...)
	q.mu.Unlock()

	st := q.cache.State(q.key)
	for _, fn := range listeners {
		fn(st)
	}
}
