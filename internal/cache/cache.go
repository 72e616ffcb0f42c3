package cache

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"

	"example.com/blocus/internal/observability"
)

// GymsKey identifies the full gym list.
const GymsKey = "gyms"

// Producer resolves the value for a key. It is called at most once at a time
// per key.
type Producer[T any] func(ctx context.Context) (T, error)

// Status is the resolution status of a key.
type Status int

const (
	// StatusPending means no value and no terminal error yet.
	StatusPending Status = iota
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "pending"
	}
}

// State is a snapshot of a key. Data must be treated as read-only.
type State[T any] struct {
	Data       T
	HasData    bool
	Err        error
	Status     Status
	IsFetching bool
	// FailureCount is the number of failed attempts of the latest fetch.
	FailureCount int
	UpdatedAt    time.Time
}

// IsLoading reports a first fetch in progress: no value yet and attempts
// still running.
func (s State[T]) IsLoading() bool { return s.Status == StatusPending && s.IsFetching }

// IsSuccess reports whether the last fetch resolved.
func (s State[T]) IsSuccess() bool { return s.Status == StatusSuccess }

// IsError reports whether the last fetch exhausted its retries.
func (s State[T]) IsError() bool { return s.Status == StatusError }

type entry[T any] struct {
	data         T
	hasData      bool
	updatedAt    time.Time
	resolvedAt   time.Time
	err          error
	failureCount int
	fetching     bool
	invalidated  bool
	producer     Producer[T]
	observers    map[*Query[T]]struct{}
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	logger *log.Logger
	policy Policy
	clock  func() time.Time
}

// WithLogger sets a custom logger.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithPolicy overrides DefaultPolicy.
func WithPolicy(p Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// Cache holds asynchronously produced values by key. Concurrent requests for
// the same key share a single producer call.
type Cache[T any] struct {
	mu      sync.Mutex
	entries map[string]*entry[T]
	group   singleflight.Group

	policy Policy
	logger *log.Logger
	now    func() time.Time
}

// New constructs an empty cache.
func New[T any](opts ...Option) *Cache[T] {
	o := options{logger: log.Default(), policy: DefaultPolicy(), clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[T]{
		entries: make(map[string]*entry[T]),
		policy:  o.policy,
		logger:  o.logger,
		now:     o.clock,
	}
}

// Fetch returns the value for key. A fresh value is returned directly. A
// stale value is returned directly while a refetch runs in the background.
// Otherwise Fetch waits for the producer. Cancelling ctx stops the wait but
// not the fetch, whose result is still cached.
func (c *Cache[T]) Fetch(ctx context.Context, key string, producer Producer[T]) (T, error) {
	c.mu.Lock()
	e := c.entryLocked(key)
	e.producer = producer
	now := c.now()
	if c.expiredLocked(e, now) {
		c.resetLocked(e)
	}

	switch {
	case c.freshLocked(e, now):
		data := e.data
		c.mu.Unlock()
		observability.RecordCacheRead(key, observability.ReadFresh)
		return data, nil
	case e.hasData:
		data := e.data
		c.startLocked(ctx, key, producer)
		c.mu.Unlock()
		observability.RecordCacheRead(key, observability.ReadStale)
		return data, nil
	}

	ch := c.startLocked(ctx, key, producer)
	c.mu.Unlock()
	observability.RecordCacheRead(key, observability.ReadMiss)
	return wait[T](ctx, ch)
}

// Refetch runs the producer for key even if the cached value is fresh,
// joining a fetch already in flight.
func (c *Cache[T]) Refetch(ctx context.Context, key string, producer Producer[T]) (T, error) {
	c.mu.Lock()
	e := c.entryLocked(key)
	e.producer = producer
	ch := c.startLocked(ctx, key, producer)
	c.mu.Unlock()
	return wait[T](ctx, ch)
}

// Invalidate marks key stale. Observed keys are refetched right away; others
// are refetched on their next read.
func (c *Cache[T]) Invalidate(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil
	}
	e.invalidated = true
	if len(e.observers) > 0 && e.producer != nil {
		c.startLocked(ctx, key, e.producer)
	}
	return nil
}

// State returns a snapshot for key.
func (c *Cache[T]) State(key string) State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || c.expiredLocked(e, c.now()) {
		return State[T]{}
	}
	return e.stateLocked()
}

// Sweep evicts unobserved entries that resolved more than RetainTime ago and
// reports how many were removed.
func (c *Cache[T]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if c.expiredLocked(e, now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps every interval until ctx is cancelled.
func (c *Cache[T]) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.logger.Printf("query cache evicted %d entries", n)
			}
		}
	}
}

func (c *Cache[T]) entryLocked(key string) *entry[T] {
	e, ok := c.entries[key]
	if !ok {
		e = &entry[T]{observers: make(map[*Query[T]]struct{})}
		c.entries[key] = e
	}
	return e
}

func (c *Cache[T]) freshLocked(e *entry[T], now time.Time) bool {
	return e.hasData && !e.invalidated && now.Sub(e.updatedAt) < c.policy.StaleTime
}

func (c *Cache[T]) expiredLocked(e *entry[T], now time.Time) bool {
	if e.fetching || len(e.observers) > 0 || e.resolvedAt.IsZero() {
		return false
	}
	return now.Sub(e.resolvedAt) >= c.policy.RetainTime
}

func (c *Cache[T]) resetLocked(e *entry[T]) {
	var zero T
	e.data = zero
	e.hasData = false
	e.err = nil
	e.failureCount = 0
	e.invalidated = false
	e.updatedAt = time.Time{}
	e.resolvedAt = time.Time{}
}

// startLocked joins or launches the producer call for key. The call runs on
// a context detached from ctx's cancellation.
func (c *Cache[T]) startLocked(ctx context.Context, key string, producer Producer[T]) <-chan singleflight.Result {
	detached := context.WithoutCancel(ctx)
	return c.group.DoChan(key, func() (any, error) {
		return c.run(detached, key, producer)
	})
}

func (c *Cache[T]) run(ctx context.Context, key string, producer Producer[T]) (T, error) {
	c.mu.Lock()
	e := c.entryLocked(key)
	e.fetching = true
	e.failureCount = 0
	if !e.hasData {
		e.err = nil
	}
	observers := e.observerListLocked()
	c.mu.Unlock()
	notify(observers)

	var (
		value    T
		attempts int
	)
	operation := func() error {
		if attempts > 0 {
			observability.RecordRetry(key)
		}
		attempts++
		observability.RecordProducerInvocation(key)

		v, err := producer(ctx)
		if err != nil {
			c.mu.Lock()
			c.entryLocked(key).failureCount = attempts
			c.mu.Unlock()
			return err
		}
		value = v
		return nil
	}
	schedule := backoff.WithContext(c.policy.Retry.schedule(), ctx)
	err := backoff.RetryNotify(operation, schedule, func(err error, delay time.Duration) {
		c.logger.Printf("query %s attempt %d failed, retrying in %s: %v", key, attempts, delay, err)
	})

	c.mu.Lock()
	e = c.entryLocked(key)
	now := c.now()
	e.fetching = false
	e.resolvedAt = now
	if err != nil {
		e.err = err
		e.failureCount = attempts
	} else {
		e.data = value
		e.hasData = true
		e.updatedAt = now
		e.err = nil
		e.failureCount = 0
		e.invalidated = false
	}
	observers = e.observerListLocked()
	c.mu.Unlock()
	notify(observers)

	if err != nil {
		observability.RecordQueryFailure(key)
		c.logger.Printf("query %s failed after %d attempts: %v", key, attempts, err)
		var zero T
		return zero, err
	}
	return value, nil
}

func (e *entry[T]) stateLocked() State[T] {
	st := State[T]{
		Data:         e.data,
		HasData:      e.hasData,
		Err:          e.err,
		IsFetching:   e.fetching,
		FailureCount: e.failureCount,
		UpdatedAt:    e.updatedAt,
	}
	switch {
	case e.err != nil:
		st.Status = StatusError
	case e.hasData:
		st.Status = StatusSuccess
	default:
		st.Status = StatusPending
	}
	return st
}

func (e *entry[T]) observerListLocked() []*Query[T] {
	if len(e.observers) == 0 {
		return nil
	}
	out := make([]*Query[T], 0, len(e.observers))
	for q := range e.observers {
		out = append(out, q)
	}
	return out
}

func notify[T any](observers []*Query[T]) {
	for _, q := range observers {
		q.deliver()
	}
}

func wait[T any](ctx context.Context, ch <-chan singleflight.Result) (T, error) {
	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}
