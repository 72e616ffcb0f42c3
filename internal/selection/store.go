// Package selection holds the gym the user picked and keeps it across
// restarts. The store hydrates once per process from a kvstore.Store and
// writes every later change back with a short debounce.
package selection

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"example.com/blocus/internal/domain"
	"example.com/blocus/internal/kvstore"
	"example.com/blocus/internal/observability"
	"example.com/blocus/internal/telemetry"
)

const (
	// DefaultKey names the persisted blob.
	DefaultKey = "gym-storage"
	// DefaultDebounce coalesces bursts of mutations into one write.
	DefaultDebounce = 250 * time.Millisecond

	persistTimeout = 5 * time.Second
)

// Phase is the hydration life-cycle state.
type Phase int32

const (
	PhaseUninitialized Phase = iota
	PhaseHydrating
	PhaseHydrated
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseHydrating:
		return "hydrating"
	case PhaseHydrated:
		return "hydrated"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// MalformedDataError describes a persisted blob that could not be decoded.
type MalformedDataError struct {
	Err error
}

func (e *MalformedDataError) Error() string {
	return "malformed selection blob: " + e.Err.Error()
}

func (e *MalformedDataError) Unwrap() error {
	return e.Err
}

// envelope is the persisted shape. Only the selection is written; the
// hydration flag is recomputed every boot.
type envelope struct {
	Selection *domain.Gym `json:"selection"`
}

// Listener observes the selection after every change and after hydration.
type Listener func(selected *domain.Gym)

// Option configures a Store.
type Option func(*Store)

// WithLogger overrides the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithDebounce sets the write-through delay. Zero writes on every mutation.
func WithDebounce(d time.Duration) Option {
	return func(s *Store) { s.debounce = d }
}

// WithKey overrides the persisted blob key.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithTelemetry reports swallowed persistence failures to sink.
func WithTelemetry(sink telemetry.Sink) Option {
	return func(s *Store) { s.sink = sink }
}

// Store owns the current selection and its hydration flag.
type Store struct {
	kv       kvstore.Store
	key      string
	debounce time.Duration
	logger   *log.Logger
	sink     telemetry.Sink
	clock    func() time.Time

	mu             sync.Mutex
	selected       *domain.Gym
	phase          Phase
	mutatedEarly   bool
	dirty          bool
	closed         bool
	timer          *time.Timer
	listeners      map[int]Listener
	nextListenerID int

	hydrateOnce sync.Once
	ready       chan struct{}

	// writeMu keeps writes to kv in mutation order.
	writeMu sync.Mutex
}

// New constructs a Store in the Uninitialized phase.
func New(kv kvstore.Store, opts ...Option) *Store {
	s := &Store{
		kv:        kv,
		key:       DefaultKey,
		debounce:  DefaultDebounce,
		logger:    log.New(log.Writer(), "[selection] ", log.LstdFlags),
		sink:      telemetry.NoopSink{},
		clock:     time.Now,
		listeners: make(map[int]Listener),
		ready:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Selection returns the current selection, nil when absent. It never blocks
// on storage.
func (s *Store) Selection() *domain.Gym {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneGym(s.selected)
}

// Set replaces the selection. The change is visible to readers immediately;
// the durable write happens later and its failure is never reported here.
func (s *Store) Set(gym domain.Gym) {
	s.mutate(cloneGym(&gym))
}

// Clear removes the selection with the same persistence contract as Set.
func (s *Store) Clear() {
	s.mutate(nil)
}

// IsHydrated reports whether the one-time load has completed.
func (s *Store) IsHydrated() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// Phase returns the current life-cycle phase.
func (s *Store) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Ready is closed once the store is hydrated.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// WaitHydrated blocks until hydration completes or ctx is done.
func (s *Store) WaitHydrated(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartHydration runs Hydrate in the background.
func (s *Store) StartHydration(ctx context.Context) {
	go s.Hydrate(ctx)
}

// Hydrate loads the persisted selection. Only the first call reads storage;
// concurrent callers block until it settles. Missing, unreadable and
// malformed blobs all hydrate to an absent selection.
func (s *Store) Hydrate(ctx context.Context) {
	s.hydrateOnce.Do(func() { s.hydrate(ctx) })
}

func (s *Store) hydrate(ctx context.Context) {
	s.mu.Lock()
	s.phase = PhaseHydrating
	s.mu.Unlock()

	restored := s.load(ctx)

	s.mu.Lock()
	if !s.mutatedEarly {
		s.selected = restored
	}
	s.phase = PhaseHydrated
	if s.dirty {
		s.scheduleLocked()
	}
	current := cloneGym(s.selected)
	listeners := s.snapshotListenersLocked()
	s.mu.Unlock()

	close(s.ready)
	observability.RecordHydrated(s.clock())
	notify(listeners, current)
}

func (s *Store) load(ctx context.Context) *domain.Gym {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		s.logger.Printf("hydrate read failed, starting without selection: %v", err)
		s.sink.RecordError(err, map[string]string{"component": "selection", "op": "hydrate", "key": s.key})
		return nil
	}
	if !ok {
		return nil
	}

	gym, err := decode(raw)
	if err != nil {
		observability.RecordMalformedSelection()
		s.logger.Printf("discarding persisted selection: %v", err)
		return nil
	}
	return gym
}

func decode(raw []byte) (*domain.Gym, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &MalformedDataError{Err: err}
	}
	if env.Selection == nil {
		return nil, nil
	}
	if err := env.Selection.Validate(); err != nil {
		return nil, &MalformedDataError{Err: err}
	}
	return env.Selection, nil
}

func (s *Store) mutate(next *domain.Gym) {
	s.mu.Lock()
	s.selected = next
	if s.phase != PhaseHydrated {
		s.mutatedEarly = true
	}
	s.dirty = true
	if s.phase == PhaseHydrated {
		s.scheduleLocked()
	}
	current := cloneGym(s.selected)
	listeners := s.snapshotListenersLocked()
	s.mu.Unlock()

	notify(listeners, current)
}

// scheduleLocked arms the debounce timer. Callers hold s.mu.
func (s *Store) scheduleLocked() {
	if s.closed {
		return
	}
	if s.debounce <= 0 {
		go s.persistInBackground()
		return
	}
	if s.timer == nil {
		s.timer = time.AfterFunc(s.debounce, s.persistInBackground)
		return
	}
	s.timer.Reset(s.debounce)
}

func (s *Store) persistInBackground() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	_ = s.persist(ctx)
}

// persist writes the latest selection if a change is pending.
func (s *Store) persist(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	snapshot := envelope{Selection: cloneGym(s.selected)}
	s.dirty = false
	s.mu.Unlock()

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode selection: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, payload); err != nil {
		observability.RecordPersistFailure()
		s.logger.Printf("selection write-through dropped: %v", err)
		s.sink.RecordError(err, map[string]string{"component": "selection", "op": "persist", "key": s.key})
		return err
	}
	return nil
}

// Flush writes any pending change now, waiting for an in-progress hydration
// first. It returns the storage error, if any, for shutdown reporting.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	phase := s.phase
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	if phase == PhaseHydrating {
		if err := s.WaitHydrated(ctx); err != nil {
			return err
		}
	}
	return s.persist(ctx)
}

// Close stops scheduling writes and flushes the pending one.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	return s.Flush(ctx)
}

// Subscribe registers fn and returns a function removing it.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextListenerID
	s.nextListenerID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) snapshotListenersLocked() []Listener {
	if len(s.listeners) == 0 {
		return nil
	}
	out := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		out = append(out, fn)
	}
	return out
}

func notify(listeners []Listener, current *domain.Gym) {
	for _, fn := range listeners {
		fn(cloneGym(current))
	}
}

func cloneGym(g *domain.Gym) *domain.Gym {
	if g == nil {
		return nil
	}
	out := *g
	if g.Description != nil {
		desc := *g.Description
		out.Description = &desc
	}
	return &out
}
