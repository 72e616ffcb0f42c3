// Package location resolves the device position once, falling back to a
// fixed point when permission is refused or resolution fails.
package location

import (
	"context"
	"log"
	"sync"

	"example.com/blocus/internal/domain"
)

// ErrorMessage is reported when the position cannot be resolved.
const ErrorMessage = "Could not get location"

// Provider is the platform location capability.
type Provider interface {
	RequestPermission(ctx context.Context) (bool, error)
	CurrentPosition(ctx context.Context) (domain.Coordinates, error)
}

// State is the progression observed by screens. HasPermission is nil until
// the permission request settles.
type State struct {
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	IsLoading     bool    `json:"is_loading"`
	HasPermission *bool   `json:"has_permission"`
	Error         string  `json:"error,omitempty"`
}

// Loading returns the initial state positioned on fallback.
func Loading(fallback domain.Coordinates) State {
	return State{Latitude: fallback.Latitude, Longitude: fallback.Longitude, IsLoading: true}
}

// Resolve runs the one-shot resolution. Failures are folded into the
// returned State; no retries are attempted.
func Resolve(ctx context.Context, provider Provider, fallback domain.Coordinates) State {
	st := Loading(fallback)
	st.IsLoading = false

	granted, err := provider.RequestPermission(ctx)
	if err != nil {
		// A failed request is reported like a failed position lookup.
		st.HasPermission = boolPtr(true)
		st.Error = ErrorMessage
		return st
	}
	if !granted {
		st.HasPermission = boolPtr(false)
		return st
	}

	st.HasPermission = boolPtr(true)
	pos, err := provider.CurrentPosition(ctx)
	if err != nil {
		st.Error = ErrorMessage
		return st
	}
	st.Latitude = pos.Latitude
	st.Longitude = pos.Longitude
	return st
}

// Tracker runs Resolve in the background and exposes its progression.
type Tracker struct {
	mu      sync.RWMutex
	state   State
	stopped bool
	done    chan struct{}
}

// TrackerOption configures a Tracker.
type TrackerOption func(*trackerConfig)

type trackerConfig struct {
	logger *log.Logger
}

// WithLogger sets a custom logger.
func WithLogger(l *log.Logger) TrackerOption {
	return func(c *trackerConfig) { c.logger = l }
}

// Track starts resolving and returns immediately with a loading Tracker.
func Track(ctx context.Context, provider Provider, fallback domain.Coordinates, opts ...TrackerOption) *Tracker {
	cfg := trackerConfig{logger: log.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	t := &Tracker{state: Loading(fallback), done: make(chan struct{})}
	go func() {
		defer close(t.done)
		st := Resolve(ctx, provider, fallback)

		t.mu.Lock()
		defer t.mu.Unlock()
		if t.stopped {
			return
		}
		t.state = st
		if st.Error != "" {
			cfg.logger.Printf("location unresolved, using fallback (%.6f, %.6f)", fallback.Latitude, fallback.Longitude)
		}
	}()
	return t
}

// State returns the latest observed state.
func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st := t.state
	if st.HasPermission != nil {
		st.HasPermission = boolPtr(*st.HasPermission)
	}
	return st
}

// Done is closed once resolution settles, whether or not it was observed.
func (t *Tracker) Done() <-chan struct{} { return t.done }

// Stop stops observing. A resolution still in progress is discarded.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func boolPtr(v bool) *bool { return &v }
