// Package api exposes the client screens over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/blocus/internal/cache"
	"example.com/blocus/internal/domain"
	"example.com/blocus/internal/location"
)

// GymList is the observed gym list query.
type GymList interface {
	State() cache.State[[]domain.Gym]
	Revalidate()
	Refetch(ctx context.Context) ([]domain.Gym, error)
}

// SelectionStore is the persisted current-gym selection.
type SelectionStore interface {
	Selection() *domain.Gym
	Set(gym domain.Gym)
	Clear()
	IsHydrated() bool
	WaitHydrated(ctx context.Context) error
}

// LocationSource reports the tracked device position.
type LocationSource interface {
	State() location.State
}

// HealthChecker probes a dependency for readiness.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Dependencies wires the handler to its collaborators.
type Dependencies struct {
	Gyms      GymList
	Directory domain.Directory
	Selection SelectionStore
	Location  LocationSource
	// Health is optional.
	Health HealthChecker
}

// Option configures handler behaviour.
type Option func(*Handler)

// WithLogger sets a custom logger.
func WithLogger(l *log.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithMetrics toggles the /metrics route.
func WithMetrics(enabled bool) Option {
	return func(h *Handler) { h.metrics = enabled }
}

// Handler handles HTTP interactions.
type Handler struct {
	deps    Dependencies
	logger  *log.Logger
	metrics bool
}

// NewHandler constructs Handler.
func NewHandler(deps Dependencies, opts ...Option) *Handler {
	h := &Handler{deps: deps, logger: log.Default(), metrics: true}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router returns a router with every route registered.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes sets up routes.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.Methods(http.MethodGet).Path("/v1/gyms").HandlerFunc(h.listGyms)
	r.Methods(http.MethodPost).Path("/v1/gyms/refetch").HandlerFunc(h.refetchGyms)
	r.Methods(http.MethodGet).Path("/v1/gyms/{id}").HandlerFunc(h.gymByID)

	r.Methods(http.MethodGet).Path("/v1/selection").HandlerFunc(h.hydrated(h.getSelection))
	r.Methods(http.MethodPut).Path("/v1/selection").HandlerFunc(h.hydrated(h.putSelection))
	r.Methods(http.MethodDelete).Path("/v1/selection").HandlerFunc(h.hydrated(h.deleteSelection))
	r.Methods(http.MethodGet).Path("/v1/home").HandlerFunc(h.hydrated(h.home))

	r.Methods(http.MethodGet).Path("/v1/location").HandlerFunc(h.location)

	r.Methods(http.MethodGet).Path("/healthz").HandlerFunc(healthz)
	r.Methods(http.MethodGet).Path("/readyz").HandlerFunc(h.readyz)
	if h.metrics {
		r.Methods(http.MethodGet).Path("/metrics").Handler(promhttp.Handler())
	}
}

// healthz returns an OK response for liveness probes.
func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if !h.deps.Selection.IsHydrated() {
		writeError(w, http.StatusServiceUnavailable, "not_ready", "selection not hydrated")
		return
	}
	if h.deps.Health != nil {
		if err := h.deps.Health.Health(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "directory_unavailable", err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// hydrated blocks a selection-reading route until the store is hydrated.
func (h *Handler) hydrated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.deps.Selection.WaitHydrated(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "not_ready", "selection not hydrated")
			return
		}
		next(w, r)
	}
}

func (h *Handler) listGyms(w http.ResponseWriter, _ *http.Request) {
	h.deps.Gyms.Revalidate()
	writeJSON(w, http.StatusOK, gymsScreen(h.deps.Gyms.State(), h.currentSelection()))
}

func (h *Handler) refetchGyms(w http.ResponseWriter, r *http.Request) {
	if _, err := h.deps.Gyms.Refetch(r.Context()); err != nil {
		h.logger.Printf("gym list refetch failed: %v", err)
	}
	writeJSON(w, http.StatusOK, gymsScreen(h.deps.Gyms.State(), h.currentSelection()))
}

func (h *Handler) gymByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing gym id")
		return
	}

	gym, err := h.deps.Directory.GetGymByID(r.Context(), id)
	if err != nil {
		writeDirectoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"gym":             gym,
		"display_address": domain.DisplayAddress(gym.Address),
	})
}

func (h *Handler) getSelection(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, SelectionResponse{Selection: h.deps.Selection.Selection()})
}

func (h *Handler) putSelection(w http.ResponseWriter, r *http.Request) {
	var req domain.Gym
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "id is required")
		return
	}

	gym := req
	if strings.TrimSpace(req.Name) == "" {
		resolved, err := h.resolveGym(r.Context(), req.ID)
		if err != nil {
			writeDirectoryError(w, err)
			return
		}
		gym = resolved
	}
	if err := gym.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	h.deps.Selection.Set(gym)
	writeJSON(w, http.StatusOK, SelectionResponse{Selection: h.deps.Selection.Selection()})
}

func (h *Handler) deleteSelection(w http.ResponseWriter, _ *http.Request) {
	h.deps.Selection.Clear()
	writeJSON(w, http.StatusOK, SelectionResponse{})
}

func (h *Handler) home(w http.ResponseWriter, _ *http.Request) {
	selected := h.deps.Selection.Selection()
	writeJSON(w, http.StatusOK, HomeScreen{
		Title:       domain.HeaderName(selected),
		ChangeLabel: domain.ChangeGymLabel,
		Selection:   selected,
	})
}

func (h *Handler) location(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Location.State())
}

// resolveGym prefers the cached list and falls back to the directory.
func (h *Handler) resolveGym(ctx context.Context, id string) (domain.Gym, error) {
	if st := h.deps.Gyms.State(); st.HasData {
		for _, gym := range st.Data {
			if gym.ID == id {
				return gym, nil
			}
		}
	}
	return h.deps.Directory.GetGymByID(ctx, id)
}

// currentSelection returns nil until hydration completes rather than waiting.
func (h *Handler) currentSelection() *domain.Gym {
	if !h.deps.Selection.IsHydrated() {
		return nil
	}
	return h.deps.Selection.Selection()
}

func writeDirectoryError(w http.ResponseWriter, err error) {
	if domain.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "not_found", "gym not found")
		return
	}
	var dirErr *domain.DirectoryError
	if errors.As(err, &dirErr) {
		writeError(w, http.StatusBadGateway, "directory_error", dirErr.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "server_error", err.Error())
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]string{"type": code, "detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
