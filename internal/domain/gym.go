package domain

import (
	"context"
	"errors"
	"strings"
)

// Gym is a climbing gym row as returned by the remote directory. Values are
// never mutated by the client once received.
type Gym struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Address     string  `json:"address"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Description *string `json:"description"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// Coordinates is a point in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// FallbackCoordinates is used whenever the device position is unavailable.
var FallbackCoordinates = Coordinates{Latitude: 46.603354, Longitude: 1.888334}

// Position returns the gym's map coordinates.
func (g Gym) Position() Coordinates {
	return Coordinates{Latitude: g.Latitude, Longitude: g.Longitude}
}

// Validate reports whether the record carries the fields every screen relies on.
func (g Gym) Validate() error {
	if strings.TrimSpace(g.ID) == "" {
		return errors.New("gym id is required")
	}
	if strings.TrimSpace(g.Name) == "" {
		return errors.New("gym name is required")
	}
	if g.Latitude < -90 || g.Latitude > 90 {
		return errors.New("gym latitude out of range")
	}
	if g.Longitude < -180 || g.Longitude > 180 {
		return errors.New("gym longitude out of range")
	}
	return nil
}

// Directory exposes the remote gym catalogue. Implementations do not cache
// and do not retry.
type Directory interface {
	// ListGyms returns every gym ordered by name ascending. An empty catalogue
	// yields an empty, non-nil slice.
	ListGyms(ctx context.Context) ([]Gym, error)
	// GetGymByID returns a single gym. A missing row is a DirectoryError
	// wrapping ErrGymNotFound.
	GetGymByID(ctx context.Context, id string) (Gym, error)
}

// StringPtr is a convenience for optional text columns.
func StringPtr(v string) *string {
	return &v
}
