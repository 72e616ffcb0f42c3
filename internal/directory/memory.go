package directory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"example.com/blocus/internal/domain"
)

// InMemoryDirectory serves gyms from memory for local development and tests.
type InMemoryDirectory struct {
	mu   sync.RWMutex
	gyms map[string]domain.Gym
	lang language.Tag
}

// NewInMemoryDirectory constructs an empty directory.
func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{gyms: make(map[string]domain.Gym), lang: language.French}
}

// NewSeededDirectory constructs a directory populated with a few Paris gyms.
func NewSeededDirectory() *InMemoryDirectory {
	dir := NewInMemoryDirectory()
	dir.seed()
	return dir
}

func (d *InMemoryDirectory) seed() {
	now := time.Now().UTC().Format(time.RFC3339)
	for _, gym := range []domain.Gym{
		{Name: "Arkose Nation", Address: "41 Rue de Lagny, 75020 Paris", Latitude: 48.8491, Longitude: 2.4055},
		{Name: "Bloc Session Paris", Address: "123 Rue de la Grimpe, 75011 Paris", Latitude: 48.8566, Longitude: 2.3522, Description: domain.StringPtr("Une super salle")},
		{Name: "Climb Up Porte d'Italie", Address: "105 Avenue de Fontainebleau, 94270 Le Kremlin-Bicêtre", Latitude: 48.8117, Longitude: 2.3597},
		{Name: "Éléphant Bloc", Address: "Rue des Pyrénées, 75020 Paris", Latitude: 48.8632, Longitude: 2.3999},
	} {
		gym.ID = uuid.NewString()
		gym.CreatedAt = now
		gym.UpdatedAt = now
		d.gyms[gym.ID] = gym
	}
}

// Upsert stores gym, assigning an id when missing.
func (d *InMemoryDirectory) Upsert(_ context.Context, gym domain.Gym) (domain.Gym, error) {
	if strings.TrimSpace(gym.Name) == "" {
		return domain.Gym{}, errors.New("name is required")
	}
	if strings.TrimSpace(gym.ID) == "" {
		gym.ID = uuid.NewString()
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if gym.CreatedAt == "" {
		gym.CreatedAt = now
	}
	gym.UpdatedAt = now

	d.mu.Lock()
	defer d.mu.Unlock()
	d.gyms[gym.ID] = gym
	return gym, nil
}

// Delete removes a gym.
func (d *InMemoryDirectory) Delete(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.gyms, id)
}

// ListGyms implements domain.Directory, ordering names with French collation.
func (d *InMemoryDirectory) ListGyms(ctx context.Context) ([]domain.Gym, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewDirectoryError("list", "", err)
	}
	d.mu.RLock()
	gyms := make([]domain.Gym, 0, len(d.gyms))
	for _, gym := range d.gyms {
		gyms = append(gyms, gym)
	}
	d.mu.RUnlock()

	col := collate.New(d.lang, collate.IgnoreCase)
	sort.SliceStable(gyms, func(i, j int) bool {
		if c := col.CompareString(gyms[i].Name, gyms[j].Name); c != 0 {
			return c < 0
		}
		return gyms[i].ID < gyms[j].ID
	})
	return gyms, nil
}

// GetGymByID implements domain.Directory.
func (d *InMemoryDirectory) GetGymByID(ctx context.Context, id string) (domain.Gym, error) {
	if err := ctx.Err(); err != nil {
		return domain.Gym{}, domain.NewDirectoryError("get", "", err)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	gym, ok := d.gyms[id]
	if !ok {
		return domain.Gym{}, domain.NewDirectoryError("get", "JSON object requested, multiple (or no) rows returned", domain.ErrGymNotFound)
	}
	return gym, nil
}

// Health always succeeds.
func (d *InMemoryDirectory) Health(context.Context) error {
	return nil
}
