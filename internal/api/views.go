package api

import (
	"example.com/blocus/internal/cache"
	"example.com/blocus/internal/domain"
)

// Gym list screen statuses.
const (
	screenLoading = "loading"
	screenSuccess = "success"
	screenEmpty   = "empty"
	screenError   = "error"
)

// GymItem is a marker on the map with its callout text.
type GymItem struct {
	Gym            domain.Gym `json:"gym"`
	DisplayAddress string     `json:"display_address"`
	SelectLabel    string     `json:"select_label"`
	Selected       bool       `json:"selected"`
}

// EmptyView is rendered when the directory has no gyms.
type EmptyView struct {
	Title string `json:"title"`
}

// ErrorView is rendered once retries are exhausted.
type ErrorView struct {
	Title      string `json:"title"`
	Message    string `json:"message"`
	RetryLabel string `json:"retry_label"`
}

// GymsScreen is the gym map screen.
type GymsScreen struct {
	Status       string     `json:"status"`
	IsFetching   bool       `json:"is_fetching"`
	LoadingLabel string     `json:"loading_label,omitempty"`
	Items        []GymItem  `json:"items"`
	Empty        *EmptyView `json:"empty,omitempty"`
	Error        *ErrorView `json:"error,omitempty"`
	UpdatedAt    string     `json:"updated_at,omitempty"`
}

// HomeScreen is the header shown above the home screen.
type HomeScreen struct {
	Title       string      `json:"title"`
	ChangeLabel string      `json:"change_label"`
	Selection   *domain.Gym `json:"selection"`
}

// SelectionResponse wraps the current selection, null when absent.
type SelectionResponse struct {
	Selection *domain.Gym `json:"selection"`
}

func gymsScreen(st cache.State[[]domain.Gym], selected *domain.Gym) GymsScreen {
	screen := GymsScreen{IsFetching: st.IsFetching, Items: []GymItem{}}
	if !st.UpdatedAt.IsZero() {
		screen.UpdatedAt = st.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	if st.Err != nil {
		screen.Error = &ErrorView{
			Title:      domain.GymsErrorMessage,
			Message:    st.Err.Error(),
			RetryLabel: domain.RetryLabel,
		}
	}

	switch {
	case st.HasData && len(st.Data) == 0 && st.Err == nil:
		screen.Status = screenEmpty
		screen.Empty = &EmptyView{Title: domain.EmptyGymsTitle}
	case st.HasData:
		// A failed refetch keeps the previous list on screen.
		screen.Status = screenSuccess
		for _, gym := range st.Data {
			screen.Items = append(screen.Items, GymItem{
				Gym:            gym,
				DisplayAddress: domain.DisplayAddress(gym.Address),
				SelectLabel:    domain.SelectLabel,
				Selected:       selected != nil && selected.ID == gym.ID,
			})
		}
	case st.IsError():
		screen.Status = screenError
	default:
		screen.Status = screenLoading
		screen.LoadingLabel = domain.LoadingMapLabel
	}
	return screen
}
