package domain

// Copy shown by the client screens.
const (
	EmptyGymsTitle   = "Aucune salle"
	GymsErrorMessage = "Impossible de charger les salles"
	ErrorTitle       = "Une erreur est survenue"
	RetryLabel       = "Réessayer"
	SelectLabel      = "Selectionner"
	ChangeGymLabel   = "Changer"
	LoadingMapLabel  = "Chargement de la carte..."
)

// MaxDisplayAddress is the longest address rendered in a map callout.
const MaxDisplayAddress = 40

// DisplayAddress shortens long addresses for map callouts.
func DisplayAddress(address string) string {
	runes := []rune(address)
	if len(runes) <= MaxDisplayAddress {
		return address
	}
	return string(runes[:MaxDisplayAddress]) + "..."
}

// HeaderName is the title shown above the home screen.
func HeaderName(selected *Gym) string {
	if selected == nil {
		return EmptyGymsTitle
	}
	return selected.Name
}
