package trip

import (
	"errors"

	"github.com/walkthrough/walkthrough/internal/backend"
	"github.com/walkthrough/walkthrough/internal/favorites"
	"github.com/walkthrough/walkthrough/internal/geocoding"
	"github.com/walkthrough/walkthrough/internal/routing"
	"github.com/walkthrough/walkthrough/internal/session"
)

// UserMessage returns the text shown to the walker for an error returned
// by the planner.
func UserMessage(err error) string {
	var (
		gerr *geocoding.Error
		berr *backend.Error
	)

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidSteps):
		return "Veuillez indiquer un nombre de pas valide."
	case errors.Is(err, ErrEmptyDestination):
		return "Veuillez indiquer une adresse de destination."
	case errors.Is(err, ErrNoSession), errors.Is(err, session.ErrInvalid):
		return "Session invalide, veuillez vous connecter."
	case errors.Is(err, session.ErrExpired):
		return "Session expirée, veuillez vous reconnecter."
	case errors.Is(err, ErrLandmarkNotFound):
		return "Point d'intérêt inconnu."
	case errors.Is(err, ErrNoLandmarkPreview):
		return "Aucune estimation disponible pour ce point d'intérêt."
	case errors.Is(err, favorites.ErrNoSegments):
		return "Impossible d'extraire les segments."
	case errors.As(err, &gerr):
		return geocoding.UserMessage(gerr)
	case errors.As(err, &berr):
		return berr.UserMessage()
	case errors.Is(err, backend.ErrUnavailable):
		return "Serveur injoignable, réessayez plus tard."
	default:
		return routing.UserMessage(err)
	}
}
