// Package geocoding turns user input into coordinates and coordinates into
// postal addresses.
package geocoding

import (
	"context"
	"errors"

	"github.com/walkthrough/walkthrough/internal/geo"
)

// Sentinel errors for geocoding operations.
var (
	// ErrEmptyInput indicates there is no address to resolve and no fallback allowed.
	ErrEmptyInput = errors.New("empty address")
	// ErrNoMatch indicates the geocoder found nothing for the input.
	ErrNoMatch = errors.New("no geocoding match")
	// ErrInvalidLiteral indicates a "lat,lon" literal outside the valid range.
	ErrInvalidLiteral = errors.New("coordinate literal out of range")
	// ErrPermissionDenied indicates the device location permission was refused.
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrLocationUnavailable indicates the device position could not be obtained.
	ErrLocationUnavailable = errors.New("device location unavailable")
	// ErrProviderUnavailable indicates the geocoding service could not be reached.
	ErrProviderUnavailable = errors.New("geocoding provider unavailable")
)

// Geocoder is a forward and reverse geocoding service.
type Geocoder interface {
	// Search returns candidates for free-form text, best match first.
	Search(ctx context.Context, query string) ([]Candidate, error)
	// Reverse returns the postal address at a coordinate.
	Reverse(ctx context.Context, c geo.Coordinate) (*Address, error)
	// Name returns the provider identifier for logging.
	Name() string
}

// Candidate is one forward geocoding result.
type Candidate struct {
	Coordinate  geo.Coordinate
	DisplayName string
}

// Address is a postal address as text fields. Providers pick the best
// field for each value from their own locale-dependent shapes.
type Address struct {
	Street      string
	HouseNumber string
	City        string
	Postcode    string
	Country     string
}

// Error is a geocoding failure carrying the message shown to the user.
type Error struct {
	Op      string // "resolve", "search", "reverse", "locate"
	Input   string
	Message string // user-facing
	Err     error
}

func (e *Error) Error() string {
	msg := "geocoding " + e.Op
	if e.Input != "" {
		msg += " " + `"` + e.Input + `"`
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage returns the text to show the user.
func (e *Error) UserMessage() string {
	return e.Message
}

// UserMessage extracts the user-facing message of err, or a generic one.
func UserMessage(err error) string {
	var gerr *Error
	if errors.As(err, &gerr) && gerr.Message != "" {
		return gerr.Message
	}
	return msgGeocodingFailed
}

// User-facing messages.
const (
	msgEmptyInput       = "Adresse manquante."
	msgNoMatch          = "Aucune correspondance trouvée."
	msgInvalidLiteral   = "Coordonnées invalides."
	msgPermissionDenied = "Permission GPS refusée."
	msgLocationFailed   = "Localisation impossible."
	msgGeocodingFailed  = "Échec de la géolocalisation."
)
