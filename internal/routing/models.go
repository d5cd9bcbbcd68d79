// Package routing computes walking routes between an origin and a
// destination, optionally through detour waypoints.
package routing

import (
	"context"
	"errors"
	"time"

	"github.com/walkthrough/walkthrough/internal/geo"
)

// Sentinel errors for routing operations.
var (
	// ErrProviderUnavailable indicates the routing provider is down or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("routing provider unavailable")
	// ErrNoRouteFound indicates no valid route exists between the given points.
	ErrNoRouteFound = errors.New("no route found between the given points")
	// ErrRateLimitExceeded indicates the API quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidCoordinates indicates the provided coordinates are invalid or out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	// ErrMalformedResponse indicates the provider answered with a body that is not a usable route collection.
	ErrMalformedResponse = errors.New("malformed routing response")
	// ErrTimeout indicates the routing request exceeded its deadline.
	ErrTimeout = errors.New("routing request timed out")
)

// Provider defines the interface for routing providers.
type Provider interface {
	// Directions computes a route through the ordered request coordinates.
	Directions(ctx context.Context, req DirectionsRequest) (*FeatureCollection, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// RouteProfile represents a routing profile (mode of transport).
type RouteProfile string

// ProfileWalk is the foot-walking profile for pedestrian routing.
const ProfileWalk RouteProfile = "foot-walking"

// DefaultLanguage is the instruction language requested from the provider.
const DefaultLanguage = "fr"

// DirectionsRequest is the request sent to a provider.
type DirectionsRequest struct {
	// Coordinates are ordered: origin, waypoints, destination.
	Coordinates []geo.Coordinate
	Profile     RouteProfile
	Language    string
}

// FeatureCollection is the GeoJSON route response.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
	BBox     []float64 `json:"bbox,omitempty"`
}

// Feature is one candidate route.
type Feature struct {
	Type       string            `json:"type"`
	Geometry   LineString        `json:"geometry"`
	Properties FeatureProperties `json:"properties"`
}

// LineString holds [lon, lat] coordinate pairs.
type LineString struct {
	Type        string      `json:"type"`
	Coordinates [][]float64 `json:"coordinates"`
}

// FeatureProperties carries the route summary and instruction steps.
type FeatureProperties struct {
	Summary   Summary   `json:"summary"`
	Segments  []Segment `json:"segments"`
	WayPoints []int     `json:"way_points,omitempty"`
}

// Summary holds totals for a route or a segment.
type Summary struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
}

// Segment is the part of a route between two consecutive request coordinates.
type Segment struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
	Steps    []Step  `json:"steps"`
}

// Step is a single turn-by-turn instruction.
type Step struct {
	Distance    float64 `json:"distance"`
	Duration    float64 `json:"duration"`
	Type        int     `json:"type"`
	Instruction string  `json:"instruction"`
	Name        string  `json:"name,omitempty"`
	// WayPoints are [start, end] indices into the geometry coordinates.
	WayPoints []int `json:"way_points"`
}

// Outcome classifies a provider response.
type Outcome int

const (
	// OutcomeMalformed means features exist but the first one cannot be read.
	OutcomeMalformed Outcome = iota
	// OutcomeEmpty means the provider found no route.
	OutcomeEmpty
	// OutcomeRoutes means the first feature is a usable route.
	OutcomeRoutes
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRoutes:
		return "routes"
	case OutcomeEmpty:
		return "empty"
	default:
		return "malformed"
	}
}

// Outcome reports whether the collection holds a usable route.
func (fc *FeatureCollection) Outcome() Outcome {
	if fc == nil || len(fc.Features) == 0 {
		return OutcomeEmpty
	}
	coords := fc.Features[0].Geometry.Coordinates
	if len(coords) == 0 {
		return OutcomeEmpty
	}
	for _, pair := range coords {
		c, ok := geo.FromLonLat(pair)
		if !ok || c.Validate() != nil {
			return OutcomeMalformed
		}
	}
	return OutcomeRoutes
}

// Route is the first candidate route of a response, in display form.
type Route struct {
	Polyline        []geo.Coordinate
	DistanceMeters  float64
	DurationSeconds float64
}

// FirstRoute extracts the first candidate route.
func (fc *FeatureCollection) FirstRoute() (Route, error) {
	switch fc.Outcome() {
	case OutcomeEmpty:
		return Route{}, ErrNoRouteFound
	case OutcomeMalformed:
		return Route{}, ErrMalformedResponse
	}

	f := fc.Features[0]
	polyline := make([]geo.Coordinate, 0, len(f.Geometry.Coordinates))
	for _, pair := range f.Geometry.Coordinates {
		c, _ := geo.FromLonLat(pair)
		polyline = append(polyline, c)
	}

	return Route{
		Polyline:        polyline,
		DistanceMeters:  f.Properties.Summary.Distance,
		DurationSeconds: f.Properties.Summary.Duration,
	}, nil
}

// Result is a successfully computed route for one fingerprint.
type Result struct {
	Key             string
	Token           string
	Polyline        []geo.Coordinate
	DistanceMeters  float64
	DurationSeconds float64
	Response        *FeatureCollection
	CompletedAt     time.Time
}

// Failure reports an attempt that did not produce a route.
type Failure struct {
	Key   string
	Token string
	Err   error
	// Soft is set when the provider answered but found no route. The
	// fingerprint is then considered completed.
	Soft bool
}

// Error provides detailed error information from the routing provider.
type Error struct {
	Provider string // Provider that generated the error
	Code     string // Error code from the provider
	Message  string // Human-readable error message
	Err      error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient and the request can be retried.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}

// UserMessage returns a short message suitable for display.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoRouteFound):
		return "Aucun itinéraire trouvé."
	case errors.Is(err, ErrTimeout):
		return "Le calcul de l'itinéraire a pris trop de temps."
	case errors.Is(err, ErrRateLimitExceeded):
		return "Trop de demandes, réessayez dans un instant."
	default:
		return "Impossible de calculer l'itinéraire."
	}
}
