// Package trip is the walk planning workflow: it resolves the endpoints,
// fetches the landmark detours, feeds the route coordinator and exposes the
// resulting route to the UI.
package trip

import (
	"context"
	"errors"
	"time"

	"github.com/walkthrough/walkthrough/internal/backend"
	"github.com/walkthrough/walkthrough/internal/estimate"
	"github.com/walkthrough/walkthrough/internal/favorites"
	"github.com/walkthrough/walkthrough/internal/geo"
	"github.com/walkthrough/walkthrough/internal/landmark"
	"github.com/walkthrough/walkthrough/internal/routing"
	"github.com/walkthrough/walkthrough/internal/selection"
	"github.com/walkthrough/walkthrough/internal/session"
)

// Planner errors.
var (
	ErrInvalidSteps      = errors.New("steps must be a positive integer")
	ErrEmptyDestination  = errors.New("destination is required")
	ErrNoSession         = errors.New("no session attached")
	ErrLandmarkNotFound  = landmark.ErrLandmarkNotFound
	ErrNoLandmarkPreview = errors.New("landmark has no length estimate")
)

// Resolver turns user input into a coordinate.
type Resolver interface {
	Resolve(ctx context.Context, input string, allowGPSFallback bool) (geo.Coordinate, error)
}

// LandmarkFinder suggests detours for a walk.
type LandmarkFinder interface {
	BestLandmarks(ctx context.Context, sess session.Session, q backend.LandmarkQuery) ([]landmark.Landmark, error)
}

// FavoriteSaver stores a computed route as a favorite.
type FavoriteSaver interface {
	Save(ctx context.Context, sess session.Session, result routing.Result) (*favorites.Route, error)
}

// StepLogger adds steps to the daily log.
type StepLogger interface {
	LogSteps(ctx context.Context, sess session.Session, steps int) (*backend.StepsResult, error)
}

// UserFetcher loads the profile of a session user.
type UserFetcher interface {
	GetUser(ctx context.Context, sess session.Session) (*backend.User, error)
}

// PlanInput is the walk setup entered by the user.
type PlanInput struct {
	// Steps is the target step count as typed by the user.
	Steps string `json:"steps"`
	// Start is an address, a "lat,lon" literal, or empty for the device position.
	Start string `json:"start"`
	// Destination is an address or a "lat,lon" literal.
	Destination string `json:"destination"`
}

// PlanResult is the committed walk setup.
type PlanResult struct {
	Origin         geo.Coordinate      `json:"origin"`
	Destination    geo.Coordinate      `json:"destination"`
	DistanceMeters int                 `json:"distanceMeters"`
	Landmarks      []landmark.Landmark `json:"landmarks"`
}

// LandmarksView lists the candidate detours and the current selection.
type LandmarksView struct {
	Landmarks []landmark.Landmark `json:"landmarks"`
	Selection selection.Snapshot  `json:"selection"`
}

// Status is the state of the displayed route.
type Status string

// Route statuses.
const (
	StatusIdle    Status = "idle"
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// RouteView is the route as shown to the walker.
type RouteView struct {
	Status          Status            `json:"status"`
	Key             string            `json:"key,omitempty"`
	Origin          *geo.Coordinate   `json:"origin,omitempty"`
	Destination     *geo.Coordinate   `json:"destination,omitempty"`
	Waypoints       []geo.Coordinate  `json:"waypoints"`
	Polyline        []geo.Coordinate  `json:"polyline,omitempty"`
	EncodedPolyline string            `json:"encodedPolyline,omitempty"`
	Estimate        *estimate.Precise `json:"estimate,omitempty"`
	// Message is the user-facing reason of the last failure.
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}
