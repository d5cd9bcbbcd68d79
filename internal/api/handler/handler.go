// Package handler provides the HTTP handlers of the local walk API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/walkthrough/walkthrough/internal/backend"
	"github.com/walkthrough/walkthrough/internal/estimate"
	"github.com/walkthrough/walkthrough/internal/favorites"
	"github.com/walkthrough/walkthrough/internal/geo"
	"github.com/walkthrough/walkthrough/internal/geocoding"
	"github.com/walkthrough/walkthrough/internal/routing"
	"github.com/walkthrough/walkthrough/internal/selection"
	"github.com/walkthrough/walkthrough/internal/trip"
)

// maxBodyBytes caps request bodies; every payload of this API is tiny.
const maxBodyBytes = 64 << 10

// Trip is the walk planning workflow. *trip.Planner implements it.
type Trip interface {
	AttachSession(ctx context.Context, token, userID string) (*backend.User, error)
	ClearSession()
	Plan(ctx context.Context, in trip.PlanInput) (*trip.PlanResult, error)
	SetOrigin(ctx context.Context, input string) (geo.Coordinate, error)
	SetDestination(ctx context.Context, input string) (geo.Coordinate, error)
	Landmarks() trip.LandmarksView
	TogglePOI(id int64) (selection.Snapshot, error)
	ConfirmPOI(id int64) (selection.Snapshot, error)
	ResetDetour() selection.Snapshot
	Preview(id int64) (estimate.QuickEstimate, error)
	Refresh() routing.Decision
	Route() trip.RouteView
	SaveFavorite(ctx context.Context) (*favorites.Route, error)
	LogSteps(ctx context.Context, steps int) (*backend.StepsResult, error)
}

// LocationReporter receives device positions from the UI shell.
// *geocoding.DeviceLocation implements it.
type LocationReporter interface {
	Report(f geocoding.Fix) error
}

var errEmptyBody = errors.New("empty body")

// decodeJSON decodes the request body into v. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

// landmarkID parses the {id} path parameter.
func landmarkID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
