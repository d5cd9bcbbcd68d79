package handler

import (
	"context"
	"net/http"

	"github.com/walkthrough/walkthrough/internal/api/models"
	"github.com/walkthrough/walkthrough/internal/api/response"
	"github.com/walkthrough/walkthrough/internal/geo"
	"github.com/walkthrough/walkthrough/internal/routing"
	"github.com/walkthrough/walkthrough/internal/trip"
)

// TripHandler handles the walk planning endpoints.
type TripHandler struct {
	trip Trip
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(t Trip) *TripHandler {
	return &TripHandler{trip: t}
}

// Plan handles POST /v1/trip/plan - resolve both ends and fetch detours.
func (h *TripHandler) Plan(w http.ResponseWriter, r *http.Request) {
	var in trip.PlanInput
	if err := decodeJSON(w, r, &in); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	result, err := h.trip.Plan(r.Context(), in)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, result)
}

// SetOrigin handles PUT /v1/trip/origin.
func (h *TripHandler) SetOrigin(w http.ResponseWriter, r *http.Request) {
	h.setEndpoint(w, r, h.trip.SetOrigin)
}

// SetDestination handles PUT /v1/trip/destination.
func (h *TripHandler) SetDestination(w http.ResponseWriter, r *http.Request) {
	h.setEndpoint(w, r, h.trip.SetDestination)
}

func (h *TripHandler) setEndpoint(w http.ResponseWriter, r *http.Request, set func(ctx context.Context, input string) (geo.Coordinate, error)) {
	var req models.AddressRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	c, err := set(r.Context(), req.Address)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.EndpointResponse{Coordinate: c})
}

// Landmarks handles GET /v1/trip/landmarks.
func (h *TripHandler) Landmarks(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.trip.Landmarks())
}

// Preview handles GET /v1/trip/landmarks/{id}/preview - quick detour estimate.
func (h *TripHandler) Preview(w http.ResponseWriter, r *http.Request) {
	id, ok := landmarkID(r)
	if !ok {
		response.BadRequest(w, r, "landmark id must be an integer", nil)
		return
	}

	est, err := h.trip.Preview(id)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.PreviewResponse{LandmarkID: id, Estimate: est})
}

// Toggle handles POST /v1/trip/landmarks/{id}/toggle.
func (h *TripHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, ok := landmarkID(r)
	if !ok {
		response.BadRequest(w, r, "landmark id must be an integer", nil)
		return
	}

	snap, err := h.trip.TogglePOI(id)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, snap)
}

// Confirm handles POST /v1/trip/landmarks/{id}/confirm. Confirming the
// landmark already selected changes nothing.
func (h *TripHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, ok := landmarkID(r)
	if !ok {
		response.BadRequest(w, r, "landmark id must be an integer", nil)
		return
	}

	snap, err := h.trip.ConfirmPOI(id)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, snap)
}

// ResetDetour handles DELETE /v1/trip/detour.
func (h *TripHandler) ResetDetour(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.trip.ResetDetour())
}

// Route handles GET /v1/trip/route.
func (h *TripHandler) Route(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.trip.Route())
}

// Refresh handles POST /v1/trip/route/refresh - recompute the current route.
func (h *TripHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	decision := h.trip.Refresh()
	if decision == routing.DecisionNoInput {
		response.Conflict(w, r, "Veuillez d'abord choisir un départ et une destination.")
		return
	}
	response.Accepted(w, r, "/v1/trip/route", models.RefreshResponse{Decision: decision.String()})
}
