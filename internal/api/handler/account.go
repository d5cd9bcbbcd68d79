package handler

import (
	"errors"
	"net/http"

	"github.com/walkthrough/walkthrough/internal/api/models"
	"github.com/walkthrough/walkthrough/internal/api/response"
)

// AccountHandler handles the endpoints writing to the walker's account.
type AccountHandler struct {
	trip Trip
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(t Trip) *AccountHandler {
	return &AccountHandler{trip: t}
}

// SaveFavorite handles POST /v1/favorites - save the displayed route.
func (h *AccountHandler) SaveFavorite(w http.ResponseWriter, r *http.Request) {
	route, err := h.trip.SaveFavorite(r.Context())
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Created(w, r, "", route)
}

// LogSteps handles POST /v1/steps. An empty body logs the default amount.
func (h *AccountHandler) LogSteps(w http.ResponseWriter, r *http.Request) {
	var req models.StepsRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	result, err := h.trip.LogSteps(r.Context(), req.Steps)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Updated {
		status = http.StatusOK
	}
	response.JSON(w, r, status, models.StepsResponse{
		StepsAdded: result.StepsAdded,
		Total:      result.Total,
		Updated:    result.Updated,
	})
}
