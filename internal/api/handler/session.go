package handler

import (
	"net/http"

	"github.com/walkthrough/walkthrough/internal/api/models"
	"github.com/walkthrough/walkthrough/internal/api/response"
)

// SessionHandler handles backend session endpoints.
type SessionHandler struct {
	trip Trip
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(t Trip) *SessionHandler {
	return &SessionHandler{trip: t}
}

// Attach handles PUT /v1/session - validate and attach a backend session.
func (h *SessionHandler) Attach(w http.ResponseWriter, r *http.Request) {
	var req models.SessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	var fieldErrors []models.FieldError
	if req.Token == "" {
		fieldErrors = append(fieldErrors, models.FieldError{Field: "token", Message: "required", Code: "REQUIRED"})
	}
	if req.UserID == "" {
		fieldErrors = append(fieldErrors, models.FieldError{Field: "userId", Message: "required", Code: "REQUIRED"})
	}
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "validation error", fieldErrors)
		return
	}

	user, err := h.trip.AttachSession(r.Context(), req.Token, req.UserID)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	resp := models.SessionResponse{UserID: req.UserID}
	if user != nil {
		resp.User = &models.SessionUser{
			ID:       int(user.ID),
			Username: user.Username,
			Email:    user.Email,
			Avatar:   user.Avatar,
			RankID:   int(user.RankID),
		}
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// Detach handles DELETE /v1/session.
func (h *SessionHandler) Detach(w http.ResponseWriter, r *http.Request) {
	h.trip.ClearSession()
	response.NoContent(w, r)
}
