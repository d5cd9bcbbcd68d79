package handler

import (
	"net/http"

	"github.com/walkthrough/walkthrough/internal/api/models"
	"github.com/walkthrough/walkthrough/internal/api/response"
	"github.com/walkthrough/walkthrough/internal/geo"
	"github.com/walkthrough/walkthrough/internal/geocoding"
)

// LocationHandler receives device positions.
type LocationHandler struct {
	location LocationReporter
}

// NewLocationHandler creates a new LocationHandler.
func NewLocationHandler(l LocationReporter) *LocationHandler {
	return &LocationHandler{location: l}
}

// Report handles POST /v1/device/location. A report with permissionGranted
// false records the refusal and needs no coordinates.
func (h *LocationHandler) Report(w http.ResponseWriter, r *http.Request) {
	var req models.LocationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	fix := geocoding.Fix{PermissionGranted: req.PermissionGranted}
	if req.PermissionGranted {
		var fieldErrors []models.FieldError
		if req.Lat == nil {
			fieldErrors = append(fieldErrors, models.FieldError{Field: "lat", Message: "required", Code: "REQUIRED"})
		}
		if req.Lon == nil {
			fieldErrors = append(fieldErrors, models.FieldError{Field: "lon", Message: "required", Code: "REQUIRED"})
		}
		if len(fieldErrors) > 0 {
			response.BadRequest(w, r, "validation error", fieldErrors)
			return
		}
		fix.Coordinate = geo.Coordinate{Lat: *req.Lat, Lon: *req.Lon}
	}

	if err := h.location.Report(fix); err != nil {
		response.BadRequest(w, r, err.Error(), []models.FieldError{
			{Field: "lat", Message: "must be between -90 and 90", Code: "OUT_OF_RANGE"},
			{Field: "lon", Message: "must be between -180 and 180", Code: "OUT_OF_RANGE"},
		})
		return
	}
	response.NoContent(w, r)
}
