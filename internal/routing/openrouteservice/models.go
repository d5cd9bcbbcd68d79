package openrouteservice

import "encoding/json"

// orsRequest represents the ORS directions API request body.
type orsRequest struct {
	Coordinates  [][]float64 `json:"coordinates"`
	Instructions bool        `json:"instructions"`
	Language     string      `json:"language"`
	Units        string      `json:"units"`
	Elevation    bool        `json:"elevation"`
}

// orsErrorResponse represents an error response from ORS.
type orsErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Info json.RawMessage `json:"info,omitempty"`
}

// ORS error codes for error mapping.
const (
	orsErrorCodePointNotFound = 2010 // Could not find routable point near a coordinate
	orsErrorCodeNotFound      = 2009 // Route not found
)
