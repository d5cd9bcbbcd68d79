package models

import (
	"github.com/walkthrough/walkthrough/internal/estimate"
	"github.com/walkthrough/walkthrough/internal/geo"
)

// SessionRequest attaches a backend session.
type SessionRequest struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

// SessionResponse confirms an attached session. User is absent when no
// profile could be loaded.
type SessionResponse struct {
	UserID string       `json:"userId"`
	User   *SessionUser `json:"user,omitempty"`
}

// SessionUser is the profile returned when a session is attached.
type SessionUser struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	RankID   int    `json:"rankId,omitempty"`
}

// LocationRequest is a device position reported by the UI shell.
type LocationRequest struct {
	Lat               *float64 `json:"lat"`
	Lon               *float64 `json:"lon"`
	PermissionGranted bool     `json:"permissionGranted"`
}

// AddressRequest sets one endpoint of the walk.
type AddressRequest struct {
	Address string `json:"address"`
}

// EndpointResponse is a resolved walk endpoint.
type EndpointResponse struct {
	Coordinate geo.Coordinate `json:"coordinate"`
}

// PreviewResponse is the quick estimate of a landmark detour.
type PreviewResponse struct {
	LandmarkID int64                  `json:"landmarkId"`
	Estimate   estimate.QuickEstimate `json:"estimate"`
}

// RefreshResponse reports what a manual refresh did.
type RefreshResponse struct {
	Decision string `json:"decision"`
}

// StepsRequest adds steps to today's log. Zero or absent uses the default amount.
type StepsRequest struct {
	Steps int `json:"steps"`
}

// StepsResponse is the outcome of a steps log call.
type StepsResponse struct {
	StepsAdded int  `json:"stepsAdded"`
	Total      int  `json:"total"`
	Updated    bool `json:"updated"`
}
