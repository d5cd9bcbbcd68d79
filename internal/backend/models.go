// Package backend is the client of the walkthrough backend API: landmark
// suggestions, favorite routes, the daily step log and user profiles.
package backend

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/walkthrough/walkthrough/internal/geo"
	"github.com/walkthrough/walkthrough/internal/session"
)

// Backend errors.
var (
	// ErrUnavailable indicates the backend could not be reached.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrRejected indicates the backend answered with a non-success status.
	ErrRejected = errors.New("backend rejected request")
)

// Default request values used by the landmark search.
const (
	DefaultLandmarkLimit = 3
	DefaultStepsAmount   = 2500
)

// Error is a non-success backend response. Message holds the response body
// text, which the backend uses as its error message.
type Error struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
}

// Unwrap maps authentication failures to session.ErrExpired. The backend
// reports a missing or dead token either with 401 or with a "nojwt" body.
func (e *Error) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized || strings.Contains(strings.ToLower(e.Message), "nojwt") {
		return session.ErrExpired
	}
	return ErrRejected
}

// UserMessage returns the text shown to the user.
func (e *Error) UserMessage() string {
	if errors.Is(e, session.ErrExpired) {
		return "Session expirée, veuillez vous reconnecter."
	}
	if e.Message != "" {
		return e.Message
	}
	return "Erreur API"
}

// LandmarkQuery asks the backend for detours between two points.
type LandmarkQuery struct {
	Origin      geo.Coordinate
	Destination geo.Coordinate
	// DistanceMeters is the walking distance the user wants to cover.
	DistanceMeters int
	// Limit caps the number of suggestions (default: DefaultLandmarkLimit).
	Limit int
}

type landmarkRequest struct {
	LongDep   float64 `json:"addressLongDep"`
	LatDep    float64 `json:"addressLatDep"`
	LongArr   float64 `json:"addressLongArr"`
	LatArr    float64 `json:"addressLatArr"`
	Distance  int     `json:"distance"`
	Tolerance int     `json:"tolerance"`
	Limit     int     `json:"limit"`
}

// StepsLog is one daily step log entry.
type StepsLog struct {
	UserID         any    `json:"id,omitempty"`
	LogDate        string `json:"log_date"`
	DistanceWalked int    `json:"distance_walked"`
}

// StepsResult reports what LogSteps did.
type StepsResult struct {
	StepsAdded int
	// Total is the day total after the update.
	Total int
	// Updated is true when an existing entry for the day was patched.
	Updated bool
}

// User is the backend user profile.
type User struct {
	ID       FlexInt `json:"id"`
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Avatar   string  `json:"avatar,omitempty"`
	RankID   FlexInt `json:"rank_id,omitempty"`
}
