// Package response provides utilities for HTTP response handling.
package response

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/walkthrough/walkthrough/internal/api/middleware"
	"github.com/walkthrough/walkthrough/internal/api/models"
	"github.com/walkthrough/walkthrough/internal/backend"
	"github.com/walkthrough/walkthrough/internal/favorites"
	"github.com/walkthrough/walkthrough/internal/geo"
	"github.com/walkthrough/walkthrough/internal/geocoding"
	"github.com/walkthrough/walkthrough/internal/provider/resilience"
	"github.com/walkthrough/walkthrough/internal/routing"
	"github.com/walkthrough/walkthrough/internal/session"
	"github.com/walkthrough/walkthrough/internal/trip"
)

// JSON writes a JSON response with the given status code.
// Includes X-Request-Id header for correlation.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	requestID := middleware.GetRequestID(r.Context())
	if requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error writes a Problem+JSON error response.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// BadRequest writes a 400 Bad Request error response.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	traceID := middleware.GetRequestID(r.Context())
	problem := models.NewBadRequest(traceID, detail, errors)
	Error(w, r, problem)
}

// Unauthorized writes a 401 Unauthorized error response.
func Unauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	traceID := middleware.GetRequestID(r.Context())
	problem := models.NewUnauthorized(traceID, detail)
	Error(w, r, problem)
}

// NotFound writes a 404 Not Found error response.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	traceID := middleware.GetRequestID(r.Context())
	problem := models.NewNotFound(traceID, detail)
	Error(w, r, problem)
}

// Conflict writes a 409 Conflict error response.
func Conflict(w http.ResponseWriter, r *http.Request, detail string) {
	traceID := middleware.GetRequestID(r.Context())
	problem := models.NewConflict(traceID, detail)
	Error(w, r, problem)
}

// Unprocessable writes a 422 Unprocessable Entity error response.
func Unprocessable(w http.ResponseWriter, r *http.Request, detail string) {
	traceID := middleware.GetRequestID(r.Context())
	problem := models.NewUnprocessable(traceID, detail)
	Error(w, r, problem)
}

// RateLimitInfo contains rate limit information for 429 responses.
type RateLimitInfo struct {
	// Limit is the maximum number of requests allowed in the window.
	Limit int
	// Remaining is the number of requests remaining in the current window.
	Remaining int
	// ResetAt is the Unix timestamp when the rate limit window resets.
	ResetAt int64
	// RetryAfter is the number of seconds until the client should retry.
	RetryAfter int
}

// TooManyRequests writes a 429 Too Many Requests error response.
func TooManyRequests(w http.ResponseWriter, r *http.Request, detail string) {
	TooManyRequestsWithInfo(w, r, detail, nil)
}

// TooManyRequestsWithInfo writes a 429 Too Many Requests error response with rate limit headers.
func TooManyRequestsWithInfo(w http.ResponseWriter, r *http.Request, detail string, info *RateLimitInfo) {
	if info != nil {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt, 10))
		if info.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(info.RetryAfter))
		}
	}
	traceID := middleware.GetRequestID(r.Context())
	problem := models.NewTooManyRequests(traceID, detail)
	Error(w, r, problem)
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	traceID := middleware.GetRequestID(r.Context())
	problem := models.NewInternalError(traceID, detail)
	Error(w, r, problem)
}

// ServiceUnavailable writes a 503 Service Unavailable error response.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	traceID := middleware.GetRequestID(r.Context())
	problem := models.NewServiceUnavailable(traceID, detail)
	Error(w, r, problem)
}

// Created writes a 201 Created response with Location header.
// Includes X-Request-Id header for correlation.
func Created(w http.ResponseWriter, r *http.Request, location string, data interface{}) {
	requestID := middleware.GetRequestID(r.Context())
	if requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.Header().Set("Content-Type", "application/json")
	if location != "" {
		w.Header().Set("Location", location)
	}
	w.WriteHeader(http.StatusCreated)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// NoContent writes a 204 No Content response.
// Includes X-Request-Id header for correlation.
func NoContent(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	if requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Accepted writes a 202 Accepted response with Location header.
// Includes X-Request-Id header for correlation.
func Accepted(w http.ResponseWriter, r *http.Request, location string, data interface{}) {
	requestID := middleware.GetRequestID(r.Context())
	if requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.Header().Set("Content-Type", "application/json")
	if location != "" {
		w.Header().Set("Location", location)
	}
	w.WriteHeader(http.StatusAccepted)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// FromError maps a workflow error to its problem response. The detail is
// the message shown to the walker.
func FromError(w http.ResponseWriter, r *http.Request, err error) {
	traceID := middleware.GetRequestID(r.Context())
	detail := trip.UserMessage(err)

	var problem *models.Problem
	switch {
	case errors.Is(err, trip.ErrInvalidSteps),
		errors.Is(err, trip.ErrEmptyDestination),
		errors.Is(err, geocoding.ErrEmptyInput),
		errors.Is(err, geocoding.ErrInvalidLiteral),
		errors.Is(err, geo.ErrOutOfRange),
		errors.Is(err, routing.ErrInvalidCoordinates):
		problem = models.NewBadRequest(traceID, detail, nil)
	case errors.Is(err, trip.ErrNoSession),
		errors.Is(err, session.ErrInvalid),
		errors.Is(err, session.ErrExpired):
		problem = models.NewUnauthorized(traceID, detail)
	case errors.Is(err, trip.ErrLandmarkNotFound),
		errors.Is(err, trip.ErrNoLandmarkPreview):
		problem = models.NewNotFound(traceID, detail)
	case errors.Is(err, favorites.ErrNoSegments):
		problem = models.NewConflict(traceID, detail)
	case errors.Is(err, geocoding.ErrNoMatch),
		errors.Is(err, geocoding.ErrPermissionDenied),
		errors.Is(err, geocoding.ErrLocationUnavailable),
		errors.Is(err, routing.ErrNoRouteFound):
		problem = models.NewUnprocessable(traceID, detail)
	case errors.Is(err, routing.ErrRateLimitExceeded):
		problem = models.NewTooManyRequests(traceID, detail)
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, routing.ErrTimeout):
		problem = models.NewGatewayTimeout(traceID, detail)
	case errors.Is(err, backend.ErrRejected),
		errors.Is(err, routing.ErrMalformedResponse):
		problem = models.NewBadGateway(traceID, detail)
	case errors.Is(err, backend.ErrUnavailable),
		errors.Is(err, geocoding.ErrProviderUnavailable),
		errors.Is(err, routing.ErrProviderUnavailable),
		errors.Is(err, resilience.ErrCircuitOpen):
		problem = models.NewServiceUnavailable(traceID, detail)
	default:
		problem = models.NewInternalError(traceID, "internal error")
	}
	Error(w, r, problem)
}
