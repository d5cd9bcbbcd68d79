// Package favorites turns a computed route into the segment chain the
// backend stores as a favorite route.
package favorites

import "errors"

// ErrNoSegments indicates the route response holds nothing that can be saved.
var ErrNoSegments = errors.New("no segments to save")

// Segment is one instruction step of a saved route.
type Segment struct {
	DistanceMeters  int     `json:"total_distance"`
	DurationMinutes int     `json:"duration"`
	Instruction     string  `json:"instruction"`
	NextSegment     int     `json:"next_segment"` // 1-based position of the next segment, 0 for the last one
	StartLat        float64 `json:"start_point_lat"`
	StartLon        float64 `json:"start_point_long"`
	EndLat          float64 `json:"end_point_lat"`
	EndLon          float64 `json:"end_point_long"`
}

// Address is a structured postal address. Missing values are empty or zero.
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	Number     int    `json:"number"`
	PostalCode int    `json:"postal_code"`
	Country    string `json:"country"`
}

// Route is the favorite route payload.
type Route struct {
	Segments     []Segment `json:"routes"`
	StartAddress Address   `json:"start_address"`
	EndAddress   Address   `json:"end_address"`
}
