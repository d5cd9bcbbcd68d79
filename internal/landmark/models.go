// Package landmark holds the points of interest proposed by the backend as detours.
package landmark

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/walkthrough/walkthrough/internal/geo"
)

// Repository errors.
var (
	ErrLandmarkNotFound = errors.New("landmark not found")
)

// Landmark is a point of interest returned by the backend.
type Landmark struct {
	ID          int64    `json:"id"`
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	Lat         float64  `json:"latitude"`
	Lon         float64  `json:"longitude"`
	LengthM     *float64 `json:"length_m,omitempty"`
	ErrM        *float64 `json:"err_m,omitempty"`
}

// Coordinate returns the landmark position.
func (l Landmark) Coordinate() geo.Coordinate {
	return geo.Coordinate{Lat: l.Lat, Lon: l.Lon}
}

// wireLandmark accepts the shapes the backend has been seen to send:
// numbers or numeric strings, and "label" or "name".
type wireLandmark struct {
	ID          flexNumber  `json:"id"`
	Label       string      `json:"label"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Latitude    flexNumber  `json:"latitude"`
	Longitude   flexNumber  `json:"longitude"`
	LengthM     *flexNumber `json:"length_m"`
	ErrM        *flexNumber `json:"err_m"`
}

// UnmarshalJSON decodes a landmark tolerantly.
func (l *Landmark) UnmarshalJSON(data []byte) error {
	var w wireLandmark
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	label := w.Label
	if label == "" {
		label = w.Name
	}

	*l = Landmark{
		ID:          int64(w.ID),
		Label:       label,
		Description: w.Description,
		Lat:         float64(w.Latitude),
		Lon:         float64(w.Longitude),
	}
	if w.LengthM != nil {
		v := float64(*w.LengthM)
		l.LengthM = &v
	}
	if w.ErrM != nil {
		v := float64(*w.ErrM)
		l.ErrM = &v
	}
	return nil
}

// flexNumber decodes a JSON number or a string holding a number.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*n = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q: %w", s, err)
		}
		*n = flexNumber(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = flexNumber(v)
	return nil
}
