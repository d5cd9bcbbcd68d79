// Package geo provides the geographic value types shared by the walkthrough packages.
package geo

import (
	"errors"
	"fmt"
	"math"
)

// ErrOutOfRange indicates a latitude or longitude outside the valid WGS84 range.
var ErrOutOfRange = errors.New("coordinate out of range")

// KeyPrecision is the number of decimals kept when coordinates are compared.
// Six decimals is roughly 0.11 m at the equator.
const KeyPrecision = 6

const earthRadiusMeters = 6371000

// Coordinate represents a geographic point.
type Coordinate struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// Validate checks that the coordinate is within valid ranges.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %f not in [-90, 90]", ErrOutOfRange, c.Lat)
	}
	if math.IsNaN(c.Lon) || c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("%w: longitude %f not in [-180, 180]", ErrOutOfRange, c.Lon)
	}
	return nil
}

// Rounded returns the coordinate quantized to KeyPrecision decimals.
func (c Coordinate) Rounded() Coordinate {
	return Coordinate{Lat: Round(c.Lat, KeyPrecision), Lon: Round(c.Lon, KeyPrecision)}
}

// LonLat returns the coordinate as a GeoJSON position ([lon, lat]).
func (c Coordinate) LonLat() []float64 {
	return []float64{c.Lon, c.Lat}
}

// FromLonLat converts a GeoJSON position into a Coordinate.
// The second return value is false when the position has fewer than two values.
func FromLonLat(pos []float64) (Coordinate, bool) {
	if len(pos) < 2 {
		return Coordinate{}, false
	}
	return Coordinate{Lat: pos[1], Lon: pos[0]}, true
}

// String formats the coordinate as "lat,lon".
func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

// Round rounds v to the given number of decimals, half away from zero.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	r := math.Round(v*p) / p
	if r == 0 {
		// normalize -0 so it serializes like 0
		return 0
	}
	return r
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinDLat := math.Sin(dLat / 2)
	sinDLon := math.Sin(dLon / 2)

	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLon*sinDLon
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// PathLength returns the length of a path in meters.
func PathLength(path []Coordinate) float64 {
	if len(path) < 2 {
		return 0
	}
	var total float64
	for i := 1; i < len(path); i++ {
		total += Distance(path[i-1], path[i])
	}
	return total
}
