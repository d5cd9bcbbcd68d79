package routing

import (
	"strconv"
	"strings"

	"github.com/walkthrough/walkthrough/internal/geo"
)

// Request is the input of a route computation.
type Request struct {
	Origin      *geo.Coordinate
	Destination *geo.Coordinate
	// Waypoints are visited in the given order.
	Waypoints []geo.Coordinate
}

// Key returns the request fingerprint, or false when origin or destination is missing.
func (r Request) Key() (string, bool) {
	return BuildKey(r.Origin, r.Destination, r.Waypoints)
}

// Coordinates returns the ordered list sent to the provider: origin,
// waypoints, destination.
func (r Request) Coordinates() []geo.Coordinate {
	if r.Origin == nil || r.Destination == nil {
		return nil
	}
	coords := make([]geo.Coordinate, 0, len(r.Waypoints)+2)
	coords = append(coords, *r.Origin)
	coords = append(coords, r.Waypoints...)
	coords = append(coords, *r.Destination)
	return coords
}

// BuildKey derives a stable fingerprint for a routing request.
// Every component is rounded to geo.KeyPrecision decimals so numerically
// noisy copies of the same point share a key. Waypoint order is kept.
//
// Format: "o=lat,lon;d=lat,lon;w=lat,lon|lat,lon".
func BuildKey(origin, destination *geo.Coordinate, waypoints []geo.Coordinate) (string, bool) {
	if origin == nil || destination == nil {
		return "", false
	}

	var b strings.Builder
	b.Grow(64 + 24*len(waypoints))

	b.WriteString("o=")
	writeCoordinate(&b, *origin)
	b.WriteString(";d=")
	writeCoordinate(&b, *destination)
	b.WriteString(";w=")
	for i, w := range waypoints {
		if i > 0 {
			b.WriteByte('|')
		}
		writeCoordinate(&b, w)
	}

	return b.String(), true
}

func writeCoordinate(b *strings.Builder, c geo.Coordinate) {
	r := c.Rounded()
	b.WriteString(strconv.FormatFloat(r.Lat, 'f', geo.KeyPrecision, 64))
	b.WriteByte(',')
	b.WriteString(strconv.FormatFloat(r.Lon, 'f', geo.KeyPrecision, 64))
}
