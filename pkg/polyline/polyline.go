// Package polyline provides encoding and decoding utilities for Google's polyline algorithm.
// The polyline algorithm is documented at: https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"math"

	"github.com/walkthrough/walkthrough/internal/geo"
)

// Precision5 is the standard Google/ORS precision.
const Precision5 = 5

// Precision6 matches the precision used for route fingerprints.
const Precision6 = 6

// Encode encodes coordinates with precision 5.
func Encode(coords []geo.Coordinate) string {
	return EncodePrecision(coords, Precision5)
}

// Decode decodes a precision 5 polyline.
func Decode(encoded string) []geo.Coordinate {
	return DecodePrecision(encoded, Precision5)
}

// EncodePrecision encodes a slice of coordinates into a polyline-encoded string
// using the given number of decimals.
func EncodePrecision(coords []geo.Coordinate, precision int) string {
	if len(coords) == 0 {
		return ""
	}

	factor := math.Pow(10, float64(precision))
	encoded := make([]byte, 0, len(coords)*4)
	prevLat := 0
	prevLon := 0

	for _, coord := range coords {
		lat := int(math.Round(coord.Lat * factor))
		lon := int(math.Round(coord.Lon * factor))

		encoded = encodeValue(encoded, lat-prevLat)
		encoded = encodeValue(encoded, lon-prevLon)

		prevLat = lat
		prevLon = lon
	}

	return string(encoded)
}

// DecodePrecision decodes a polyline-encoded string produced with the given precision.
func DecodePrecision(encoded string, precision int) []geo.Coordinate {
	if encoded == "" {
		return nil
	}

	factor := math.Pow(10, float64(precision))
	var coords []geo.Coordinate
	index := 0
	lat := 0
	lon := 0

	for index < len(encoded) {
		latDelta, newIndex := decodeValue(encoded, index)
		index = newIndex
		lat += latDelta

		// A truncated string can end after a latitude.
		if index >= len(encoded) {
			break
		}

		lonDelta, newIndex := decodeValue(encoded, index)
		index = newIndex
		lon += lonDelta

		coords = append(coords, geo.Coordinate{
			Lat: float64(lat) / factor,
			Lon: float64(lon) / factor,
		})
	}

	return coords
}

// decodeValue decodes a single value from the polyline at the given index.
// Returns the decoded delta value and the new index position.
func decodeValue(encoded string, index int) (int, int) {
	shift := 0
	result := 0

	for index < len(encoded) {
		b := int(encoded[index]) - 63
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	if result&1 != 0 {
		return ^(result >> 1), index
	}
	return result >> 1, index
}

// encodeValue encodes a single integer value using the polyline algorithm.
func encodeValue(buf []byte, value int) []byte {
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}

	for value >= 0x20 {
		buf = append(buf, byte((value&0x1f)|0x20)+63)
		value >>= 5
	}
	buf = append(buf, byte(value)+63)

	return buf
}
