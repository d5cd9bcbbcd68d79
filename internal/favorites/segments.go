package favorites

import (
	"math"

	"github.com/walkthrough/walkthrough/internal/routing"
)

// ExtractSegments flattens the steps of the first route into an ordered
// segment chain. It never fails: unknown way point indices fall back to the
// first or last coordinate, and a response without routes yields nil.
func ExtractSegments(fc *routing.FeatureCollection) []Segment {
	if fc == nil || len(fc.Features) == 0 {
		return nil
	}

	feature := fc.Features[0]
	coords := feature.Geometry.Coordinates

	var steps []routing.Step
	for _, seg := range feature.Properties.Segments {
		steps = append(steps, seg.Steps...)
	}
	if len(steps) == 0 {
		return nil
	}

	segments := make([]Segment, 0, len(steps))
	for i, st := range steps {
		startIdx, endIdx := wayPointRange(st.WayPoints)
		start := pointAt(coords, startIdx, true)
		end := pointAt(coords, endIdx, false)

		next := 0
		if i < len(steps)-1 {
			next = i + 2
		}

		segments = append(segments, Segment{
			DistanceMeters:  int(math.Round(st.Distance)),
			DurationMinutes: int(math.Round(st.Duration / 60)),
			Instruction:     st.Instruction,
			NextSegment:     next,
			StartLat:        start[1],
			StartLon:        start[0],
			EndLat:          end[1],
			EndLon:          end[0],
		})
	}
	return segments
}

// wayPointRange returns the [start, end] indices of a step. A missing list
// means [0, 0]; a missing end is reported as -1.
func wayPointRange(wp []int) (int, int) {
	switch len(wp) {
	case 0:
		return 0, 0
	case 1:
		return wp[0], -1
	default:
		return wp[0], wp[1]
	}
}

// pointAt returns coords[idx] as [lon, lat], falling back to the first
// (start) or last (end) coordinate, then to [0, 0].
func pointAt(coords [][]float64, idx int, start bool) [2]float64 {
	if idx >= 0 && idx < len(coords) && len(coords[idx]) >= 2 {
		return [2]float64{coords[idx][0], coords[idx][1]}
	}

	fallback := len(coords) - 1
	if start {
		fallback = 0
	}
	if fallback >= 0 && len(coords) > 0 && len(coords[fallback]) >= 2 {
		return [2]float64{coords[fallback][0], coords[fallback][1]}
	}
	return [2]float64{0, 0}
}
