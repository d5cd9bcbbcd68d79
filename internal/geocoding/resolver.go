package geocoding

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/walkthrough/walkthrough/internal/geo"
)

// literalPattern matches a "lat,lon" literal such as "50.4674, 4.8718".
var literalPattern = regexp.MustCompile(`^(-?\d+(?:\.\d+)?),\s*(-?\d+(?:\.\d+)?)$`)

// ResolverConfig holds configuration for the resolver.
type ResolverConfig struct {
	// Geocoder performs text searches.
	Geocoder Geocoder

	// Location provides the device position for the GPS fallback. Optional.
	Location LocationSource

	// Logger for resolver operations.
	Logger zerolog.Logger
}

// Resolver turns address text, a coordinate literal or the device position
// into a coordinate. It holds no state between calls.
type Resolver struct {
	geocoder Geocoder
	location LocationSource
	logger   zerolog.Logger
}

// NewResolver creates a new resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	return &Resolver{
		geocoder: cfg.Geocoder,
		location: cfg.Location,
		logger:   cfg.Logger,
	}
}

// Resolve turns input into a coordinate.
//
// Empty input falls back to the device position when allowGPSFallback is
// set. A "lat,lon" literal is parsed without a network call. Anything else
// is forward geocoded and the first candidate wins. Failures are *Error
// values carrying a user-facing message.
func (r *Resolver) Resolve(ctx context.Context, input string, allowGPSFallback bool) (geo.Coordinate, error) {
	text := strings.TrimSpace(input)

	if text == "" {
		if !allowGPSFallback {
			return geo.Coordinate{}, &Error{Op: "resolve", Message: msgEmptyInput, Err: ErrEmptyInput}
		}
		return r.locate(ctx)
	}

	if c, ok, err := ParseLiteral(text); ok {
		if err != nil {
			return geo.Coordinate{}, &Error{Op: "resolve", Input: text, Message: msgInvalidLiteral, Err: err}
		}
		r.logger.Debug().Str("input", text).Msg("coordinate literal parsed")
		return c, nil
	}

	return r.search(ctx, text)
}

// ParseLiteral parses a "lat,lon" literal. ok reports whether text has the
// literal shape; err is set when it does but the values are out of range.
func ParseLiteral(text string) (c geo.Coordinate, ok bool, err error) {
	m := literalPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return geo.Coordinate{}, false, nil
	}

	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return geo.Coordinate{}, true, ErrInvalidLiteral
	}
	lon, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return geo.Coordinate{}, true, ErrInvalidLiteral
	}

	c = geo.Coordinate{Lat: lat, Lon: lon}
	if c.Validate() != nil {
		return geo.Coordinate{}, true, ErrInvalidLiteral
	}
	return c, true, nil
}

func (r *Resolver) locate(ctx context.Context) (geo.Coordinate, error) {
	if r.location == nil {
		return geo.Coordinate{}, &Error{Op: "locate", Message: msgLocationFailed, Err: ErrLocationUnavailable}
	}

	c, err := r.location.CurrentPosition(ctx)
	if err != nil {
		msg := msgLocationFailed
		if errors.Is(err, ErrPermissionDenied) {
			msg = msgPermissionDenied
		}
		r.logger.Warn().Err(err).Msg("device location unavailable")
		return geo.Coordinate{}, &Error{Op: "locate", Message: msg, Err: err}
	}

	r.logger.Debug().Msg("using device location")
	return c, nil
}

func (r *Resolver) search(ctx context.Context, text string) (geo.Coordinate, error) {
	if r.geocoder == nil {
		return geo.Coordinate{}, &Error{Op: "search", Input: text, Message: msgGeocodingFailed, Err: ErrProviderUnavailable}
	}

	candidates, err := r.geocoder.Search(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return geo.Coordinate{}, ctx.Err()
		}
		r.logger.Error().Err(err).
			Str("provider", r.geocoder.Name()).
			Str("input", text).
			Msg("forward geocoding failed")
		return geo.Coordinate{}, &Error{Op: "search", Input: text, Message: msgGeocodingFailed, Err: err}
	}

	if len(candidates) == 0 {
		r.logger.Warn().Str("provider", r.geocoder.Name()).Str("input", text).Msg("no geocoding match")
		return geo.Coordinate{}, &Error{Op: "search", Input: text, Message: msgNoMatch, Err: ErrNoMatch}
	}

	best := candidates[0]
	r.logger.Debug().
		Str("provider", r.geocoder.Name()).
		Str("input", text).
		Str("match", best.DisplayName).
		Msg("address geocoded")
	return best.Coordinate, nil
}
