package favorites

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/walkthrough/walkthrough/internal/geo"
	"github.com/walkthrough/walkthrough/internal/geocoding"
)

// Reverser is the reverse geocoding side of a geocoder.
type Reverser interface {
	Reverse(ctx context.Context, c geo.Coordinate) (*geocoding.Address, error)
}

// AddressResolver resolves route endpoints to postal addresses.
type AddressResolver struct {
	reverser Reverser
	logger   zerolog.Logger
}

// NewAddressResolver creates an address resolver.
func NewAddressResolver(reverser Reverser, logger zerolog.Logger) *AddressResolver {
	return &AddressResolver{reverser: reverser, logger: logger}
}

// Resolve reverse geocodes c. Any failure yields an empty address so that
// saving a route never depends on the geocoder.
func (r *AddressResolver) Resolve(ctx context.Context, c geo.Coordinate) Address {
	if r == nil || r.reverser == nil {
		return Address{}
	}

	a, err := r.reverser.Reverse(ctx, c)
	if err != nil || a == nil {
		r.logger.Warn().Err(err).Str("coordinate", c.String()).Msg("address resolution failed, using empty address")
		return Address{}
	}

	return Address{
		Street:     a.Street,
		City:       a.City,
		Number:     leadingInt(a.HouseNumber),
		PostalCode: digitsInt(a.Postcode),
		Country:    a.Country,
	}
}

// leadingInt parses the leading digits of s ("12b" is 12). Zero otherwise.
func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

// digitsInt keeps only the digits of s ("B-5000" is 5000). Zero otherwise.
func digitsInt(s string) int {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			return r
		}
		return -1
	}, s)
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}
