// Package googlemaps provides a geocoding client backed by the Google Maps
// Geocoding API, as an alternative to Nominatim.
package googlemaps

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"googlemaps.github.io/maps"

	"github.com/walkthrough/walkthrough/internal/geo"
	"github.com/walkthrough/walkthrough/internal/geocoding"
	"github.com/walkthrough/walkthrough/internal/provider/resilience"
)

// ProviderName identifies this provider.
const ProviderName = "googlemaps"

// ClientConfig holds configuration for the Google Maps geocoder.
type ClientConfig struct {
	// APIKey is the Maps Platform key (required).
	APIKey string

	// BaseURL overrides the Maps API host. Optional, used by tests.
	BaseURL string

	// Language of the returned addresses. Optional.
	Language string

	// Region biases results to a ccTLD such as "be". Optional.
	Region string

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Google Maps geocoding client.
type Client struct {
	maps     *maps.Client
	language string
	region   string
	logger   zerolog.Logger
}

// NewClient creates a new Google Maps geocoder.
func NewClient(cfg ClientConfig) (*Client, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	rc := resilience.NewClient(resilience.ClientConfig{
		Name:            ProviderName,
		Timeout:         timeout,
		MaxRetries:      2,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Registry:        cfg.Registry,
	})

	opts := []maps.ClientOption{
		maps.WithAPIKey(cfg.APIKey),
		maps.WithHTTPClient(&http.Client{Transport: rc.Transport()}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, maps.WithBaseURL(cfg.BaseURL))
	}

	mc, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating maps client: %w", err)
	}

	return &Client{
		maps:     mc,
		language: cfg.Language,
		region:   cfg.Region,
		logger:   cfg.Logger,
	}, nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Search geocodes free-form text.
func (c *Client) Search(ctx context.Context, query string) ([]geocoding.Candidate, error) {
	results, err := c.maps.Geocode(ctx, &maps.GeocodingRequest{
		Address:  query,
		Language: c.language,
		Region:   c.region,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", geocoding.ErrProviderUnavailable, err)
	}

	candidates := make([]geocoding.Candidate, 0, len(results))
	for _, r := range results {
		candidates = append(candidates, geocoding.Candidate{
			Coordinate:  geo.Coordinate{Lat: r.Geometry.Location.Lat, Lon: r.Geometry.Location.Lng},
			DisplayName: r.FormattedAddress,
		})
	}

	c.logger.Debug().Str("query", query).Int("results", len(candidates)).Msg("google geocode")
	return candidates, nil
}

// Reverse returns the postal address at a coordinate.
func (c *Client) Reverse(ctx context.Context, at geo.Coordinate) (*geocoding.Address, error) {
	results, err := c.maps.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng:   &maps.LatLng{Lat: at.Lat, Lng: at.Lon},
		Language: c.language,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", geocoding.ErrProviderUnavailable, err)
	}
	if len(results) == 0 {
		return nil, geocoding.ErrNoMatch
	}

	return toAddress(results[0].AddressComponents), nil
}

// toAddress picks the address fields from the component types.
func toAddress(components []maps.AddressComponent) *geocoding.Address {
	addr := &geocoding.Address{}
	var locality, postalTown, admin2 string

	for _, comp := range components {
		for _, t := range comp.Types {
			switch t {
			case "route":
				setOnce(&addr.Street, comp.LongName)
			case "street_number":
				setOnce(&addr.HouseNumber, comp.LongName)
			case "locality":
				setOnce(&locality, comp.LongName)
			case "postal_town":
				setOnce(&postalTown, comp.LongName)
			case "administrative_area_level_2":
				setOnce(&admin2, comp.LongName)
			case "postal_code":
				setOnce(&addr.Postcode, comp.LongName)
			case "country":
				setOnce(&addr.Country, comp.LongName)
			}
		}
	}

	switch {
	case locality != "":
		addr.City = locality
	case postalTown != "":
		addr.City = postalTown
	default:
		addr.City = admin2
	}
	return addr
}

func setOnce(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
