// Package nominatim provides a geocoding client for the OpenStreetMap Nominatim API.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/walkthrough/walkthrough/internal/geo"
	"github.com/walkthrough/walkthrough/internal/geocoding"
	"github.com/walkthrough/walkthrough/internal/provider/resilience"
)

const (
	// ProviderName identifies this provider.
	ProviderName = "nominatim"

	// DefaultBaseURL is the public Nominatim instance.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"

	// DefaultUserAgent identifies the application, as required by the usage policy.
	DefaultUserAgent = "WalkThroughApp/1.0"
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Nominatim client.
type ClientConfig struct {
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// UserAgent sent with every request (defaults to DefaultUserAgent).
	UserAgent string

	// Language for the returned names, sent as accept-language. Optional.
	Language string

	// HTTPClient is the HTTP client to use.
	// If nil, a default resilient client will be created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Nominatim API client.
type Client struct {
	baseURL    string
	userAgent  string
	language   string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new Nominatim client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         timeout,
			MaxRetries:      2,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     3 * time.Second,
			Registry:        cfg.Registry,
		})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		userAgent:  userAgent,
		language:   cfg.Language,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// API response types.

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

type reverseResult struct {
	Error   string         `json:"error"`
	Address reverseAddress `json:"address"`
}

// reverseAddress lists the locale-dependent fields Nominatim may use.
type reverseAddress struct {
	Road         string `json:"road"`
	Pedestrian   string `json:"pedestrian"`
	Footway      string `json:"footway"`
	Path         string `json:"path"`
	HouseNumber  string `json:"house_number"`
	City         string `json:"city"`
	Town         string `json:"town"`
	Village      string `json:"village"`
	Municipality string `json:"municipality"`
	Postcode     string `json:"postcode"`
	Country      string `json:"country"`
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Search geocodes free-form text.
func (c *Client) Search(ctx context.Context, query string) ([]geocoding.Candidate, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")

	var results []searchResult
	if err := c.get(ctx, "/search", params, &results); err != nil {
		return nil, err
	}

	candidates := make([]geocoding.Candidate, 0, len(results))
	for _, r := range results {
		lat, errLat := strconv.ParseFloat(r.Lat, 64)
		lon, errLon := strconv.ParseFloat(r.Lon, 64)
		if errLat != nil || errLon != nil {
			c.logger.Warn().Str("lat", r.Lat).Str("lon", r.Lon).Msg("skipping unparsable search result")
			continue
		}
		candidates = append(candidates, geocoding.Candidate{
			Coordinate:  geo.Coordinate{Lat: lat, Lon: lon},
			DisplayName: r.DisplayName,
		})
	}

	c.logger.Debug().Str("query", query).Int("results", len(candidates)).Msg("nominatim search")
	return candidates, nil
}

// Reverse returns the postal address at a coordinate.
func (c *Client) Reverse(ctx context.Context, at geo.Coordinate) (*geocoding.Address, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(at.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(at.Lon, 'f', -1, 64))
	params.Set("format", "json")
	params.Set("addressdetails", "1")

	var result reverseResult
	if err := c.get(ctx, "/reverse", params, &result); err != nil {
		return nil, err
	}
	if result.Error != "" {
		return nil, fmt.Errorf("%w: %s", geocoding.ErrNoMatch, result.Error)
	}

	a := result.Address
	return &geocoding.Address{
		Street:      firstNonEmpty(a.Road, a.Pedestrian, a.Footway, a.Path),
		HouseNumber: a.HouseNumber,
		City:        firstNonEmpty(a.City, a.Town, a.Village, a.Municipality),
		Postcode:    a.Postcode,
		Country:     a.Country,
	}, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if c.language != "" {
		params.Set("accept-language", c.language)
	}

	endpoint := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", geocoding.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: unexpected status %d from %s", geocoding.ErrProviderUnavailable, resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
