package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/walkthrough/walkthrough/internal/favorites"
	"github.com/walkthrough/walkthrough/internal/landmark"
	"github.com/walkthrough/walkthrough/internal/provider/resilience"
	"github.com/walkthrough/walkthrough/internal/session"
)

const (
	// ProviderName identifies the backend in the provider registry.
	ProviderName = "backend"

	// writeProviderName identifies the non-retrying write client.
	writeProviderName = "backend-write"

	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 4 << 10
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the backend client.
type ClientConfig struct {
	// BaseURL is the backend API base URL (required).
	BaseURL string

	// HTTPClient is used for every request when set. If nil, reads go
	// through a retrying resilient client and writes through one that
	// never retries.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger

	// Now returns the current time, used for the step log date (default: time.Now).
	Now func() time.Time
}

// Client is a backend API client.
type Client struct {
	baseURL string
	reads   HTTPDoer
	writes  HTTPDoer
	logger  zerolog.Logger
	now     func() time.Time
}

// NewClient creates a new backend client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	reads, writes := cfg.HTTPClient, cfg.HTTPClient
	if reads == nil {
		readCfg := resilience.DefaultClientConfig(ProviderName)
		readCfg.Timeout = timeout
		readCfg.MaxRetries = 2
		readCfg.Registry = cfg.Registry
		reads = resilience.NewClient(readCfg)

		writeCfg := resilience.DefaultClientConfig(writeProviderName)
		writeCfg.Timeout = timeout
		writeCfg.DisableRetries = true
		writeCfg.Registry = cfg.Registry
		writes = resilience.NewClient(writeCfg)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		reads:   reads,
		writes:  writes,
		logger:  cfg.Logger,
		now:     now,
	}
}

// BestLandmarks asks the backend for the landmarks that best fit a walk of
// the requested distance between origin and destination.
func (c *Client) BestLandmarks(ctx context.Context, sess session.Session, q LandmarkQuery) ([]landmark.Landmark, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLandmarkLimit
	}

	body := landmarkRequest{
		LongDep:   q.Origin.Lon,
		LatDep:    q.Origin.Lat,
		LongArr:   q.Destination.Lon,
		LatArr:    q.Destination.Lat,
		Distance:  q.DistanceMeters,
		Tolerance: 0,
		Limit:     limit,
	}

	// The search has no side effect, so it may be retried.
	resp, err := c.send(ctx, c.reads, sess, http.MethodPost, "/landmark/best", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isOK(resp) {
		return nil, errorFromResponse("best landmarks", resp)
	}

	var landmarks []landmark.Landmark
	if err := json.NewDecoder(resp.Body).Decode(&landmarks); err != nil {
		return nil, fmt.Errorf("decode landmarks: %w", err)
	}

	c.logger.Debug().
		Int("distance", q.DistanceMeters).
		Int("landmarks", len(landmarks)).
		Msg("received best landmarks")
	return landmarks, nil
}

// SaveFavoriteRoute stores route as a favorite of the session user.
func (c *Client) SaveFavoriteRoute(ctx context.Context, sess session.Session, route favorites.Route) error {
	resp, err := c.send(ctx, c.writes, sess, http.MethodPost, "/favroute/"+url.PathEscape(sess.UserID), route)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !isOK(resp) {
		return errorFromResponse("save favorite route", resp)
	}
	drain(resp)
	return nil
}

// GetUser fetches the profile of the session user.
func (c *Client) GetUser(ctx context.Context, sess session.Session) (*User, error) {
	resp, err := c.send(ctx, c.reads, sess, http.MethodGet, "/user/"+url.PathEscape(sess.UserID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isOK(resp) {
		return nil, errorFromResponse("get user", resp)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &user, nil
}

// send builds and executes an authenticated JSON request. A nil body sends
// no payload. Sessions that are known to be unusable are rejected locally.
func (c *Client) send(ctx context.Context, doer HTTPDoer, sess session.Session, method, path string, body any) (*http.Response, error) {
	if err := sess.Validate(c.now()); err != nil {
		return nil, err
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", sess.AuthorizationHeader())

	resp, err := doer.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Error().Err(err).Str("method", method).Str("path", path).Msg("backend request failed")
		return nil, fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, path, err)
	}
	return resp, nil
}

func isOK(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// errorFromResponse reads the body text of a failed response.
func errorFromResponse(op string, resp *http.Response) *Error {
	text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &Error{
		Op:         op,
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(text)),
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
}
