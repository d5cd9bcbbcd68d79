package favorites

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/walkthrough/walkthrough/internal/geo"
	"github.com/walkthrough/walkthrough/internal/routing"
	"github.com/walkthrough/walkthrough/internal/session"
)

// Saver persists a favorite route for the session user.
type Saver interface {
	SaveFavoriteRoute(ctx context.Context, sess session.Session, route Route) error
}

// ServiceConfig holds configuration for the favorites service.
type ServiceConfig struct {
	Saver     Saver
	Addresses *AddressResolver
	Logger    zerolog.Logger
	// Now returns the current time (default: time.Now).
	Now func() time.Time
}

// Service saves computed routes as favorites.
type Service struct {
	saver     Saver
	addresses *AddressResolver
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService creates a new favorites service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		saver:     cfg.Saver,
		addresses: cfg.Addresses,
		logger:    cfg.Logger,
		now:       now,
	}
}

// Save stores result as a favorite route of the session user.
//
// The session and the segment chain are checked before any network call.
// Both endpoint addresses are resolved concurrently and never fail the save.
func (s *Service) Save(ctx context.Context, sess session.Session, result routing.Result) (*Route, error) {
	if err := sess.Validate(s.now()); err != nil {
		return nil, err
	}

	segments := ExtractSegments(result.Response)
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}

	start, end := endpoints(result.Polyline, segments)

	route := &Route{Segments: segments}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		route.StartAddress = s.addresses.Resolve(gctx, start)
		return nil
	})
	g.Go(func() error {
		route.EndAddress = s.addresses.Resolve(gctx, end)
		return nil
	})
	_ = g.Wait() // address resolution never fails

	if err := s.saver.SaveFavoriteRoute(ctx, sess, *route); err != nil {
		s.logger.Error().Err(err).Str("key", result.Key).Msg("failed to save favorite route")
		return nil, err
	}

	s.logger.Info().
		Str("key", result.Key).
		Str("user_id", sess.UserID).
		Int("segments", len(segments)).
		Msg("favorite route saved")
	return route, nil
}

// endpoints returns the first and last point of the displayed route, or
// of the segment chain when there is no polyline.
func endpoints(polyline []geo.Coordinate, segments []Segment) (geo.Coordinate, geo.Coordinate) {
	if len(polyline) > 0 {
		return polyline[0], polyline[len(polyline)-1]
	}
	first, last := segments[0], segments[len(segments)-1]
	return geo.Coordinate{Lat: first.StartLat, Lon: first.StartLon},
		geo.Coordinate{Lat: last.EndLat, Lon: last.EndLon}
}
