package trip

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"github.com/walkthrough/walkthrough/internal/backend"
	"github.com/walkthrough/walkthrough/internal/estimate"
	"github.com/walkthrough/walkthrough/internal/favorites"
	"github.com/walkthrough/walkthrough/internal/geo"
	"github.com/walkthrough/walkthrough/internal/landmark"
	"github.com/walkthrough/walkthrough/internal/routing"
	"github.com/walkthrough/walkthrough/internal/selection"
	"github.com/walkthrough/walkthrough/internal/session"
	"github.com/walkthrough/walkthrough/pkg/polyline"
)

// PlannerConfig holds configuration for the planner.
type PlannerConfig struct {
	Resolver  Resolver
	Provider  routing.Provider
	Landmarks LandmarkFinder
	Favorites FavoriteSaver
	Steps     StepLogger
	Users     UserFetcher

	Logger zerolog.Logger

	// RoutingTimeout bounds each routing attempt (default: routing.DefaultTimeout).
	RoutingTimeout time.Duration
	// Language of the turn-by-turn instructions (default: routing.DefaultLanguage).
	Language string
	// Meter for coordinator counters (optional).
	Meter metric.Meter
	// Now returns the current time (default: time.Now).
	Now func() time.Time
}

// Planner owns the walk state of a single user: endpoints, candidate
// landmarks, the detour selection and the computed route.
type Planner struct {
	resolver    Resolver
	finder      LandmarkFinder
	favorites   FavoriteSaver
	steps       StepLogger
	users       UserFetcher
	logger      zerolog.Logger
	now         func() time.Time
	coordinator *routing.Coordinator
	candidates  *landmark.InMemoryRepository
	selection   *selection.Machine

	mu          sync.Mutex
	session     *session.Session
	origin      *geo.Coordinate
	destination *geo.Coordinate
	route       routeState
}

// routeState tracks what the route view shows. currentKey is the
// fingerprint of the latest inputs; results for any other key are stale.
type routeState struct {
	currentKey string
	waypoints  []geo.Coordinate
	status     Status
	result     *routing.Result
	failure    *routing.Failure
	updatedAt  time.Time
}

// NewPlanner creates a planner and its route coordinator.
func NewPlanner(cfg PlannerConfig) *Planner {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	p := &Planner{
		resolver:   cfg.Resolver,
		finder:     cfg.Landmarks,
		favorites:  cfg.Favorites,
		steps:      cfg.Steps,
		users:      cfg.Users,
		logger:     cfg.Logger,
		now:        now,
		candidates: landmark.NewInMemoryRepository(),
		selection:  selection.NewMachine(),
		route:      routeState{status: StatusIdle},
	}

	p.coordinator = routing.NewCoordinator(routing.CoordinatorConfig{
		Provider:  cfg.Provider,
		Logger:    cfg.Logger,
		Timeout:   cfg.RoutingTimeout,
		Language:  cfg.Language,
		OnResult:  p.onRoute,
		OnFailure: p.onRouteFailure,
		Meter:     cfg.Meter,
	})

	p.selection.Subscribe(p.onSelection)
	return p
}

// Close stops the route coordinator.
func (p *Planner) Close() {
	p.coordinator.Close()
}

// Wait blocks until pending route computations have finished.
func (p *Planner) Wait() {
	p.coordinator.Wait()
}

// AttachSession validates token locally, then against the backend, and
// makes it the session used by every backend call.
func (p *Planner) AttachSession(ctx context.Context, token, userID string) (*backend.User, error) {
	sess, err := session.New(token, userID)
	if err != nil {
		return nil, err
	}
	if err := sess.Validate(p.now()); err != nil {
		return nil, err
	}

	var user *backend.User
	if p.users != nil {
		user, err = p.users.GetUser(ctx, sess)
		if err != nil {
			return nil, err
		}
	}

	p.mu.Lock()
	p.session = &sess
	p.mu.Unlock()

	p.logger.Info().Str("user_id", sess.UserID).Msg("session attached")
	return user, nil
}

// ClearSession drops the current session.
func (p *Planner) ClearSession() {
	p.mu.Lock()
	p.session = nil
	p.mu.Unlock()
}

func (p *Planner) currentSession() (session.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return session.Session{}, ErrNoSession
	}
	return *p.session, nil
}

// Plan sets up a walk. Nothing is committed unless every step succeeds:
// the steps parse, both endpoints resolve and the backend answers.
// Committing new landmarks resets the detour selection.
func (p *Planner) Plan(ctx context.Context, in PlanInput) (*PlanResult, error) {
	steps, err := parseSteps(in.Steps)
	if err != nil {
		return nil, err
	}
	distance := estimate.DistanceFromSteps(steps)

	sess, err := p.currentSession()
	if err != nil {
		return nil, err
	}

	origin, err := p.resolver.Resolve(ctx, in.Start, true)
	if err != nil {
		return nil, fmt.Errorf("resolving start: %w", err)
	}

	if strings.TrimSpace(in.Destination) == "" {
		return nil, ErrEmptyDestination
	}
	destination, err := p.resolver.Resolve(ctx, in.Destination, false)
	if err != nil {
		return nil, fmt.Errorf("resolving destination: %w", err)
	}

	landmarks, err := p.finder.BestLandmarks(ctx, sess, backend.LandmarkQuery{
		Origin:         origin,
		Destination:    destination,
		DistanceMeters: distance,
		Limit:          backend.DefaultLandmarkLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching landmarks: %w", err)
	}

	p.mu.Lock()
	p.origin = &origin
	p.destination = &destination
	p.candidates.Replace(landmarks)
	p.mu.Unlock()

	p.logger.Info().
		Int("steps", steps).
		Int("distance_m", distance).
		Int("landmarks", len(landmarks)).
		Msg("walk planned")

	// The reset notifies onSelection, which submits the new route.
	p.selection.Reset()

	return &PlanResult{
		Origin:         origin,
		Destination:    destination,
		DistanceMeters: distance,
		Landmarks:      p.candidates.List(),
	}, nil
}

// SetOrigin resolves input, falling back to the device position when it is
// empty, and recomputes the route.
func (p *Planner) SetOrigin(ctx context.Context, input string) (geo.Coordinate, error) {
	c, err := p.resolver.Resolve(ctx, input, true)
	if err != nil {
		return geo.Coordinate{}, err
	}

	p.mu.Lock()
	p.origin = &c
	p.mu.Unlock()

	p.submit(p.selection.Snapshot())
	return c, nil
}

// SetDestination resolves input and recomputes the route.
func (p *Planner) SetDestination(ctx context.Context, input string) (geo.Coordinate, error) {
	if strings.TrimSpace(input) == "" {
		return geo.Coordinate{}, ErrEmptyDestination
	}
	c, err := p.resolver.Resolve(ctx, input, false)
	if err != nil {
		return geo.Coordinate{}, err
	}

	p.mu.Lock()
	p.destination = &c
	p.mu.Unlock()

	p.submit(p.selection.Snapshot())
	return c, nil
}

// Landmarks returns the candidate detours and the selection.
func (p *Planner) Landmarks() LandmarksView {
	return LandmarksView{
		Landmarks: p.candidates.List(),
		Selection: p.selection.Snapshot(),
	}
}

// TogglePOI selects, deselects or replaces the detour landmark.
func (p *Planner) TogglePOI(id int64) (selection.Snapshot, error) {
	if _, err := p.candidates.Get(id); err != nil {
		return selection.Snapshot{}, err
	}
	return p.selection.Toggle(id), nil
}

// ConfirmPOI makes id the detour. Confirming the current detour does nothing.
func (p *Planner) ConfirmPOI(id int64) (selection.Snapshot, error) {
	if _, err := p.candidates.Get(id); err != nil {
		return selection.Snapshot{}, err
	}
	return p.selection.Select(id), nil
}

// ResetDetour drops the detour and goes back to the direct route.
func (p *Planner) ResetDetour() selection.Snapshot {
	return p.selection.Reset()
}

// Preview returns the quick estimate of the walk added by a landmark.
func (p *Planner) Preview(id int64) (estimate.QuickEstimate, error) {
	l, err := p.candidates.Get(id)
	if err != nil {
		return estimate.QuickEstimate{}, err
	}
	if l.LengthM == nil {
		return estimate.QuickEstimate{}, ErrNoLandmarkPreview
	}
	return estimate.Quick(*l.LengthM), nil
}

// Refresh recomputes the current route even if it was already computed.
func (p *Planner) Refresh() routing.Decision {
	p.mu.Lock()
	defer p.mu.Unlock()

	req := p.requestLocked(p.selection.Snapshot())
	decision := p.coordinator.Refresh(req)
	p.applyDecisionLocked(req, decision)
	return decision
}

// Route returns the route view.
func (p *Planner) Route() RouteView {
	p.mu.Lock()
	defer p.mu.Unlock()

	view := RouteView{
		Status:      p.route.status,
		Key:         p.route.currentKey,
		Origin:      p.origin,
		Destination: p.destination,
		Waypoints:   append([]geo.Coordinate{}, p.route.waypoints...),
		UpdatedAt:   p.route.updatedAt,
	}

	switch view.Status {
	case StatusReady:
		r := p.route.result
		view.Polyline = r.Polyline
		view.EncodedPolyline = polyline.Encode(r.Polyline)
		est := estimate.FromRoute(r.DistanceMeters, r.DurationSeconds)
		view.Estimate = &est
	case StatusFailed:
		view.Message = routing.UserMessage(p.route.failure.Err)
	}
	return view
}

// SaveFavorite stores the displayed route as a favorite of the session user.
func (p *Planner) SaveFavorite(ctx context.Context) (*favorites.Route, error) {
	sess, err := p.currentSession()
	if err != nil {
		return nil, err
	}

	var result routing.Result
	p.mu.Lock()
	if p.route.status == StatusReady && p.route.result != nil {
		result = *p.route.result
	}
	p.mu.Unlock()

	return p.favorites.Save(ctx, sess, result)
}

// LogSteps adds steps to today's step log. Zero logs the default amount.
func (p *Planner) LogSteps(ctx context.Context, steps int) (*backend.StepsResult, error) {
	if steps < 0 {
		return nil, ErrInvalidSteps
	}
	sess, err := p.currentSession()
	if err != nil {
		return nil, err
	}
	return p.steps.LogSteps(ctx, sess, steps)
}

func (p *Planner) onSelection(snap selection.Snapshot) {
	p.submit(snap)
}

// submit feeds the current inputs to the coordinator. The lock is held
// across Submit so the view's key always matches the coordinator's decision.
func (p *Planner) submit(snap selection.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	req := p.requestLocked(snap)
	decision := p.coordinator.Submit(req)
	p.applyDecisionLocked(req, decision)
}

func (p *Planner) requestLocked(snap selection.Snapshot) routing.Request {
	selected := p.candidates.Resolve(snap.Selected)
	waypoints := make([]geo.Coordinate, 0, len(selected))
	for _, l := range selected {
		waypoints = append(waypoints, l.Coordinate())
	}
	return routing.Request{
		Origin:      p.origin,
		Destination: p.destination,
		Waypoints:   waypoints,
	}
}

func (p *Planner) applyDecisionLocked(req routing.Request, decision routing.Decision) {
	key, _ := req.Key()
	p.route.currentKey = key
	p.route.waypoints = req.Waypoints
	p.route.updatedAt = p.now()

	switch decision {
	case routing.DecisionNoInput:
		p.route.status = StatusIdle
	case routing.DecisionIssued, routing.DecisionSuppressedInFlight:
		p.route.status = StatusPending
	case routing.DecisionSuppressedCompleted:
		switch {
		case p.route.result != nil && p.route.result.Key == key:
			p.route.status = StatusReady
		case p.route.failure != nil && p.route.failure.Key == key:
			p.route.status = StatusFailed
		default:
			p.route.status = StatusPending
		}
	}

	p.logger.Debug().Str("key", key).Stringer("decision", decision).Msg("route inputs changed")
}

func (p *Planner) onRoute(r routing.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r.Key != p.route.currentKey {
		return
	}
	p.route.result = &r
	p.route.failure = nil
	p.route.status = StatusReady
	p.route.updatedAt = p.now()
}

func (p *Planner) onRouteFailure(f routing.Failure) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if f.Key != p.route.currentKey {
		return
	}
	p.route.failure = &f
	p.route.status = StatusFailed
	p.route.updatedAt = p.now()
}

// parseSteps accepts a strictly positive integer.
func parseSteps(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, ErrInvalidSteps
	}
	return n, nil
}
