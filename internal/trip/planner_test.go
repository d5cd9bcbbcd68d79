package trip

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walkthrough/walkthrough/internal/backend"
	"github.com/walkthrough/walkthrough/internal/favorites"
	"github.com/walkthrough/walkthrough/internal/geo"
	"github.com/walkthrough/walkthrough/internal/geocoding"
	"github.com/walkthrough/walkthrough/internal/landmark"
	"github.com/walkthrough/walkthrough/internal/routing"
	"github.com/walkthrough/walkthrough/internal/session"
)

var (
	namurGare     = geo.Coordinate{Lat: 50.4674, Lon: 4.8718}
	namurCathedra = geo.Coordinate{Lat: 50.4679, Lon: 4.8765}
	deviceFix     = geo.Coordinate{Lat: 50.4690, Lon: 4.8600}
)

type fakeResolver struct {
	mu     sync.Mutex
	inputs []string
	places map[string]geo.Coordinate
}

func (f *fakeResolver) Resolve(_ context.Context, input string, allowGPSFallback bool) (geo.Coordinate, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, input)
	f.mu.Unlock()

	if strings.TrimSpace(input) == "" {
		if allowGPSFallback {
			return deviceFix, nil
		}
		return geo.Coordinate{}, &geocoding.Error{Op: "resolve", Message: "Adresse manquante.", Err: geocoding.ErrEmptyInput}
	}
	if c, ok := f.places[input]; ok {
		return c, nil
	}
	return geo.Coordinate{}, &geocoding.Error{Op: "search", Input: input, Message: "Aucune correspondance trouvée.", Err: geocoding.ErrNoMatch}
}

func (f *fakeResolver) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

// fakeProvider answers every request with a straight line through the
// requested coordinates.
type fakeProvider struct {
	mu       sync.Mutex
	requests []routing.DirectionsRequest
	respond  func(req routing.DirectionsRequest) (*routing.FeatureCollection, error)
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Directions(_ context.Context, req routing.DirectionsRequest) (*routing.FeatureCollection, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	respond := f.respond
	f.mu.Unlock()

	if respond != nil {
		return respond(req)
	}
	return straightLine(req.Coordinates), nil
}

func (f *fakeProvider) all() []routing.DirectionsRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]routing.DirectionsRequest(nil), f.requests...)
}

func straightLine(coords []geo.Coordinate) *routing.FeatureCollection {
	positions := make([][]float64, 0, len(coords))
	for _, c := range coords {
		positions = append(positions, c.LonLat())
	}
	return &routing.FeatureCollection{
		Type: "FeatureCollection",
		Features: []routing.Feature{{
			Type:     "Feature",
			Geometry: routing.LineString{Type: "LineString", Coordinates: positions},
			Properties: routing.FeatureProperties{
				Summary: routing.Summary{Distance: 500.4, Duration: 400.2},
				Segments: []routing.Segment{{
					Distance: 500.4,
					Duration: 400.2,
					Steps: []routing.Step{
						{Distance: 500.4, Duration: 400.2, Instruction: "Marchez", WayPoints: []int{0, len(positions) - 1}},
					},
				}},
			},
		}},
	}
}

type fakeFinder struct {
	mu        sync.Mutex
	queries   []backend.LandmarkQuery
	landmarks []landmark.Landmark
	err       error
}

func (f *fakeFinder) BestLandmarks(_ context.Context, _ session.Session, q backend.LandmarkQuery) ([]landmark.Landmark, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return f.landmarks, f.err
}

type fakeFavorites struct {
	results []routing.Result
	err     error
}

func (f *fakeFavorites) Save(_ context.Context, _ session.Session, result routing.Result) (*favorites.Route, error) {
	f.results = append(f.results, result)
	if f.err != nil {
		return nil, f.err
	}
	if result.Response == nil {
		return nil, favorites.ErrNoSegments
	}
	return &favorites.Route{Segments: favorites.ExtractSegments(result.Response)}, nil
}

type fakeSteps struct {
	steps []int
}

func (f *fakeSteps) LogSteps(_ context.Context, _ session.Session, steps int) (*backend.StepsResult, error) {
	f.steps = append(f.steps, steps)
	return &backend.StepsResult{StepsAdded: steps, Total: steps}, nil
}

type fakeUsers struct {
	err error
}

func (f *fakeUsers) GetUser(_ context.Context, sess session.Session) (*backend.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &backend.User{ID: 42, Username: "marcheur"}, nil
}

func lengthOf(v float64) *float64 { return &v }

type harness struct {
	planner   *Planner
	resolver  *fakeResolver
	provider  *fakeProvider
	finder    *fakeFinder
	favorites *fakeFavorites
	steps     *fakeSteps
	users     *fakeUsers
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		resolver: &fakeResolver{places: map[string]geo.Coordinate{
			"Gare de Namur":     namurGare,
			"50.4679,4.8765":    namurCathedra,
			"Cathédrale, Namur": namurCathedra,
		}},
		provider: &fakeProvider{},
		finder: &fakeFinder{landmarks: []landmark.Landmark{
			{ID: 5, Label: "Citadelle", Lat: 50.4600, Lon: 4.8600, LengthM: lengthOf(2100)},
			{ID: 7, Label: "Musée Rops", Lat: 50.4650, Lon: 4.8650},
		}},
		favorites: &fakeFavorites{},
		steps:     &fakeSteps{},
		users:     &fakeUsers{},
	}
	h.planner = NewPlanner(PlannerConfig{
		Resolver:       h.resolver,
		Provider:       h.provider,
		Landmarks:      h.finder,
		Favorites:      h.favorites,
		Steps:          h.steps,
		Users:          h.users,
		Logger:         zerolog.Nop(),
		RoutingTimeout: 2 * time.Second,
	})
	t.Cleanup(h.planner.Close)
	return h
}

func (h *harness) attach(t *testing.T) {
	t.Helper()
	_, err := h.planner.AttachSession(context.Background(), "tok", "42")
	require.NoError(t, err)
}

func (h *harness) plan(t *testing.T) *PlanResult {
	t.Helper()
	h.attach(t)
	res, err := h.planner.Plan(context.Background(), PlanInput{Steps: "2000", Start: "", Destination: "50.4679,4.8765"})
	require.NoError(t, err)
	h.planner.Wait()
	return res
}

func TestPlanner_Plan(t *testing.T) {
	h := newHarness(t)
	res := h.plan(t)

	assert.Equal(t, deviceFix, res.Origin, "empty start falls back to the device position")
	assert.Equal(t, namurCathedra, res.Destination)
	assert.Equal(t, 1500, res.DistanceMeters)
	assert.Len(t, res.Landmarks, 2)

	require.Len(t, h.finder.queries, 1)
	assert.Equal(t, backend.LandmarkQuery{
		Origin:         deviceFix,
		Destination:    namurCathedra,
		DistanceMeters: 1500,
		Limit:          3,
	}, h.finder.queries[0])

	reqs := h.provider.all()
	require.Len(t, reqs, 1)
	assert.Equal(t, []geo.Coordinate{deviceFix, namurCathedra}, reqs[0].Coordinates)

	view := h.planner.Route()
	assert.Equal(t, StatusReady, view.Status)
	require.NotNil(t, view.Estimate)
	assert.Equal(t, 667, view.Estimate.Steps)
	assert.Equal(t, 7, view.Estimate.Minutes)
	assert.NotEmpty(t, view.EncodedPolyline)
	assert.Empty(t, view.Waypoints)
}

func TestPlanner_PlanInvalidSteps(t *testing.T) {
	for _, steps := range []string{"", "0", "-5", "abc", "1.5", "12abc"} {
		t.Run(steps, func(t *testing.T) {
			h := newHarness(t)
			h.attach(t)

			_, err := h.planner.Plan(context.Background(), PlanInput{Steps: steps, Destination: "50.4679,4.8765"})
			assert.ErrorIs(t, err, ErrInvalidSteps)
			assert.Zero(t, h.resolver.calls())
			assert.Empty(t, h.finder.queries)
		})
	}
}

func TestPlanner_PlanEmptyDestination(t *testing.T) {
	h := newHarness(t)
	h.attach(t)

	_, err := h.planner.Plan(context.Background(), PlanInput{Steps: "1000", Start: "Gare de Namur", Destination: "   "})
	assert.ErrorIs(t, err, ErrEmptyDestination)
	assert.Equal(t, 1, h.resolver.calls(), "only the start is resolved")
	assert.Empty(t, h.finder.queries)
	assert.Equal(t, StatusIdle, h.planner.Route().Status)
}

func TestPlanner_PlanRequiresSession(t *testing.T) {
	h := newHarness(t)

	_, err := h.planner.Plan(context.Background(), PlanInput{Steps: "1000", Destination: "50.4679,4.8765"})
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Zero(t, h.resolver.calls())
}

func TestPlanner_PlanFailureCommitsNothing(t *testing.T) {
	h := newHarness(t)
	h.attach(t)
	h.finder.err = errors.New("backend down")

	_, err := h.planner.Plan(context.Background(), PlanInput{Steps: "1000", Start: "Gare de Namur", Destination: "50.4679,4.8765"})
	require.Error(t, err)

	view := h.planner.Route()
	assert.Nil(t, view.Origin)
	assert.Nil(t, view.Destination)
	assert.Empty(t, h.planner.Landmarks().Landmarks)
	assert.Empty(t, h.provider.all())

	_, err = h.planner.Plan(context.Background(), PlanInput{Steps: "1000", Start: "Gare de Namur", Destination: "Nulle part"})
	var gerr *geocoding.Error
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, "Aucune correspondance trouvée.", UserMessage(err))
}

func TestPlanner_SelectionDrivesWaypoints(t *testing.T) {
	h := newHarness(t)
	h.plan(t)

	_, err := h.planner.TogglePOI(5)
	require.NoError(t, err)
	h.planner.Wait()

	snap, err := h.planner.TogglePOI(7)
	require.NoError(t, err)
	h.planner.Wait()
	assert.Equal(t, []int64{7}, snap.Selected)

	reqs := h.provider.all()
	require.Len(t, reqs, 3)
	last := reqs[2].Coordinates
	require.Len(t, last, 3)
	assert.Equal(t, geo.Coordinate{Lat: 50.4650, Lon: 4.8650}, last[1], "only the last selected landmark is a waypoint")

	view := h.planner.Route()
	assert.Equal(t, StatusReady, view.Status)
	assert.Equal(t, []geo.Coordinate{{Lat: 50.4650, Lon: 4.8650}}, view.Waypoints)

	// Toggling the selected landmark goes back to the direct route.
	snap, err = h.planner.TogglePOI(7)
	require.NoError(t, err)
	h.planner.Wait()
	assert.Empty(t, snap.Selected)
	assert.Empty(t, h.planner.Route().Waypoints)
	assert.Len(t, h.provider.all()[len(h.provider.all())-1].Coordinates, 2)
}

func TestPlanner_ConfirmSelectedIsNoop(t *testing.T) {
	h := newHarness(t)
	h.plan(t)

	_, err := h.planner.ConfirmPOI(5)
	require.NoError(t, err)
	h.planner.Wait()
	before := len(h.provider.all())

	snap, err := h.planner.ConfirmPOI(5)
	require.NoError(t, err)
	h.planner.Wait()
	assert.Equal(t, []int64{5}, snap.Selected)
	assert.Len(t, h.provider.all(), before)

	snap = h.planner.ResetDetour()
	h.planner.Wait()
	assert.Empty(t, snap.Selected)
}

func TestPlanner_UnknownLandmark(t *testing.T) {
	h := newHarness(t)
	h.plan(t)

	_, err := h.planner.TogglePOI(99)
	assert.ErrorIs(t, err, ErrLandmarkNotFound)
	_, err = h.planner.ConfirmPOI(99)
	assert.ErrorIs(t, err, ErrLandmarkNotFound)
}

func TestPlanner_PlanResetsSelection(t *testing.T) {
	h := newHarness(t)
	h.plan(t)

	_, err := h.planner.TogglePOI(5)
	require.NoError(t, err)
	h.planner.Wait()

	_, err = h.planner.Plan(context.Background(), PlanInput{Steps: "3000", Start: "Gare de Namur", Destination: "Cathédrale, Namur"})
	require.NoError(t, err)
	h.planner.Wait()

	assert.Empty(t, h.planner.Landmarks().Selection.Selected)
	assert.Empty(t, h.planner.Route().Waypoints)
}

func TestPlanner_Preview(t *testing.T) {
	h := newHarness(t)
	h.plan(t)

	est, err := h.planner.Preview(5)
	require.NoError(t, err)
	assert.Equal(t, 2100.0, est.Meters)
	assert.Equal(t, 2.1, est.Km)
	assert.Equal(t, 2800, est.Steps)
	assert.Equal(t, 25, est.Minutes)

	_, err = h.planner.Preview(7)
	assert.ErrorIs(t, err, ErrNoLandmarkPreview)
	_, err = h.planner.Preview(99)
	assert.ErrorIs(t, err, ErrLandmarkNotFound)
}

func TestPlanner_RouteFailure(t *testing.T) {
	h := newHarness(t)
	h.provider.respond = func(routing.DirectionsRequest) (*routing.FeatureCollection, error) {
		return nil, &routing.Error{Provider: "fake", Code: "SERVER_503", Err: routing.ErrProviderUnavailable}
	}
	h.plan(t)

	view := h.planner.Route()
	assert.Equal(t, StatusFailed, view.Status)
	assert.Equal(t, "Impossible de calculer l'itinéraire.", view.Message)
	assert.Nil(t, view.Estimate)

	// A transport error leaves the inputs retryable.
	h.provider.mu.Lock()
	h.provider.respond = nil
	h.provider.mu.Unlock()
	_, err := h.planner.SetDestination(context.Background(), "50.4679,4.8765")
	require.NoError(t, err)
	h.planner.Wait()
	assert.Equal(t, StatusReady, h.planner.Route().Status)
}

func TestPlanner_EmptyRoute(t *testing.T) {
	h := newHarness(t)
	h.provider.respond = func(routing.DirectionsRequest) (*routing.FeatureCollection, error) {
		return &routing.FeatureCollection{Type: "FeatureCollection"}, nil
	}
	h.plan(t)

	view := h.planner.Route()
	assert.Equal(t, StatusFailed, view.Status)
	assert.Equal(t, "Aucun itinéraire trouvé.", view.Message)

	// The empty result is final for these inputs: resubmitting does not call the provider.
	_, err := h.planner.SetOrigin(context.Background(), "")
	require.NoError(t, err)
	h.planner.Wait()
	assert.Len(t, h.provider.all(), 1)
	assert.Equal(t, StatusFailed, h.planner.Route().Status)
}

func TestPlanner_Refresh(t *testing.T) {
	h := newHarness(t)
	h.plan(t)

	assert.Equal(t, routing.DecisionIssued, h.planner.Refresh())
	h.planner.Wait()
	assert.Len(t, h.provider.all(), 2)
	assert.Equal(t, StatusReady, h.planner.Route().Status)
}

func TestPlanner_IdleWithoutInputs(t *testing.T) {
	h := newHarness(t)

	view := h.planner.Route()
	assert.Equal(t, StatusIdle, view.Status)
	assert.Equal(t, routing.DecisionNoInput, h.planner.Refresh())
	assert.Empty(t, h.provider.all())
}

func TestPlanner_SaveFavorite(t *testing.T) {
	h := newHarness(t)

	_, err := h.planner.SaveFavorite(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)

	h.attach(t)
	_, err = h.planner.SaveFavorite(context.Background())
	assert.ErrorIs(t, err, favorites.ErrNoSegments, "nothing computed yet")

	h.plan(t)
	route, err := h.planner.SaveFavorite(context.Background())
	require.NoError(t, err)
	assert.Len(t, route.Segments, 1)

	last := h.favorites.results[len(h.favorites.results)-1]
	assert.Equal(t, h.planner.Route().Key, last.Key)
}

func TestPlanner_LogSteps(t *testing.T) {
	h := newHarness(t)

	_, err := h.planner.LogSteps(context.Background(), 100)
	assert.ErrorIs(t, err, ErrNoSession)

	h.attach(t)
	res, err := h.planner.LogSteps(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, res.StepsAdded)
	assert.Equal(t, []int{0}, h.steps.steps, "the backend client applies the default amount")

	_, err = h.planner.LogSteps(context.Background(), -1)
	assert.ErrorIs(t, err, ErrInvalidSteps)
}

func TestPlanner_AttachSession(t *testing.T) {
	h := newHarness(t)

	_, err := h.planner.AttachSession(context.Background(), "", "42")
	assert.ErrorIs(t, err, session.ErrInvalid)

	h.users.err = &backend.Error{Op: "get user", StatusCode: 401}
	_, err = h.planner.AttachSession(context.Background(), "tok", "42")
	assert.ErrorIs(t, err, session.ErrExpired)

	h.users.err = nil
	user, err := h.planner.AttachSession(context.Background(), "tok", "42")
	require.NoError(t, err)
	assert.Equal(t, "marcheur", user.Username)

	h.planner.ClearSession()
	_, err = h.planner.LogSteps(context.Background(), 10)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrInvalidSteps, "Veuillez indiquer un nombre de pas valide."},
		{ErrEmptyDestination, "Veuillez indiquer une adresse de destination."},
		{ErrNoSession, "Session invalide, veuillez vous connecter."},
		{&backend.Error{StatusCode: 401}, "Session expirée, veuillez vous reconnecter."},
		{&backend.Error{StatusCode: 400, Message: "distance trop courte"}, "distance trop courte"},
		{favorites.ErrNoSegments, "Impossible d'extraire les segments."},
		{&routing.Error{Err: routing.ErrNoRouteFound}, "Aucun itinéraire trouvé."},
		{&geocoding.Error{Op: "locate", Message: "Permission GPS refusée.", Err: geocoding.ErrPermissionDenied}, "Permission GPS refusée."},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, UserMessage(tt.err))
	}
}
