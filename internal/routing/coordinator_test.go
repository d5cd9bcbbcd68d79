package routing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walkthrough/walkthrough/internal/estimate"
	"github.com/walkthrough/walkthrough/internal/geo"
)

// providerCall is one Directions invocation held by fakeProvider until the
// test replies to it.
type providerCall struct {
	ctx   context.Context
	req   DirectionsRequest
	reply chan providerReply
}

type providerReply struct {
	fc  *FeatureCollection
	err error
}

func (c *providerCall) respond(fc *FeatureCollection, err error) {
	c.reply <- providerReply{fc: fc, err: err}
}

// fakeProvider hands every call to the test through a channel, so the test
// decides when and in which order responses arrive.
type fakeProvider struct {
	calls chan *providerCall
	// ignoreCancel makes the provider answer even after its context is
	// canceled, like a server that already sent the response.
	ignoreCancel bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{calls: make(chan *providerCall, 16)}
}

func (p *fakeProvider) Directions(ctx context.Context, req DirectionsRequest) (*FeatureCollection, error) {
	call := &providerCall{ctx: ctx, req: req, reply: make(chan providerReply, 1)}
	p.calls <- call

	if p.ignoreCancel {
		r := <-call.reply
		return r.fc, r.err
	}

	select {
	case r := <-call.reply:
		return r.fc, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) next(t *testing.T) *providerCall {
	t.Helper()
	select {
	case c := <-p.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("expected a provider call")
		return nil
	}
}

func (p *fakeProvider) assertNoCall(t *testing.T) {
	t.Helper()
	select {
	case c := <-p.calls:
		t.Fatalf("unexpected provider call with %d coordinates", len(c.req.Coordinates))
	default:
	}
}

// recorder collects coordinator callbacks.
type recorder struct {
	mu       sync.Mutex
	results  []Result
	failures []Failure
}

func (r *recorder) onResult(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recorder) onFailure(f Failure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, f)
}

func (r *recorder) snapshot() ([]Result, []Failure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Result(nil), r.results...), append([]Failure(nil), r.failures...)
}

func newTestCoordinator(p Provider, timeout time.Duration) (*Coordinator, *recorder) {
	rec := &recorder{}
	c := NewCoordinator(CoordinatorConfig{
		Provider:  p,
		Logger:    zerolog.Nop(),
		Timeout:   timeout,
		OnResult:  rec.onResult,
		OnFailure: rec.onFailure,
	})
	return c, rec
}

func routeCollection(distance, duration float64, coords ...[]float64) *FeatureCollection {
	return &FeatureCollection{
		Type: "FeatureCollection",
		Features: []Feature{{
			Type:     "Feature",
			Geometry: LineString{Type: "LineString", Coordinates: coords},
			Properties: FeatureProperties{
				Summary: Summary{Distance: distance, Duration: duration},
			},
		}},
	}
}

func coord(lat, lon float64) *geo.Coordinate {
	return &geo.Coordinate{Lat: lat, Lon: lon}
}

func TestCoordinator_HappyPath(t *testing.T) {
	p := newFakeProvider()
	c, rec := newTestCoordinator(p, 0)
	defer c.Close()

	req := Request{Origin: coord(50.4674, 4.8718), Destination: coord(50.4679, 4.8765)}
	require.Equal(t, DecisionIssued, c.Submit(req))

	call := p.next(t)
	var sent [][]float64
	for _, pt := range call.req.Coordinates {
		sent = append(sent, pt.LonLat())
	}
	assert.Equal(t, [][]float64{{4.8718, 50.4674}, {4.8765, 50.4679}}, sent)
	assert.Equal(t, ProfileWalk, call.req.Profile)
	assert.Equal(t, DefaultLanguage, call.req.Language)

	call.respond(routeCollection(500, 400, []float64{4.8718, 50.4674}, []float64{4.8765, 50.4679}), nil)
	c.Wait()

	results, failures := rec.snapshot()
	require.Len(t, results, 1)
	assert.Empty(t, failures)

	res := results[0]
	assert.Equal(t, 500.0, res.DistanceMeters)
	assert.Equal(t, 400.0, res.DurationSeconds)
	assert.Equal(t, []geo.Coordinate{{Lat: 50.4674, Lon: 4.8718}, {Lat: 50.4679, Lon: 4.8765}}, res.Polyline)
	assert.NotEmpty(t, res.Token)
	assert.NotNil(t, res.Response)
	assert.Equal(t, 667, estimate.StepsFromDistance(res.DistanceMeters))

	key, _ := req.Key()
	assert.Equal(t, State{LastCompletedKey: key}, c.State())
}

func TestCoordinator_IdempotentAfterCompletion(t *testing.T) {
	p := newFakeProvider()
	c, rec := newTestCoordinator(p, 0)
	defer c.Close()

	req := Request{Origin: coord(50.4674, 4.8718), Destination: coord(50.4679, 4.8765)}
	require.Equal(t, DecisionIssued, c.Submit(req))
	p.next(t).respond(routeCollection(500, 400, []float64{4.8718, 50.4674}), nil)
	c.Wait()

	// Same point with noise beyond the sixth decimal.
	noisy := Request{Origin: coord(50.46740001, 4.87180004), Destination: coord(50.4679, 4.8765)}
	assert.Equal(t, DecisionSuppressedCompleted, c.Submit(noisy))
	assert.Equal(t, DecisionSuppressedCompleted, c.Submit(req))

	c.Wait()
	p.assertNoCall(t)
	results, _ := rec.snapshot()
	assert.Len(t, results, 1)
}

func TestCoordinator_SuppressesDuplicateInFlight(t *testing.T) {
	p := newFakeProvider()
	c, rec := newTestCoordinator(p, 0)
	defer c.Close()

	req := Request{Origin: coord(1, 1), Destination: coord(2, 2)}
	require.Equal(t, DecisionIssued, c.Submit(req))
	call := p.next(t)

	for i := 0; i < 5; i++ {
		assert.Equal(t, DecisionSuppressedInFlight, c.Submit(req))
	}
	p.assertNoCall(t)

	call.respond(routeCollection(10, 10, []float64{1, 1}, []float64{2, 2}), nil)
	c.Wait()

	results, _ := rec.snapshot()
	assert.Len(t, results, 1)
}

func TestCoordinator_NewerRequestWins(t *testing.T) {
	tests := []struct {
		name string
		// staleFirst answers the superseded request before the current one.
		staleFirst bool
	}{
		{name: "stale response arrives last", staleFirst: false},
		{name: "stale response arrives first", staleFirst: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakeProvider()
			p.ignoreCancel = true
			c, rec := newTestCoordinator(p, 0)
			defer c.Close()

			f1 := Request{Origin: coord(1, 1), Destination: coord(2, 2)}
			f2 := Request{Origin: coord(1, 1), Destination: coord(3, 3)}

			require.Equal(t, DecisionIssued, c.Submit(f1))
			call1 := p.next(t)
			require.Equal(t, DecisionIssued, c.Submit(f2))
			call2 := p.next(t)

			assert.Error(t, call1.ctx.Err(), "the superseded request is canceled")
			assert.NoError(t, call2.ctx.Err())

			stale := routeCollection(111, 111, []float64{2, 2})
			fresh := routeCollection(222, 222, []float64{3, 3})
			if tt.staleFirst {
				call1.respond(stale, nil)
				call2.respond(fresh, nil)
			} else {
				call2.respond(fresh, nil)
				call1.respond(stale, nil)
			}
			c.Wait()

			results, failures := rec.snapshot()
			require.Len(t, results, 1)
			assert.Empty(t, failures)
			assert.Equal(t, 222.0, results[0].DistanceMeters)

			key2, _ := f2.Key()
			assert.Equal(t, key2, c.State().LastCompletedKey)
		})
	}
}

func TestCoordinator_ReturningToCompletedCancelsInFlight(t *testing.T) {
	p := newFakeProvider()
	p.ignoreCancel = true
	c, rec := newTestCoordinator(p, 0)
	defer c.Close()

	f1 := Request{Origin: coord(1, 1), Destination: coord(2, 2)}
	f2 := Request{Origin: coord(1, 1), Destination: coord(3, 3)}

	require.Equal(t, DecisionIssued, c.Submit(f1))
	p.next(t).respond(routeCollection(111, 111, []float64{2, 2}), nil)
	c.Wait()

	require.Equal(t, DecisionIssued, c.Submit(f2))
	call2 := p.next(t)

	assert.Equal(t, DecisionSuppressedCompleted, c.Submit(f1))
	assert.Error(t, call2.ctx.Err(), "the request for the abandoned inputs is canceled")
	assert.Empty(t, c.State().InFlightKey)

	call2.respond(routeCollection(222, 222, []float64{3, 3}), nil)
	c.Wait()

	results, failures := rec.snapshot()
	require.Len(t, results, 1)
	assert.Empty(t, failures)
	assert.Equal(t, 111.0, results[0].DistanceMeters)

	key1, _ := f1.Key()
	assert.Equal(t, key1, c.State().LastCompletedKey)

	assert.Equal(t, DecisionSuppressedCompleted, c.Submit(f1))
	p.assertNoCall(t)
}

func TestCoordinator_StaleErrorIsIgnored(t *testing.T) {
	p := newFakeProvider()
	p.ignoreCancel = true
	c, rec := newTestCoordinator(p, 0)
	defer c.Close()

	c.Submit(Request{Origin: coord(1, 1), Destination: coord(2, 2)})
	call1 := p.next(t)
	c.Submit(Request{Origin: coord(1, 1), Destination: coord(3, 3)})
	call2 := p.next(t)

	call1.respond(nil, ErrProviderUnavailable)
	call2.respond(routeCollection(5, 5, []float64{3, 3}), nil)
	c.Wait()

	results, failures := rec.snapshot()
	assert.Len(t, results, 1)
	assert.Empty(t, failures)
}

func TestCoordinator_EmptyResultMarksCompleted(t *testing.T) {
	p := newFakeProvider()
	c, rec := newTestCoordinator(p, 0)
	defer c.Close()

	req := Request{Origin: coord(1, 1), Destination: coord(2, 2)}
	c.Submit(req)
	p.next(t).respond(&FeatureCollection{Type: "FeatureCollection"}, nil)
	c.Wait()

	results, failures := rec.snapshot()
	assert.Empty(t, results)
	require.Len(t, failures, 1)
	assert.True(t, failures[0].Soft)
	assert.ErrorIs(t, failures[0].Err, ErrNoRouteFound)

	assert.Equal(t, DecisionSuppressedCompleted, c.Submit(req))
	p.assertNoCall(t)
}

func TestCoordinator_ErrorsStayRetryable(t *testing.T) {
	tests := []struct {
		name    string
		fc      *FeatureCollection
		err     error
		wantErr error
	}{
		{
			name:    "transport error",
			err:     &Error{Provider: "fake", Code: "HTTP_503", Message: "down", Err: ErrProviderUnavailable},
			wantErr: ErrProviderUnavailable,
		},
		{
			name:    "malformed body",
			err:     ErrMalformedResponse,
			wantErr: ErrMalformedResponse,
		},
		{
			name:    "unreadable geometry",
			fc:      routeCollection(1, 1, []float64{4.87}),
			wantErr: ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakeProvider()
			c, rec := newTestCoordinator(p, 0)
			defer c.Close()

			req := Request{Origin: coord(1, 1), Destination: coord(2, 2)}
			require.Equal(t, DecisionIssued, c.Submit(req))
			p.next(t).respond(tt.fc, tt.err)
			c.Wait()

			_, failures := rec.snapshot()
			require.Len(t, failures, 1)
			assert.False(t, failures[0].Soft)
			assert.ErrorIs(t, failures[0].Err, tt.wantErr)
			assert.Equal(t, State{}, c.State())

			require.Equal(t, DecisionIssued, c.Submit(req), "same inputs can be retried")
			p.next(t).respond(routeCollection(1, 1, []float64{2, 2}), nil)
			c.Wait()

			results, _ := rec.snapshot()
			assert.Len(t, results, 1)
		})
	}
}

func TestCoordinator_TimeoutIsReported(t *testing.T) {
	p := newFakeProvider()
	c, rec := newTestCoordinator(p, 20*time.Millisecond)
	defer c.Close()

	req := Request{Origin: coord(1, 1), Destination: coord(2, 2)}
	c.Submit(req)
	p.next(t) // never answered
	c.Wait()

	_, failures := rec.snapshot()
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0].Err, ErrTimeout)
	assert.Equal(t, DecisionIssued, c.Submit(req))
}

func TestCoordinator_CancelIsSilent(t *testing.T) {
	p := newFakeProvider()
	c, rec := newTestCoordinator(p, 0)
	defer c.Close()

	req := Request{Origin: coord(1, 1), Destination: coord(2, 2)}
	c.Submit(req)
	call := p.next(t)

	c.Cancel()
	c.Wait()

	assert.ErrorIs(t, call.ctx.Err(), context.Canceled)
	results, failures := rec.snapshot()
	assert.Empty(t, results)
	assert.Empty(t, failures)
	assert.Equal(t, State{}, c.State())

	assert.Equal(t, DecisionIssued, c.Submit(req), "a canceled fingerprint is not completed")
}

func TestCoordinator_MissingInputCancels(t *testing.T) {
	p := newFakeProvider()
	c, rec := newTestCoordinator(p, 0)
	defer c.Close()

	c.Submit(Request{Origin: coord(1, 1), Destination: coord(2, 2)})
	call := p.next(t)

	assert.Equal(t, DecisionNoInput, c.Submit(Request{Origin: coord(1, 1)}))
	c.Wait()

	assert.Error(t, call.ctx.Err())
	results, failures := rec.snapshot()
	assert.Empty(t, results)
	assert.Empty(t, failures)
}

func TestCoordinator_RefreshRecomputes(t *testing.T) {
	p := newFakeProvider()
	c, rec := newTestCoordinator(p, 0)
	defer c.Close()

	req := Request{Origin: coord(1, 1), Destination: coord(2, 2)}
	c.Submit(req)
	p.next(t).respond(routeCollection(1, 1, []float64{2, 2}), nil)
	c.Wait()

	require.Equal(t, DecisionSuppressedCompleted, c.Submit(req))
	require.Equal(t, DecisionIssued, c.Refresh(req))
	p.next(t).respond(routeCollection(2, 2, []float64{2, 2}), nil)
	c.Wait()

	results, _ := rec.snapshot()
	require.Len(t, results, 2)
	assert.Equal(t, 2.0, results[1].DistanceMeters)
}

func TestCoordinator_WaypointsAreOrdered(t *testing.T) {
	p := newFakeProvider()
	c, _ := newTestCoordinator(p, 0)
	defer c.Close()

	w := geo.Coordinate{Lat: 1.5, Lon: 1.5}
	c.Submit(Request{Origin: coord(1, 1), Destination: coord(2, 2), Waypoints: []geo.Coordinate{w}})
	call := p.next(t)

	require.Len(t, call.req.Coordinates, 3)
	assert.Equal(t, *coord(1, 1), call.req.Coordinates[0])
	assert.Equal(t, w, call.req.Coordinates[1])
	assert.Equal(t, *coord(2, 2), call.req.Coordinates[2])

	call.respond(routeCollection(1, 1, []float64{2, 2}), nil)
}

func TestCoordinator_AtMostOneInFlight(t *testing.T) {
	p := newFakeProvider()
	p.ignoreCancel = true
	c, rec := newTestCoordinator(p, 0)
	defer c.Close()

	var calls []*providerCall
	for i := 0; i < 5; i++ {
		c.Submit(Request{Origin: coord(1, 1), Destination: coord(2, float64(i))})
		calls = append(calls, p.next(t))

		live := 0
		for _, call := range calls {
			if call.ctx.Err() == nil {
				live++
			}
		}
		assert.Equal(t, 1, live)
	}

	for i := len(calls) - 1; i >= 0; i-- {
		calls[i].respond(routeCollection(float64(i), 1, []float64{2, 2}), nil)
	}
	c.Wait()

	results, _ := rec.snapshot()
	require.Len(t, results, 1)
	assert.Equal(t, 4.0, results[0].DistanceMeters)
}

func TestCoordinator_SubmitAfterClose(t *testing.T) {
	p := newFakeProvider()
	c, _ := newTestCoordinator(p, 0)
	c.Close()

	assert.Equal(t, DecisionNoInput, c.Submit(Request{Origin: coord(1, 1), Destination: coord(2, 2)}))
	p.assertNoCall(t)
}

func TestUserMessage(t *testing.T) {
	assert.Empty(t, UserMessage(nil))
	assert.NotEmpty(t, UserMessage(ErrNoRouteFound))
	assert.NotEqual(t, UserMessage(ErrNoRouteFound), UserMessage(errors.New("boom")))
}
