package routing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/walkthrough/walkthrough/internal/routing"

// DefaultTimeout bounds a single routing attempt.
const DefaultTimeout = 12 * time.Second

// Decision is what Submit did with a request.
type Decision int

const (
	// DecisionNoInput means origin or destination was missing. Any attempt
	// in flight is canceled.
	DecisionNoInput Decision = iota
	// DecisionSuppressedCompleted means the fingerprint was already computed.
	DecisionSuppressedCompleted
	// DecisionSuppressedInFlight means the same fingerprint is already being computed.
	DecisionSuppressedInFlight
	// DecisionIssued means a new provider request was started.
	DecisionIssued
)

func (d Decision) String() string {
	switch d {
	case DecisionNoInput:
		return "no_input"
	case DecisionSuppressedCompleted:
		return "suppressed_completed"
	case DecisionSuppressedInFlight:
		return "suppressed_in_flight"
	case DecisionIssued:
		return "issued"
	default:
		return "unknown"
	}
}

// CoordinatorConfig holds configuration for the coordinator.
type CoordinatorConfig struct {
	// Provider computes the routes.
	Provider Provider

	// Logger for coordinator operations.
	Logger zerolog.Logger

	// Timeout bounds each attempt (default: 12 seconds).
	Timeout time.Duration

	// Language of the turn-by-turn instructions (default: "fr").
	Language string

	// OnResult receives every route that completes and is still current.
	OnResult func(Result)

	// OnFailure receives failures of current attempts. Cancellations are
	// never reported.
	OnFailure func(Failure)

	// Meter records coordinator counters. Defaults to the global meter provider.
	Meter metric.Meter
}

// Coordinator owns the lifecycle of routing requests. At most one request
// is in flight; a request for a different fingerprint cancels it, and the
// canceled attempt's response is discarded whatever it turns out to be.
type Coordinator struct {
	provider  Provider
	logger    zerolog.Logger
	timeout   time.Duration
	language  string
	onResult  func(Result)
	onFailure func(Failure)
	metrics   *coordinatorMetrics

	root     context.Context
	stopRoot context.CancelFunc
	wg       sync.WaitGroup

	mu            sync.Mutex
	seq           uint64
	inFlight      *attempt
	lastCompleted string

	deliverMu     sync.Mutex
	lastDelivered uint64
}

type attempt struct {
	token  string
	seq    uint64
	key    string
	cancel context.CancelFunc
}

// State is a point-in-time view of the coordinator.
type State struct {
	InFlightKey      string
	InFlightToken    string
	LastCompletedKey string
}

// NewCoordinator creates a new route computation coordinator.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	language := cfg.Language
	if language == "" {
		language = DefaultLanguage
	}

	meter := cfg.Meter
	if meter == nil {
		meter = otel.Meter(meterName)
	}

	root, stop := context.WithCancel(context.Background())

	return &Coordinator{
		provider:  cfg.Provider,
		logger:    cfg.Logger,
		timeout:   timeout,
		language:  language,
		onResult:  cfg.OnResult,
		onFailure: cfg.OnFailure,
		metrics:   newCoordinatorMetrics(meter, cfg.Logger),
		root:      root,
		stopRoot:  stop,
	}
}

// Submit feeds a new request to the coordinator. The decision is taken
// synchronously; the provider call, if any, runs in the background.
func (c *Coordinator) Submit(req Request) Decision {
	key, ok := req.Key()

	c.mu.Lock()
	defer c.mu.Unlock()

	if !ok {
		if c.inFlight != nil {
			c.logger.Debug().Str("key", c.inFlight.key).Msg("input cleared, canceling routing request")
			c.cancelInFlightLocked()
		}
		return DecisionNoInput
	}

	if key == c.lastCompleted {
		if c.inFlight != nil {
			c.metrics.superseded(context.Background())
			c.logger.Debug().
				Str("key", c.inFlight.key).
				Str("token", c.inFlight.token).
				Msg("back on computed route, canceling routing request")
			c.cancelInFlightLocked()
		}
		c.metrics.suppressed(context.Background(), "completed")
		c.logger.Debug().Str("key", key).Msg("route already computed")
		return DecisionSuppressedCompleted
	}

	if c.inFlight != nil && c.inFlight.key == key {
		c.metrics.suppressed(context.Background(), "in_flight")
		c.logger.Debug().Str("key", key).Msg("route already being computed")
		return DecisionSuppressedInFlight
	}

	if c.inFlight != nil {
		c.metrics.superseded(context.Background())
		c.logger.Debug().
			Str("key", c.inFlight.key).
			Str("token", c.inFlight.token).
			Msg("superseding routing request")
		c.cancelInFlightLocked()
	}

	select {
	case <-c.root.Done():
		return DecisionNoInput
	default:
	}

	ctx, cancel := context.WithTimeout(c.root, c.timeout)
	c.seq++
	a := &attempt{
		token:  uuid.NewString(),
		seq:    c.seq,
		key:    key,
		cancel: cancel,
	}
	c.inFlight = a

	providerReq := DirectionsRequest{
		Coordinates: req.Coordinates(),
		Profile:     ProfileWalk,
		Language:    c.language,
	}

	c.metrics.issued(ctx)
	c.logger.Debug().
		Str("key", key).
		Str("token", a.token).
		Int("coordinates", len(providerReq.Coordinates)).
		Msg("issuing routing request")

	c.wg.Add(1)
	go c.run(ctx, a, providerReq)

	return DecisionIssued
}

// Refresh recomputes req even when its fingerprint was already completed.
func (c *Coordinator) Refresh(req Request) Decision {
	if key, ok := req.Key(); ok {
		c.mu.Lock()
		if c.lastCompleted == key {
			c.lastCompleted = ""
		}
		c.mu.Unlock()
	}
	return c.Submit(req)
}

// Cancel aborts the in-flight request, if any. Its fingerprint stays retryable.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelInFlightLocked()
}

// Forget clears the completion marker so the next Submit recomputes.
func (c *Coordinator) Forget() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastCompleted = ""
}

// State returns the current in-flight and completed fingerprints.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := State{LastCompletedKey: c.lastCompleted}
	if c.inFlight != nil {
		s.InFlightKey = c.inFlight.key
		s.InFlightToken = c.inFlight.token
	}
	return s
}

// Wait blocks until every started attempt has finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Close cancels the in-flight request and waits for background work.
// Submit does nothing after Close.
func (c *Coordinator) Close() {
	c.stopRoot()
	c.Cancel()
	c.wg.Wait()
}

func (c *Coordinator) cancelInFlightLocked() {
	if c.inFlight == nil {
		return
	}
	c.inFlight.cancel()
	c.inFlight = nil
}

func (c *Coordinator) run(ctx context.Context, a *attempt, req DirectionsRequest) {
	defer c.wg.Done()
	defer a.cancel()

	start := time.Now()
	fc, err := c.provider.Directions(ctx, req)
	c.complete(ctx, a, fc, err, time.Since(start))
}

// complete applies the outcome of an attempt. The identity check and every
// state change happen under the lock; callbacks run after it is released.
func (c *Coordinator) complete(ctx context.Context, a *attempt, fc *FeatureCollection, err error, elapsed time.Duration) {
	c.mu.Lock()

	if c.inFlight != a {
		c.mu.Unlock()
		c.metrics.discarded(context.Background())
		c.logger.Debug().
			Str("key", a.key).
			Str("token", a.token).
			Msg("discarding response of superseded routing request")
		return
	}
	c.inFlight = nil

	var (
		result  *Result
		failure *Failure
	)

	switch {
	case err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
		failure = &Failure{Key: a.key, Token: a.token, Err: &Error{
			Provider: c.provider.Name(),
			Code:     "TIMEOUT",
			Message:  "routing request exceeded " + c.timeout.String(),
			Err:      ErrTimeout,
		}}

	case err != nil && (errors.Is(err, context.Canceled) || ctx.Err() != nil):
		c.mu.Unlock()
		c.logger.Debug().Str("key", a.key).Str("token", a.token).Msg("routing request canceled")
		return

	case err != nil:
		failure = &Failure{Key: a.key, Token: a.token, Err: err}

	default:
		route, routeErr := fc.FirstRoute()
		switch {
		case errors.Is(routeErr, ErrNoRouteFound):
			c.lastCompleted = a.key
			failure = &Failure{Key: a.key, Token: a.token, Err: routeErr, Soft: true}
		case routeErr != nil:
			failure = &Failure{Key: a.key, Token: a.token, Err: routeErr}
		default:
			c.lastCompleted = a.key
			result = &Result{
				Key:             a.key,
				Token:           a.token,
				Polyline:        route.Polyline,
				DistanceMeters:  route.DistanceMeters,
				DurationSeconds: route.DurationSeconds,
				Response:        fc,
				CompletedAt:     time.Now(),
			}
		}
	}

	c.mu.Unlock()

	c.deliver(a, result, failure, elapsed)
}

// deliver invokes the callbacks, never letting an older attempt be
// delivered after a newer one.
func (c *Coordinator) deliver(a *attempt, result *Result, failure *Failure, elapsed time.Duration) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	if a.seq <= c.lastDelivered {
		c.metrics.discarded(context.Background())
		return
	}
	c.lastDelivered = a.seq

	if result != nil {
		c.logger.Info().
			Str("key", a.key).
			Str("token", a.token).
			Float64("distance_m", result.DistanceMeters).
			Float64("duration_s", result.DurationSeconds).
			Int("points", len(result.Polyline)).
			Dur("elapsed", elapsed).
			Msg("route computed")
		if c.onResult != nil {
			c.onResult(*result)
		}
		return
	}

	if failure.Soft {
		c.metrics.failed(context.Background(), "no_route")
		c.logger.Warn().Str("key", a.key).Str("token", a.token).Msg("provider returned no route")
	} else {
		c.metrics.failed(context.Background(), "error")
		c.logger.Error().Err(failure.Err).
			Str("key", a.key).
			Str("token", a.token).
			Dur("elapsed", elapsed).
			Msg("routing request failed")
	}
	if c.onFailure != nil {
		c.onFailure(*failure)
	}
}

type coordinatorMetrics struct {
	requests metric.Int64Counter
	failures metric.Int64Counter
}

func newCoordinatorMetrics(meter metric.Meter, logger zerolog.Logger) *coordinatorMetrics {
	m := &coordinatorMetrics{}

	var err error
	m.requests, err = meter.Int64Counter(
		"walkthrough.routing.requests",
		metric.WithDescription("Routing requests by coordinator decision"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn().Err(err).Msg("routing request counter unavailable")
	}

	m.failures, err = meter.Int64Counter(
		"walkthrough.routing.failures",
		metric.WithDescription("Routing attempts that did not produce a route"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn().Err(err).Msg("routing failure counter unavailable")
	}

	return m
}

func (m *coordinatorMetrics) add(ctx context.Context, counter metric.Int64Counter, attrs ...attribute.KeyValue) {
	if counter == nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *coordinatorMetrics) issued(ctx context.Context) {
	m.add(ctx, m.requests, attribute.String("decision", "issued"))
}

func (m *coordinatorMetrics) suppressed(ctx context.Context, reason string) {
	m.add(ctx, m.requests, attribute.String("decision", "suppressed"), attribute.String("reason", reason))
}

func (m *coordinatorMetrics) superseded(ctx context.Context) {
	m.add(ctx, m.requests, attribute.String("decision", "superseded"))
}

func (m *coordinatorMetrics) discarded(ctx context.Context) {
	m.add(ctx, m.requests, attribute.String("decision", "discarded"))
}

func (m *coordinatorMetrics) failed(ctx context.Context, kind string) {
	m.add(ctx, m.failures, attribute.String("kind", kind))
}
